package arbor

import (
	"context"
	"image"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
)

// SourceState is the load state of a TextureSource.
type SourceState uint8

const (
	SourceIdle     SourceState = iota // not loaded, nothing requested
	SourceLoading                     // a decode is in flight
	SourceLoaded                      // the image is available
	SourceFailed                      // the last load failed, see Err
	SourceDisposed                    // released for good
)

func (s SourceState) String() string {
	switch s {
	case SourceIdle:
		return "idle"
	case SourceLoading:
		return "loading"
	case SourceLoaded:
		return "loaded"
	case SourceFailed:
		return "failed"
	case SourceDisposed:
		return "disposed"
	}
	return "unknown"
}

// LoadFunc produces the pixels of a texture source. It runs on a loader
// goroutine and should return early once ctx is canceled.
type LoadFunc func(ctx context.Context) (image.Image, error)

var sourceIDCounter uint32

// TextureSource is a loadable image shared by any number of Textures. A
// source backed by a LoadFunc is loaded when the first node displaying it
// enters the bounds margin, and the load is canceled if every such node
// leaves before it completes.
type TextureSource struct {
	ID   uint32
	Name string

	state SourceState
	img   *ebiten.Image
	w, h  int
	err   error

	load   LoadFunc
	loader *textureLoader
	seq    uint64
	cancel context.CancelFunc

	// users are the nodes that display the source and are within bounds
	// margin.
	users []*Node

	atlas          *TextureAtlas
	atlased        bool
	atlasX, atlasY int
	// permanent sources are never atlased or disposed.
	permanent bool
}

func newTextureSource(name string) *TextureSource {
	sourceIDCounter++
	return &TextureSource{ID: sourceIDCounter, Name: name}
}

// NewImageSource wraps an image that is already available. The source is
// loaded from the start. Use Stage.NewImageSource to have it atlased.
func NewImageSource(name string, img *ebiten.Image) *TextureSource {
	s := newTextureSource(name)
	s.setImage(img)
	return s
}

// State returns the load state.
func (s *TextureSource) State() SourceState {
	return s.state
}

// Err returns the error of the last failed load.
func (s *TextureSource) Err() error {
	return s.err
}

// Size returns the pixel size, zero until loaded.
func (s *TextureSource) Size() (w, h int) {
	return s.w, s.h
}

// Image returns the source image, nil until loaded. Atlased sources keep
// their own image; quads sample the atlas surface instead.
func (s *TextureSource) Image() *ebiten.Image {
	return s.img
}

// Atlased reports whether the source currently lives in the atlas.
func (s *TextureSource) Atlased() bool {
	return s.atlased
}

// Retry requests a new load after a failure.
func (s *TextureSource) Retry() {
	if s.state != SourceFailed {
		return
	}
	s.err = nil
	s.state = SourceIdle
	if len(s.users) > 0 {
		s.startLoad()
	}
}

// Unload frees the image of a loader backed source. It is loaded again the
// next time a node displaying it enters the bounds margin.
func (s *TextureSource) Unload() {
	if s.load == nil || s.permanent || s.state == SourceDisposed {
		return
	}
	s.cancelLoad()
	s.dropImage()
	s.state = SourceIdle
	s.notifyChanged()
	if len(s.users) > 0 {
		s.startLoad()
	}
}

// Dispose releases the source for good. Loads still in flight are discarded
// when they complete. Nodes displaying the source draw nothing.
func (s *TextureSource) Dispose() {
	if s.state == SourceDisposed || s.permanent {
		return
	}
	s.cancelLoad()
	s.dropImage()
	s.state = SourceDisposed
	s.notifyChanged()
	s.users = nil
}

func (s *TextureSource) dropImage() {
	if s.atlas != nil {
		s.atlas.remove(s)
	}
	if s.img != nil && s.load != nil {
		s.img.Deallocate()
	}
	s.img = nil
}

func (s *TextureSource) addUser(n *Node) {
	s.users = append(s.users, n)
	switch {
	case s.state == SourceIdle:
		s.startLoad()
	case len(s.users) == 1 && s.state == SourceLoaded && s.atlas != nil:
		// A defragmentation may have dropped the source while unused.
		s.atlas.add(s)
	}
}

func (s *TextureSource) removeUser(n *Node) {
	if i := slices.Index(s.users, n); i >= 0 {
		s.users = slices.Delete(s.users, i, i+1)
	}
	if len(s.users) == 0 && s.state == SourceLoading {
		s.cancelLoad()
		s.state = SourceIdle
	}
}

func (s *TextureSource) startLoad() {
	if s.load == nil || s.loader == nil {
		return
	}
	s.loader.request(s)
}

// cancelLoad aborts an in-flight load. Bumping seq makes its result stale
// even if the loader ignores the context.
func (s *TextureSource) cancelLoad() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.seq++
}

func (s *TextureSource) setImage(img *ebiten.Image) {
	s.img = img
	b := img.Bounds()
	s.w, s.h = b.Dx(), b.Dy()
	s.err = nil
	s.state = SourceLoaded
	if s.atlas != nil {
		s.atlas.add(s)
	}
}

// loaded installs a finished load and tells every displaying node.
func (s *TextureSource) loaded(img *ebiten.Image) {
	s.cancel = nil
	s.setImage(img)
	for _, n := range slices.Clone(s.users) {
		n.onTextureLoaded()
	}
}

// failed records a load error and tells every displaying node.
func (s *TextureSource) failed(err error) {
	s.cancel = nil
	s.err = err
	s.state = SourceFailed
	for _, n := range slices.Clone(s.users) {
		n.onTextureError(err)
	}
}

// notifyChanged invalidates everything drawing the source, after its pixels
// or its atlas placement changed.
func (s *TextureSource) notifyChanged() {
	for _, n := range s.users {
		n.updateDimensionsFromTexture()
		n.markContentChanged()
	}
}

// Texture is a region of a TextureSource. The zero region covers the whole
// source.
type Texture struct {
	source *TextureSource
	region image.Rectangle

	// sub caches the region of an un-atlased source as a sub-image.
	sub   *ebiten.Image
	subOf *ebiten.Image
}

// NewTexture returns a texture covering the whole source.
func NewTexture(src *TextureSource) *Texture {
	return &Texture{source: src}
}

// NewRegionTexture returns a texture covering the w x h region of src at
// (x, y).
func NewRegionTexture(src *TextureSource, x, y, w, h int) *Texture {
	return &Texture{source: src, region: image.Rect(x, y, x+w, y+h)}
}

// Source returns the texture's source.
func (t *Texture) Source() *TextureSource {
	return t.source
}

// Size returns the pixel size of the texture, zero while the source is not
// loaded.
func (t *Texture) Size() (w, h int) {
	if t.source.state != SourceLoaded {
		return 0, 0
	}
	if t.region.Empty() {
		return t.source.w, t.source.h
	}
	return t.region.Dx(), t.region.Dy()
}

// frame returns the image quads sample and the normalized texture
// coordinates of the region within it, or nil while nothing can be drawn.
func (t *Texture) frame() (*ebiten.Image, [4]float64) {
	s := t.source
	if s.state != SourceLoaded || s.img == nil {
		return nil, [4]float64{}
	}
	r := t.region
	if r.Empty() {
		r = image.Rect(0, 0, s.w, s.h)
	}
	if s.atlased {
		aw, ah := s.atlas.dims()
		x, y := float64(s.atlasX+r.Min.X), float64(s.atlasY+r.Min.Y)
		return s.atlas.surface(), [4]float64{
			x / aw, y / ah,
			(x + float64(r.Dx())) / aw, (y + float64(r.Dy())) / ah,
		}
	}
	full := [4]float64{0, 0, 1, 1}
	if t.region.Empty() {
		return s.img, full
	}
	if t.sub == nil || t.subOf != s.img {
		t.sub = s.img.SubImage(r).(*ebiten.Image)
		t.subOf = s.img
	}
	return t.sub, full
}

// RectangleTexture draws solid color quads. It samples WhitePixel and is
// never atlased.
var RectangleTexture *Texture

func newRectangleTexture() *Texture {
	s := newTextureSource("rectangle")
	s.permanent = true
	s.setImage(WhitePixel)
	return NewTexture(s)
}

// --- Node texture state ---

// Texture returns the texture set on the node.
func (n *Node) Texture() *Texture {
	return n.texture
}

// SetTexture sets the texture the node displays. The source is only asked
// to load while the node is within the bounds margin.
func (n *Node) SetTexture(t *Texture) {
	if n.texture == t {
		return
	}
	n.deactivateTexture()
	n.texture = t
	if n.withinBoundsMargin {
		n.activateTexture()
	}
	n.updateDimensionsFromTexture()
	n.markContentChanged()
}

func (n *Node) activateTexture() {
	if n.texture == nil || n.textureActive {
		return
	}
	n.textureActive = true
	n.texture.source.addUser(n)
	// The source may have loaded while n was not a user.
	n.updateDimensionsFromTexture()
}

func (n *Node) deactivateTexture() {
	if !n.textureActive {
		return
	}
	n.textureActive = false
	n.texture.source.removeUser(n)
}

// displayedFrame returns the image and texture coordinates of the node's
// quad, applying the node's texture coordinate rectangle.
func (n *Node) displayedFrame() (*ebiten.Image, [4]float64) {
	if n.texture == nil {
		return nil, [4]float64{}
	}
	img, uv := n.texture.frame()
	if img == nil {
		return nil, uv
	}
	tc := n.texCoords
	if tc == [4]float64{0, 0, 1, 1} {
		return img, uv
	}
	du, dv := uv[2]-uv[0], uv[3]-uv[1]
	return img, [4]float64{
		uv[0] + du*tc[0], uv[1] + dv*tc[1],
		uv[0] + du*tc[2], uv[1] + dv*tc[3],
	}
}

// updateDimensionsFromTexture sizes the node after its texture unless
// explicit dimensions were set.
func (n *Node) updateDimensionsFromTexture() {
	if n.sizeSet {
		return
	}
	var w, h int
	if n.texture != nil {
		w, h = n.texture.Size()
	}
	n.setDimensions(float64(w), float64(h))
}

func (n *Node) onTextureLoaded() {
	n.updateDimensionsFromTexture()
	n.markContentChanged()
	if l, ok := n.owner.(TextureListener); ok {
		l.OnTextureLoaded(n, n.texture)
	}
}

func (n *Node) onTextureError(err error) {
	if l, ok := n.owner.(TextureListener); ok {
		l.OnTextureError(n, n.texture, err)
	}
}
