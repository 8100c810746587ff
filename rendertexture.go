package arbor

import "github.com/hajimehoshi/ebiten/v2"

// RenderTexture is a caller owned offscreen canvas. Unlike the targets of
// texturizers it never returns to the pool. Nodes show it through Texture,
// and drawing with its methods invalidates them.
type RenderTexture struct {
	image   *ebiten.Image
	source  *TextureSource
	texture *Texture
	op      ebiten.DrawImageOptions
}

// NewRenderTexture allocates a w x h canvas.
func NewRenderTexture(w, h int) *RenderTexture {
	return &RenderTexture{image: ebiten.NewImage(w, h)}
}

// Image is the canvas itself. Call Changed after drawing into it directly.
// It is nil after Dispose.
func (rt *RenderTexture) Image() *ebiten.Image {
	return rt.image
}

func (rt *RenderTexture) Width() int {
	if rt.image == nil {
		return 0
	}
	return rt.image.Bounds().Dx()
}

func (rt *RenderTexture) Height() int {
	if rt.image == nil {
		return 0
	}
	return rt.image.Bounds().Dy()
}

// Texture returns a texture displaying the canvas. It is never atlased, so
// content drawn later shows up without a copy.
func (rt *RenderTexture) Texture() *Texture {
	if rt.texture == nil {
		rt.source = NewImageSource("render texture", rt.image)
		rt.texture = NewTexture(rt.source)
	}
	return rt.texture
}

// Changed invalidates the nodes displaying the canvas, including cached
// textures of their ancestors.
func (rt *RenderTexture) Changed() {
	if rt.source != nil {
		rt.source.notifyChanged()
	}
}

func (rt *RenderTexture) Clear() {
	rt.image.Clear()
	rt.Changed()
}

func (rt *RenderTexture) Fill(c Color) {
	rt.image.Fill(c.toRGBA())
	rt.Changed()
}

// DrawImage draws src with op.
func (rt *RenderTexture) DrawImage(src *ebiten.Image, op *ebiten.DrawImageOptions) {
	rt.image.DrawImage(src, op)
	rt.Changed()
}

// DrawImageAt draws src untinted with its top left corner at (x, y).
func (rt *RenderTexture) DrawImageAt(src *ebiten.Image, x, y float64) {
	rt.blit(src, x, y, ColorWhite)
}

// DrawTexture draws the region of t at (x, y) tinted by c. Nothing is drawn
// while t's source is not loaded.
func (rt *RenderTexture) DrawTexture(t *Texture, x, y float64, c Color) {
	s := t.source
	if s.state != SourceLoaded || s.img == nil {
		return
	}
	img := s.img
	if !t.region.Empty() {
		img = img.SubImage(t.region).(*ebiten.Image)
	}
	rt.blit(img, x, y, c)
}

func (rt *RenderTexture) blit(img *ebiten.Image, x, y float64, c Color) {
	op := &rt.op
	op.GeoM.Reset()
	op.GeoM.Translate(x, y)
	op.ColorScale.Reset()
	if c != ColorWhite {
		op.ColorScale.Scale(float32(c.R*c.A), float32(c.G*c.A), float32(c.B*c.A), float32(c.A))
	}
	rt.image.DrawImage(img, op)
	rt.Changed()
}

// Resize replaces the canvas with a blank one of the new size. Nodes
// showing it pick up the new size.
func (rt *RenderTexture) Resize(w, h int) {
	if rt.image != nil {
		rt.image.Deallocate()
	}
	rt.image = ebiten.NewImage(w, h)
	if rt.source != nil {
		rt.source.setImage(rt.image)
		rt.source.notifyChanged()
	}
}

// Dispose releases the canvas and disposes its texture source. The
// RenderTexture must not be drawn into afterwards.
func (rt *RenderTexture) Dispose() {
	if rt.source != nil {
		rt.source.Dispose()
	}
	if rt.image != nil {
		rt.image.Deallocate()
		rt.image = nil
	}
}
