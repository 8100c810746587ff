package arbor

import (
	"image"
	"slices"

	"cogentcore.org/core/base/keylist"
	"github.com/hajimehoshi/ebiten/v2"
)

// TextureAtlas packs small texture sources into one shared surface so their
// quads batch into the same draw calls. Sources that do not fit stay
// un-atlased and are retried after a defragmentation.
type TextureAtlas struct {
	image *ebiten.Image
	tree  *atlasTree
	size  int

	maxTexture int
	threshold  float64
	interval   uint64

	// sources are the atlased sources in insertion order.
	sources *keylist.List[uint32, *TextureSource]
	// rejected are loaded sources that did not fit.
	rejected []*TextureSource
	// uploads are sources whose pixels still need to be copied in.
	uploads []*TextureSource

	wasted      int // area of removed sources, not reusable until defrag
	needsDefrag bool
	lastDefrag  uint64
	defrags     int

	copyOp ebiten.DrawImageOptions
}

func newTextureAtlas(cfg Config) *TextureAtlas {
	a := &TextureAtlas{
		size:       cfg.AtlasSize,
		maxTexture: cfg.AtlasMaxTextureSize,
		threshold:  cfg.DefragWasteThreshold,
		interval:   uint64(cfg.DefragIntervalFrames),
		tree:       newAtlasTree(cfg.AtlasSize, cfg.AtlasSize),
		sources:    keylist.New[uint32, *TextureSource](),
	}
	a.copyOp.Blend = ebiten.BlendCopy
	return a
}

// surface creates the atlas image on first use.
func (a *TextureAtlas) surface() *ebiten.Image {
	if a.image == nil {
		a.image = ebiten.NewImageWithOptions(image.Rect(0, 0, a.size, a.size), &ebiten.NewImageOptions{Unmanaged: true})
	}
	return a.image
}

func (a *TextureAtlas) dims() (w, h float64) {
	return float64(a.size), float64(a.size)
}

// Len returns the number of atlased sources.
func (a *TextureAtlas) Len() int {
	return a.sources.Len()
}

// WastedFraction returns the share of the surface held by removed sources
// and by atlased sources no node displays.
func (a *TextureAtlas) WastedFraction() float64 {
	area := a.wasted
	for _, s := range a.sources.Values {
		if len(s.users) == 0 {
			area += (s.w + atlasMargin) * (s.h + atlasMargin)
		}
	}
	return float64(area) / float64(a.size*a.size)
}

// NeedsDefrag reports whether an allocation failed since the last
// defragmentation.
func (a *TextureAtlas) NeedsDefrag() bool {
	return a.needsDefrag
}

// register makes s atlased whenever it is loaded.
func (a *TextureAtlas) register(s *TextureSource) {
	s.atlas = a
	if s.state == SourceLoaded {
		a.add(s)
	}
}

func (a *TextureAtlas) candidate(s *TextureSource) bool {
	return !s.permanent && s.img != nil && s.w > 0 && s.h > 0 &&
		s.w <= a.maxTexture && s.h <= a.maxTexture
}

// add places a loaded source. On failure the source stays un-atlased and a
// defragmentation is requested.
func (a *TextureAtlas) add(s *TextureSource) bool {
	if s.atlased || !a.candidate(s) {
		return false
	}
	x, y, ok := a.tree.insert(s.w, s.h)
	if !ok {
		a.needsDefrag = true
		if !slices.Contains(a.rejected, s) {
			a.rejected = append(a.rejected, s)
		}
		logger.Warn("arbor: atlas full, texture drawn un-atlased", "source", s.Name, "w", s.w, "h", s.h)
		return false
	}
	s.atlased = true
	s.atlasX, s.atlasY = x, y
	a.sources.Set(s.ID, s)
	a.uploads = append(a.uploads, s)
	return true
}

// remove takes s out of the atlas. Its area is only reclaimed by the next
// defragmentation.
func (a *TextureAtlas) remove(s *TextureSource) {
	if i := slices.Index(a.rejected, s); i >= 0 {
		a.rejected = slices.Delete(a.rejected, i, i+1)
	}
	if !s.atlased {
		return
	}
	s.atlased = false
	a.sources.DeleteByKey(s.ID)
	if i := slices.Index(a.uploads, s); i >= 0 {
		a.uploads = slices.Delete(a.uploads, i, i+1)
	}
	a.wasted += (s.w + atlasMargin) * (s.h + atlasMargin)
}

// flush copies pending sources into the surface. The stage calls it before
// the frame's draw operations run.
func (a *TextureAtlas) flush() int {
	if len(a.uploads) == 0 {
		return 0
	}
	dst := a.surface()
	n := len(a.uploads)
	for _, s := range a.uploads {
		a.copyOp.GeoM.Reset()
		a.copyOp.GeoM.Translate(float64(s.atlasX), float64(s.atlasY))
		dst.DrawImage(s.img, &a.copyOp)
	}
	clear(a.uploads)
	a.uploads = a.uploads[:0]
	return n
}

// maybeDefrag repacks the atlas when an allocation failed, enough area is
// wasted and the last repack is at least interval frames old.
func (a *TextureAtlas) maybeDefrag(frame uint64) bool {
	if !a.needsDefrag || a.WastedFraction() <= a.threshold {
		return false
	}
	if a.defrags > 0 && frame-a.lastDefrag < a.interval {
		return false
	}
	a.defrag()
	a.lastDefrag = frame
	return true
}

// defrag repacks the atlased and rejected sources some node displays,
// largest first. Unused sources leave the atlas until a node uses them
// again. Sources that moved are re-uploaded and their nodes invalidated.
func (a *TextureAtlas) defrag() {
	var all []*TextureSource
	dropped := 0
	for _, s := range a.sources.Values {
		if len(s.users) > 0 {
			all = append(all, s)
		} else {
			s.atlased = false
			dropped++
		}
	}
	for _, s := range a.rejected {
		if s.state == SourceLoaded && len(s.users) > 0 {
			all = append(all, s)
		}
	}
	slices.SortStableFunc(all, func(x, y *TextureSource) int {
		return y.w*y.h - x.w*x.h
	})

	a.tree.reset()
	a.sources.Reset()
	clear(a.rejected)
	a.rejected = a.rejected[:0]
	clear(a.uploads)
	a.uploads = a.uploads[:0]
	a.wasted = 0
	a.needsDefrag = false
	a.defrags++
	if a.image != nil {
		a.image.Clear()
	}

	placed := 0
	for _, s := range all {
		wasAtlased, ox, oy := s.atlased, s.atlasX, s.atlasY
		s.atlased = false
		a.add(s)
		if s.atlased {
			placed++
		}
		if s.atlased != wasAtlased || s.atlasX != ox || s.atlasY != oy {
			s.notifyChanged()
		}
	}
	logger.Info("arbor: atlas defragmented", "sources", len(all), "placed", placed, "dropped", dropped)
}
