package arbor

import (
	"image"
	"math/bits"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Render texture pool ---

// pooledTexture is an offscreen ebiten.Image with power-of-two dimensions
// owned by a renderTexturePool.
type pooledTexture struct {
	img      *ebiten.Image
	w, h     int
	lastUsed uint64
	inUse    bool
}

func (t *pooledTexture) bytes() int64 {
	return int64(t.w) * int64(t.h) * 4
}

// renderTexturePool manages reusable offscreen images keyed by power-of-two
// dimensions. Free textures unused for maxAge frames are deallocated, and
// allocation beyond the memory ceiling first evicts the oldest free ones.
type renderTexturePool struct {
	buckets map[uint64][]*pooledTexture
	used    int64 // bytes currently allocated, free or not
	limit   int64
	maxAge  uint64
	frame   uint64
}

func newRenderTexturePool(limit int64, maxAge int) *renderTexturePool {
	return &renderTexturePool{
		buckets: make(map[uint64][]*pooledTexture),
		limit:   limit,
		maxAge:  uint64(maxAge),
	}
}

// poolKey packs power-of-two width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// acquire returns a texture with at least (w, h) pixels. The content is
// undefined; the executor clears a target on its first use in a frame.
func (p *renderTexturePool) acquire(w, h int) *pooledTexture {
	pw := nextPowerOfTwo(w)
	ph := nextPowerOfTwo(h)
	key := poolKey(pw, ph)

	if stack := p.buckets[key]; len(stack) > 0 {
		t := stack[len(stack)-1]
		stack[len(stack)-1] = nil
		p.buckets[key] = stack[:len(stack)-1]
		t.inUse = true
		t.lastUsed = p.frame
		return t
	}

	need := int64(pw) * int64(ph) * 4
	if p.used+need > p.limit {
		p.evict(p.used + need - p.limit)
		if p.used+need > p.limit {
			logger.Warn("arbor: render texture pool over memory ceiling",
				"used", p.used, "limit", p.limit, "request", need)
		}
	}
	t := &pooledTexture{
		img: ebiten.NewImageWithOptions(
			image.Rect(0, 0, pw, ph),
			&ebiten.NewImageOptions{Unmanaged: true},
		),
		w:        pw,
		h:        ph,
		inUse:    true,
		lastUsed: p.frame,
	}
	p.used += need
	return t
}

// release returns a texture to the pool for reuse.
func (p *renderTexturePool) release(t *pooledTexture) {
	if t == nil || !t.inUse {
		return
	}
	t.inUse = false
	t.lastUsed = p.frame
	key := poolKey(t.w, t.h)
	p.buckets[key] = append(p.buckets[key], t)
}

// evict deallocates free textures, oldest first, until at least n bytes
// were freed or no free texture is left.
func (p *renderTexturePool) evict(n int64) {
	var freed int64
	for freed < n {
		var oldest *pooledTexture
		var oldestKey uint64
		oldestIdx := -1
		for key, stack := range p.buckets {
			for i, t := range stack {
				if oldest == nil || t.lastUsed < oldest.lastUsed {
					oldest, oldestKey, oldestIdx = t, key, i
				}
			}
		}
		if oldest == nil {
			return
		}
		p.drop(oldestKey, oldestIdx)
		freed += oldest.bytes()
	}
	logger.Info("arbor: evicted pooled render textures", "bytes", freed)
}

// gc advances the pool clock and deallocates free textures that have not
// been used for maxAge frames.
func (p *renderTexturePool) gc(frame uint64) {
	p.frame = frame
	for key, stack := range p.buckets {
		for i := len(stack) - 1; i >= 0; i-- {
			if frame-stack[i].lastUsed > p.maxAge {
				p.drop(key, i)
				stack = p.buckets[key]
			}
		}
	}
}

func (p *renderTexturePool) drop(key uint64, i int) {
	stack := p.buckets[key]
	t := stack[i]
	last := len(stack) - 1
	stack[i] = stack[last]
	stack[last] = nil
	p.buckets[key] = stack[:last]
	if len(p.buckets[key]) == 0 {
		delete(p.buckets, key)
	}
	p.used -= t.bytes()
	t.img.Deallocate()
}

// freeCount returns the number of pooled textures waiting for reuse.
func (p *renderTexturePool) freeCount() int {
	n := 0
	for _, stack := range p.buckets {
		n += len(stack)
	}
	return n
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// --- Render texture handles ---

// renderTextureInfo is the handle quad and filter operations use for an
// offscreen target. The render walk allocates it eagerly so its image can be
// sampled by quads recorded later in the same frame.
type renderTextureInfo struct {
	w, h int

	// pooled is the backing texture when the pool owns it. It is nil for
	// a reused source image.
	pooled *pooledTexture
	img    *ebiten.Image

	// cleared is reset at the start of every execution.
	cleared bool

	// quads counts quads added while this target was bound.
	quads int
	// lastQuad is the arena index of the most recent of those quads.
	lastQuad int
	// reused is the source image when the target's content was a single
	// identity quad and the draw was skipped.
	reused *ebiten.Image
}

// allocate binds a pooled texture and exposes its (w, h) corner.
func (ri *renderTextureInfo) allocate(pool *renderTexturePool) {
	if ri.img != nil {
		return
	}
	ri.pooled = pool.acquire(ri.w, ri.h)
	ri.img = ri.pooled.img.SubImage(image.Rect(0, 0, ri.w, ri.h)).(*ebiten.Image)
}

// image returns the image to sample from: the reused source or the target.
func (ri *renderTextureInfo) image() *ebiten.Image {
	if ri.reused != nil {
		return ri.reused
	}
	return ri.img
}

// release hands the pooled texture back.
func (ri *renderTextureInfo) release(pool *renderTexturePool) {
	if ri.pooled != nil && pool != nil {
		pool.release(ri.pooled)
	}
	ri.pooled = nil
	ri.img = nil
	ri.reused = nil
}
