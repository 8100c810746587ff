package arbor

import "github.com/hajimehoshi/ebiten/v2"

// Texturizer renders a node's subtree into an offscreen texture, optionally
// runs filters over it, and draws the result as a single quad. Every node
// has one, created on first access through Node.Texturizer.
//
// The subtree is rendered to a texture when the texturizer is enabled and
// not lazy, when it is lazy and nothing changed since the previous frame,
// or when at least one filter is active. Otherwise its quads are drawn
// directly. The texture is kept and drawn again as long as nothing in the
// subtree changes.
type Texturizer struct {
	node    *Node
	enabled bool
	lazy    bool
	filters []Filter

	// Colorize draws the result with the node's corner colors instead of
	// opaque white.
	Colorize bool

	// dirty is set when the subtree changed since the last render pass;
	// stale when the cached result does not show the current content.
	dirty bool
	stale bool

	result *renderTextureInfo
	pad    int
	pool   *renderTexturePool
}

// Texturizer returns the node's texturizer.
func (n *Node) Texturizer() *Texturizer {
	if n.texturizer == nil {
		n.texturizer = &Texturizer{node: n, dirty: true}
	}
	return n.texturizer
}

// rttEnabled reports whether n composites its subtree through its
// texturizer. Children of such a node have render contexts relative to it.
func (n *Node) rttEnabled() bool {
	t := n.texturizer
	return t != nil && (t.enabled || len(t.filters) > 0)
}

// Enabled reports whether render-to-texture was enabled.
func (t *Texturizer) Enabled() bool {
	return t.enabled
}

// SetEnabled turns render-to-texture on or off. Turning it off hands the
// texture back to the pool.
func (t *Texturizer) SetEnabled(v bool) {
	if t.enabled == v {
		return
	}
	t.update(func() { t.enabled = v })
}

// Lazy reports whether the texture is only used while the subtree is static.
func (t *Texturizer) Lazy() bool {
	return t.lazy
}

// SetLazy makes an enabled texturizer draw the subtree directly on frames
// where it changed, and use the texture while it is static.
func (t *Texturizer) SetLazy(v bool) {
	if t.lazy == v {
		return
	}
	t.lazy = v
	t.node.markContentChanged()
}

// Filters returns the filter chain. The returned slice MUST NOT be mutated.
func (t *Texturizer) Filters() []Filter {
	return t.filters
}

// SetFilters replaces the filter chain. Filters run in order, each reading
// the output of the previous one. Changing a filter's parameters later
// requires Invalidate.
func (t *Texturizer) SetFilters(filters ...Filter) {
	fs := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			fs = append(fs, f)
		}
	}
	t.update(func() { t.filters = fs })
}

// Invalidate forces the texture to be rendered again on the next frame.
func (t *Texturizer) Invalidate() {
	t.node.markContentChanged()
}

// Image returns the texture drawn for the node in the last frame, or nil.
// It is only valid until the next frame is drawn.
func (t *Texturizer) Image() *ebiten.Image {
	if t.result == nil {
		return nil
	}
	return t.result.image()
}

// update applies a change that may toggle render-to-texture, which moves
// the node in or out of the z-context set and rebases its children's
// render contexts.
func (t *Texturizer) update(apply func()) {
	n := t.node
	wasCtx := n.isZContext()
	was := n.rttEnabled()
	apply()
	if n.rttEnabled() != was {
		n.zContextToggled(wasCtx)
		n.setRecalc(recalcAll)
		if !n.rttEnabled() {
			t.release()
		}
	}
	n.markContentChanged()
}

// mustRenderToTexture reports whether the subtree is drawn through the
// texture this frame. changed is whether the subtree changed since the
// previous frame.
func (t *Texturizer) mustRenderToTexture(changed bool) bool {
	if t.enabled && (!t.lazy || !changed) {
		return true
	}
	return t.activeFilters() > 0
}

func (t *Texturizer) activeFilters() int {
	n := 0
	for _, f := range t.filters {
		if !f.UseDefault() {
			n++
		}
	}
	return n
}

// appendActiveFilters appends the filters that are not in their default
// state.
func (t *Texturizer) appendActiveFilters(dst []Filter) []Filter {
	for _, f := range t.filters {
		if !f.UseDefault() {
			dst = append(dst, f)
		}
	}
	return dst
}

// release hands the texture back to the pool. Readers of Image see nil
// afterwards.
func (t *Texturizer) release() {
	if t.result != nil {
		t.result.release(t.pool)
		t.result = nil
	}
	t.stale = true
}
