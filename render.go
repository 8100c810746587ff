package arbor

// renderState is the state of one render target level of the walk.
type renderState struct {
	target *renderTextureInfo

	// prefix maps render coordinates of the nodes below onto the target,
	// nil when they already are target coordinates. It is set below a
	// texturizer drawn directly and inside padded textures.
	prefix *RenderContext
	// clip bounds scissors mapped through prefix, in target coordinates.
	clip Rect

	// exclude is the shader owner whose shader is not applied at this
	// level: it belongs above the texture being rendered.
	exclude *Node
}

// contextOf returns the context n's quad is drawn with, using tmp as
// storage when composing with the prefix.
func (rs *renderState) contextOf(n *Node, tmp *RenderContext) *RenderContext {
	if rs.prefix == nil {
		return n.renderContext()
	}
	tmp.compose(rs.prefix, n.renderContext())
	return tmp
}

// scissorFor maps a scissor in render coordinates onto the target.
func (rs *renderState) scissorFor(sc Rect) Rect {
	if rs.prefix == nil {
		return sc
	}
	if !rs.prefix.IsSquare() {
		return rs.clip
	}
	return normalizeRect(rs.clip.Intersect(rs.prefix.mapRect(sc)))
}

func (rs *renderState) shaderOf(s Shader, owner *Node) (Shader, *Node) {
	if owner != nil && owner == rs.exclude {
		return nil, nil
	}
	return s, owner
}

// renderer turns the updated tree into quad and filter operations.
type renderer struct {
	b     *QuadBatcher
	pool  *renderTexturePool
	rs    *renderState
	visit func(*Node)

	// scratch are the intermediate targets of this frame, released once
	// the operations executed.
	scratch []*renderTextureInfo
	filters []Filter
	stats   *FrameStats
}

func newRenderer(b *QuadBatcher, pool *renderTexturePool) *renderer {
	r := &renderer{b: b, pool: pool}
	r.visit = r.renderNode
	return r
}

// render records the operations for the tree below root.
func (r *renderer) render(root *Node, viewport Rect, stats *FrameStats) {
	r.stats = stats
	r.b.reset(viewport)
	r.rs = &renderState{clip: viewport}
	r.renderNode(root)
	r.b.finish()
	r.rs = nil
}

// releaseScratch hands the intermediate targets back to the pool. It must
// run after the operations executed.
func (r *renderer) releaseScratch() {
	for _, t := range r.scratch {
		t.release(r.pool)
	}
	clear(r.scratch)
	r.scratch = r.scratch[:0]
}

func (r *renderer) newScratch(w, h int) *renderTextureInfo {
	t := r.b.newTarget(w, h)
	t.allocate(r.pool)
	r.scratch = append(r.scratch, t)
	return t
}

func (r *renderer) renderNode(n *Node) {
	if n.outOfBounds == boundsClipped || n.world.Alpha <= 0 || n.disposed {
		return
	}
	if n.rttEnabled() {
		r.renderTexturized(n)
		return
	}
	if n.outOfBounds == boundsIn {
		var tmp RenderContext
		r.drawOwn(n, r.rs.contextOf(n, &tmp), r.rs.scissorFor(n.scissor))
	}
	n.forEachPainted(r.visit)
}

// drawOwn emits n's own quad. A node owning a shader that asks to be
// invoked when empty opens its operation even without a quad.
func (r *renderer) drawOwn(n *Node, ctx *RenderContext, scissor Rect) {
	quad := n.texture != nil && n.w > 0 && n.h > 0
	if !quad && (n.shaderOwner != n || !invokesWhenEmpty(n.activeShader)) {
		return
	}
	s, owner := r.rs.shaderOf(n.activeShader, n.shaderOwner)
	r.b.setState(batchState{shader: s, owner: owner, scissor: scissor, target: r.rs.target})
	if quad {
		r.b.addQuad(n, ctx, n.w, n.h, false)
	}
}

func (r *renderer) renderTexturized(n *Node) {
	t := n.texturizer
	t.pool = r.pool
	changed := t.dirty
	t.dirty = false
	if changed {
		t.stale = true
	}
	if n.outOfBounds != boundsIn {
		return
	}
	if n.w <= 0 || n.h <= 0 {
		t.release()
		return
	}
	if !t.mustRenderToTexture(changed) {
		r.renderFlattened(n)
		return
	}

	r.filters = t.appendActiveFilters(r.filters[:0])
	pad := filterChainPadding(r.filters)
	tw, th := ceilInt(n.w)+2*pad, ceilInt(n.h)+2*pad
	if t.result != nil && (t.result.w != tw || t.result.h != th) {
		t.release()
	}
	if t.result == nil || t.stale || t.pad != pad {
		r.renderToTexture(n, t, tw, th, pad)
	}
	clear(r.filters)
	r.filters = r.filters[:0]

	img := t.result.image()
	if img == nil {
		return
	}
	if r.stats != nil {
		r.stats.Textures++
	}
	var tmp RenderContext
	ctx := *r.rs.contextOf(n, &tmp)
	if pad > 0 {
		p := float64(pad)
		ctx.Px -= ctx.Ta*p + ctx.Tb*p
		ctx.Py -= ctx.Tc*p + ctx.Td*p
	}
	p := n.parent
	s, owner := r.rs.shaderOf(p.activeShader, p.shaderOwner)
	r.b.setState(batchState{
		shader:  s,
		owner:   owner,
		scissor: r.rs.scissorFor(n.boundsBase(p)),
		target:  r.rs.target,
	})
	r.b.override = img
	r.b.addQuad(n, &ctx, float64(tw), float64(th), !t.Colorize)
	r.b.override = nil
}

// renderToTexture renders n and its subtree into the texturizer's result,
// through the active filters. The content is drawn at (pad, pad).
func (r *renderer) renderToTexture(n *Node, t *Texturizer, tw, th, pad int) {
	if t.result == nil {
		t.result = &renderTextureInfo{w: tw, h: th, lastQuad: -1}
	}
	res := t.result
	res.reused = nil
	res.allocate(r.pool)
	r.b.track(res)
	t.pad = pad
	t.stale = false

	filters := r.filters
	src := res
	if len(filters) > 0 {
		src = r.newScratch(tw, th)
	}
	src.quads, src.lastQuad = 0, -1

	outer, saved := r.rs, r.b.state
	inner := renderState{
		target:  src,
		clip:    Rect{Width: float64(tw), Height: float64(th)},
		exclude: n.parent.shaderOwner,
	}
	own := identityContext
	if pad > 0 {
		inner.prefix = &RenderContext{Alpha: 1, Px: float64(pad), Py: float64(pad), Ta: 1, Td: 1}
		own = *inner.prefix
	}
	r.rs = &inner
	r.b.setState(batchState{scissor: inner.clip, target: src})
	r.drawOwn(n, &own, inner.clip)
	n.forEachPainted(r.visit)
	r.rs = outer

	if img := r.b.reuseSingleQuad(src, len(filters) > 0); img != nil && src == res && res.pooled != nil {
		// The texture would be a copy of img.
		r.pool.release(res.pooled)
		res.pooled, res.img = nil, nil
	}

	cur := src
	var pingpong [2]*renderTextureInfo
	for i, f := range filters {
		dst := res
		if i < len(filters)-1 {
			k := i % 2
			if pingpong[k] == nil {
				if k == 1 && src.reused == nil {
					pingpong[k] = src
				} else {
					pingpong[k] = r.newScratch(tw, th)
				}
			}
			dst = pingpong[k]
		}
		r.b.addFilter(f, n, cur, dst)
		cur = dst
	}
	r.b.setState(saved)
}

// renderFlattened draws a texturized subtree directly into the current
// target, composing its render contexts with n's.
func (r *renderer) renderFlattened(n *Node) {
	outer := r.rs
	var ctx RenderContext
	ctx = *outer.contextOf(n, &ctx)
	scissor := outer.scissorFor(n.scissor)
	r.drawOwn(n, &ctx, scissor)

	inner := renderState{
		target:  outer.target,
		prefix:  &ctx,
		clip:    scissor,
		exclude: outer.exclude,
	}
	if ctx.IsSquare() {
		inner.clip = normalizeRect(scissor.Intersect(ctx.mapRect(Rect{Width: n.w, Height: n.h})))
	}
	r.rs = &inner
	n.forEachPainted(r.visit)
	r.rs = outer
}

// snapshot records n and its subtree into target with n's origin at the
// target's top-left corner.
func (r *renderer) snapshot(n *Node, target *renderTextureInfo) {
	clip := Rect{Width: float64(target.w), Height: float64(target.h)}
	r.b.reset(clip)
	r.b.track(target)
	rs := renderState{target: target, clip: clip}
	var inv RenderContext
	if !n.rttEnabled() {
		if !inv.invert(n.renderContext()) {
			return
		}
		rs.prefix = &inv
	}
	r.rs = &rs
	r.b.setState(batchState{scissor: clip, target: target})
	own := identityContext
	r.drawOwn(n, &own, clip)
	n.forEachPainted(r.visit)
	r.b.finish()
	r.rs = nil
}
