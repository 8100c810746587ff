package arbor

// maxUpdateReentries bounds how many times a node's update is re-run when its
// Element requests more recalculation from a bounds margin notification.
// Bits requested after the last run are deferred to the next frame.
const maxUpdateReentries = 1

// childRecalcMask selects the bits a node hands to its children.
const childRecalcMask = recalcAlpha | recalcTranslate | recalcTransform | recalcBounds | recalcTreeOrder

// FrameContext carries per-frame update state through the tree walk.
type FrameContext struct {
	// Frame is the stage frame counter.
	Frame uint64
	// Dt is the time since the previous frame in seconds.
	Dt float64

	// visits is the monotonically increasing tree order stamp counter. It
	// is owned by the stage and survives across frames.
	visits *uint64

	boundsMargin float64
	stats        *FrameStats
}

// update recomputes the derived state of n and its subtree. n must have a
// parent: the stage root is always parented to the synthetic node.
func (n *Node) update(fc *FrameContext) {
	p := n.parent
	n.recalc |= p.pRecalc
	*fc.visits++
	n.treeOrder = *fc.visits
	if fc.stats != nil {
		fc.stats.Visited++
	}

	visible := n.localAlpha() > 0 && p.world.Alpha > 0
	if visible && p.outOfBounds == boundsClipped {
		n.updateClipped(fc)
		return
	}
	if !n.hasUpdates &&
		!(n.recalc != 0 && visible) &&
		!(n.world.Alpha > 0 && !visible) &&
		!(p.outOfBounds == boundsClipped && n.outOfBounds != boundsClipped) &&
		n.recalc&recalcTreeOrder == 0 {
		return
	}

	if !visible {
		n.updateInvisible(fc)
		return
	}

	if fc.stats != nil {
		fc.stats.Recalculated++
	}

	recalc := n.recalc
	prevBounds := n.outOfBounds
	for reentries := 0; ; reentries++ {
		if recalc&recalcBecomesVisible != 0 {
			recalc |= recalcAll
		}
		n.recalc = 0
		n.updateDerived(recalc, p, fc)
		requested := n.recalc
		if requested == 0 || reentries == maxUpdateReentries {
			break
		}
		recalc |= requested
	}

	// Bits requested by the Element after the final run wait for the next
	// frame.
	leftover := n.recalc
	n.hasUpdates = false
	if leftover != 0 {
		n.setHasUpdates()
	}
	// Children skipped while this node was fully clipped must re-check
	// their own bounds once it is not.
	if n.outOfBounds != prevBounds {
		recalc |= recalcBounds
	}

	n.pRecalc = recalc & childRecalcMask
	for i := 0; i < len(n.children); i++ {
		n.children[i].update(fc)
	}
	n.pRecalc = 0

	if n.zSortPending {
		n.sortZIndexedChildren()
	}
}

// updateClipped is the cheap path taken under a fully clipped parent. Only
// the out-of-bounds state and the bounds margin flag are maintained; pending
// recalc bits are kept for when the parent comes back into view.
func (n *Node) updateClipped(fc *FrameContext) {
	n.outOfBounds = boundsClipped
	n.setWithinBoundsMargin(false)
	treeOrder := n.recalc & recalcTreeOrder
	n.recalc &^= recalcTreeOrder
	n.hasUpdates = false

	n.pRecalc = treeOrder
	for i := 0; i < len(n.children); i++ {
		c := n.children[i]
		if c.outOfBounds != boundsClipped || c.withinBoundsMargin || c.hasUpdates || treeOrder != 0 {
			c.update(fc)
		}
	}
	n.pRecalc = 0

	if n.zSortPending {
		n.sortZIndexedChildren()
	}
}

// updateInvisible hides n. Pending recalc bits are kept so the node is fully
// recomputed once it becomes visible again. Children are visited so they can
// drop their own world alpha and bounds margin flag.
func (n *Node) updateInvisible(fc *FrameContext) {
	n.world.Alpha = 0
	n.render.Alpha = 0
	if n.parent.outOfBounds == boundsClipped {
		n.outOfBounds = boundsClipped
	}
	n.setWithinBoundsMargin(false)
	treeOrder := n.recalc & recalcTreeOrder
	n.recalc &^= recalcTreeOrder
	n.hasUpdates = false

	n.pRecalc = treeOrder
	for i := 0; i < len(n.children); i++ {
		n.children[i].update(fc)
	}
	n.pRecalc = 0

	if n.zSortPending {
		n.sortZIndexedChildren()
	}
}

// updateDerived recomputes the world context, the render context, the
// scissor, the bounding box and the bounds margin state for the given bits.
func (n *Node) updateDerived(recalc uint16, p *Node, fc *FrameContext) {
	if recalc&recalcAlpha != 0 {
		n.world.composeAlpha(&p.world, n.localAlpha())
	}
	if recalc&(recalcTranslate|recalcTransform) != 0 {
		n.world.composeTranslate(&p.world, n.x, n.y)
	}
	if recalc&recalcTransform != 0 {
		n.world.composeTransform(&p.world, n.ta, n.tb, n.tc, n.td)
	}

	var base *RenderContext
	switch {
	case p.rttEnabled():
		base = &identityContext
	case p.hasRenderCtx:
		base = &p.render
	}
	n.hasRenderCtx = base != nil
	if base != nil {
		if recalc&recalcAlpha != 0 {
			n.render.composeAlpha(base, n.localAlpha())
		}
		if recalc&(recalcTranslate|recalcTransform) != 0 {
			n.render.composeTranslate(base, n.x, n.y)
		}
		if recalc&recalcTransform != 0 {
			n.render.composeTransform(base, n.ta, n.tb, n.tc, n.td)
		}
	}

	if recalc&recalcBoundsMask != 0 {
		n.updateScissor(p)
		n.updateBoundingBox(p)
		n.updateWithinBoundsMargin(fc)
	}
}
