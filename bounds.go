package arbor

// boundsBase is the scissor n is tested against: the parent's scissor, or
// the parent's own box when the parent renders to a texture.
func (n *Node) boundsBase(p *Node) Rect {
	if p.rttEnabled() {
		return Rect{Width: p.w, Height: p.h}
	}
	return p.scissor
}

// updateScissor recomputes the scissor applied to n and its descendants.
// Clipping is only honored while the render context is axis aligned.
func (n *Node) updateScissor(p *Node) {
	base := n.boundsBase(p)
	ctx := n.renderContext()
	if n.clipping && ctx.IsSquare() {
		minX, minY, maxX, maxY := ctx.bounds(n.w, n.h)
		n.scissor = normalizeRect(base.Intersect(Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}))
		return
	}
	n.scissor = base
}

// normalizeRect collapses a disjoint intersection to a zero sized rectangle.
func normalizeRect(r Rect) Rect {
	if r.Width <= 0 || r.Height <= 0 {
		return Rect{X: r.X, Y: r.Y}
	}
	return r
}

// updateBoundingBox recomputes the bounding box in render coordinates and
// the out-of-bounds state before the bounds margin adjustment.
func (n *Node) updateBoundingBox(p *Node) {
	ctx := n.renderContext()
	n.bboxMinX, n.bboxMinY, n.bboxMaxX, n.bboxMaxY = ctx.bounds(n.w, n.h)
	sc := n.boundsBase(p)
	switch {
	case sc.Empty():
		n.outOfBounds = boundsClipped
	case n.bboxMinX < sc.X+sc.Width && n.bboxMaxX > sc.X &&
		n.bboxMinY < sc.Y+sc.Height && n.bboxMaxY > sc.Y:
		n.outOfBounds = boundsIn
	case n.clipping || n.clipbox || n.rttEnabled():
		n.outOfBounds = boundsClipped
	default:
		n.outOfBounds = boundsMarginOnly
	}
}

// margins returns the left, top, right and bottom margin for n, and false if
// the margin is disabled.
func (n *Node) margins(fc *FrameContext) ([4]float64, bool) {
	if n.boundsMargin != nil {
		return *n.boundsMargin, true
	}
	if fc.boundsMargin < 0 {
		return [4]float64{}, false
	}
	m := fc.boundsMargin
	return [4]float64{m, m, m, m}, true
}

// updateWithinBoundsMargin decides whether n is close enough to its scissor
// to be active. A clipped node that is within the margin is downgraded to
// boundsMarginOnly so its subtree keeps being visited.
func (n *Node) updateWithinBoundsMargin(fc *FrameContext) {
	within := n.outOfBounds == boundsIn
	if !within {
		if m, ok := n.margins(fc); ok {
			within = n.bboxWithinMargin(n.boundsBase(n.parent), m)
		}
	}
	if within && n.outOfBounds == boundsClipped {
		n.outOfBounds = boundsMarginOnly
	}
	n.setWithinBoundsMargin(within)
}

func (n *Node) bboxWithinMargin(sc Rect, m [4]float64) bool {
	if sc.Empty() {
		return false
	}
	left, top, right, bottom := m[0], m[1], m[2], m[3]
	// Quick reject: farther away than the largest margin on any side.
	maxMargin := max(left, top, right, bottom)
	overshoot := max(sc.X-n.bboxMaxX, n.bboxMinX-(sc.X+sc.Width),
		sc.Y-n.bboxMaxY, n.bboxMinY-(sc.Y+sc.Height))
	if overshoot > maxMargin {
		return false
	}
	return n.bboxMaxX >= sc.X-left && n.bboxMinX <= sc.X+sc.Width+right &&
		n.bboxMaxY >= sc.Y-top && n.bboxMinY <= sc.Y+sc.Height+bottom
}

// setWithinBoundsMargin flips the flag and notifies. Entering the margin
// activates the node's texture, leaving it releases the interest and aborts
// a load still in flight.
func (n *Node) setWithinBoundsMargin(v bool) {
	if n.withinBoundsMargin == v {
		return
	}
	n.withinBoundsMargin = v
	if v {
		n.activateTexture()
	} else {
		n.deactivateTexture()
	}
	if n.owner != nil {
		n.owner.OnWithinBoundsMargin(n, v)
	}
}
