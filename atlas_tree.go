package arbor

// atlasMargin is the padding in pixels kept around every atlased image, one
// pixel on each side, so linear filtering never samples a neighbor.
const atlasMargin = 2

// atlasNode is a rectangle of the atlas surface. A leaf is either free or
// holds one image in its top-left corner; an occupied node's remaining area
// is split into the right and down children.
type atlasNode struct {
	x, y, w, h int
	used       bool
	right      *atlasNode
	down       *atlasNode
	parent     *atlasNode

	// maxFreeHeight is the height of the tallest free leaf in the subtree,
	// so whole subtrees are rejected without a walk.
	maxFreeHeight int
}

// atlasTree packs rectangles with a guillotine split into a fixed surface.
type atlasTree struct {
	root *atlasNode
	w, h int
}

func newAtlasTree(w, h int) *atlasTree {
	t := &atlasTree{w: w, h: h}
	t.reset()
	return t
}

// reset frees the whole surface.
func (t *atlasTree) reset() {
	t.root = &atlasNode{w: t.w, h: t.h, maxFreeHeight: t.h}
}

// insert places a w x h image and returns the position of its pixels, or ok
// false when no free rectangle fits it. The smallest free rectangle that
// fits is used.
func (t *atlasTree) insert(w, h int) (x, y int, ok bool) {
	tw, th := w+atlasMargin, h+atlasMargin
	n := findSmallest(t.root, tw, th)
	if n == nil {
		return 0, 0, false
	}
	n.used = true
	if n.w > tw {
		n.right = &atlasNode{x: n.x + tw, y: n.y, w: n.w - tw, h: th, parent: n}
		n.right.maxFreeHeight = th
	}
	if n.h > th {
		n.down = &atlasNode{x: n.x, y: n.y + th, w: n.w, h: n.h - th, parent: n}
		n.down.maxFreeHeight = n.h - th
	}
	for p := n; p != nil; p = p.parent {
		p.maxFreeHeight = p.subtreeFreeHeight()
	}
	return n.x + atlasMargin/2, n.y + atlasMargin/2, true
}

func (n *atlasNode) subtreeFreeHeight() int {
	if !n.used {
		return n.h
	}
	m := 0
	if n.right != nil {
		m = n.right.maxFreeHeight
	}
	if n.down != nil {
		m = max(m, n.down.maxFreeHeight)
	}
	return m
}

func findSmallest(n *atlasNode, w, h int) *atlasNode {
	if n == nil || n.maxFreeHeight < h {
		return nil
	}
	if !n.used {
		if n.w >= w && n.h >= h {
			return n
		}
		return nil
	}
	a := findSmallest(n.right, w, h)
	b := findSmallest(n.down, w, h)
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.w*b.h < a.w*a.h:
		return b
	}
	return a
}
