package arbor

import (
	"cmp"
	"slices"
)

// A z-context is a node whose subtree is painted as a unit: the stage root,
// nodes with a nonzero z-index, nodes rendering to a texture and nodes with
// the force flag. While at least one z-indexed node belongs to a context,
// the context paints the merged list zSorted (its direct zero-z children and
// the z-indexed nodes it owns) instead of its children array.

// isZContext reports whether n composites its subtree as a unit.
func (n *Node) isZContext() bool {
	return n.forceZContext || n.zIndex != 0 || n.isStageRoot() || n.rttEnabled()
}

// zContextOf returns the nearest strict ancestor that is a z-context, or nil
// for nodes that are not attached below one.
func (n *Node) zContextOf() *Node {
	for p := n.parent; p != nil && !p.synthetic; p = p.parent {
		if p.isZContext() {
			return p
		}
	}
	return nil
}

// zContextFor returns the context that children of n are painted in.
func (n *Node) zContextFor() *Node {
	if n.isZContext() {
		return n
	}
	return n.zContextOf()
}

// zIndexedDescendants returns the nonzero z-index descendants of n whose
// nearest context is the one above n. The walk stops at nested contexts.
func (n *Node) zIndexedDescendants() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(p *Node) {
		for _, c := range p.children {
			if c.zIndex != 0 {
				out = append(out, c)
			}
			if !c.isZContext() {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

// zMembers returns what n contributes to ctx: the z-indexed nodes (n itself
// and, unless n is a context, its z-indexed descendants) and n as a direct
// zero-z child.
func (n *Node) zMembers(ctx *Node) (indexed []*Node, direct *Node) {
	if n.zIndex != 0 {
		indexed = append(indexed, n)
	} else if n.parent == ctx {
		direct = n
	}
	if !n.isZContext() {
		indexed = append(indexed, n.zIndexedDescendants()...)
	}
	return indexed, direct
}

// zAdd registers members with ctx. The first z-indexed member seeds the list
// with the direct zero-z children of ctx.
func (ctx *Node) zAdd(indexed []*Node, direct *Node) {
	if ctx.zUsage == 0 {
		if len(indexed) == 0 {
			return
		}
		for _, c := range ctx.children {
			if c.zIndex == 0 {
				ctx.zPending = append(ctx.zPending, c)
			}
		}
	} else if direct != nil {
		ctx.zPending = append(ctx.zPending, direct)
	}
	ctx.zUsage += len(indexed)
	ctx.zPending = append(ctx.zPending, indexed...)
	ctx.markZResort()
}

// zRemove unregisters members from ctx. The lists are dropped once the last
// z-indexed member leaves.
func (ctx *Node) zRemove(indexed []*Node, direct *Node) {
	if ctx.zUsage == 0 {
		return
	}
	for _, m := range indexed {
		ctx.zDrop(m)
	}
	if direct != nil {
		ctx.zDrop(direct)
	}
	ctx.zUsage -= len(indexed)
	if ctx.zUsage <= 0 {
		ctx.zReset()
	}
}

func (ctx *Node) zDrop(m *Node) {
	if i := slices.Index(ctx.zSorted, m); i >= 0 {
		ctx.zSorted = slices.Delete(ctx.zSorted, i, i+1)
		return
	}
	if i := slices.Index(ctx.zPending, m); i >= 0 {
		ctx.zPending = slices.Delete(ctx.zPending, i, i+1)
	}
}

// zRequeue moves members that are already registered into the pending set,
// used when their position in the tree changed.
func (ctx *Node) zRequeue(members []*Node) {
	if ctx.zUsage == 0 || len(members) == 0 {
		return
	}
	for _, m := range members {
		ctx.zDrop(m)
	}
	ctx.zPending = append(ctx.zPending, members...)
	ctx.markZResort()
}

func (ctx *Node) zReset() {
	clear(ctx.zSorted)
	clear(ctx.zPending)
	ctx.zSorted = ctx.zSorted[:0]
	ctx.zPending = ctx.zPending[:0]
	ctx.zUsage = 0
	ctx.zSortPending = false
}

// markZResort schedules a re-sort of ctx. The tree order bit makes the next
// update visit the whole subtree so tie-break stamps are fresh.
func (ctx *Node) markZResort() {
	ctx.zSortPending = true
	ctx.recalc |= recalcTreeOrder
	ctx.setHasUpdates()
	ctx.markContentChanged()
}

// zAttach registers child, just inserted below n, with its context.
func (n *Node) zAttach(child *Node) {
	ctx := n.zContextFor()
	if ctx == nil {
		return
	}
	ctx.zAdd(child.zMembers(ctx))
}

// zDetach unregisters child, about to be removed from n, from its context.
func (n *Node) zDetach(child *Node) {
	ctx := n.zContextFor()
	if ctx == nil {
		return
	}
	ctx.zRemove(child.zMembers(ctx))
}

// zReinsertSubtree requeues child's members after it moved among its
// siblings.
func (n *Node) zReinsertSubtree(child *Node) {
	ctx := n.zContextFor()
	if ctx == nil || ctx.zUsage == 0 {
		return
	}
	indexed, direct := child.zMembers(ctx)
	if direct != nil {
		indexed = append(indexed, direct)
	}
	ctx.zRequeue(indexed)
}

// zContextToggled migrates z-indexed descendants between n and the context
// above it after n started or stopped being a context.
func (n *Node) zContextToggled(wasCtx bool) {
	isCtx := n.isZContext()
	if wasCtx == isCtx {
		return
	}
	outer := n.zContextOf()
	descs := n.zIndexedDescendants()
	if isCtx {
		if outer != nil {
			outer.zRemove(descs, nil)
		}
		n.zAdd(descs, nil)
		return
	}
	n.zReset()
	if outer != nil {
		outer.zAdd(descs, nil)
	}
}

// SetZIndex sets the z-index. Nonzero values make the node a z-context and
// paint it, relative to its context's other members, in ascending z-index
// order with ties broken by tree order.
func (n *Node) SetZIndex(z int) {
	if n.zIndex == z {
		return
	}
	wasCtx := n.isZContext()
	outer := n.zContextOf()
	if outer != nil {
		outer.zRemove(n.zSelf(outer))
	}
	n.zIndex = z
	if outer != nil {
		outer.zAdd(n.zSelf(outer))
	}
	n.zContextToggled(wasCtx)
}

// zSelf is zMembers restricted to n itself.
func (n *Node) zSelf(ctx *Node) (indexed []*Node, direct *Node) {
	if n.zIndex != 0 {
		return []*Node{n}, nil
	}
	if n.parent == ctx {
		return nil, n
	}
	return nil, nil
}

// SetForceZContext makes n a z-context even with a zero z-index.
func (n *Node) SetForceZContext(v bool) {
	if n.forceZContext == v {
		return
	}
	wasCtx := n.isZContext()
	n.forceZContext = v
	n.zContextToggled(wasCtx)
}

func zCompare(a, b *Node) int {
	if c := cmp.Compare(a.zIndex, b.zIndex); c != 0 {
		return c
	}
	return cmp.Compare(a.treeOrder, b.treeOrder)
}

// sortZIndexedChildren sorts the pending members and merges them into the
// already sorted remainder.
func (n *Node) sortZIndexedChildren() {
	n.zSortPending = false
	if len(n.zPending) == 0 {
		return
	}
	slices.SortStableFunc(n.zPending, zCompare)

	merged := n.zScratch[:0]
	sorted, pending := n.zSorted, n.zPending
	i, j := 0, 0
	for i < len(sorted) && j < len(pending) {
		if zCompare(pending[j], sorted[i]) < 0 {
			merged = append(merged, pending[j])
			j++
		} else {
			merged = append(merged, sorted[i])
			i++
		}
	}
	merged = append(merged, sorted[i:]...)
	merged = append(merged, pending[j:]...)

	clear(sorted)
	clear(pending)
	n.zScratch = sorted[:0]
	n.zPending = pending[:0]
	n.zSorted = merged
}

// forEachPainted calls fn for the nodes painted directly by n, in order.
// Nodes with a nonzero z-index are painted by their context instead of their
// parent.
func (n *Node) forEachPainted(fn func(*Node)) {
	if n.zUsage > 0 {
		if n.zSortPending {
			n.sortZIndexedChildren()
		}
		for _, m := range n.zSorted {
			fn(m)
		}
		return
	}
	for _, c := range n.children {
		if c.zIndex == 0 {
			fn(c)
		}
	}
}
