package arbor

import "math"

// Element is the user-facing façade that owns a Node. It is told when the
// node enters or leaves the bounds margin, which is where texture loading is
// enabled or disabled. Setters called on the node from inside the callback
// are applied before the update pass moves on.
type Element interface {
	OnWithinBoundsMargin(n *Node, within bool)
}

// TextureListener is optionally implemented by an Element to observe the
// texture displayed by its node.
type TextureListener interface {
	OnTextureLoaded(n *Node, t *Texture)
	OnTextureError(n *Node, t *Texture, err error)
}

// lastNodeID is a plain counter; tree operations are single-threaded.
var lastNodeID uint32

func newNodeID() uint32 {
	lastNodeID++
	return lastNodeID
}

// boundsState is the out-of-bounds tri-state of a node.
type boundsState uint8

const (
	boundsIn         boundsState = iota // own quad intersects the scissor
	boundsMarginOnly                    // own quad is outside, descendants may be inside
	boundsClipped                       // node and all descendants are outside
)

// Recalc bits. Mutators OR them into Node.recalc; children inherit the
// parent's bits through pRecalc.
const (
	recalcAlpha          uint16 = 1
	recalcTranslate      uint16 = 2
	recalcTransform      uint16 = 4
	recalcBounds         uint16 = 8
	recalcBoundsMargin   uint16 = 16
	recalcBecomesVisible uint16 = 64
	recalcTreeOrder      uint16 = 128

	// recalcAll forces every derived field, used on reparenting.
	recalcAll = recalcAlpha | recalcTranslate | recalcTransform | recalcBounds | recalcBoundsMargin
	// recalcBoundsMask are the bits after which the out-of-bounds state must
	// be recomputed.
	recalcBoundsMask = recalcTranslate | recalcTransform | recalcBounds | recalcBoundsMargin
)

// Node is the scene graph element. A single flat struct is used for all
// nodes to avoid interface dispatch on the hot path; what a node draws is
// decided by its texture (none, a loaded texture, or RectangleTexture).
type Node struct {
	// identification
	ID       uint32
	Name     string
	UserData any

	// tree
	parent    *Node
	children  []*Node
	synthetic bool // the stage root's parent
	owner     Element

	// Local inputs
	x, y               float64
	ta, tb, tc, td     float64
	scaleX, scaleY     float64
	rotation           float64
	alpha              float64
	visible            bool
	w, h               float64
	sizeSet            bool
	colors             Corners
	texCoords          [4]float64 // x1, y1, x2, y2 within the texture region
	zIndex             int
	clipping           bool
	clipbox            bool
	forceZContext      bool
	boundsMargin       *[4]float64 // left, top, right, bottom
	shader             Shader
	texture            *Texture
	textureActive      bool // registered as a user of texture's source
	texturizer         *Texturizer
	disposed           bool

	// Derived
	world        RenderContext
	render       RenderContext
	hasRenderCtx bool
	recalc       uint16
	pRecalc      uint16
	hasUpdates   bool

	bboxMinX, bboxMinY float64
	bboxMaxX, bboxMaxY float64
	scissor            Rect
	outOfBounds        boundsState
	withinBoundsMargin bool
	treeOrder          uint64

	activeShader Shader
	shaderOwner  *Node

	// Z-context state (only used while this node is a z-context root)
	zSorted      []*Node
	zPending     []*Node
	zScratch     []*Node
	zUsage       int
	zSortPending bool
}

// nodeDefaults initializes the fields every constructor shares.
func nodeDefaults(n *Node) {
	n.ID = newNodeID()
	n.ta, n.td = 1, 1
	n.scaleX, n.scaleY = 1, 1
	n.alpha = 1
	n.visible = true
	n.colors = UniformCorners(ColorWhite)
	n.texCoords = [4]float64{0, 0, 1, 1}
	n.outOfBounds = boundsClipped
	n.recalc = recalcAll
}

// NewNode creates an empty node. It draws nothing until a texture is set.
func NewNode(name string) *Node {
	n := &Node{Name: name}
	nodeDefaults(n)
	return n
}

// NewRect creates a solid color rectangle backed by RectangleTexture.
func NewRect(name string, w, h float64, c Color) *Node {
	n := NewNode(name)
	n.SetSize(w, h)
	n.SetColor(c)
	n.SetTexture(RectangleTexture)
	return n
}

// NewSprite creates a node displaying t. Its size follows the texture until
// SetSize is called.
func NewSprite(name string, t *Texture) *Node {
	n := NewNode(name)
	n.SetTexture(t)
	return n
}

// SetOwner attaches the Element façade that receives bounds margin and
// texture notifications.
func (n *Node) SetOwner(e Element) {
	n.owner = e
}

// Owner returns the owning Element, or nil.
func (n *Node) Owner() Element {
	return n.owner
}

// AddChild appends child, detaching it from its current parent first.
// Panics if child is nil, is the stage root, or is an ancestor of this node.
func (n *Node) AddChild(child *Node) {
	n.insertChild(child, -1, "AddChild")
}

// AddChildAt is AddChild inserting at index.
func (n *Node) AddChildAt(child *Node, index int) {
	n.insertChild(child, index, "AddChildAt")
}

func (n *Node) insertChild(child *Node, index int, op string) {
	if child == nil {
		fail(op, n, "cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, op+" (parent)")
		debugCheckDisposed(child, op+" (child)")
	}
	if child.synthetic || child.isStageRoot() {
		fail(op, n, "cannot attach the stage root %q as a child", child.Name)
	}
	if isAncestor(child, n) {
		fail(op, n, "adding %q would create a cycle", child.Name)
	}
	if index > len(n.children) {
		fail(op, n, "child index %d out of range [0, %d]", index, len(n.children))
	}
	if child.parent != nil {
		child.parent.detachChild(child)
	}
	if index < 0 || index > len(n.children) {
		index = len(n.children)
	}
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	n.attachChild(child)
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// RemoveChild detaches child. It panics if child is not a child of n.
func (n *Node) RemoveChild(child *Node) {
	if globalDebug {
		debugCheckDisposed(n, "RemoveChild (parent)")
	}
	if child == nil || child.parent != n {
		fail("RemoveChild", n, "node is not a child of this node")
	}
	n.detachChild(child)
}

// RemoveChildAt detaches the child at index and returns it.
func (n *Node) RemoveChildAt(index int) *Node {
	if index < 0 || index >= len(n.children) {
		fail("RemoveChildAt", n, "child index %d out of range [0, %d)", index, len(n.children))
	}
	child := n.children[index]
	n.detachChild(child)
	return child
}

// RemoveFromParent detaches n, if it has a parent.
func (n *Node) RemoveFromParent() {
	if n.parent == nil {
		return
	}
	if n.isStageRoot() {
		fail("RemoveFromParent", n, "cannot detach the stage root")
	}
	n.parent.detachChild(n)
}

// RemoveChildren detaches every child without disposing it.
func (n *Node) RemoveChildren() {
	for len(n.children) > 0 {
		n.detachChild(n.children[len(n.children)-1])
	}
}

// Parent returns the parent node, or nil for detached nodes and the stage root.
func (n *Node) Parent() *Node {
	if n.parent == nil || n.parent.synthetic {
		return nil
	}
	return n.parent
}

// Children returns the children in paint order of the tree. Do not modify
// the slice.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at index. It panics when index is out of range.
func (n *Node) ChildAt(index int) *Node {
	return n.children[index]
}

// SetChildIndex moves child to a new index among its siblings, changing its
// paint order.
func (n *Node) SetChildIndex(child *Node, index int) {
	if child == nil || child.parent != n {
		fail("SetChildIndex", n, "node is not a child of this node")
	}
	nc := len(n.children)
	if index < 0 || index >= nc {
		fail("SetChildIndex", n, "child index %d out of range [0, %d)", index, nc)
	}
	oldIndex := n.childIndex(child)
	if oldIndex == index {
		return
	}
	if oldIndex < index {
		copy(n.children[oldIndex:], n.children[oldIndex+1:index+1])
	} else {
		copy(n.children[index+1:], n.children[index:oldIndex])
	}
	n.children[index] = child
	n.zReinsertSubtree(child)
	n.markContentChanged()
}

func (n *Node) childIndex(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// attachChild wires a child that was just inserted into n.children.
func (n *Node) attachChild(child *Node) {
	child.parent = n
	n.zAttach(child)
	child.inheritShader(n.activeShader, n.shaderOwner)
	// A previously detached subtree may still carry hasUpdates; reset it so
	// the walk below marks the new ancestors.
	child.hasUpdates = false
	child.setRecalc(recalcAll | recalcBecomesVisible)
	n.markContentChanged()
}

// detachChild removes child from n.children and clears everything that
// depended on its position in the tree.
func (n *Node) detachChild(child *Node) {
	i := n.childIndex(child)
	if i < 0 {
		return
	}
	n.zDetach(child)
	copy(n.children[i:], n.children[i+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
	child.parent = nil
	child.deactivate()
	if child.shader == nil {
		child.inheritShader(nil, nil)
	}
	n.markContentChanged()
}

// deactivate marks a detached subtree as outside the bounds margin, which
// releases texture interest and aborts loads still in flight.
func (n *Node) deactivate() {
	n.outOfBounds = boundsClipped
	n.setWithinBoundsMargin(false)
	for _, c := range n.children {
		c.deactivate()
	}
}

// Dispose removes this node from its parent, marks it as disposed, and
// recursively disposes all descendants. Render textures go back to the pool.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	if n.isStageRoot() {
		fail("Dispose", n, "cannot dispose the stage root; dispose the stage instead")
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.deactivate()
	n.disposed = true
	for _, child := range n.children {
		child.parent = nil
		child.dispose()
	}
	n.children = nil
	n.parent = nil
	if n.texturizer != nil {
		n.texturizer.release()
		n.texturizer = nil
	}
	n.texture = nil
	n.owner = nil
	n.shader = nil
	n.activeShader = nil
	n.shaderOwner = nil
	n.zSorted = nil
	n.zPending = nil
	n.zScratch = nil
	n.UserData = nil
}

// IsDisposed reports whether Dispose ran on n or an ancestor.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// isAncestor reports whether candidate is node or an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// isStageRoot reports whether n is the root node of a stage.
func (n *Node) isStageRoot() bool {
	return n.parent != nil && n.parent.synthetic
}

// setRecalc requests recalculation of the given derived fields.
func (n *Node) setRecalc(bits uint16) {
	n.recalc |= bits
	n.setHasUpdates()
	n.markAncestorsChanged()
}

// setHasUpdates marks n and its ancestors as having pending updates. It
// stops at the first ancestor that is already marked, since the mark then
// already reaches the root.
func (n *Node) setHasUpdates() {
	for p := n; p != nil && !p.hasUpdates; p = p.parent {
		p.hasUpdates = true
	}
}

// markAncestorsChanged invalidates cached render-to-texture results of every
// ancestor, since their content includes n.
func (n *Node) markAncestorsChanged() {
	for p := n.parent; p != nil; p = p.parent {
		if p.texturizer != nil {
			p.texturizer.dirty = true
		}
	}
}

// markContentChanged is markAncestorsChanged including n's own texturizer,
// for changes to what n itself draws.
func (n *Node) markContentChanged() {
	if n.texturizer != nil {
		n.texturizer.dirty = true
	}
	n.markAncestorsChanged()
}

// localAlpha is the alpha this node contributes, zero when hidden.
func (n *Node) localAlpha() float64 {
	if !n.visible {
		return 0
	}
	return n.alpha
}

// Position returns the local translation.
func (n *Node) Position() (x, y float64) {
	return n.x, n.y
}

// SetPosition sets the local translation.
func (n *Node) SetPosition(x, y float64) {
	if n.x == x && n.y == y {
		return
	}
	n.x, n.y = x, y
	n.setRecalc(recalcTranslate)
}

// Transform returns the local 2x2 transform.
func (n *Node) Transform() (a, b, c, d float64) {
	return n.ta, n.tb, n.tc, n.td
}

// SetTransform sets the local 2x2 transform directly. Scale and rotation
// reported by Scale and Rotation are not updated.
func (n *Node) SetTransform(a, b, c, d float64) {
	if n.ta == a && n.tb == b && n.tc == c && n.td == d {
		return
	}
	n.ta, n.tb, n.tc, n.td = a, b, c, d
	n.setRecalc(recalcTransform)
}

// Scale returns the scale last set through SetScale.
func (n *Node) Scale() (sx, sy float64) {
	return n.scaleX, n.scaleY
}

// SetScale sets the scale and rebuilds the local transform from scale and
// rotation.
func (n *Node) SetScale(sx, sy float64) {
	n.scaleX, n.scaleY = sx, sy
	n.applyScaleRotation()
}

// Rotation returns the rotation in radians last set through SetRotation.
func (n *Node) Rotation() float64 {
	return n.rotation
}

// SetRotation sets the rotation in radians (clockwise) and rebuilds the
// local transform from scale and rotation.
func (n *Node) SetRotation(r float64) {
	n.rotation = r
	n.applyScaleRotation()
}

func (n *Node) applyScaleRotation() {
	if n.rotation == 0 {
		n.SetTransform(n.scaleX, 0, 0, n.scaleY)
		return
	}
	sin, cos := math.Sincos(n.rotation)
	n.SetTransform(cos*n.scaleX, -sin*n.scaleY, sin*n.scaleX, cos*n.scaleY)
}

// Alpha returns the local alpha.
func (n *Node) Alpha() float64 {
	return n.alpha
}

// SetAlpha sets the local alpha. Zero hides the node and its subtree.
func (n *Node) SetAlpha(a float64) {
	if a < 0 {
		a = 0
	}
	if n.alpha == a {
		return
	}
	was := n.localAlpha() > 0
	n.alpha = a
	n.alphaChanged(was)
}

// Visible reports the visible flag.
func (n *Node) Visible() bool {
	return n.visible
}

// SetVisible shows or hides the node and its subtree.
func (n *Node) SetVisible(v bool) {
	if n.visible == v {
		return
	}
	was := n.localAlpha() > 0
	n.visible = v
	n.alphaChanged(was)
}

func (n *Node) alphaChanged(wasVisible bool) {
	if !wasVisible && n.localAlpha() > 0 {
		n.setRecalc(recalcAlpha | recalcBecomesVisible)
		return
	}
	n.setRecalc(recalcAlpha)
}

// Size returns the node dimensions. Until SetSize is called they follow the
// displayed texture.
func (n *Node) Size() (w, h float64) {
	return n.w, n.h
}

// SetSize sets explicit dimensions.
func (n *Node) SetSize(w, h float64) {
	n.sizeSet = true
	n.setDimensions(w, h)
}

// ClearSize makes the dimensions follow the displayed texture again.
func (n *Node) ClearSize() {
	n.sizeSet = false
	n.updateDimensionsFromTexture()
}

func (n *Node) setDimensions(w, h float64) {
	if n.w == w && n.h == h {
		return
	}
	n.w, n.h = w, h
	n.setRecalc(recalcBounds)
	n.markContentChanged()
}

// Colors returns the four corner colors.
func (n *Node) Colors() Corners {
	return n.colors
}

// SetColors sets the four corner colors.
func (n *Node) SetColors(c Corners) {
	if n.colors == c {
		return
	}
	n.colors = c
	n.markContentChanged()
}

// SetColor sets all four corners to c.
func (n *Node) SetColor(c Color) {
	n.SetColors(UniformCorners(c))
}

// SetTextureCoords sets the sampled sub-rectangle of the texture region in
// normalized coordinates. The default is (0, 0, 1, 1).
func (n *Node) SetTextureCoords(x1, y1, x2, y2 float64) {
	tc := [4]float64{x1, y1, x2, y2}
	if n.texCoords == tc {
		return
	}
	n.texCoords = tc
	n.markContentChanged()
}

// Shader returns the node's own shader, nil when it inherits one.
func (n *Node) Shader() Shader {
	return n.shader
}

// SetShader sets the shader used for this node and every descendant that
// has no shader of its own. Pass nil to inherit the parent's again.
func (n *Node) SetShader(s Shader) {
	if n.shader == s {
		return
	}
	n.shader = s
	if s != nil {
		n.applyShader(s, n)
		return
	}
	if n.parent != nil {
		n.applyShader(n.parent.activeShader, n.parent.shaderOwner)
	} else {
		n.applyShader(nil, nil)
	}
}

// inheritShader passes the shader of an ancestor down to n unless n has its
// own.
func (n *Node) inheritShader(active Shader, owner *Node) {
	if n.shader != nil {
		n.applyShader(n.shader, n)
		return
	}
	n.applyShader(active, owner)
}

func (n *Node) applyShader(active Shader, owner *Node) {
	if n.activeShader == active && n.shaderOwner == owner {
		return
	}
	n.activeShader = active
	n.shaderOwner = owner
	n.markContentChanged()
	for _, c := range n.children {
		if c.shader == nil {
			c.applyShader(active, owner)
		}
	}
}

// ZIndex returns the z-index.
func (n *Node) ZIndex() int {
	return n.zIndex
}

// Clipping reports whether descendants are clipped to this node's box.
func (n *Node) Clipping() bool {
	return n.clipping
}

// SetClipping enables scissor clipping of the subtree to this node's box.
// Clipping only takes effect while the node's render context has no
// rotation or skew.
func (n *Node) SetClipping(v bool) {
	if n.clipping == v {
		return
	}
	n.clipping = v
	n.setRecalc(recalcBounds)
}

// SetClipbox declares that every descendant lies within this node's box,
// so the subtree can be skipped as a whole once the node is off-screen.
func (n *Node) SetClipbox(v bool) {
	if n.clipbox == v {
		return
	}
	n.clipbox = v
	n.setRecalc(recalcBounds)
}

// SetBoundsMargin overrides the stage bounds margin for this node. Pass nil
// to use the stage default.
func (n *Node) SetBoundsMargin(margin *[4]float64) {
	if margin != nil {
		m := *margin
		margin = &m
	}
	n.boundsMargin = margin
	n.setRecalc(recalcBoundsMargin)
}

// WithinBoundsMargin reports whether the node is close enough to the
// viewport for its texture to be loaded.
func (n *Node) WithinBoundsMargin() bool {
	return n.withinBoundsMargin
}

// IsInBounds reports whether the node's own quad intersects its scissor.
func (n *Node) IsInBounds() bool {
	return n.outOfBounds == boundsIn
}

// WorldContext returns the node's world render context as computed by the
// last update.
func (n *Node) WorldContext() RenderContext {
	return n.world
}

// WorldAlpha returns the composed alpha.
func (n *Node) WorldAlpha() float64 {
	return n.world.Alpha
}

// renderContext returns the context used to paint this node.
func (n *Node) renderContext() *RenderContext {
	if n.hasRenderCtx {
		return &n.render
	}
	return &n.world
}

// LocalToWorld converts a local-space point to world space.
func (n *Node) LocalToWorld(lx, ly float64) (wx, wy float64) {
	return n.world.Apply(lx, ly)
}

// WorldToLocal converts a world-space point to this node's local space.
// Returns the input if the world transform is singular.
func (n *Node) WorldToLocal(wx, wy float64) (lx, ly float64) {
	c := &n.world
	det := c.Ta*c.Td - c.Tb*c.Tc
	if det > -1e-12 && det < 1e-12 {
		return wx, wy
	}
	dx, dy := wx-c.Px, wy-c.Py
	return (c.Td*dx - c.Tb*dy) / det, (c.Ta*dy - c.Tc*dx) / det
}
