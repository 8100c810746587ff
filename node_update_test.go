package arbor

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naiveWorld recomputes the world context of n from scratch by composing
// the local contexts of its ancestors.
func naiveWorld(n *Node) RenderContext {
	local := RenderContext{
		Alpha: n.localAlpha(),
		Px:    n.x, Py: n.y,
		Ta: n.ta, Tb: n.tb, Tc: n.tc, Td: n.td,
	}
	parent := identityContext
	if n.parent != nil && !n.parent.synthetic {
		parent = naiveWorld(n.parent)
	}
	var out RenderContext
	out.compose(&parent, &local)
	return out
}

func assertContextEqual(t *testing.T, want, got RenderContext, msg string) {
	t.Helper()
	const eps = 1e-9
	assert.InDelta(t, want.Alpha, got.Alpha, eps, msg)
	assert.InDelta(t, want.Px, got.Px, eps, msg)
	assert.InDelta(t, want.Py, got.Py, eps, msg)
	assert.InDelta(t, want.Ta, got.Ta, eps, msg)
	assert.InDelta(t, want.Tb, got.Tb, eps, msg)
	assert.InDelta(t, want.Tc, got.Tc, eps, msg)
	assert.InDelta(t, want.Td, got.Td, eps, msg)
}

// randomTree attaches count random nodes below root.
func randomTree(rng *rand.Rand, root *Node, count int) []*Node {
	nodes := []*Node{root}
	for i := 0; i < count; i++ {
		n := NewRect("n", 1+rng.Float64()*20, 1+rng.Float64()*20, ColorWhite)
		n.SetPosition(rng.Float64()*40-20, rng.Float64()*40-20)
		nodes[rng.IntN(len(nodes))].AddChild(n)
		nodes = append(nodes, n)
	}
	return nodes
}

// mutate applies one random attribute or structure change to a node of
// nodes. nodes[0] is the stage root and is never reparented.
func mutate(rng *rand.Rand, nodes []*Node) {
	n := nodes[1+rng.IntN(len(nodes)-1)]
	switch rng.IntN(8) {
	case 0:
		n.SetPosition(rng.Float64()*40-20, rng.Float64()*40-20)
	case 1:
		n.SetScale(0.5+rng.Float64(), 0.5+rng.Float64())
	case 2:
		n.SetRotation(rng.Float64() * 2 * math.Pi)
	case 3:
		n.SetAlpha([]float64{0, 0.25, 0.5, 1}[rng.IntN(4)])
	case 4:
		n.SetVisible(rng.IntN(3) != 0)
	case 5:
		n.SetTransform(rng.Float64()+0.5, rng.Float64()-0.5, rng.Float64()-0.5, rng.Float64()+0.5)
	case 6:
		p := nodes[rng.IntN(len(nodes))]
		if !isAncestor(n, p) {
			p.AddChild(n)
		}
	case 7:
		n.SetZIndex(rng.IntN(3) - 1)
	}
}

func TestDirtyPropagationMatchesRecompute(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		// A large stage keeps every node inside the viewport, so no subtree
		// is skipped as clipped.
		s := newTestStage(100000, 100000)
		s.Root().SetPosition(50000, 50000)
		nodes := randomTree(rng, s.Root(), 40)

		for round := 0; round < 30; round++ {
			for range 1 + rng.IntN(6) {
				mutate(rng, nodes)
			}
			s.Step(1.0 / 60)

			for _, n := range nodes {
				want := naiveWorld(n)
				if want.Alpha == 0 {
					require.Zero(t, n.WorldAlpha(), "seed %d round %d node %d", seed, round, n.ID)
					continue
				}
				assertContextEqual(t, want, n.WorldContext(), "world context")
				if t.Failed() {
					t.Fatalf("seed %d round %d node %d", seed, round, n.ID)
				}
			}
		}
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	s := newTestStage(400, 300)
	nodes := randomTree(rng, s.Root(), 30)
	elems := make([]*recordingElement, len(nodes))
	for i, n := range nodes {
		elems[i] = &recordingElement{}
		n.SetOwner(elems[i])
	}
	for range 10 {
		mutate(rng, nodes)
	}
	s.Step(1.0 / 60)

	snapshot := func() []RenderContext {
		out := make([]RenderContext, len(nodes))
		for i, n := range nodes {
			out[i] = n.WorldContext()
		}
		return out
	}
	counts := func() []recordingElement {
		out := make([]recordingElement, len(elems))
		for i, e := range elems {
			out[i] = *e
		}
		return out
	}
	before, notified := snapshot(), counts()

	s.Step(1.0 / 60)
	assert.Zero(t, s.Stats().Recalculated)
	assert.Equal(t, before, snapshot())
	assert.Equal(t, notified, counts())
	assert.False(t, s.Root().hasUpdates)
}

func TestUpdateSkipsUnchangedSubtrees(t *testing.T) {
	s := newTestStage(400, 300)
	a, b := NewNode("a"), NewNode("b")
	s.Root().AddChild(a)
	s.Root().AddChild(b)
	for range 10 {
		a.AddChild(NewNode("leaf"))
	}
	s.Step(1.0 / 60)

	b.SetPosition(1, 1)
	s.Step(1.0 / 60)
	assert.Equal(t, 2, s.Stats().Recalculated, "root and b")
	assert.LessOrEqual(t, s.Stats().Visited, 3)
}

func TestClippedParentClipsDescendants(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, 17))
		s := newTestStage(200, 200)
		nodes := randomTree(rng, s.Root(), 40)
		for round := 0; round < 20; round++ {
			for range 1 + rng.IntN(5) {
				n := nodes[1+rng.IntN(len(nodes)-1)]
				switch rng.IntN(4) {
				case 0:
					n.SetPosition(rng.Float64()*800-400, rng.Float64()*800-400)
				case 1:
					n.SetClipping(rng.IntN(2) == 0)
				case 2:
					n.SetClipbox(rng.IntN(2) == 0)
				case 3:
					n.SetScale(0.5+rng.Float64()*2, 0.5+rng.Float64()*2)
				}
			}
			s.Step(1.0 / 60)

			for _, n := range nodes {
				if n.outOfBounds != boundsClipped {
					continue
				}
				for _, d := range preorder(n)[1:] {
					require.Equal(t, boundsClipped, d.outOfBounds,
						"seed %d round %d: %s under clipped %s", seed, round, nodePath(d), nodePath(n))
					require.False(t, d.IsInBounds())
				}
			}
		}
	}
}

func TestOutOfBoundsStates(t *testing.T) {
	s := newTestStage(100, 100)
	s.SetBoundsMargin(50)
	in := NewRect("in", 10, 10, ColorWhite)
	near := NewRect("near", 10, 10, ColorWhite)
	near.SetPosition(120, 0)
	far := NewRect("far", 10, 10, ColorWhite)
	far.SetPosition(500, 0)
	for _, n := range []*Node{in, near, far} {
		s.Root().AddChild(n)
	}
	s.Step(1.0 / 60)

	assert.Equal(t, boundsIn, in.outOfBounds)
	assert.True(t, in.WithinBoundsMargin())
	assert.Equal(t, boundsMarginOnly, near.outOfBounds)
	assert.True(t, near.WithinBoundsMargin())
	assert.Equal(t, boundsMarginOnly, far.outOfBounds)
	assert.False(t, far.WithinBoundsMargin())
}

func TestClippingNodeOutsideIsClipped(t *testing.T) {
	s := newTestStage(100, 100)
	s.SetBoundsMargin(-1)
	box := NewRect("box", 10, 10, ColorWhite)
	box.SetClipping(true)
	box.SetPosition(300, 300)
	child := NewRect("child", 10, 10, ColorWhite)
	child.SetPosition(-300, -300)
	box.AddChild(child)
	s.Root().AddChild(box)
	s.Step(1.0 / 60)

	assert.Equal(t, boundsClipped, box.outOfBounds)
	assert.Equal(t, boundsClipped, child.outOfBounds)

	box.SetPosition(0, 0)
	s.Step(1.0 / 60)
	assert.Equal(t, boundsIn, box.outOfBounds)
	// The child lies outside the clipping box but may have visible
	// descendants.
	assert.Equal(t, boundsMarginOnly, child.outOfBounds)
	assert.False(t, child.IsInBounds())
}

func TestBoundsMarginNotifications(t *testing.T) {
	s := newTestStage(100, 100)
	s.SetBoundsMargin(10)
	n := NewRect("n", 10, 10, ColorWhite)
	e := &recordingElement{}
	n.SetOwner(e)
	s.Root().AddChild(n)
	s.Step(1.0 / 60)
	assert.Equal(t, 1, e.enter)

	n.SetPosition(105, 0)
	s.Step(1.0 / 60)
	assert.Equal(t, 0, e.leave, "inside the margin")

	n.SetPosition(500, 0)
	s.Step(1.0 / 60)
	assert.Equal(t, 1, e.leave)

	n.SetVisible(false)
	n.SetPosition(0, 0)
	s.Step(1.0 / 60)
	assert.Equal(t, 1, e.enter, "hidden nodes stay inactive")

	n.SetVisible(true)
	s.Step(1.0 / 60)
	assert.Equal(t, 2, e.enter)
}

func TestPerNodeBoundsMargin(t *testing.T) {
	s := newTestStage(100, 100)
	s.SetBoundsMargin(0)
	n := NewRect("n", 10, 10, ColorWhite)
	n.SetPosition(-30, 0)
	s.Root().AddChild(n)
	s.Step(1.0 / 60)
	assert.False(t, n.WithinBoundsMargin())

	n.SetBoundsMargin(&[4]float64{25, 0, 0, 0})
	s.Step(1.0 / 60)
	assert.True(t, n.WithinBoundsMargin())
}

// reentrantElement moves its node back into view when it leaves the margin.
type reentrantElement struct {
	calls int
}

func (e *reentrantElement) OnWithinBoundsMargin(n *Node, within bool) {
	e.calls++
	if !within {
		n.SetPosition(0, 0)
	}
}

func TestElementRecalcIsReappliedOnce(t *testing.T) {
	s := newTestStage(100, 100)
	s.SetBoundsMargin(-1)
	n := NewRect("n", 10, 10, ColorWhite)
	s.Root().AddChild(n)
	s.Step(1.0 / 60)
	require.True(t, n.WithinBoundsMargin())

	e := &reentrantElement{}
	n.SetOwner(e)
	n.SetPosition(500, 500)
	s.Step(1.0 / 60)

	// Leaving triggered the move back, which the same update applied.
	x, y := n.Position()
	assert.Equal(t, [2]float64{0, 0}, [2]float64{x, y})
	assert.True(t, n.WithinBoundsMargin())
	assert.Equal(t, boundsIn, n.outOfBounds)
	assert.Equal(t, 2, e.calls)
}

func TestRenderContextRelativeToTexturizer(t *testing.T) {
	s := newTestStage(400, 400)
	panel := NewNode("panel")
	panel.SetSize(100, 100)
	panel.SetPosition(50, 60)
	panel.Texturizer().SetEnabled(true)
	c := NewRect("c", 10, 10, ColorWhite)
	c.SetPosition(5, 7)
	panel.AddChild(c)
	s.Root().AddChild(panel)
	s.Step(1.0 / 60)

	assert.Equal(t, 55.0, c.WorldContext().Px)
	assert.True(t, c.hasRenderCtx)
	assert.Equal(t, 5.0, c.renderContext().Px)
	assert.Equal(t, 7.0, c.renderContext().Py)

	panel.Texturizer().SetEnabled(false)
	s.Step(1.0 / 60)
	assert.False(t, c.hasRenderCtx)
}
