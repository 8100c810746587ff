package arbor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Batching ---

func TestSiblingsShareOneOperation(t *testing.T) {
	s := newTestStage(640, 480)
	const n = 50
	for i := range n {
		r := NewRect("r", 8, 8, Color{float64(i) / n, 0.5, 0.5, 1})
		r.SetPosition(float64(i*10%600), float64(i*10/600*10))
		s.Root().AddChild(r)
	}
	b := record(s)

	require.Len(t, b.Operations(), 1)
	op := b.Operations()[0]
	assert.Equal(t, n, op.Length)
	assert.Equal(t, 0, op.Index)
	assert.Same(t, b.defaultShader, op.Shader)
	_, _, offscreen := op.Target()
	assert.False(t, offscreen)
	assert.Equal(t, n, b.Buffer().Len())
}

func TestShaderChangeSplitsOperations(t *testing.T) {
	s := newTestStage(640, 480)
	sh := &recordingShader{name: "gray"}
	for i := range 5 {
		r := NewRect("r", 8, 8, ColorWhite)
		r.SetPosition(float64(i*10), 0)
		if i == 2 {
			r.SetShader(sh)
		}
		s.Root().AddChild(r)
	}
	b := record(s)

	ops := b.Operations()
	require.Len(t, ops, 3)
	assert.Equal(t, []int{2, 1, 2}, []int{ops[0].Length, ops[1].Length, ops[2].Length})
	assert.Equal(t, Shader(sh), ops[1].Shader)
	assert.Equal(t, "r", ops[1].ShaderOwner.Name)
}

func TestShaderOwnerSplitsOperations(t *testing.T) {
	s := newTestStage(640, 480)
	sh := &recordingShader{name: "shared"}
	for i := range 2 {
		r := NewRect("r", 8, 8, ColorWhite)
		r.SetPosition(float64(i*10), 0)
		r.SetShader(sh)
		s.Root().AddChild(r)
	}
	b := record(s)
	assert.Len(t, b.Operations(), 2)
}

func TestInheritedShaderBatchesSubtree(t *testing.T) {
	s := newTestStage(640, 480)
	group := NewNode("group")
	group.SetShader(&recordingShader{name: "g"})
	s.Root().AddChild(group)
	for i := range 4 {
		r := NewRect("r", 8, 8, ColorWhite)
		r.SetPosition(float64(i*10), 0)
		group.AddChild(r)
	}
	b := record(s)
	require.Len(t, b.Operations(), 1)
	assert.Same(t, group, b.Operations()[0].ShaderOwner)
}

func TestDefaultBehavingShaderBatchesWithDefault(t *testing.T) {
	s := newTestStage(640, 480)
	gray := NewGrayscaleShader(0)
	for i := range 3 {
		r := NewRect("r", 8, 8, ColorWhite)
		r.SetPosition(float64(i*10), 0)
		if i == 1 {
			r.SetShader(gray)
		}
		s.Root().AddChild(r)
	}
	b := record(s)
	require.Len(t, b.Operations(), 1)

	gray.Amount = 1
	b = record(s)
	assert.Len(t, b.Operations(), 3)
}

func TestClippingSplitsOperations(t *testing.T) {
	s := newTestStage(640, 480)
	before := NewRect("before", 8, 8, ColorWhite)
	clip := NewRect("clip", 100, 100, ColorWhite)
	clip.SetPosition(50, 50)
	clip.SetClipping(true)
	inner := NewRect("inner", 200, 200, ColorWhite)
	clip.AddChild(inner)
	after := NewRect("after", 8, 8, ColorWhite)
	for _, n := range []*Node{before, clip, after} {
		s.Root().AddChild(n)
	}
	b := record(s)

	ops := b.Operations()
	require.Len(t, ops, 3)
	assert.Equal(t, 1, ops[0].Length)
	// The clipping node's own quad is clipped like its children.
	assert.Equal(t, Rect{X: 50, Y: 50, Width: 100, Height: 100}, ops[1].Scissor)
	assert.Equal(t, 2, ops[1].Length)
	assert.Equal(t, Rect{Width: 640, Height: 480}, ops[2].Scissor)
}

func TestInvisibleAndOutOfBoundsNodesEmitNothing(t *testing.T) {
	s := newTestStage(100, 100)
	hidden := NewRect("hidden", 8, 8, ColorWhite)
	hidden.SetVisible(false)
	faded := NewRect("faded", 8, 8, ColorWhite)
	faded.SetAlpha(0)
	off := NewRect("off", 8, 8, ColorWhite)
	off.SetPosition(500, 500)
	empty := NewNode("empty")
	for _, n := range []*Node{hidden, faded, off, empty} {
		s.Root().AddChild(n)
	}
	b := record(s)
	assert.Zero(t, b.Buffer().Len())
	assert.Empty(t, b.Operations())
}

func TestQuadBufferOverflowPanics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 100, 100
	cfg.BufferMemory = 2 * quadWords * 4
	s := NewStage(cfg)
	for range 3 {
		s.Root().AddChild(NewRect("r", 8, 8, ColorWhite))
	}
	assert.Panics(t, func() { record(s) })
}

// --- Quad words ---

func TestQuadVertexLayout(t *testing.T) {
	buf := newQuadBuffer(1)
	ctx := RenderContext{Alpha: 1, Px: 10, Py: 20, Ta: 2, Td: 3}
	i := buf.add(&ctx, 5, 4, [4]float64{0, 0, 1, 1}, &whiteCorners, WhitePixel)
	require.Equal(t, 0, i)

	var verts [4][2]float32
	q := buf.Quad(0)
	for v := range 4 {
		verts[v] = [2]float32{math.Float32frombits(q[v*vertexWords]), math.Float32frombits(q[v*vertexWords+1])}
	}
	assert.Equal(t, [4][2]float32{{10, 20}, {20, 20}, {20, 32}, {10, 32}}, verts)
	u, v := unpackUV(q[2*vertexWords+2])
	assert.Equal(t, [2]float32{1, 1}, [2]float32{u, v})
}

func TestIdentityQuadMatchesIdentityContext(t *testing.T) {
	buf := newQuadBuffer(1)
	buf.add(&identityContext, 100, 100, [4]float64{0, 0, 1, 1}, &whiteCorners, WhitePixel)
	assert.Equal(t, identityQuad(100, 100), [quadWords]uint32(buf.Quad(0)))
}

// --- Render-to-texture elision ---

func TestSingleIdentityQuadTextureIsReused(t *testing.T) {
	s := newTestStage(640, 480)
	img := ebitenImage(100, 100)
	img.Fill(ColorWhite.toRGBA())

	container := NewNode("container")
	container.SetSize(100, 100)
	container.SetPosition(20, 30)
	container.Texturizer().SetEnabled(true)
	rect := NewSprite("rect", NewTexture(NewImageSource("opaque", img)))
	container.AddChild(rect)
	s.Root().AddChild(container)

	b := record(s)
	tz := container.Texturizer()
	require.NotNil(t, tz.result)
	assert.Same(t, img, tz.Image(), "the sprite's image stands in for the texture")
	assert.Nil(t, tz.result.pooled, "no target stays allocated")
	assert.Equal(t, 1, s.pool.freeCount(), "the acquired target went back to the pool")

	// Only the screen operation remains, drawing the reused image.
	require.Len(t, b.Operations(), 1)
	_, _, offscreen := b.Operations()[0].Target()
	assert.False(t, offscreen)
	require.Equal(t, 1, b.Buffer().Len())
	assert.Same(t, img, b.Buffer().Image(0))
}

func TestIdentityRectangleTextureIsReused(t *testing.T) {
	s := newTestStage(1280, 720)
	container := NewNode("container")
	container.SetSize(100, 100)
	container.Texturizer().SetEnabled(true)
	container.AddChild(NewRect("rect", 100, 100, ColorWhite))
	s.Root().AddChild(container)

	b := record(s)
	tz := container.Texturizer()
	require.NotNil(t, tz.result)
	assert.Same(t, WhitePixel, tz.result.reused, "the 1x1 pixel stretched over the quad is the texture")
	assert.Nil(t, tz.result.pooled)
	require.Equal(t, 1, b.Buffer().Len())
	assert.Same(t, WhitePixel, b.Buffer().Image(0))
}

func TestFilteredRectangleTextureIsNotReused(t *testing.T) {
	s := newTestStage(1280, 720)
	container := NewNode("container")
	container.SetSize(100, 100)
	container.Texturizer().SetFilters(&recordingFilter{name: "f"})
	container.AddChild(NewRect("rect", 100, 100, ColorWhite))
	s.Root().AddChild(container)

	record(s)
	tz := container.Texturizer()
	require.NotNil(t, tz.result)
	assert.Nil(t, tz.result.reused, "filters read a full size source")
	assert.NotNil(t, tz.result.pooled)
}

func TestTintedQuadTextureIsNotReused(t *testing.T) {
	s := newTestStage(640, 480)
	img := ebitenImage(100, 100)
	container := NewNode("container")
	container.SetSize(100, 100)
	container.Texturizer().SetEnabled(true)
	rect := NewSprite("rect", NewTexture(NewImageSource("img", img)))
	rect.SetColor(Color{1, 0, 0, 1})
	container.AddChild(rect)
	s.Root().AddChild(container)

	record(s)
	tz := container.Texturizer()
	assert.NotNil(t, tz.result.pooled)
	assert.NotSame(t, img, tz.Image())
}

func TestTwoQuadsAreNotReused(t *testing.T) {
	s := newTestStage(640, 480)
	img := ebitenImage(100, 100)
	container := NewNode("container")
	container.SetSize(100, 100)
	container.Texturizer().SetEnabled(true)
	container.AddChild(NewSprite("a", NewTexture(NewImageSource("a", img))))
	container.AddChild(NewRect("b", 10, 10, ColorWhite))
	s.Root().AddChild(container)

	b := record(s)
	assert.NotNil(t, container.Texturizer().result.pooled)
	assert.Len(t, b.Operations(), 2)
}
