package arbor

import (
	"errors"
	"image"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiltersRunBeforeLaterOperations(t *testing.T) {
	var log []string
	s := newTestStage(320, 240)

	panel := NewNode("panel")
	panel.SetSize(50, 50)
	panel.SetShader(&recordingShader{name: "content", log: &log})
	panel.Texturizer().SetFilters(&recordingFilter{name: "filter", log: &log})
	panel.AddChild(NewRect("child", 10, 10, ColorWhite))
	s.Root().AddChild(panel)

	sibling := NewRect("sibling", 10, 10, ColorWhite)
	sibling.SetPosition(100, 0)
	sibling.SetShader(&recordingShader{name: "sibling", log: &log})
	s.Root().AddChild(sibling)

	runFrame(s)
	assert.Equal(t, []string{"content", "filter", "sibling"}, log)

	b := s.batcher
	require.Len(t, b.FilterOperations(), 1)
	assert.Equal(t, 1, b.FilterOperations()[0].BeforeOp)
	assert.Same(t, panel, b.FilterOperations()[0].Owner)

	st := s.Stats()
	assert.Equal(t, 1, st.FilterOps)
	assert.Equal(t, 1, st.Exec.FilterOps)
	assert.Equal(t, 3, st.Exec.QuadOps)
}

func TestParentShaderIsNotAppliedInsideTexture(t *testing.T) {
	s := newTestStage(320, 240)
	outer := NewNode("outer")
	outerShader := &recordingShader{name: "outer"}
	outer.SetShader(outerShader)
	s.Root().AddChild(outer)

	panel := NewNode("panel")
	panel.SetSize(50, 50)
	panel.Texturizer().SetEnabled(true)
	panel.AddChild(NewRect("child", 10, 10, ColorWhite))
	outer.AddChild(panel)

	b := record(s)
	ops := b.Operations()
	require.Len(t, ops, 2)
	_, _, offscreen := ops[0].Target()
	require.True(t, offscreen)
	assert.Same(t, b.defaultShader, ops[0].Shader, "the outer shader applies to the texture quad only")
	assert.Equal(t, Shader(outerShader), ops[1].Shader)
}

// failingShader returns an error from Draw.
type failingShader struct {
	recordingShader
}

func (s *failingShader) Draw(*ebiten.Image, *QuadBuffer, *QuadOperation) error {
	return errors.New("boom")
}

func TestFailingOperationIsSkipped(t *testing.T) {
	var log []string
	s := newTestStage(320, 240)
	bad := NewRect("bad", 10, 10, ColorWhite)
	bad.SetShader(&failingShader{})
	good := NewRect("good", 10, 10, ColorWhite)
	good.SetShader(&recordingShader{name: "good", log: &log})
	s.Root().AddChild(bad)
	s.Root().AddChild(good)

	logs := captureLogs(t)
	assert.NotPanics(t, func() { runFrame(s) })
	assert.Equal(t, []string{"good"}, log)
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "boom", "failures go to the installed logger")
}

func TestExecutorStats(t *testing.T) {
	s := newTestStage(320, 240)
	img := ebitenImage(4, 4)
	for i := range 3 {
		r := NewRect("r", 8, 8, ColorWhite)
		r.SetPosition(float64(i*10), 0)
		s.Root().AddChild(r)
	}
	spr := NewSprite("spr", NewTexture(NewImageSource("img", img)))
	spr.SetPosition(50, 0)
	s.Root().AddChild(spr)

	runFrame(s)
	st := s.Stats().Exec
	assert.Equal(t, 1, st.QuadOps)
	assert.Equal(t, 2, st.DrawCalls, "one per image run")
	assert.Equal(t, 1, st.StateChanges)
}

func TestScissorRect(t *testing.T) {
	tests := []struct {
		in   Rect
		want image.Rectangle
	}{
		{Rect{0, 0, 10, 10}, image.Rect(0, 0, 10, 10)},
		{Rect{0.5, 0.5, 9, 9}, image.Rect(0, 0, 10, 10)},
		{Rect{-1.5, 2, 3, 1.5}, image.Rect(-2, 2, 2, 4)},
		{Rect{5, 5, 0, 0}, image.Rectangle{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scissorRect(tt.in), "%+v", tt.in)
	}
}

func TestImageRuns(t *testing.T) {
	a, b := ebitenImage(1, 1), ebitenImage(1, 1)
	buf := newQuadBuffer(8)
	for _, img := range []*ebiten.Image{a, a, b, b, a} {
		buf.add(&identityContext, 1, 1, [4]float64{0, 0, 1, 1}, &whiteCorners, img)
	}
	assert.Equal(t, 3, imageRuns(buf, &QuadOperation{Index: 0, Length: 5}))
	assert.Equal(t, 1, imageRuns(buf, &QuadOperation{Index: 2, Length: 2}))
	assert.Equal(t, 1, imageRuns(buf, &QuadOperation{Index: 0, Length: 0}), "empty operations still invoke the shader")
}

func TestEmptyInvokerKeepsEmptyOperation(t *testing.T) {
	b := newQuadBatcher(4, NewDefaultShader())
	b.reset(Rect{Width: 10, Height: 10})
	b.setShader(&clearingShader{}, nil)
	b.setShader(b.defaultShader, nil)
	b.finish()
	require.Len(t, b.Operations(), 1)
	assert.IsType(t, &clearingShader{}, b.Operations()[0].Shader)
}

func TestEmptyInvokerRunsWithoutQuads(t *testing.T) {
	s := newTestStage(100, 100)
	var log []string
	fx := NewNode("fx")
	fx.SetSize(10, 10)
	fx.SetShader(&clearingShader{recordingShader{name: "clear", log: &log}})
	s.Root().AddChild(fx)

	plain := NewNode("plain")
	plain.SetSize(10, 10)
	plain.SetShader(&recordingShader{name: "plain", log: &log})
	s.Root().AddChild(plain)

	runFrame(s)
	assert.Equal(t, []string{"clear"}, log, "only the empty invoker is drawn")
	assert.Equal(t, 1, s.Stats().Exec.QuadOps)
	assert.Zero(t, s.Stats().Quads)
}

type clearingShader struct {
	recordingShader
}

func (*clearingShader) InvokeWhenEmpty() bool { return true }
