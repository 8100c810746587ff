package arbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tanema/gween/ease"
)

func finish(g *TweenGroup) {
	for i := 0; i < 100 && !g.Done; i++ {
		g.Update(0.1)
	}
}

func TestTweenGroups(t *testing.T) {
	n := NewRect("n", 10, 10, ColorWhite)

	finish(TweenPosition(n, 30, -5, 1, ease.Linear))
	x, y := n.Position()
	assert.InDelta(t, 30, x, 1e-4)
	assert.InDelta(t, -5, y, 1e-4)

	finish(TweenScale(n, 2, 3, 1, ease.OutCubic))
	sx, sy := n.Scale()
	assert.InDelta(t, 2, sx, 1e-4)
	assert.InDelta(t, 3, sy, 1e-4)

	finish(TweenRotation(n, 1.5, 1, ease.InOutSine))
	assert.InDelta(t, 1.5, n.Rotation(), 1e-4)

	finish(TweenAlpha(n, 0.25, 1, ease.Linear))
	assert.InDelta(t, 0.25, n.Alpha(), 1e-4)

	finish(TweenColor(n, Color{0.5, 0, 1, 1}, 1, ease.Linear))
	c := n.Colors().BottomRight
	assert.InDelta(t, 0.5, c.R, 1e-4)
	assert.InDelta(t, 0, c.G, 1e-4)
	assert.InDelta(t, 1, c.B, 1e-4)
}

func TestTweenIntermediateValue(t *testing.T) {
	n := NewNode("n")
	g := TweenAlpha(n, 0, 2, ease.Linear)
	g.Update(0.5)
	assert.InDelta(t, 0.75, n.Alpha(), 1e-4)
	assert.False(t, g.Done)
}

func TestTweenStopsOnDisposedTarget(t *testing.T) {
	n := NewNode("n")
	g := TweenPosition(n, 100, 100, 1, ease.Linear)
	g.Update(0.5)
	n.Dispose()

	g.Update(0.5)
	assert.True(t, g.Done)
	x, _ := n.Position()
	assert.InDelta(t, 50, x, 1e-4, "no writes after disposal")
}
