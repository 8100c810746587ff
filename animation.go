package arbor

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to 4 values of a Node simultaneously through its
// setters. Create one via the convenience constructors (TweenPosition,
// TweenScale, TweenColor, TweenAlpha, TweenRotation) and either call
// Update(dt) each frame or hand it to Stage.Animate. If the target node is
// disposed, the group stops immediately.
type TweenGroup struct {
	tweens [4]*gween.Tween
	count  int
	apply  func(v *[4]float64)
	target *Node
	Done   bool
}

func newTweenGroup(n *Node, from, to []float64, duration float32, fn ease.TweenFunc, apply func(v *[4]float64)) *TweenGroup {
	g := &TweenGroup{count: len(from), target: n, apply: apply}
	for i := range from {
		g.tweens[i] = gween.New(float32(from[i]), float32(to[i]), duration, fn)
	}
	return g
}

// Update advances all tweens by dt seconds and applies the values to the
// target. If the target node has been disposed, Done is set to true and no
// writes occur.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if g.target != nil && g.target.IsDisposed() {
		g.Done = true
		return
	}

	var vals [4]float64
	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		vals[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone
	g.apply(&vals)
}

// TweenPosition animates the node's position to (toX, toY).
func TweenPosition(n *Node, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	x, y := n.Position()
	return newTweenGroup(n, []float64{x, y}, []float64{toX, toY}, duration, fn, func(v *[4]float64) {
		n.SetPosition(v[0], v[1])
	})
}

// TweenScale animates the node's scale to (toSX, toSY).
func TweenScale(n *Node, toSX, toSY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	sx, sy := n.Scale()
	return newTweenGroup(n, []float64{sx, sy}, []float64{toSX, toSY}, duration, fn, func(v *[4]float64) {
		n.SetScale(v[0], v[1])
	})
}

// TweenColor animates all four corners from the top-left corner's color to
// the target color.
func TweenColor(n *Node, to Color, duration float32, fn ease.TweenFunc) *TweenGroup {
	c := n.colors.TopLeft
	return newTweenGroup(n, []float64{c.R, c.G, c.B, c.A}, []float64{to.R, to.G, to.B, to.A}, duration, fn, func(v *[4]float64) {
		n.SetColor(Color{v[0], v[1], v[2], v[3]})
	})
}

// TweenAlpha animates the node's alpha.
func TweenAlpha(n *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(n, []float64{n.Alpha()}, []float64{to}, duration, fn, func(v *[4]float64) {
		n.SetAlpha(v[0])
	})
}

// TweenRotation animates the node's rotation in radians.
func TweenRotation(n *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(n, []float64{n.Rotation()}, []float64{to}, duration, fn, func(v *[4]float64) {
		n.SetRotation(v[0])
	})
}
