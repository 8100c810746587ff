package arbor

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Camera pans, zooms and rotates a world node so that the world point
// (X, Y) appears at the center of Viewport. It writes the view transform
// into the node's local transform, so culling and bounds margins follow the
// camera without any per-node work. Cameras created with Stage.NewCamera are
// advanced at frame start; others need Update.
type Camera struct {
	// X and Y are the world point shown at the viewport center.
	X, Y float64
	// Zoom scales the world; above 1 magnifies.
	Zoom float64
	// Rotation turns the view clockwise, in radians.
	Rotation float64
	// Viewport is the rectangle, in the world node's parent space, the
	// camera centers on.
	Viewport Rect

	// BoundsEnabled keeps the visible area inside Bounds, a world space
	// rectangle. See SetBounds.
	BoundsEnabled bool
	Bounds        Rect

	world  *Node
	follow *cameraFollow
	scroll *cameraScroll

	view RenderContext
	inv  RenderContext
}

type cameraFollow struct {
	target *Node
	dx, dy float64
	lerp   float64
}

// cameraScroll moves the camera along two tweens, one per axis.
type cameraScroll struct {
	axes [2]*gween.Tween
	done [2]bool
}

// step advances both axes and reports whether the scroll finished.
func (s *cameraScroll) step(dt float32, pos [2]*float64) bool {
	for i, t := range s.axes {
		if s.done[i] {
			continue
		}
		v, done := t.Update(dt)
		*pos[i] = float64(v)
		s.done[i] = done
	}
	return s.done[0] && s.done[1]
}

// NewCamera creates a camera driving world's transform.
func NewCamera(world *Node, viewport Rect) *Camera {
	c := &Camera{Zoom: 1, Viewport: viewport, world: world}
	c.apply()
	return c
}

// NewCamera creates a camera driving world and advances it every frame,
// before the tree is updated.
func (s *Stage) NewCamera(world *Node, viewport Rect) *Camera {
	c := NewCamera(world, viewport)
	s.cameras = append(s.cameras, c)
	return c
}

// RemoveCamera stops advancing cam.
func (s *Stage) RemoveCamera(cam *Camera) {
	for i, c := range s.cameras {
		if c == cam {
			s.cameras = append(s.cameras[:i], s.cameras[i+1:]...)
			return
		}
	}
}

// World returns the node the camera drives.
func (c *Camera) World() *Node {
	return c.world
}

// Follow moves the camera toward target, offset by (dx, dy), on every
// update. lerp is the fraction of the remaining distance covered per update:
// 1 snaps, smaller values trail behind.
func (c *Camera) Follow(target *Node, dx, dy, lerp float64) {
	c.follow = &cameraFollow{target: target, dx: dx, dy: dy, lerp: lerp}
}

// Unfollow stops following.
func (c *Camera) Unfollow() {
	c.follow = nil
}

// ScrollTo moves the camera to (x, y) over duration seconds.
func (c *Camera) ScrollTo(x, y float64, duration float32, fn ease.TweenFunc) {
	c.scroll = &cameraScroll{axes: [2]*gween.Tween{
		gween.New(float32(c.X), float32(x), duration, fn),
		gween.New(float32(c.Y), float32(y), duration, fn),
	}}
}

// SetBounds keeps the visible area inside bounds from the next update on.
func (c *Camera) SetBounds(bounds Rect) {
	c.BoundsEnabled = true
	c.Bounds = bounds
}

// ClearBounds lets the camera move freely again.
func (c *Camera) ClearBounds() {
	c.BoundsEnabled = false
}

// Update advances follow, scroll and bounds clamping by dt seconds and
// applies the resulting view to the world node.
func (c *Camera) Update(dt float32) {
	if c.world == nil || c.world.IsDisposed() {
		return
	}
	if f := c.follow; f != nil && f.target != nil && !f.target.IsDisposed() {
		// Target position in world space, as of the last update.
		tx, ty := c.world.WorldToLocal(f.target.LocalToWorld(0, 0))
		c.X += (tx + f.dx - c.X) * f.lerp
		c.Y += (ty + f.dy - c.Y) * f.lerp
	}
	if c.scroll != nil && c.scroll.step(dt, [2]*float64{&c.X, &c.Y}) {
		c.scroll = nil
	}
	if c.BoundsEnabled {
		halfW := c.Viewport.Width / (2 * c.Zoom)
		halfH := c.Viewport.Height / (2 * c.Zoom)
		c.X = clampAxis(c.X, c.Bounds.X, c.Bounds.Width, halfW)
		c.Y = clampAxis(c.Y, c.Bounds.Y, c.Bounds.Height, halfH)
	}
	c.apply()
}

// clampAxis keeps a view of half extent half centered at v inside
// [lo, lo+size]. A view larger than the range is centered on it.
func clampAxis(v, lo, size, half float64) float64 {
	minV, maxV := lo+half, lo+size-half
	if minV > maxV {
		return lo + size/2
	}
	return math.Max(minV, math.Min(v, maxV))
}

// apply computes the view
//
//	Translate(cx, cy) * Scale(zoom) * Rotate(-rotation) * Translate(-X, -Y)
//
// where (cx, cy) is the viewport center, and writes it to the world node.
// The node's setters skip unchanged values, so an idle camera causes no
// update work.
func (c *Camera) apply() {
	cx, cy := c.Viewport.X+c.Viewport.Width/2, c.Viewport.Y+c.Viewport.Height/2
	sin, cos := math.Sincos(-c.Rotation)
	a, b := c.Zoom*cos, -c.Zoom*sin
	cc, d := c.Zoom*sin, c.Zoom*cos
	c.view = RenderContext{
		Alpha: 1,
		Ta:    a, Tb: b, Tc: cc, Td: d,
		Px: cx - (a*c.X + b*c.Y),
		Py: cy - (cc*c.X + d*c.Y),
	}
	if !c.inv.invert(&c.view) {
		c.inv = identityContext
	}
	if c.world != nil && !c.world.IsDisposed() {
		c.world.SetTransform(a, b, cc, d)
		c.world.SetPosition(c.view.Px, c.view.Py)
	}
}

// WorldToScreen maps a world point into the world node's parent space.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	return c.view.Apply(wx, wy)
}

// ScreenToWorld maps a point of the world node's parent space to world
// space.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	return c.inv.Apply(sx, sy)
}

// VisibleBounds is the world space bounding box of the viewport.
func (c *Camera) VisibleBounds() Rect {
	return c.inv.mapRect(c.Viewport)
}
