package arbor

// RenderContext is a composed 2x2 transform, translation and alpha. A point
// (x, y) in node space maps to
//
//	(Px + Ta*x + Tb*y, Py + Tc*x + Td*y)
type RenderContext struct {
	Alpha  float64
	Px, Py float64
	Ta, Tb float64
	Tc, Td float64
}

// identityContext is the base used for the direct children of a node that
// renders to a texture.
var identityContext = RenderContext{Alpha: 1, Ta: 1, Td: 1}

// IsSquare reports whether the transform has no rotation or skew, so only Ta
// and Td are meaningful. Scissor rectangles are only derived from square
// contexts.
func (c *RenderContext) IsSquare() bool {
	return c.Tb == 0 && c.Tc == 0
}

// IsIdentity reports whether the context maps node space onto itself.
func (c *RenderContext) IsIdentity() bool {
	return c.Alpha == 1 && c.Px == 0 && c.Py == 0 &&
		c.Ta == 1 && c.Tb == 0 && c.Tc == 0 && c.Td == 1
}

// Apply maps a node-space point through the context.
func (c *RenderContext) Apply(x, y float64) (float64, float64) {
	return c.Px + c.Ta*x + c.Tb*y, c.Py + c.Tc*x + c.Td*y
}

// composeAlpha sets c.Alpha = parent.Alpha * local.
func (c *RenderContext) composeAlpha(parent *RenderContext, local float64) {
	c.Alpha = parent.Alpha * local
}

// composeTranslate sets the translation from the parent's translation and
// 2x2 transform applied to the local translation.
func (c *RenderContext) composeTranslate(parent *RenderContext, lx, ly float64) {
	if parent.IsSquare() {
		c.Px = parent.Px + parent.Ta*lx
		c.Py = parent.Py + parent.Td*ly
		return
	}
	c.Px = parent.Px + parent.Ta*lx + parent.Tb*ly
	c.Py = parent.Py + parent.Tc*lx + parent.Td*ly
}

// composeTransform sets the 2x2 part to parent * local.
func (c *RenderContext) composeTransform(parent *RenderContext, la, lb, lc, ld float64) {
	if parent.IsSquare() && lb == 0 && lc == 0 {
		c.Ta = parent.Ta * la
		c.Tb = 0
		c.Tc = 0
		c.Td = parent.Td * ld
		return
	}
	c.Ta = parent.Ta*la + parent.Tb*lc
	c.Tb = parent.Ta*lb + parent.Tb*ld
	c.Tc = parent.Tc*la + parent.Td*lc
	c.Td = parent.Tc*lb + parent.Td*ld
}

// bounds returns the axis-aligned bounding box of the rectangle (0,0,w,h)
// mapped through the context.
func (c *RenderContext) bounds(w, h float64) (minX, minY, maxX, maxY float64) {
	if c.IsSquare() {
		x1, x2 := c.Px, c.Px+c.Ta*w
		y1, y2 := c.Py, c.Py+c.Td*h
		if x1 > x2 {
			x1, x2 = x2, x1
		}
		if y1 > y2 {
			y1, y2 = y2, y1
		}
		return x1, y1, x2, y2
	}
	ax, ay := c.Px, c.Py
	bx, by := c.Apply(w, 0)
	cx, cy := c.Apply(w, h)
	dx, dy := c.Apply(0, h)
	minX = min(ax, bx, cx, dx)
	maxX = max(ax, bx, cx, dx)
	minY = min(ay, by, cy, dy)
	maxY = max(ay, by, cy, dy)
	return
}

// compose sets c to child drawn inside parent: points map through child
// first, then parent.
func (c *RenderContext) compose(parent, child *RenderContext) {
	c.Alpha = parent.Alpha * child.Alpha
	c.Px, c.Py = parent.Apply(child.Px, child.Py)
	c.composeTransform(parent, child.Ta, child.Tb, child.Tc, child.Td)
}

// invert sets c to the inverse mapping of src, with the reciprocal alpha.
// It reports false when src is singular or fully transparent.
func (c *RenderContext) invert(src *RenderContext) bool {
	det := src.Ta*src.Td - src.Tb*src.Tc
	if det > -1e-12 && det < 1e-12 || src.Alpha == 0 {
		return false
	}
	a, b := src.Td/det, -src.Tb/det
	cc, d := -src.Tc/det, src.Ta/det
	c.Ta, c.Tb, c.Tc, c.Td = a, b, cc, d
	c.Px = -(a*src.Px + b*src.Py)
	c.Py = -(cc*src.Px + d*src.Py)
	c.Alpha = 1 / src.Alpha
	return true
}

// mapRect returns the bounding box of r mapped through the context.
func (c *RenderContext) mapRect(r Rect) Rect {
	t := *c
	t.Px, t.Py = c.Apply(r.X, r.Y)
	minX, minY, maxX, maxY := t.bounds(r.Width, r.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
