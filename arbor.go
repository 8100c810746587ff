package arbor

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs when a quad is written into the vertex buffer.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default corner color (no tint).
var ColorWhite = Color{1, 1, 1, 1}

// packed returns the color premultiplied by its own alpha and by the extra
// alpha factor, packed as 0xAABBGGRR.
func (c Color) packed(alpha float64) uint32 {
	a := clamp01(c.A * alpha)
	r := uint32(clamp01(c.R)*a*255 + 0.5)
	g := uint32(clamp01(c.G)*a*255 + 0.5)
	b := uint32(clamp01(c.B)*a*255 + 0.5)
	return r | g<<8 | b<<16 | uint32(a*255+0.5)<<24
}

// Corners holds the four corner colors of a quad.
type Corners struct {
	TopLeft, TopRight, BottomLeft, BottomRight Color
}

// UniformCorners returns Corners with the same color at every corner.
func UniformCorners(c Color) Corners {
	return Corners{c, c, c, c}
}

// Rect is an axis-aligned rectangle in a y-down coordinate system.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) right() float64  { return r.X + r.Width }
func (r Rect) bottom() float64 { return r.Y + r.Height }

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return r.X <= x && x <= r.right() && r.Y <= y && y <= r.bottom()
}

// Intersects reports whether r and other overlap. Rectangles sharing only an
// edge intersect.
func (r Rect) Intersects(other Rect) bool {
	i := r.Intersect(other)
	return i.Width >= 0 && i.Height >= 0
}

// Intersect returns the overlapping area of r and other. The result has a
// zero or negative size when the rectangles are disjoint.
func (r Rect) Intersect(other Rect) Rect {
	x1, y1 := math.Max(r.X, other.X), math.Max(r.Y, other.Y)
	x2, y2 := math.Min(r.right(), other.right()), math.Min(r.bottom(), other.bottom())
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// WhitePixel backs RectangleTexture: solid rectangles sample it and batch
// with everything else drawn from it.
var WhitePixel = ebiten.NewImage(1, 1)

func init() {
	WhitePixel.Fill(color.White)
	RectangleTexture = newRectangleTexture()
}

// toRGBA converts c to a premultiplied color.RGBA for image fills.
func (c Color) toRGBA() color.RGBA {
	p := c.packed(1)
	return color.RGBA{R: uint8(p), G: uint8(p >> 8), B: uint8(p >> 16), A: uint8(p >> 24)}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

func floorInt(v float64) int {
	return int(math.Floor(v))
}

func ceilInt(v float64) int {
	return int(math.Ceil(v))
}
