package arbor

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	// vertexWords is the number of uint32 words per vertex: x and y as
	// float32 bits, the packed texture coordinate and the packed color.
	vertexWords = 4
	// quadWords is the number of uint32 words per quad.
	quadWords = 4 * vertexWords
)

// QuadBuffer is the fixed capacity arena quads are written into during the
// render walk. Operations address quads by index into the arena. Each quad
// also records the image it samples from.
type QuadBuffer struct {
	words    []uint32
	images   []*ebiten.Image
	quads    int
	maxQuads int

	// extra holds shader specific per-vertex attributes, reserved after the
	// quad region when the batcher finishes.
	extra []byte
}

func newQuadBuffer(maxQuads int) *QuadBuffer {
	return &QuadBuffer{
		words:    make([]uint32, maxQuads*quadWords),
		images:   make([]*ebiten.Image, maxQuads),
		maxQuads: maxQuads,
	}
}

// Len returns the number of quads written this frame.
func (b *QuadBuffer) Len() int {
	return b.quads
}

// Cap returns the quad capacity.
func (b *QuadBuffer) Cap() int {
	return b.maxQuads
}

// Quad returns the 16 words of quad i.
func (b *QuadBuffer) Quad(i int) []uint32 {
	return b.words[i*quadWords : (i+1)*quadWords]
}

// Image returns the image quad i samples from.
func (b *QuadBuffer) Image(i int) *ebiten.Image {
	return b.images[i]
}

// Extra returns the extra attribute bytes reserved for op.
func (b *QuadBuffer) Extra(op *QuadOperation) []byte {
	return b.extra[op.extraOffset : op.extraOffset+op.extraLength]
}

func (b *QuadBuffer) reset() {
	clear(b.images[:b.quads])
	b.quads = 0
	b.extra = b.extra[:0]
}

// truncate drops quad i and every quad after it.
func (b *QuadBuffer) truncate(i int) {
	clear(b.images[i:b.quads])
	b.quads = i
}

// add writes a quad with corners (0,0), (w,0), (w,h), (0,h) mapped through
// ctx and returns its index. Running out of capacity is a configuration
// error and panics.
func (b *QuadBuffer) add(ctx *RenderContext, w, h float64, uv [4]float64, colors *Corners, img *ebiten.Image) int {
	if b.quads >= b.maxQuads {
		panic("arbor: quad buffer overflow; raise Config.BufferMemory")
	}
	i := b.quads
	b.quads++
	b.images[i] = img
	q := b.words[i*quadWords : (i+1)*quadWords]

	u1, v1, u2, v2 := uv[0], uv[1], uv[2], uv[3]
	alpha := ctx.Alpha
	if ctx.IsSquare() {
		x1, y1 := ctx.Px, ctx.Py
		x2, y2 := ctx.Px+ctx.Ta*w, ctx.Py+ctx.Td*h
		writeVertex(q[0:], x1, y1, u1, v1, colors.TopLeft.packed(alpha))
		writeVertex(q[4:], x2, y1, u2, v1, colors.TopRight.packed(alpha))
		writeVertex(q[8:], x2, y2, u2, v2, colors.BottomRight.packed(alpha))
		writeVertex(q[12:], x1, y2, u1, v2, colors.BottomLeft.packed(alpha))
		return i
	}
	x, y := ctx.Px, ctx.Py
	writeVertex(q[0:], x, y, u1, v1, colors.TopLeft.packed(alpha))
	x, y = ctx.Apply(w, 0)
	writeVertex(q[4:], x, y, u2, v1, colors.TopRight.packed(alpha))
	x, y = ctx.Apply(w, h)
	writeVertex(q[8:], x, y, u2, v2, colors.BottomRight.packed(alpha))
	x, y = ctx.Apply(0, h)
	writeVertex(q[12:], x, y, u1, v2, colors.BottomLeft.packed(alpha))
	return i
}

func writeVertex(dst []uint32, x, y, u, v float64, color uint32) {
	dst[0] = math.Float32bits(float32(x))
	dst[1] = math.Float32bits(float32(y))
	dst[2] = packUV(u, v)
	dst[3] = color
}

// packUV packs a normalized texture coordinate as 16.16: u in the low half,
// v in the high half.
func packUV(u, v float64) uint32 {
	return uint32(clamp01(u)*65535+0.5) | uint32(clamp01(v)*65535+0.5)<<16
}

// unpackUV is the inverse of packUV.
func unpackUV(p uint32) (u, v float32) {
	return float32(p&0xFFFF) / 65535, float32(p>>16) / 65535
}

// identityQuad returns the words of a w x h quad drawn with the identity
// context, full texture coordinates and opaque white corners.
func identityQuad(w, h float64) [quadWords]uint32 {
	var q [quadWords]uint32
	const white = 0xFFFFFFFF
	writeVertex(q[0:], 0, 0, 0, 0, white)
	writeVertex(q[4:], w, 0, 1, 0, white)
	writeVertex(q[8:], w, h, 1, 1, white)
	writeVertex(q[12:], 0, h, 0, 1, white)
	return q
}

// AppendVertices converts quads [from, to) to ebiten vertices sampling img,
// and the matching indices, two triangles per quad.
func (b *QuadBuffer) AppendVertices(verts []ebiten.Vertex, inds []uint32, from, to int) ([]ebiten.Vertex, []uint32) {
	for i := from; i < to; i++ {
		bounds := b.images[i].Bounds()
		minX, minY := float32(bounds.Min.X), float32(bounds.Min.Y)
		iw, ih := float32(bounds.Dx()), float32(bounds.Dy())
		base := uint32(len(verts))
		q := b.words[i*quadWords : (i+1)*quadWords]
		for v := 0; v < 4; v++ {
			w := q[v*vertexWords:]
			u, tv := unpackUV(w[2])
			c := w[3]
			verts = append(verts, ebiten.Vertex{
				DstX:   math.Float32frombits(w[0]),
				DstY:   math.Float32frombits(w[1]),
				SrcX:   minX + u*iw,
				SrcY:   minY + tv*ih,
				ColorR: float32(c&0xFF) / 255,
				ColorG: float32(c>>8&0xFF) / 255,
				ColorB: float32(c>>16&0xFF) / 255,
				ColorA: float32(c>>24) / 255,
			})
		}
		// TL-TR-BR, TL-BR-BL
		inds = append(inds, base, base+1, base+2, base, base+2, base+3)
	}
	return verts, inds
}
