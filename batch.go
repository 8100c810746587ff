package arbor

import (
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
)

// QuadOperation is a contiguous run of quads in the QuadBuffer that share a
// shader, a shader owner, a scissor rectangle and a render target.
type QuadOperation struct {
	Shader      Shader
	ShaderOwner *Node
	Scissor     Rect
	// Index is the arena index of the first quad, Length the quad count.
	Index  int
	Length int

	target      *renderTextureInfo
	extraOffset int
	extraLength int
}

// Target returns the size of the offscreen target of op, or ok false for
// the screen.
func (op *QuadOperation) Target() (w, h int, ok bool) {
	if op.target == nil {
		return 0, 0, false
	}
	return op.target.w, op.target.h, true
}

// FilterOperation is one filter pass from a source render texture into a
// target render texture. It runs before the quad operation at BeforeOp.
type FilterOperation struct {
	Filter   Filter
	Owner    *Node
	BeforeOp int

	source *renderTextureInfo
	target *renderTextureInfo
}

// batchState is the state that delimits quad operations.
type batchState struct {
	shader  Shader
	owner   *Node
	scissor Rect
	target  *renderTextureInfo
}

// QuadBatcher collects the quads emitted by the render walk into the minimal
// list of operations. A new operation starts whenever the shader, the shader
// owner, the scissor or the render target changes.
type QuadBatcher struct {
	buf           *QuadBuffer
	ops           []QuadOperation
	filters       []FilterOperation
	defaultShader Shader

	state batchState
	open  bool

	// override replaces the texture of the next quads, used to draw
	// render-to-texture results.
	override *ebiten.Image

	// targets lists every offscreen target referenced this frame.
	targets []*renderTextureInfo
}

func newQuadBatcher(maxQuads int, defaultShader Shader) *QuadBatcher {
	return &QuadBatcher{
		buf:           newQuadBuffer(maxQuads),
		defaultShader: defaultShader,
	}
}

// Buffer returns the quad arena.
func (b *QuadBatcher) Buffer() *QuadBuffer {
	return b.buf
}

// Operations returns the quad operations recorded this frame.
func (b *QuadBatcher) Operations() []QuadOperation {
	return b.ops
}

// FilterOperations returns the filter operations recorded this frame.
func (b *QuadBatcher) FilterOperations() []FilterOperation {
	return b.filters
}

// reset starts a new frame drawing to the screen with the given viewport as
// scissor.
func (b *QuadBatcher) reset(viewport Rect) {
	b.buf.reset()
	clear(b.ops)
	b.ops = b.ops[:0]
	clear(b.filters)
	b.filters = b.filters[:0]
	clear(b.targets)
	b.targets = b.targets[:0]
	b.override = nil
	b.open = false
	b.state = batchState{shader: b.defaultShader, scissor: viewport}
	b.openOp()
}

// normalizeShader maps shaders that behave like the default to the default.
func (b *QuadBatcher) normalizeShader(s Shader, owner *Node) (Shader, *Node) {
	if s == nil || s.UseDefault() {
		return b.defaultShader, nil
	}
	return s, owner
}

func (b *QuadBatcher) setState(s batchState) {
	s.shader, s.owner = b.normalizeShader(s.shader, s.owner)
	if b.open && s == b.state {
		return
	}
	b.closeOp()
	b.state = s
	b.openOp()
}

func (b *QuadBatcher) setShader(s Shader, owner *Node) {
	st := b.state
	st.shader, st.owner = s, owner
	b.setState(st)
}

func (b *QuadBatcher) setScissor(r Rect) {
	st := b.state
	st.scissor = r
	b.setState(st)
}

func (b *QuadBatcher) setTarget(t *renderTextureInfo) {
	st := b.state
	st.target = t
	b.setState(st)
}

func (b *QuadBatcher) openOp() {
	b.ops = append(b.ops, QuadOperation{
		Shader:      b.state.shader,
		ShaderOwner: b.state.owner,
		Scissor:     b.state.scissor,
		Index:       b.buf.quads,
		target:      b.state.target,
	})
	b.open = true
}

// closeOp ends the current operation, dropping it if it is empty and its
// shader does not ask to run without quads.
func (b *QuadBatcher) closeOp() {
	if !b.open {
		return
	}
	b.open = false
	last := &b.ops[len(b.ops)-1]
	if last.Length == 0 && !invokesWhenEmpty(last.Shader) {
		b.ops[len(b.ops)-1] = QuadOperation{}
		b.ops = b.ops[:len(b.ops)-1]
	}
}

// addQuad writes the quad of n through ctx. The override texture, when set,
// takes precedence over the node's displayed texture and samples it whole.
// Stashed colors draw the quad opaque white.
func (b *QuadBatcher) addQuad(n *Node, ctx *RenderContext, w, h float64, stashColors bool) {
	var img *ebiten.Image
	uv := [4]float64{0, 0, 1, 1}
	if b.override != nil {
		img = b.override
	} else {
		img, uv = n.displayedFrame()
		if img == nil {
			return
		}
	}
	colors := &n.colors
	if stashColors {
		colors = &whiteCorners
	}
	if !b.open {
		b.openOp()
	}
	i := b.buf.add(ctx, w, h, uv, colors, img)
	b.ops[len(b.ops)-1].Length++
	if t := b.state.target; t != nil {
		t.quads++
		t.lastQuad = i
	}
}

var whiteCorners = UniformCorners(ColorWhite)

// addFilter records a filter pass. The current quad operation is closed so
// the pass runs after everything recorded so far.
func (b *QuadBatcher) addFilter(f Filter, owner *Node, src, dst *renderTextureInfo) {
	b.closeOp()
	b.filters = append(b.filters, FilterOperation{
		Filter:   f,
		Owner:    owner,
		BeforeOp: len(b.ops),
		source:   src,
		target:   dst,
	})
	b.openOp()
}

// newTarget returns a handle for an offscreen target of the given size.
func (b *QuadBatcher) newTarget(w, h int) *renderTextureInfo {
	t := &renderTextureInfo{w: w, h: h, lastQuad: -1}
	b.targets = append(b.targets, t)
	return t
}

// track registers a target that persists across frames as being drawn
// into this frame.
func (b *QuadBatcher) track(t *renderTextureInfo) {
	if !slices.Contains(b.targets, t) {
		b.targets = append(b.targets, t)
	}
}

// reuseSingleQuad checks whether everything drawn into t is one quad that
// is word for word the identity quad of t's size. If so the quad and its
// operation are removed and the sampled image is returned so it can stand
// in for t. Filter passes read their source pixel for pixel, so with
// filtered set the image must also have t's size.
func (b *QuadBatcher) reuseSingleQuad(t *renderTextureInfo, filtered bool) *ebiten.Image {
	if t.quads != 1 || t.lastQuad != b.buf.quads-1 || len(b.ops) == 0 {
		return nil
	}
	opIdx := len(b.ops) - 1
	op := &b.ops[opIdx]
	if op.target != t || op.Length == 0 || op.Index+op.Length-1 != t.lastQuad {
		return nil
	}
	if op.Shader != b.defaultShader {
		return nil
	}
	if nf := len(b.filters); nf > 0 && b.filters[nf-1].BeforeOp > opIdx {
		return nil
	}
	img := b.buf.images[t.lastQuad]
	if img == nil {
		return nil
	}
	if sz := img.Bounds().Size(); filtered && (sz.X != t.w || sz.Y != t.h) {
		return nil
	}
	want := identityQuad(float64(t.w), float64(t.h))
	if [quadWords]uint32(b.buf.Quad(t.lastQuad)) != want {
		return nil
	}

	b.buf.truncate(t.lastQuad)
	op.Length--
	t.quads = 0
	t.lastQuad = -1
	t.reused = img
	if op.Length == 0 {
		b.ops[opIdx] = QuadOperation{}
		b.ops = b.ops[:opIdx]
		b.open = false
	}
	return img
}

// finish closes the last operation and reserves extra attribute space for
// shaders that need it, after the quad region.
func (b *QuadBatcher) finish() {
	b.closeOp()
	for i := range b.ops {
		op := &b.ops[i]
		n := op.Shader.ExtraAttribBytesPerVertex()
		if n == 0 || op.Length == 0 {
			continue
		}
		op.extraOffset = len(b.buf.extra)
		op.extraLength = op.Length * 4 * n
		b.buf.extra = slices.Grow(b.buf.extra, op.extraLength)
		b.buf.extra = b.buf.extra[:op.extraOffset+op.extraLength]
		clear(b.buf.extra[op.extraOffset:])
		op.Shader.SetExtraAttribsInBuffer(op, b.buf)
	}
}
