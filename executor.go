package arbor

import (
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// ExecStats counts the work done by one execution of the operation list.
type ExecStats struct {
	QuadOps      int
	FilterOps    int
	DrawCalls    int
	StateChanges int
}

// RenderExecutor replays the batcher's operation list onto the screen and
// the offscreen targets. Filter operations run right before the quad
// operation they were recorded in front of.
type RenderExecutor struct {
	pool  *renderTexturePool
	stats ExecStats

	lastShader Shader
	lastTarget *ebiten.Image
}

func newRenderExecutor(pool *renderTexturePool) *RenderExecutor {
	return &RenderExecutor{pool: pool}
}

// Stats returns the counters of the last execution.
func (e *RenderExecutor) Stats() ExecStats {
	return e.stats
}

// execute runs every operation of b. Every offscreen target drawn this
// frame is cleared first; targets without an image yet are allocated from
// the pool and cleared on first use. A failing operation is logged and
// skipped.
func (e *RenderExecutor) execute(screen *ebiten.Image, b *QuadBatcher) {
	e.stats = ExecStats{}
	e.lastShader = nil
	e.lastTarget = nil
	for _, t := range b.targets {
		t.cleared = false
		if t.img != nil && t.reused == nil {
			t.img.Clear()
			t.cleared = true
		}
	}

	fi := 0
	for i := range b.ops {
		for fi < len(b.filters) && b.filters[fi].BeforeOp <= i {
			e.runFilter(&b.filters[fi])
			fi++
		}
		e.runQuads(screen, b.buf, &b.ops[i])
	}
	for ; fi < len(b.filters); fi++ {
		e.runFilter(&b.filters[fi])
	}
}

// bind resolves the image an operation draws into.
func (e *RenderExecutor) bind(screen *ebiten.Image, t *renderTextureInfo) *ebiten.Image {
	if t == nil {
		return screen
	}
	t.allocate(e.pool)
	if !t.cleared {
		t.img.Clear()
		t.cleared = true
	}
	return t.img
}

func (e *RenderExecutor) runQuads(screen *ebiten.Image, buf *QuadBuffer, op *QuadOperation) {
	dst := e.bind(screen, op.target)
	clip := scissorRect(op.Scissor).Intersect(dst.Bounds())
	if clip.Empty() {
		return
	}
	if clip != dst.Bounds() {
		dst = dst.SubImage(clip).(*ebiten.Image)
	}
	if op.Shader != e.lastShader || dst != e.lastTarget {
		e.stats.StateChanges++
		e.lastShader = op.Shader
		e.lastTarget = dst
	}
	e.stats.QuadOps++
	e.stats.DrawCalls += imageRuns(buf, op)

	if err := op.Shader.SetupUniforms(op); err != nil {
		logError(fmt.Errorf("arbor: quad operation at %d: %w", op.Index, err))
		return
	}
	if err := op.Shader.Draw(dst, buf, op); err != nil {
		logError(fmt.Errorf("arbor: quad operation at %d: %w", op.Index, err))
	}
}

func (e *RenderExecutor) runFilter(op *FilterOperation) {
	src := op.source.image()
	if src == nil {
		return
	}
	op.target.allocate(e.pool)
	op.target.img.Clear()
	op.target.cleared = true
	e.stats.FilterOps++
	e.stats.DrawCalls++
	e.stats.StateChanges++
	e.lastShader = nil
	e.lastTarget = nil

	if err := op.Filter.SetupUniforms(op); err != nil {
		logError(fmt.Errorf("arbor: filter on %s: %w", nodePath(op.Owner), err))
		return
	}
	if err := op.Filter.Draw(op.target.img, src, op); err != nil {
		logError(fmt.Errorf("arbor: filter on %s: %w", nodePath(op.Owner), err))
	}
}

// scissorRect rounds a scissor outward to whole pixels.
func scissorRect(r Rect) image.Rectangle {
	x0, y0 := floorInt(r.X), floorInt(r.Y)
	x1, y1 := ceilInt(r.X+r.Width), ceilInt(r.Y+r.Height)
	if x1 <= x0 || y1 <= y0 {
		return image.Rectangle{}
	}
	return image.Rect(x0, y0, x1, y1)
}

// imageRuns counts the image runs of op, which is how many draw calls the
// built-in shaders issue for it.
func imageRuns(buf *QuadBuffer, op *QuadOperation) int {
	n := 0
	var last *ebiten.Image
	for i := op.Index; i < op.Index+op.Length; i++ {
		if img := buf.images[i]; img != last || i == op.Index {
			if img != nil {
				n++
			}
			last = img
		}
	}
	if n == 0 && op.Length == 0 {
		return 1
	}
	return n
}
