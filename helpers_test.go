package arbor

import (
	"context"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

func newTestStage(w, h int) *Stage {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = w, h
	return NewStage(cfg)
}

// runFrame steps s and draws it onto a fresh screen of the stage's size.
func runFrame(s *Stage) {
	s.Step(1.0 / 60)
	s.Draw(ebiten.NewImage(s.cfg.Width, s.cfg.Height))
}

// record steps s and runs the render walk without executing the operations.
func record(s *Stage) *QuadBatcher {
	s.Step(1.0 / 60)
	s.renderer.releaseScratch()
	var st FrameStats
	s.renderer.render(s.root, s.viewport(), &st)
	return s.batcher
}

// recordingElement counts bounds margin notifications.
type recordingElement struct {
	enter, leave int
	loaded       int
	errs         []error
}

func (e *recordingElement) OnWithinBoundsMargin(_ *Node, within bool) {
	if within {
		e.enter++
	} else {
		e.leave++
	}
}

func (e *recordingElement) OnTextureLoaded(*Node, *Texture) { e.loaded++ }

func (e *recordingElement) OnTextureError(_ *Node, _ *Texture, err error) {
	e.errs = append(e.errs, err)
}

// recordingShader is a non-default shader that logs its calls.
type recordingShader struct {
	name string
	log  *[]string
}

func (s *recordingShader) UseDefault() bool { return false }

func (s *recordingShader) SetupUniforms(*QuadOperation) error { return nil }

func (s *recordingShader) Draw(_ *ebiten.Image, _ *QuadBuffer, op *QuadOperation) error {
	if s.log != nil {
		*s.log = append(*s.log, s.name)
	}
	return nil
}

func (s *recordingShader) ExtraAttribBytesPerVertex() int { return 0 }

func (s *recordingShader) SetExtraAttribsInBuffer(*QuadOperation, *QuadBuffer) {}

// recordingFilter is an active filter that logs its passes.
type recordingFilter struct {
	name    string
	padding int
	log     *[]string
}

func (f *recordingFilter) UseDefault() bool { return false }

func (f *recordingFilter) Padding() int { return f.padding }

func (f *recordingFilter) SetupUniforms(*FilterOperation) error { return nil }

func (f *recordingFilter) Draw(_, _ *ebiten.Image, _ *FilterOperation) error {
	if f.log != nil {
		*f.log = append(*f.log, f.name)
	}
	return nil
}

// preorder returns n and its descendants in document order.
func preorder(n *Node) []*Node {
	out := []*Node{n}
	for _, c := range n.children {
		out = append(out, preorder(c)...)
	}
	return out
}

func ebitenImage(w, h int) *ebiten.Image {
	return ebiten.NewImage(w, h)
}

// solidLoader returns a LoadFunc producing an opaque white w x h image.
func solidLoader(w, h int) LoadFunc {
	return func(ctx context.Context) (image.Image, error) {
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
		}
		return img, ctx.Err()
	}
}

// gatedLoader returns a LoadFunc that blocks until release is closed and
// then returns a 1x1 image, or err when it is not nil.
func gatedLoader(release <-chan struct{}, err error) LoadFunc {
	return func(ctx context.Context) (image.Image, error) {
		<-release
		if err != nil {
			return nil, err
		}
		img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		img.Set(0, 0, color.White)
		return img, nil
	}
}
