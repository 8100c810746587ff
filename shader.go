package arbor

import (
	"fmt"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Shader draws the quads of a QuadOperation. Nodes select a shader with
// SetShader; descendants without their own shader inherit it.
type Shader interface {
	// UseDefault reports that the shader currently behaves like the default
	// shader, so its quads may batch with everything else.
	UseDefault() bool
	// SetupUniforms prepares uniforms for op before Draw.
	SetupUniforms(op *QuadOperation) error
	// Draw draws the quads of op onto dst.
	Draw(dst *ebiten.Image, buf *QuadBuffer, op *QuadOperation) error
	// ExtraAttribBytesPerVertex is the number of extra attribute bytes the
	// shader needs per vertex, zero for none.
	ExtraAttribBytesPerVertex() int
	// SetExtraAttribsInBuffer fills the extra attribute bytes of op.
	SetExtraAttribsInBuffer(op *QuadOperation, buf *QuadBuffer)
}

// EmptyInvoker is implemented by shaders that must run even for an
// operation without quads, such as shaders that clear or fill the target.
type EmptyInvoker interface {
	InvokeWhenEmpty() bool
}

func invokesWhenEmpty(s Shader) bool {
	ei, ok := s.(EmptyInvoker)
	return ok && ei.InvokeWhenEmpty()
}

// drawScratch holds per-shader vertex and index buffers reused across draws.
type drawScratch struct {
	verts []ebiten.Vertex
	inds  []uint32
}

// eachImageRun calls fn for every maximal run of consecutive quads in op that
// sample the same image.
func eachImageRun(buf *QuadBuffer, op *QuadOperation, fn func(from, to int, img *ebiten.Image) error) error {
	end := op.Index + op.Length
	for i := op.Index; i < end; {
		img := buf.images[i]
		j := i + 1
		for j < end && buf.images[j] == img {
			j++
		}
		if img != nil {
			if err := fn(i, j, img); err != nil {
				return err
			}
		}
		i = j
	}
	return nil
}

// --- DefaultShader ---

// DefaultShader draws textured, vertex colored quads with DrawTriangles32,
// one call per run of quads sharing an image.
type DefaultShader struct {
	scratch drawScratch
	opts    ebiten.DrawTrianglesOptions
}

// NewDefaultShader creates the default shader.
func NewDefaultShader() *DefaultShader {
	s := &DefaultShader{}
	s.opts.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	return s
}

func (s *DefaultShader) UseDefault() bool                             { return true }
func (s *DefaultShader) SetupUniforms(*QuadOperation) error           { return nil }
func (s *DefaultShader) ExtraAttribBytesPerVertex() int               { return 0 }
func (s *DefaultShader) SetExtraAttribsInBuffer(*QuadOperation, *QuadBuffer) {}

// Draw implements Shader.
func (s *DefaultShader) Draw(dst *ebiten.Image, buf *QuadBuffer, op *QuadOperation) error {
	return eachImageRun(buf, op, func(from, to int, img *ebiten.Image) error {
		s.scratch.verts, s.scratch.inds = buf.AppendVertices(s.scratch.verts[:0], s.scratch.inds[:0], from, to)
		dst.DrawTriangles32(s.scratch.verts, s.scratch.inds, img, &s.opts)
		return nil
	})
}

// --- Kage shaders ---

// kageProgram is a built-in Kage source compiled on first use. Compilation
// happens on the render goroutine.
type kageProgram struct {
	name   string
	src    string
	shader *ebiten.Shader
}

func (p *kageProgram) get() *ebiten.Shader {
	if p.shader == nil {
		s, err := ebiten.NewShader([]byte(p.src))
		if err != nil {
			panic(fmt.Sprintf("arbor: failed to compile %s shader: %v", p.name, err))
		}
		p.shader = s
	}
	return p.shader
}

var grayscaleProgram = &kageProgram{name: "grayscale", src: `//kage:unit pixels
package main

var Amount float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src) * color
	l := dot(c.rgb, vec3(0.299, 0.587, 0.114))
	return vec4(mix(c.rgb, vec3(l), Amount), c.a)
}
`}

// KageShader draws quads with a user supplied Kage program through
// DrawTrianglesShader32. It is the extension point for custom quad shaders.
//
// When Attribs is set, it is called once per quad and its four values are
// written to the extra attribute region and passed to the program as the
// vertex's Custom0..Custom3.
type KageShader struct {
	Program  *ebiten.Shader
	Uniforms map[string]any
	Attribs  func(quad int) [4]float32

	scratch drawScratch
	opts    ebiten.DrawTrianglesShaderOptions
}

// NewKageShader wraps a compiled Kage program.
func NewKageShader(program *ebiten.Shader) *KageShader {
	return &KageShader{Program: program, Uniforms: make(map[string]any)}
}

func (s *KageShader) UseDefault() bool { return s.Program == nil }

func (s *KageShader) SetupUniforms(*QuadOperation) error {
	if s.Program == nil {
		return fmt.Errorf("arbor: kage shader has no program")
	}
	s.opts.Uniforms = s.Uniforms
	return nil
}

// ExtraAttribBytesPerVertex implements Shader.
func (s *KageShader) ExtraAttribBytesPerVertex() int {
	if s.Attribs == nil {
		return 0
	}
	return 16
}

// SetExtraAttribsInBuffer implements Shader.
func (s *KageShader) SetExtraAttribsInBuffer(op *QuadOperation, buf *QuadBuffer) {
	extra := buf.Extra(op)
	for q := 0; q < op.Length; q++ {
		a := s.Attribs(op.Index + q)
		for v := 0; v < 4; v++ {
			off := (q*4 + v) * 16
			for k := 0; k < 4; k++ {
				putFloat32(extra[off+k*4:], a[k])
			}
		}
	}
}

// Draw implements Shader.
func (s *KageShader) Draw(dst *ebiten.Image, buf *QuadBuffer, op *QuadOperation) error {
	var extra []byte
	if s.ExtraAttribBytesPerVertex() > 0 {
		extra = buf.Extra(op)
	}
	return eachImageRun(buf, op, func(from, to int, img *ebiten.Image) error {
		s.scratch.verts, s.scratch.inds = buf.AppendVertices(s.scratch.verts[:0], s.scratch.inds[:0], from, to)
		if extra != nil {
			for i := range s.scratch.verts {
				off := ((from-op.Index)*4 + i) * 16
				v := &s.scratch.verts[i]
				v.Custom0 = getFloat32(extra[off:])
				v.Custom1 = getFloat32(extra[off+4:])
				v.Custom2 = getFloat32(extra[off+8:])
				v.Custom3 = getFloat32(extra[off+12:])
			}
		}
		s.opts.Images[0] = img
		dst.DrawTrianglesShader32(s.scratch.verts, s.scratch.inds, s.Program, &s.opts)
		return nil
	})
}

func putFloat32(b []byte, f float32) {
	u := math.Float32bits(f)
	b[0], b[1], b[2], b[3] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
}

func getFloat32(b []byte) float32 {
	return math.Float32frombits(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// GrayscaleShader desaturates quads by Amount, from 0 (unchanged) to 1.
type GrayscaleShader struct {
	Amount float64

	kage KageShader
}

// NewGrayscaleShader creates a grayscale shader with the given amount.
func NewGrayscaleShader(amount float64) *GrayscaleShader {
	return &GrayscaleShader{Amount: amount}
}

// UseDefault reports true while Amount is zero.
func (s *GrayscaleShader) UseDefault() bool { return s.Amount == 0 }

func (s *GrayscaleShader) SetupUniforms(op *QuadOperation) error {
	s.kage.Program = grayscaleProgram.get()
	if s.kage.Uniforms == nil {
		s.kage.Uniforms = make(map[string]any, 1)
	}
	s.kage.Uniforms["Amount"] = float32(clamp01(s.Amount))
	return s.kage.SetupUniforms(op)
}

func (s *GrayscaleShader) ExtraAttribBytesPerVertex() int                      { return 0 }
func (s *GrayscaleShader) SetExtraAttribsInBuffer(*QuadOperation, *QuadBuffer) {}

func (s *GrayscaleShader) Draw(dst *ebiten.Image, buf *QuadBuffer, op *QuadOperation) error {
	return s.kage.Draw(dst, buf, op)
}
