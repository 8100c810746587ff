package arbor

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Filter is one pass of a render-to-texture filter chain. It reads the
// previous pass (or the rendered subtree) and writes into a target of the
// same size.
type Filter interface {
	// UseDefault reports that the filter currently has no visible effect
	// and can be skipped.
	UseDefault() bool
	// Padding is the number of pixels the effect reaches past the content
	// on every side.
	Padding() int
	// SetupUniforms prepares uniforms before Draw.
	SetupUniforms(op *FilterOperation) error
	// Draw renders src into dst with the filter effect.
	Draw(dst, src *ebiten.Image, op *FilterOperation) error
}

// filterChainPadding is the padding of a whole chain: every pass may grow
// the content by its own padding.
func filterChainPadding(filters []Filter) int {
	pad := 0
	for _, f := range filters {
		pad += f.Padding()
	}
	return pad
}

// shaderPass draws a whole source image through a Kage program. Source
// pixels are premultiplied.
type shaderPass struct {
	uniforms map[string]any
	opts     ebiten.DrawRectShaderOptions
}

func (p *shaderPass) run(dst, src *ebiten.Image, program *ebiten.Shader) {
	b := src.Bounds()
	p.opts.Images[0] = src
	p.opts.Uniforms = p.uniforms
	dst.DrawRectShader(b.Dx(), b.Dy(), program, &p.opts)
}

// --- ColorMatrixFilter ---

var colorMatrixProgram = &kageProgram{name: "color matrix", src: `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	p := imageSrc0At(src)
	if p.a > 0 {
		p.rgb /= p.a
	}
	out := vec4(
		dot(vec4(Matrix[0], Matrix[1], Matrix[2], Matrix[3]), p)+Matrix[4],
		dot(vec4(Matrix[5], Matrix[6], Matrix[7], Matrix[8]), p)+Matrix[9],
		dot(vec4(Matrix[10], Matrix[11], Matrix[12], Matrix[13]), p)+Matrix[14],
		dot(vec4(Matrix[15], Matrix[16], Matrix[17], Matrix[18]), p)+Matrix[19],
	)
	out = clamp(out, vec4(0), vec4(1))
	return vec4(out.rgb*out.a, out.a)
}
`}

// identityMatrix leaves colors unchanged.
var identityMatrix = [20]float64{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// ColorMatrixFilter multiplies straight-alpha colors by a 4x5 matrix. Each
// row of five holds the factors for R, G, B and A followed by an offset, so
// Matrix[0:5] produces red and Matrix[15:20] alpha.
type ColorMatrixFilter struct {
	Matrix [20]float64

	pass   shaderPass
	packed [20]float32
}

// NewColorMatrixFilter creates a filter with the identity matrix.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{Matrix: identityMatrix}
	f.pass.uniforms = map[string]any{"Matrix": f.packed[:]}
	return f
}

// Reset restores the identity matrix.
func (f *ColorMatrixFilter) Reset() { f.Matrix = identityMatrix }

// rgbMatrix scales the color channels by scale and adds offset to them.
// Alpha passes through.
func rgbMatrix(scale, offset float64) [20]float64 {
	m := identityMatrix
	for row := range 3 {
		m[row*5+row] = scale
		m[row*5+4] = offset
	}
	return m
}

// SetBrightness adds b, in [-1, 1], to every color channel.
func (f *ColorMatrixFilter) SetBrightness(b float64) { f.Matrix = rgbMatrix(1, b) }

// SetContrast scales colors away from mid gray: 1 is unchanged, 0 is flat
// gray.
func (f *ColorMatrixFilter) SetContrast(c float64) { f.Matrix = rgbMatrix(c, (1-c)/2) }

// SetSaturation blends colors with their luma: 1 is unchanged, 0 is
// grayscale.
func (f *ColorMatrixFilter) SetSaturation(s float64) {
	luma := [3]float64{0.299, 0.587, 0.114}
	m := identityMatrix
	for row := range 3 {
		for col := range 3 {
			m[row*5+col] = (1 - s) * luma[col]
		}
		m[row*5+row] += s
	}
	f.Matrix = m
}

func (f *ColorMatrixFilter) UseDefault() bool { return f.Matrix == identityMatrix }

func (f *ColorMatrixFilter) Padding() int { return 0 }

// SetupUniforms copies the matrix into the uniform slice.
func (f *ColorMatrixFilter) SetupUniforms(*FilterOperation) error {
	for i, v := range f.Matrix {
		f.packed[i] = float32(v)
	}
	return nil
}

func (f *ColorMatrixFilter) Draw(dst, src *ebiten.Image, _ *FilterOperation) error {
	f.pass.run(dst, src, colorMatrixProgram.get())
	return nil
}

// --- BlurFilter ---

// BlurFilter approximates a blur of Radius pixels by halving the image
// ceil(log2(Radius)) times with linear filtering and scaling it back up.
type BlurFilter struct {
	Radius int

	levels []*ebiten.Image
	opts   ebiten.DrawImageOptions
}

// NewBlurFilter creates a blur filter. Negative radii are treated as zero.
func NewBlurFilter(radius int) *BlurFilter {
	return &BlurFilter{Radius: max(radius, 0)}
}

func (f *BlurFilter) UseDefault() bool { return f.Radius <= 0 }

func (f *BlurFilter) Padding() int { return max(f.Radius, 0) }

// blurLevels is the number of halvings for a radius, at least one.
func blurLevels(radius int) int {
	if radius <= 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(radius))))
}

// SetupUniforms resizes the level chain for the current radius, releasing
// levels a smaller radius no longer needs.
func (f *BlurFilter) SetupUniforms(*FilterOperation) error {
	n := blurLevels(f.Radius)
	for _, img := range f.levels[min(n, len(f.levels)):] {
		if img != nil {
			img.Deallocate()
		}
	}
	if n <= len(f.levels) {
		f.levels = f.levels[:n]
	} else {
		f.levels = append(f.levels, make([]*ebiten.Image, n-len(f.levels))...)
	}
	return nil
}

// level returns the i-th level image sized w x h, cleared.
func (f *BlurFilter) level(i, w, h int) *ebiten.Image {
	img := f.levels[i]
	if img != nil && img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		img.Clear()
		return img
	}
	if img != nil {
		img.Deallocate()
	}
	img = ebiten.NewImage(w, h)
	f.levels[i] = img
	return img
}

func (f *BlurFilter) Draw(dst, src *ebiten.Image, _ *FilterOperation) error {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	cur := src
	for i := range f.levels {
		w, h = max(w/2, 1), max(h/2, 1)
		next := f.level(i, w, h)
		f.stretch(next, cur)
		cur = next
	}
	// Back up through the same levels, then into dst.
	for i := len(f.levels) - 2; i >= 0; i-- {
		f.levels[i].Clear()
		f.stretch(f.levels[i], cur)
		cur = f.levels[i]
	}
	f.stretch(dst, cur)
	return nil
}

// stretch draws src scaled to cover dst.
func (f *BlurFilter) stretch(dst, src *ebiten.Image) {
	op := &f.opts
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.Filter = ebiten.FilterLinear
	sb, db := src.Bounds(), dst.Bounds()
	op.GeoM.Scale(float64(db.Dx())/float64(sb.Dx()), float64(db.Dy())/float64(sb.Dy()))
	op.GeoM.Translate(float64(db.Min.X), float64(db.Min.Y))
	dst.DrawImage(src, op)
}

// --- PixelPerfectOutlineFilter ---

var outlineProgram = &kageProgram{name: "pixel outline", src: `//kage:unit pixels
package main

var OutlineColor vec4

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	p := imageSrc0At(src)
	if p.a > 0 {
		return p
	}
	n := imageSrc0At(src+vec2(1, 0)).a + imageSrc0At(src-vec2(1, 0)).a +
		imageSrc0At(src+vec2(0, 1)).a + imageSrc0At(src-vec2(0, 1)).a
	if n > 0 {
		return OutlineColor
	}
	return vec4(0)
}
`}

// PixelPerfectOutlineFilter paints Color into every transparent pixel that
// has an opaque neighbor above, below, left or right of it.
type PixelPerfectOutlineFilter struct {
	Color Color

	pass  shaderPass
	color [4]float32
}

// NewPixelPerfectOutlineFilter creates an outline filter.
func NewPixelPerfectOutlineFilter(c Color) *PixelPerfectOutlineFilter {
	f := &PixelPerfectOutlineFilter{Color: c}
	f.pass.uniforms = map[string]any{"OutlineColor": f.color[:]}
	return f
}

func (f *PixelPerfectOutlineFilter) UseDefault() bool { return f.Color.A == 0 }

func (f *PixelPerfectOutlineFilter) Padding() int { return 1 }

// SetupUniforms stores the premultiplied outline color.
func (f *PixelPerfectOutlineFilter) SetupUniforms(*FilterOperation) error {
	c := f.Color
	f.color = [4]float32{float32(c.R * c.A), float32(c.G * c.A), float32(c.B * c.A), float32(c.A)}
	return nil
}

func (f *PixelPerfectOutlineFilter) Draw(dst, src *ebiten.Image, _ *FilterOperation) error {
	f.pass.run(dst, src, outlineProgram.get())
	return nil
}

// --- CustomShaderFilter ---

// CustomShaderFilter runs a user supplied Kage program as a filter pass.
// The pass source is bound to Images[0]; Images[1] and Images[2] are passed
// through and must match the source size.
type CustomShaderFilter struct {
	Shader   *ebiten.Shader
	Uniforms map[string]any
	Images   [3]*ebiten.Image

	padding int
	pass    shaderPass
}

// NewCustomShaderFilter creates a filter for shader reaching padding pixels
// past the content.
func NewCustomShaderFilter(shader *ebiten.Shader, padding int) *CustomShaderFilter {
	return &CustomShaderFilter{Shader: shader, Uniforms: make(map[string]any), padding: padding}
}

func (f *CustomShaderFilter) UseDefault() bool { return f.Shader == nil }

func (f *CustomShaderFilter) Padding() int { return f.padding }

func (f *CustomShaderFilter) SetupUniforms(*FilterOperation) error {
	f.pass.uniforms = f.Uniforms
	f.pass.opts.Images[1] = f.Images[1]
	f.pass.opts.Images[2] = f.Images[2]
	return nil
}

func (f *CustomShaderFilter) Draw(dst, src *ebiten.Image, _ *FilterOperation) error {
	f.pass.run(dst, src, f.Shader)
	return nil
}
