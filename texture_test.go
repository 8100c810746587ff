package arbor

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceStateString(t *testing.T) {
	for state, want := range map[SourceState]string{
		SourceIdle:      "idle",
		SourceLoading:   "loading",
		SourceLoaded:    "loaded",
		SourceFailed:    "failed",
		SourceDisposed:  "disposed",
		SourceState(42): "unknown",
	} {
		assert.Equal(t, want, state.String())
	}
}

func TestImageSourceIsLoaded(t *testing.T) {
	src := NewImageSource("img", ebitenImage(12, 7))
	assert.Equal(t, SourceLoaded, src.State())
	w, h := src.Size()
	assert.Equal(t, [2]int{12, 7}, [2]int{w, h})
	assert.False(t, src.Atlased())
	assert.NotZero(t, src.ID)
	assert.NotEqual(t, src.ID, NewImageSource("other", ebitenImage(1, 1)).ID)
}

func TestRegionTextureSubImage(t *testing.T) {
	img := ebitenImage(16, 16)
	src := NewImageSource("sheet", img)
	tex := NewRegionTexture(src, 2, 4, 6, 8)
	w, h := tex.Size()
	assert.Equal(t, [2]int{6, 8}, [2]int{w, h})

	sub, uv := tex.frame()
	require.NotNil(t, sub)
	assert.Equal(t, image.Rect(2, 4, 8, 12), sub.Bounds())
	assert.Equal(t, [4]float64{0, 0, 1, 1}, uv)
	again, _ := tex.frame()
	assert.Same(t, sub, again, "the sub-image is cached")

	full, _ := NewTexture(src).frame()
	assert.Same(t, img, full)
}

func TestTextureSizeIsZeroUntilLoaded(t *testing.T) {
	s := newTestStage(100, 100)
	src := s.NewTextureSource("lazy", solidLoader(4, 4))
	tex := NewRegionTexture(src, 0, 0, 2, 2)
	w, h := tex.Size()
	assert.Zero(t, w+h)
	img, _ := tex.frame()
	assert.Nil(t, img)
}

func TestTextureCoordsSubdivideRegion(t *testing.T) {
	a := smallAtlas(64)
	src := atlasedSource(a, "a", 32, 16)
	n := NewSprite("n", NewTexture(src))

	_, uv := n.displayedFrame()
	assert.Equal(t, [4]float64{1.0 / 64, 1.0 / 64, 33.0 / 64, 17.0 / 64}, uv)

	n.SetTextureCoords(0.5, 0, 1, 0.5)
	_, uv = n.displayedFrame()
	assert.Equal(t, [4]float64{17.0 / 64, 1.0 / 64, 33.0 / 64, 9.0 / 64}, uv)
}

func TestRectangleTextureSamplesWhitePixel(t *testing.T) {
	r := NewRect("r", 30, 20, Color{1, 0, 0, 1})
	img, uv := r.displayedFrame()
	assert.Same(t, WhitePixel, img)
	assert.Equal(t, [4]float64{0, 0, 1, 1}, uv)
	w, h := r.Size()
	assert.Equal(t, [2]float64{30, 20}, [2]float64{w, h})

	RectangleTexture.Source().Dispose()
	RectangleTexture.Source().Unload()
	assert.Equal(t, SourceLoaded, RectangleTexture.Source().State(), "the rectangle source is permanent")
}

func TestSetTextureSwapsInterest(t *testing.T) {
	s := newTestStage(100, 100)
	a := s.NewTextureSource("a", solidLoader(2, 2))
	b := NewImageSource("b", ebitenImage(5, 5))
	n := NewSprite("n", NewTexture(a))
	n.SetPosition(10, 10)
	s.Root().AddChild(n)
	s.Step(1.0 / 60)
	require.Equal(t, SourceLoading, a.State())
	require.Len(t, a.users, 1)

	n.SetTexture(NewTexture(b))
	assert.Equal(t, SourceIdle, a.State(), "the pending load is canceled")
	assert.Empty(t, a.users)
	assert.Equal(t, []*Node{n}, b.users, "already within the margin")
	w, _ := n.Size()
	assert.Equal(t, 5.0, w)

	n.SetTexture(nil)
	assert.Empty(t, b.users)
	w, _ = n.Size()
	assert.Zero(t, w)
}
