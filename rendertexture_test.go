package arbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTextureTexture(t *testing.T) {
	rt := NewRenderTexture(40, 30)
	assert.Equal(t, 40, rt.Width())
	assert.Equal(t, 30, rt.Height())
	tex := rt.Texture()
	assert.Same(t, tex, rt.Texture())
	w, h := tex.Size()
	assert.Equal(t, [2]int{40, 30}, [2]int{w, h})
	img, _ := tex.frame()
	assert.Same(t, rt.Image(), img)
}

func TestRenderTextureChangesInvalidateCaches(t *testing.T) {
	s := newTestStage(200, 200)
	rt := NewRenderTexture(20, 20)
	panel := NewNode("panel")
	panel.SetSize(50, 50)
	panel.Texturizer().SetEnabled(true)
	panel.AddChild(NewSprite("canvas", rt.Texture()))
	s.Root().AddChild(panel)
	record(s)
	require.False(t, panel.Texturizer().dirty)

	rt.Fill(Color{0, 1, 0, 1})
	assert.True(t, panel.Texturizer().dirty)

	record(s)
	rt.DrawImageAt(ebitenImage(2, 2), 1, 1)
	assert.True(t, panel.Texturizer().dirty)
}

func TestRenderTextureResize(t *testing.T) {
	s := newTestStage(200, 200)
	rt := NewRenderTexture(20, 20)
	spr := NewSprite("canvas", rt.Texture())
	s.Root().AddChild(spr)
	s.Step(1.0 / 60)

	old := rt.Image()
	rt.Resize(60, 10)
	assert.NotSame(t, old, rt.Image())
	w, h := spr.Size()
	assert.Equal(t, [2]float64{60, 10}, [2]float64{w, h})
	img, _ := spr.displayedFrame()
	assert.Same(t, rt.Image(), img)
}

func TestRenderTextureDispose(t *testing.T) {
	rt := NewRenderTexture(4, 4)
	tex := rt.Texture()
	rt.Dispose()
	assert.Nil(t, rt.Image())
	assert.Zero(t, rt.Width())
	assert.Equal(t, SourceDisposed, tex.Source().State())
}
