package arbor

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hashSheet = `{
	"frames": {
		"hero.png": {
			"frame": {"x": 2, "y": 4, "w": 16, "h": 24},
			"rotated": false,
			"trimmed": true,
			"spriteSourceSize": {"x": 3, "y": 1, "w": 16, "h": 24},
			"sourceSize": {"w": 20, "h": 26}
		},
		"coin.png": {
			"frame": {"x": 20, "y": 4, "w": 8, "h": 8},
			"sourceSize": {"w": 8, "h": 8}
		}
	},
	"meta": {"image": "sheet.png"}
}`

const arraySheet = `{
	"textures": [
		{"image": "a.png", "frames": {"one": {"frame": {"x": 0, "y": 0, "w": 4, "h": 4}}}},
		{"image": "b.png", "frames": {"two": {"frame": {"x": 4, "y": 0, "w": 4, "h": 2}}}}
	]
}`

func pageSources(n int) []*TextureSource {
	out := make([]*TextureSource, n)
	for i := range out {
		out[i] = NewImageSource("page", ebitenImage(64, 64))
	}
	return out
}

func TestLoadSpriteSheetHash(t *testing.T) {
	pages := pageSources(1)
	sheet, err := LoadSpriteSheet([]byte(hashSheet), pages)
	require.NoError(t, err)
	assert.Equal(t, 2, sheet.Len())

	f, ok := sheet.Frame("hero.png")
	require.True(t, ok)
	assert.Equal(t, SpriteFrame{
		Page: 0, X: 2, Y: 4, W: 16, H: 24,
		OriginalW: 20, OriginalH: 26,
		OffsetX: 3, OffsetY: 1,
	}, f)

	tex := sheet.Texture("hero.png")
	assert.Same(t, pages[0], tex.Source())
	w, h := tex.Size()
	assert.Equal(t, [2]int{16, 24}, [2]int{w, h})
	assert.Same(t, tex, sheet.Texture("hero.png"), "frame textures are cached")

	img, _ := tex.frame()
	assert.Equal(t, image.Rect(2, 4, 18, 28), img.Bounds())
}

func TestLoadSpriteSheetArray(t *testing.T) {
	sheet, err := LoadSpriteSheet([]byte(arraySheet), pageSources(2))
	require.NoError(t, err)
	f, ok := sheet.Frame("two")
	require.True(t, ok)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, [2]int{4, 2}, [2]int{f.W, f.H})
}

func TestLoadSpriteSheetErrors(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		pages int
		want  string
	}{
		{"invalid json", `{"frames":`, 1, "failed to parse sprite sheet JSON"},
		{"no frames", `{"meta": {}}`, 1, "neither"},
		{"missing page", arraySheet, 1, "page 1 has no source"},
		{"rotated", `{"frames": {"r": {"frame": {"w": 1, "h": 1}, "rotated": true}}}`, 1, `"r" is rotated`},
		{"bad frames", `{"frames": []}`, 1, "failed to parse sprite sheet frames"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSpriteSheet([]byte(tt.json), pageSources(tt.pages))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSpriteSheetPlaceholder(t *testing.T) {
	sheet, err := LoadSpriteSheet([]byte(hashSheet), pageSources(1))
	require.NoError(t, err)
	_, ok := sheet.Frame("missing")
	assert.False(t, ok)

	p := sheet.Texture("missing")
	assert.Same(t, p, sheet.Texture("also missing"))
	w, h := p.Size()
	assert.Equal(t, [2]int{1, 1}, [2]int{w, h})
	assert.True(t, p.Source().permanent)
}

func TestSpriteSheetFramesAtlasWithPage(t *testing.T) {
	s := newTestStage(100, 100)
	page := s.NewImageSource("page", ebitenImage(64, 64))
	require.True(t, page.Atlased())
	sheet, err := LoadSpriteSheet([]byte(hashSheet), []*TextureSource{page})
	require.NoError(t, err)

	_, uv := sheet.Texture("coin.png").frame()
	x, y := float64(page.atlasX+20), float64(page.atlasY+4)
	size := float64(s.Config().AtlasSize)
	assert.Equal(t, [4]float64{x / size, y / size, (x + 8) / size, (y + 8) / size}, uv)
}
