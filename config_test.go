package arbor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	doc := `
width = 640
bounds_margin = -1
atlas_enabled = false
atlas_size = 1024
defrag_waste_threshold = 0.5
loader_concurrency = 8
screenshot_dir = "out/shots"
debug = true
`
	cfg, err := LoadConfig(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, defaultHeight, cfg.Height)
	assert.Equal(t, -1.0, cfg.BoundsMargin)
	assert.False(t, cfg.AtlasEnabled)
	assert.Equal(t, 1024, cfg.AtlasSize)
	assert.Equal(t, 0.5, cfg.DefragWasteThreshold)
	assert.Equal(t, 8, cfg.LoaderConcurrency)
	assert.Equal(t, "out/shots", cfg.ScreenshotDir)
	assert.True(t, cfg.Debug)
	assert.Equal(t, defaultRenderTextureMaxAge, cfg.RenderTextureMaxAge)
}

func TestLoadConfigEmptyIsDefault(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "widht = 10"},
		{"wrong type", `width = "wide"`},
		{"syntax", "width = "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tt.doc))
			assert.ErrorContains(t, err, "arbor: failed to parse config")
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Width: 10, BufferMemory: -5, ScreenshotDir: "x"}.withDefaults()
	assert.Equal(t, 10, cfg.Width)
	assert.Equal(t, defaultBufferMemory, cfg.BufferMemory)
	assert.Equal(t, "x", cfg.ScreenshotDir)
	assert.Equal(t, float64(defaultBoundsMargin), cfg.BoundsMargin)
	assert.False(t, cfg.AtlasEnabled, "booleans keep their value")
}

func TestConfigMaxQuads(t *testing.T) {
	cfg := Config{BufferMemory: 64 * 100}
	assert.Equal(t, 100, cfg.maxQuads())
	assert.Equal(t, defaultBufferMemory/64, DefaultConfig().maxQuads())
}
