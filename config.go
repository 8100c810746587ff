package arbor

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the per-stage settings. Zero values fall back to the defaults
// of DefaultConfig when the stage is created.
type Config struct {
	// Width and Height are the stage dimensions in pixels. The root node's
	// synthetic parent uses them as its viewport and scissor.
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// BufferMemory is the size in bytes of the shared quad buffer. Exceeding
	// it during a frame is a fatal configuration error.
	BufferMemory int `toml:"buffer_memory"`

	// BoundsMargin is the default off-screen allowance, in pixels, before a
	// node stops being within bounds margin. Negative disables the margin.
	BoundsMargin float64 `toml:"bounds_margin"`

	// AtlasEnabled packs small texture sources into one shared surface.
	AtlasEnabled bool `toml:"atlas_enabled"`
	// AtlasSize is the width and height of the atlas surface.
	AtlasSize int `toml:"atlas_size"`
	// AtlasMaxTextureSize is the largest source dimension that is atlased.
	AtlasMaxTextureSize int `toml:"atlas_max_texture_size"`
	// DefragWasteThreshold is the fraction of the atlas area that must be
	// wasted before a defragmentation is attempted.
	DefragWasteThreshold float64 `toml:"defrag_waste_threshold"`
	// DefragIntervalFrames is the minimum number of frames between two
	// defragmentations.
	DefragIntervalFrames int `toml:"defrag_interval_frames"`

	// RenderTextureMemory is the soft ceiling, in bytes, of pooled render
	// textures. Beyond it the oldest free textures are evicted.
	RenderTextureMemory int64 `toml:"render_texture_memory"`
	// RenderTextureMaxAge is the number of frames a free pooled render
	// texture is kept before it is deallocated.
	RenderTextureMaxAge int `toml:"render_texture_max_age"`

	// LoaderConcurrency bounds the number of texture sources decoded at once.
	LoaderConcurrency int `toml:"loader_concurrency"`

	// ScreenshotDir is the directory Stage.Screenshot writes PNG files to.
	ScreenshotDir string `toml:"screenshot_dir"`

	// Debug enables disposed-node checks, tree warnings and frame stats.
	Debug bool `toml:"debug"`
}

const (
	defaultWidth                = 1280
	defaultHeight               = 720
	defaultBufferMemory         = 8 * 1024 * 1024
	defaultBoundsMargin         = 100
	defaultAtlasSize            = 2048
	defaultAtlasMaxTextureSize  = 512
	defaultDefragWasteThreshold = 0.25
	defaultDefragIntervalFrames = 60
	defaultRenderTextureMemory  = 64 * 1024 * 1024
	defaultRenderTextureMaxAge  = 300
	defaultLoaderConcurrency    = 4
	defaultScreenshotDir        = "screenshots"
)

// DefaultConfig returns the configuration used for zero-valued fields.
func DefaultConfig() Config {
	return Config{
		Width:                defaultWidth,
		Height:               defaultHeight,
		BufferMemory:         defaultBufferMemory,
		BoundsMargin:         defaultBoundsMargin,
		AtlasEnabled:         true,
		AtlasSize:            defaultAtlasSize,
		AtlasMaxTextureSize:  defaultAtlasMaxTextureSize,
		DefragWasteThreshold: defaultDefragWasteThreshold,
		DefragIntervalFrames: defaultDefragIntervalFrames,
		RenderTextureMemory:  defaultRenderTextureMemory,
		RenderTextureMaxAge:  defaultRenderTextureMaxAge,
		LoaderConcurrency:    defaultLoaderConcurrency,
		ScreenshotDir:        defaultScreenshotDir,
	}
}

// withDefaults fills zero fields from DefaultConfig. Booleans are left
// untouched, so a zero Config has the atlas disabled unless it came from
// DefaultConfig or LoadConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.BufferMemory <= 0 {
		c.BufferMemory = d.BufferMemory
	}
	if c.BoundsMargin == 0 {
		c.BoundsMargin = d.BoundsMargin
	}
	if c.AtlasSize <= 0 {
		c.AtlasSize = d.AtlasSize
	}
	if c.AtlasMaxTextureSize <= 0 {
		c.AtlasMaxTextureSize = d.AtlasMaxTextureSize
	}
	if c.DefragWasteThreshold <= 0 {
		c.DefragWasteThreshold = d.DefragWasteThreshold
	}
	if c.DefragIntervalFrames <= 0 {
		c.DefragIntervalFrames = d.DefragIntervalFrames
	}
	if c.RenderTextureMemory <= 0 {
		c.RenderTextureMemory = d.RenderTextureMemory
	}
	if c.RenderTextureMaxAge <= 0 {
		c.RenderTextureMaxAge = d.RenderTextureMaxAge
	}
	if c.LoaderConcurrency <= 0 {
		c.LoaderConcurrency = d.LoaderConcurrency
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = d.ScreenshotDir
	}
	return c
}

// maxQuads is the quad capacity of the shared buffer.
func (c Config) maxQuads() int {
	return c.BufferMemory / (quadWords * 4)
}

// LoadConfig parses a TOML document into a Config. Keys that are absent keep
// the values of DefaultConfig.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("arbor: failed to parse config: %w", err)
	}
	return cfg.withDefaults(), nil
}
