package arbor

import (
	"encoding/json"
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// SpriteFrame describes one named frame of a sprite sheet page.
type SpriteFrame struct {
	Page       int // index into SpriteSheet.Pages
	X, Y, W, H int // frame rectangle within the page
	// OriginalW and OriginalH are the untrimmed size as authored.
	OriginalW, OriginalH int
	// OffsetX and OffsetY are the trim offsets of the frame within the
	// untrimmed size.
	OffsetX, OffsetY int
}

// SpriteSheet holds the pages of a TexturePacker export and its named
// frames. Frame textures are region textures over the page sources, so they
// load, atlas and dispose with their page.
type SpriteSheet struct {
	// Pages are the page sources indexed by page number.
	Pages    []*TextureSource
	frames   map[string]SpriteFrame
	textures map[string]*Texture
}

// Frame returns the frame with the given name.
func (s *SpriteSheet) Frame(name string) (SpriteFrame, bool) {
	f, ok := s.frames[name]
	return f, ok
}

// Len returns the number of frames.
func (s *SpriteSheet) Len() int {
	return len(s.frames)
}

// Texture returns the texture of the named frame. An unknown name logs a
// warning and returns a 1x1 magenta placeholder.
func (s *SpriteSheet) Texture(name string) *Texture {
	if t, ok := s.textures[name]; ok {
		return t
	}
	f, ok := s.frames[name]
	if !ok || f.Page >= len(s.Pages) {
		logger.Warn("arbor: sprite frame not found, using placeholder", "frame", name)
		return magentaTexture()
	}
	t := NewRegionTexture(s.Pages[f.Page], f.X, f.Y, f.W, f.H)
	s.textures[name] = t
	return t
}

// Placeholder singleton (no sync.Once: textures are created on the render
// goroutine).
var magentaTex *Texture

func magentaTexture() *Texture {
	if magentaTex == nil {
		img := ebiten.NewImage(1, 1)
		img.Fill(color.RGBA{R: 255, B: 255, A: 255})
		src := NewImageSource("placeholder", img)
		src.permanent = true
		magentaTex = NewTexture(src)
	}
	return magentaTex
}

// LoadSpriteSheet parses TexturePacker JSON and associates the given page
// sources. Both the hash format (a single "frames" object) and the array
// format ("textures" with per-page frame lists) are accepted. Rotated frames
// are rejected.
func LoadSpriteSheet(jsonData []byte, pages []*TextureSource) (*SpriteSheet, error) {
	var layout struct {
		Frames   json.RawMessage `json:"frames"`
		Textures json.RawMessage `json:"textures"`
	}
	if err := json.Unmarshal(jsonData, &layout); err != nil {
		return nil, fmt.Errorf("arbor: failed to parse sprite sheet JSON: %w", err)
	}

	sheet := &SpriteSheet{
		Pages:    pages,
		frames:   make(map[string]SpriteFrame),
		textures: make(map[string]*Texture),
	}

	switch {
	case layout.Textures != nil:
		var textures []jsonTexturePage
		if err := json.Unmarshal(layout.Textures, &textures); err != nil {
			return nil, fmt.Errorf("arbor: failed to parse sprite sheet textures: %w", err)
		}
		for i, tex := range textures {
			if err := sheet.addFrames(tex.Frames, i); err != nil {
				return nil, err
			}
		}
	case layout.Frames != nil:
		var frames map[string]jsonFrame
		if err := json.Unmarshal(layout.Frames, &frames); err != nil {
			return nil, fmt.Errorf("arbor: failed to parse sprite sheet frames: %w", err)
		}
		if err := sheet.addFrames(frames, 0); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("arbor: sprite sheet JSON has neither \"frames\" nor \"textures\" key")
	}
	return sheet, nil
}

func (s *SpriteSheet) addFrames(frames map[string]jsonFrame, page int) error {
	if page >= len(s.Pages) {
		return fmt.Errorf("arbor: sprite sheet page %d has no source (%d given)", page, len(s.Pages))
	}
	for name, f := range frames {
		if f.Rotated {
			return fmt.Errorf("arbor: sprite frame %q is rotated; export without rotation", name)
		}
		s.frames[name] = SpriteFrame{
			Page:      page,
			X:         f.Frame.X,
			Y:         f.Frame.Y,
			W:         f.Frame.W,
			H:         f.Frame.H,
			OriginalW: f.SourceSize.W,
			OriginalH: f.SourceSize.H,
			OffsetX:   f.SpriteSourceSize.X,
			OffsetY:   f.SpriteSourceSize.Y,
		}
	}
	return nil
}

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Frame            jsonRect `json:"frame"`
	Rotated          bool     `json:"rotated"`
	Trimmed          bool     `json:"trimmed"`
	SpriteSourceSize jsonRect `json:"spriteSourceSize"`
	SourceSize       jsonSize `json:"sourceSize"`
}

type jsonTexturePage struct {
	Image  string               `json:"image"`
	Frames map[string]jsonFrame `json:"frames"`
}
