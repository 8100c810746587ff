package arbor

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Screenshot queues a labeled screenshot of the next drawn frame. The PNG
// is written to Config.ScreenshotDir with a timestamped filename once the
// frame's operations executed. Safe to call from Update or Draw.
func (s *Stage) Screenshot(label string) {
	s.screenshots = append(s.screenshots, label)
}

// flushScreenshots writes every queued screenshot of screen.
func (s *Stage) flushScreenshots(screen *ebiten.Image) {
	if len(s.screenshots) == 0 || screen == nil {
		return
	}
	defer func() {
		clear(s.screenshots)
		s.screenshots = s.screenshots[:0]
	}()

	if logError(os.MkdirAll(s.cfg.ScreenshotDir, 0o755)) != nil {
		return
	}
	img := straightAlpha(screen)
	stamp := time.Now().Format("20060102_150405")
	for _, label := range s.screenshots {
		path := filepath.Join(s.cfg.ScreenshotDir, fmt.Sprintf("%s_%s.png", stamp, sanitizeLabel(label)))
		if logError(writePNG(path, img)) == nil {
			logger.Info("arbor: screenshot written", "path", path, "frame", s.frame)
		}
	}
}

// straightAlpha reads back img and converts its premultiplied pixels to
// straight alpha.
func straightAlpha(img *ebiten.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.ReadPixels(out.Pix)
	for i := 0; i < len(out.Pix); i += 4 {
		a := out.Pix[i+3]
		if a == 0 || a == 255 {
			continue
		}
		for j := range 3 {
			out.Pix[i+j] = uint8(min(int(out.Pix[i+j])*255/int(a), 255))
		}
	}
	return out
}

// writePNG writes img to path as a PNG file.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("arbor: screenshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("arbor: screenshot: encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel makes label usable in a file name. Runes other than ASCII
// letters, digits, '-' and '.' become '_'; a blank label is "unlabeled".
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, label)
}
