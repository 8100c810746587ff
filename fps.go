package arbor

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// NewFPSWidget creates a node that displays the current FPS and TPS and the
// quad and draw call counts of the stage. The text is redrawn every ~0.5
// seconds into a RenderTexture, which invalidates only this node. The widget
// stops updating once disposed.
func NewFPSWidget(s *Stage) *Node {
	// 140x48 fits three lines of debug text.
	rt := NewRenderTexture(140, 48)
	n := NewSprite("fps_widget", rt.Texture())
	n.SetZIndex(math.MaxInt32) // above everything in the root's z-context

	var elapsed float64
	var remove func()
	remove = s.AddFrameListener(func(ev FrameEvent) {
		if ev.Phase != FrameUpdate {
			return
		}
		if n.IsDisposed() {
			remove()
			rt.Dispose()
			return
		}
		elapsed += ev.Dt
		if elapsed < 0.5 {
			return
		}
		elapsed = 0

		st := s.Stats()
		img := rt.Image()
		img.Fill(color.RGBA{0, 0, 0, 128})
		ebitenutil.DebugPrint(img, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nquads %d calls %d",
			ebiten.ActualFPS(), ebiten.ActualTPS(), st.Quads, st.Exec.DrawCalls))
		rt.Changed()
	})
	return n
}
