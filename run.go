package arbor

import "github.com/hajimehoshi/ebiten/v2"

// RunConfig configures the window opened by Run.
type RunConfig struct {
	Title string
	// Width and Height are the window size. Zero uses the stage size.
	Width, Height int
	// ClearColor fills the screen before the stage is drawn.
	ClearColor Color
	// ShowFPS adds an FPS widget to the stage root.
	ShowFPS bool
	// Resizable lets the user resize the window. The stage follows the new
	// size.
	Resizable bool
}

// game adapts a Stage to ebiten.Game.
type game struct {
	stage *Stage
	cfg   RunConfig
}

func (g *game) Update() error {
	return g.stage.Update()
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.cfg.ClearColor.A > 0 {
		screen.Fill(g.cfg.ClearColor.toRGBA())
	}
	g.stage.Draw(screen)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if g.cfg.Resizable {
		g.stage.SetSize(outsideWidth, outsideHeight)
	}
	return g.stage.Layout(outsideWidth, outsideHeight)
}

// Run opens a window and drives the stage until the window is closed or the
// update callback returns an error. It blocks.
func Run(s *Stage, cfg RunConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = s.cfg.Width, s.cfg.Height
	}
	if cfg.ShowFPS {
		s.Root().AddChild(NewFPSWidget(s))
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	if cfg.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	return ebiten.RunGame(&game{stage: s, cfg: cfg})
}
