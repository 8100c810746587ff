package arbor

import (
	"context"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Stage owns a scene tree and everything needed to draw it: the quad
// batcher, the executor, the render texture pool, the texture atlas and the
// texture loader. It is driven by Update and Draw, normally from an
// ebiten.Game.
type Stage struct {
	cfg Config

	root *Node
	// holder is the root's synthetic parent. Its scissor is the viewport.
	holder *Node

	frame  uint64
	visits uint64
	dt     float64

	batcher  *QuadBatcher
	executor *RenderExecutor
	renderer *renderer
	pool     *renderTexturePool
	atlas    *TextureAtlas
	loader   *textureLoader

	listeners    []frameListenerEntry
	nextListener uint64
	tweens       []*TweenGroup
	cameras      []*Camera
	updateFunc   func() error
	runner       *TestRunner
	screenshots  []string

	debug bool
	stats FrameStats
}

// NewStage creates a stage with an empty root node. Zero fields of cfg take
// their DefaultConfig values.
func NewStage(cfg Config) *Stage {
	cfg = cfg.withDefaults()
	s := &Stage{cfg: cfg}
	s.pool = newRenderTexturePool(cfg.RenderTextureMemory, cfg.RenderTextureMaxAge)
	s.batcher = newQuadBatcher(cfg.maxQuads(), NewDefaultShader())
	s.executor = newRenderExecutor(s.pool)
	s.renderer = newRenderer(s.batcher, s.pool)
	s.atlas = newTextureAtlas(cfg)
	s.loader = newTextureLoader(cfg.LoaderConcurrency)

	s.holder = &Node{Name: "stage", synthetic: true}
	s.holder.world = identityContext
	s.holder.outOfBounds = boundsIn
	s.holder.scissor = s.viewport()

	s.root = NewNode("root")
	s.root.parent = s.holder
	s.holder.children = []*Node{s.root}
	s.root.setRecalc(recalcAll | recalcBecomesVisible)
	s.SetDebugMode(cfg.Debug)
	return s
}

// Root returns the root node. It cannot be removed or disposed.
func (s *Stage) Root() *Node {
	return s.root
}

// Config returns the effective configuration.
func (s *Stage) Config() Config {
	return s.cfg
}

// Frame returns the number of updates run so far.
func (s *Stage) Frame() uint64 {
	return s.frame
}

// Stats returns the counters of the last frame.
func (s *Stage) Stats() FrameStats {
	return s.stats
}

// Atlas returns the stage's texture atlas.
func (s *Stage) Atlas() *TextureAtlas {
	return s.atlas
}

// SetDebugMode enables debug checks and per-frame stats logging at
// slog.LevelDebug.
func (s *Stage) SetDebugMode(v bool) {
	s.debug = v
	globalDebug = v
}

func (s *Stage) viewport() Rect {
	return Rect{Width: float64(s.cfg.Width), Height: float64(s.cfg.Height)}
}

// SetSize changes the stage dimensions. Bounds are recomputed on the next
// update.
func (s *Stage) SetSize(w, h int) {
	if w == s.cfg.Width && h == s.cfg.Height {
		return
	}
	s.cfg.Width, s.cfg.Height = w, h
	s.holder.scissor = s.viewport()
	s.root.setRecalc(recalcBounds)
}

// SetBoundsMargin changes the default bounds margin. Negative disables it.
func (s *Stage) SetBoundsMargin(m float64) {
	if s.cfg.BoundsMargin == m {
		return
	}
	s.cfg.BoundsMargin = m
	s.root.setRecalc(recalcBoundsMargin)
	// Every node re-checks its margin.
	s.holder.pRecalc = recalcBounds
}

// NewTextureSource creates a source loaded by load on a loader goroutine
// once a node displaying it enters the bounds margin.
func (s *Stage) NewTextureSource(name string, load LoadFunc) *TextureSource {
	src := newTextureSource(name)
	src.load = load
	src.loader = s.loader
	if s.cfg.AtlasEnabled {
		src.atlas = s.atlas
	}
	return src
}

// LoadImageSource is NewTextureSource with a LoadImageFile loader.
func (s *Stage) LoadImageSource(path string) *TextureSource {
	return s.NewTextureSource(path, LoadImageFile(path))
}

// NewImageSource wraps an available image. The image is atlased when it is
// small enough.
func (s *Stage) NewImageSource(name string, img *ebiten.Image) *TextureSource {
	src := NewImageSource(name, img)
	if s.cfg.AtlasEnabled {
		s.atlas.register(src)
	}
	return src
}

// AwaitTextures blocks until every requested load completed and was
// applied, or ctx is done.
func (s *Stage) AwaitTextures(ctx context.Context) error {
	return s.loader.await(ctx)
}

// Animate advances g on every frame until it is done.
func (s *Stage) Animate(g *TweenGroup) {
	s.tweens = append(s.tweens, g)
}

// SetUpdateFunc sets a callback run at the start of every Update, before
// the frame is stepped. An error it returns is returned by Update.
func (s *Stage) SetUpdateFunc(fn func() error) {
	s.updateFunc = fn
}

// Update runs the update callback and one frame of the update pass with the
// tick length of the running game.
func (s *Stage) Update() error {
	if s.updateFunc != nil {
		if err := s.updateFunc(); err != nil {
			return err
		}
	}
	s.Step(1.0 / float64(ebiten.TPS()))
	return nil
}

// Step runs one frame of the update pass: the FrameStart event, finished
// texture loads, tweens, the tree update and the FrameUpdate event.
func (s *Stage) Step(dt float64) {
	if s.runner != nil {
		s.runner.step(s)
	}
	s.frame++
	s.dt = dt
	s.stats = FrameStats{Frame: s.frame}
	st := &s.stats

	s.emit(FrameStart, dt)
	st.Loads = s.loader.drain()
	s.advanceTweens(dt)
	for _, c := range s.cameras {
		c.Update(float32(dt))
	}

	var start time.Time
	if s.debug {
		start = time.Now()
	}
	fc := FrameContext{
		Frame:        s.frame,
		Dt:           dt,
		visits:       &s.visits,
		boundsMargin: s.cfg.BoundsMargin,
		stats:        st,
	}
	s.root.update(&fc)
	s.holder.pRecalc = 0
	s.holder.hasUpdates = false
	if s.debug {
		st.UpdateTime = time.Since(start)
	}
	s.emit(FrameUpdate, dt)
}

func (s *Stage) advanceTweens(dt float64) {
	live := s.tweens[:0]
	for _, g := range s.tweens {
		g.Update(float32(dt))
		if !g.Done {
			live = append(live, g)
		}
	}
	clear(s.tweens[len(live):])
	s.tweens = live
}

// Draw records the operations for the current tree and executes them onto
// screen, then emits FrameEnd and runs the pool and atlas housekeeping.
func (s *Stage) Draw(screen *ebiten.Image) {
	st := &s.stats
	var start time.Time
	if s.debug {
		start = time.Now()
	}
	s.renderer.render(s.root, s.viewport(), st)
	st.Quads = s.batcher.buf.Len()
	st.QuadOps = len(s.batcher.ops)
	st.FilterOps = len(s.batcher.filters)
	if s.debug {
		st.RenderTime = time.Since(start)
		start = time.Now()
	}

	st.Uploads = s.atlas.flush()
	s.executor.execute(screen, s.batcher)
	s.renderer.releaseScratch()
	st.Exec = s.executor.Stats()
	if s.debug {
		st.ExecuteTime = time.Since(start)
	}

	s.flushScreenshots(screen)
	s.emit(FrameEnd, s.dt)
	s.pool.gc(s.frame)
	s.atlas.maybeDefrag(s.frame)
	s.debugLog(st)
}

// Layout returns the stage size, for use in ebiten.Game.Layout.
func (s *Stage) Layout(outsideWidth, outsideHeight int) (int, int) {
	return s.cfg.Width, s.cfg.Height
}

// ToTexture renders n and its subtree into a new RenderTexture of n's size,
// with n's origin at the top-left corner. It uses the state of the last
// update, so descendants outside the bounds margin are missing.
func (s *Stage) ToTexture(n *Node) *RenderTexture {
	w, h := ceilInt(n.w), ceilInt(n.h)
	if w <= 0 || h <= 0 {
		return nil
	}
	rt := NewRenderTexture(w, h)
	b := newQuadBatcher(2*countNodes(n), s.batcher.defaultShader)
	r := newRenderer(b, s.pool)
	r.snapshot(n, &renderTextureInfo{w: w, h: h, img: rt.image, lastQuad: -1})
	s.atlas.flush()
	newRenderExecutor(s.pool).execute(nil, b)
	r.releaseScratch()
	return rt
}

// FindNode returns the node at a slash separated path of names starting
// with the root's, as printed in panic messages, or nil.
func (s *Stage) FindNode(path string) *Node {
	names := strings.Split(path, "/")
	if len(names) == 0 || names[0] != s.root.Name {
		return nil
	}
	n := s.root
	for _, name := range names[1:] {
		var next *Node
		for _, c := range n.children {
			if c.Name == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		n = next
	}
	return n
}

func countNodes(n *Node) int {
	c := 1
	for _, ch := range n.children {
		c += countNodes(ch)
	}
	return c
}

// Dispose disposes the tree, stops texture loads and frees every pooled
// texture. The stage must not be used afterwards.
func (s *Stage) Dispose() {
	for _, c := range s.root.children {
		c.parent = nil
		c.dispose()
	}
	s.root.children = nil
	s.root.dispose()
	s.loader.close()
	s.pool.evict(s.pool.used)
	if s.atlas.image != nil {
		s.atlas.image.Deallocate()
		s.atlas.image = nil
	}
	s.listeners = nil
	s.tweens = nil
	s.cameras = nil
	s.runner = nil
	s.screenshots = nil
}
