// Package arbor is a retained-mode 2D scene graph renderer for [Ebitengine].
//
// Arbor keeps a tree of nodes and turns it into as few GPU draw calls as it
// can once per frame: only changed transforms and visibility are recomputed,
// off-screen subtrees are culled, and visible quads are grouped into
// operations that share a shader, a scissor and a render target.
//
// # Quick start
//
// The simplest way to get started is [Run], which creates a window and game
// loop for you:
//
//	stage := arbor.NewStage(arbor.DefaultConfig())
//	// ... add nodes ...
//	arbor.Run(stage, arbor.RunConfig{Title: "My Game"})
//
// For full control, implement [ebiten.Game] yourself and call
// [Stage.Update] and [Stage.Draw] directly:
//
//	type Game struct{ stage *arbor.Stage }
//
//	func (g *Game) Update() error               { return g.stage.Update() }
//	func (g *Game) Draw(s *ebiten.Image)        { g.stage.Draw(s) }
//	func (g *Game) Layout(w, h int) (int, int)  { return g.stage.Layout(w, h) }
//
// # Scene graph
//
// Every visual element is a [Node]. Nodes form a tree rooted at
// [Stage.Root]. Children inherit their parent's transform and alpha. What a
// node draws is its [Texture]: a region of a [TextureSource], or
// [RectangleTexture] for solid colors.
//
//	ui := arbor.NewNode("ui")
//	stage.Root().AddChild(ui)
//
//	hero := arbor.NewSprite("hero", sheet.Texture("hero_idle"))
//	hero.SetPosition(100, 50)
//	ui.AddChild(hero)
//
//	box := arbor.NewRect("box", 80, 40, arbor.Color{R: 0.3, G: 0.7, B: 1, A: 1})
//
// Mutators such as [Node.SetPosition] only record what changed. The next
// update recomputes the affected subtrees and nothing else.
//
// # Paint order
//
// Children paint in order. A nonzero z-index ([Node.SetZIndex]) lifts a node
// into its nearest z-context, where members paint in ascending z-index
// order with ties broken by tree order.
//
// # Textures
//
// [Stage.LoadImageSource] and [Stage.NewTextureSource] create sources that
// load on worker goroutines once a node displaying them comes within the
// bounds margin of the viewport. Small sources are packed into a shared
// [TextureAtlas]. Sprite sheets in TexturePacker JSON format load with
// [LoadSpriteSheet].
//
// # Render to texture and filters
//
// [Node.Texturizer] redirects a subtree into an offscreen texture, cached
// until something below it changes, and optionally through a chain of
// [Filter]s such as [BlurFilter] or [ColorMatrixFilter]. Nodes may select a
// [Shader] for themselves and their descendants with [Node.SetShader].
//
// # Frame events
//
// [Stage.AddFrameListener] registers callbacks for the start, update and end
// of each frame. Tweens (via [gween]) are advanced by [Stage.Animate], and
// the arbor/ecs module forwards frame events to a [Donburi] world.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
// [Donburi]: https://github.com/yohamta/donburi
package arbor
