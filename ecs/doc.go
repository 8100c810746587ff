// Package ecs connects an arbor stage to a [Donburi] world.
//
// [NewFrameEventSink] publishes the stage's frame events as typed Donburi
// events; subscribe to [FrameEventType] in your systems to receive them.
// Entities that carry a [NodeComponent] and a [TransformComponent] can be
// mirrored onto their scene nodes with [SyncTransforms].
//
// Usage:
//
//	world := donburi.NewWorld()
//	stage.AddFrameListener(ecs.NewFrameEventSink(world))
//	stage.AddFrameListener(func(ev arbor.FrameEvent) {
//		if ev.Phase == arbor.FrameStart {
//			ecs.SyncTransforms(world)
//		}
//		ecs.FrameEventType.ProcessEvents(world)
//	})
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
