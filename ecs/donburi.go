package ecs

import (
	"github.com/phanxgames/arbor"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
)

// FrameEventType is the Donburi event type for arbor frame events.
var FrameEventType = events.NewEventType[arbor.FrameEvent]()

// NewFrameEventSink returns a frame listener that publishes every frame
// event to world. Events are queued until FrameEventType.ProcessEvents or
// events.ProcessAllEvents runs.
func NewFrameEventSink(world donburi.World) arbor.FrameListener {
	return func(ev arbor.FrameEvent) {
		FrameEventType.Publish(world, ev)
	}
}

// NodeData links an entity to the scene node that displays it.
type NodeData struct {
	Node *arbor.Node
}

// Transform is the local transform mirrored onto an entity's node.
type Transform struct {
	X, Y           float64
	ScaleX, ScaleY float64
	Rotation       float64
	Alpha          float64
}

// IdentityTransform is a Transform at the origin with unit scale and full
// opacity.
var IdentityTransform = Transform{ScaleX: 1, ScaleY: 1, Alpha: 1}

var (
	// NodeComponent holds the entity's scene node.
	NodeComponent = donburi.NewComponentType[NodeData]()
	// TransformComponent holds the transform SyncTransforms applies.
	TransformComponent = donburi.NewComponentType[Transform](IdentityTransform)
)

var syncQuery = donburi.NewQuery(filter.Contains(NodeComponent, TransformComponent))

// SyncTransforms copies the Transform of every entity that has a node onto
// the node. Unchanged values leave the node untouched, so idle entities cost
// no update work. Entities whose node was disposed are removed.
func SyncTransforms(world donburi.World) int {
	var synced int
	var stale []donburi.Entity
	syncQuery.Each(world, func(e *donburi.Entry) {
		n := NodeComponent.Get(e).Node
		if n == nil || n.IsDisposed() {
			stale = append(stale, e.Entity())
			return
		}
		t := TransformComponent.Get(e)
		n.SetPosition(t.X, t.Y)
		n.SetScale(t.ScaleX, t.ScaleY)
		n.SetRotation(t.Rotation)
		n.SetAlpha(t.Alpha)
		synced++
	})
	for _, e := range stale {
		world.Remove(e)
	}
	return synced
}

// NewNodeEntity creates an entity displayed by n, with the node's current
// transform.
func NewNodeEntity(world donburi.World, n *arbor.Node) donburi.Entity {
	e := world.Create(NodeComponent, TransformComponent)
	entry := world.Entry(e)
	NodeComponent.SetValue(entry, NodeData{Node: n})
	x, y := n.Position()
	sx, sy := n.Scale()
	TransformComponent.SetValue(entry, Transform{
		X: x, Y: y,
		ScaleX: sx, ScaleY: sy,
		Rotation: n.Rotation(),
		Alpha:    n.Alpha(),
	})
	return e
}
