// Package ecs provides ECS adapters for grove.
package ecs

import (
	"github.com/phanxgames/grove"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
)

// ObjectEventType is the Donburi event type for grove object lifecycle
// events. Subscribe to this in your ECS systems to learn about spawned and
// destroyed objects and VM resets.
var ObjectEventType = events.NewEventType[grove.ObjectEvent]()

// ObjectData is the component a Mirror attaches to each object's entity.
type ObjectData struct {
	Handle     grove.Handle
	Name       string
	Parent     grove.Handle
	Generation int
}

// Object is the component type holding ObjectData.
var Object = donburi.NewComponentType[ObjectData]()

var objectQuery = donburi.NewQuery(filter.Contains(Object))

type donburiSink struct {
	world donburi.World
}

// NewDonburiSink creates an EventSink backed by a Donburi world.
// Lifecycle events are published to ObjectEventType and can be consumed
// with events.Subscribe and ProcessEvents.
func NewDonburiSink(world donburi.World) grove.EventSink {
	return &donburiSink{world: world}
}

func (s *donburiSink) EmitEvent(event grove.ObjectEvent) {
	ObjectEventType.Publish(s.world, event)
}

// Mirror keeps one entity per live object, built from the events
// published to ObjectEventType. Entities change when the world's events
// are processed, not when the VM emits them.
type Mirror struct {
	world    donburi.World
	entities map[grove.Handle]donburi.Entity
}

// NewMirror subscribes a mirror to world.
func NewMirror(world donburi.World) *Mirror {
	m := &Mirror{world: world, entities: make(map[grove.Handle]donburi.Entity)}
	ObjectEventType.Subscribe(world, m.apply)
	return m
}

func (m *Mirror) apply(w donburi.World, e grove.ObjectEvent) {
	switch e.Type {
	case grove.EventSpawned:
		ent := w.Create(Object)
		Object.SetValue(w.Entry(ent), ObjectData{
			Handle:     e.Handle,
			Name:       e.Name,
			Parent:     e.Parent,
			Generation: e.Generation,
		})
		m.entities[e.Handle] = ent
	case grove.EventDestroyed:
		if ent, ok := m.entities[e.Handle]; ok {
			w.Remove(ent)
			delete(m.entities, e.Handle)
		}
	case grove.EventReset:
		for h, ent := range m.entities {
			w.Remove(ent)
			delete(m.entities, h)
		}
	}
}

// Entity returns the entity mirroring h.
func (m *Mirror) Entity(h grove.Handle) (donburi.Entity, bool) {
	ent, ok := m.entities[h]
	return ent, ok
}

// Data returns the mirrored data for h.
func (m *Mirror) Data(h grove.Handle) (ObjectData, bool) {
	ent, ok := m.entities[h]
	if !ok || !m.world.Valid(ent) {
		return ObjectData{}, false
	}
	return *Object.Get(m.world.Entry(ent)), true
}

// Count returns the number of entities carrying Object.
func (m *Mirror) Count() int {
	return objectQuery.Count(m.world)
}
