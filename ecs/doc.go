// Package ecs provides ECS adapters for grove's object lifecycle events.
//
// The primary adapter is [NewDonburiSink], which bridges grove object
// events (spawned, destroyed, reset) into a [Donburi] world as typed events.
// Subscribe to [ObjectEventType] in your ECS systems to receive them, or
// attach a [Mirror] to keep one entity per live object.
//
// Usage:
//
//	world := donburi.NewWorld()
//	mirror := ecs.NewMirror(world)
//	cfg.Events = ecs.NewDonburiSink(world)
//	...
//	events.ProcessAllEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
