// Package ecs provides [Donburi] adapters for oxy-anim.
//
// Attach an animated game object to an entity with [NewEntity] (or set [Animated] yourself)
// and call [AnimationSystem.Update] once per frame. The system runs the same three-phase
// frame as a scene: PreUpdate and PostUpdate on the calling goroutine, UpdateAnimation
// fanned out across goroutines for graphs that allow it. Notifies are published to
// [NotifyEventType]; subscribe to it and call events.ProcessAllEvents to receive them.
//
// Usage:
//
//	world := donburi.NewWorld()
//	ecs.NewEntity(world, obj)
//	sys := ecs.NewAnimationSystem(ecs.WithConcurrency(4))
//	ecs.NotifyEventType.Subscribe(world, onNotify)
//	if err := sys.Update(ctx, world, dt); err != nil { ... }
//	events.ProcessAllEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
