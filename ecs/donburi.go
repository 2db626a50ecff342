package ecs

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/anim"
	"github.com/Carmen-Shannon/oxy-anim/engine/game_object"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoAnimator is returned by NewEntity for an object without an Animator.
	ErrNoAnimator = errors.New("ecs: object has no animator")

	// ErrUpdatePanic wraps a panic recovered from an animator update.
	ErrUpdatePanic = errors.New("ecs: animator update panicked")
)

// AnimatedData is the component data attaching an animated object to an entity.
type AnimatedData struct {
	Object game_object.GameObject
}

// Animated is the Donburi component holding an entity's animated object.
var Animated = donburi.NewComponentType[AnimatedData]()

// Paused is a tag that keeps the animation system from updating an entity.
var Paused = donburi.NewTag()

// NotifyEvent is published for every notify an entity's animator fires.
type NotifyEvent struct {
	Entity donburi.Entity
	Notify anim.AnimNotify
}

// NotifyEventType is the Donburi event type for animation notifies.
var NotifyEventType = events.NewEventType[NotifyEvent]()

// NewEntity creates an entity carrying obj in the Animated component.
//
// Parameters:
//   - world: the world to create the entity in
//   - obj: the animated object, which must have an Animator
//
// Returns:
//   - donburi.Entity: the new entity
//   - error: ErrNoAnimator if obj cannot be animated
func NewEntity(world donburi.World, obj game_object.GameObject) (donburi.Entity, error) {
	if obj == nil || obj.Animator() == nil {
		return donburi.Null, ErrNoAnimator
	}
	e := world.Create(Animated)
	Animated.Set(world.Entry(e), &AnimatedData{Object: obj})
	return e, nil
}

// AnimationSystem updates every entity with an Animated component that is not Paused.
type AnimationSystem struct {
	query       *donburi.Query
	concurrency int
	alpha       float32

	// entries and entities are scratch reused every Update.
	entries  []game_object.GameObject
	entities []donburi.Entity
}

// SystemBuilderOption is a functional option for configuring an AnimationSystem.
type SystemBuilderOption func(*AnimationSystem)

// WithConcurrency bounds the number of animator updates running at once.
// Defaults to runtime.NumCPU().
func WithConcurrency(n int) SystemBuilderOption {
	return func(s *AnimationSystem) {
		s.concurrency = max(n, 1)
	}
}

// WithRootMotionAlpha sets the fraction of accumulated root motion consumed per Update.
// Defaults to 1.
func WithRootMotionAlpha(alpha float32) SystemBuilderOption {
	return func(s *AnimationSystem) {
		s.alpha = common.Clamp01(alpha)
	}
}

// NewAnimationSystem creates an AnimationSystem.
//
// Parameters:
//   - options: functional options to configure the system
//
// Returns:
//   - *AnimationSystem: the new system
func NewAnimationSystem(options ...SystemBuilderOption) *AnimationSystem {
	s := &AnimationSystem{
		query: donburi.NewQuery(filter.And(
			filter.Contains(Animated),
			filter.Not(filter.Contains(Paused)),
		)),
		concurrency: runtime.NumCPU(),
		alpha:       1,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Update advances every matching entity by deltaSeconds and publishes their notifies.
// Objects that are disabled are skipped. PostUpdate and root motion run even when an update
// fails, so every animator finishes the frame.
//
// Parameters:
//   - ctx: cancel to abort before the frame starts
//   - world: the world to query
//   - deltaSeconds: the frame delta in seconds
//
// Returns:
//   - error: the context's error, or the first recovered update panic wrapped in ErrUpdatePanic
func (s *AnimationSystem) Update(ctx context.Context, world donburi.World, deltaSeconds float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	objs, ents := s.entries[:0], s.entities[:0]
	s.query.Each(world, func(entry *donburi.Entry) {
		obj := Animated.Get(entry).Object
		if obj == nil || obj.Animator() == nil || !obj.Enabled() {
			return
		}
		objs = append(objs, obj)
		ents = append(ents, entry.Entity())
	})
	s.entries, s.entities = objs, ents

	for _, obj := range objs {
		obj.Animator().PreUpdate(deltaSeconds)
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	var local []game_object.GameObject
	for _, obj := range objs {
		a := obj.Animator()
		if !a.CanUpdateInWorkerThread() {
			local = append(local, obj)
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %s: %v", ErrUpdatePanic, a.Name(), r)
				}
			}()
			a.UpdateAnimation()
			return nil
		})
	}
	for _, obj := range local {
		obj.Animator().UpdateAnimation()
	}
	err := g.Wait()
	if err != nil {
		common.Logger().Warn("[ECS] animation update failed", "error", err)
	}

	for i, obj := range objs {
		a := obj.Animator()
		a.PostUpdate()
		for _, n := range a.Notifies() {
			NotifyEventType.Publish(world, NotifyEvent{Entity: ents[i], Notify: n})
		}
		obj.ApplyRootMotion(s.alpha)
	}
	return err
}
