package scene

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/game_object"
)

var (
	// ErrNilObject is returned when a nil object is added to a scene.
	ErrNilObject = errors.New("scene: nil object")

	// ErrNoAnimator is returned when an object without an Animator is added to a scene.
	ErrNoAnimator = errors.New("scene: object has no animator")
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is updated by the engine. Scenes start active.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithObjects adds initial objects to the scene.
// Objects without IDs will be assigned new IDs. Objects without an Animator are skipped
// with a warning.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(s *scene) {
		for _, obj := range objects {
			if obj == nil || obj.Animator() == nil {
				common.Logger().Warn("[Scene] skipping object without animator", "scene", s.name)
				continue
			}
			s.register(obj)
		}
	}
}

// WithUpdateWorkers sets the number of worker goroutines used for animation updates.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of update workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithUpdateWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.updateWorkers = n
	}
}

// WithQueueSize sets the capacity of the worker task queue. Submitting more worker-safe
// animators than this in one frame blocks the game thread until workers catch up.
// Defaults to 256.
func WithQueueSize(n int) SceneBuilderOption {
	return func(s *scene) {
		s.queueSize = max(n, 1)
	}
}

// WithGameThreadOnly runs every animator on the goroutine calling Update, regardless of
// whether its graph allows worker updates.
//
// Parameters:
//   - enabled: true to disable the worker pool for updates
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithGameThreadOnly(enabled bool) SceneBuilderOption {
	return func(s *scene) {
		s.forceGameThread = enabled
	}
}

// WithRootMotionAlpha sets the fraction of accumulated root motion each object consumes per
// Update. Defaults to 1.
func WithRootMotionAlpha(alpha float32) SceneBuilderOption {
	return func(s *scene) {
		s.rootMotionAlpha = common.Clamp01(alpha)
	}
}
