package engine

import (
	"errors"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
)

var (
	// ErrAlreadyRunning is returned by Run when the loop is already running.
	ErrAlreadyRunning = errors.New("engine: already running")

	// ErrTickPanic wraps a panic recovered from the tick loop.
	ErrTickPanic = errors.New("engine: tick panicked")
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfilerInterval sets how often profiler stats are logged. Defaults to 1 second.
func WithProfilerInterval(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.profiler.SetInterval(d)
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithMaxDelta caps the delta handed to scenes in one tick. Defaults to 0.25 seconds;
// 0 disables the cap.
//
// Parameters:
//   - seconds: the largest delta a tick may use
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMaxDelta(seconds float32) EngineBuilderOption {
	return func(e *engine) {
		e.maxDelta = max(seconds, 0)
	}
}

// WithTickCallback registers the function called at the start of each tick.
func WithTickCallback(callback func(deltaTime float32)) EngineBuilderOption {
	return func(e *engine) {
		e.tickCallback = callback
	}
}

// WithScene registers a scene at the given key during engine construction.
// Scenes are updated in ascending key order each tick.
//
// Parameters:
//   - key: the ordering key (lower updates first)
//   - s: the Scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}
