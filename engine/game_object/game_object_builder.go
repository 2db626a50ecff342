package game_object

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/animator"
	"github.com/go-gl/mathgl/mgl32"
)

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithID sets the ID of the GameObject.
//
// Parameters:
//   - id: unique identifier for the GameObject
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the ID
func WithID(id uint64) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.id = id
	}
}

// WithName sets the display name of the GameObject. Defaults to the Animator's name.
func WithName(name string) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.name = name
	}
}

// WithEnabled sets whether the GameObject is ticked by its scene. Objects start enabled.
//
// Parameters:
//   - enabled: true to tick the object, false to skip it
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithEphemeral marks the GameObject as ephemeral. Ephemeral objects are not
// persisted in the scene's registry; they are ticked by the next Update and then dropped.
//
// Parameters:
//   - ephemeral: true to mark as ephemeral
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Ephemeral flag
func WithEphemeral(ephemeral bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.ephemeral = ephemeral
	}
}

// WithAnimator sets the Animator driving this GameObject.
//
// Parameters:
//   - a: the Animator to associate
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Animator
func WithAnimator(a animator.Animator) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.animator = a
	}
}

// WithPosition sets the initial world position of the GameObject.
func WithPosition(x, y, z float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.position = mgl32.Vec3{x, y, z}
	}
}

// WithScale sets the initial world scale of the GameObject.
func WithScale(sx, sy, sz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.scale = mgl32.Vec3{sx, sy, sz}
	}
}

// WithRotation sets the initial world orientation from Euler angles in radians, applied
// in yaw (Y), pitch (X), roll (Z) order.
//
// Parameters:
//   - rx: the pitch angle
//   - ry: the yaw angle
//   - rz: the roll angle
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the initial rotation
func WithRotation(rx, ry, rz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotation = mgl32.AnglesToQuat(ry, rx, rz, mgl32.YXZ).Normalize()
	}
}

// WithRootMotion sets whether consumed root motion moves the object. Enabled by default.
//
// Parameters:
//   - enabled: false to consume root motion without applying it
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the root motion flag
func WithRootMotion(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.applyRootMotion = enabled
	}
}
