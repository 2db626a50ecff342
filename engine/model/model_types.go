package model

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
)

// --- Transform & Skeleton Types ---

// Transform represents a decomposed bone-local transform.
type Transform struct {
	// Translation is the position offset.
	Translation mgl32.Vec3

	// Rotation is the orientation as a unit quaternion.
	Rotation mgl32.Quat

	// Scale is the scale factor along each axis.
	Scale mgl32.Vec3
}

// IdentityTransform returns a transform with no translation, identity rotation and unit scale.
//
// Returns:
//   - Transform: the identity transform
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// AdditiveIdentityTransform returns the identity of an additive pose: zero translation,
// identity rotation and zero scale delta.
//
// Returns:
//   - Transform: the additive identity transform
func AdditiveIdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent()}
}

// ContainsNaN reports whether any component of the transform is NaN or infinite.
//
// Returns:
//   - bool: true if the transform is corrupt
func (t Transform) ContainsNaN() bool {
	for i := range 3 {
		if common.IsNaN(t.Translation[i]) || common.IsNaN(t.Scale[i]) || common.IsNaN(t.Rotation.V[i]) {
			return true
		}
	}
	return common.IsNaN(t.Rotation.W)
}

// IsRotationNormalized reports whether the rotation quaternion has unit length within tolerance.
//
// Parameters:
//   - tolerance: maximum allowed deviation of |q| from 1
//
// Returns:
//   - bool: true if the rotation is normalized
func (t Transform) IsRotationNormalized(tolerance float32) bool {
	return common.NearlyEqual(t.Rotation.Len(), 1, tolerance)
}

// Equals compares two transforms component-wise with a tolerance.
// Rotations q and -q are considered equal.
//
// Parameters:
//   - other: the transform to compare against
//   - tolerance: the allowed per-component difference
//
// Returns:
//   - bool: true if the transforms match
func (t Transform) Equals(other Transform, tolerance float32) bool {
	if !t.Translation.ApproxEqualThreshold(other.Translation, tolerance) || !t.Scale.ApproxEqualThreshold(other.Scale, tolerance) {
		return false
	}
	return t.Rotation.ApproxEqualThreshold(other.Rotation, tolerance) || t.Rotation.ApproxEqualThreshold(other.Rotation.Scale(-1), tolerance)
}

// RelativeTo returns the delta that takes base to t, expressed in base's frame for rotation
// and in component space for translation.
//
// Parameters:
//   - base: the starting transform
//
// Returns:
//   - Transform: the delta transform
func (t Transform) RelativeTo(base Transform) Transform {
	inv := base.Rotation.Inverse()
	return Transform{
		Translation: inv.Rotate(t.Translation.Sub(base.Translation)),
		Rotation:    inv.Mul(t.Rotation).Normalize(),
		Scale:       mgl32.Vec3{1, 1, 1},
	}
}

// Bone represents a single bone in a skeleton hierarchy.
type Bone struct {
	// Name is the bone's identifier.
	Name string

	// ParentIndex is the index of the parent bone (-1 for root bones).
	ParentIndex int32

	// LocalTransform is the reference (bind) pose transform relative to the parent.
	LocalTransform Transform
}

// --- Animation Types ---

// AdditiveType describes how an animation asset is layered on top of a base pose.
type AdditiveType uint8

const (
	// AdditiveNone marks a full (non-additive) pose.
	AdditiveNone AdditiveType = iota
	// AdditiveLocalSpace applies the delta in bone-local space.
	AdditiveLocalSpace
	// AdditiveMeshSpace applies the rotation delta in mesh (component) space.
	AdditiveMeshSpace
)

// AnimationChannel contains keyframe data for a single bone.
type AnimationChannel struct {
	// BoneIndex is the skeleton index of the bone this channel animates.
	BoneIndex int32

	// PositionKeys are keyframes for translation.
	PositionKeys []VectorKeyframe

	// RotationKeys are keyframes for rotation.
	RotationKeys []QuaternionKeyframe

	// ScaleKeys are keyframes for scale.
	ScaleKeys []VectorKeyframe
}

// VectorKeyframe stores a 3D vector value at a specific time.
type VectorKeyframe struct {
	// Time is the keyframe timestamp in seconds.
	Time float32

	// Value is the 3D vector value at this keyframe.
	Value mgl32.Vec3
}

// QuaternionKeyframe stores a quaternion rotation at a specific time.
type QuaternionKeyframe struct {
	// Time is the keyframe timestamp in seconds.
	Time float32

	// Value is the rotation at this keyframe.
	Value mgl32.Quat
}

// ScalarKeyframe stores a float value at a specific time.
type ScalarKeyframe struct {
	Time  float32
	Value float32
}

// CurveUID identifies a named curve. UIDs are stable per skeleton.
type CurveUID uint32

// FloatCurve is a named float track sampled alongside a sequence's bone data.
type FloatCurve struct {
	// Name is the curve name registered on the skeleton.
	Name string

	// UID is the skeleton-stable identifier resolved when the curve is attached to a sequence.
	UID CurveUID

	// Keys are the curve keyframes sorted by time.
	Keys []ScalarKeyframe
}

// SyncMarker is a named timeline tag used to synchronize animations of different lengths.
type SyncMarker struct {
	Name string
	Time float32
}

// NotifyEvent is a named event placed on an animation timeline.
type NotifyEvent struct {
	// Name identifies the notify to handlers.
	Name string

	// Time is the trigger time in seconds.
	Time float32

	// Duration is non-zero for state notifies that span a range.
	Duration float32
}
