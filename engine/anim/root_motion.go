package anim

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
	"github.com/go-gl/mathgl/mgl32"
)

// RootMotionMode selects where root motion is extracted from.
type RootMotionMode uint8

const (
	// NoRootMotionExtraction leaves root motion in the pose.
	NoRootMotionExtraction RootMotionMode = iota
	// IgnoreRootMotion locks the root bone and discards its motion.
	IgnoreRootMotion
	// RootMotionFromEverything blends the root motion of every ticked asset by weight.
	RootMotionFromEverything
	// RootMotionFromMontagesOnly extracts root motion from montages only.
	RootMotionFromMontagesOnly
)

func (m RootMotionMode) String() string {
	switch m {
	case NoRootMotionExtraction:
		return "NoRootMotionExtraction"
	case IgnoreRootMotion:
		return "IgnoreRootMotion"
	case RootMotionFromEverything:
		return "RootMotionFromEverything"
	case RootMotionFromMontagesOnly:
		return "RootMotionFromMontagesOnly"
	}
	return "Unknown"
}

// RootMotionParams accumulates the root motion extracted during a frame.
type RootMotionParams struct {
	HasRootMotion bool
	BlendWeight   float32
	transform     model.Transform
}

// Transform returns the accumulated root motion with a normalized rotation.
func (r *RootMotionParams) Transform() model.Transform {
	if !r.HasRootMotion {
		return model.IdentityTransform()
	}
	t := r.transform
	t.Rotation = t.Rotation.Normalize()
	return t
}

// Set replaces the accumulated motion.
func (r *RootMotionParams) Set(t model.Transform) {
	r.HasRootMotion = true
	r.BlendWeight = 1
	r.transform = t
}

// Accumulate composes t after the accumulated motion.
func (r *RootMotionParams) Accumulate(t model.Transform) {
	if !r.HasRootMotion {
		r.Set(t)
		return
	}
	r.transform = r.transform.Compose(t)
}

// AccumulateWithBlend adds t scaled by weight, summing rotations along the shortest path.
// The result is only meaningful once the total weight reaches one; see MakeUpToFullWeight.
//
// Parameters:
//   - t: the root motion delta
//   - weight: the contribution of the delta
func (r *RootMotionParams) AccumulateWithBlend(t model.Transform, weight float32) {
	if r.HasRootMotion {
		pose.AccumulateShortest(&r.transform, t, weight)
	} else {
		r.transform = model.Transform{
			Translation: t.Translation.Mul(weight),
			Rotation:    t.Rotation.Scale(weight),
			Scale:       t.Scale.Mul(weight),
		}
		r.HasRootMotion = true
	}
	r.BlendWeight += weight
}

// MakeUpToFullWeight fills the missing weight with the identity transform.
func (r *RootMotionParams) MakeUpToFullWeight() {
	if r.HasRootMotion && r.BlendWeight < 1 {
		r.AccumulateWithBlend(model.IdentityTransform(), 1-r.BlendWeight)
	}
}

// Clear discards the accumulated motion.
func (r *RootMotionParams) Clear() {
	r.HasRootMotion = false
	r.BlendWeight = 0
	r.transform = model.IdentityTransform()
}

// ConsumeRootMotion removes and returns alpha of the accumulated motion.
//
// Parameters:
//   - alpha: the fraction to consume; 1 consumes everything
//
// Returns:
//   - model.Transform: the consumed motion
func (r *RootMotionParams) ConsumeRootMotion(alpha float32) model.Transform {
	if !r.HasRootMotion {
		return model.IdentityTransform()
	}
	full := r.Transform()
	if alpha >= 1 {
		r.Clear()
		return full
	}
	partial := pose.BlendTransform(model.IdentityTransform(), full, alpha)
	remaining := full.RelativeTo(partial)
	remaining.Scale = mgl32.Vec3{1, 1, 1}
	r.transform = remaining
	return partial
}
