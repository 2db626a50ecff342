package pose

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// AdvanceType reports what happened to a playback position during AdvanceTime.
type AdvanceType uint8

const (
	// AdvanceDefault means the position moved without hitting a boundary.
	AdvanceDefault AdvanceType = iota
	// AdvanceFinished means a non-looping position was clamped at a boundary.
	AdvanceFinished
	// AdvanceLooped means a looping position wrapped around.
	AdvanceLooped
)

// AdvanceTime moves *time by delta within [0, length]. Looping positions wrap with fmod,
// adding length on underflow so reverse playback stays in range. Non-looping positions clamp.
//
// Parameters:
//   - looping: whether the position wraps
//   - delta: the signed distance to move
//   - time: the position to update
//   - length: the playable length
//
// Returns:
//   - AdvanceType: how the position moved
func AdvanceTime(looping bool, delta float32, time *float32, length float32) AdvanceType {
	*time += delta
	if *time >= 0 && *time <= length {
		return AdvanceDefault
	}
	if looping {
		if length > 0 {
			*time = common.FMod(*time, length)
			if *time < 0 {
				*time += length
			}
		} else {
			*time = 0
		}
		return AdvanceLooped
	}
	*time = common.Clamp(*time, 0, length)
	return AdvanceFinished
}

// ExtractSequencePose samples seq at time into out and its curves into outCurve.
// Bones the sequence does not animate keep their reference (or additive identity) transform.
// When lockRoot is set the root bone stays at its reference transform so extracted root
// motion is not applied twice.
//
// Parameters:
//   - seq: the sequence to sample
//   - time: the sample time in seconds
//   - lockRoot: hold the root bone at its reference transform
//   - out: the destination pose, already bound to a bone container
//   - outCurve: the destination curve (may be nil)
//
// Returns:
//   - bool: false if the sequence is incompatible with the pose's skeleton and the
//     reference pose was written instead
func ExtractSequencePose(seq *model.Sequence, time float32, lockRoot bool, out *Pose, outCurve *Curve) bool {
	c := out.container
	if seq == nil || !c.Skeleton().IsCompatible(seq.Skeleton) {
		name := "<nil>"
		if seq != nil {
			name = seq.Name
		}
		common.Logger().Warn("[Pose] incompatible sequence, using ref pose", "sequence", name, "skeleton", c.Skeleton().Name)
		out.ResetToRefPose()
		return false
	}

	additive := seq.Additive != model.AdditiveNone
	for i := range out.Bones {
		ref := c.RefPose(i)
		if additive {
			ref = model.AdditiveIdentityTransform()
		}
		if lockRoot && c.ParentIndex(i) < 0 {
			out.Bones[i] = ref
			continue
		}
		out.Bones[i] = seq.SampleBone(c.SkeletonIndex(i), time, ref)
	}

	if outCurve != nil {
		for i := range seq.Curves {
			outCurve.Set(seq.Curves[i].UID, model.EvaluateCurve(&seq.Curves[i], time))
		}
	}
	return true
}

// ExtractTrackPose samples a montage slot track at a montage position.
//
// Parameters:
//   - track: the slot track
//   - position: the montage timeline position
//   - lockRoot: hold the root bone at its reference transform
//   - out: the destination pose
//   - outCurve: the destination curve (may be nil)
func ExtractTrackPose(track *model.SlotTrack, position float32, lockRoot bool, out *Pose, outCurve *Curve) {
	seg := track.SegmentAt(position)
	if seg == nil {
		if track.Additive != model.AdditiveNone {
			out.ResetToAdditiveIdentity()
		} else {
			out.ResetToRefPose()
		}
		return
	}
	ExtractSequencePose(seg.Animation, seg.AnimTime(position), lockRoot, out, outCurve)
}
