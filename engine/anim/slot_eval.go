package anim

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
)

// MontageEvaluationState is a snapshot of one playing montage handed to slot nodes for a
// frame.
type MontageEvaluationState struct {
	Montage       *model.Montage
	Weight        float32
	DesiredWeight float32
	Position      float32
	PlayRate      float32
	IsPlaying     bool
	IsActive      bool
}

// GetSlotWeight sums the weights of the montages playing on slot, each scaled by
// globalWeight. Additive montages count toward the slot weight but never take weight away
// from the source pose.
//
// Parameters:
//   - slot: the slot name
//   - globalWeight: the scale applied to every montage weight
//
// Returns:
//   - slotWeight: the montage weight of the slot, clamped to 1
//   - sourceWeight: the weight left for the slot's source pose after normalization
//   - totalNodeWeight: the unclamped montage weight of the slot
func (p *Proxy) GetSlotWeight(slot string, globalWeight float32) (slotWeight, sourceWeight, totalNodeWeight float32) {
	var total, nonAdditive float32
	for _, m := range p.montageEvaluation {
		if m.Montage == nil {
			continue
		}
		if !m.Montage.IsValidSlot(slot) {
			continue
		}
		w := m.Weight * globalWeight
		total += w
		if !m.Montage.IsValidAdditiveSlot(slot) {
			nonAdditive += w
		}
	}

	// Montage weights above 1 are renormalized at evaluation, so the source weight is taken
	// from the normalized non-additive share.
	if total > 1 {
		nonAdditive /= total
	}
	sourceWeight = 1
	if common.IsRelevant(total) {
		sourceWeight = 0
		if nonAdditive < 1-common.ZeroAnimWeightThreshold {
			sourceWeight = 1 - nonAdditive
		}
	}
	return min(total, 1), sourceWeight, total
}

// SlotEvaluatePose blends the montages playing on slot over source into out. Non-additive
// montage poses and the source are blended together first; additive montage poses are then
// applied on top.
//
// Parameters:
//   - slot: the slot name
//   - source: the evaluated source pose
//   - sourceWeight: the source weight from GetSlotWeight
//   - slotWeight: the slot weight from GetSlotWeight
//   - totalNodeWeight: the total weight from GetSlotWeight
//   - out: the destination, which may be source
func (p *Proxy) SlotEvaluatePose(slot string, source *PoseContext, sourceWeight, slotWeight, totalNodeWeight float32, out *PoseContext) {
	if !common.IsRelevant(slotWeight) {
		if out != source {
			out.CopyFrom(source)
		}
		return
	}

	type sampled struct {
		ctx      *PoseContext
		weight   float32
		additive model.AdditiveType
	}
	var nonAdditive, additive []sampled
	var nonAdditiveTotal float32
	defer func() {
		for _, s := range nonAdditive {
			s.ctx.Release()
		}
		for _, s := range additive {
			s.ctx.Release()
		}
	}()

	lockRoot := p.rootMotionMode != NoRootMotionExtraction
	for _, m := range p.montageEvaluation {
		if m.Montage == nil || !common.IsRelevant(m.Weight) {
			continue
		}
		track := m.Montage.SlotTrack(slot)
		if track == nil {
			continue
		}
		c := source.Child()
		pose.ExtractTrackPose(track, m.Position, lockRoot && m.Montage.EnableRootMotion, c.Pose, c.Curve)
		if track.Additive != model.AdditiveNone {
			additive = append(additive, sampled{ctx: c, weight: m.Weight, additive: track.Additive})
			continue
		}
		nonAdditive = append(nonAdditive, sampled{ctx: c, weight: m.Weight})
		nonAdditiveTotal += m.Weight
	}

	if len(nonAdditive) == 0 {
		if out != source {
			out.CopyFrom(source)
		}
	} else {
		// Montage weights above full weight are renormalized before the source is mixed in.
		scale := float32(1)
		if totalNodeWeight > 1+common.ZeroAnimWeightThreshold && nonAdditiveTotal > common.SmallNumber {
			scale = min(1, totalNodeWeight) / totalNodeWeight
		}
		poses := make([]*pose.Pose, 0, len(nonAdditive)+1)
		curves := make([]*pose.Curve, 0, len(nonAdditive)+1)
		weights := make([]float32, 0, len(nonAdditive)+1)
		for _, s := range nonAdditive {
			poses = append(poses, s.ctx.Pose)
			curves = append(curves, s.ctx.Curve)
			weights = append(weights, s.weight*scale)
		}
		if common.IsRelevant(sourceWeight) {
			poses = append(poses, source.Pose)
			curves = append(curves, source.Curve)
			weights = append(weights, sourceWeight)
		}
		blended := out
		if out == source {
			blended = source.Child()
			defer blended.Release()
		}
		pose.BlendPosesTogether(poses, curves, weights, blended.Pose, blended.Curve)
		if blended != out {
			out.CopyFrom(blended)
		}
	}

	for _, s := range additive {
		pose.AccumulateAdditive(out.Pose, s.ctx.Pose, s.weight, s.additive)
		out.Curve.Accumulate(s.ctx.Curve, s.weight)
	}
	out.Pose.NormalizeRotations()
}
