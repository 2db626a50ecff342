package anim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
	"github.com/go-gl/mathgl/mgl32"
)

// SequencePlayer plays a sequence, advancing it through the proxy's sync groups.
type SequencePlayer struct {
	AssetPlayerBase
	Sequence *model.Sequence

	// PlayRate is used when PlayRateFunc is nil.
	PlayRate     float32
	PlayRateFunc FloatInput
	Loop         bool

	// StartPosition is the time the player starts from on Initialize.
	StartPosition float32

	playRate float32
}

var _ AssetPlayer = &SequencePlayer{}

// NewSequencePlayer returns a player for seq at play rate 1.
func NewSequencePlayer(seq *model.Sequence, loop bool) *SequencePlayer {
	return &SequencePlayer{Sequence: seq, PlayRate: 1, Loop: loop}
}

func (n *SequencePlayer) Asset() model.Asset {
	if n.Sequence == nil {
		return nil
	}
	return n.Sequence
}

func (n *SequencePlayer) CurrentAssetTime() float32 { return n.InternalTime }

func (n *SequencePlayer) CurrentAssetTimePlayRateAdjusted() float32 {
	if n.effectiveRate() < 0 {
		return n.CurrentAssetLength() - n.InternalTime
	}
	return n.InternalTime
}

func (n *SequencePlayer) CurrentAssetLength() float32 {
	if n.Sequence == nil {
		return 0
	}
	return n.Sequence.Length()
}

func (n *SequencePlayer) effectiveRate() float32 {
	if n.Sequence == nil {
		return n.playRate
	}
	return n.playRate * n.Sequence.RateScale
}

func (n *SequencePlayer) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.playRate = n.PlayRateFunc.eval(ctx.Proxy, n.PlayRate)
	n.markerTick = MarkerTickRecord{}
	n.InternalTime = n.StartPosition
	if n.Sequence != nil {
		n.InternalTime = common.Clamp(n.StartPosition, 0, n.Sequence.Length())
		if n.StartPosition == 0 && n.effectiveRate() < 0 {
			n.InternalTime = n.Sequence.Length()
		}
	}
}

func (n *SequencePlayer) CacheBones(ctx *CacheBonesContext) { n.needsCacheBones(ctx.Proxy) }

func (n *SequencePlayer) Update(ctx *UpdateContext) {
	p := ctx.Proxy
	n.updateBlendWeight(ctx)
	n.playRate = n.PlayRateFunc.eval(p, n.PlayRate)
	if n.Sequence == nil || !assetCompatible(p, n.Sequence, "SequencePlayer") {
		return
	}
	n.InternalTime = common.Clamp(n.InternalTime, 0, n.Sequence.Length())
	n.createTickRecord(ctx, n.Sequence, n.Loop, n.playRate)
}

func (n *SequencePlayer) Evaluate(out *PoseContext) {
	p := out.Proxy
	n.checkEvaluate(p, "SequencePlayer")
	out.Curve.Reset()
	if n.Sequence == nil {
		out.ResetToRefPose()
		return
	}
	lockRoot := n.Sequence.EnableRootMotion && p.rootMotionMode != NoRootMotionExtraction
	pose.ExtractSequencePose(n.Sequence, n.InternalTime, lockRoot, out.Pose, out.Curve)
}

func (n *SequencePlayer) GatherDebugData(d *NodeDebugData) {
	name := "<none>"
	if n.Sequence != nil {
		name = n.Sequence.Name
	}
	d.AddDebugItem(fmt.Sprintf("SequencePlayer(%s %.2f/%.2f rate %.2f group %q)", name, n.InternalTime, n.CurrentAssetLength(), n.playRate, n.GroupName), true)
}

// SequenceEvaluator samples a sequence at an explicit time. Moving the time still fires
// the notifies and root motion in between unless TeleportToExplicitTime is set.
type SequenceEvaluator struct {
	AssetPlayerBase
	Sequence *model.Sequence

	// ExplicitTime is used when ExplicitTimeFunc is nil.
	ExplicitTime     float32
	ExplicitTimeFunc FloatInput

	// Normalized interprets the explicit time as a fraction of the sequence length.
	Normalized bool
	Loop       bool

	// TeleportToExplicitTime jumps to the explicit time without ticking.
	TeleportToExplicitTime bool
}

var _ AssetPlayer = &SequenceEvaluator{}

func (n *SequenceEvaluator) Asset() model.Asset {
	if n.Sequence == nil {
		return nil
	}
	return n.Sequence
}

func (n *SequenceEvaluator) CurrentAssetTime() float32                 { return n.InternalTime }
func (n *SequenceEvaluator) CurrentAssetTimePlayRateAdjusted() float32 { return n.InternalTime }

func (n *SequenceEvaluator) CurrentAssetLength() float32 {
	if n.Sequence == nil {
		return 0
	}
	return n.Sequence.Length()
}

func (n *SequenceEvaluator) targetTime(p *Proxy) float32 {
	t := n.ExplicitTimeFunc.eval(p, n.ExplicitTime)
	length := n.CurrentAssetLength()
	if n.Normalized {
		t *= length
	}
	if n.Loop && length > 0 {
		t = common.FMod(t, length)
		if t < 0 {
			t += length
		}
	}
	return common.Clamp(t, 0, length)
}

func (n *SequenceEvaluator) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.markerTick = MarkerTickRecord{}
	n.InternalTime = n.targetTime(ctx.Proxy)
}

func (n *SequenceEvaluator) CacheBones(ctx *CacheBonesContext) { n.needsCacheBones(ctx.Proxy) }

func (n *SequenceEvaluator) Update(ctx *UpdateContext) {
	p := ctx.Proxy
	n.updateBlendWeight(ctx)
	if n.Sequence == nil || !assetCompatible(p, n.Sequence, "SequenceEvaluator") {
		return
	}
	target := n.targetTime(p)
	if n.TeleportToExplicitTime || ctx.DeltaTime <= 0 {
		n.InternalTime = target
		return
	}
	delta := target - n.InternalTime
	if n.Loop {
		// Take the short way around the loop.
		length := n.Sequence.Length()
		if delta > length/2 {
			delta -= length
		} else if delta < -length/2 {
			delta += length
		}
	}
	rate := delta / ctx.DeltaTime / n.Sequence.RateScale
	n.createTickRecord(ctx, n.Sequence, n.Loop, rate)
}

func (n *SequenceEvaluator) Evaluate(out *PoseContext) {
	p := out.Proxy
	n.checkEvaluate(p, "SequenceEvaluator")
	out.Curve.Reset()
	if n.Sequence == nil {
		out.ResetToRefPose()
		return
	}
	lockRoot := n.Sequence.EnableRootMotion && p.rootMotionMode != NoRootMotionExtraction
	pose.ExtractSequencePose(n.Sequence, n.InternalTime, lockRoot, out.Pose, out.Curve)
}

func (n *SequenceEvaluator) GatherDebugData(d *NodeDebugData) {
	name := "<none>"
	if n.Sequence != nil {
		name = n.Sequence.Name
	}
	d.AddDebugItem(fmt.Sprintf("SequenceEvaluator(%s %.2f)", name, n.InternalTime), true)
}

// BlendSpacePlayer plays a blend space. InternalTime is normalized to [0, 1].
type BlendSpacePlayer struct {
	AssetPlayerBase
	BlendSpace *model.BlendSpace

	// Input is used when InputFunc is nil.
	Input     mgl32.Vec3
	InputFunc Vec3Input

	PlayRate     float32
	PlayRateFunc FloatInput
	Loop         bool

	// StartPosition is the normalized time the player starts from on Initialize.
	StartPosition float32

	grid        []int
	gridVersion uint64
	weights     []model.SampleWeight
	samples     []BlendSampleState
	input       mgl32.Vec3
	playRate    float32
}

var _ AssetPlayer = &BlendSpacePlayer{}

// NewBlendSpacePlayer returns a looping player for bs at play rate 1.
func NewBlendSpacePlayer(bs *model.BlendSpace) *BlendSpacePlayer {
	return &BlendSpacePlayer{BlendSpace: bs, PlayRate: 1, Loop: true}
}

func (n *BlendSpacePlayer) Asset() model.Asset {
	if n.BlendSpace == nil {
		return nil
	}
	return n.BlendSpace
}

func (n *BlendSpacePlayer) CurrentAssetTime() float32 {
	return n.InternalTime * n.CurrentAssetLength()
}

func (n *BlendSpacePlayer) CurrentAssetTimePlayRateAdjusted() float32 {
	if n.playRate < 0 {
		return n.CurrentAssetLength() - n.CurrentAssetTime()
	}
	return n.CurrentAssetTime()
}

func (n *BlendSpacePlayer) CurrentAssetLength() float32 {
	if n.BlendSpace == nil {
		return 0
	}
	return blendSpaceLength(n.BlendSpace, n.samples)
}

// Samples returns the contributing samples of the last update.
func (n *BlendSpacePlayer) Samples() []BlendSampleState { return n.samples }

func (n *BlendSpacePlayer) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.markerTick = MarkerTickRecord{}
	n.samples = n.samples[:0]
	n.InternalTime = common.Clamp01(n.StartPosition)
	n.playRate = n.PlayRateFunc.eval(ctx.Proxy, n.PlayRate)
}

func (n *BlendSpacePlayer) CacheBones(ctx *CacheBonesContext) { n.needsCacheBones(ctx.Proxy) }

// updateSamples refreshes the sample weights for the current input, keeping the times of
// samples that stay relevant.
func (n *BlendSpacePlayer) updateSamples() {
	bs := n.BlendSpace
	if v := bs.Version(); n.grid == nil || v != n.gridVersion {
		n.grid = bs.BuildGrid()
		n.gridVersion = v
	}
	n.weights = bs.SampleWeights(n.grid, n.input, n.weights)

	prev := n.samples
	next := make([]BlendSampleState, 0, len(n.weights))
	for _, w := range n.weights {
		s := BlendSampleState{SampleIndex: w.SampleIndex, Weight: w.Weight}
		s.Time = n.InternalTime * bs.Samples[w.SampleIndex].Animation.Length()
		for _, old := range prev {
			if old.SampleIndex == w.SampleIndex {
				s.Time = old.Time
				break
			}
		}
		next = append(next, s)
	}
	n.samples = next
}

func (n *BlendSpacePlayer) Update(ctx *UpdateContext) {
	p := ctx.Proxy
	n.updateBlendWeight(ctx)
	n.playRate = n.PlayRateFunc.eval(p, n.PlayRate)
	if n.BlendSpace == nil || !assetCompatible(p, n.BlendSpace, "BlendSpacePlayer") {
		return
	}
	n.input = n.InputFunc.eval(p, n.Input)
	n.updateSamples()
	if len(n.samples) == 0 {
		return
	}
	rec := n.createTickRecord(ctx, n.BlendSpace, n.Loop, n.playRate)
	rec.BlendSamples = &n.samples
}

func (n *BlendSpacePlayer) Evaluate(out *PoseContext) {
	p := out.Proxy
	n.checkEvaluate(p, "BlendSpacePlayer")
	out.Curve.Reset()
	if n.BlendSpace == nil || len(n.samples) == 0 {
		out.ResetToRefPose()
		return
	}

	ctxs := make([]*PoseContext, len(n.samples))
	poses := make([]*pose.Pose, len(n.samples))
	curves := make([]*pose.Curve, len(n.samples))
	weights := make([]float32, len(n.samples))
	for i, s := range n.samples {
		seq := n.BlendSpace.Samples[s.SampleIndex].Animation
		c := out.Child()
		lockRoot := seq.EnableRootMotion && p.rootMotionMode != NoRootMotionExtraction
		pose.ExtractSequencePose(seq, s.Time, lockRoot, c.Pose, c.Curve)
		ctxs[i], poses[i], curves[i], weights[i] = c, c.Pose, c.Curve, s.Weight
	}
	pose.BlendPosesTogether(poses, curves, weights, out.Pose, out.Curve)
	for _, c := range ctxs {
		c.Release()
	}
}

func (n *BlendSpacePlayer) GatherDebugData(d *NodeDebugData) {
	name := "<none>"
	if n.BlendSpace != nil {
		name = n.BlendSpace.Name
	}
	d.AddDebugItem(fmt.Sprintf("BlendSpacePlayer(%s input %v t %.2f samples %d)", name, n.input, n.InternalTime, len(n.samples)), true)
}
