package anim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
)

// Root is the output node of a graph.
type Root struct {
	NodeBase
	Result PoseLink
}

func (n *Root) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.Result.Initialize(ctx)
}

func (n *Root) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.Result.CacheBones(ctx)
	}
}

func (n *Root) Update(ctx *UpdateContext) {
	n.markUpdated(ctx.Proxy)
	n.Result.Update(ctx)
}

func (n *Root) Evaluate(out *PoseContext) {
	n.checkEvaluate(out.Proxy, "Root")
	n.Result.Evaluate(out)
}

func (n *Root) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem("Root", false)
	n.Result.GatherDebugData(d.BranchFlow(1))
}

// RefPose outputs the reference pose, or the additive identity when Additive is set.
type RefPose struct {
	NodeBase
	Additive bool
}

func (n *RefPose) Initialize(ctx *InitializeContext) { n.markInitialized(ctx.Proxy) }
func (n *RefPose) CacheBones(ctx *CacheBonesContext)  { n.needsCacheBones(ctx.Proxy) }
func (n *RefPose) Update(ctx *UpdateContext)          { n.markUpdated(ctx.Proxy) }

func (n *RefPose) Evaluate(out *PoseContext) {
	n.checkEvaluate(out.Proxy, "RefPose")
	if n.Additive {
		out.ResetToAdditiveIdentity()
		return
	}
	out.ResetToRefPose()
}

func (n *RefPose) GatherDebugData(d *NodeDebugData) {
	if n.Additive {
		d.AddDebugItem("RefPose(additive identity)", true)
		return
	}
	d.AddDebugItem("RefPose", true)
}

// TwoWayBlend crossfades between A and B by Alpha.
type TwoWayBlend struct {
	NodeBase
	A, B PoseLink

	// Alpha is used when AlphaFunc is nil.
	Alpha     float32
	AlphaFunc FloatInput

	// ResetChildOnActivation reinitializes a child that becomes relevant again.
	ResetChildOnActivation bool

	alpha     float32
	aRelevant bool
	bRelevant bool
}

func (n *TwoWayBlend) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.A.Initialize(ctx)
	n.B.Initialize(ctx)
	n.alpha = 0
	n.aRelevant, n.bRelevant = false, false
}

func (n *TwoWayBlend) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.A.CacheBones(ctx)
		n.B.CacheBones(ctx)
	}
}

func (n *TwoWayBlend) Update(ctx *UpdateContext) {
	p := ctx.Proxy
	n.markUpdated(p)
	n.alpha = common.Clamp01(n.AlphaFunc.eval(p, n.Alpha))

	aRelevant := !common.IsFullWeight(n.alpha)
	bRelevant := common.IsRelevant(n.alpha)
	if n.ResetChildOnActivation {
		if aRelevant && !n.aRelevant {
			n.A.Initialize(&InitializeContext{Proxy: p})
		}
		if bRelevant && !n.bRelevant {
			n.B.Initialize(&InitializeContext{Proxy: p})
		}
	}
	n.aRelevant, n.bRelevant = aRelevant, bRelevant

	switch {
	case !bRelevant:
		n.A.Update(ctx)
	case !aRelevant:
		n.B.Update(ctx)
	default:
		n.A.Update(ctx.FractionalWeight(1 - n.alpha))
		n.B.Update(ctx.FractionalWeight(n.alpha))
	}
}

func (n *TwoWayBlend) Evaluate(out *PoseContext) {
	n.checkEvaluate(out.Proxy, "TwoWayBlend")
	switch {
	case !n.bRelevant:
		n.A.Evaluate(out)
	case !n.aRelevant:
		n.B.Evaluate(out)
	default:
		a, b := out.Child(), out.Child()
		defer a.Release()
		defer b.Release()
		n.A.Evaluate(a)
		n.B.Evaluate(b)
		pose.BlendTwoPoses(a.Pose, b.Pose, n.alpha, out.Pose)
		out.Curve.Lerp(a.Curve, b.Curve, n.alpha)
	}
}

func (n *TwoWayBlend) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem(fmt.Sprintf("TwoWayBlend(alpha %.2f)", n.alpha), false)
	n.A.GatherDebugData(d.BranchFlow(1 - n.alpha))
	n.B.GatherDebugData(d.BranchFlow(n.alpha))
}

// ApplyAdditive layers an additive pose over Base.
type ApplyAdditive struct {
	NodeBase
	Base     PoseLink
	Additive AdditivePoseLink

	Alpha     float32
	AlphaFunc FloatInput

	// Type selects local or mesh-space application. AdditiveNone is treated as local.
	Type model.AdditiveType

	alpha float32
}

func (n *ApplyAdditive) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.Base.Initialize(ctx)
	n.Additive.Initialize(ctx)
}

func (n *ApplyAdditive) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.Base.CacheBones(ctx)
		n.Additive.CacheBones(ctx)
	}
}

func (n *ApplyAdditive) Update(ctx *UpdateContext) {
	n.markUpdated(ctx.Proxy)
	n.alpha = common.Clamp01(n.AlphaFunc.eval(ctx.Proxy, n.Alpha))
	n.Base.Update(ctx)
	if common.IsRelevant(n.alpha) {
		n.Additive.Update(ctx.FractionalWeight(n.alpha))
	}
}

func (n *ApplyAdditive) Evaluate(out *PoseContext) {
	n.checkEvaluate(out.Proxy, "ApplyAdditive")
	n.Base.Evaluate(out)
	if !common.IsRelevant(n.alpha) {
		return
	}
	add := out.Child()
	defer add.Release()
	n.Additive.Evaluate(add)
	t := n.Type
	if t == model.AdditiveNone {
		t = model.AdditiveLocalSpace
	}
	pose.AccumulateAdditive(out.Pose, add.Pose, n.alpha, t)
	out.Curve.Accumulate(add.Curve, n.alpha)
}

func (n *ApplyAdditive) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem(fmt.Sprintf("ApplyAdditive(alpha %.2f)", n.alpha), false)
	n.Base.GatherDebugData(d.BranchFlow(1))
	n.Additive.GatherDebugData(d.BranchFlow(n.alpha))
}

// TimeScale plays its source branch faster or slower than the instance. Asset players
// below it advance by the scaled delta.
type TimeScale struct {
	NodeBase
	Source PoseLink

	// Scale is used when ScaleFunc is nil. Negative scales clamp to zero.
	Scale     float32
	ScaleFunc FloatInput

	scale float32
}

func (n *TimeScale) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.Source.Initialize(ctx)
}

func (n *TimeScale) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.Source.CacheBones(ctx)
	}
}

func (n *TimeScale) Update(ctx *UpdateContext) {
	n.markUpdated(ctx.Proxy)
	n.scale = max(0, n.ScaleFunc.eval(ctx.Proxy, n.Scale))
	n.Source.Update(ctx.FractionalWeightAndTime(1, n.scale))
}

func (n *TimeScale) Evaluate(out *PoseContext) {
	n.checkEvaluate(out.Proxy, "TimeScale")
	n.Source.Evaluate(out)
}

func (n *TimeScale) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem(fmt.Sprintf("TimeScale(%.2f)", n.scale), false)
	n.Source.GatherDebugData(d.BranchFlow(1))
}

// CurveModifyMode selects how ModifyCurve combines its values with the source curves.
type CurveModifyMode uint8

const (
	// CurveModifyBlend lerps from the source value to the new value by Alpha.
	CurveModifyBlend CurveModifyMode = iota
	// CurveModifyAdd adds Alpha times the new value.
	CurveModifyAdd
	// CurveModifyScale multiplies the source value by the new value, faded in by Alpha.
	CurveModifyScale
)

// CurveValue is one curve written by ModifyCurve.
type CurveValue struct {
	Name string

	// Value is used when ValueFunc is nil.
	Value     float32
	ValueFunc FloatInput

	uid     model.CurveUID
	current float32
}

// ModifyCurve writes curve values over its source pose.
type ModifyCurve struct {
	NodeBase
	Source PoseLink
	Curves []CurveValue
	Mode   CurveModifyMode

	Alpha     float32
	AlphaFunc FloatInput

	alpha float32
}

func (n *ModifyCurve) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	for i := range n.Curves {
		n.Curves[i].uid = ctx.Proxy.skeleton.CurveUID(n.Curves[i].Name)
	}
	n.Source.Initialize(ctx)
}

func (n *ModifyCurve) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.Source.CacheBones(ctx)
	}
}

func (n *ModifyCurve) Update(ctx *UpdateContext) {
	p := ctx.Proxy
	n.markUpdated(p)
	n.alpha = common.Clamp01(n.AlphaFunc.eval(p, n.Alpha))
	for i := range n.Curves {
		c := &n.Curves[i]
		c.current = c.ValueFunc.eval(p, c.Value)
	}
	n.Source.Update(ctx)
}

func (n *ModifyCurve) Evaluate(out *PoseContext) {
	n.checkEvaluate(out.Proxy, "ModifyCurve")
	n.Source.Evaluate(out)
	if !common.IsRelevant(n.alpha) {
		return
	}
	for _, c := range n.Curves {
		src := out.Curve.Value(c.uid)
		var v float32
		switch n.Mode {
		case CurveModifyAdd:
			v = src + c.current*n.alpha
		case CurveModifyScale:
			v = src * common.Lerp(1, c.current, n.alpha)
		default:
			v = common.Lerp(src, c.current, n.alpha)
		}
		out.Curve.Set(c.uid, v)
	}
}

func (n *ModifyCurve) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem(fmt.Sprintf("ModifyCurve(%d curves, alpha %.2f)", len(n.Curves), n.alpha), false)
	n.Source.GatherDebugData(d.BranchFlow(1))
}

// CurveSourceNode copies the values of a registered CurveSource over its source pose.
// The source is read on the game thread before the graph update.
type CurveSourceNode struct {
	NodeBase
	Source PoseLink

	// Binding names the curve source registered on the proxy.
	Binding string

	// Alpha fades the source values in. Zero means full weight.
	Alpha     float32
	AlphaFunc FloatInput

	alpha  float32
	values map[string]float32
}

var _ GameThreadPreUpdater = &CurveSourceNode{}

func (n *CurveSourceNode) PreUpdate(p *Proxy) {
	if n.values == nil {
		n.values = make(map[string]float32)
	}
	clear(n.values)
	src, ok := p.curveSources[n.Binding]
	if !ok {
		return
	}
	src.CurveValues(n.values)
}

func (n *CurveSourceNode) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.Source.Initialize(ctx)
}

func (n *CurveSourceNode) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.Source.CacheBones(ctx)
	}
}

func (n *CurveSourceNode) Update(ctx *UpdateContext) {
	n.markUpdated(ctx.Proxy)
	n.alpha = common.Clamp01(n.AlphaFunc.eval(ctx.Proxy, common.Coalesce(n.Alpha, 1)))
	n.Source.Update(ctx)
}

func (n *CurveSourceNode) Evaluate(out *PoseContext) {
	p := out.Proxy
	n.checkEvaluate(p, "CurveSourceNode")
	n.Source.Evaluate(out)
	for _, name := range common.SortedKeys(n.values) {
		uid := p.skeleton.CurveUID(name)
		out.Curve.Set(uid, common.Lerp(out.Curve.Value(uid), n.values[name], n.alpha))
	}
}

func (n *CurveSourceNode) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem(fmt.Sprintf("CurveSource(%s, %d values)", n.Binding, len(n.values)), false)
	n.Source.GatherDebugData(d.BranchFlow(1))
}
