package anim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

// SubInstance runs a separate class inside the graph. The inner instance receives InPose
// through its SubInput nodes and shares the outer instance's required bones.
type SubInstance struct {
	NodeBase
	Class  *Class
	InPose PoseLink

	// Properties are copied from the outer instance's property bag before every update.
	Properties []string

	// Options configure the inner proxy when it is created.
	Options []ProxyBuilderOption

	inner *Proxy
}

var (
	_ GameThreadPreUpdater = &SubInstance{}
	_ WorkerThreadUpdater  = &SubInstance{}
)

// Instance returns the inner proxy, or nil before Initialize.
func (n *SubInstance) Instance() *Proxy { return n.inner }

func (n *SubInstance) Initialize(ctx *InitializeContext) {
	p := ctx.Proxy
	n.markInitialized(p)
	if n.inner == nil && n.Class != nil {
		opts := append([]ProxyBuilderOption{
			WithName(p.name + "/" + n.Class.Name()),
			WithRequiredBones(p.requiredBones),
			WithRootMotionMode(p.rootMotionMode),
			WithDebugChecks(p.debugChecks),
		}, n.Options...)
		inner, err := NewProxy(n.Class, opts...)
		if err != nil {
			common.Logger().Warn("[SubInstance] failed to create inner instance", "class", n.Class.Name(), "error", err, "instance", p.name)
		} else if inner.boneContainer.NumBones() != p.boneContainer.NumBones() {
			common.Logger().Warn("[SubInstance] inner skeleton layout differs from outer", "class", n.Class.Name(), "instance", p.name)
		} else {
			n.inner = inner
		}
	}
	n.InPose.Initialize(ctx)
	if n.inner != nil {
		n.inner.Initialize()
	}
}

func (n *SubInstance) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.InPose.CacheBones(ctx)
	}
}

// PreUpdate starts the inner instance's frame and pushes the bound properties.
func (n *SubInstance) PreUpdate(p *Proxy) {
	if n.inner == nil {
		return
	}
	p.properties.CopyTo(n.inner.properties, n.Properties)
	n.inner.PreUpdate(p.deltaSeconds)
}

func (n *SubInstance) CanUpdateInWorkerThread() bool {
	return !n.GameThreadOnly && (n.inner == nil || n.inner.CanUpdateInWorkerThread())
}

func (n *SubInstance) Update(ctx *UpdateContext) {
	n.markUpdated(ctx.Proxy)
	n.InPose.Update(ctx)
	if n.inner != nil {
		n.inner.UpdateAnimation()
	}
}

func (n *SubInstance) Evaluate(out *PoseContext) {
	p := out.Proxy
	n.checkEvaluate(p, "SubInstance")
	in := out.Child()
	defer in.Release()
	n.InPose.Evaluate(in)
	if n.inner == nil {
		out.CopyFrom(in)
		return
	}

	n.inner.subInput = in
	result := NewPoseContext(n.inner)
	n.inner.EvaluateAnimation(result)
	n.inner.subInput = nil
	copyPoseData(out, result)
	result.Release()
}

func (n *SubInstance) recalcRequiredBones(bones []int32) {
	if n.inner == nil {
		return
	}
	if err := n.inner.RecalcRequiredBones(bones); err != nil {
		common.Logger().Warn("[SubInstance] required bones update failed", "instance", n.inner.name, "error", err)
	}
}

// postUpdate finishes the inner frame and forwards its notifies and root motion.
func (n *SubInstance) postUpdate(outer *Proxy) {
	if n.inner == nil {
		return
	}
	n.inner.PostUpdate()
	outer.notifies.Append(&n.inner.notifies)
	if n.inner.rootMotion.HasRootMotion {
		outer.rootMotion.Accumulate(n.inner.ConsumeExtractedRootMotion(1))
	}
}

func (n *SubInstance) GatherDebugData(d *NodeDebugData) {
	name := "<none>"
	if n.Class != nil {
		name = n.Class.Name()
	}
	d.AddDebugItem(fmt.Sprintf("SubInstance(%s)", name), false)
	n.InPose.GatherDebugData(d.BranchFlow(1))
	if n.inner != nil {
		for _, l := range n.inner.DebugData().Lines() {
			d.AddDebugItem(l.Text, l.PoseSource)
		}
	}
}

// SubInput outputs the pose handed to the instance by an enclosing SubInstance, or the
// reference pose when the instance runs on its own.
type SubInput struct {
	NodeBase
	Name string
}

func (n *SubInput) Initialize(ctx *InitializeContext) { n.markInitialized(ctx.Proxy) }
func (n *SubInput) CacheBones(ctx *CacheBonesContext)  { n.needsCacheBones(ctx.Proxy) }
func (n *SubInput) Update(ctx *UpdateContext)          { n.markUpdated(ctx.Proxy) }

func (n *SubInput) Evaluate(out *PoseContext) {
	p := out.Proxy
	n.checkEvaluate(p, "SubInput")
	if p.subInput == nil {
		out.ResetToRefPose()
		return
	}
	copyPoseData(out, p.subInput)
}

func (n *SubInput) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem(fmt.Sprintf("SubInput(%s)", n.Name), true)
}

// copyPoseData copies bones and curves between contexts of different proxies, keeping the
// destination's bone container.
func copyPoseData(dst, src *PoseContext) {
	if len(dst.Pose.Bones) != len(src.Pose.Bones) {
		dst.ResetToRefPose()
		return
	}
	copy(dst.Pose.Bones, src.Pose.Bones)
	dst.Curve.CopyFrom(src.Curve)
}
