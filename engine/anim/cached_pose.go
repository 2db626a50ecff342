package anim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
)

// SaveCachedPose evaluates its subgraph once per frame and shares the result with every
// UseCachedPose linked to it. The subgraph is updated once, after the main graph update,
// with the heaviest of the contexts it received.
type SaveCachedPose struct {
	NodeBase
	CachePoseName string
	Pose          PoseLink

	pending      []UpdateContext
	cached       *PoseContext
	evaluatedFor uint64
	globalWeight float32
}

func (n *SaveCachedPose) Initialize(ctx *InitializeContext) {
	p := ctx.Proxy
	if n.initializedAt == p.initializationCounter {
		return
	}
	n.markInitialized(p)
	n.pending = n.pending[:0]
	n.evaluatedFor = 0
	n.Pose.Initialize(ctx)
}

func (n *SaveCachedPose) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.Pose.CacheBones(ctx)
	}
}

// Update queues the context; the subgraph is updated by postGraphUpdate.
func (n *SaveCachedPose) Update(ctx *UpdateContext) {
	if n.updatedAt != ctx.Proxy.updateCounter {
		n.pending = n.pending[:0]
	}
	n.markUpdated(ctx.Proxy)
	n.pending = append(n.pending, *ctx)
}

// postGraphUpdate updates the subgraph with the heaviest queued context. It reports
// whether there was anything to update.
func (n *SaveCachedPose) postGraphUpdate() bool {
	if len(n.pending) == 0 {
		return false
	}
	best := 0
	for i := range n.pending {
		if n.pending[i].FinalBlendWeight() > n.pending[best].FinalBlendWeight() {
			best = i
		}
	}
	ctx := n.pending[best]
	n.pending = n.pending[:0]
	n.globalWeight = ctx.FinalBlendWeight()
	n.Pose.Update(&ctx)
	return true
}

func (n *SaveCachedPose) Evaluate(out *PoseContext) {
	p := out.Proxy
	if n.evaluatedFor != p.evaluationCounter || n.cached == nil {
		n.checkEvaluate(p, "SaveCachedPose")
		if n.cached == nil {
			n.cached = &PoseContext{Proxy: p, Pose: pose.NewPose(p.boneContainer), Curve: &pose.Curve{}}
		}
		n.cached.Pose.SetBoneContainer(p.boneContainer)
		n.cached.Curve.Reset()
		n.Pose.Evaluate(n.cached)
		n.evaluatedFor = p.evaluationCounter
	}
	out.CopyFrom(n.cached)
}

func (n *SaveCachedPose) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem(fmt.Sprintf("SaveCachedPose(%s weight %.2f)", n.CachePoseName, n.globalWeight), false)
	n.Pose.GatherDebugData(d.BranchFlow(1))
}

// UseCachedPose reads the pose of a SaveCachedPose.
type UseCachedPose struct {
	NodeBase
	LinkToCachingNode PoseLink
}

func (n *UseCachedPose) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.LinkToCachingNode.Initialize(ctx)
}

func (n *UseCachedPose) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.LinkToCachingNode.CacheBones(ctx)
	}
}

func (n *UseCachedPose) Update(ctx *UpdateContext) {
	n.markUpdated(ctx.Proxy)
	n.LinkToCachingNode.Update(ctx)
}

func (n *UseCachedPose) Evaluate(out *PoseContext) {
	n.checkEvaluate(out.Proxy, "UseCachedPose")
	n.LinkToCachingNode.Evaluate(out)
}

func (n *UseCachedPose) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem("UseCachedPose", false)
	n.LinkToCachingNode.GatherDebugData(d.BranchFlow(1))
}
