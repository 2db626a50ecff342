package anim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

// Slot plays the montages targeting SlotName over its source pose.
type Slot struct {
	NodeBase
	SlotName string
	Source   PoseLink

	// AlwaysUpdateSourcePose keeps updating the source while a montage fully covers it.
	AlwaysUpdateSourcePose bool

	slotWeight   float32
	sourceWeight float32
	totalWeight  float32
}

func (n *Slot) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	ctx.Proxy.RegisterSlot(n.SlotName)
	n.Source.Initialize(ctx)
	n.slotWeight, n.sourceWeight, n.totalWeight = 0, 1, 0
}

func (n *Slot) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.Source.CacheBones(ctx)
	}
}

func (n *Slot) Update(ctx *UpdateContext) {
	p := ctx.Proxy
	n.markUpdated(p)
	n.slotWeight, n.sourceWeight, n.totalWeight = p.GetSlotWeight(n.SlotName, 1)
	p.UpdateSlotNodeWeight(n.SlotName, n.slotWeight, ctx.FinalBlendWeight())

	if n.AlwaysUpdateSourcePose || common.IsRelevant(n.sourceWeight) {
		n.Source.Update(ctx.FractionalWeight(n.sourceWeight))
	}
}

func (n *Slot) Evaluate(out *PoseContext) {
	p := out.Proxy
	n.checkEvaluate(p, "Slot")
	if !common.IsRelevant(n.slotWeight) {
		n.Source.Evaluate(out)
		return
	}
	src := out.Child()
	defer src.Release()
	if common.IsRelevant(n.sourceWeight) {
		n.Source.Evaluate(src)
	} else {
		src.ResetToRefPose()
	}
	p.SlotEvaluatePose(n.SlotName, src, n.sourceWeight, n.slotWeight, n.totalWeight, out)
}

// Weights returns the slot, source and total weights of the last update.
func (n *Slot) Weights() (slot, source, total float32) {
	return n.slotWeight, n.sourceWeight, n.totalWeight
}

func (n *Slot) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem(fmt.Sprintf("Slot(%s slot %.2f source %.2f)", n.SlotName, n.slotWeight, n.sourceWeight), false)
	n.Source.GatherDebugData(d.BranchFlow(n.sourceWeight))
}
