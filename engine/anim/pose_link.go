package anim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

// PoseLink is a graph edge. It stores only the baked link index of its target and resolves
// it through the proxy's node arena on every use.
type PoseLink struct {
	// LinkID is the baked index of the target node, or -1 when unlinked.
	LinkID int

	processing bool
}

// Link returns a PoseLink targeting the node with the given link id.
func Link(id int) PoseLink { return PoseLink{LinkID: id} }

// Unlinked returns a PoseLink with no target.
func Unlinked() PoseLink { return PoseLink{LinkID: -1} }

// IsLinked reports whether the link has a target id.
func (l *PoseLink) IsLinked() bool { return l.LinkID >= 0 }

// resolve looks the target up in the arena, returning nil if the id is invalid.
func (l *PoseLink) resolve(p *Proxy) Node {
	if l.LinkID < 0 {
		return nil
	}
	n, err := p.NodeByLinkID(l.LinkID)
	if err != nil {
		return nil
	}
	return n
}

// enter acquires the re-entrancy guard. It returns false when the link is already being
// processed, which means the graph contains a cycle through this edge.
func (l *PoseLink) enter(p *Proxy, phase string) bool {
	if l.processing {
		p.invariantViolation(fmt.Sprintf("cycle detected in %s through link %d", phase, l.LinkID))
		return false
	}
	l.processing = true
	return true
}

func (l *PoseLink) leave() { l.processing = false }

// Initialize forwards to the target node.
func (l *PoseLink) Initialize(ctx *InitializeContext) {
	n := l.resolve(ctx.Proxy)
	if n == nil || !l.enter(ctx.Proxy, "Initialize") {
		return
	}
	defer l.leave()
	n.Initialize(ctx)
}

// CacheBones forwards to the target node.
func (l *PoseLink) CacheBones(ctx *CacheBonesContext) {
	n := l.resolve(ctx.Proxy)
	if n == nil || !l.enter(ctx.Proxy, "CacheBones") {
		return
	}
	defer l.leave()
	n.CacheBones(ctx)
}

// Update forwards to the target node.
func (l *PoseLink) Update(ctx *UpdateContext) {
	n := l.resolve(ctx.Proxy)
	if n == nil || !l.enter(ctx.Proxy, "Update") {
		return
	}
	defer l.leave()
	ctx.Proxy.recordNodeVisit(l.LinkID, ctx.FinalBlendWeight())
	n.Update(ctx)
}

// Evaluate forwards to the target node. An unresolved link or a detected cycle writes the
// reference pose instead.
func (l *PoseLink) Evaluate(out *PoseContext) {
	l.evaluate(out, (*PoseContext).ResetToRefPose)
}

func (l *PoseLink) evaluate(out *PoseContext, fallback func(*PoseContext)) {
	n := l.resolve(out.Proxy)
	if n == nil {
		if l.LinkID >= 0 {
			common.Logger().Warn("[PoseLink] unresolved link, using fallback pose", "link", l.LinkID, "instance", out.Proxy.name)
		}
		fallback(out)
		return
	}
	if !l.enter(out.Proxy, "Evaluate") {
		fallback(out)
		return
	}
	defer l.leave()
	n.Evaluate(out)
	out.Proxy.checkPose(out, n)
}

// GatherDebugData forwards to the target node.
func (l *PoseLink) GatherDebugData(d *NodeDebugData) {
	n := l.resolve(d.proxy)
	if n == nil {
		d.AddDebugItem("(unlinked)", true)
		return
	}
	if l.processing {
		return
	}
	l.processing = true
	defer l.leave()
	n.GatherDebugData(d)
}

// AdditivePoseLink is a PoseLink whose unresolved fallback is the additive identity pose.
type AdditivePoseLink struct {
	PoseLink
}

// AdditiveLink returns an AdditivePoseLink targeting the node with the given link id.
func AdditiveLink(id int) AdditivePoseLink { return AdditivePoseLink{PoseLink{LinkID: id}} }

// Evaluate forwards to the target node, writing the additive identity when unresolved.
func (l *AdditivePoseLink) Evaluate(out *PoseContext) {
	l.evaluate(out, (*PoseContext).ResetToAdditiveIdentity)
}
