package anim

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
)

// InitializeContext is passed down the graph when a node becomes relevant.
type InitializeContext struct {
	Proxy *Proxy
}

// CacheBonesContext is passed down the graph after the required bone set changes.
type CacheBonesContext struct {
	Proxy *Proxy
}

// UpdateContext carries the frame delta and the accumulated graph weight reaching a node.
type UpdateContext struct {
	Proxy     *Proxy
	DeltaTime float32

	weight           float32
	rootMotionWeight float32
}

// NewUpdateContext creates a full-weight update context for the root of a graph.
//
// Parameters:
//   - p: the proxy being updated
//   - deltaTime: the frame delta in seconds
//
// Returns:
//   - *UpdateContext: the root context
func NewUpdateContext(p *Proxy, deltaTime float32) *UpdateContext {
	return &UpdateContext{Proxy: p, DeltaTime: deltaTime, weight: 1, rootMotionWeight: 1}
}

// FinalBlendWeight returns the weight this branch contributes to the final pose.
func (c *UpdateContext) FinalBlendWeight() float32 { return c.weight }

// RootMotionWeightModifier returns the scale applied to root motion extracted in this branch.
func (c *UpdateContext) RootMotionWeightModifier() float32 { return c.rootMotionWeight }

// FractionalWeight returns a child context whose weight is scaled by w.
func (c *UpdateContext) FractionalWeight(w float32) *UpdateContext {
	return &UpdateContext{Proxy: c.Proxy, DeltaTime: c.DeltaTime, weight: c.weight * w, rootMotionWeight: c.rootMotionWeight}
}

// FractionalWeightAndRootMotion scales both the blend weight and the root motion weight.
func (c *UpdateContext) FractionalWeightAndRootMotion(w, rootMotion float32) *UpdateContext {
	return &UpdateContext{Proxy: c.Proxy, DeltaTime: c.DeltaTime, weight: c.weight * w, rootMotionWeight: c.rootMotionWeight * rootMotion}
}

// FractionalWeightAndTime scales the weight by w and the delta time by timeFraction.
func (c *UpdateContext) FractionalWeightAndTime(w, timeFraction float32) *UpdateContext {
	return &UpdateContext{Proxy: c.Proxy, DeltaTime: c.DeltaTime * timeFraction, weight: c.weight * w, rootMotionWeight: c.rootMotionWeight}
}

// PoseContext receives the output of Evaluate: a pose and its curves.
type PoseContext struct {
	Proxy *Proxy
	Pose  *pose.Pose
	Curve *pose.Curve
}

// NewPoseContext returns a scratch context laid out for the proxy's current bone container.
// Contexts come from a per-proxy free list; call Release when done.
//
// Parameters:
//   - p: the owning proxy
//
// Returns:
//   - *PoseContext: a context whose curve is empty and whose pose holds stale data
func NewPoseContext(p *Proxy) *PoseContext {
	if n := len(p.freeContexts); n > 0 {
		c := p.freeContexts[n-1]
		p.freeContexts = p.freeContexts[:n-1]
		c.Pose.SetBoneContainer(p.boneContainer)
		c.Curve.Reset()
		return c
	}
	return &PoseContext{Proxy: p, Pose: pose.NewPose(p.boneContainer), Curve: &pose.Curve{}}
}

// Child returns a scratch context from the same proxy.
func (c *PoseContext) Child() *PoseContext { return NewPoseContext(c.Proxy) }

// Release returns the context to its proxy's free list.
func (c *PoseContext) Release() {
	if c == nil || c.Proxy == nil {
		return
	}
	c.Proxy.freeContexts = append(c.Proxy.freeContexts, c)
}

// ResetToRefPose writes the reference pose and clears the curves.
func (c *PoseContext) ResetToRefPose() {
	c.Pose.ResetToRefPose()
	c.Curve.Reset()
}

// ResetToAdditiveIdentity writes the additive identity pose and clears the curves.
func (c *PoseContext) ResetToAdditiveIdentity() {
	c.Pose.ResetToAdditiveIdentity()
	c.Curve.Reset()
}

// CopyFrom copies another context's pose and curves.
func (c *PoseContext) CopyFrom(other *PoseContext) {
	c.Pose.CopyFrom(other.Pose)
	c.Curve.CopyFrom(other.Curve)
}
