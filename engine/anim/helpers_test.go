package anim

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	boneRoot int32 = iota
	boneSpine
	boneArm
	boneHand
	boneLeg
)

func testSkeleton(t *testing.T) *model.Skeleton {
	t.Helper()
	id := model.IdentityTransform()
	s, err := model.NewSkeleton("test", []model.Bone{
		{Name: "root", ParentIndex: -1, LocalTransform: id},
		{Name: "spine", ParentIndex: 0, LocalTransform: id},
		{Name: "arm", ParentIndex: 1, LocalTransform: id},
		{Name: "hand", ParentIndex: 2, LocalTransform: id},
		{Name: "leg", ParentIndex: 0, LocalTransform: id},
	})
	if err != nil {
		t.Fatalf("NewSkeleton() error = %v", err)
	}
	return s
}

func yaw(angle float32) mgl32.Quat {
	return mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})
}

// constantSequence holds every listed bone at a fixed rotation for the whole length.
func constantSequence(t *testing.T, sk *model.Skeleton, name string, length, angle float32, bones []int32, opts ...model.SequenceBuilderOption) *model.Sequence {
	t.Helper()
	for _, b := range bones {
		opts = append(opts, model.WithChannels(model.AnimationChannel{
			BoneIndex:    b,
			RotationKeys: []model.QuaternionKeyframe{{Time: 0, Value: yaw(angle)}, {Time: length, Value: yaw(angle)}},
		}))
	}
	seq, err := model.NewSequence(name, sk, length, opts...)
	if err != nil {
		t.Fatalf("NewSequence(%s) error = %v", name, err)
	}
	return seq
}

func allBones() []int32 { return []int32{boneRoot, boneSpine, boneArm, boneHand, boneLeg} }

func buildClass(t *testing.T, b *ClassBuilder) *Class {
	t.Helper()
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return c
}

func newProxy(t *testing.T, c *Class, opts ...ProxyBuilderOption) *Proxy {
	t.Helper()
	p, err := NewProxy(c, opts...)
	if err != nil {
		t.Fatalf("NewProxy() error = %v", err)
	}
	p.Initialize()
	return p
}

// runFrame drives one full frame and returns the evaluated pose and curve.
func runFrame(p *Proxy, dt float32) (*pose.Pose, *pose.Curve) {
	p.PreUpdate(dt)
	p.UpdateAnimation()
	p.PreEvaluateAnimation()
	out, curve := p.Evaluate()
	p.PostUpdate()
	return out, curve
}

// updateFrame drives a frame without evaluating.
func updateFrame(p *Proxy, dt float32) {
	p.PreUpdate(dt)
	p.UpdateAnimation()
	p.PostUpdate()
}

func mustNode[T Node](t *testing.T, p *Proxy, id int) T {
	t.Helper()
	n, err := NodeAs[T](p, id)
	if err != nil {
		t.Fatalf("NodeAs(%d) error = %v", id, err)
	}
	return n
}

func approx(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

// angleOf returns the yaw angle of a rotation around +Y.
func angleOf(q mgl32.Quat) float32 {
	if q.W < 0 {
		q = q.Scale(-1)
	}
	return 2 * float32(math.Atan2(float64(q.V[1]), float64(q.W)))
}

func notifyNames(p *Proxy) []string {
	var names []string
	for _, n := range p.Notifies() {
		names = append(names, n.Name)
	}
	return names
}

// countingNode counts phase calls.
type countingNode struct {
	NodeBase
	inits, caches, updates, evals int
	lastWeight                    float32
}

func (n *countingNode) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.inits++
}

func (n *countingNode) CacheBones(ctx *CacheBonesContext) {
	if n.needsCacheBones(ctx.Proxy) {
		n.caches++
	}
}

func (n *countingNode) Update(ctx *UpdateContext) {
	n.markUpdated(ctx.Proxy)
	n.updates++
	n.lastWeight = ctx.FinalBlendWeight()
}

func (n *countingNode) Evaluate(out *PoseContext) {
	n.checkEvaluate(out.Proxy, "counter")
	n.evals++
	out.ResetToRefPose()
}

func (n *countingNode) GatherDebugData(d *NodeDebugData) { d.AddDebugItem("counter", true) }
