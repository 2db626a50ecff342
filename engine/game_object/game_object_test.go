package game_object

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/anim"
	"github.com/Carmen-Shannon/oxy-anim/engine/animator"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// dashAnimator plays a montage that moves the root forward 2 units per second.
func dashAnimator(t *testing.T) animator.Animator {
	t.Helper()
	id := model.IdentityTransform()
	sk, err := model.NewSkeleton("body", []model.Bone{
		{Name: "root", ParentIndex: -1, LocalTransform: id},
		{Name: "spine", ParentIndex: 0, LocalTransform: id},
	})
	if err != nil {
		t.Fatalf("NewSkeleton() error = %v", err)
	}
	seq, err := model.NewSequence("dash", sk, 1,
		model.WithChannels(model.AnimationChannel{
			BoneIndex:    0,
			PositionKeys: []model.VectorKeyframe{{Time: 0}, {Time: 1, Value: mgl32.Vec3{0, 0, 2}}},
		}),
		model.WithRootMotion(true),
	)
	if err != nil {
		t.Fatalf("NewSequence() error = %v", err)
	}
	m, err := model.NewMontage("dash_montage", sk, []model.SlotTrack{{
		SlotName: "FullBody",
		Segments: []model.MontageSegment{{Animation: seq, AnimEndTime: 1}},
	}}, model.WithMontageRootMotion(true), model.WithBlendIn(model.BlendSettings{}))
	if err != nil {
		t.Fatalf("NewMontage() error = %v", err)
	}

	cb := anim.NewClassBuilder("dash", sk)
	root := cb.AddNode(func() anim.Node { return &anim.Root{Result: anim.Link(1)} })
	cb.AddNode(func() anim.Node { return &anim.Slot{SlotName: "FullBody", Source: anim.Link(2)} })
	cb.AddNode(func() anim.Node { return &anim.RefPose{} })
	cb.SetRoot(root)
	class, err := cb.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	a, err := animator.NewAnimator(class)
	if err != nil {
		t.Fatalf("NewAnimator() error = %v", err)
	}
	if _, err := a.PlayMontage(m, 1, 0); err != nil {
		t.Fatalf("PlayMontage() error = %v", err)
	}
	return a
}

func TestNewGameObjectDefaults(t *testing.T) {
	obj := NewGameObject()
	if !obj.Enabled() {
		t.Error("new object is disabled")
	}
	if obj.Rotation() != mgl32.QuatIdent() {
		t.Errorf("rotation = %v, want identity", obj.Rotation())
	}
	if obj.Scale() != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("scale = %v, want unit", obj.Scale())
	}
	if got := obj.ApplyRootMotion(1); got != model.IdentityTransform() {
		t.Errorf("root motion without an animator = %+v, want identity", got)
	}
}

func TestApplyRootMotion(t *testing.T) {
	tests := []struct {
		name    string
		options []GameObjectBuilderOption
		want    mgl32.Vec3
	}{
		{
			name: "moves forward",
			want: mgl32.Vec3{0, 0, 1},
		},
		{
			name:    "scaled and turned",
			options: []GameObjectBuilderOption{WithScale(2, 2, 2), WithRotation(0, math.Pi/2, 0)},
			want:    mgl32.Vec3{2, 0, 0},
		},
		{
			name:    "offset start",
			options: []GameObjectBuilderOption{WithPosition(5, 0, -1)},
			want:    mgl32.Vec3{5, 0, 0},
		},
		{
			name:    "disabled",
			options: []GameObjectBuilderOption{WithRootMotion(false)},
			want:    mgl32.Vec3{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := dashAnimator(t)
			obj := NewGameObject(append([]GameObjectBuilderOption{WithAnimator(a)}, tt.options...)...)
			a.Tick(0.5)
			delta := obj.ApplyRootMotion(1)
			if delta.Translation.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-4 {
				t.Errorf("consumed delta = %v, want (0, 0, 1)", delta.Translation)
			}
			if got := obj.Position(); got.Sub(tt.want).Len() > 1e-4 {
				t.Errorf("position = %v, want %v", got, tt.want)
			}
			if again := obj.ApplyRootMotion(1); again.Translation.Len() > 1e-5 {
				t.Errorf("second consume = %v, want nothing left", again.Translation)
			}
		})
	}
}

func TestWorldMatrix(t *testing.T) {
	obj := NewGameObject(WithPosition(1, 2, 3), WithScale(2, 2, 2))
	got := obj.WorldMatrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if got.Sub(mgl32.Vec4{3, 2, 3, 1}).Len() > 1e-5 {
		t.Errorf("transformed point = %v, want (3, 2, 3, 1)", got)
	}
	if wt := obj.WorldTransform(); wt.Translation != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("world translation = %v, want (1, 2, 3)", wt.Translation)
	}
}

func TestNameDefaultsToAnimator(t *testing.T) {
	a := dashAnimator(t)
	if got := NewGameObject(WithAnimator(a)).Name(); got != a.Name() {
		t.Errorf("name = %q, want %q", got, a.Name())
	}
	if got := NewGameObject(WithAnimator(a), WithName("hero")).Name(); got != "hero" {
		t.Errorf("name = %q, want hero", got)
	}
}
