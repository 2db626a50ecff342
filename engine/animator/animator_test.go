package animator

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/anim"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	boneRoot int32 = iota
	boneSpine
	boneArm
)

func testSkeleton(t *testing.T) *model.Skeleton {
	t.Helper()
	id := model.IdentityTransform()
	s, err := model.NewSkeleton("body", []model.Bone{
		{Name: "root", ParentIndex: -1, LocalTransform: id},
		{Name: "spine", ParentIndex: 0, LocalTransform: id},
		{Name: "arm", ParentIndex: 1, LocalTransform: id},
	})
	if err != nil {
		t.Fatalf("NewSkeleton() error = %v", err)
	}
	return s
}

// swingSequence holds the arm at a yaw of angle and moves the root forward by speed per second.
func swingSequence(t *testing.T, sk *model.Skeleton, length, angle, speed float32) *model.Sequence {
	t.Helper()
	rot := mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})
	seq, err := model.NewSequence("swing", sk, length,
		model.WithChannels(
			model.AnimationChannel{
				BoneIndex:    boneArm,
				RotationKeys: []model.QuaternionKeyframe{{Time: 0, Value: rot}, {Time: length, Value: rot}},
			},
			model.AnimationChannel{
				BoneIndex:    boneRoot,
				PositionKeys: []model.VectorKeyframe{{Time: 0}, {Time: length, Value: mgl32.Vec3{0, 0, speed * length}}},
			},
		),
		model.WithRootMotion(speed != 0),
	)
	if err != nil {
		t.Fatalf("NewSequence() error = %v", err)
	}
	return seq
}

func testMontage(t *testing.T, seq *model.Sequence, slot string, opts ...model.MontageBuilderOption) *model.Montage {
	t.Helper()
	m, err := model.NewMontage(slot+"_montage", seq.Skeleton, []model.SlotTrack{{
		SlotName: slot,
		Segments: []model.MontageSegment{{Animation: seq, AnimEndTime: seq.Length()}},
	}}, opts...)
	if err != nil {
		t.Fatalf("NewMontage() error = %v", err)
	}
	return m
}

// slotClass is Root -> Slot(UpperBody) -> RefPose.
func slotClass(t *testing.T, sk *model.Skeleton) *anim.Class {
	t.Helper()
	cb := anim.NewClassBuilder("upper", sk)
	root := cb.AddNode(func() anim.Node { return &anim.Root{Result: anim.Link(1)} })
	cb.AddNode(func() anim.Node { return &anim.Slot{SlotName: "UpperBody", Source: anim.Link(2)} })
	cb.AddNode(func() anim.Node { return &anim.RefPose{} })
	cb.SetRoot(root)
	c, err := cb.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return c
}

func newTestAnimator(t *testing.T, sk *model.Skeleton, opts ...AnimatorBuilderOption) Animator {
	t.Helper()
	a, err := NewAnimator(slotClass(t, sk), opts...)
	if err != nil {
		t.Fatalf("NewAnimator() error = %v", err)
	}
	return a
}

func approx(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func armAngle(a Animator) float32 {
	q := a.Pose().Bones[boneArm].Rotation
	if q.W < 0 {
		q = q.Scale(-1)
	}
	return 2 * float32(math.Atan2(float64(q.V[1]), float64(q.W)))
}

func quick(t float32) model.BlendSettings { return model.BlendSettings{Time: t} }

func TestMontageBlendsInThroughSlot(t *testing.T) {
	sk := testSkeleton(t)
	m := testMontage(t, swingSequence(t, sk, 1, 1, 0), "UpperBody", model.WithBlendIn(quick(0.2)))
	a := newTestAnimator(t, sk)
	if _, err := a.PlayMontage(m, 1, 0); err != nil {
		t.Fatalf("PlayMontage() error = %v", err)
	}

	a.Tick(0.1)
	if got := a.MontageWeight(m); !approx(got, 0.5) {
		t.Errorf("weight after half the blend in = %v, want 0.5", got)
	}
	if got := armAngle(a); !approx(got, 0.5) {
		t.Errorf("arm angle = %v, want 0.5", got)
	}
	a.Tick(0.1)
	if got := armAngle(a); !approx(got, 1) {
		t.Errorf("arm angle at full weight = %v, want 1", got)
	}
	if got := a.MontagePosition(m); !approx(got, 0.2) {
		t.Errorf("position = %v, want 0.2", got)
	}
}

func TestMontageBlendsOutBeforeEnd(t *testing.T) {
	sk := testSkeleton(t)
	m := testMontage(t, swingSequence(t, sk, 1, 1, 0), "UpperBody", model.WithBlendIn(quick(0.25)), model.WithBlendOut(quick(0.5)))

	var blendingOut, ended []bool
	a := newTestAnimator(t, sk,
		WithMontageBlendingOutHandler(func(_ Animator, got *model.Montage, interrupted bool) {
			if got == m {
				blendingOut = append(blendingOut, interrupted)
			}
		}),
		WithMontageEndedHandler(func(_ Animator, got *model.Montage, interrupted bool) {
			if got == m {
				ended = append(ended, interrupted)
			}
		}),
	)
	if _, err := a.PlayMontage(m, 1, 0); err != nil {
		t.Fatalf("PlayMontage() error = %v", err)
	}

	a.Tick(0.25)
	if !a.IsMontageActive(m) || len(blendingOut) != 0 {
		t.Fatal("montage stopped before its blend out window")
	}
	a.Tick(0.25)
	if a.IsMontageActive(m) {
		t.Error("montage still active inside its blend out window")
	}
	if !slices.Equal(blendingOut, []bool{false}) {
		t.Errorf("blending out events = %v, want one uninterrupted", blendingOut)
	}
	a.Tick(0.25)
	if got := a.MontageWeight(m); !approx(got, 0.5) {
		t.Errorf("weight halfway through the blend out = %v, want 0.5", got)
	}
	a.Tick(0.25)
	if len(ended) != 1 || ended[0] {
		t.Errorf("ended events = %v, want one uninterrupted", ended)
	}
	if got := a.MontageInstanceCount(); got != 0 {
		t.Errorf("MontageInstanceCount() = %d, want 0", got)
	}
	if got := armAngle(a); !approx(got, 0) {
		t.Errorf("arm angle after the montage = %v, want 0", got)
	}
}

func TestMontageSections(t *testing.T) {
	sk := testSkeleton(t)
	m := testMontage(t, swingSequence(t, sk, 3, 1, 0), "UpperBody",
		model.WithBlendIn(quick(0)),
		model.WithSection("Start", 0, "Loop"),
		model.WithSection("Loop", 1, "Loop"),
		model.WithSection("Finish", 2, ""),
	)
	a := newTestAnimator(t, sk)
	if _, err := a.PlayMontage(m, 1, 0); err != nil {
		t.Fatalf("PlayMontage() error = %v", err)
	}

	steps := []struct {
		section  string
		position float32
	}{
		{"Start", 0.5}, {"Start", 1}, {"Loop", 1.5}, {"Loop", 2}, {"Loop", 1.5}, {"Loop", 2}, {"Loop", 1.5},
	}
	for i, s := range steps {
		a.Tick(0.5)
		if got := a.MontageCurrentSection(m); got != s.section {
			t.Errorf("step %d: section = %q, want %q", i, got, s.section)
		}
		if got := a.MontagePosition(m); !approx(got, s.position) {
			t.Errorf("step %d: position = %v, want %v", i, got, s.position)
		}
	}

	if err := a.SetNextSection(m, "Loop", "Finish"); err != nil {
		t.Fatalf("SetNextSection() error = %v", err)
	}
	a.Tick(0.5)
	a.Tick(0.5)
	if got := a.MontageCurrentSection(m); got != "Finish" {
		t.Errorf("section after relinking = %q, want Finish", got)
	}

	if err := a.JumpToSection(m, "Start"); err != nil {
		t.Fatalf("JumpToSection() error = %v", err)
	}
	if got := a.MontagePosition(m); got != 0 {
		t.Errorf("position after jump = %v, want 0", got)
	}
	if err := a.JumpToSection(m, "Missing"); !errors.Is(err, model.ErrSectionNotFound) {
		t.Errorf("JumpToSection(Missing) error = %v, want ErrSectionNotFound", err)
	}
	if err := a.SetNextSection(m, "Start", "Missing"); !errors.Is(err, model.ErrSectionNotFound) {
		t.Errorf("SetNextSection(Missing) error = %v, want ErrSectionNotFound", err)
	}
}

func TestPlayMontageInterruptsSharedSlot(t *testing.T) {
	sk := testSkeleton(t)
	first := testMontage(t, swingSequence(t, sk, 2, 1, 0), "UpperBody", model.WithBlendIn(quick(0)))
	second := testMontage(t, swingSequence(t, sk, 2, 0.5, 0), "UpperBody", model.WithBlendIn(quick(0.5)))
	other := testMontage(t, swingSequence(t, sk, 2, 0.5, 0), "Legs")

	var ended []string
	a := newTestAnimator(t, sk, WithMontageEndedHandler(func(_ Animator, m *model.Montage, interrupted bool) {
		if interrupted {
			ended = append(ended, m.Name)
		}
	}))
	for _, m := range []*model.Montage{first, other} {
		if _, err := a.PlayMontage(m, 1, 0); err != nil {
			t.Fatalf("PlayMontage(%s) error = %v", m.Name, err)
		}
	}
	a.Tick(0.25)
	if _, err := a.PlayMontage(second, 1, 0); err != nil {
		t.Fatalf("PlayMontage(second) error = %v", err)
	}
	if a.IsMontageActive(first) {
		t.Error("interrupted montage still active")
	}
	if !a.IsMontageActive(other) {
		t.Error("montage on another slot was interrupted")
	}

	a.Tick(0.25)
	if got, want := a.MontageWeight(first)+a.MontageWeight(second), float32(1); !approx(got, want) {
		t.Errorf("crossfading weights sum to %v, want %v", got, want)
	}
	a.Tick(0.25)
	a.Tick(0.25)
	if !slices.Equal(ended, []string{first.Name}) {
		t.Errorf("interrupted ends = %v, want [%s]", ended, first.Name)
	}
}

func TestPauseAndResumeMontage(t *testing.T) {
	sk := testSkeleton(t)
	m := testMontage(t, swingSequence(t, sk, 2, 1, 0), "UpperBody")
	a := newTestAnimator(t, sk)
	if _, err := a.PlayMontage(m, 1, 0.5); err != nil {
		t.Fatalf("PlayMontage() error = %v", err)
	}
	a.PauseMontage(nil)
	a.Tick(0.25)
	if got := a.MontagePosition(m); got != 0.5 {
		t.Errorf("paused position = %v, want 0.5", got)
	}
	a.ResumeMontage(m)
	a.Tick(0.25)
	if got := a.MontagePosition(m); !approx(got, 0.75) {
		t.Errorf("resumed position = %v, want 0.75", got)
	}
}

func TestMontagePlaysBackward(t *testing.T) {
	sk := testSkeleton(t)
	m := testMontage(t, swingSequence(t, sk, 2, 1, 0), "UpperBody")
	a := newTestAnimator(t, sk)
	if _, err := a.PlayMontage(m, -1, 1); err != nil {
		t.Fatalf("PlayMontage() error = %v", err)
	}
	a.Tick(0.25)
	if got := a.MontagePosition(m); !approx(got, 0.75) {
		t.Errorf("position = %v, want 0.75", got)
	}
}

func TestMontageNotifiesReachHandler(t *testing.T) {
	sk := testSkeleton(t)
	m := testMontage(t, swingSequence(t, sk, 1, 1, 0), "UpperBody", model.WithMontageNotify("impact", 0.3))

	var got []anim.AnimNotify
	a := newTestAnimator(t, sk, WithNotifyHandler(func(_ Animator, n anim.AnimNotify) { got = append(got, n) }))
	if _, err := a.PlayMontage(m, 1, 0); err != nil {
		t.Fatalf("PlayMontage() error = %v", err)
	}
	a.Tick(0.25)
	if len(got) != 0 {
		t.Fatalf("notifies before the impact = %+v, want none", got)
	}
	a.Tick(0.25)
	if len(got) != 1 || got[0].Name != "impact" || got[0].Source != anim.NotifyFromMontage || got[0].Asset != m.Name {
		t.Errorf("notifies = %+v, want one impact from %s", got, m.Name)
	}
}

func TestMontageRootMotion(t *testing.T) {
	sk := testSkeleton(t)
	m := testMontage(t, swingSequence(t, sk, 1, 0, 2), "UpperBody", model.WithMontageRootMotion(true), model.WithBlendIn(quick(0)))
	a := newTestAnimator(t, sk)
	if _, err := a.PlayMontage(m, 1, 0); err != nil {
		t.Fatalf("PlayMontage() error = %v", err)
	}

	a.Tick(0.25)
	if got := a.Pose().Bones[boneRoot].Translation; got.Len() > 1e-5 {
		t.Errorf("root translation in pose = %v, want locked", got)
	}
	a.Tick(0.25)
	got := a.ConsumeRootMotion(1)
	if got.Translation.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-4 {
		t.Errorf("root motion = %v, want (0, 0, 1)", got.Translation)
	}
}

func TestPlayMontageErrors(t *testing.T) {
	sk := testSkeleton(t)
	a := newTestAnimator(t, sk)
	m := testMontage(t, swingSequence(t, sk, 1, 1, 0), "UpperBody")

	stranger, err := model.NewSkeleton("other", []model.Bone{{Name: "pelvis", ParentIndex: -1, LocalTransform: model.IdentityTransform()}})
	if err != nil {
		t.Fatalf("NewSkeleton() error = %v", err)
	}
	foreign := testMontage(t, swingSequenceOn(t, stranger), "UpperBody")

	tests := []struct {
		name string
		m    *model.Montage
		rate float32
		want error
	}{
		{name: "nil montage", m: nil, rate: 1, want: ErrNilMontage},
		{name: "zero rate", m: m, rate: 0, want: ErrInvalidPlayRate},
		{name: "other skeleton", m: foreign, rate: 1, want: model.ErrIncompatibleSkeleton},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.PlayMontage(tt.m, tt.rate, 0); !errors.Is(err, tt.want) {
				t.Errorf("PlayMontage() error = %v, want %v", err, tt.want)
			}
		})
	}
	if err := a.JumpToSection(m, "Default"); !errors.Is(err, ErrMontageNotActive) {
		t.Errorf("JumpToSection() on an idle montage error = %v, want ErrMontageNotActive", err)
	}
	if _, err := NewAnimator(nil); err == nil {
		t.Error("NewAnimator(nil) returned no error")
	}
}

func swingSequenceOn(t *testing.T, sk *model.Skeleton) *model.Sequence {
	t.Helper()
	seq, err := model.NewSequence("pelvis", sk, 1)
	if err != nil {
		t.Fatalf("NewSequence() error = %v", err)
	}
	return seq
}
