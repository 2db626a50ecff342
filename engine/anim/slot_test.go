package anim

import (
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

func slotMontage(t *testing.T, seq *model.Sequence, slot string, additive model.AdditiveType, opts ...model.MontageBuilderOption) *model.Montage {
	t.Helper()
	m, err := model.NewMontage(seq.Name+"_montage", seq.Skeleton, []model.SlotTrack{{
		SlotName: slot,
		Segments: []model.MontageSegment{{Animation: seq, AnimEndTime: seq.Length()}},
		Additive: additive,
	}}, opts...)
	if err != nil {
		t.Fatalf("NewMontage() error = %v", err)
	}
	return m
}

// montageFrame runs a frame with the given montage snapshots.
func montageFrame(p *Proxy, dt float32, states []MontageEvaluationState, during func()) {
	p.PreUpdate(dt)
	p.SetMontageEvaluationData(states)
	if during != nil {
		during()
	}
	p.UpdateAnimation()
	p.PreEvaluateAnimation()
	p.Evaluate()
	p.PostUpdate()
}

func TestGetSlotWeight(t *testing.T) {
	sk := testSkeleton(t)
	seq := constantSequence(t, sk, "swing", 1, 1, allBones())
	add := constantSequence(t, sk, "flinch", 1, 0.5, []int32{boneSpine}, model.WithAdditiveType(model.AdditiveLocalSpace))
	upper := slotMontage(t, seq, "UpperBody", model.AdditiveNone)
	flinch := slotMontage(t, add, "UpperBody", model.AdditiveLocalSpace)
	legs := slotMontage(t, seq, "Legs", model.AdditiveNone)

	cb := NewClassBuilder("slots", sk)
	cb.SetRoot(cb.AddNode(func() Node { return &RefPose{} }))
	p := newProxy(t, buildClass(t, cb))

	tests := []struct {
		name                string
		states              []MontageEvaluationState
		global              float32
		slot, source, total float32
	}{
		{name: "no montage", global: 1, slot: 0, source: 1, total: 0},
		{
			name:   "scaled by global weight",
			states: []MontageEvaluationState{{Montage: upper, Weight: 0.6}},
			global: 0.8, slot: 0.48, source: 0.52, total: 0.48,
		},
		{
			name:   "other slot ignored",
			states: []MontageEvaluationState{{Montage: legs, Weight: 1}},
			global: 1, slot: 0, source: 1, total: 0,
		},
		{
			name:   "additive keeps the source",
			states: []MontageEvaluationState{{Montage: flinch, Weight: 0.5}},
			global: 1, slot: 0.5, source: 1, total: 0.5,
		},
		{
			name:   "over full weight",
			states: []MontageEvaluationState{{Montage: upper, Weight: 0.6}, {Montage: flinch, Weight: 0.5}},
			global: 1, slot: 1, source: 1 - 0.6/1.1, total: 1.1,
		},
		{
			name:   "full non-additive weight hides the source",
			states: []MontageEvaluationState{{Montage: upper, Weight: 1}},
			global: 1, slot: 1, source: 0, total: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.SetMontageEvaluationData(tt.states)
			slot, source, total := p.GetSlotWeight("UpperBody", tt.global)
			if !approx(slot, tt.slot) || !approx(source, tt.source) || !approx(total, tt.total) {
				t.Errorf("GetSlotWeight() = %v, %v, %v, want %v, %v, %v", slot, source, total, tt.slot, tt.source, tt.total)
			}
		})
	}
}

// slotClass is Root -> Slot(UpperBody) -> source. The source is link id 2.
func slotClass(t *testing.T, sk *model.Skeleton, slot func() *Slot, source NodeFactory) *Class {
	t.Helper()
	cb := NewClassBuilder("slot", sk)
	root := cb.AddNode(func() Node { return &Root{Result: Link(1)} })
	cb.AddNode(func() Node { return slot() })
	cb.AddNode(source)
	cb.SetRoot(root)
	return buildClass(t, cb)
}

func TestSlotBlendsMontageOverSource(t *testing.T) {
	sk := testSkeleton(t)
	seq := constantSequence(t, sk, "swing", 1, 1, allBones())
	upper := slotMontage(t, seq, "UpperBody", model.AdditiveNone)
	p := newProxy(t, slotClass(t, sk, func() *Slot { return &Slot{SlotName: "UpperBody", Source: Link(2)} }, func() Node { return &RefPose{} }))

	p.PreUpdate(0.1)
	p.SetMontageEvaluationData([]MontageEvaluationState{{Montage: upper, Weight: 0.5, Position: 0.5, IsActive: true}})
	p.UpdateAnimation()
	out, _ := p.Evaluate()
	p.PostUpdate()

	if got := angleOf(out.Bones[boneArm].Rotation); !approx(got, 0.5) {
		t.Errorf("arm angle = %v, want 0.5", got)
	}
	if !out.IsNormalized(1e-3) {
		t.Error("slot output is not normalized")
	}
	slot, source, total := mustNode[*Slot](t, p, 1).Weights()
	if !approx(slot, 0.5) || !approx(source, 0.5) || !approx(total, 0.5) {
		t.Errorf("Weights() = %v, %v, %v, want 0.5 each", slot, source, total)
	}
	if got := p.SlotMontageLocalWeight("UpperBody"); !approx(got, 0.5) {
		t.Errorf("SlotMontageLocalWeight = %v, want 0.5", got)
	}
	if got := p.SlotNodeGlobalWeight("UpperBody"); got != 1 {
		t.Errorf("SlotNodeGlobalWeight = %v, want 1", got)
	}
}

func TestSlotOverlappingMontagesKeepFullWeight(t *testing.T) {
	sk := testSkeleton(t)
	seq := constantSequence(t, sk, "swing", 1, 1, allBones())
	add := constantSequence(t, sk, "flinch", 1, 0.5, []int32{boneSpine}, model.WithAdditiveType(model.AdditiveLocalSpace))
	upper := slotMontage(t, seq, "UpperBody", model.AdditiveNone)
	flinch := slotMontage(t, add, "UpperBody", model.AdditiveLocalSpace)
	p := newProxy(t, slotClass(t, sk, func() *Slot { return &Slot{SlotName: "UpperBody", Source: Link(2)} }, func() Node { return &RefPose{} }))

	p.PreUpdate(0.1)
	p.SetMontageEvaluationData([]MontageEvaluationState{
		{Montage: upper, Weight: 0.6, Position: 0.5, IsActive: true},
		{Montage: flinch, Weight: 0.5, Position: 0.5, IsActive: true},
	})
	p.UpdateAnimation()
	out, _ := p.Evaluate()
	p.PostUpdate()

	_, source, total := mustNode[*Slot](t, p, 1).Weights()
	if !approx(source+0.6/total, 1) {
		t.Errorf("source %v + normalized montage %v != 1", source, 0.6/total)
	}
	for _, b := range allBones() {
		if got := out.Bones[b].Scale; got.Sub(mgl32.Vec3{1, 1, 1}).Len() > 1e-4 {
			t.Errorf("bone %d scale = %v, want 1", b, got)
		}
	}
	if !out.IsNormalized(1e-3) {
		t.Error("slot output is not normalized")
	}
}

func TestSlotAppliesAdditiveMontage(t *testing.T) {
	sk := testSkeleton(t)
	add := constantSequence(t, sk, "flinch", 1, 0.5, []int32{boneSpine}, model.WithAdditiveType(model.AdditiveLocalSpace))
	flinch := slotMontage(t, add, "UpperBody", model.AdditiveLocalSpace)
	p := newProxy(t, slotClass(t, sk, func() *Slot { return &Slot{SlotName: "UpperBody", Source: Link(2)} }, func() Node { return &RefPose{} }))

	p.PreUpdate(0.1)
	p.SetMontageEvaluationData([]MontageEvaluationState{{Montage: flinch, Weight: 1, Position: 0.5}})
	p.UpdateAnimation()
	out, _ := p.Evaluate()
	p.PostUpdate()

	if got := angleOf(out.Bones[boneSpine].Rotation); !approx(got, 0.5) {
		t.Errorf("spine angle = %v, want 0.5", got)
	}
	if got := angleOf(out.Bones[boneLeg].Rotation); !approx(got, 0) {
		t.Errorf("leg angle = %v, want 0", got)
	}
}

func TestSlotSkipsHiddenSource(t *testing.T) {
	sk := testSkeleton(t)
	seq := constantSequence(t, sk, "swing", 1, 1, allBones())
	upper := slotMontage(t, seq, "UpperBody", model.AdditiveNone)
	full := []MontageEvaluationState{{Montage: upper, Weight: 1, Position: 0.2}}

	for _, always := range []bool{false, true} {
		p := newProxy(t, slotClass(t, sk,
			func() *Slot { return &Slot{SlotName: "UpperBody", Source: Link(2), AlwaysUpdateSourcePose: always} },
			func() Node { return &countingNode{} }))
		counter := mustNode[*countingNode](t, p, 2)
		montageFrame(p, 0.1, full, nil)

		want := 0
		if always {
			want = 1
		}
		if counter.updates != want {
			t.Errorf("always=%v: source updates = %d, want %d", always, counter.updates, want)
		}
		if counter.evals != 0 {
			t.Errorf("always=%v: hidden source was evaluated", always)
		}
	}
}

func TestMontageNotifiesNeedRelevantSlot(t *testing.T) {
	sk := testSkeleton(t)
	p := newProxy(t, slotClass(t, sk, func() *Slot { return &Slot{SlotName: "UpperBody", Source: Link(2)} }, func() Node { return &RefPose{} }))
	seq := constantSequence(t, sk, "swing", 1, 1, allBones())
	upper := slotMontage(t, seq, "UpperBody", model.AdditiveNone)

	hit := []model.NotifyEvent{{Name: "hit", Time: 0.3}}
	montageFrame(p, 0.1, []MontageEvaluationState{{Montage: upper, Weight: 1}}, func() {
		p.QueueMontageNotifies("UpperBody", hit, upper.Name, 1)
		p.QueueMontageNotifies("Legs", []model.NotifyEvent{{Name: "kick"}}, upper.Name, 1)
	})
	if got := notifyNames(p); !slices.Equal(got, []string{"hit"}) {
		t.Errorf("notifies = %v, want [hit]", got)
	}
	if n := p.Notifies()[0]; n.Source != NotifyFromMontage || n.Asset != upper.Name {
		t.Errorf("notify = %+v, want a montage notify from %s", n, upper.Name)
	}

	// The slot stays relevant for one frame after its montage stops.
	montageFrame(p, 0.1, nil, func() { p.QueueMontageNotifies("UpperBody", hit, upper.Name, 1) })
	if got := notifyNames(p); !slices.Equal(got, []string{"hit"}) {
		t.Errorf("notifies one frame after the montage = %v, want [hit]", got)
	}
	montageFrame(p, 0.1, nil, nil)
	montageFrame(p, 0.1, nil, func() { p.QueueMontageNotifies("UpperBody", hit, upper.Name, 1) })
	if got := notifyNames(p); len(got) != 0 {
		t.Errorf("notifies on an idle slot = %v, want none", got)
	}
}

func TestMontageRootMotion(t *testing.T) {
	sk := testSkeleton(t)
	step := model.Transform{Translation: mgl32.Vec3{1, 0, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
	seq := constantSequence(t, sk, "swing", 1, 0, nil)
	upper := slotMontage(t, seq, "UpperBody", model.AdditiveNone)
	states := []MontageEvaluationState{{Montage: upper, Weight: 1}}

	tests := []struct {
		name string
		mode RootMotionMode
		want mgl32.Vec3
	}{
		{name: "montages only", mode: RootMotionFromMontagesOnly, want: mgl32.Vec3{2, 0, 0}},
		{name: "everything", mode: RootMotionFromEverything, want: mgl32.Vec3{2, 0, 0}},
		{name: "ignored", mode: IgnoreRootMotion, want: mgl32.Vec3{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProxy(t, slotClass(t, sk, func() *Slot { return &Slot{SlotName: "UpperBody", Source: Link(2)} }, func() Node { return &RefPose{} }),
				WithRootMotionMode(tt.mode))
			for range 2 {
				montageFrame(p, 0.1, states, func() { p.AddMontageRootMotion(step, "UpperBody", 1) })
			}
			got := p.ConsumeExtractedRootMotion(1)
			if got.Translation.Sub(tt.want).Len() > 1e-4 {
				t.Errorf("root motion = %v, want %v", got.Translation, tt.want)
			}
		})
	}
}
