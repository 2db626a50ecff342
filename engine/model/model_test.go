package model

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween/ease"
)

func testSkeleton(t *testing.T) *Skeleton {
	t.Helper()
	bones := []Bone{
		{Name: "root", ParentIndex: -1, LocalTransform: IdentityTransform()},
		{Name: "spine", ParentIndex: 0, LocalTransform: IdentityTransform()},
		{Name: "arm", ParentIndex: 1, LocalTransform: IdentityTransform()},
		{Name: "hand", ParentIndex: 2, LocalTransform: IdentityTransform()},
		{Name: "leg", ParentIndex: 0, LocalTransform: IdentityTransform()},
	}
	s, err := NewSkeleton("test", bones)
	if err != nil {
		t.Fatalf("NewSkeleton() error = %v", err)
	}
	return s
}

func TestNewSkeletonRejectsBadHierarchy(t *testing.T) {
	_, err := NewSkeleton("bad", []Bone{{Name: "a", ParentIndex: 1}, {Name: "b", ParentIndex: -1}})
	if !errors.Is(err, ErrInvalidHierarchy) {
		t.Errorf("NewSkeleton() error = %v, want ErrInvalidHierarchy", err)
	}
}

func TestSkeletonLookups(t *testing.T) {
	s := testSkeleton(t)
	if got := s.FindBone("hand"); got != 3 {
		t.Errorf("FindBone(hand) = %d, want 3", got)
	}
	if got := s.FindBone("tail"); got != -1 {
		t.Errorf("FindBone(tail) = %d, want -1", got)
	}
	if !s.IsChildOf(3, 1) {
		t.Error("hand should be a child of spine")
	}
	if s.IsChildOf(4, 1) {
		t.Error("leg should not be a child of spine")
	}
	if len(s.RootBoneIndices) != 1 || s.RootBoneIndices[0] != 0 {
		t.Errorf("RootBoneIndices = %v, want [0]", s.RootBoneIndices)
	}
}

func TestSkeletonIsCompatible(t *testing.T) {
	a := testSkeleton(t)
	b := testSkeleton(t)
	if !a.IsCompatible(b) {
		t.Error("skeletons with identical hierarchy should be compatible")
	}
	other, _ := NewSkeleton("other", []Bone{{Name: "x", ParentIndex: -1}})
	if a.IsCompatible(other) {
		t.Error("different hierarchies should not be compatible")
	}
	a.AddCompatibleSkeleton(other)
	if !other.IsCompatible(a) {
		t.Error("explicit compatibility should be symmetric")
	}
	if a.IsCompatible(nil) {
		t.Error("nil skeleton should never be compatible")
	}
}

func TestCurveUIDStable(t *testing.T) {
	s := testSkeleton(t)
	a := s.CurveUID("blink")
	b := s.CurveUID("smile")
	if a == b {
		t.Fatal("distinct curve names must get distinct UIDs")
	}
	if s.CurveUID("blink") != a {
		t.Error("CurveUID should be stable for the same name")
	}
	if s.CurveName(b) != "smile" {
		t.Errorf("CurveName(%d) = %q, want smile", b, s.CurveName(b))
	}
}

func TestLinkCurveToBone(t *testing.T) {
	s := testSkeleton(t)
	if err := s.LinkCurveToBone("grip", "hand"); err != nil {
		t.Fatalf("LinkCurveToBone() error = %v", err)
	}
	if got := s.CurveLinkedBone(s.CurveUID("grip")); got != 3 {
		t.Errorf("CurveLinkedBone(grip) = %d, want 3", got)
	}
	if got := s.CurveLinkedBone(s.CurveUID("blink")); got != -1 {
		t.Errorf("CurveLinkedBone(blink) = %d, want -1", got)
	}
	if err := s.LinkCurveToBone("grip", "tail"); err == nil {
		t.Error("linking to an unknown bone should fail")
	}
}

func TestSequenceSampleBone(t *testing.T) {
	s := testSkeleton(t)
	seq, err := NewSequence("walk", s, 2, WithChannels(AnimationChannel{
		BoneIndex: 1,
		PositionKeys: []VectorKeyframe{
			{Time: 0, Value: mgl32.Vec3{0, 0, 0}},
			{Time: 2, Value: mgl32.Vec3{2, 0, 0}},
		},
	}))
	if err != nil {
		t.Fatalf("NewSequence() error = %v", err)
	}
	got := seq.SampleBone(1, 0.5, IdentityTransform())
	if got.Translation.Sub(mgl32.Vec3{0.5, 0, 0}).Len() > 1e-5 {
		t.Errorf("SampleBone(0.5).Translation = %v, want [0.5 0 0]", got.Translation)
	}
	ref := IdentityTransform()
	ref.Translation = mgl32.Vec3{9, 9, 9}
	if got := seq.SampleBone(2, 1, ref); got.Translation != ref.Translation {
		t.Errorf("unanimated bone should keep ref pose, got %v", got.Translation)
	}
}

func TestSequenceRejectsOutOfRangeChannel(t *testing.T) {
	s := testSkeleton(t)
	if _, err := NewSequence("bad", s, 1, WithChannels(AnimationChannel{BoneIndex: 42})); err == nil {
		t.Error("NewSequence() should reject a channel outside the skeleton")
	}
	if _, err := NewSequence("nil", nil, 1); !errors.Is(err, ErrNilSkeleton) {
		t.Errorf("NewSequence(nil skeleton) error = %v, want ErrNilSkeleton", err)
	}
}

func TestSequenceNotifiesInRange(t *testing.T) {
	s := testSkeleton(t)
	seq, _ := NewSequence("run", s, 1, WithNotify("footL", 0.25, 0), WithNotify("footR", 0.75, 0))

	tests := []struct {
		name    string
		prev    float32
		delta   float32
		looping bool
		want    []string
	}{
		{"forward", 0, 0.5, false, []string{"footL"}},
		{"wrap", 0.7, 0.6, true, []string{"footR", "footL"}},
		{"clamped", 0.7, 0.6, false, []string{"footR"}},
		{"reverse", 0.8, -0.6, false, []string{"footR", "footL"}},
		{"none", 0.3, 0.1, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := seq.NotifiesInRange(tt.prev, tt.delta, tt.looping, nil)
			if len(got) != len(tt.want) {
				t.Fatalf("NotifiesInRange() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].Name != tt.want[i] {
					t.Errorf("notify %d = %q, want %q", i, got[i].Name, tt.want[i])
				}
			}
		})
	}
}

func TestSequenceExtractRootMotionLoops(t *testing.T) {
	s := testSkeleton(t)
	seq, _ := NewSequence("walk", s, 1, WithRootMotion(true), WithChannels(AnimationChannel{
		BoneIndex: 0,
		PositionKeys: []VectorKeyframe{
			{Time: 0, Value: mgl32.Vec3{0, 0, 0}},
			{Time: 1, Value: mgl32.Vec3{0, 0, 1}},
		},
	}))
	got := seq.ExtractRootMotion(0.5, 1, true)
	if got.Translation.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-4 {
		t.Errorf("looping root motion over one cycle = %v, want [0 0 1]", got.Translation)
	}
	got = seq.ExtractRootMotion(0.5, 1, false)
	if got.Translation.Sub(mgl32.Vec3{0, 0, 0.5}).Len() > 1e-4 {
		t.Errorf("clamped root motion = %v, want [0 0 0.5]", got.Translation)
	}
}

func TestBlendSettingsAlpha(t *testing.T) {
	b := BlendSettings{Time: 0.5}
	if got := b.Alpha(0.25); got != 0.5 {
		t.Errorf("linear Alpha(0.25) = %v, want 0.5", got)
	}
	if got := b.Alpha(0.5); got != 1 {
		t.Errorf("Alpha(D) = %v, want exactly 1", got)
	}
	if got := (BlendSettings{}).Alpha(0); got != 1 {
		t.Errorf("zero-time blend Alpha = %v, want 1", got)
	}
	eased := BlendSettings{Time: 1, Easing: ease.InQuad}
	var prev float32
	for i := 0; i <= 10; i++ {
		a := eased.Alpha(float32(i) / 10)
		if a < prev {
			t.Fatalf("InQuad alpha decreased at step %d: %v < %v", i, a, prev)
		}
		prev = a
	}
}

func TestAlphaBlend(t *testing.T) {
	b := NewAlphaBlend(BlendSettings{Time: 1}, 0, 1)
	if v, done := b.Update(0.5); done || v != 0.5 {
		t.Errorf("Update(0.5) = (%v, %v), want (0.5, false)", v, done)
	}
	if v, done := b.Update(0.75); !done || v != 1 {
		t.Errorf("Update past end = (%v, %v), want (1, true)", v, done)
	}
	if b.Remaining() != 0 || b.Alpha() != 1 {
		t.Errorf("finished blend Remaining=%v Alpha=%v", b.Remaining(), b.Alpha())
	}

	instant := NewAlphaBlend(BlendSettings{}, 0.3, 0)
	if !instant.IsComplete() || instant.Value() != 0 {
		t.Errorf("zero-time blend = %v complete=%v, want 0 complete", instant.Value(), instant.IsComplete())
	}

	out := NewAlphaBlend(BlendSettings{Time: 0.5}, 1, 0)
	if v, _ := out.Update(0.25); v != 0.5 {
		t.Errorf("blend-out halfway = %v, want 0.5", v)
	}
}

func TestScaledBoneAlpha(t *testing.T) {
	if got := ScaledBoneAlpha(1, 0.5); got != 1 {
		t.Errorf("ScaledBoneAlpha(1, 0.5) = %v, want 1", got)
	}
	if fast, slow := ScaledBoneAlpha(0.5, 2), ScaledBoneAlpha(0.5, 0.5); fast <= slow {
		t.Errorf("larger scale should blend faster: %v <= %v", fast, slow)
	}
}

func TestBlendSpaceWeights1D(t *testing.T) {
	s := testSkeleton(t)
	idle, _ := NewSequence("idle", s, 1)
	walk, _ := NewSequence("walk", s, 1)
	run, _ := NewSequence("run", s, 1)
	bs, err := NewBlendSpace("locomotion", s,
		[]BlendParameter{{Name: "speed", Min: 0, Max: 200, GridDivisions: 2}},
		[]BlendSample{
			{Animation: idle, Value: mgl32.Vec3{0}},
			{Animation: walk, Value: mgl32.Vec3{100}},
			{Animation: run, Value: mgl32.Vec3{200}},
		})
	if err != nil {
		t.Fatalf("NewBlendSpace() error = %v", err)
	}
	grid := bs.BuildGrid()
	weights := bs.SampleWeights(grid, mgl32.Vec3{150}, nil)
	if len(weights) != 2 {
		t.Fatalf("SampleWeights(150) returned %d samples, want 2", len(weights))
	}
	var total float32
	for _, w := range weights {
		total += w.Weight
		if w.SampleIndex == 0 {
			t.Errorf("idle should not contribute at speed 150")
		}
	}
	if total < 0.9999 || total > 1.0001 {
		t.Errorf("weights sum to %v, want 1", total)
	}
}

func TestMontageSections(t *testing.T) {
	s := testSkeleton(t)
	seq, _ := NewSequence("attack", s, 2)
	m, err := NewMontage("combo", s,
		[]SlotTrack{{SlotName: "Upper", Segments: []MontageSegment{{Animation: seq, AnimEndTime: 2}}}},
		WithSection("Start", 0, "End"), WithSection("End", 1, ""))
	if err != nil {
		t.Fatalf("NewMontage() error = %v", err)
	}
	if m.Length() != 2 {
		t.Errorf("Length() = %v, want 2", m.Length())
	}
	if got := m.SectionIndexFromPosition(1.5); got != 1 {
		t.Errorf("SectionIndexFromPosition(1.5) = %d, want 1", got)
	}
	if got := m.NextSectionIndex(0); got != 1 {
		t.Errorf("NextSectionIndex(0) = %d, want 1", got)
	}
	if start, end := m.SectionStartAndEnd(0); start != 0 || end != 1 {
		t.Errorf("SectionStartAndEnd(0) = (%v, %v), want (0, 1)", start, end)
	}
	if !m.IsValidSlot("Upper") || m.IsValidSlot("Lower") {
		t.Error("IsValidSlot mismatch")
	}
	if _, err := NewMontage("empty", s, nil); !errors.Is(err, ErrInvalidMontage) {
		t.Errorf("NewMontage(no tracks) error = %v, want ErrInvalidMontage", err)
	}
}

func TestMontageSegmentAnimTimeLoops(t *testing.T) {
	seg := MontageSegment{StartPos: 1, AnimStartTime: 0, AnimEndTime: 1, LoopCount: 2}
	if got := seg.Length(); got != 2 {
		t.Fatalf("Length() = %v, want 2", got)
	}
	if got := seg.AnimTime(2.5); got < 0.4999 || got > 0.5001 {
		t.Errorf("AnimTime(2.5) = %v, want 0.5", got)
	}
}

func TestModelAddAndLookup(t *testing.T) {
	s := testSkeleton(t)
	walk, _ := NewSequence("walk", s, 1)
	run, _ := NewSequence("run", s, 0.8)
	wave, _ := NewMontage("wave", s, []SlotTrack{{SlotName: "Upper", Segments: []MontageSegment{{Animation: walk, AnimEndTime: 1}}}})

	m, err := NewModel(s, WithSequences(walk, run), WithAssets(wave))
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	if m.Name() != "test" {
		t.Errorf("Name() = %q, want the skeleton name", m.Name())
	}
	if m.Sequence("run") != run || m.Montage("wave") != wave {
		t.Error("lookup by name returned the wrong asset")
	}
	if m.Sequence("wave") != nil || m.Montage("walk") != nil || m.BlendSpace("walk") != nil {
		t.Error("lookup of the wrong kind should return nil")
	}
	if m.AnimationCount() != 2 {
		t.Errorf("AnimationCount() = %d, want 2", m.AnimationCount())
	}
	if names := m.AnimationNames(); len(names) != 2 || names[0] != "walk" || names[1] != "run" {
		t.Errorf("AnimationNames() = %v, want [walk run]", names)
	}
	if got := m.GetAnimationIndex("run"); got != 1 {
		t.Errorf("GetAnimationIndex(run) = %d, want 1", got)
	}
	if got := m.GetAnimationIndex("wave"); got != -1 {
		t.Errorf("GetAnimationIndex(wave) = %d, want -1", got)
	}
}

func TestModelAddAssetErrors(t *testing.T) {
	s := testSkeleton(t)
	other, _ := NewSkeleton("other", []Bone{{Name: "x", ParentIndex: -1, LocalTransform: IdentityTransform()}})
	walk, _ := NewSequence("walk", s, 1)
	twin, _ := NewSequence("walk", testSkeleton(t), 2)
	foreign, _ := NewSequence("fly", other, 1)

	m, err := NewModel(s, WithName("hero"), WithSequences(walk))
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	tests := []struct {
		name  string
		asset Asset
		want  error
	}{
		{name: "duplicate name", asset: twin, want: ErrDuplicateAsset},
		{name: "incompatible skeleton", asset: foreign, want: ErrIncompatibleSkeleton},
		{name: "nil", asset: nil, want: ErrUnknownAsset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.AddAsset(tt.asset); !errors.Is(err, tt.want) {
				t.Errorf("AddAsset() error = %v, want %v", err, tt.want)
			}
		})
	}
	if m.AnimationCount() != 1 {
		t.Errorf("AnimationCount() = %d after rejected adds, want 1", m.AnimationCount())
	}
	if _, err := NewModel(nil); !errors.Is(err, ErrNilSkeleton) {
		t.Errorf("NewModel(nil) error = %v, want ErrNilSkeleton", err)
	}
}
