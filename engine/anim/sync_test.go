package anim

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

func footSequence(t *testing.T, sk *model.Skeleton, name string, length float32, markers ...model.SyncMarker) *model.Sequence {
	t.Helper()
	var opts []model.SequenceBuilderOption
	for _, m := range markers {
		opts = append(opts, model.WithSyncMarker(m.Name, m.Time))
	}
	return constantSequence(t, sk, name, length, 0, nil, opts...)
}

// syncClass blends two grouped players with a fixed alpha. The players are link ids 2 and 3.
func syncClass(t *testing.T, a, b *model.Sequence, alpha float32, roleA, roleB GroupRole) *Class {
	t.Helper()
	cb := NewClassBuilder("sync", a.Skeleton)
	root := cb.AddNode(func() Node { return &Root{Result: Link(1)} })
	cb.AddNode(func() Node { return &TwoWayBlend{A: Link(2), B: Link(3), Alpha: alpha} })
	cb.AddNode(func() Node {
		n := NewSequencePlayer(a, true)
		n.GroupName, n.GroupRole = "feet", roleA
		return n
	})
	cb.AddNode(func() Node {
		n := NewSequencePlayer(b, true)
		n.GroupName, n.GroupRole = "feet", roleB
		return n
	})
	cb.AddSyncGroup("feet")
	cb.SetRoot(root)
	return buildClass(t, cb)
}

func TestMarkerSyncFollowersAgreeWithLeader(t *testing.T) {
	sk := testSkeleton(t)
	walk := footSequence(t, sk, "walk", 1, model.SyncMarker{Name: "L", Time: 0}, model.SyncMarker{Name: "R", Time: 0.5})
	run := footSequence(t, sk, "run", 2, model.SyncMarker{Name: "L", Time: 0}, model.SyncMarker{Name: "R", Time: 1})
	p := newProxy(t, syncClass(t, walk, run, 0.3, CanBeLeader, CanBeLeader))
	leader := mustNode[*SequencePlayer](t, p, 2)
	follower := mustNode[*SequencePlayer](t, p, 3)

	tests := []struct {
		leaderTime   float32
		followerTime float32
		prev, next   string
	}{
		{leaderTime: 0.3, followerTime: 0.6, prev: "L", next: "R"},
		{leaderTime: 0.6, followerTime: 1.2, prev: "R", next: "L"},
		{leaderTime: 0.9, followerTime: 1.8, prev: "R", next: "L"},
		{leaderTime: 0.2, followerTime: 0.4, prev: "L", next: "R"},
	}
	for i, tt := range tests {
		runFrame(p, 0.3)
		if !approx(leader.InternalTime, tt.leaderTime) || !approx(follower.InternalTime, tt.followerTime) {
			t.Errorf("frame %d: times = %v, %v, want %v, %v", i, leader.InternalTime, follower.InternalTime, tt.leaderTime, tt.followerTime)
		}
		lt, ft := leader.MarkerTick(), follower.MarkerTick()
		if lt.PrevMarker.Name != tt.prev || lt.NextMarker.Name != tt.next {
			t.Errorf("frame %d: leader markers = %s/%s, want %s/%s", i, lt.PrevMarker.Name, lt.NextMarker.Name, tt.prev, tt.next)
		}
		if ft.PrevMarker.Name != lt.PrevMarker.Name || ft.NextMarker.Name != lt.NextMarker.Name {
			t.Errorf("frame %d: follower markers %s/%s disagree with leader %s/%s", i, ft.PrevMarker.Name, ft.NextMarker.Name, lt.PrevMarker.Name, lt.NextMarker.Name)
		}

		g := p.SyncGroup("feet")
		if g == nil || g.GroupLeaderIndex < 0 {
			t.Fatalf("frame %d: no leader recorded", i)
		}
		if g.ActivePlayers[g.GroupLeaderIndex].Asset != walk {
			t.Errorf("frame %d: leader is %s, want walk", i, g.ActivePlayers[g.GroupLeaderIndex].Asset.AssetName())
		}
		if !g.CanUseMarkerSync() || !g.MarkerSyncPosition.IsValid() {
			t.Errorf("frame %d: group did not sync by marker", i)
		}
	}
}

func TestAlwaysLeaderOverridesWeight(t *testing.T) {
	sk := testSkeleton(t)
	walk := footSequence(t, sk, "walk", 1, model.SyncMarker{Name: "L", Time: 0}, model.SyncMarker{Name: "R", Time: 0.5})
	run := footSequence(t, sk, "run", 2, model.SyncMarker{Name: "L", Time: 0}, model.SyncMarker{Name: "R", Time: 1})
	p := newProxy(t, syncClass(t, walk, run, 0.3, CanBeLeader, AlwaysLeader))

	runFrame(p, 0.3)
	walkTime := mustNode[*SequencePlayer](t, p, 2).InternalTime
	runTime := mustNode[*SequencePlayer](t, p, 3).InternalTime
	if !approx(runTime, 0.3) || !approx(walkTime, 0.15) {
		t.Errorf("times = walk %v run %v, want walk 0.15 run 0.3", walkTime, runTime)
	}
}

func TestSyncGroupFallsBackToNormalizedTime(t *testing.T) {
	sk := testSkeleton(t)
	short := footSequence(t, sk, "short", 1)
	long := footSequence(t, sk, "long", 2)
	p := newProxy(t, syncClass(t, short, long, 0.3, CanBeLeader, CanBeLeader))

	runFrame(p, 0.25)
	if got := mustNode[*SequencePlayer](t, p, 3).InternalTime; !approx(got, 0.5) {
		t.Errorf("follower time = %v, want 0.5", got)
	}
	if g := p.SyncGroup("feet"); g.CanUseMarkerSync() {
		t.Error("group without shared markers reported marker sync")
	}
}

func TestAlwaysFollowerNeverLeads(t *testing.T) {
	sk := testSkeleton(t)
	// vault loses its next marker once past L, so it cannot report a marker position.
	vault := footSequence(t, sk, "vault", 1, model.SyncMarker{Name: "L", Time: 0.1})
	walk := footSequence(t, sk, "walk", 1, model.SyncMarker{Name: "L", Time: 0}, model.SyncMarker{Name: "R", Time: 0.5})

	cb := NewClassBuilder("follower", sk)
	root := cb.AddNode(func() Node { return &Root{Result: Link(1)} })
	cb.AddNode(func() Node { return &TwoWayBlend{A: Link(2), B: Link(3), Alpha: 0.5} })
	cb.AddNode(func() Node {
		n := NewSequencePlayer(vault, false)
		n.GroupName = "feet"
		return n
	})
	cb.AddNode(func() Node {
		n := NewSequencePlayer(walk, true)
		n.GroupName, n.GroupRole = "feet", AlwaysFollower
		return n
	})
	cb.AddSyncGroup("feet")
	cb.SetRoot(root)
	p := newProxy(t, buildClass(t, cb))

	for i := range 3 {
		runFrame(p, 0.3)
		g := p.SyncGroup("feet")
		if g == nil || g.GroupLeaderIndex < 0 {
			t.Fatalf("frame %d: no leader recorded", i)
		}
		if got := g.ActivePlayers[g.GroupLeaderIndex]; got.Asset != vault || got.GroupRole == AlwaysFollower {
			t.Errorf("frame %d: leader = %s, want vault", i, got.Asset.AssetName())
		}
	}
	if got := mustNode[*SequencePlayer](t, p, 2).InternalTime; !approx(got, 0.9) {
		t.Errorf("vault time = %v, want 0.9", got)
	}
}

func TestTimeScaleSlowsTickRecords(t *testing.T) {
	tests := []struct {
		name  string
		group string
		scale float32
		want  float32
	}{
		{name: "ungrouped half speed", scale: 0.5, want: 0.2},
		{name: "grouped half speed", group: "feet", scale: 0.5, want: 0.2},
		{name: "grouped double speed", group: "feet", scale: 2, want: 0.8},
		{name: "negative clamps to paused", scale: -1, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sk := testSkeleton(t)
			seq := footSequence(t, sk, "walk", 2)
			cb := NewClassBuilder("timescale", sk)
			root := cb.AddNode(func() Node { return &Root{Result: Link(1)} })
			cb.AddNode(func() Node { return &TimeScale{Source: Link(2), Scale: tt.scale} })
			cb.AddNode(func() Node {
				n := NewSequencePlayer(seq, true)
				n.GroupName = tt.group
				return n
			})
			if tt.group != "" {
				cb.AddSyncGroup(tt.group)
			}
			cb.SetRoot(root)
			p := newProxy(t, buildClass(t, cb))

			runFrame(p, 0.4)
			if got := mustNode[*SequencePlayer](t, p, 2).InternalTime; !approx(got, tt.want) {
				t.Errorf("InternalTime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssetNotifiesCarryBranchWeight(t *testing.T) {
	sk := testSkeleton(t)
	step := constantSequence(t, sk, "step", 1, 0, nil, model.WithNotify("footstep", 0.4, 0))
	idle := constantSequence(t, sk, "idle", 1, 0, nil)

	cb := NewClassBuilder("notifies", sk)
	root := cb.AddNode(func() Node { return &Root{Result: Link(1)} })
	cb.AddNode(func() Node { return &TwoWayBlend{A: Link(2), B: Link(3), AlphaFunc: FloatProperty("alpha")} })
	cb.AddNode(func() Node { return &SequencePlayer{Sequence: step, PlayRate: 1, Loop: true, StartPosition: 0.8} })
	cb.AddNode(func() Node { return NewSequencePlayer(idle, true) })
	cb.SetRoot(root)
	p := newProxy(t, buildClass(t, cb))

	p.Properties().SetFloat("alpha", 0.5)
	runFrame(p, 0.7)
	got := p.Notifies()
	if len(got) != 1 || got[0].Name != "footstep" || got[0].Asset != "step" || got[0].Source != NotifyFromAsset {
		t.Fatalf("notifies = %+v, want one footstep from step", got)
	}
	if !approx(got[0].Weight, 0.5) {
		t.Errorf("notify weight = %v, want 0.5", got[0].Weight)
	}

	p.Properties().SetFloat("alpha", 1)
	runFrame(p, 1)
	if got := p.Notifies(); len(got) != 0 {
		t.Errorf("notifies from an irrelevant branch = %+v, want none", got)
	}
}

func rootMotionSequence(t *testing.T, sk *model.Skeleton) *model.Sequence {
	t.Helper()
	seq, err := model.NewSequence("dash", sk, 1,
		model.WithChannels(model.AnimationChannel{
			BoneIndex:    boneRoot,
			PositionKeys: []model.VectorKeyframe{{Time: 0, Value: mgl32.Vec3{}}, {Time: 1, Value: mgl32.Vec3{0, 0, 2}}},
		}),
		model.WithRootMotion(true),
	)
	if err != nil {
		t.Fatalf("NewSequence() error = %v", err)
	}
	return seq
}

func rootMotionProxy(t *testing.T, mode RootMotionMode) *Proxy {
	t.Helper()
	sk := testSkeleton(t)
	seq := rootMotionSequence(t, sk)
	cb := NewClassBuilder("rootmotion", sk)
	root := cb.AddNode(func() Node { return &Root{Result: Link(1)} })
	cb.AddNode(func() Node { return NewSequencePlayer(seq, false) })
	cb.SetRoot(root)
	return newProxy(t, buildClass(t, cb), WithRootMotionMode(mode))
}

func TestRootMotionFromEverything(t *testing.T) {
	p := rootMotionProxy(t, RootMotionFromEverything)

	out, _ := runFrame(p, 0.5)
	if got := out.Bones[boneRoot].Translation; got.Len() > 1e-5 {
		t.Errorf("root translation in pose = %v, want locked at the reference", got)
	}
	rm := p.ExtractedRootMotion()
	if !rm.HasRootMotion {
		t.Fatal("no root motion extracted")
	}
	if got := rm.Transform().Translation; got.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-4 {
		t.Errorf("root motion = %v, want (0, 0, 1)", got)
	}

	runFrame(p, 0.5)
	half := p.ConsumeExtractedRootMotion(0.5)
	if half.Translation.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-4 {
		t.Errorf("consumed half = %v, want (0, 0, 1)", half.Translation)
	}
	rest := p.ConsumeExtractedRootMotion(1)
	if rest.Translation.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-4 {
		t.Errorf("consumed rest = %v, want (0, 0, 1)", rest.Translation)
	}
	if p.ExtractedRootMotion().HasRootMotion {
		t.Error("root motion left after consuming everything")
	}
}

func TestNoRootMotionExtractionKeepsMotionInPose(t *testing.T) {
	p := rootMotionProxy(t, NoRootMotionExtraction)
	out, _ := runFrame(p, 0.5)
	if got := out.Bones[boneRoot].Translation; got.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-4 {
		t.Errorf("root translation = %v, want (0, 0, 1)", got)
	}
	if p.ExtractedRootMotion().HasRootMotion {
		t.Error("root motion extracted with extraction disabled")
	}
}
