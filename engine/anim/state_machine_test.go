package anim

import (
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// machineClass builds Root -> StateMachine with one sequence player per sequence. The
// players get link ids 2, 3, ... in order.
func machineClass(t *testing.T, seqs []*model.Sequence, loop bool, node func() *StateMachine, build func(b *StateMachineBuilder, players []int)) *Class {
	t.Helper()
	b := NewClassBuilder("machine", seqs[0].Skeleton)
	root := b.AddNode(func() Node { return &Root{Result: Link(1)} })
	b.AddNode(func() Node { return node() })
	players := make([]int, len(seqs))
	for i, s := range seqs {
		players[i] = b.AddNode(func() Node { return NewSequencePlayer(s, loop) })
	}
	mb := NewStateMachineBuilder("Locomotion")
	build(mb, players)
	b.AddStateMachine(mb.Build())
	b.SetRoot(root)
	return buildClass(t, b)
}

func stateSequences(t *testing.T, sk *model.Skeleton, angles ...float32) []*model.Sequence {
	t.Helper()
	seqs := make([]*model.Sequence, len(angles))
	for i, a := range angles {
		seqs[i] = constantSequence(t, sk, string(rune('a'+i)), 1, a, allBones())
	}
	return seqs
}

func always(*Proxy, *StateMachine) bool { return true }

func crossfade(d float32) TransitionBuilderOption {
	return WithCrossfade(model.BlendSettings{Time: d})
}

func TestStateMachineSkipFirstUpdateTransition(t *testing.T) {
	sk := testSkeleton(t)
	var a, bState int
	c := machineClass(t, stateSequences(t, sk, 0, 1), true,
		func() *StateMachine { return &StateMachine{SkipFirstUpdateTransition: true} },
		func(b *StateMachineBuilder, players []int) {
			a = b.AddState("A", players[0], WithStateNotifies("A_Start", "A_End", "A_Full"))
			bState = b.AddState("B", players[1], WithStateNotifies("B_Start", "B_End", "B_Full"))
			b.AddTransition(a, bState, always, crossfade(0.5))
		})
	p := newProxy(t, c)
	m := p.StateMachineInstance(0)

	runFrame(p, 0.1)
	if got := m.CurrentStateName(); got != "A" {
		t.Fatalf("state after first update = %q, want A", got)
	}
	if got := notifyNames(p); !slices.Equal(got, []string{"A_Start"}) {
		t.Errorf("first update notifies = %v, want [A_Start]", got)
	}
	if len(m.ActiveTransitions()) != 0 {
		t.Errorf("first update left %d active transitions", len(m.ActiveTransitions()))
	}

	out, _ := runFrame(p, 0.25)
	if got := m.CurrentStateName(); got != "B" {
		t.Fatalf("state after second update = %q, want B", got)
	}
	if wa, wb := m.StateWeight(a), m.StateWeight(bState); !approx(wa, 0.5) || !approx(wb, 0.5) {
		t.Errorf("weights = %v, %v, want 0.5, 0.5", wa, wb)
	}
	if got := notifyNames(p); !slices.Equal(got, []string{"A_End", "B_Start"}) {
		t.Errorf("second update notifies = %v, want [A_End B_Start]", got)
	}
	if got := angleOf(out.Bones[boneArm].Rotation); !approx(got, 0.5) {
		t.Errorf("arm angle halfway through the crossfade = %v, want 0.5", got)
	}
}

func TestStateMachineFirstUpdateTransitionCrossfades(t *testing.T) {
	sk := testSkeleton(t)
	var a, bState int
	c := machineClass(t, stateSequences(t, sk, 0, 1), true,
		func() *StateMachine { return &StateMachine{} },
		func(b *StateMachineBuilder, players []int) {
			a = b.AddState("A", players[0], WithStateNotifies("A_Start", "A_End", "A_Full"))
			bState = b.AddState("B", players[1], WithStateNotifies("B_Start", "B_End", "B_Full"))
			b.AddTransition(a, bState, always, crossfade(0.5))
		})
	p := newProxy(t, c)
	m := p.StateMachineInstance(0)

	runFrame(p, 0.1)
	if got := m.CurrentStateName(); got != "B" {
		t.Fatalf("state after first update = %q, want B", got)
	}
	if got := notifyNames(p); !slices.Equal(got, []string{"A_End", "B_Start"}) {
		t.Errorf("first update notifies = %v, want [A_End B_Start]", got)
	}
	if len(m.ActiveTransitions()) != 1 {
		t.Fatalf("first update has %d active transitions, want 1", len(m.ActiveTransitions()))
	}
	if wa, wb := m.StateWeight(a), m.StateWeight(bState); !approx(wa, 0.8) || !approx(wb, 0.2) {
		t.Errorf("weights = %v, %v, want 0.8, 0.2", wa, wb)
	}
}

func TestStateMachineSkippedTransitionRunsNoCallbacks(t *testing.T) {
	sk := testSkeleton(t)
	c := machineClass(t, stateSequences(t, sk, 0, 1), true,
		func() *StateMachine { return &StateMachine{SkipFirstUpdateTransition: true} },
		func(b *StateMachineBuilder, players []int) {
			a := b.AddState("A", players[0])
			bState := b.AddState("B", players[1])
			b.AddTransition(a, bState, always, crossfade(0.5))
		})
	p, err := NewProxy(c)
	if err != nil {
		t.Fatalf("NewProxy() error = %v", err)
	}
	var calls []string
	for _, name := range []string{"A", "B"} {
		p.OnStateEntry("Locomotion", name, func(*Proxy, int, int, int) { calls = append(calls, "enter "+name) })
		p.OnStateExit("Locomotion", name, func(*Proxy, int, int, int) { calls = append(calls, "exit "+name) })
	}
	p.Initialize()

	runFrame(p, 0.1)
	if got := p.CurrentStateName(0); got != "A" {
		t.Fatalf("state after first update = %q, want A", got)
	}
	if !slices.Equal(calls, []string{"enter A"}) {
		t.Errorf("callbacks after first update = %v, want [enter A]", calls)
	}

	runFrame(p, 0.1)
	if !slices.Equal(calls, []string{"enter A", "exit A", "enter B"}) {
		t.Errorf("callbacks after second update = %v, want [enter A exit A enter B]", calls)
	}
}

func TestStateMachineBlendProfileLeadsProfiledBones(t *testing.T) {
	sk := testSkeleton(t)
	profile := &model.BlendProfile{Name: "arm_first", Skeleton: sk, Entries: []model.BlendProfileEntry{{BoneName: "arm", Scale: 3}}}
	c := machineClass(t, stateSequences(t, sk, 0, 1), true,
		func() *StateMachine { return &StateMachine{} },
		func(b *StateMachineBuilder, players []int) {
			a := b.AddState("A", players[0])
			bState := b.AddState("B", players[1])
			b.AddTransition(a, bState, PropertyRule("go"), crossfade(0.5), WithBlendProfile(profile))
		})
	p := newProxy(t, c)

	runFrame(p, 0.1)
	p.Properties().SetBool("go", true)
	out, _ := runFrame(p, 0.25)

	arm, hand, spine := angleOf(out.Bones[boneArm].Rotation), angleOf(out.Bones[boneHand].Rotation), angleOf(out.Bones[boneSpine].Rotation)
	if !approx(spine, 0.5) {
		t.Errorf("spine angle halfway = %v, want 0.5", spine)
	}
	if arm <= spine+0.1 || arm >= 1 {
		t.Errorf("arm angle halfway = %v, want ahead of the spine (%v) and short of 1", arm, spine)
	}
	if !approx(hand, arm) {
		t.Errorf("hand angle = %v, want the arm's %v", hand, arm)
	}
	if !out.IsNormalized(1e-3) {
		t.Error("profiled crossfade output is not normalized")
	}

	out, _ = runFrame(p, 0.25)
	for _, b := range allBones() {
		if got := angleOf(out.Bones[b].Rotation); !approx(got, 1) {
			t.Errorf("bone %d angle after the crossfade = %v, want 1", b, got)
		}
	}
}

func TestStateMachineAlphaIsMonotonic(t *testing.T) {
	sk := testSkeleton(t)
	var a, bState, tr int
	c := machineClass(t, stateSequences(t, sk, 0, 1), true,
		func() *StateMachine { return &StateMachine{} },
		func(b *StateMachineBuilder, players []int) {
			a = b.AddState("A", players[0])
			bState = b.AddState("B", players[1], WithStateNotifies("", "", "B_Full"))
			tr = b.AddTransition(a, bState, PropertyRule("go"), crossfade(0.5), WithTransitionNotifies("fade_start", "fade_end", "fade_interrupt"))
		})
	p := newProxy(t, c)
	m := p.StateMachineInstance(0)

	runFrame(p, 0.125)
	p.Properties().SetBool("go", true)

	var last float32 = -1
	want := []float32{0.25, 0.5, 0.75}
	for i, w := range want {
		runFrame(p, 0.125)
		active := m.ActiveTransitions()
		if len(active) != 1 {
			t.Fatalf("frame %d: %d active transitions, want 1", i, len(active))
		}
		alpha := active[0].Alpha
		if alpha < last {
			t.Errorf("frame %d: alpha decreased from %v to %v", i, last, alpha)
		}
		if !approx(alpha, w) {
			t.Errorf("frame %d: alpha = %v, want %v", i, alpha, w)
		}
		last = alpha
	}

	if got := p.InstanceTransitionCrossfadeDuration(0, tr); !approx(got, 0.5) {
		t.Errorf("crossfade duration = %v, want 0.5", got)
	}
	if got := p.InstanceTransitionTimeElapsed(0, tr); !approx(got, 0.375) {
		t.Errorf("elapsed = %v, want 0.375", got)
	}
	if got := p.InstanceTransitionTimeElapsedFraction(0, tr); !approx(got, 0.75) {
		t.Errorf("elapsed fraction = %v, want 0.75", got)
	}
	if got := p.InstanceTransitionTimeRemaining(0, tr); !approx(got, 0.125) {
		t.Errorf("remaining = %v, want 0.125", got)
	}

	runFrame(p, 0.125)
	if len(m.ActiveTransitions()) != 0 {
		t.Fatalf("transition still active at its full duration")
	}
	if got := m.StateWeight(bState); got != 1 {
		t.Errorf("B weight after the crossfade = %v, want 1", got)
	}
	if got := p.RecordedStateWeight(0, bState); got != 1 {
		t.Errorf("recorded B weight = %v, want 1", got)
	}
	names := notifyNames(p)
	if !slices.Contains(names, "fade_end") || !slices.Contains(names, "B_Full") {
		t.Errorf("notifies at crossfade end = %v, want fade_end and B_Full", names)
	}
}

func TestStateMachineWeightsSumToOne(t *testing.T) {
	sk := testSkeleton(t)
	states := make([]int, 3)
	c := machineClass(t, stateSequences(t, sk, 0, 1, 2), true,
		func() *StateMachine { return &StateMachine{} },
		func(b *StateMachineBuilder, players []int) {
			states[0] = b.AddState("A", players[0])
			states[1] = b.AddState("B", players[1])
			states[2] = b.AddState("C", players[2])
			b.AddTransition(states[0], states[1], PropertyRule("toB"), crossfade(0.5), WithTransitionNotifies("", "", "ab_interrupted"))
			b.AddTransition(states[1], states[2], PropertyRule("toC"), crossfade(0.5))
			b.AddTransition(states[2], states[0], PropertyRule("toA"), crossfade(0.5))
		})
	p := newProxy(t, c, WithDebugChecks(true))
	m := p.StateMachineInstance(0)
	props := p.Properties()

	steps := []string{"", "toB", "toC", "toA", "", "", "", "", "", ""}
	for i, prop := range steps {
		props.SetBool("toB", false)
		props.SetBool("toC", false)
		props.SetBool("toA", false)
		if prop != "" {
			props.SetBool(prop, true)
		}
		out, _ := runFrame(p, 0.125)

		var sum, recorded float32
		for _, s := range states {
			sum += m.StateWeight(s)
			recorded += p.RecordedStateWeight(0, s)
		}
		if !approx(sum, 1) {
			t.Errorf("step %d: state weights sum to %v, want 1", i, sum)
		}
		if !approx(recorded, 1) {
			t.Errorf("step %d: recorded weights sum to %v, want 1", i, recorded)
		}
		if out.ContainsNaN() || !out.IsNormalized(1e-3) {
			t.Errorf("step %d: output pose is not normalized", i)
		}
		if prop == "toC" && !slices.Contains(notifyNames(p), "ab_interrupted") {
			t.Errorf("step %d: interrupting A->B did not fire its interrupt notify: %v", i, notifyNames(p))
		}
	}
	if got := m.CurrentStateName(); got != "A" {
		t.Errorf("final state = %q, want A", got)
	}
	if len(m.ActiveTransitions()) != 0 {
		t.Errorf("%d transitions still active", len(m.ActiveTransitions()))
	}
}

func TestStateMachineRulePriority(t *testing.T) {
	sk := testSkeleton(t)
	never := func(*Proxy, *StateMachine) bool { return false }
	c := machineClass(t, stateSequences(t, sk, 0, 1, 2, 3), true,
		func() *StateMachine { return &StateMachine{} },
		func(b *StateMachineBuilder, players []int) {
			a := b.AddState("A", players[0])
			bState := b.AddState("B", players[1])
			cState := b.AddState("C", players[2])
			d := b.AddState("D", players[3])
			b.AddTransition(a, bState, never)
			b.AddTransition(a, cState, always)
			b.AddTransition(a, d, always)
		})
	p := newProxy(t, c)
	runFrame(p, 0.1)
	if got := p.CurrentStateName(0); got != "C" {
		t.Errorf("state = %q, want C, the first passing rule", got)
	}
}

func TestStateMachineDesiredResult(t *testing.T) {
	sk := testSkeleton(t)
	c := machineClass(t, stateSequences(t, sk, 0, 1), true,
		func() *StateMachine { return &StateMachine{} },
		func(b *StateMachineBuilder, players []int) {
			a := b.AddState("A", players[0])
			bState := b.AddState("B", players[1])
			b.AddTransition(a, bState, PropertyRule("grounded"), WithDesiredResult(false))
		})
	p := newProxy(t, c)
	p.Properties().SetBool("grounded", true)
	runFrame(p, 0.1)
	if got := p.CurrentStateName(0); got != "A" {
		t.Fatalf("state while grounded = %q, want A", got)
	}
	p.Properties().SetBool("grounded", false)
	runFrame(p, 0.1)
	if got := p.CurrentStateName(0); got != "B" {
		t.Errorf("state after leaving the ground = %q, want B", got)
	}
}

func TestStateMachineConduit(t *testing.T) {
	sk := testSkeleton(t)
	var toConduit, conduitToC int
	build := func(b *StateMachineBuilder, players []int) {
		a := b.AddState("A", players[0])
		bState := b.AddState("B", players[1])
		cState := b.AddState("C", players[2])
		conduit := b.AddConduit("Gate", PropertyRule("open"))
		toConduit = b.AddTransition(a, conduit, PropertyRule("go"), crossfade(0.5))
		b.AddTransition(a, bState, PropertyRule("go"), crossfade(0.5))
		conduitToC = b.AddTransition(conduit, cState, always, crossfade(0.5))
	}

	tests := []struct {
		name string
		open bool
		want string
	}{
		{name: "open gate", open: true, want: "C"},
		{name: "closed gate falls through", open: false, want: "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := machineClass(t, stateSequences(t, sk, 0, 1, 2), true, func() *StateMachine { return &StateMachine{} }, build)
			p := newProxy(t, c)
			runFrame(p, 0.1)
			p.Properties().SetBool("open", tt.open)
			p.Properties().SetBool("go", true)
			runFrame(p, 0.1)

			m := p.StateMachineInstance(0)
			if got := m.CurrentStateName(); got != tt.want {
				t.Fatalf("state = %q, want %q", got, tt.want)
			}
			active := m.ActiveTransitions()
			if len(active) != 1 {
				t.Fatalf("%d active transitions, want 1", len(active))
			}
			if tt.open {
				if got := active[0].SourceTransitionIndices; !slices.Equal(got, []int{toConduit, conduitToC}) {
					t.Errorf("source transitions = %v, want [%d %d]", got, toConduit, conduitToC)
				}
				if !approx(p.InstanceTransitionTimeElapsed(0, conduitToC), 0.1) {
					t.Errorf("conduit leg elapsed = %v, want 0.1", p.InstanceTransitionTimeElapsed(0, conduitToC))
				}
			}
		})
	}
}

func TestStateMachineAutomaticRule(t *testing.T) {
	sk := testSkeleton(t)
	var a int
	c := machineClass(t, stateSequences(t, sk, 0, 1), false,
		func() *StateMachine { return &StateMachine{} },
		func(b *StateMachineBuilder, players []int) {
			a = b.AddState("A", players[0], WithPlayerNodes(players[0]))
			bState := b.AddState("B", players[1], WithPlayerNodes(players[1]))
			b.AddTransition(a, bState, nil, crossfade(0.25), WithAutomaticRemainingTime())
		})
	p := newProxy(t, c)

	runFrame(p, 0.5)
	runFrame(p, 0.25)
	if got := p.CurrentStateName(0); got != "A" {
		t.Fatalf("state with 0.5s left = %q, want A", got)
	}
	if got := p.InstanceRelevantAnimTimeRemaining(0, a); !approx(got, 0.25) {
		t.Errorf("relevant time remaining = %v, want 0.25", got)
	}
	if got := p.InstanceRelevantAnimTimeRemainingFraction(0, a); !approx(got, 0.25) {
		t.Errorf("relevant time remaining fraction = %v, want 0.25", got)
	}
	runFrame(p, 0.25)
	if got := p.CurrentStateName(0); got != "B" {
		t.Errorf("state once within the crossfade of the end = %q, want B", got)
	}
}

func TestStateMachineNativeBindingAndCallbacks(t *testing.T) {
	sk := testSkeleton(t)
	c := machineClass(t, stateSequences(t, sk, 0, 1), true,
		func() *StateMachine { return &StateMachine{} },
		func(b *StateMachineBuilder, players []int) {
			a := b.AddState("A", players[0])
			bState := b.AddState("B", players[1])
			b.AddTransition(a, bState, always)
		})

	p, err := NewProxy(c, WithNativeTransition("Locomotion", "A", "B", PropertyRule("native")))
	if err != nil {
		t.Fatalf("NewProxy() error = %v", err)
	}
	var entered, exited []int
	p.OnStateEntry("Locomotion", "B", func(_ *Proxy, _, prev, next int) { entered = append(entered, prev, next) })
	p.OnStateExit("Locomotion", "A", func(_ *Proxy, _, prev, next int) { exited = append(exited, prev, next) })
	p.Initialize()

	runFrame(p, 0.1)
	if got := p.CurrentStateName(0); got != "A" {
		t.Fatalf("native binding should override the authored rule, state = %q", got)
	}
	p.Properties().SetBool("native", true)
	runFrame(p, 0.1)
	if got := p.CurrentStateName(0); got != "B" {
		t.Fatalf("state = %q, want B", got)
	}
	if !slices.Equal(entered, []int{0, 1}) || !slices.Equal(exited, []int{0, 1}) {
		t.Errorf("callbacks entered %v exited %v, want [0 1] each", entered, exited)
	}
	if got := p.StateMachineIndex("Locomotion"); got != 0 {
		t.Errorf("StateMachineIndex = %d, want 0", got)
	}
	if got := p.StateMachineIndex("missing"); got != -1 {
		t.Errorf("StateMachineIndex(missing) = %d, want -1", got)
	}
}

func TestStateMachineMaxTransitionsPerFrame(t *testing.T) {
	sk := testSkeleton(t)
	c := machineClass(t, stateSequences(t, sk, 0, 1, 2, 3), true,
		func() *StateMachine { return &StateMachine{MaxTransitionsPerFrame: 2} },
		func(b *StateMachineBuilder, players []int) {
			s0 := b.AddState("S0", players[0])
			s1 := b.AddState("S1", players[1])
			s2 := b.AddState("S2", players[2])
			s3 := b.AddState("S3", players[3])
			b.AddTransition(s0, s1, PropertyRule("go"))
			b.AddTransition(s1, s2, PropertyRule("go"))
			b.AddTransition(s2, s3, PropertyRule("go"))
		})
	p := newProxy(t, c)
	runFrame(p, 0.1)
	p.Properties().SetBool("go", true)
	runFrame(p, 0.1)
	if got := p.CurrentStateName(0); got != "S2" {
		t.Errorf("state after one frame = %q, want S2", got)
	}
}

func TestStateMachineMissingDescriptionOutputsRefPose(t *testing.T) {
	sk := testSkeleton(t)
	b := NewClassBuilder("broken", sk)
	root := b.AddNode(func() Node { return &Root{Result: Link(1)} })
	b.AddNode(func() Node { return &StateMachine{MachineIndex: 4} })
	b.SetRoot(root)
	p := newProxy(t, buildClass(t, b), WithDebugChecks(true))

	out, _ := runFrame(p, 0.1)
	for i, bone := range out.Bones {
		if !bone.Equals(model.IdentityTransform(), 1e-5) {
			t.Errorf("bone %d = %+v, want reference pose", i, bone)
		}
	}
	if got := p.CurrentStateName(4); got != "" {
		t.Errorf("CurrentStateName = %q, want empty", got)
	}
}

func TestStateMachineCustomTransition(t *testing.T) {
	sk := testSkeleton(t)
	seqs := stateSequences(t, sk, 0, 1)
	b := NewClassBuilder("custom", sk)
	root := b.AddNode(func() Node { return &Root{Result: Link(1)} })
	b.AddNode(func() Node { return &StateMachine{} })
	pa := b.AddNode(func() Node { return NewSequencePlayer(seqs[0], true) })
	pb := b.AddNode(func() Node { return NewSequencePlayer(seqs[1], true) })
	blend := b.AddNode(func() Node { return &TwoWayBlend{A: Link(5), B: Link(6), Alpha: 0.5} })
	src := b.AddNode(func() Node { return &TransitionPoseEvaluator{Role: EvaluateSourcePose} })
	dst := b.AddNode(func() Node { return &TransitionPoseEvaluator{Role: EvaluateDestinationPose} })

	mb := NewStateMachineBuilder("Locomotion")
	a := mb.AddState("A", pa)
	bState := mb.AddState("B", pb)
	mb.AddTransition(a, bState, PropertyRule("go"), crossfade(1), WithCustomBlend(blend, src, dst))
	b.AddStateMachine(mb.Build())
	b.SetRoot(root)
	p := newProxy(t, buildClass(t, b))

	runFrame(p, 0.1)
	p.Properties().SetBool("go", true)
	out, _ := runFrame(p, 0.1)
	if got := angleOf(out.Bones[boneArm].Rotation); !approx(got, 0.5) {
		t.Errorf("arm angle under the custom blend = %v, want 0.5", got)
	}
}
