package anim

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// StateMachineBuilder assembles a BakedStateMachine. The first state added is the initial
// state unless SetInitialState says otherwise.
type StateMachineBuilder struct {
	m *BakedStateMachine
}

// StateBuilderOption is a functional option for configuring a BakedState.
type StateBuilderOption func(s *BakedState)

// TransitionBuilderOption is a functional option for configuring a transition and its rule.
type TransitionBuilderOption func(t *BakedTransition, r *BakedTransitionRule)

// NewStateMachineBuilder starts a machine with the given name.
//
// Parameters:
//   - name: the machine name used by native bindings and notifies
//
// Returns:
//   - *StateMachineBuilder: the builder
func NewStateMachineBuilder(name string) *StateMachineBuilder {
	return &StateMachineBuilder{m: &BakedStateMachine{Name: name}}
}

// AddState adds a content state whose pose comes from the node with rootLinkID.
//
// Parameters:
//   - name: the state name
//   - rootLinkID: the link id of the state's pose graph root
//   - options: state options
//
// Returns:
//   - int: the state index
func (b *StateMachineBuilder) AddState(name string, rootLinkID int, options ...StateBuilderOption) int {
	s := BakedState{Name: name, StateRootLinkID: rootLinkID}
	for _, opt := range options {
		opt(&s)
	}
	b.m.States = append(b.m.States, s)
	return len(b.m.States) - 1
}

// AddConduit adds a pass-through state gated by entryRule.
func (b *StateMachineBuilder) AddConduit(name string, entryRule TransitionRule) int {
	b.m.States = append(b.m.States, BakedState{Name: name, StateRootLinkID: -1, IsConduit: true, EntryRule: entryRule})
	return len(b.m.States) - 1
}

// AddTransition adds a transition from one state to another. Transitions leaving the same
// state are tried in the order they are added.
//
// Parameters:
//   - from: the source state index
//   - to: the target state index
//   - rule: the condition; nil never passes unless bound natively or automatic
//   - options: transition options
//
// Returns:
//   - int: the transition index
func (b *StateMachineBuilder) AddTransition(from, to int, rule TransitionRule, options ...TransitionBuilderOption) int {
	t := BakedTransition{PreviousState: from, NextState: to, CustomLinkID: -1}
	idx := len(b.m.Transitions)
	r := BakedTransitionRule{TransitionIndex: idx, NextState: to, Rule: rule, DesiredResult: true}
	for _, opt := range options {
		opt(&t, &r)
	}
	b.m.Transitions = append(b.m.Transitions, t)
	if b.m.validState(from) {
		b.m.States[from].Transitions = append(b.m.States[from].Transitions, r)
	}
	return idx
}

// SetInitialState sets the state the machine starts in.
func (b *StateMachineBuilder) SetInitialState(state int) *StateMachineBuilder {
	b.m.InitialState = state
	return b
}

// Build returns the machine. Validation against the owning class happens in ClassBuilder.Build.
func (b *StateMachineBuilder) Build() *BakedStateMachine {
	m := b.m
	b.m = &BakedStateMachine{Name: m.Name}
	return m
}

// WithStateNotifies sets the notifies fired when the state starts, ends and becomes fully blended.
func WithStateNotifies(start, end, fullyBlended string) StateBuilderOption {
	return func(s *BakedState) {
		s.StartNotify = start
		s.EndNotify = end
		s.FullyBlendedNotify = fullyBlended
	}
}

// WithPlayerNodes lists the asset players inside the state for relevancy queries.
func WithPlayerNodes(linkIDs ...int) StateBuilderOption {
	return func(s *BakedState) {
		s.PlayerNodeIndices = append(s.PlayerNodeIndices, linkIDs...)
	}
}

// WithAlwaysResetOnEntry reinitializes the state's graph every time it is entered.
func WithAlwaysResetOnEntry() StateBuilderOption {
	return func(s *BakedState) {
		s.AlwaysResetOnEntry = true
	}
}

// WithCrossfade sets the transition's blend duration and easing.
//
// Parameters:
//   - blend: the crossfade settings
//
// Returns:
//   - TransitionBuilderOption: option function to apply
func WithCrossfade(blend model.BlendSettings) TransitionBuilderOption {
	return func(t *BakedTransition, _ *BakedTransitionRule) {
		t.Blend = blend
	}
}

// WithBlendProfile scales the crossfade per bone.
func WithBlendProfile(profile *model.BlendProfile) TransitionBuilderOption {
	return func(t *BakedTransition, _ *BakedTransitionRule) {
		t.BlendProfile = profile
	}
}

// WithCustomBlend replaces the crossfade with a blend graph rooted at linkID. The graph
// reads the two state poses through the listed TransitionPoseEvaluator nodes.
func WithCustomBlend(linkID int, poseEvaluatorLinkIDs ...int) TransitionBuilderOption {
	return func(t *BakedTransition, _ *BakedTransitionRule) {
		t.Logic = TransitionLogicCustom
		t.CustomLinkID = linkID
		t.PoseEvaluatorLinkIDs = poseEvaluatorLinkIDs
	}
}

// WithAutomaticRemainingTime takes the transition once the source state's most relevant
// asset player is within the crossfade duration of its end.
func WithAutomaticRemainingTime() TransitionBuilderOption {
	return func(_ *BakedTransition, r *BakedTransitionRule) {
		r.AutomaticRemainingTime = true
	}
}

// WithDesiredResult sets the rule result that takes the transition. Defaults to true.
func WithDesiredResult(result bool) TransitionBuilderOption {
	return func(_ *BakedTransition, r *BakedTransitionRule) {
		r.DesiredResult = result
	}
}

// WithTransitionNotifies sets the notifies fired when the transition starts, ends and is interrupted.
func WithTransitionNotifies(start, end, interrupt string) TransitionBuilderOption {
	return func(t *BakedTransition, _ *BakedTransitionRule) {
		t.StartNotify = start
		t.EndNotify = end
		t.InterruptNotify = interrupt
	}
}
