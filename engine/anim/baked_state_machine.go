package anim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// TransitionRule decides whether a transition may be taken this frame.
type TransitionRule func(p *Proxy, m *StateMachine) bool

// TransitionLogic selects how a transition composes the poses of its two states.
type TransitionLogic uint8

const (
	// TransitionLogicStandard crossfades per bone, optionally scaled by a blend profile.
	TransitionLogicStandard TransitionLogic = iota
	// TransitionLogicCustom evaluates a blend graph whose output replaces the crossfade.
	TransitionLogicCustom
)

// BakedTransitionRule is one exit of a state, in priority order.
type BakedTransitionRule struct {
	// TransitionIndex addresses the machine's Transitions table.
	TransitionIndex int

	// NextState is the state the rule leads to.
	NextState int

	// Rule is the authored condition. Native bindings on the proxy take precedence.
	Rule TransitionRule

	// DesiredResult is the rule result that takes the transition.
	DesiredResult bool

	// AutomaticRemainingTime makes the rule true once the state's most relevant asset
	// player has no more time left than the crossfade duration.
	AutomaticRemainingTime bool
}

// BakedState describes one state of a machine.
type BakedState struct {
	Name string

	// StateRootLinkID is the link id of the state's pose graph root, or -1.
	StateRootLinkID int

	// IsConduit marks a pass-through state that is never evaluated for a pose.
	IsConduit bool

	// EntryRule gates transitions through a conduit. Nil always passes.
	EntryRule TransitionRule

	// Transitions are the state's exits in priority order.
	Transitions []BakedTransitionRule

	// PlayerNodeIndices are the link ids of the asset players inside the state.
	PlayerNodeIndices []int

	// AlwaysResetOnEntry reinitializes the state graph whenever the state is entered.
	AlwaysResetOnEntry bool

	StartNotify        string
	EndNotify          string
	FullyBlendedNotify string
}

// BakedTransition describes how a transition between two states blends.
type BakedTransition struct {
	PreviousState int
	NextState     int

	// Blend holds the crossfade duration and easing.
	Blend model.BlendSettings

	// BlendProfile optionally scales the crossfade speed per bone.
	BlendProfile *model.BlendProfile

	Logic TransitionLogic

	// CustomLinkID is the root of the custom blend graph when Logic is TransitionLogicCustom.
	CustomLinkID int

	// PoseEvaluatorLinkIDs are the TransitionPoseEvaluator nodes inside the custom graph.
	PoseEvaluatorLinkIDs []int

	StartNotify     string
	EndNotify       string
	InterruptNotify string
}

// BakedStateMachine is the immutable description of a state machine shared by every
// instance of a class.
type BakedStateMachine struct {
	Name         string
	InitialState int
	States       []BakedState
	Transitions  []BakedTransition
}

// FindState returns the index of the named state, or -1.
func (m *BakedStateMachine) FindState(name string) int {
	for i, s := range m.States {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (m *BakedStateMachine) validState(i int) bool { return i >= 0 && i < len(m.States) }

// validate checks every index in the tables against the machine and the class.
func (m *BakedStateMachine) validate(c *Class) error {
	if m == nil {
		return fmt.Errorf("nil machine: %w", ErrInvalidClass)
	}
	if len(m.States) == 0 {
		return fmt.Errorf("machine %q has no states: %w", m.Name, ErrInvalidClass)
	}
	if !m.validState(m.InitialState) {
		return fmt.Errorf("machine %q initial state %d: %w", m.Name, m.InitialState, ErrInvalidClass)
	}
	checkLink := func(what string, id int) error {
		if _, err := c.PropertyIndex(id); err != nil {
			return fmt.Errorf("machine %q %s: %w", m.Name, what, err)
		}
		return nil
	}
	for i, t := range m.Transitions {
		if !m.validState(t.PreviousState) || !m.validState(t.NextState) {
			return fmt.Errorf("machine %q transition %d joins %d and %d: %w", m.Name, i, t.PreviousState, t.NextState, ErrInvalidClass)
		}
		if t.Logic == TransitionLogicCustom {
			if err := checkLink(fmt.Sprintf("transition %d custom graph", i), t.CustomLinkID); err != nil {
				return err
			}
			for _, id := range t.PoseEvaluatorLinkIDs {
				if err := checkLink(fmt.Sprintf("transition %d pose evaluator", i), id); err != nil {
					return err
				}
			}
		}
	}
	for i, s := range m.States {
		if !s.IsConduit && s.StateRootLinkID >= 0 {
			if err := checkLink(fmt.Sprintf("state %q root", s.Name), s.StateRootLinkID); err != nil {
				return err
			}
		}
		for _, id := range s.PlayerNodeIndices {
			if err := checkLink(fmt.Sprintf("state %q player", s.Name), id); err != nil {
				return err
			}
		}
		for _, r := range s.Transitions {
			if r.TransitionIndex < 0 || r.TransitionIndex >= len(m.Transitions) {
				return fmt.Errorf("machine %q state %d rule targets transition %d: %w", m.Name, i, r.TransitionIndex, ErrInvalidClass)
			}
			t := m.Transitions[r.TransitionIndex]
			if t.PreviousState != i || t.NextState != r.NextState {
				return fmt.Errorf("machine %q state %d rule does not match transition %d: %w", m.Name, i, r.TransitionIndex, ErrInvalidClass)
			}
		}
	}
	return nil
}
