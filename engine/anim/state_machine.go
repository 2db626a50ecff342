package anim

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
)

// DefaultMaxTransitionsPerFrame bounds how many transitions a machine takes in one update.
const DefaultMaxTransitionsPerFrame = 3

// ActiveTransition is a crossfade in progress between two states.
type ActiveTransition struct {
	PreviousState     int
	NextState         int
	CrossfadeDuration float32
	ElapsedTime       float32
	Alpha             float32
	Active            bool

	// SourceTransitionIndices lists every transition walked to reach NextState, conduits included.
	SourceTransitionIndices []int

	Logic        TransitionLogic
	BlendProfile *model.BlendProfile

	StartNotify     string
	EndNotify       string
	InterruptNotify string

	blend      model.AlphaBlend
	customLink PoseLink
	evaluators []int
	boneAlphas []float32
}

func newActiveTransition(t *BakedTransition, prev, next int, duration float32, sources []int) ActiveTransition {
	at := ActiveTransition{
		PreviousState:           prev,
		NextState:               next,
		CrossfadeDuration:       duration,
		Active:                  true,
		SourceTransitionIndices: sources,
		Logic:                   t.Logic,
		BlendProfile:            t.BlendProfile,
		StartNotify:             t.StartNotify,
		EndNotify:               t.EndNotify,
		InterruptNotify:         t.InterruptNotify,
		blend:                   model.NewAlphaBlend(model.BlendSettings{Time: duration, Easing: t.Blend.Easing}, 0, 1),
		customLink:              Unlinked(),
		evaluators:              t.PoseEvaluatorLinkIDs,
	}
	if at.blend.IsComplete() {
		at.Alpha = 1
		at.Active = false
	}
	if t.Logic == TransitionLogicCustom {
		at.customLink = Link(t.CustomLinkID)
	}
	return at
}

func (t *ActiveTransition) update(dt float32) {
	if !t.Active {
		return
	}
	t.ElapsedTime += dt
	alpha, done := t.blend.Update(dt)
	t.Alpha = common.Clamp01(alpha)
	if done {
		t.Alpha = 1
		t.Active = false
	}
}

// Remaining returns the crossfade time left.
func (t *ActiveTransition) Remaining() float32 { return t.blend.Remaining() }

// StateMachine runs an instance of a baked machine.
type StateMachine struct {
	NodeBase

	// MachineIndex addresses the class's baked machines.
	MachineIndex int

	// MaxTransitionsPerFrame bounds transitions taken per update. Zero uses
	// DefaultMaxTransitionsPerFrame.
	MaxTransitionsPerFrame int

	// SkipFirstUpdateTransition discards transitions taken during the first update and
	// suppresses their notifies.
	SkipFirstUpdateTransition bool

	// ReinitializeOnBecomingRelevant reinitializes the machine when it is updated after
	// missing a frame.
	ReinitializeOnBecomingRelevant bool

	desc           *BakedStateMachine
	currentState   int
	elapsedInState float32
	active         []ActiveTransition
	stateLinks     []PoseLink
	nativeRules    map[int]TransitionRule
	enterCallbacks [][]StateCallback
	exitCallbacks  [][]StateCallback
	firstUpdate    bool
	visited        []bool
	stateCache     map[int]*PoseContext
}

var _ Node = &StateMachine{}

// Description returns the baked machine, or nil before Initialize.
func (s *StateMachine) Description() *BakedStateMachine { return s.desc }

// CurrentState returns the index of the current state.
func (s *StateMachine) CurrentState() int { return s.currentState }

// CurrentStateName returns the name of the current state, or "".
func (s *StateMachine) CurrentStateName() string {
	if !s.isValid() {
		return ""
	}
	return s.desc.States[s.currentState].Name
}

// ElapsedTime returns the time spent in the current state.
func (s *StateMachine) ElapsedTime() float32 { return s.elapsedInState }

// ActiveTransitions returns the crossfades in progress, oldest first.
func (s *StateMachine) ActiveTransitions() []ActiveTransition { return s.active }

func (s *StateMachine) isValid() bool {
	return s.desc != nil && s.desc.validState(s.currentState)
}

func (s *StateMachine) maxTransitions() int {
	if s.MaxTransitionsPerFrame > 0 {
		return s.MaxTransitionsPerFrame
	}
	return DefaultMaxTransitionsPerFrame
}

// StateWeight returns a state's weight by walking the active transitions oldest first:
// each newer crossfade scales everything before it by (1-alpha) and adds alpha to its target.
//
// Parameters:
//   - state: the state index
//
// Returns:
//   - float32: the weight in [0, 1]
func (s *StateMachine) StateWeight(state int) float32 {
	if len(s.active) == 0 {
		if state == s.currentState {
			return 1
		}
		return 0
	}
	var total float32
	for i := range s.active {
		t := &s.active[i]
		if i == 0 {
			if t.PreviousState == state {
				total += 1 - t.Alpha
			}
		} else {
			total *= 1 - t.Alpha
		}
		if t.NextState == state {
			total += t.Alpha
		}
	}
	return common.Clamp01(total)
}

func (s *StateMachine) Initialize(ctx *InitializeContext) {
	p := ctx.Proxy
	s.markInitialized(p)
	s.desc = p.class.StateMachine(s.MachineIndex)
	s.currentState = -1
	s.elapsedInState = 0
	s.active = s.active[:0]
	if s.desc == nil || len(s.desc.States) == 0 {
		common.Logger().Warn("[StateMachine] missing machine description", "machine", s.MachineIndex, "instance", p.name)
		return
	}

	d := s.desc
	s.stateLinks = make([]PoseLink, len(d.States))
	s.enterCallbacks = make([][]StateCallback, len(d.States))
	s.exitCallbacks = make([][]StateCallback, len(d.States))
	for i, st := range d.States {
		s.stateLinks[i] = Link(st.StateRootLinkID)
		if st.IsConduit {
			s.stateLinks[i] = Unlinked()
		}
		s.enterCallbacks[i] = p.enterCallbacks[stateKey{d.Name, st.Name}]
		s.exitCallbacks[i] = p.exitCallbacks[stateKey{d.Name, st.Name}]
	}
	s.nativeRules = make(map[int]TransitionRule)
	for i, t := range d.Transitions {
		if rule, ok := p.nativeTransitions[transitionKey{d.Name, d.States[t.PreviousState].Name, d.States[t.NextState].Name}]; ok {
			s.nativeRules[i] = rule
		}
	}
	s.visited = make([]bool, len(d.States))
	s.setState(p, d.InitialState, true, true)
	s.firstUpdate = true
}

func (s *StateMachine) CacheBones(ctx *CacheBonesContext) {
	if !s.needsCacheBones(ctx.Proxy) {
		return
	}
	for i := range s.stateLinks {
		s.stateLinks[i].CacheBones(ctx)
	}
	for i := range s.active {
		s.active[i].customLink.CacheBones(ctx)
	}
}

func (s *StateMachine) Update(ctx *UpdateContext) {
	p := ctx.Proxy
	if s.ReinitializeOnBecomingRelevant && s.updatedAt != 0 && !s.wasUpdatedLastFrame(p) {
		s.Initialize(&InitializeContext{Proxy: p})
	}
	s.markUpdated(p)
	if !s.isValid() {
		common.Logger().Warn("[StateMachine] invalid machine or state, skipping update", "machine", s.MachineIndex, "state", s.currentState, "instance", p.name)
		return
	}

	taken := false
	for range s.maxTransitions() {
		clear(s.visited)
		rule, sources, ok := s.findValidTransition(p, s.currentState, nil)
		if !ok || rule.NextState == s.currentState {
			break
		}
		s.takeTransition(p, rule, sources)
		taken = true
	}

	if s.firstUpdate {
		// Transitions taken while skipping were silent, so the entry state is restored
		// without callbacks and its Start notify fires here.
		if s.SkipFirstUpdateTransition {
			s.currentState = s.desc.InitialState
			s.elapsedInState = 0
			s.active = s.active[:0]
		}
		if s.SkipFirstUpdateTransition || !taken {
			p.notifies.AddStateNotify(s.desc.States[s.currentState].StartNotify, s.desc.Name)
		}
		s.firstUpdate = false
	}

	s.updateTransitions(ctx)

	for i, st := range s.desc.States {
		if st.IsConduit {
			continue
		}
		if w := s.StateWeight(i); common.IsRelevant(w) {
			s.stateLinks[i].Update(ctx.FractionalWeight(w))
		}
	}

	s.elapsedInState += ctx.DeltaTime
	p.RecordMachineWeight(s.MachineIndex, ctx.FinalBlendWeight())
	for i := range s.desc.States {
		p.RecordStateWeight(s.MachineIndex, i, s.StateWeight(i))
	}
}

// findValidTransition walks the exits of state in priority order and returns the first
// rule that passes. Conduits are followed recursively; a conduit that leads nowhere lets
// the search continue with the next rule.
func (s *StateMachine) findValidTransition(p *Proxy, state int, sources []int) (BakedTransitionRule, []int, bool) {
	if s.visited[state] {
		return BakedTransitionRule{}, nil, false
	}
	s.visited[state] = true

	st := &s.desc.States[state]
	if st.IsConduit && st.EntryRule != nil && !st.EntryRule(p, s) {
		return BakedTransitionRule{}, nil, false
	}

	for _, r := range st.Transitions {
		if r.NextState == state || !s.evaluateRule(p, state, r) {
			continue
		}
		path := append(append([]int(nil), sources...), r.TransitionIndex)
		if s.desc.States[r.NextState].IsConduit {
			inner, innerPath, ok := s.findValidTransition(p, r.NextState, path)
			if !ok {
				continue
			}
			// The outer rule names the transition; the target is where the chain ends.
			r.NextState = inner.NextState
			return r, innerPath, true
		}
		return r, path, true
	}
	return BakedTransitionRule{}, nil, false
}

func (s *StateMachine) evaluateRule(p *Proxy, state int, r BakedTransitionRule) bool {
	var result bool
	switch native, ok := s.nativeRules[r.TransitionIndex]; {
	case ok:
		result = native(p, s)
	case r.AutomaticRemainingTime:
		result = s.relevantTimeRemaining(p, state) <= s.desc.Transitions[r.TransitionIndex].Blend.Time
	case r.Rule != nil:
		result = r.Rule(p, s)
	default:
		return false
	}
	return result == r.DesiredResult
}

// relevantTimeRemaining returns the time left on the state's most relevant asset player.
func (s *StateMachine) relevantTimeRemaining(p *Proxy, state int) float32 {
	player := relevantAssetPlayer(p, &s.desc.States[state])
	if player == nil {
		return math.MaxFloat32
	}
	return player.CurrentAssetLength() - player.CurrentAssetTimePlayRateAdjusted()
}

func (s *StateMachine) takeTransition(p *Proxy, r BakedTransitionRule, sources []int) {
	d := s.desc
	if n := len(s.active); n > 0 && s.active[n-1].Active {
		p.notifies.AddStateNotify(s.active[n-1].InterruptNotify, d.Name)
	}
	prev, next := s.currentState, r.NextState
	suppress := s.firstUpdate && s.SkipFirstUpdateTransition
	if !suppress {
		p.notifies.AddStateNotify(d.States[prev].EndNotify, d.Name)
		p.notifies.AddStateNotify(d.States[next].StartNotify, d.Name)
	}

	existing := s.StateWeight(next)
	reinit := !common.IsRelevant(existing)
	t := &d.Transitions[r.TransitionIndex]
	at := newActiveTransition(t, prev, next, t.Blend.Time*(1-existing), sources)
	if at.customLink.IsLinked() {
		at.customLink.Initialize(&InitializeContext{Proxy: p})
		at.customLink.CacheBones(&CacheBonesContext{Proxy: p})
	}
	s.active = append(s.active, at)
	if !suppress {
		p.notifies.AddStateNotify(at.StartNotify, d.Name)
	}
	s.setState(p, next, reinit, !suppress)
}

// setState makes state current. The state's graph is initialized when reinit is set or
// the state always resets on entry. Exit and entry callbacks run only when callbacks is set.
func (s *StateMachine) setState(p *Proxy, state int, reinit, callbacks bool) {
	prev := s.currentState
	if callbacks && s.desc.validState(prev) {
		for _, cb := range s.exitCallbacks[prev] {
			cb(p, s.MachineIndex, prev, state)
		}
	}
	st := &s.desc.States[state]
	if reinit || st.AlwaysResetOnEntry {
		s.stateLinks[state].Initialize(&InitializeContext{Proxy: p})
		s.stateLinks[state].CacheBones(&CacheBonesContext{Proxy: p})
	}
	s.currentState = state
	s.elapsedInState = 0
	if !callbacks {
		return
	}
	for _, cb := range s.enterCallbacks[state] {
		cb(p, s.MachineIndex, prev, state)
	}
}

// updateTransitions advances every crossfade and drops the ones made irrelevant by the
// newest finished crossfade.
func (s *StateMachine) updateTransitions(ctx *UpdateContext) {
	lastFinished := -1
	for i := range s.active {
		t := &s.active[i]
		t.update(ctx.DeltaTime)
		if t.customLink.IsLinked() {
			t.customLink.Update(ctx)
		}
		if !t.Active {
			lastFinished = i
		}
	}
	if lastFinished < 0 {
		return
	}
	if lastFinished == len(s.active)-1 {
		p := ctx.Proxy
		p.notifies.AddStateNotify(s.active[lastFinished].EndNotify, s.desc.Name)
		p.notifies.AddStateNotify(s.desc.States[s.currentState].FullyBlendedNotify, s.desc.Name)
	}
	s.active = append(s.active[:0], s.active[lastFinished+1:]...)
}

func (s *StateMachine) Evaluate(out *PoseContext) {
	p := out.Proxy
	s.checkEvaluate(p, "StateMachine")
	if !s.isValid() {
		out.ResetToRefPose()
		return
	}
	if len(s.active) == 0 {
		if s.desc.States[s.currentState].IsConduit {
			out.ResetToRefPose()
			return
		}
		s.stateLinks[s.currentState].Evaluate(out)
		return
	}

	if s.stateCache == nil {
		s.stateCache = make(map[int]*PoseContext)
	}
	for i := range s.active {
		t := &s.active[i]
		switch {
		case t.Logic == TransitionLogicCustom && t.customLink.IsLinked():
			s.evaluateCustom(out, t, i)
		case t.Alpha >= 1-common.ZeroAnimWeightThreshold:
			out.CopyFrom(s.evaluateState(out, t.NextState))
		case t.Alpha <= common.ZeroAnimWeightThreshold:
			if i == 0 {
				out.CopyFrom(s.evaluateState(out, t.PreviousState))
			}
		case i == 0:
			s.blend(out, s.evaluateState(out, t.PreviousState), s.evaluateState(out, t.NextState), t)
		default:
			s.blend(out, out, s.evaluateState(out, t.NextState), t)
		}
	}
	for k, c := range s.stateCache {
		c.Release()
		delete(s.stateCache, k)
	}
	out.Pose.NormalizeRotations()
}

// evaluateState evaluates a state's pose once per Evaluate.
func (s *StateMachine) evaluateState(out *PoseContext, state int) *PoseContext {
	if c, ok := s.stateCache[state]; ok {
		return c
	}
	c := out.Child()
	if s.desc.States[state].IsConduit {
		c.ResetToRefPose()
	} else {
		s.stateLinks[state].Evaluate(c)
	}
	s.stateCache[state] = c
	return c
}

func (s *StateMachine) blend(out, prev, next *PoseContext, t *ActiveTransition) {
	if t.BlendProfile == nil {
		pose.BlendTwoPoses(prev.Pose, next.Pose, t.Alpha, out.Pose)
	} else {
		bc := prev.Pose.BoneContainer()
		if cap(t.boneAlphas) < bc.NumBones() {
			t.boneAlphas = make([]float32, bc.NumBones())
		}
		t.boneAlphas = t.boneAlphas[:bc.NumBones()]
		for b := range t.boneAlphas {
			t.boneAlphas[b] = model.ScaledBoneAlpha(t.Alpha, t.BlendProfile.BoneBlendScale(bc.SkeletonIndex(b)))
		}
		pose.BlendPosesPerBone(prev.Pose, next.Pose, t.boneAlphas, out.Pose)
	}
	out.Curve.Lerp(prev.Curve, next.Curve, t.Alpha)
}

// evaluateCustom feeds the two state poses to the transition's pose evaluators and lets
// the custom graph produce the output.
func (s *StateMachine) evaluateCustom(out *PoseContext, t *ActiveTransition, i int) {
	var prev *PoseContext
	if i == 0 {
		prev = s.evaluateState(out, t.PreviousState)
	} else {
		prev = out.Child()
		prev.CopyFrom(out)
		defer prev.Release()
	}
	next := s.evaluateState(out, t.NextState)
	for _, id := range t.evaluators {
		ev, err := NodeAs[*TransitionPoseEvaluator](out.Proxy, id)
		if err != nil {
			common.Logger().Warn("[StateMachine] bad transition pose evaluator", "link", id, "error", err, "instance", out.Proxy.name)
			continue
		}
		if ev.Role == EvaluateDestinationPose {
			ev.source = next
		} else {
			ev.source = prev
		}
	}
	t.customLink.Evaluate(out)
	for _, id := range t.evaluators {
		if ev, err := NodeAs[*TransitionPoseEvaluator](out.Proxy, id); err == nil {
			ev.source = nil
		}
	}
}

func (s *StateMachine) GatherDebugData(d *NodeDebugData) {
	if !s.isValid() {
		d.AddDebugItem(fmt.Sprintf("StateMachine(%d) invalid", s.MachineIndex), true)
		return
	}
	d.AddDebugItem(fmt.Sprintf("StateMachine(%s) current %s (%.2fs)", s.desc.Name, s.CurrentStateName(), s.elapsedInState), false)
	for i := range s.active {
		t := &s.active[i]
		d.AddDebugItem(fmt.Sprintf("transition %s -> %s alpha %.2f (%.2f/%.2f)", s.desc.States[t.PreviousState].Name, s.desc.States[t.NextState].Name, t.Alpha, t.ElapsedTime, t.CrossfadeDuration), false)
	}
	for i, st := range s.desc.States {
		if w := s.StateWeight(i); !st.IsConduit && common.IsRelevant(w) {
			s.stateLinks[i].GatherDebugData(d.BranchFlow(w))
		}
	}
}

// TransitionPoseRole selects which state pose a TransitionPoseEvaluator provides.
type TransitionPoseRole uint8

const (
	EvaluateSourcePose TransitionPoseRole = iota
	EvaluateDestinationPose
)

// TransitionPoseEvaluator exposes the source or destination pose of a custom transition to
// its blend graph.
type TransitionPoseEvaluator struct {
	NodeBase
	Role TransitionPoseRole

	source *PoseContext
}

func (n *TransitionPoseEvaluator) Initialize(ctx *InitializeContext) { n.markInitialized(ctx.Proxy) }
func (n *TransitionPoseEvaluator) CacheBones(ctx *CacheBonesContext)  { n.needsCacheBones(ctx.Proxy) }
func (n *TransitionPoseEvaluator) Update(ctx *UpdateContext)          { n.markUpdated(ctx.Proxy) }

func (n *TransitionPoseEvaluator) Evaluate(out *PoseContext) {
	if n.source == nil {
		out.ResetToRefPose()
		return
	}
	out.CopyFrom(n.source)
}

func (n *TransitionPoseEvaluator) GatherDebugData(d *NodeDebugData) {
	role := "source"
	if n.Role == EvaluateDestinationPose {
		role = "destination"
	}
	d.AddDebugItem("TransitionPoseEvaluator("+role+")", true)
}
