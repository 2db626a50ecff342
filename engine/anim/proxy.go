package anim

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
)

// CurveSource supplies named curve values read on the game thread by curve source nodes.
type CurveSource interface {
	// CurveValues appends the source's current values to out.
	//
	// Parameters:
	//   - out: the map to fill, keyed by curve name
	CurveValues(out map[string]float32)
}

// NativeUpdateFunc runs at the start of UpdateAnimation, before the graph update. Game code
// uses it to write graph properties.
type NativeUpdateFunc func(p *Proxy, deltaSeconds float32)

// NodeVisit records a node reached through a pose link during an update pass.
type NodeVisit struct {
	LinkID int
	Weight float32
}

type slotTracker struct {
	localWeight               float32
	globalWeight              float32
	relevantThisTick          bool
	wasRelevantOnPreviousTick bool
}

type queuedRootMotion struct {
	transform model.Transform
	slot      string
	weight    float32
}

type transitionKey struct {
	machine, from, to string
}

type stateKey struct {
	machine, state string
}

// StateCallback is invoked when a state machine enters or leaves a state.
type StateCallback func(p *Proxy, machineIndex, prevState, nextState int)

// Proxy runs one instance of a Class: it owns the instance's node arena and all per-frame
// state, and is the only thing nodes talk to while updating and evaluating.
//
// A proxy is driven through PreUpdate, UpdateAnimation, PreEvaluateAnimation,
// EvaluateAnimation and PostUpdate once per frame. PreUpdate, PreEvaluateAnimation and
// PostUpdate must run on the game thread; UpdateAnimation and EvaluateAnimation may run on
// a worker when CanUpdateInWorkerThread allows it. The phases of one proxy never overlap.
type Proxy struct {
	name     string
	class    *Class
	skeleton *model.Skeleton
	nodes    []Node
	root     PoseLink

	boneContainer   *pose.BoneContainer
	requiredBones   []int32
	refPoseOverride []model.Transform
	freeContexts    []*PoseContext

	initializationCounter uint64
	cachedBonesCounter    uint64
	updateCounter         uint64
	evaluationCounter     uint64
	boneCachesInvalidated bool
	initialized           bool

	deltaSeconds   float32
	rootMotionMode RootMotionMode
	debugChecks    bool

	syncWriteIndex int
	syncGroups     [2]map[string]*SyncGroup
	ungrouped      [2][]*TickRecord
	machineWeights [2][]float32
	stateWeights   [2][][]float32
	slotWeights    [2]map[string]*slotTracker

	montageEvaluation []MontageEvaluationState
	montageRootMotion []queuedRootMotion
	notifies          NotifyQueue
	frameRootMotion   RootMotionParams
	rootMotion        RootMotionParams
	debugDraws        []DebugDrawItem
	debugDrawSink     DebugDrawSink

	properties        *PropertyBag
	nativeUpdate      NativeUpdateFunc
	curveSources      map[string]CurveSource
	nativeTransitions map[transitionKey]TransitionRule
	enterCallbacks    map[stateKey][]StateCallback
	exitCallbacks     map[stateKey][]StateCallback

	preUpdateNodes []GameThreadPreUpdater
	savedPoseNodes []*SaveCachedPose
	subInstances   []*SubInstance
	machineNodes   map[int]*StateMachine
	workerSafe     bool
	nodeVisits     []NodeVisit

	subInput *PoseContext
}

// NewProxy creates an instance of class and applies the builder options. Call Initialize
// before the first frame.
//
// Parameters:
//   - class: the compiled graph
//   - options: functional options configuring the instance
//
// Returns:
//   - *Proxy: the new proxy
//   - error: ErrInvalidClass for a nil class, or the bone container build error
func NewProxy(class *Class, options ...ProxyBuilderOption) (*Proxy, error) {
	if class == nil {
		return nil, fmt.Errorf("proxy: %w", ErrInvalidClass)
	}
	p := &Proxy{
		name:              class.name,
		class:             class,
		skeleton:          class.skeleton,
		root:              Link(class.rootLinkID),
		rootMotionMode:    RootMotionFromMontagesOnly,
		properties:        NewPropertyBag(),
		curveSources:      make(map[string]CurveSource),
		nativeTransitions: make(map[transitionKey]TransitionRule),
		enterCallbacks:    make(map[stateKey][]StateCallback),
		exitCallbacks:     make(map[stateKey][]StateCallback),
		machineNodes:      make(map[int]*StateMachine),
		workerSafe:        true,
	}
	for _, opt := range options {
		opt(p)
	}

	bc, err := pose.NewBoneContainer(p.skeleton, p.requiredBones, p.refPoseOverride)
	if err != nil {
		return nil, fmt.Errorf("proxy %q: %w", p.name, err)
	}
	p.boneContainer = bc
	p.nodes = class.instantiate()

	for i := range 2 {
		p.syncGroups[i] = make(map[string]*SyncGroup, len(class.syncGroupNames))
		for _, g := range class.syncGroupNames {
			p.syncGroups[i][g] = &SyncGroup{GroupLeaderIndex: -1}
		}
		p.machineWeights[i] = make([]float32, len(class.machines))
		p.stateWeights[i] = make([][]float32, len(class.machines))
		for m, desc := range class.machines {
			p.stateWeights[i][m] = make([]float32, len(desc.States))
		}
		p.slotWeights[i] = make(map[string]*slotTracker)
	}
	p.frameRootMotion.Clear()
	p.rootMotion.Clear()
	return p, nil
}

// Name returns the instance name used in logs.
func (p *Proxy) Name() string { return p.name }

// Class returns the compiled graph the proxy runs.
func (p *Proxy) Class() *Class { return p.class }

// Skeleton returns the skeleton being animated.
func (p *Proxy) Skeleton() *model.Skeleton { return p.skeleton }

// BoneContainer returns the current required-bone layout.
func (p *Proxy) BoneContainer() *pose.BoneContainer { return p.boneContainer }

// Properties returns the instance's graph variables.
func (p *Proxy) Properties() *PropertyBag { return p.properties }

// DeltaSeconds returns the delta time of the current frame.
func (p *Proxy) DeltaSeconds() float32 { return p.deltaSeconds }

// RootMotionMode returns the instance's root motion mode.
func (p *Proxy) RootMotionMode() RootMotionMode { return p.rootMotionMode }

// DebugChecksEnabled reports whether invariant violations panic.
func (p *Proxy) DebugChecksEnabled() bool { return p.debugChecks }

// Counters returns the initialization, cached bones, update and evaluation counters.
func (p *Proxy) Counters() (initialization, cachedBones, update, evaluation uint64) {
	return p.initializationCounter, p.cachedBonesCounter, p.updateCounter, p.evaluationCounter
}

// NodeByLinkID resolves a baked link id through the node arena.
//
// Parameters:
//   - linkID: the baked link id
//
// Returns:
//   - Node: the node
//   - error: ErrNodeIndexOutOfRange if the id does not address a node
func (p *Proxy) NodeByLinkID(linkID int) (Node, error) {
	idx, err := p.class.PropertyIndex(linkID)
	if err != nil {
		return nil, err
	}
	return p.nodes[idx], nil
}

// NodeAs resolves a link id and asserts the node's type.
//
// Parameters:
//   - p: the proxy
//   - linkID: the baked link id
//
// Returns:
//   - T: the typed node
//   - error: ErrNodeIndexOutOfRange or ErrNodeTypeMismatch
func NodeAs[T Node](p *Proxy, linkID int) (T, error) {
	var zero T
	n, err := p.NodeByLinkID(linkID)
	if err != nil {
		return zero, err
	}
	t, ok := n.(T)
	if !ok {
		return zero, fmt.Errorf("link %d is %T, want %T: %w", linkID, n, zero, ErrNodeTypeMismatch)
	}
	return t, nil
}

// Initialize makes the root node relevant: it collects the game-thread pre-update nodes and
// runs Initialize over the whole graph. Bone caches are rebuilt before the next update.
func (p *Proxy) Initialize() {
	p.preUpdateNodes = p.preUpdateNodes[:0]
	p.savedPoseNodes = p.savedPoseNodes[:0]
	p.subInstances = p.subInstances[:0]
	clear(p.machineNodes)
	p.workerSafe = true
	for _, n := range p.nodes {
		if pu, ok := n.(GameThreadPreUpdater); ok {
			p.preUpdateNodes = append(p.preUpdateNodes, pu)
		}
		if w, ok := n.(WorkerThreadUpdater); ok && !w.CanUpdateInWorkerThread() {
			p.workerSafe = false
		}
		switch node := n.(type) {
		case *SaveCachedPose:
			p.savedPoseNodes = append(p.savedPoseNodes, node)
		case *SubInstance:
			p.subInstances = append(p.subInstances, node)
		case *StateMachine:
			p.machineNodes[node.MachineIndex] = node
		}
	}

	p.initializationCounter++
	p.root.Initialize(&InitializeContext{Proxy: p})
	p.boneCachesInvalidated = true
	p.initialized = true
	common.Logger().Debug("[Proxy] initialized", "instance", p.name, "nodes", len(p.nodes), "workerSafe", p.workerSafe)
}

// CanUpdateInWorkerThread reports whether every node of the graph allows its update to run
// off the game thread. A single refusal moves the whole graph to the game thread.
func (p *Proxy) CanUpdateInWorkerThread() bool {
	if !p.workerSafe {
		return false
	}
	for _, s := range p.subInstances {
		if !s.CanUpdateInWorkerThread() {
			return false
		}
	}
	return true
}

// RecalcRequiredBones rebuilds the bone container for a new required-bone set (an LOD
// change) and invalidates every node's bone caches.
//
// Parameters:
//   - requiredBones: skeleton bone indices, or nil for every bone
//
// Returns:
//   - error: the bone container build error
func (p *Proxy) RecalcRequiredBones(requiredBones []int32) error {
	bc, err := pose.NewBoneContainer(p.skeleton, requiredBones, p.refPoseOverride)
	if err != nil {
		return fmt.Errorf("proxy %q: %w", p.name, err)
	}
	p.requiredBones = requiredBones
	p.boneContainer = bc
	p.boneCachesInvalidated = true
	for _, s := range p.subInstances {
		s.recalcRequiredBones(requiredBones)
	}
	common.Logger().Debug("[Proxy] required bones changed", "instance", p.name, "bones", bc.NumBones())
	return nil
}

// cacheBones runs CacheBones over the graph when the bone set changed.
func (p *Proxy) cacheBones() {
	if !p.boneCachesInvalidated {
		return
	}
	p.boneCachesInvalidated = false
	p.cachedBonesCounter++
	p.root.CacheBones(&CacheBonesContext{Proxy: p})
}

// PreUpdate prepares the write buffers for a new frame and runs the game-thread
// pre-update of every node that needs one.
//
// Parameters:
//   - deltaSeconds: the frame delta in seconds
func (p *Proxy) PreUpdate(deltaSeconds float32) {
	if !p.initialized {
		p.Initialize()
	}
	p.deltaSeconds = deltaSeconds
	p.notifies.Reset()
	p.debugDraws = p.debugDraws[:0]
	p.montageRootMotion = p.montageRootMotion[:0]
	p.frameRootMotion.Clear()
	p.clearSlotNodeWeights()

	w := p.syncWriteIndex
	for _, g := range p.syncGroups[w] {
		g.reset()
	}
	p.ungrouped[w] = p.ungrouped[w][:0]
	clear(p.machineWeights[w])
	for _, s := range p.stateWeights[w] {
		clear(s)
	}

	for _, n := range p.preUpdateNodes {
		n.PreUpdate(p)
	}
}

// UpdateAnimation runs the native update hook, updates the graph from the root, flushes
// cached-pose updates and ticks every registered asset player.
func (p *Proxy) UpdateAnimation() {
	if p.nativeUpdate != nil {
		p.nativeUpdate(p, p.deltaSeconds)
	}
	p.cacheBones()
	p.nodeVisits = p.nodeVisits[:0]

	p.updateCounter++
	p.root.Update(NewUpdateContext(p, p.deltaSeconds))
	p.postGraphUpdate()
	p.tickAssetPlayerInstances()
}

// postGraphUpdate updates the subgraphs of saved poses with the heaviest context each
// received. Updating one subgraph can queue work for another, so it repeats until quiet.
func (p *Proxy) postGraphUpdate() {
	for range len(p.savedPoseNodes) + 1 {
		pending := false
		for _, n := range p.savedPoseNodes {
			if n.postGraphUpdate() {
				pending = true
			}
		}
		if !pending {
			return
		}
	}
}

// PreEvaluateAnimation runs on the game thread between update and evaluation.
func (p *Proxy) PreEvaluateAnimation() {
	for _, s := range p.subInstances {
		if s.inner != nil {
			s.inner.PreEvaluateAnimation()
		}
	}
}

// EvaluateAnimation evaluates the graph into out. A graph without a root produces the
// reference pose.
//
// Parameters:
//   - out: the destination pose context
func (p *Proxy) EvaluateAnimation(out *PoseContext) {
	p.cacheBones()
	out.Pose.SetBoneContainer(p.boneContainer)
	p.evaluationCounter++
	if !p.root.IsLinked() {
		out.ResetToRefPose()
		return
	}
	p.root.Evaluate(out)
}

// Evaluate evaluates the graph into a freshly allocated pose and curve.
//
// Returns:
//   - *pose.Pose: the local-space pose
//   - *pose.Curve: the curve values
func (p *Proxy) Evaluate() (*pose.Pose, *pose.Curve) {
	ctx := NewPoseContext(p)
	p.EvaluateAnimation(ctx)
	outPose := pose.NewPose(p.boneContainer)
	outPose.CopyFrom(ctx.Pose)
	outCurve := &pose.Curve{}
	outCurve.CopyFrom(ctx.Curve)
	ctx.Release()
	return outPose, outCurve
}

// PostUpdate flips the double buffers so this frame's results become readable, then
// flushes notifies, montage root motion and debug draws on the game thread.
func (p *Proxy) PostUpdate() {
	p.syncWriteIndex = 1 - p.syncWriteIndex

	for _, s := range p.subInstances {
		s.postUpdate(p)
	}
	p.notifies.applyMontageNotifies(p.IsSlotNodeRelevantForNotifies)

	for _, q := range p.montageRootMotion {
		p.frameRootMotion.AccumulateWithBlend(q.transform, q.weight*p.SlotNodeGlobalWeight(q.slot))
	}
	p.montageRootMotion = p.montageRootMotion[:0]
	p.frameRootMotion.MakeUpToFullWeight()
	if p.frameRootMotion.HasRootMotion {
		p.rootMotion.Accumulate(p.frameRootMotion.Transform())
	}
	p.frameRootMotion.Clear()

	if p.debugDrawSink != nil {
		for _, d := range p.debugDraws {
			p.debugDrawSink.DrawDebug(d)
		}
	}
	p.debugDraws = p.debugDraws[:0]
}

// Notifies returns the notifies queued this frame. Valid after PostUpdate until the next
// PreUpdate.
func (p *Proxy) Notifies() []AnimNotify { return p.notifies.Notifies() }

// ExtractedRootMotion returns the root motion composed over every frame since it was last
// consumed. Each frame's blended motion is added in PostUpdate.
func (p *Proxy) ExtractedRootMotion() *RootMotionParams { return &p.rootMotion }

// ConsumeExtractedRootMotion removes and returns alpha of the accumulated root motion.
func (p *Proxy) ConsumeExtractedRootMotion(alpha float32) model.Transform {
	return p.rootMotion.ConsumeRootMotion(alpha)
}

// AddMontageRootMotion hands the proxy root motion extracted from a montage this frame.
// With RootMotionFromEverything it is blended in PostUpdate by the montage weight times the
// slot's global weight; with RootMotionFromMontagesOnly it is accumulated directly.
//
// Parameters:
//   - t: the extracted delta
//   - slot: the slot of the montage's first track
//   - weight: the montage weight
func (p *Proxy) AddMontageRootMotion(t model.Transform, slot string, weight float32) {
	switch p.rootMotionMode {
	case RootMotionFromMontagesOnly:
		p.rootMotion.Accumulate(t)
	case RootMotionFromEverything:
		p.montageRootMotion = append(p.montageRootMotion, queuedRootMotion{transform: t, slot: slot, weight: weight})
	}
}

// QueueMontageNotifies hands the proxy notifies fired by a montage this frame. They are
// kept only if the slot is relevant once the frame's update completes.
func (p *Proxy) QueueMontageNotifies(slot string, events []model.NotifyEvent, montage string, weight float32) {
	p.notifies.AddMontageNotifies(slot, events, montage, weight)
}

// RegisterCurveSource makes a curve source available to curve source nodes by name.
func (p *Proxy) RegisterCurveSource(name string, src CurveSource) {
	if src == nil {
		delete(p.curveSources, name)
		return
	}
	p.curveSources[name] = src
}

// BindNativeTransition replaces the rule of the transition between two named states with
// a native function. Bindings are resolved when the state machine initializes.
//
// Parameters:
//   - machine: the state machine name
//   - from: the source state name
//   - to: the target state name
//   - rule: the rule to evaluate
func (p *Proxy) BindNativeTransition(machine, from, to string, rule TransitionRule) {
	p.nativeTransitions[transitionKey{machine, from, to}] = rule
}

// OnStateEntry registers a callback run whenever the named state becomes current.
func (p *Proxy) OnStateEntry(machine, state string, cb StateCallback) {
	k := stateKey{machine, state}
	p.enterCallbacks[k] = append(p.enterCallbacks[k], cb)
}

// OnStateExit registers a callback run whenever the named state stops being current.
func (p *Proxy) OnStateExit(machine, state string, cb StateCallback) {
	k := stateKey{machine, state}
	p.exitCallbacks[k] = append(p.exitCallbacks[k], cb)
}

// NodeVisits returns the nodes reached through pose links in the last update pass.
func (p *Proxy) NodeVisits() []NodeVisit { return p.nodeVisits }

// DebugData gathers a trace of the graph from the root.
func (p *Proxy) DebugData() *NodeDebugData {
	d := newNodeDebugData(p)
	d.AddDebugItem(fmt.Sprintf("%s (delta %.3f)", p.name, p.deltaSeconds), false)
	p.root.GatherDebugData(d.BranchFlow(1))
	return d
}

func (p *Proxy) recordNodeVisit(linkID int, weight float32) {
	p.nodeVisits = append(p.nodeVisits, NodeVisit{LinkID: linkID, Weight: weight})
}

// invariantViolation reports a programming error in the graph. It panics when debug checks
// are enabled and logs otherwise.
func (p *Proxy) invariantViolation(msg string) {
	if p.debugChecks {
		panic(fmt.Sprintf("anim: instance %q: %s", p.name, msg))
	}
	common.Logger().Warn("[Proxy] invariant violation", "instance", p.name, "detail", msg)
}

// checkPose scans a node's output for NaN and unnormalized rotations under debug checks.
func (p *Proxy) checkPose(out *PoseContext, n Node) {
	if !p.debugChecks {
		return
	}
	if err := out.Pose.Validate(); err != nil {
		p.invariantViolation(fmt.Sprintf("%T produced a bad pose: %v", n, err))
	}
}

// --- sync groups and asset players ---

// createTickRecord registers a record in the write buffer of the named group, or as an
// ungrouped player when group is empty.
func (p *Proxy) createTickRecord(group string) *TickRecord {
	rec := &TickRecord{}
	w := p.syncWriteIndex
	if group == "" {
		p.ungrouped[w] = append(p.ungrouped[w], rec)
		return rec
	}
	g, ok := p.syncGroups[w][group]
	if !ok {
		g = &SyncGroup{GroupLeaderIndex: -1}
		p.syncGroups[w][group] = g
	}
	g.ActivePlayers = append(g.ActivePlayers, rec)
	return rec
}

// SyncGroup returns the read buffer's state of the named group, or nil.
func (p *Proxy) SyncGroup(name string) *SyncGroup {
	return p.syncGroups[1-p.syncWriteIndex][name]
}

// tickAssetPlayerInstances ticks every sync group through its leader and then its
// followers, then every ungrouped player on its own.
func (p *Proxy) tickAssetPlayerInstances() {
	w := p.syncWriteIndex
	var out tickOutput
	for _, name := range common.SortedKeys(p.syncGroups[w]) {
		g := p.syncGroups[w][name]
		if len(g.ActivePlayers) == 0 {
			continue
		}
		g.prepare()
		p.tickSyncGroup(g, &out)
	}

	for _, rec := range p.ungrouped[w] {
		ctx := AssetTickContext{DeltaTime: rec.DeltaTime, RootMotionMode: p.rootMotionMode, leader: true, onlyOne: true}
		if seq, ok := rec.Asset.(*model.Sequence); ok {
			ctx.validMarkers = seq.MarkerNames()
		}
		out.reset()
		tickAssetPlayer(rec, &ctx, &out)
		p.commitTick(&out)
	}
}

func (p *Proxy) tickSyncGroup(g *SyncGroup, out *tickOutput) {
	base := AssetTickContext{RootMotionMode: p.rootMotionMode, validMarkers: g.ValidMarkers}

	var ctx AssetTickContext
	leader := -1
	for i, rec := range g.ActivePlayers {
		if rec.GroupRole == AlwaysFollower {
			continue
		}
		ctx = base
		ctx.DeltaTime = rec.DeltaTime
		ctx.leader = true
		savedTime, savedMarkers := *rec.TimeAccumulator, *rec.MarkerTick
		out.reset()
		tickAssetPlayer(rec, &ctx, out)
		if !g.CanUseMarkerSync() || ctx.syncPosition.IsValid() {
			leader = i
			break
		}
		*rec.TimeAccumulator, *rec.MarkerTick = savedTime, savedMarkers
	}
	if leader < 0 {
		// A group made only of followers is still driven by its first record.
		leader = max(0, slices.IndexFunc(g.ActivePlayers, func(rec *TickRecord) bool { return rec.GroupRole != AlwaysFollower }))
		ctx = base
		ctx.DeltaTime = g.ActivePlayers[leader].DeltaTime
		ctx.leader = true
		ctx.validMarkers = nil
		out.reset()
		tickAssetPlayer(g.ActivePlayers[leader], &ctx, out)
	}
	g.GroupLeaderIndex = leader
	g.MarkerSyncPosition = ctx.syncPosition
	p.commitTick(out)

	ctx.convertToFollower()
	for i, rec := range g.ActivePlayers {
		if i == leader {
			continue
		}
		out.reset()
		tickAssetPlayer(rec, &ctx, out)
		p.commitTick(out)
	}
}

func (p *Proxy) commitTick(out *tickOutput) {
	for _, n := range out.notifies {
		p.notifies.AddAnimNotifies([]model.NotifyEvent{n.event}, n.asset, n.weight)
	}
	for _, rm := range out.rootMotion {
		p.frameRootMotion.AccumulateWithBlend(rm.transform, rm.weight)
	}
}

// --- state machine weights ---

// RecordMachineWeight stores a machine's graph weight in the write buffer.
func (p *Proxy) RecordMachineWeight(machineIndex int, weight float32) {
	if w := p.machineWeights[p.syncWriteIndex]; machineIndex >= 0 && machineIndex < len(w) {
		w[machineIndex] = weight
	}
}

// RecordStateWeight stores a state's weight within its machine in the write buffer.
func (p *Proxy) RecordStateWeight(machineIndex, stateIndex int, weight float32) {
	sw := p.stateWeights[p.syncWriteIndex]
	if machineIndex < 0 || machineIndex >= len(sw) || stateIndex < 0 || stateIndex >= len(sw[machineIndex]) {
		return
	}
	sw[machineIndex][stateIndex] = weight
}

// RecordedMachineWeight returns a machine's weight from the last completed frame.
func (p *Proxy) RecordedMachineWeight(machineIndex int) float32 {
	if r := p.machineWeights[1-p.syncWriteIndex]; machineIndex >= 0 && machineIndex < len(r) {
		return r[machineIndex]
	}
	return 0
}

// RecordedStateWeight returns a state's weight within its machine from the last completed frame.
func (p *Proxy) RecordedStateWeight(machineIndex, stateIndex int) float32 {
	sw := p.stateWeights[1-p.syncWriteIndex]
	if machineIndex < 0 || machineIndex >= len(sw) || stateIndex < 0 || stateIndex >= len(sw[machineIndex]) {
		return 0
	}
	return sw[machineIndex][stateIndex]
}

// --- slot weights ---

// RegisterSlot makes a slot known in both buffers so its relevance is tracked from the
// first frame.
func (p *Proxy) RegisterSlot(slot string) {
	for i := range 2 {
		if _, ok := p.slotWeights[i][slot]; !ok {
			p.slotWeights[i][slot] = &slotTracker{}
		}
	}
}

// clearSlotNodeWeights resets the write buffer, carrying over the relevance of the last
// completed frame.
func (p *Proxy) clearSlotNodeWeights() {
	read := p.slotWeights[1-p.syncWriteIndex]
	for slot, t := range p.slotWeights[p.syncWriteIndex] {
		prev := false
		if r, ok := read[slot]; ok {
			prev = r.relevantThisTick
		}
		*t = slotTracker{wasRelevantOnPreviousTick: prev}
	}
}

// UpdateSlotNodeWeight records the montage weight a slot blended this frame and the graph
// weight reaching the slot.
//
// Parameters:
//   - slot: the slot name
//   - localWeight: the montage weight within the slot
//   - globalWeight: the graph weight reaching the slot node
func (p *Proxy) UpdateSlotNodeWeight(slot string, localWeight, globalWeight float32) {
	p.RegisterSlot(slot)
	t := p.slotWeights[p.syncWriteIndex][slot]
	t.localWeight = localWeight
	t.globalWeight = globalWeight
	t.relevantThisTick = t.relevantThisTick || common.IsRelevant(localWeight)
}

// IsSlotNodeRelevantForNotifies reports whether montage notifies on slot should fire: the
// slot was relevant in the last completed frame or the one before it.
func (p *Proxy) IsSlotNodeRelevantForNotifies(slot string) bool {
	t, ok := p.slotWeights[1-p.syncWriteIndex][slot]
	return ok && (t.relevantThisTick || t.wasRelevantOnPreviousTick)
}

// SlotNodeGlobalWeight returns the graph weight that reached slot in the last completed frame.
func (p *Proxy) SlotNodeGlobalWeight(slot string) float32 {
	if t, ok := p.slotWeights[1-p.syncWriteIndex][slot]; ok {
		return t.globalWeight
	}
	return 0
}

// SlotMontageLocalWeight returns the montage weight slot blended in the last completed frame.
func (p *Proxy) SlotMontageLocalWeight(slot string) float32 {
	if t, ok := p.slotWeights[1-p.syncWriteIndex][slot]; ok {
		return t.localWeight
	}
	return 0
}

// SetMontageEvaluationData replaces the montage snapshots slot nodes evaluate this frame.
// The montage manager calls it after PreUpdate and before UpdateAnimation.
func (p *Proxy) SetMontageEvaluationData(states []MontageEvaluationState) {
	p.montageEvaluation = append(p.montageEvaluation[:0], states...)
}

// MontageEvaluationData returns the montage snapshots of the current frame.
func (p *Proxy) MontageEvaluationData() []MontageEvaluationState { return p.montageEvaluation }
