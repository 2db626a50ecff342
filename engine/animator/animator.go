package animator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/anim"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
)

var (
	// ErrNilMontage is returned when a montage call is made without a montage.
	ErrNilMontage = errors.New("animator: nil montage")

	// ErrInvalidPlayRate is returned when a montage is played at rate zero.
	ErrInvalidPlayRate = errors.New("animator: play rate must not be zero")

	// ErrMontageNotActive is returned when a montage call targets a montage that is not playing.
	ErrMontageNotActive = errors.New("animator: montage not active")
)

// NotifyHandler receives every notify fired by an animator, on the game thread in PostUpdate.
type NotifyHandler func(a Animator, n anim.AnimNotify)

// MontageEventHandler receives montage lifecycle events, on the game thread in PostUpdate.
// interrupted is true when another montage or an explicit stop cut the montage short.
type MontageEventHandler func(a Animator, m *model.Montage, interrupted bool)

// animator is the implementation of the Animator interface.
type animator struct {
	mu *sync.Mutex

	name         string
	class        *anim.Class
	proxy        *anim.Proxy
	proxyOptions []anim.ProxyBuilderOption

	montages []*montageInstance
	nextID   int
	states   []anim.MontageEvaluationState

	outPose  *pose.Pose
	outCurve *pose.Curve

	notifyHandler      NotifyHandler
	blendingOutHandler MontageEventHandler
	endedHandler       MontageEventHandler

	// ended holds montages that terminated since the last PostUpdate.
	ended []*montageInstance
}

// Animator defines the public interface of an animation instance.
//
// An Animator owns an anim.Proxy built from a Class and the montages playing on it. A frame
// runs in three phases: PreUpdate and PostUpdate on the game thread, and UpdateAnimation,
// which may run on a worker when CanUpdateInWorkerThread reports true.
type Animator interface {
	// Name returns the instance name used in logs.
	Name() string

	// Proxy returns the graph instance driven by this animator.
	Proxy() *anim.Proxy

	// Properties returns the property bag read by the graph's node inputs.
	Properties() *anim.PropertyBag

	// CanUpdateInWorkerThread reports whether UpdateAnimation may run off the game thread.
	CanUpdateInWorkerThread() bool

	// PreUpdate starts a frame on the game thread: it advances every montage, queues their
	// notifies and root motion, and hands the montage snapshots to the graph.
	//
	// Parameters:
	//   - deltaSeconds: the frame delta in seconds
	PreUpdate(deltaSeconds float32)

	// UpdateAnimation updates and evaluates the graph. It touches no game-thread state.
	UpdateAnimation()

	// PostUpdate finishes the frame on the game thread and dispatches notifies and
	// montage events to the registered handlers.
	PostUpdate()

	// Tick runs PreUpdate, UpdateAnimation and PostUpdate in order.
	//
	// Parameters:
	//   - deltaSeconds: the frame delta in seconds
	Tick(deltaSeconds float32)

	// Pose returns the local-space pose of the last UpdateAnimation, or nil before the first.
	Pose() *pose.Pose

	// Curve returns the curve values of the last UpdateAnimation, or nil before the first.
	Curve() *pose.Curve

	// Notifies returns the notifies of the last completed frame.
	Notifies() []anim.AnimNotify

	// ConsumeRootMotion removes alpha of the extracted root motion and returns it.
	//
	// Parameters:
	//   - alpha: the fraction to consume, 1 for all of it
	//
	// Returns:
	//   - model.Transform: the consumed root motion delta
	ConsumeRootMotion(alpha float32) model.Transform

	// RecalcRequiredBones switches the graph to a new required-bone set.
	RecalcRequiredBones(bones []int32) error

	// PlayMontage starts m, interrupting every active montage that shares a slot with it.
	// Interrupted montages blend out over m's blend in time.
	//
	// Parameters:
	//   - m: the montage to play
	//   - playRate: the playback rate; negative plays backward
	//   - startPosition: the montage position to start from
	//
	// Returns:
	//   - int: an id identifying this play of the montage
	//   - error: ErrNilMontage, ErrInvalidPlayRate or a wrapped model.ErrIncompatibleSkeleton
	PlayMontage(m *model.Montage, playRate, startPosition float32) (int, error)

	// StopMontage blends out the active instance of m, or every montage when m is nil.
	//
	// Parameters:
	//   - m: the montage to stop, or nil for all
	//   - blendOutTime: the blend out duration; negative uses the montage's own blend out
	StopMontage(m *model.Montage, blendOutTime float32)

	// PauseMontage freezes the playhead of m, or of every montage when m is nil.
	PauseMontage(m *model.Montage)

	// ResumeMontage restarts a paused m, or every paused montage when m is nil.
	ResumeMontage(m *model.Montage)

	// JumpToSection moves the playhead of m to the start of the named section.
	//
	// Returns:
	//   - error: ErrMontageNotActive, or a wrapped model.ErrSectionNotFound
	JumpToSection(m *model.Montage, section string) error

	// SetNextSection relinks the section that follows from for the active instance of m.
	// An empty to ends playback after from.
	//
	// Returns:
	//   - error: ErrMontageNotActive, or a wrapped model.ErrSectionNotFound
	SetNextSection(m *model.Montage, from, to string) error

	// IsMontageActive reports whether m is playing and not blending out.
	IsMontageActive(m *model.Montage) bool

	// MontagePosition returns the playhead of the active instance of m, or 0.
	MontagePosition(m *model.Montage) float32

	// MontageWeight returns the blend weight of the most recent instance of m, or 0.
	MontageWeight(m *model.Montage) float32

	// MontageCurrentSection returns the section name under the playhead of m, or "".
	MontageCurrentSection(m *model.Montage) string

	// MontageInstanceCount returns the number of montage instances still contributing,
	// including ones blending out.
	MontageInstanceCount() int
}

var _ Animator = &animator{}

// NewAnimator creates an Animator for class and initializes its graph.
//
// Parameters:
//   - class: the graph class to instantiate
//   - options: variadic list of AnimatorBuilderOption functions to configure the Animator
//
// Returns:
//   - Animator: the new animation instance
//   - error: an error if the proxy could not be created
func NewAnimator(class *anim.Class, options ...AnimatorBuilderOption) (Animator, error) {
	a := &animator{
		mu:    &sync.Mutex{},
		class: class,
	}
	for _, opt := range options {
		opt(a)
	}
	if class != nil && a.name == "" {
		a.name = class.Name()
	}

	opts := append([]anim.ProxyBuilderOption{anim.WithName(a.name)}, a.proxyOptions...)
	p, err := anim.NewProxy(class, opts...)
	if err != nil {
		return nil, fmt.Errorf("animator %q: %w", a.name, err)
	}
	a.proxy = p
	p.Initialize()
	common.Logger().Debug("[Animator] created", "name", a.name, "bones", p.BoneContainer().NumBones())
	return a, nil
}

func (a *animator) Name() string                        { return a.name }
func (a *animator) Proxy() *anim.Proxy                  { return a.proxy }
func (a *animator) Properties() *anim.PropertyBag       { return a.proxy.Properties() }
func (a *animator) CanUpdateInWorkerThread() bool       { return a.proxy.CanUpdateInWorkerThread() }
func (a *animator) Notifies() []anim.AnimNotify         { return a.proxy.Notifies() }
func (a *animator) RecalcRequiredBones(b []int32) error { return a.proxy.RecalcRequiredBones(b) }

func (a *animator) PreUpdate(deltaSeconds float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.proxy.PreUpdate(deltaSeconds)
	a.states = a.states[:0]
	live := a.montages[:0]
	for _, m := range a.montages {
		m.advance(deltaSeconds, a.proxy)
		if m.terminated {
			a.ended = append(a.ended, m)
			common.Logger().Debug("[Animator] montage ended", "name", a.name, "montage", m.montage.Name, "interrupted", m.interrupted)
			continue
		}
		live = append(live, m)
		a.states = append(a.states, m.evaluationState())
	}
	clear(a.montages[len(live):])
	a.montages = live
	a.proxy.SetMontageEvaluationData(a.states)
}

func (a *animator) UpdateAnimation() {
	a.proxy.UpdateAnimation()
	a.proxy.PreEvaluateAnimation()
	outPose, outCurve := a.proxy.Evaluate()

	a.mu.Lock()
	a.outPose, a.outCurve = outPose, outCurve
	a.mu.Unlock()
}

func (a *animator) PostUpdate() {
	a.proxy.PostUpdate()

	a.mu.Lock()
	var blendingOut []*montageInstance
	for _, m := range a.montages {
		if m.stopped && !m.blendingOutFired {
			m.blendingOutFired = true
			blendingOut = append(blendingOut, m)
		}
	}
	ended := a.ended
	a.ended = nil
	notifyHandler, blendingOutHandler, endedHandler := a.notifyHandler, a.blendingOutHandler, a.endedHandler
	a.mu.Unlock()

	// Handlers run unlocked so they may call back into the animator.
	if notifyHandler != nil {
		for _, n := range a.proxy.Notifies() {
			notifyHandler(a, n)
		}
	}
	if blendingOutHandler != nil {
		for _, m := range blendingOut {
			blendingOutHandler(a, m.montage, m.interrupted)
		}
	}
	if endedHandler != nil {
		for _, m := range ended {
			endedHandler(a, m.montage, m.interrupted)
		}
	}
}

func (a *animator) Tick(deltaSeconds float32) {
	a.PreUpdate(deltaSeconds)
	a.UpdateAnimation()
	a.PostUpdate()
}

func (a *animator) Pose() *pose.Pose {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outPose
}

func (a *animator) Curve() *pose.Curve {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outCurve
}

func (a *animator) ConsumeRootMotion(alpha float32) model.Transform {
	return a.proxy.ConsumeExtractedRootMotion(alpha)
}

func (a *animator) PlayMontage(m *model.Montage, playRate, startPosition float32) (int, error) {
	if m == nil {
		return 0, fmt.Errorf("animator %q: %w", a.name, ErrNilMontage)
	}
	if playRate == 0 {
		return 0, fmt.Errorf("animator %q montage %q: %w", a.name, m.Name, ErrInvalidPlayRate)
	}
	if sk := a.proxy.Skeleton(); !sk.IsCompatible(m.Skeleton) {
		return 0, fmt.Errorf("animator %q montage %q: %w", a.name, m.Name, model.ErrIncompatibleSkeleton)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, other := range a.montages {
		if !other.stopped && sharesSlot(other.montage, m) {
			other.stop(m.BlendIn, true)
		}
	}
	a.nextID++
	a.montages = append(a.montages, newMontageInstance(a.nextID, m, playRate, startPosition))
	common.Logger().Debug("[Animator] montage started", "name", a.name, "montage", m.Name, "rate", playRate, "position", startPosition)
	return a.nextID, nil
}

func sharesSlot(a, b *model.Montage) bool {
	for _, t := range a.SlotTracks {
		if b.IsValidSlot(t.SlotName) {
			return true
		}
	}
	return false
}

// active returns the newest instance of m that is not blending out, or nil.
func (a *animator) active(m *model.Montage) *montageInstance {
	for i := len(a.montages) - 1; i >= 0; i-- {
		if mi := a.montages[i]; mi.montage == m && !mi.stopped {
			return mi
		}
	}
	return nil
}

// latest returns the newest instance of m, or nil.
func (a *animator) latest(m *model.Montage) *montageInstance {
	for i := len(a.montages) - 1; i >= 0; i-- {
		if a.montages[i].montage == m {
			return a.montages[i]
		}
	}
	return nil
}

func (a *animator) StopMontage(m *model.Montage, blendOutTime float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, mi := range a.montages {
		if m != nil && mi.montage != m {
			continue
		}
		settings := mi.montage.BlendOut
		if blendOutTime >= 0 {
			settings.Time = blendOutTime
		}
		mi.stop(settings, true)
	}
}

func (a *animator) PauseMontage(m *model.Montage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, mi := range a.montages {
		if m == nil || mi.montage == m {
			mi.paused = true
		}
	}
}

func (a *animator) ResumeMontage(m *model.Montage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, mi := range a.montages {
		if m == nil || mi.montage == m {
			mi.paused = false
		}
	}
}

func (a *animator) JumpToSection(m *model.Montage, section string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	mi := a.active(m)
	if mi == nil {
		return fmt.Errorf("animator %q: jump to section %q: %w", a.name, section, ErrMontageNotActive)
	}
	i := m.SectionIndex(section)
	if i < 0 {
		return fmt.Errorf("animator %q montage %q: section %q: %w", a.name, m.Name, section, model.ErrSectionNotFound)
	}
	mi.jumpToSection(i)
	return nil
}

func (a *animator) SetNextSection(m *model.Montage, from, to string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	mi := a.active(m)
	if mi == nil {
		return fmt.Errorf("animator %q: set next section of %q: %w", a.name, from, ErrMontageNotActive)
	}
	fi := m.SectionIndex(from)
	if fi < 0 {
		return fmt.Errorf("animator %q montage %q: section %q: %w", a.name, m.Name, from, model.ErrSectionNotFound)
	}
	ti := -1
	if to != "" {
		if ti = m.SectionIndex(to); ti < 0 {
			return fmt.Errorf("animator %q montage %q: section %q: %w", a.name, m.Name, to, model.ErrSectionNotFound)
		}
	}
	mi.nextSections[fi] = ti
	return nil
}

func (a *animator) IsMontageActive(m *model.Montage) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active(m) != nil
}

func (a *animator) MontagePosition(m *model.Montage) float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if mi := a.active(m); mi != nil {
		return mi.position
	}
	return 0
}

func (a *animator) MontageWeight(m *model.Montage) float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if mi := a.latest(m); mi != nil {
		return mi.weight()
	}
	return 0
}

func (a *animator) MontageCurrentSection(m *model.Montage) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if mi := a.active(m); mi != nil {
		return m.Sections[mi.section].Name
	}
	return ""
}

func (a *animator) MontageInstanceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.montages)
}
