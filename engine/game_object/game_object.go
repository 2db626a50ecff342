package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-anim/engine/animator"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

type gameObject struct {
	mu *sync.RWMutex

	id        uint64
	name      string
	enabled   atomic.Bool
	ephemeral bool
	animator  animator.Animator

	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3

	// applyRootMotion gates whether consumed root motion moves the object.
	applyRootMotion bool
}

// GameObject defines the interface for a scene entity driven by an Animator.
// The object owns its world transform; root motion extracted by the Animator is consumed
// once per frame and composed onto that transform.
type GameObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID, or 0 if the object was never added to a scene
	ID() uint64

	// Name returns the object's display name.
	Name() string

	// Enabled returns whether this object is ticked by its scene.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Ephemeral returns whether this object is ephemeral.
	// Ephemeral objects are ticked for a single scene update and then dropped.
	//
	// Returns:
	//   - bool: true if ephemeral
	Ephemeral() bool

	// Animator returns the Animator driving this object, or nil.
	Animator() animator.Animator

	// Position returns the world-space position.
	Position() mgl32.Vec3

	// Rotation returns the world-space orientation.
	Rotation() mgl32.Quat

	// Scale returns the world-space scale.
	Scale() mgl32.Vec3

	// WorldTransform returns the object's world transform as a decomposed Transform.
	//
	// Returns:
	//   - model.Transform: translation, rotation and scale of the object
	WorldTransform() model.Transform

	// WorldMatrix returns the object's world transform as a 4x4 matrix (translate * rotate * scale).
	//
	// Returns:
	//   - mgl32.Mat4: the world matrix
	WorldMatrix() mgl32.Mat4

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// SetEnabled sets whether the object is ticked by its scene.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetAnimator replaces the Animator driving this object.
	//
	// Parameters:
	//   - anim: the Animator to associate, or nil to detach
	SetAnimator(anim animator.Animator)

	// SetPosition sets the world-space position.
	SetPosition(p mgl32.Vec3)

	// SetRotation sets the world-space orientation. The quaternion is normalized.
	SetRotation(q mgl32.Quat)

	// SetScale sets the world-space scale.
	SetScale(s mgl32.Vec3)

	// ApplyRootMotion consumes the root motion accumulated by the Animator and composes it onto
	// the world transform. The translation is scaled by the object's scale and rotated into world
	// space before it is added. With root motion disabled the motion is consumed but not applied.
	//
	// Parameters:
	//   - alpha: the fraction of the accumulated motion to consume, in [0, 1]
	//
	// Returns:
	//   - model.Transform: the consumed component-space delta
	ApplyRootMotion(alpha float32) model.Transform
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject configured with the given options.
// The object starts enabled, at the origin, with identity rotation and unit scale.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		mu:              &sync.RWMutex{},
		rotation:        mgl32.QuatIdent(),
		scale:           mgl32.Vec3{1, 1, 1},
		applyRootMotion: true,
	}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	if obj.name == "" && obj.animator != nil {
		obj.name = obj.animator.Name()
	}
	return obj
}

func (g *gameObject) ID() uint64 {
	return atomic.LoadUint64(&g.id)
}

func (g *gameObject) Name() string {
	return g.name
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) Ephemeral() bool {
	return g.ephemeral
}

func (g *gameObject) Animator() animator.Animator {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.animator
}

func (g *gameObject) Position() mgl32.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.position
}

func (g *gameObject) Rotation() mgl32.Quat {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rotation
}

func (g *gameObject) Scale() mgl32.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scale
}

func (g *gameObject) WorldTransform() model.Transform {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return model.Transform{Translation: g.position, Rotation: g.rotation, Scale: g.scale}
}

func (g *gameObject) WorldMatrix() mgl32.Mat4 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return mgl32.Translate3D(g.position[0], g.position[1], g.position[2]).
		Mul4(g.rotation.Mat4()).
		Mul4(mgl32.Scale3D(g.scale[0], g.scale[1], g.scale[2]))
}

func (g *gameObject) SetID(id uint64) {
	atomic.StoreUint64(&g.id, id)
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) SetAnimator(anim animator.Animator) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.animator = anim
}

func (g *gameObject) SetPosition(p mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = p
}

func (g *gameObject) SetRotation(q mgl32.Quat) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotation = q.Normalize()
}

func (g *gameObject) SetScale(s mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scale = s
}

func (g *gameObject) ApplyRootMotion(alpha float32) model.Transform {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.animator == nil {
		return model.IdentityTransform()
	}
	delta := g.animator.ConsumeRootMotion(alpha)
	if !g.applyRootMotion {
		return delta
	}

	local := mgl32.Vec3{
		delta.Translation[0] * g.scale[0],
		delta.Translation[1] * g.scale[1],
		delta.Translation[2] * g.scale[2],
	}
	g.position = g.position.Add(g.rotation.Rotate(local))
	g.rotation = g.rotation.Mul(delta.Rotation).Normalize()
	return delta
}
