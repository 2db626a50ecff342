package model

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// BlendSettings describes a timed blend: its duration and easing curve.
type BlendSettings struct {
	// Time is the blend duration in seconds. Zero or negative blends instantly.
	Time float32

	// Easing shapes alpha over the blend. Nil means ease.Linear.
	Easing ease.TweenFunc
}

// EasingFunc returns the configured easing, defaulting to linear.
func (b BlendSettings) EasingFunc() ease.TweenFunc {
	if b.Easing == nil {
		return ease.Linear
	}
	return b.Easing
}

// Alpha returns the eased blend alpha after elapsed seconds. The result is exactly 1
// once elapsed reaches Time.
//
// Parameters:
//   - elapsed: time since the blend started
//
// Returns:
//   - float32: alpha in [0, 1] for monotone easings
func (b BlendSettings) Alpha(elapsed float32) float32 {
	if b.Time <= 0 || elapsed >= b.Time {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return b.EasingFunc()(elapsed, 0, 1, b.Time)
}

// AlphaBlend drives a weight from a begin value to a desired value over a BlendSettings
// duration using a gween tween. Montage blend-in/out and crossfades share it.
type AlphaBlend struct {
	settings BlendSettings
	tween    *gween.Tween
	begin    float32
	desired  float32
	value    float32
	elapsed  float32
	finished bool
}

// NewAlphaBlend starts a blend from begin to desired. A zero or negative duration
// finishes immediately at desired.
//
// Parameters:
//   - settings: the blend duration and easing
//   - begin: the starting value
//   - desired: the target value
//
// Returns:
//   - AlphaBlend: the running blend
func NewAlphaBlend(settings BlendSettings, begin, desired float32) AlphaBlend {
	a := AlphaBlend{settings: settings, begin: begin, desired: desired, value: begin}
	if settings.Time <= 0 || begin == desired {
		a.value = desired
		a.finished = true
		return a
	}
	a.tween = gween.New(begin, desired, settings.Time, settings.EasingFunc())
	return a
}

// Update advances the blend by dt seconds.
//
// Returns:
//   - float32: the current value
//   - bool: true once the desired value has been reached
func (a *AlphaBlend) Update(dt float32) (float32, bool) {
	if a.finished {
		return a.value, true
	}
	a.elapsed += dt
	a.value, a.finished = a.tween.Update(dt)
	if a.finished {
		a.value = a.desired
	}
	return a.value, a.finished
}

// Value returns the current blended value.
func (a *AlphaBlend) Value() float32 { return a.value }

// Desired returns the target value.
func (a *AlphaBlend) Desired() float32 { return a.desired }

// Alpha returns the blend progress in [0, 1].
func (a *AlphaBlend) Alpha() float32 {
	if a.finished {
		return 1
	}
	return common.Clamp01(a.elapsed / a.settings.Time)
}

// Remaining returns the seconds left before the blend completes.
func (a *AlphaBlend) Remaining() float32 {
	if a.finished {
		return 0
	}
	return max(a.settings.Time-a.elapsed, 0)
}

// IsComplete reports whether the blend has reached its desired value.
func (a *AlphaBlend) IsComplete() bool { return a.finished }

// BlendProfileEntry scales how fast a single bone blends during a transition.
type BlendProfileEntry struct {
	BoneName string
	Scale    float32
}

// BlendProfile assigns per-bone blend speed scales, letting some bones finish a crossfade
// before others.
type BlendProfile struct {
	Name     string
	Skeleton *Skeleton
	Entries  []BlendProfileEntry
}

// BoneBlendScale returns the scale for the skeleton bone, inherited from the nearest
// ancestor that has an entry. Bones with no entry on their chain use 1.
//
// Parameters:
//   - boneIndex: the skeleton bone index
//
// Returns:
//   - float32: the blend scale
func (p *BlendProfile) BoneBlendScale(boneIndex int32) float32 {
	if p == nil || p.Skeleton == nil {
		return 1
	}
	for b := boneIndex; b >= 0; b = p.Skeleton.ParentIndex(b) {
		name := p.Skeleton.Bones[b].Name
		for _, e := range p.Entries {
			if e.BoneName == name {
				return e.Scale
			}
		}
	}
	return 1
}

// ScaledBoneAlpha converts an overall blend alpha into a per-bone alpha for a bone with
// the given blend scale. Scales above one reach full weight sooner; the result is 1 when
// alpha is 1.
//
// Parameters:
//   - alpha: the overall transition alpha
//   - scale: the bone's blend scale
//
// Returns:
//   - float32: the per-bone alpha
func ScaledBoneAlpha(alpha, scale float32) float32 {
	if scale <= 0 {
		return alpha
	}
	weighted := alpha * scale
	denom := weighted + (1 - alpha)
	if denom <= common.SmallNumber {
		return 1
	}
	return common.Clamp01(weighted / denom)
}
