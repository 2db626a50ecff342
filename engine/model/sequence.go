package model

import (
	"fmt"
	"slices"
	"sort"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Asset is implemented by every animation asset that can be played by the graph.
type Asset interface {
	// AssetName returns the asset's name for logs and debug traces.
	AssetName() string

	// Length returns the playable length in seconds.
	Length() float32

	// TargetSkeleton returns the skeleton the asset was authored against.
	TargetSkeleton() *Skeleton
}

// Sequence is a single keyframed animation (walk, run, attack, etc.).
type Sequence struct {
	// Name is the animation identifier.
	Name string

	// Skeleton is the skeleton the keys were authored against.
	Skeleton *Skeleton

	// Duration is the total length of the animation in seconds.
	Duration float32

	// RateScale multiplies every play rate applied to this sequence.
	RateScale float32

	// Channels contains keyframes for each animated bone.
	Channels []AnimationChannel

	// Curves are float tracks evaluated alongside the pose.
	Curves []FloatCurve

	// SyncMarkers are sorted by time.
	SyncMarkers []SyncMarker

	// Notifies are sorted by time.
	Notifies []NotifyEvent

	// EnableRootMotion extracts root bone motion instead of applying it to the pose.
	EnableRootMotion bool

	// Additive describes whether the sequence stores an additive delta pose.
	Additive AdditiveType

	channelByBone map[int32]int
}

var _ Asset = &Sequence{}

// NewSequence creates a Sequence for the given skeleton and applies the builder options.
//
// Parameters:
//   - name: the sequence name
//   - skeleton: the skeleton the sequence targets (must not be nil)
//   - duration: the sequence length in seconds
//   - options: functional options adding channels, curves, markers and notifies
//
// Returns:
//   - *Sequence: the constructed sequence
//   - error: ErrNilSkeleton if skeleton is nil, or an error for invalid channel data
func NewSequence(name string, skeleton *Skeleton, duration float32, options ...SequenceBuilderOption) (*Sequence, error) {
	if skeleton == nil {
		return nil, fmt.Errorf("sequence %q: %w", name, ErrNilSkeleton)
	}
	s := &Sequence{
		Name:          name,
		Skeleton:      skeleton,
		Duration:      duration,
		RateScale:     1,
		channelByBone: make(map[int32]int),
	}
	for _, opt := range options {
		opt(s)
	}

	for i, ch := range s.Channels {
		if ch.BoneIndex < 0 || int(ch.BoneIndex) >= skeleton.NumBones() {
			return nil, fmt.Errorf("sequence %q: channel %d targets bone %d outside skeleton of %d bones", name, i, ch.BoneIndex, skeleton.NumBones())
		}
		s.channelByBone[ch.BoneIndex] = i
	}
	slices.SortStableFunc(s.SyncMarkers, func(a, b SyncMarker) int { return compareTime(a.Time, b.Time) })
	slices.SortStableFunc(s.Notifies, func(a, b NotifyEvent) int { return compareTime(a.Time, b.Time) })
	return s, nil
}

func compareTime(a, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (s *Sequence) AssetName() string         { return s.Name }
func (s *Sequence) Length() float32           { return s.Duration }
func (s *Sequence) TargetSkeleton() *Skeleton { return s.Skeleton }

// Channel returns the channel animating the given skeleton bone, or nil.
//
// Parameters:
//   - boneIndex: the skeleton bone index
//
// Returns:
//   - *AnimationChannel: the channel or nil if the bone is not animated
func (s *Sequence) Channel(boneIndex int32) *AnimationChannel {
	if i, ok := s.channelByBone[boneIndex]; ok {
		return &s.Channels[i]
	}
	return nil
}

// SampleBone samples the bone's local transform at time. Tracks the bone does not have
// fall back to the matching component of ref.
//
// Parameters:
//   - boneIndex: the skeleton bone index
//   - time: the sample time in seconds
//   - ref: the transform to use for missing tracks
//
// Returns:
//   - Transform: the sampled local transform
func (s *Sequence) SampleBone(boneIndex int32, time float32, ref Transform) Transform {
	ch := s.Channel(boneIndex)
	if ch == nil {
		return ref
	}
	out := ref
	if len(ch.PositionKeys) > 0 {
		out.Translation = sampleVector(ch.PositionKeys, time)
	}
	if len(ch.RotationKeys) > 0 {
		out.Rotation = sampleQuat(ch.RotationKeys, time)
	}
	if len(ch.ScaleKeys) > 0 {
		out.Scale = sampleVector(ch.ScaleKeys, time)
	}
	return out
}

// KeyIndicesFromTime finds the pair of keys surrounding time and the alpha between them.
//
// Parameters:
//   - count: the number of keys
//   - keyTime: returns the time of key i
//   - time: the sample time
//
// Returns:
//   - int: the index of the key at or before time
//   - int: the index of the key after time
//   - float32: the interpolation alpha between the two keys
func KeyIndicesFromTime(count int, keyTime func(i int) float32, time float32) (int, int, float32) {
	if count <= 1 || time <= keyTime(0) {
		return 0, 0, 0
	}
	if time >= keyTime(count-1) {
		return count - 1, count - 1, 0
	}
	next := sort.Search(count, func(i int) bool { return keyTime(i) > time })
	prev := next - 1
	span := keyTime(next) - keyTime(prev)
	if span <= common.SmallNumber {
		return prev, prev, 0
	}
	return prev, next, (time - keyTime(prev)) / span
}

func sampleVector(keys []VectorKeyframe, time float32) mgl32.Vec3 {
	a, b, alpha := KeyIndicesFromTime(len(keys), func(i int) float32 { return keys[i].Time }, time)
	if a == b {
		return keys[a].Value
	}
	return keys[a].Value.Add(keys[b].Value.Sub(keys[a].Value).Mul(alpha))
}

func sampleQuat(keys []QuaternionKeyframe, time float32) mgl32.Quat {
	a, b, alpha := KeyIndicesFromTime(len(keys), func(i int) float32 { return keys[i].Time }, time)
	if a == b {
		return keys[a].Value.Normalize()
	}
	from, to := keys[a].Value, keys[b].Value
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return mgl32.QuatNlerp(from, to, alpha)
}

// EvaluateCurve samples a float curve at time.
//
// Parameters:
//   - curve: the curve to sample
//   - time: the sample time in seconds
//
// Returns:
//   - float32: the interpolated value, or 0 for an empty curve
func EvaluateCurve(curve *FloatCurve, time float32) float32 {
	if len(curve.Keys) == 0 {
		return 0
	}
	a, b, alpha := KeyIndicesFromTime(len(curve.Keys), func(i int) float32 { return curve.Keys[i].Time }, time)
	return common.Lerp(curve.Keys[a].Value, curve.Keys[b].Value, alpha)
}

// MarkerNames returns the distinct sync marker names in timeline order of first appearance.
func (s *Sequence) MarkerNames() []string {
	var names []string
	for _, m := range s.SyncMarkers {
		if !slices.Contains(names, m.Name) {
			names = append(names, m.Name)
		}
	}
	return names
}

// NotifiesInRange appends the notifies crossed when moving from prev by delta seconds.
// Forward movement triggers notifies in (prev, prev+delta]; reverse movement triggers
// notifies in [prev+delta, prev). Looping sequences wrap around the end.
//
// Parameters:
//   - prev: the time before advancing
//   - delta: the signed distance moved
//   - looping: whether movement wraps at the sequence boundaries
//   - out: the slice to append to
//
// Returns:
//   - []NotifyEvent: out with the crossed notifies appended
func (s *Sequence) NotifiesInRange(prev, delta float32, looping bool, out []NotifyEvent) []NotifyEvent {
	if len(s.Notifies) == 0 || delta == 0 {
		return out
	}
	length := s.Duration
	remaining := delta
	cur := prev
	for iter := 0; iter < 4 && remaining != 0; iter++ {
		if remaining > 0 {
			end := cur + remaining
			if end > length && looping {
				out = s.appendForward(cur, length, out)
				remaining -= length - cur
				cur = 0
				continue
			}
			out = s.appendForward(cur, min(end, length), out)
			return out
		}
		end := cur + remaining
		if end < 0 && looping {
			out = s.appendBackward(0, cur, out)
			remaining += cur
			cur = length
			continue
		}
		out = s.appendBackward(max(end, 0), cur, out)
		return out
	}
	return out
}

func (s *Sequence) appendForward(from, to float32, out []NotifyEvent) []NotifyEvent {
	for _, n := range s.Notifies {
		if n.Time > from && n.Time <= to {
			out = append(out, n)
		}
	}
	return out
}

func (s *Sequence) appendBackward(from, to float32, out []NotifyEvent) []NotifyEvent {
	for i := len(s.Notifies) - 1; i >= 0; i-- {
		n := s.Notifies[i]
		if n.Time >= from && n.Time < to {
			out = append(out, n)
		}
	}
	return out
}

// RootTransform samples the first root bone at time.
func (s *Sequence) RootTransform(time float32) Transform {
	if len(s.Skeleton.RootBoneIndices) == 0 {
		return IdentityTransform()
	}
	root := s.Skeleton.RootBoneIndices[0]
	return s.SampleBone(root, time, s.Skeleton.Bones[root].LocalTransform)
}

// ExtractRootMotion returns the root bone delta accumulated while moving from start by delta
// seconds, splitting the range at the loop boundary when looping.
//
// Parameters:
//   - start: the time before advancing
//   - delta: the signed distance moved
//   - looping: whether movement wraps at the sequence boundaries
//
// Returns:
//   - Transform: the accumulated root motion delta
func (s *Sequence) ExtractRootMotion(start, delta float32, looping bool) Transform {
	acc := IdentityTransform()
	length := s.Duration
	cur := start
	remaining := delta
	for iter := 0; iter < 8 && common.Abs(remaining) > common.SmallNumber; iter++ {
		target := cur + remaining
		segEnd := common.Clamp(target, 0, length)
		acc = acc.Compose(s.RootTransform(segEnd).RelativeTo(s.RootTransform(cur)))
		remaining -= segEnd - cur
		switch {
		case looping && segEnd >= length && remaining > 0:
			cur = 0
		case looping && segEnd <= 0 && remaining < 0:
			cur = length
		default:
			return acc
		}
	}
	return acc
}

// Compose applies delta after t, with delta's translation expressed in t's rotated frame.
//
// Parameters:
//   - delta: the transform to append
//
// Returns:
//   - Transform: the combined transform
func (t Transform) Compose(delta Transform) Transform {
	return Transform{
		Translation: t.Translation.Add(t.Rotation.Rotate(delta.Translation)),
		Rotation:    t.Rotation.Mul(delta.Rotation).Normalize(),
		Scale:       mgl32.Vec3{t.Scale[0] * delta.Scale[0], t.Scale[1] * delta.Scale[1], t.Scale[2] * delta.Scale[2]},
	}
}
