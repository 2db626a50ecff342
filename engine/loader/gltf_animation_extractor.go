package loader

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// stepHoldEpsilon is how long before the next key a STEP sampler holds its previous value.
const stepHoldEpsilon = 1e-4

// gltfAnimationExtractorImpl is the implementation of the gltfAnimationExtractor interface.
type gltfAnimationExtractorImpl struct {
	parser gltfParser
}

// gltfAnimationExtractor converts glTF animations into sequences for a skeleton.
//
// The nodeToBone mapping comes from the skeleton extractor and routes each channel to the
// bone it animates after topological sorting. Channels whose node is not mapped are dropped.
type gltfAnimationExtractor interface {
	// ExtractSequence extracts a single animation as a sequence.
	//
	// Parameters:
	//   - animIndex: the index of the animation in the document
	//   - skeleton: the skeleton the sequence targets
	//   - nodeToBone: maps glTF node index to skeleton bone index
	//   - options: extra sequence options appended after the ones read from the file
	//
	// Returns:
	//   - *model.Sequence: the extracted sequence
	//   - error: error if extraction fails
	ExtractSequence(animIndex int, skeleton *model.Skeleton, nodeToBone map[int]int32, options ...model.SequenceBuilderOption) (*model.Sequence, error)
}

var _ gltfAnimationExtractor = &gltfAnimationExtractorImpl{}

// newGLTFAnimationExtractor creates a new animation extractor for a parsed document.
func newGLTFAnimationExtractor(parser gltfParser) gltfAnimationExtractor {
	return &gltfAnimationExtractorImpl{parser: parser}
}

func (e *gltfAnimationExtractorImpl) ExtractSequence(animIndex int, skeleton *model.Skeleton, nodeToBone map[int]int32, options ...model.SequenceBuilderOption) (*model.Sequence, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if animIndex < 0 || animIndex >= len(doc.Animations) {
		return nil, fmt.Errorf("animation index %d out of range", animIndex)
	}

	anim := &doc.Animations[animIndex]
	name := anim.Name
	if name == "" {
		name = fmt.Sprintf("animation_%d", animIndex)
	}

	// translation, rotation and scale of one bone arrive as separate glTF channels
	channelMap := make(map[int32]*model.AnimationChannel)
	var duration float32

	for i := range anim.Channels {
		ch := &anim.Channels[i]
		if ch.Target.Node == nil || ch.Target.Path == gltfAnimPathWeights {
			continue
		}
		boneIndex, ok := nodeToBone[*ch.Target.Node]
		if !ok {
			continue
		}
		if ch.Sampler < 0 || ch.Sampler >= len(anim.Samplers) {
			return nil, fmt.Errorf("animation %q channel %d: invalid sampler index %d", name, i, ch.Sampler)
		}
		sampler := &anim.Samplers[ch.Sampler]

		times, err := e.parser.ReadScalarAccessor(sampler.Input)
		if err != nil {
			return nil, fmt.Errorf("animation %q channel %d: failed to read timestamps: %w", name, i, err)
		}
		if len(times) > 0 {
			duration = max(duration, times[len(times)-1])
		}

		animCh, exists := channelMap[boneIndex]
		if !exists {
			animCh = &model.AnimationChannel{BoneIndex: boneIndex}
			channelMap[boneIndex] = animCh
		}

		switch ch.Target.Path {
		case gltfAnimPathTranslation, gltfAnimPathScale:
			values, err := e.parser.ReadVec3Accessor(sampler.Output)
			if err != nil {
				return nil, fmt.Errorf("animation %q channel %d: failed to read %s values: %w", name, i, ch.Target.Path, err)
			}
			values = gltfSplineValues(values, sampler.Interpolation, len(times))
			keys := make([]model.VectorKeyframe, min(len(times), len(values)))
			for j := range keys {
				keys[j] = model.VectorKeyframe{Time: times[j], Value: values[j]}
			}
			if sampler.Interpolation == gltfAnimInterpolationStep {
				keys = gltfStepKeys(keys, func(k model.VectorKeyframe) float32 { return k.Time },
					func(k model.VectorKeyframe, t float32) model.VectorKeyframe { k.Time = t; return k })
			}
			if ch.Target.Path == gltfAnimPathTranslation {
				animCh.PositionKeys = keys
			} else {
				animCh.ScaleKeys = keys
			}

		case gltfAnimPathRotation:
			values, err := e.parser.ReadVec4Accessor(sampler.Output)
			if err != nil {
				return nil, fmt.Errorf("animation %q channel %d: failed to read rotation values: %w", name, i, err)
			}
			values = gltfSplineValues(values, sampler.Interpolation, len(times))
			keys := make([]model.QuaternionKeyframe, min(len(times), len(values)))
			for j := range keys {
				keys[j] = model.QuaternionKeyframe{Time: times[j], Value: gltfQuat(values[j])}
			}
			if sampler.Interpolation == gltfAnimInterpolationStep {
				keys = gltfStepKeys(keys, func(k model.QuaternionKeyframe) float32 { return k.Time },
					func(k model.QuaternionKeyframe, t float32) model.QuaternionKeyframe { k.Time = t; return k })
			}
			animCh.RotationKeys = keys
		}
	}

	channels := make([]model.AnimationChannel, 0, len(channelMap))
	for _, ch := range channelMap {
		channels = append(channels, *ch)
	}
	slices.SortFunc(channels, func(a, b model.AnimationChannel) int { return cmp.Compare(a.BoneIndex, b.BoneIndex) })

	opts := append([]model.SequenceBuilderOption{model.WithChannels(channels...)}, gltfExtrasOptions(anim.Extras)...)
	opts = append(opts, options...)
	return model.NewSequence(name, skeleton, duration, opts...)
}

// --- Helper Functions ---

// gltfSplineValues keeps the value element of each (in-tangent, value, out-tangent) triplet
// of a CUBICSPLINE sampler. The sequence is then sampled linearly between the keys.
func gltfSplineValues[T any](values []T, interpolation string, keyCount int) []T {
	if interpolation != gltfAnimInterpolationCubicSpline || len(values) < keyCount*3 {
		return values
	}
	out := make([]T, keyCount)
	for i := range out {
		out[i] = values[i*3+1]
	}
	return out
}

// gltfStepKeys inserts a hold key just before every key change so that linear sampling
// reproduces STEP interpolation.
func gltfStepKeys[K any](keys []K, timeOf func(K) float32, at func(K, float32) K) []K {
	if len(keys) < 2 {
		return keys
	}
	out := make([]K, 0, len(keys)*2-1)
	for i, k := range keys {
		if i > 0 {
			hold := max(timeOf(keys[i-1]), timeOf(k)-stepHoldEpsilon)
			out = append(out, at(keys[i-1], hold))
		}
		out = append(out, k)
	}
	return out
}

// gltfExtrasOptions turns the animation's extras object into sequence options.
func gltfExtrasOptions(extras *gltfAnimationExtras) []model.SequenceBuilderOption {
	if extras == nil {
		return nil
	}
	var opts []model.SequenceBuilderOption
	if extras.RootMotion != nil {
		opts = append(opts, model.WithRootMotion(*extras.RootMotion))
	}
	if extras.RateScale != 0 {
		opts = append(opts, model.WithRateScale(extras.RateScale))
	}
	for _, n := range extras.Notifies {
		opts = append(opts, model.WithNotify(n.Name, n.Time, n.Duration))
	}
	for _, m := range extras.SyncMarkers {
		opts = append(opts, model.WithSyncMarker(m.Name, m.Time))
	}
	for _, name := range common.SortedKeys(extras.Curves) {
		points := extras.Curves[name]
		keys := make([]model.ScalarKeyframe, len(points))
		for i, p := range points {
			keys[i] = model.ScalarKeyframe{Time: p[0], Value: p[1]}
		}
		opts = append(opts, model.WithCurve(name, keys...))
	}
	return opts
}
