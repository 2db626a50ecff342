package model

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrDuplicateAsset is returned when a model already holds an asset with the same name.
	ErrDuplicateAsset = errors.New("model: duplicate asset name")

	// ErrUnknownAsset is returned for nil assets or Asset implementations a model cannot store.
	ErrUnknownAsset = errors.New("model: unknown asset kind")
)

// model is the implementation of the Model interface.
type model struct {
	mu       sync.RWMutex
	name     string
	skeleton *Skeleton

	sequences   []*Sequence
	montages    []*Montage
	blendSpaces []*BlendSpace
	byName      map[string]Asset
}

// Model is the set of animation assets authored for one skeleton: what an imported character
// file provides and what anim graphs look their sequences, montages and blend spaces up in.
// Every asset added must target a skeleton compatible with the model's skeleton, and asset names
// are unique across kinds.
type Model interface {
	// Name returns the model name.
	Name() string

	// Skeleton returns the skeleton every asset in the model can drive.
	Skeleton() *Skeleton

	// AddAsset registers a sequence, montage or blend space.
	//
	// Parameters:
	//   - a: the asset to add
	//
	// Returns:
	//   - error: ErrIncompatibleSkeleton if a targets a skeleton that cannot drive the model,
	//     ErrDuplicateAsset if the name is taken, or ErrUnknownAsset for other Asset kinds
	AddAsset(a Asset) error

	// Asset returns the named asset of any kind, or nil.
	Asset(name string) Asset

	// Sequence returns the named sequence, or nil.
	Sequence(name string) *Sequence

	// Montage returns the named montage, or nil.
	Montage(name string) *Montage

	// BlendSpace returns the named blend space, or nil.
	BlendSpace(name string) *BlendSpace

	// Sequences returns the sequences in insertion order.
	Sequences() []*Sequence

	// AnimationCount returns the number of sequences.
	AnimationCount() int

	// AnimationNames returns the sequence names in insertion order.
	AnimationNames() []string

	// GetAnimationIndex returns the insertion index of the named sequence, or -1.
	GetAnimationIndex(name string) int
}

var _ Model = &model{}

// NewModel creates a Model and adds the assets supplied through options.
//
// Parameters:
//   - skeleton: the skeleton the model's assets target (must not be nil)
//   - options: functional options to configure the model
//
// Returns:
//   - Model: the new model
//   - error: ErrNilSkeleton, or the first AddAsset error
func NewModel(skeleton *Skeleton, options ...ModelBuilderOption) (Model, error) {
	if skeleton == nil {
		return nil, ErrNilSkeleton
	}
	m := &model{
		name:     skeleton.Name,
		skeleton: skeleton,
		byName:   make(map[string]Asset),
	}
	for _, opt := range options {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *model) Name() string        { return m.name }
func (m *model) Skeleton() *Skeleton { return m.skeleton }

func (m *model) AddAsset(a Asset) error {
	if a == nil {
		return fmt.Errorf("model %q: %w", m.name, ErrUnknownAsset)
	}
	if !m.skeleton.IsCompatible(a.TargetSkeleton()) {
		return fmt.Errorf("model %q: asset %q: %w", m.name, a.AssetName(), ErrIncompatibleSkeleton)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[a.AssetName()]; ok {
		return fmt.Errorf("model %q: asset %q: %w", m.name, a.AssetName(), ErrDuplicateAsset)
	}
	switch v := a.(type) {
	case *Sequence:
		m.sequences = append(m.sequences, v)
	case *Montage:
		m.montages = append(m.montages, v)
	case *BlendSpace:
		m.blendSpaces = append(m.blendSpaces, v)
	default:
		return fmt.Errorf("model %q: asset %q is %T: %w", m.name, a.AssetName(), a, ErrUnknownAsset)
	}
	m.byName[a.AssetName()] = a
	return nil
}

func (m *model) Asset(name string) Asset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byName[name]
}

func (m *model) Sequence(name string) *Sequence {
	s, _ := m.Asset(name).(*Sequence)
	return s
}

func (m *model) Montage(name string) *Montage {
	mt, _ := m.Asset(name).(*Montage)
	return mt
}

func (m *model) BlendSpace(name string) *BlendSpace {
	b, _ := m.Asset(name).(*BlendSpace)
	return b
}

func (m *model) Sequences() []*Sequence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sequences)
}

func (m *model) AnimationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sequences)
}

func (m *model) AnimationNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.sequences))
	for i, s := range m.sequences {
		names[i] = s.Name
	}
	return names
}

func (m *model) GetAnimationIndex(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.IndexFunc(m.sequences, func(s *Sequence) bool { return s.Name == name })
}
