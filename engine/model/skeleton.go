package model

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNilSkeleton is returned when an operation requires a skeleton and none was supplied.
	ErrNilSkeleton = errors.New("model: nil skeleton")

	// ErrInvalidHierarchy is returned when a bone references a parent that does not precede it.
	ErrInvalidHierarchy = errors.New("model: parent bone must precede child")

	// ErrIncompatibleSkeleton is returned when an asset targets a skeleton that cannot drive the instance.
	ErrIncompatibleSkeleton = errors.New("model: incompatible skeleton")
)

// Skeleton represents a bone hierarchy shared by every asset authored against it.
// Bones are ordered so that parents always precede their children.
type Skeleton struct {
	// Name is the skeleton identifier.
	Name string

	// Bones is the array of all bones in the skeleton.
	Bones []Bone

	// RootBoneIndices are indices of bones with no parent.
	RootBoneIndices []int32

	// BoneNameToIndex maps bone names to their indices for quick lookup.
	BoneNameToIndex map[string]int32

	mu         sync.RWMutex
	curveUIDs  map[string]CurveUID
	curveNames []string
	curveBones map[CurveUID]int32
	compatible map[*Skeleton]struct{}
}

// NewSkeleton validates the bone hierarchy and builds the lookup tables.
//
// Parameters:
//   - name: the skeleton name
//   - bones: the bones in parent-before-child order
//
// Returns:
//   - *Skeleton: the new skeleton
//   - error: ErrInvalidHierarchy if a parent index does not precede its child
func NewSkeleton(name string, bones []Bone) (*Skeleton, error) {
	s := &Skeleton{
		Name:            name,
		Bones:           bones,
		BoneNameToIndex: make(map[string]int32, len(bones)),
		curveUIDs:       make(map[string]CurveUID),
		curveBones:      make(map[CurveUID]int32),
		compatible:      make(map[*Skeleton]struct{}),
	}
	for i, b := range bones {
		if b.ParentIndex >= int32(i) {
			return nil, fmt.Errorf("bone %q (index %d, parent %d): %w", b.Name, i, b.ParentIndex, ErrInvalidHierarchy)
		}
		if b.ParentIndex < 0 {
			s.RootBoneIndices = append(s.RootBoneIndices, int32(i))
		}
		s.BoneNameToIndex[b.Name] = int32(i)
	}
	return s, nil
}

// NumBones returns the number of bones in the skeleton.
func (s *Skeleton) NumBones() int {
	return len(s.Bones)
}

// FindBone returns the index of the named bone, or -1 if it does not exist.
//
// Parameters:
//   - name: the bone name
//
// Returns:
//   - int32: the bone index or -1
func (s *Skeleton) FindBone(name string) int32 {
	if idx, ok := s.BoneNameToIndex[name]; ok {
		return idx
	}
	return -1
}

// ParentIndex returns the parent of the bone at index, or -1.
func (s *Skeleton) ParentIndex(index int32) int32 {
	if index < 0 || int(index) >= len(s.Bones) {
		return -1
	}
	return s.Bones[index].ParentIndex
}

// IsChildOf reports whether bone is a descendant of (or equal to) ancestor.
//
// Parameters:
//   - bone: the candidate descendant index
//   - ancestor: the candidate ancestor index
//
// Returns:
//   - bool: true if ancestor is on the parent chain of bone
func (s *Skeleton) IsChildOf(bone, ancestor int32) bool {
	for b := bone; b >= 0; b = s.ParentIndex(b) {
		if b == ancestor {
			return true
		}
	}
	return false
}

// RefPose returns a copy of the reference pose in skeleton bone order.
//
// Returns:
//   - []Transform: local reference transforms, one per bone
func (s *Skeleton) RefPose() []Transform {
	out := make([]Transform, len(s.Bones))
	for i, b := range s.Bones {
		out[i] = b.LocalTransform
	}
	return out
}

// AddCompatibleSkeleton marks other as able to drive assets authored against s and vice versa.
//
// Parameters:
//   - other: the skeleton to mark compatible
func (s *Skeleton) AddCompatibleSkeleton(other *Skeleton) {
	if other == nil || other == s {
		return
	}
	s.mu.Lock()
	s.compatible[other] = struct{}{}
	s.mu.Unlock()
	other.mu.Lock()
	other.compatible[s] = struct{}{}
	other.mu.Unlock()
}

// IsCompatible reports whether assets targeting other may be played on s.
// Skeletons are compatible when they are identical, explicitly registered, or share
// the same bone names and hierarchy.
//
// Parameters:
//   - other: the skeleton an asset was authored against
//
// Returns:
//   - bool: true if the asset may be sampled onto this skeleton
func (s *Skeleton) IsCompatible(other *Skeleton) bool {
	if s == nil || other == nil {
		return false
	}
	if s == other {
		return true
	}
	s.mu.RLock()
	_, ok := s.compatible[other]
	s.mu.RUnlock()
	if ok {
		return true
	}
	if len(s.Bones) != len(other.Bones) {
		return false
	}
	for i := range s.Bones {
		if s.Bones[i].Name != other.Bones[i].Name || s.Bones[i].ParentIndex != other.Bones[i].ParentIndex {
			return false
		}
	}
	return true
}

// CurveUID returns the stable identifier for a curve name, registering it on first use.
//
// Parameters:
//   - name: the curve name
//
// Returns:
//   - CurveUID: the identifier, stable for the lifetime of the skeleton
func (s *Skeleton) CurveUID(name string) CurveUID {
	s.mu.RLock()
	uid, ok := s.curveUIDs[name]
	s.mu.RUnlock()
	if ok {
		return uid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if uid, ok = s.curveUIDs[name]; ok {
		return uid
	}
	uid = CurveUID(len(s.curveNames))
	s.curveUIDs[name] = uid
	s.curveNames = append(s.curveNames, name)
	return uid
}

// CurveName returns the name registered for uid, or "" if unknown.
func (s *Skeleton) CurveName(uid CurveUID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(uid) < len(s.curveNames) {
		return s.curveNames[uid]
	}
	return ""
}

// LinkCurveToBone ties a curve to a bone. Layered blends take linked curves from the layer
// that owns the bone, and the curve is dropped when the bone is not required.
//
// Parameters:
//   - curve: the curve name
//   - bone: the bone name
//
// Returns:
//   - error: an error if the bone does not exist
func (s *Skeleton) LinkCurveToBone(curve, bone string) error {
	idx := s.FindBone(bone)
	if idx < 0 {
		return fmt.Errorf("skeleton %q: link curve %q to unknown bone %q", s.Name, curve, bone)
	}
	uid := s.CurveUID(curve)
	s.mu.Lock()
	s.curveBones[uid] = idx
	s.mu.Unlock()
	return nil
}

// CurveLinkedBone returns the bone a curve is linked to, or -1.
func (s *Skeleton) CurveLinkedBone(uid CurveUID) int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.curveBones[uid]; ok {
		return b
	}
	return -1
}
