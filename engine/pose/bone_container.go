package pose

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

var containerSerial atomic.Uint64

// BoneContainer maps skeleton bone indices to compact pose indices for one required-bone
// set (typically one LOD). It is immutable once built; a change of LOD builds a new one.
type BoneContainer struct {
	skeleton  *model.Skeleton
	required  []int32
	compact   []int32
	parents   []int32
	refPose   []model.Transform
	serial    uint64
	overrides bool
}

// NewBoneContainer builds the compact mapping for the required bones of a skeleton.
// Parents of required bones are added automatically. A nil requiredBones slice keeps
// every bone.
//
// Parameters:
//   - skeleton: the skeleton being posed
//   - requiredBones: skeleton indices required at this LOD, or nil for all bones
//   - refPoseOverride: optional replacement reference pose in skeleton order
//
// Returns:
//   - *BoneContainer: the container
//   - error: an error for a nil skeleton, out-of-range bones or a mismatched override
func NewBoneContainer(skeleton *model.Skeleton, requiredBones []int32, refPoseOverride []model.Transform) (*BoneContainer, error) {
	if skeleton == nil {
		return nil, fmt.Errorf("bone container: %w", model.ErrNilSkeleton)
	}
	n := skeleton.NumBones()
	if refPoseOverride != nil && len(refPoseOverride) != n {
		return nil, fmt.Errorf("bone container: ref pose override has %d bones, skeleton %q has %d", len(refPoseOverride), skeleton.Name, n)
	}

	keep := make([]bool, n)
	if requiredBones == nil {
		for i := range keep {
			keep[i] = true
		}
	}
	for _, b := range requiredBones {
		if b < 0 || int(b) >= n {
			return nil, fmt.Errorf("bone container: required bone %d outside skeleton %q of %d bones", b, skeleton.Name, n)
		}
		for p := b; p >= 0 && !keep[p]; p = skeleton.ParentIndex(p) {
			keep[p] = true
		}
	}

	c := &BoneContainer{
		skeleton:  skeleton,
		compact:   make([]int32, n),
		serial:    containerSerial.Add(1),
		overrides: refPoseOverride != nil,
	}
	for i := range c.compact {
		c.compact[i] = -1
	}
	for i := range n {
		if !keep[i] {
			continue
		}
		c.compact[i] = int32(len(c.required))
		c.required = append(c.required, int32(i))
	}

	c.parents = make([]int32, len(c.required))
	c.refPose = make([]model.Transform, len(c.required))
	for ci, si := range c.required {
		parent := skeleton.ParentIndex(si)
		if parent >= 0 {
			c.parents[ci] = c.compact[parent]
		} else {
			c.parents[ci] = -1
		}
		if refPoseOverride != nil {
			c.refPose[ci] = refPoseOverride[si]
		} else {
			c.refPose[ci] = skeleton.Bones[si].LocalTransform
		}
	}
	return c, nil
}

// Skeleton returns the skeleton this container maps.
func (c *BoneContainer) Skeleton() *model.Skeleton { return c.skeleton }

// NumBones returns the number of compact bones.
func (c *BoneContainer) NumBones() int { return len(c.required) }

// Serial returns a process-unique id for this container. Nodes compare it to detect rebuilds.
func (c *BoneContainer) Serial() uint64 { return c.serial }

// HasRefPoseOverride reports whether the reference pose was overridden.
func (c *BoneContainer) HasRefPoseOverride() bool { return c.overrides }

// SkeletonIndex returns the skeleton index of a compact bone.
func (c *BoneContainer) SkeletonIndex(compact int) int32 { return c.required[compact] }

// CompactIndex returns the compact index of a skeleton bone, or -1 if it is not required.
func (c *BoneContainer) CompactIndex(skeletonIndex int32) int {
	if skeletonIndex < 0 || int(skeletonIndex) >= len(c.compact) {
		return -1
	}
	return int(c.compact[skeletonIndex])
}

// ParentIndex returns the compact parent of a compact bone, or -1 for roots.
func (c *BoneContainer) ParentIndex(compact int) int { return int(c.parents[compact]) }

// RefPose returns the reference transform of a compact bone.
func (c *BoneContainer) RefPose(compact int) model.Transform { return c.refPose[compact] }

// RequiredBones returns a copy of the required skeleton indices in compact order.
func (c *BoneContainer) RequiredBones() []int32 { return slices.Clone(c.required) }

// BranchMask marks every compact bone that is one of the named bones or, when
// includeChildren is set, a descendant of one.
//
// Parameters:
//   - branchRoots: bone names starting each branch
//   - includeChildren: whether descendants are included
//
// Returns:
//   - []bool: one entry per compact bone
func (c *BoneContainer) BranchMask(branchRoots []string, includeChildren bool) []bool {
	mask := make([]bool, len(c.required))
	roots := make([]int32, 0, len(branchRoots))
	for _, name := range branchRoots {
		if idx := c.skeleton.FindBone(name); idx >= 0 {
			roots = append(roots, idx)
		}
	}
	for ci, si := range c.required {
		for _, r := range roots {
			if si == r || (includeChildren && c.skeleton.IsChildOf(si, r)) {
				mask[ci] = true
				break
			}
		}
	}
	return mask
}
