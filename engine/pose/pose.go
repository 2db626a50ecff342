package pose

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// Pose is a set of bone-local transforms indexed by compact bone index.
type Pose struct {
	Bones     []model.Transform
	container *BoneContainer
}

// NewPose allocates a pose sized for the container and resets it to the reference pose.
//
// Parameters:
//   - c: the bone container the pose is laid out for
//
// Returns:
//   - *Pose: the new pose
func NewPose(c *BoneContainer) *Pose {
	p := &Pose{}
	p.SetBoneContainer(c)
	p.ResetToRefPose()
	return p
}

// SetBoneContainer binds the pose to a container and resizes it, keeping existing
// transforms where they fit.
func (p *Pose) SetBoneContainer(c *BoneContainer) {
	p.container = c
	n := c.NumBones()
	if cap(p.Bones) >= n {
		p.Bones = p.Bones[:n]
		return
	}
	bones := make([]model.Transform, n)
	copy(bones, p.Bones)
	p.Bones = bones
}

// BoneContainer returns the container the pose is laid out for.
func (p *Pose) BoneContainer() *BoneContainer { return p.container }

// NumBones returns the number of compact bones in the pose.
func (p *Pose) NumBones() int { return len(p.Bones) }

// ResetToRefPose copies the container's reference pose into the pose.
func (p *Pose) ResetToRefPose() {
	for i := range p.Bones {
		p.Bones[i] = p.container.RefPose(i)
	}
}

// ResetToAdditiveIdentity sets every bone to the additive identity.
func (p *Pose) ResetToAdditiveIdentity() {
	for i := range p.Bones {
		p.Bones[i] = model.AdditiveIdentityTransform()
	}
}

// CopyFrom copies another pose, adopting its bone container.
func (p *Pose) CopyFrom(other *Pose) {
	if p == other {
		return
	}
	p.SetBoneContainer(other.container)
	copy(p.Bones, other.Bones)
}

// NormalizeRotations renormalizes every bone rotation.
func (p *Pose) NormalizeRotations() {
	for i := range p.Bones {
		p.Bones[i].Rotation = p.Bones[i].Rotation.Normalize()
	}
}

// IsNormalized reports whether every rotation has unit length within tolerance.
func (p *Pose) IsNormalized(tolerance float32) bool {
	for i := range p.Bones {
		if !p.Bones[i].IsRotationNormalized(tolerance) {
			return false
		}
	}
	return true
}

// ContainsNaN reports whether any bone transform is corrupt.
func (p *Pose) ContainsNaN() bool {
	for i := range p.Bones {
		if p.Bones[i].ContainsNaN() {
			return true
		}
	}
	return false
}

// Validate scans the pose for NaN values and non-normalized rotations.
//
// Returns:
//   - error: a description of the first bad bone, or nil
func (p *Pose) Validate() error {
	for i := range p.Bones {
		if p.Bones[i].ContainsNaN() {
			return fmt.Errorf("bone %d (%s) contains NaN", i, p.boneName(i))
		}
		if !p.Bones[i].IsRotationNormalized(1e-3) {
			return fmt.Errorf("bone %d (%s) rotation not normalized: |q| = %v", i, p.boneName(i), p.Bones[i].Rotation.Len())
		}
	}
	return nil
}

func (p *Pose) boneName(compact int) string {
	if p.container == nil {
		return "?"
	}
	return p.container.Skeleton().Bones[p.container.SkeletonIndex(compact)].Name
}
