package pose

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

func scaleTransform(t model.Transform, w float32) model.Transform {
	return model.Transform{
		Translation: t.Translation.Mul(w),
		Rotation:    t.Rotation.Scale(w),
		Scale:       t.Scale.Mul(w),
	}
}

// AccumulateShortest adds t*w to acc, flipping t's rotation onto acc's hemisphere so the
// blend takes the short path.
func AccumulateShortest(acc *model.Transform, t model.Transform, w float32) {
	acc.Translation = acc.Translation.Add(t.Translation.Mul(w))
	acc.Scale = acc.Scale.Add(t.Scale.Mul(w))
	rw := w
	if acc.Rotation.Dot(t.Rotation) < 0 {
		rw = -w
	}
	acc.Rotation = acc.Rotation.Add(t.Rotation.Scale(rw))
}

// BlendTransform interpolates two transforms along the shortest rotation path.
//
// Parameters:
//   - a: the transform at alpha 0
//   - b: the transform at alpha 1
//   - alpha: the interpolation factor
//
// Returns:
//   - model.Transform: the blended transform with a normalized rotation
func BlendTransform(a, b model.Transform, alpha float32) model.Transform {
	if alpha <= 0 {
		return a
	}
	if alpha >= 1 {
		return b
	}
	out := scaleTransform(a, 1-alpha)
	AccumulateShortest(&out, b, alpha)
	out.Rotation = out.Rotation.Normalize()
	return out
}

// BlendTwoPoses writes a*(1-alpha) + b*alpha into out. out may alias a or b.
//
// Parameters:
//   - a: the pose at alpha 0
//   - b: the pose at alpha 1
//   - alpha: the interpolation factor
//   - out: the destination pose
func BlendTwoPoses(a, b *Pose, alpha float32, out *Pose) {
	out.SetBoneContainer(a.container)
	for i := range out.Bones {
		out.Bones[i] = BlendTransform(a.Bones[i], b.Bones[i], alpha)
	}
}

// BlendPosesPerBone blends a toward b with a separate alpha for every compact bone.
//
// Parameters:
//   - a: the pose at alpha 0
//   - b: the pose at alpha 1
//   - boneAlphas: one alpha per compact bone
//   - out: the destination pose (may alias a or b)
func BlendPosesPerBone(a, b *Pose, boneAlphas []float32, out *Pose) {
	out.SetBoneContainer(a.container)
	for i := range out.Bones {
		out.Bones[i] = BlendTransform(a.Bones[i], b.Bones[i], boneAlphas[i])
	}
}

// BlendPosesTogether performs an N-way weighted blend of poses and curves. Weights are
// used as given; rotations are renormalized afterwards. out may alias poses[0].
//
// Parameters:
//   - poses: the source poses
//   - curves: the source curves, one per pose (nil skips curve blending)
//   - weights: one weight per pose
//   - outPose: the destination pose
//   - outCurve: the destination curve (ignored when curves is nil)
func BlendPosesTogether(poses []*Pose, curves []*Curve, weights []float32, outPose *Pose, outCurve *Curve) {
	if len(poses) == 0 {
		return
	}
	outPose.SetBoneContainer(poses[0].container)
	for b := range outPose.Bones {
		acc := scaleTransform(poses[0].Bones[b], weights[0])
		for k := 1; k < len(poses); k++ {
			if weights[k] == 0 {
				continue
			}
			AccumulateShortest(&acc, poses[k].Bones[b], weights[k])
		}
		acc.Rotation = acc.Rotation.Normalize()
		outPose.Bones[b] = acc
	}
	if curves != nil && outCurve != nil {
		BlendCurves(curves, weights, outCurve)
	}
}

// ConvertPoseToMeshRotation converts local rotations into component-space rotations in place.
// Compact bones are ordered parent-first so a forward pass suffices.
func ConvertPoseToMeshRotation(p *Pose) {
	for i := 1; i < len(p.Bones); i++ {
		parent := p.container.ParentIndex(i)
		if parent < 0 {
			continue
		}
		p.Bones[i].Rotation = p.Bones[parent].Rotation.Mul(p.Bones[i].Rotation).Normalize()
	}
}

// ConvertMeshRotationPoseToLocal is the inverse of ConvertPoseToMeshRotation.
func ConvertMeshRotationPoseToLocal(p *Pose) {
	for i := len(p.Bones) - 1; i > 0; i-- {
		parent := p.container.ParentIndex(i)
		if parent < 0 {
			continue
		}
		p.Bones[i].Rotation = p.Bones[parent].Rotation.Inverse().Mul(p.Bones[i].Rotation).Normalize()
	}
}

// ConvertToAdditive computes the additive delta that takes base to target.
//
// Parameters:
//   - target: the full pose
//   - base: the reference pose the delta is relative to
//   - out: the destination additive pose (may alias target)
func ConvertToAdditive(target, base *Pose, out *Pose) {
	out.SetBoneContainer(target.container)
	for i := range out.Bones {
		t, b := target.Bones[i], base.Bones[i]
		out.Bones[i] = model.Transform{
			Translation: t.Translation.Sub(b.Translation),
			Rotation:    t.Rotation.Mul(b.Rotation.Inverse()).Normalize(),
			Scale:       mgl32.Vec3{safeRatio(t.Scale[0], b.Scale[0]) - 1, safeRatio(t.Scale[1], b.Scale[1]) - 1, safeRatio(t.Scale[2], b.Scale[2]) - 1},
		}
	}
}

func safeRatio(a, b float32) float32 {
	if common.Abs(b) <= common.SmallNumber {
		return 1
	}
	return a / b
}

// AccumulateAdditive layers an additive pose onto base with the given weight. Mesh-space
// additives are applied to component-space rotations.
//
// Parameters:
//   - base: the pose to modify in place
//   - additive: the additive delta pose
//   - weight: the additive weight
//   - additiveType: AdditiveLocalSpace or AdditiveMeshSpace
func AccumulateAdditive(base, additive *Pose, weight float32, additiveType model.AdditiveType) {
	if !common.IsRelevant(weight) {
		return
	}
	meshSpace := additiveType == model.AdditiveMeshSpace
	if meshSpace {
		ConvertPoseToMeshRotation(base)
	}
	ident := mgl32.QuatIdent()
	for i := range base.Bones {
		a := additive.Bones[i]
		rot := a.Rotation
		if rot.Dot(ident) < 0 {
			rot = rot.Scale(-1)
		}
		if weight < 1 {
			rot = mgl32.QuatNlerp(ident, rot, weight)
		}
		b := &base.Bones[i]
		b.Translation = b.Translation.Add(a.Translation.Mul(weight))
		b.Rotation = rot.Mul(b.Rotation).Normalize()
		s := a.Scale.Mul(weight)
		b.Scale = mgl32.Vec3{b.Scale[0] * (1 + s[0]), b.Scale[1] * (1 + s[1]), b.Scale[2] * (1 + s[2])}
	}
	if meshSpace {
		ConvertMeshRotationPoseToLocal(base)
	}
	base.NormalizeRotations()
}

// BlendPosesPerBoneFilter layers child poses over base using per-bone weights, as used by
// layered bone blends. A bone whose child weights sum past one ignores the base; otherwise
// the base keeps the remainder. When meshSpaceRotation is set the rotations are blended
// in component space.
//
// Parameters:
//   - base: the base pose
//   - children: the layered poses
//   - boneWeights: per child, one weight per compact bone
//   - meshSpaceRotation: blend rotations in component space
//   - out: the destination pose (must not alias any input)
func BlendPosesPerBoneFilter(base *Pose, children []*Pose, boneWeights [][]float32, meshSpaceRotation bool, out *Pose) {
	out.CopyFrom(base)
	if len(children) == 0 {
		return
	}

	if meshSpaceRotation {
		ConvertPoseToMeshRotation(out)
		for _, c := range children {
			ConvertPoseToMeshRotation(c)
		}
	}

	srcBase := make([]model.Transform, len(out.Bones))
	copy(srcBase, out.Bones)
	for b := range out.Bones {
		var total float32
		for k := range children {
			total += boneWeights[k][b]
		}
		if !common.IsRelevant(total) {
			continue
		}
		scale := float32(1)
		baseWeight := 1 - total
		if total > 1 {
			scale = 1 / total
			baseWeight = 0
		}
		acc := scaleTransform(srcBase[b], baseWeight)
		for k, c := range children {
			w := boneWeights[k][b] * scale
			if w == 0 {
				continue
			}
			AccumulateShortest(&acc, c.Bones[b], w)
		}
		acc.Rotation = acc.Rotation.Normalize()
		out.Bones[b] = acc
	}

	if meshSpaceRotation {
		ConvertMeshRotationPoseToLocal(out)
		for _, c := range children {
			ConvertMeshRotationPoseToLocal(c)
		}
	}
	out.NormalizeRotations()
}
