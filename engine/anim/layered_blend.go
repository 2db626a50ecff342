package anim

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
)

// BranchFilter selects a bone and its descendants for a blend layer.
type BranchFilter struct {
	BoneName string

	// BlendDepth ramps the layer in over that many bones below BoneName. Zero applies full
	// weight to the whole branch; negative removes the branch from the layer.
	BlendDepth int
}

// CurveBlendOption selects how LayeredBoneBlend merges curves that are not linked to a bone.
type CurveBlendOption uint8

const (
	// CurveBlendOverride lets the last relevant layer holding a curve set it.
	CurveBlendOverride CurveBlendOption = iota
	// CurveBlendDoNotOverride keeps the first value seen, base pose first.
	CurveBlendDoNotOverride
	// CurveBlendByWeight adds each layer's value scaled by its weight to the base.
	CurveBlendByWeight
	// CurveBlendNormalizeByWeight averages the layers' values by weight.
	CurveBlendNormalizeByWeight
	// CurveBlendUseBasePose keeps only the base pose curves.
	CurveBlendUseBasePose
	// CurveBlendUseMaxValue keeps the largest value.
	CurveBlendUseMaxValue
	// CurveBlendUseMinValue keeps the smallest value.
	CurveBlendUseMinValue
)

// LayeredBoneBlend layers child poses over a base pose per bone branch. Each layer has
// its own branch filters; where filters of several layers claim a bone, the later layer
// wins.
type LayeredBoneBlend struct {
	NodeBase
	BasePose   PoseLink
	BlendPoses []PoseLink

	// LayerSetup holds the branch filters of each layer, parallel to BlendPoses.
	LayerSetup [][]BranchFilter

	// BlendWeights are used for layers without a BlendWeightFuncs entry.
	BlendWeights     []float32
	BlendWeightFuncs []FloatInput

	MeshSpaceRotationBlend bool
	CurveBlendOption       CurveBlendOption

	// boneLayer is the layer owning each compact bone, or -1.
	boneLayer  []int
	boneMask   []float32
	boneWeight [][]float32
	weights    []float32
	container  uint64
}

func (n *LayeredBoneBlend) Initialize(ctx *InitializeContext) {
	n.markInitialized(ctx.Proxy)
	n.BasePose.Initialize(ctx)
	for i := range n.BlendPoses {
		n.BlendPoses[i].Initialize(ctx)
	}
	n.weights = make([]float32, len(n.BlendPoses))
}

func (n *LayeredBoneBlend) CacheBones(ctx *CacheBonesContext) {
	if !n.needsCacheBones(ctx.Proxy) {
		return
	}
	n.rebuildMask(ctx.Proxy.boneContainer)
	n.BasePose.CacheBones(ctx)
	for i := range n.BlendPoses {
		n.BlendPoses[i].CacheBones(ctx)
	}
}

// rebuildMask assigns every compact bone to the last layer whose filters claim it.
func (n *LayeredBoneBlend) rebuildMask(bc *pose.BoneContainer) {
	n.container = bc.Serial()
	sk := bc.Skeleton()
	nb := bc.NumBones()
	n.boneLayer = make([]int, nb)
	n.boneMask = make([]float32, nb)
	for b := range n.boneLayer {
		n.boneLayer[b] = -1
	}
	for layer, filters := range n.LayerSetup {
		for b := range nb {
			si := bc.SkeletonIndex(b)
			for _, f := range filters {
				root := sk.FindBone(f.BoneName)
				if root < 0 || !sk.IsChildOf(si, root) {
					continue
				}
				if f.BlendDepth < 0 {
					if n.boneLayer[b] == layer {
						n.boneLayer[b], n.boneMask[b] = -1, 0
					}
					continue
				}
				w := float32(1)
				if f.BlendDepth > 0 {
					depth := 0
					for c := si; c != root; c = sk.ParentIndex(c) {
						depth++
					}
					w = min(1, float32(depth+1)/float32(f.BlendDepth))
				}
				n.boneLayer[b], n.boneMask[b] = layer, w
			}
		}
	}
	n.boneWeight = make([][]float32, len(n.BlendPoses))
	for i := range n.boneWeight {
		n.boneWeight[i] = make([]float32, nb)
	}
}

func (n *LayeredBoneBlend) Update(ctx *UpdateContext) {
	p := ctx.Proxy
	n.markUpdated(p)
	if len(n.weights) != len(n.BlendPoses) {
		n.weights = make([]float32, len(n.BlendPoses))
	}
	if n.boneLayer == nil || n.container != p.boneContainer.Serial() {
		n.rebuildMask(p.boneContainer)
	}

	// Root motion follows the root bone: only the layer owning it contributes, and the base
	// keeps the rest.
	rootLayer, baseRootMotion := -1, float32(1)
	for i := range n.BlendPoses {
		var fallback float32
		if i < len(n.BlendWeights) {
			fallback = n.BlendWeights[i]
		}
		var f FloatInput
		if i < len(n.BlendWeightFuncs) {
			f = n.BlendWeightFuncs[i]
		}
		n.weights[i] = common.Clamp01(f.eval(p, fallback))
	}
	if len(n.boneLayer) > 0 && n.boneLayer[0] >= 0 {
		rootLayer = n.boneLayer[0]
		baseRootMotion = 1 - n.weights[rootLayer]*n.boneMask[0]
	}

	n.BasePose.Update(ctx.FractionalWeightAndRootMotion(1, baseRootMotion))
	for i := range n.BlendPoses {
		if !common.IsRelevant(n.weights[i]) {
			continue
		}
		var rootMotion float32
		if i == rootLayer {
			rootMotion = n.boneMask[0]
		}
		n.BlendPoses[i].Update(ctx.FractionalWeightAndRootMotion(n.weights[i], rootMotion))
	}
}

func (n *LayeredBoneBlend) Evaluate(out *PoseContext) {
	p := out.Proxy
	n.checkEvaluate(p, "LayeredBoneBlend")
	if n.boneLayer == nil || n.container != p.boneContainer.Serial() {
		n.rebuildMask(p.boneContainer)
	}

	base := out.Child()
	defer base.Release()
	n.BasePose.Evaluate(base)

	var children []*PoseContext
	var childPoses []*pose.Pose
	var childWeights [][]float32
	var layers []int
	for i := range n.BlendPoses {
		if !common.IsRelevant(n.weights[i]) {
			continue
		}
		c := out.Child()
		defer c.Release()
		n.BlendPoses[i].Evaluate(c)
		bw := n.boneWeight[i]
		for b := range bw {
			bw[b] = 0
			if n.boneLayer[b] == i {
				bw[b] = n.boneMask[b] * n.weights[i]
			}
		}
		children = append(children, c)
		childPoses = append(childPoses, c.Pose)
		childWeights = append(childWeights, bw)
		layers = append(layers, i)
	}
	if len(children) == 0 {
		out.CopyFrom(base)
		return
	}

	pose.BlendPosesPerBoneFilter(base.Pose, childPoses, childWeights, n.MeshSpaceRotationBlend, out.Pose)
	n.blendCurves(p, base, children, layers, out.Curve)
}

// blendCurves merges the layer curves into out. A curve linked to a bone is taken from
// whichever pose owns the bone, and is dropped when the bone is not required.
func (n *LayeredBoneBlend) blendCurves(p *Proxy, base *PoseContext, children []*PoseContext, layers []int, out *pose.Curve) {
	bc := p.boneContainer
	// owner returns the layer owning a linked curve's bone, -1 for the base pose.
	owner := func(uid model.CurveUID) (layer int, linked, required bool) {
		bone := p.skeleton.CurveLinkedBone(uid)
		if bone < 0 {
			return -1, false, true
		}
		compact := bc.CompactIndex(bone)
		if compact < 0 {
			return -1, true, false
		}
		return n.boneLayer[compact], true, true
	}

	out.CopyFrom(base.Curve)
	out.Filter(func(uid model.CurveUID) bool {
		layer, linked, required := owner(uid)
		if !required {
			return false
		}
		return !linked || n.CurveBlendOption == CurveBlendUseBasePose || layer < 0 || !slices.Contains(layers, layer)
	})
	if n.CurveBlendOption == CurveBlendUseBasePose {
		return
	}

	var totalWeight float32
	for k, c := range children {
		layer := layers[k]
		w := n.weights[layer]
		totalWeight += w
		for _, uid := range c.Curve.UIDs() {
			owning, linked, required := owner(uid)
			if !required {
				continue
			}
			v := c.Curve.Value(uid)
			if linked {
				if owning == layer {
					out.Set(uid, v)
				}
				continue
			}
			cur, has := out.Get(uid)
			switch n.CurveBlendOption {
			case CurveBlendDoNotOverride:
				if !has {
					out.Set(uid, v)
				}
			case CurveBlendByWeight, CurveBlendNormalizeByWeight:
				out.Set(uid, cur+v*w)
			case CurveBlendUseMaxValue:
				if !has || v > cur {
					out.Set(uid, v)
				}
			case CurveBlendUseMinValue:
				if !has || v < cur {
					out.Set(uid, v)
				}
			default:
				out.Set(uid, v)
			}
		}
	}
	if n.CurveBlendOption == CurveBlendNormalizeByWeight && totalWeight > 1 {
		for _, uid := range out.UIDs() {
			if _, linked, _ := owner(uid); !linked {
				out.Set(uid, out.Value(uid)/totalWeight)
			}
		}
	}
}

func (n *LayeredBoneBlend) GatherDebugData(d *NodeDebugData) {
	d.AddDebugItem(fmt.Sprintf("LayeredBoneBlend(%d layers)", len(n.BlendPoses)), false)
	n.BasePose.GatherDebugData(d.BranchFlow(1))
	for i := range n.BlendPoses {
		var w float32
		if i < len(n.weights) {
			w = n.weights[i]
		}
		n.BlendPoses[i].GatherDebugData(d.BranchFlow(w))
	}
}
