package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfSkeletonExtractorImpl is the implementation of the gltfSkeletonExtractor interface.
type gltfSkeletonExtractorImpl struct {
	parser gltfParser
}

// gltfSkeletonExtractor converts glTF skins (or, for skinless files, the whole node hierarchy)
// into model skeletons whose bones are ordered parents first.
type gltfSkeletonExtractor interface {
	// ExtractSkin builds a skeleton from the joints of a skin.
	//
	// Parameters:
	//   - skinIndex: the index of the skin to extract
	//   - name: the skeleton name used when the skin has none
	//
	// Returns:
	//   - *model.Skeleton: the skeleton with topologically sorted bones
	//   - map[int]int32: glTF node index to skeleton bone index
	//   - error: error if extraction fails
	ExtractSkin(skinIndex int, name string) (*model.Skeleton, map[int]int32, error)

	// ExtractNodes builds a skeleton treating every node in the document as a bone.
	// Used for animation-only exports that carry a node hierarchy but no skin.
	ExtractNodes(name string) (*model.Skeleton, map[int]int32, error)

	// MapNodesByName maps document nodes onto an existing skeleton by bone name.
	// Nodes whose names are not bones of skeleton are left out of the mapping.
	MapNodesByName(skeleton *model.Skeleton) map[int]int32
}

var _ gltfSkeletonExtractor = &gltfSkeletonExtractorImpl{}

// newGLTFSkeletonExtractor creates a new skeleton extractor for a parsed document.
func newGLTFSkeletonExtractor(parser gltfParser) gltfSkeletonExtractor {
	return &gltfSkeletonExtractorImpl{parser: parser}
}

func (e *gltfSkeletonExtractorImpl) ExtractSkin(skinIndex int, name string) (*model.Skeleton, map[int]int32, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, nil, fmt.Errorf("no document loaded")
	}
	if skinIndex < 0 || skinIndex >= len(doc.Skins) {
		return nil, nil, fmt.Errorf("skin index %d out of range", skinIndex)
	}
	skin := &doc.Skins[skinIndex]
	if skin.Name != "" {
		name = skin.Name
	}
	return e.extract(skin.Joints, name)
}

func (e *gltfSkeletonExtractorImpl) ExtractNodes(name string) (*model.Skeleton, map[int]int32, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, nil, fmt.Errorf("no document loaded")
	}
	joints := make([]int, len(doc.Nodes))
	for i := range joints {
		joints[i] = i
	}
	return e.extract(joints, name)
}

func (e *gltfSkeletonExtractorImpl) MapNodesByName(skeleton *model.Skeleton) map[int]int32 {
	mapping := make(map[int]int32)
	doc := e.parser.Document()
	if doc == nil || skeleton == nil {
		return mapping
	}
	for i, node := range doc.Nodes {
		if idx := skeleton.FindBone(node.Name); idx >= 0 {
			mapping[i] = idx
		}
	}
	return mapping
}

// extract builds the skeleton for a set of joint nodes.
func (e *gltfSkeletonExtractorImpl) extract(joints []int, name string) (*model.Skeleton, map[int]int32, error) {
	doc := e.parser.Document()

	parentOf := make(map[int]int, len(doc.Nodes))
	for nodeIdx, node := range doc.Nodes {
		for _, child := range node.Children {
			parentOf[child] = nodeIdx
		}
	}

	jointBone := make(map[int]int32, len(joints))
	for i, nodeIdx := range joints {
		if nodeIdx < 0 || nodeIdx >= len(doc.Nodes) {
			return nil, nil, fmt.Errorf("joint %d: invalid node index %d", i, nodeIdx)
		}
		jointBone[nodeIdx] = int32(i)
	}

	bones := make([]model.Bone, len(joints))
	for i, nodeIdx := range joints {
		node := &doc.Nodes[nodeIdx]
		bones[i] = model.Bone{
			Name:           node.Name,
			ParentIndex:    -1,
			LocalTransform: gltfNodeTransform(node),
		}
		if bones[i].Name == "" {
			bones[i].Name = fmt.Sprintf("bone_%d", i)
		}
		if parent, ok := parentOf[nodeIdx]; ok {
			if parentBone, ok := jointBone[parent]; ok {
				bones[i].ParentIndex = parentBone
			}
		}
	}

	sorted, oldToNew := gltfTopologicalSortBones(bones)
	skeleton, err := model.NewSkeleton(name, sorted)
	if err != nil {
		return nil, nil, err
	}

	nodeToBone := make(map[int]int32, len(joints))
	for i, nodeIdx := range joints {
		nodeToBone[nodeIdx] = oldToNew[int32(i)]
	}
	return skeleton, nodeToBone, nil
}

// --- Helper Functions ---

// gltfNodeTransform extracts the local TRS transform from a glTF node.
func gltfNodeTransform(node *gltfNode) model.Transform {
	if node.Matrix != nil {
		return gltfDecomposeMatrix(mgl32.Mat4(*node.Matrix))
	}

	t := model.IdentityTransform()
	if node.Translation != nil {
		t.Translation = mgl32.Vec3(*node.Translation)
	}
	if node.Rotation != nil {
		t.Rotation = gltfQuat(mgl32.Vec4(*node.Rotation))
	}
	if node.Scale != nil {
		t.Scale = mgl32.Vec3(*node.Scale)
	}
	return t
}

// gltfQuat converts a glTF (x, y, z, w) rotation into a normalized quaternion.
func gltfQuat(v mgl32.Vec4) mgl32.Quat {
	q := mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
	if q.Len() < 1e-6 {
		return mgl32.QuatIdent()
	}
	return q.Normalize()
}

// gltfDecomposeMatrix decomposes a column-major matrix into translation, rotation and scale.
// Shear is discarded.
func gltfDecomposeMatrix(m mgl32.Mat4) model.Transform {
	t := model.Transform{
		Translation: m.Col(3).Vec3(),
		Scale: mgl32.Vec3{
			m.Col(0).Vec3().Len(),
			m.Col(1).Vec3().Len(),
			m.Col(2).Vec3().Len(),
		},
	}

	var rot mgl32.Mat3
	for c := range 3 {
		s := t.Scale[c]
		if s < 1e-4 {
			s = 1
		}
		rot.SetCol(c, m.Col(c).Vec3().Mul(1/s))
	}
	t.Rotation = mgl32.Mat4ToQuat(rot.Mat4()).Normalize()
	return t
}

// gltfTopologicalSortBones reorders bones breadth-first from the roots so that parents always
// precede their children, and returns the old-to-new index mapping. Bones unreachable from a
// root (a parent cycle in malformed data) are appended as roots.
func gltfTopologicalSortBones(bones []model.Bone) ([]model.Bone, map[int32]int32) {
	children := make(map[int32][]int32)
	var queue []int32
	for i, bone := range bones {
		if bone.ParentIndex >= 0 {
			children[bone.ParentIndex] = append(children[bone.ParentIndex], int32(i))
		} else {
			queue = append(queue, int32(i))
		}
	}

	order := make([]int32, 0, len(bones))
	visited := make([]bool, len(bones))
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		visited[idx] = true
		order = append(order, idx)
		queue = append(queue, children[idx]...)
	}
	detached := make(map[int32]bool)
	for i := range bones {
		if !visited[i] {
			order = append(order, int32(i))
			detached[int32(i)] = true
		}
	}

	oldToNew := make(map[int32]int32, len(bones))
	for newIdx, oldIdx := range order {
		oldToNew[oldIdx] = int32(newIdx)
	}

	sorted := make([]model.Bone, len(bones))
	for newIdx, oldIdx := range order {
		bone := bones[oldIdx]
		if bone.ParentIndex >= 0 && !detached[oldIdx] {
			bone.ParentIndex = oldToNew[bone.ParentIndex]
		} else {
			bone.ParentIndex = -1
		}
		sorted[newIdx] = bone
	}
	return sorted, oldToNew
}
