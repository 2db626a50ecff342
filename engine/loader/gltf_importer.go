package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct{}

// gltfImporter orchestrates a glTF/GLB import: parse, skeleton, then one sequence per animation.
type gltfImporter interface {
	// Import loads a glTF/GLB file.
	//
	// Parameters:
	//   - path: the file path to the glTF or GLB file
	//   - settings: the loader's import settings
	//
	// Returns:
	//   - model.Model: the imported skeleton and sequences
	//   - error: error if import fails
	Import(path string, settings importSettings) (model.Model, error)

	// ImportReader loads a glTF document from a reader. Relative buffer URIs resolve against
	// the working directory.
	//
	// Parameters:
	//   - name: the model name used when the document has no scene name
	//   - r: the reader providing glTF/GLB data
	//   - isGLB: true if the reader provides GLB binary data, false for glTF JSON
	//   - settings: the loader's import settings
	//
	// Returns:
	//   - model.Model: the imported skeleton and sequences
	//   - error: error if import fails
	ImportReader(name string, r io.Reader, isGLB bool, settings importSettings) (model.Model, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates a new glTF importer.
func newGLTFImporter() gltfImporter {
	return &gltfImporterImpl{}
}

func (imp *gltfImporterImpl) Import(path string, settings importSettings) (model.Model, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return imp.importFromParser(parser, name, settings)
}

func (imp *gltfImporterImpl) ImportReader(name string, r io.Reader, isGLB bool, settings importSettings) (model.Model, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}
	return imp.importFromParser(parser, name, settings)
}

// importFromParser builds the model from a parser that has already loaded a document.
func (imp *gltfImporterImpl) importFromParser(parser gltfParser, fallbackName string, settings importSettings) (model.Model, error) {
	doc := parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document after parsing")
	}
	name := gltfAssetName(doc, fallbackName)

	skeletonExtractor := newGLTFSkeletonExtractor(parser)
	animationExtractor := newGLTFAnimationExtractor(parser)

	var (
		skeleton   *model.Skeleton
		nodeToBone map[int]int32
		err        error
	)
	switch {
	case settings.skeleton != nil:
		skeleton = settings.skeleton
		nodeToBone = skeletonExtractor.MapNodesByName(skeleton)
		if len(nodeToBone) == 0 {
			return nil, fmt.Errorf("%s: no node matches a bone of skeleton %q: %w", name, skeleton.Name, ErrSkeletonMismatch)
		}
	case len(doc.Skins) > 0:
		skeleton, nodeToBone, err = skeletonExtractor.ExtractSkin(gltfPickSkin(doc, settings.skinIndex), name)
	case len(doc.Nodes) > 0:
		skeleton, nodeToBone, err = skeletonExtractor.ExtractNodes(name)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrNoSkeleton)
	}
	if err != nil {
		return nil, fmt.Errorf("skeleton extraction failed: %w", err)
	}

	m, err := model.NewModel(skeleton, model.WithName(name))
	if err != nil {
		return nil, err
	}
	for i := range doc.Animations {
		if !gltfTargetsAny(&doc.Animations[i], nodeToBone) {
			common.Logger().Debug("[Loader] skipping animation with no mapped bones", "model", name, "animation", i)
			continue
		}

		var opts []model.SequenceBuilderOption
		if settings.rootMotionFor(doc.Animations[i].Name) {
			opts = append(opts, model.WithRootMotion(true))
		}
		seq, err := animationExtractor.ExtractSequence(i, skeleton, nodeToBone, opts...)
		if err != nil {
			return nil, fmt.Errorf("animation extraction failed: %w", err)
		}
		if err := m.AddAsset(seq); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return m, nil
}

// --- Helper Functions ---

// gltfPickSkin returns the requested skin, else the first skin bound to a node, else skin 0.
func gltfPickSkin(doc *gltfDocument, requested int) int {
	if requested >= 0 {
		return requested
	}
	for _, node := range doc.Nodes {
		if node.Skin != nil {
			return *node.Skin
		}
	}
	return 0
}

// gltfTargetsAny reports whether any channel of the animation targets a mapped node.
func gltfTargetsAny(anim *gltfAnimation, nodeToBone map[int]int32) bool {
	for _, ch := range anim.Channels {
		if ch.Target.Node == nil {
			continue
		}
		if _, ok := nodeToBone[*ch.Target.Node]; ok {
			return true
		}
	}
	return false
}

// gltfAssetName derives a model name from the default scene or the fallback.
func gltfAssetName(doc *gltfDocument, fallback string) string {
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}
	return common.Coalesce(fallback, "unnamed_asset")
}
