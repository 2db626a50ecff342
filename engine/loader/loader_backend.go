package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// loaderBackend defines the generic interface for importing animation assets from files or streams.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load imports the skeleton and animations of the file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//   - settings: the loader's import settings
	//
	// Returns:
	//   - model.Model: the imported model
	//   - error: error if loading fails
	Load(path string, settings importSettings) (model.Model, error)

	// LoadReader imports an asset from a reader stream.
	//
	// Parameters:
	//   - name: the fallback model name
	//   - r: the reader providing the asset data
	//   - isGLB: true if the reader provides GLB binary data, false for text-based formats
	//   - settings: the loader's import settings
	//
	// Returns:
	//   - model.Model: the imported model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool, settings importSettings) (model.Model, error)
}
