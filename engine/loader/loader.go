package loader

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no backend handles.
	ErrUnsupportedFormat = errors.New("loader: unsupported asset format")

	// ErrNoSkeleton is returned when a file has neither skins nor nodes to build a skeleton from.
	ErrNoSkeleton = errors.New("loader: asset has no skeleton")

	// ErrSkeletonMismatch is returned when no node of a file matches a bone of the target skeleton.
	ErrSkeletonMismatch = errors.New("loader: asset does not match target skeleton")
)

// LoaderBackendType identifies the asset file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// importSettings carries the loader options the backends need.
type importSettings struct {
	skeleton      *model.Skeleton
	skinIndex     int
	rootMotion    map[string]struct{}
	rootMotionAll bool
}

// rootMotionFor reports whether root motion is forced on for the named animation.
func (s importSettings) rootMotionFor(name string) bool {
	if s.rootMotionAll {
		return true
	}
	_, ok := s.rootMotion[name]
	return ok
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu    sync.RWMutex
	group singleflight.Group

	settings importSettings

	modelCache map[string]model.Model

	backend loaderBackend
}

// Loader imports skeletons and animation sequences from asset files into models and caches them.
// It abstracts the file format (glTF, GLB, etc.) behind a backend. Concurrent loads of the
// same key share one import.
type Loader interface {
	// Load imports an asset file and caches the resulting model by path.
	// If the model is already cached, the cached version is returned.
	// The backend is selected based on the file extension (.gltf/.glb → glTF backend).
	//
	// Parameters:
	//   - path: the file path to the asset file
	//
	// Returns:
	//   - model.Model: the skeleton and one sequence per animation
	//   - error: error if loading fails
	Load(path string) (model.Model, error)

	// LoadReader imports an asset from a reader stream and caches it by the given name.
	//
	// Parameters:
	//   - name: the cache key and fallback model name
	//   - r: the reader providing asset data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error)

	// Get retrieves a cached model by key. Returns nil if not found.
	Get(key string) model.Model

	// Models returns a copy of the model cache.
	Models() map[string]model.Model

	// Evict removes a model from the cache.
	Evict(key string)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		modelCache: make(map[string]model.Model),
		settings:   importSettings{skinIndex: -1},
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend()
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (model.Model, error) {
	return l.load(path, func() (model.Model, error) {
		backend, err := l.resolveBackend(path)
		if err != nil {
			return nil, err
		}
		return backend.Load(path, l.settings)
	})
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error) {
	return l.load(name, func() (model.Model, error) {
		if l.backend == nil {
			return nil, ErrUnsupportedFormat
		}
		return l.backend.LoadReader(name, r, isGLB, l.settings)
	})
}

// load returns the cached model for key or runs importFn once across concurrent callers.
func (l *loader) load(key string, importFn func() (model.Model, error)) (model.Model, error) {
	if cached := l.Get(key); cached != nil {
		return cached, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if cached := l.Get(key); cached != nil {
			return cached, nil
		}
		m, err := importFn()
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.modelCache[key] = m
		l.mu.Unlock()

		common.Logger().Debug("[Loader] imported model",
			"key", key,
			"name", m.Name(),
			"bones", m.Skeleton().NumBones(),
			"sequences", m.AnimationCount(),
		)
		return m, nil
	})
	if err != nil {
		common.Logger().Warn("[Loader] import failed", "key", key, "error", err)
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return v.(model.Model), nil
}

func (l *loader) Get(key string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[key]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.modelCache)
}

func (l *loader) Evict(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.modelCache, key)
}

// resolveBackend selects an appropriate loader backend based on the file extension.
// Currently only glTF/GLB is supported.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		if l.backend != nil {
			return l.backend, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
}
