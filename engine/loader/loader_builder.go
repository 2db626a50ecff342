package loader

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithSkeleton imports every file against an existing skeleton instead of building one from the file.
// Animation channels are matched to bones by node name, so animation-only exports can share the
// skeleton of a character loaded earlier.
//
// Parameters:
//   - skeleton: the target skeleton
//
// Returns:
//   - LoaderBuilderOption: a function that applies the skeleton option to a loader
func WithSkeleton(skeleton *model.Skeleton) LoaderBuilderOption {
	return func(l *loader) {
		l.settings.skeleton = skeleton
	}
}

// WithSkin selects the glTF skin to build the skeleton from. By default the first skin bound
// to a node is used.
func WithSkin(index int) LoaderBuilderOption {
	return func(l *loader) {
		l.settings.skinIndex = index
	}
}

// WithRootMotion enables root motion on the named animations, or on every animation when no
// names are given. Animations can also opt in through "rootMotion" in their glTF extras.
//
// Parameters:
//   - names: the animation names to enable root motion for
//
// Returns:
//   - LoaderBuilderOption: a function that applies the root motion option to a loader
func WithRootMotion(names ...string) LoaderBuilderOption {
	return func(l *loader) {
		if len(names) == 0 {
			l.settings.rootMotionAll = true
			return
		}
		if l.settings.rootMotion == nil {
			l.settings.rootMotion = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			l.settings.rootMotion[n] = struct{}{}
		}
	}
}

// WithModel is an option builder that pre-populates the model cache with a model.
//
// Parameters:
//   - key: the cache key for the model
//   - m: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(key string, m model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[key] = m
	}
}
