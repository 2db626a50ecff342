package anim

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// PropertyBag holds the named variables game code exposes to a graph: blend inputs,
// transition rule conditions and values pushed into sub-instances.
type PropertyBag struct {
	mu      sync.RWMutex
	floats  map[string]float32
	bools   map[string]bool
	vectors map[string]mgl32.Vec3
}

// NewPropertyBag creates an empty bag.
func NewPropertyBag() *PropertyBag {
	return &PropertyBag{
		floats:  make(map[string]float32),
		bools:   make(map[string]bool),
		vectors: make(map[string]mgl32.Vec3),
	}
}

func (b *PropertyBag) SetFloat(name string, v float32) {
	b.mu.Lock()
	b.floats[name] = v
	b.mu.Unlock()
}

func (b *PropertyBag) Float(name string) float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.floats[name]
}

func (b *PropertyBag) SetBool(name string, v bool) {
	b.mu.Lock()
	b.bools[name] = v
	b.mu.Unlock()
}

func (b *PropertyBag) Bool(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bools[name]
}

func (b *PropertyBag) SetVec3(name string, v mgl32.Vec3) {
	b.mu.Lock()
	b.vectors[name] = v
	b.mu.Unlock()
}

func (b *PropertyBag) Vec3(name string) mgl32.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.vectors[name]
}

// CopyTo copies the named properties into dst. Names missing from the bag are skipped.
//
// Parameters:
//   - dst: the destination bag
//   - names: the properties to copy
func (b *PropertyBag) CopyTo(dst *PropertyBag, names []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()
	for _, name := range names {
		if v, ok := b.floats[name]; ok {
			dst.floats[name] = v
		}
		if v, ok := b.bools[name]; ok {
			dst.bools[name] = v
		}
		if v, ok := b.vectors[name]; ok {
			dst.vectors[name] = v
		}
	}
}
