package anim

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// ClassBuilder assembles a Class. Nodes receive link ids in the order they are added.
type ClassBuilder struct {
	class *Class
}

// NewClassBuilder starts a class for the given skeleton.
//
// Parameters:
//   - name: the class name
//   - skeleton: the skeleton the graph animates
//
// Returns:
//   - *ClassBuilder: the builder
func NewClassBuilder(name string, skeleton *model.Skeleton) *ClassBuilder {
	return &ClassBuilder{class: &Class{name: name, skeleton: skeleton, rootLinkID: -1}}
}

// AddNode declares a node and returns its link id.
//
// Parameters:
//   - f: allocates the node for each instance
//
// Returns:
//   - int: the link id to use in pose links
func (b *ClassBuilder) AddNode(f NodeFactory) int {
	b.class.factories = append(b.class.factories, f)
	return len(b.class.factories) - 1
}

// SetRoot marks the node with the given link id as the graph root.
func (b *ClassBuilder) SetRoot(linkID int) *ClassBuilder {
	b.class.rootLinkID = linkID
	return b
}

// AddStateMachine registers a baked machine and returns its index in the class.
func (b *ClassBuilder) AddStateMachine(m *BakedStateMachine) int {
	b.class.machines = append(b.class.machines, m)
	return len(b.class.machines) - 1
}

// AddSyncGroup declares a sync group name so its buffers are allocated up front.
func (b *ClassBuilder) AddSyncGroup(name string) *ClassBuilder {
	if !slices.Contains(b.class.syncGroupNames, name) {
		b.class.syncGroupNames = append(b.class.syncGroupNames, name)
	}
	return b
}

// Build validates the baked tables and returns the class.
//
// Returns:
//   - *Class: the class
//   - error: ErrNilSkeleton, ErrNodeIndexOutOfRange or ErrInvalidClass describing the problem
func (b *ClassBuilder) Build() (*Class, error) {
	c := b.class
	if c.skeleton == nil {
		return nil, fmt.Errorf("class %q: %w", c.name, model.ErrNilSkeleton)
	}
	if _, err := c.PropertyIndex(c.rootLinkID); err != nil {
		return nil, fmt.Errorf("class %q root: %w", c.name, err)
	}
	for i, m := range c.machines {
		if err := m.validate(c); err != nil {
			return nil, fmt.Errorf("class %q machine %d: %w", c.name, i, err)
		}
	}
	b.class = &Class{name: c.name, skeleton: c.skeleton, rootLinkID: -1}
	return c, nil
}
