package anim

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

var (
	// ErrNodeIndexOutOfRange is returned when a baked link id does not address a node.
	ErrNodeIndexOutOfRange = errors.New("anim: node index out of range")

	// ErrInvalidClass is returned when a class's baked tables are inconsistent.
	ErrInvalidClass = errors.New("anim: invalid class")

	// ErrNodeTypeMismatch is returned when a node is not of the requested type.
	ErrNodeTypeMismatch = errors.New("anim: node type mismatch")
)

// NodeFactory allocates one node for a new instance of a class.
type NodeFactory func() Node

// Class is the compiled form of an animation graph. It is immutable and shared by every
// instance created from it: each Proxy allocates its own nodes from the factories.
//
// Nodes are stored in the property array in reverse declaration order, so the node
// declared with link id k lives at index len(nodes)-1-k. Link ids in pose links, baked
// state machines and the query API all use this scheme.
type Class struct {
	name           string
	skeleton       *model.Skeleton
	factories      []NodeFactory
	rootLinkID     int
	machines       []*BakedStateMachine
	syncGroupNames []string
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// TargetSkeleton returns the skeleton the class was authored for.
func (c *Class) TargetSkeleton() *model.Skeleton { return c.skeleton }

// NumNodes returns the size of the node property array.
func (c *Class) NumNodes() int { return len(c.factories) }

// RootLinkID returns the link id of the graph's root node.
func (c *Class) RootLinkID() int { return c.rootLinkID }

// StateMachine returns the baked description of machine i, or nil.
func (c *Class) StateMachine(i int) *BakedStateMachine {
	if i < 0 || i >= len(c.machines) {
		return nil
	}
	return c.machines[i]
}

// NumStateMachines returns the number of baked machines.
func (c *Class) NumStateMachines() int { return len(c.machines) }

// SyncGroupNames returns the sync groups known at build time.
func (c *Class) SyncGroupNames() []string { return c.syncGroupNames }

// PropertyIndex converts a link id into an index of the node property array.
//
// Parameters:
//   - linkID: the baked link id
//
// Returns:
//   - int: the property index
//   - error: ErrNodeIndexOutOfRange if the id does not address a node
func (c *Class) PropertyIndex(linkID int) (int, error) {
	n := len(c.factories)
	if linkID < 0 || linkID >= n {
		return -1, fmt.Errorf("class %q link %d of %d nodes: %w", c.name, linkID, n, ErrNodeIndexOutOfRange)
	}
	return n - 1 - linkID, nil
}

// instantiate allocates the node property array for a new instance.
func (c *Class) instantiate() []Node {
	nodes := make([]Node, len(c.factories))
	for id, f := range c.factories {
		nodes[len(nodes)-1-id] = f()
	}
	return nodes
}
