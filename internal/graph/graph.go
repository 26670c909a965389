package graph

import (
	"fmt"
	"sync"
)

// Memory is an in-memory Sink. It keeps nodes in creation order and
// containment edges as adjacency lists in attach order.
type Memory struct {
	mu sync.RWMutex

	nodes map[Handle]Entity
	order []Handle

	// Adjacency list: parent -> children in attach order
	Edges map[Handle][]Handle
	// Reverse adjacency: child -> parent
	parents   map[Handle]Handle
	relations map[Handle]Relation

	next int
}

// NewMemory returns an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{
		nodes:     make(map[Handle]Entity),
		Edges:     make(map[Handle][]Handle),
		parents:   make(map[Handle]Handle),
		relations: make(map[Handle]Relation),
	}
}

// Create stores e and returns its handle.
func (g *Memory) Create(e Entity) (Handle, error) {
	if e == nil {
		return "", fmt.Errorf("create node: nil entity")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.next++
	h := Handle(fmt.Sprintf("n%d", g.next))
	g.nodes[h] = e
	g.order = append(g.order, h)
	return h, nil
}

// Attach adds the containment edge parent -[rel]-> child.
func (g *Memory) Attach(parent, child Handle, rel Relation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.nodes[parent]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, parent)
	}
	c, ok := g.nodes[child]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, child)
	}
	if err := CheckRelation(p.Kind(), c.Kind(), rel); err != nil {
		return err
	}
	if existing, ok := g.parents[child]; ok {
		return fmt.Errorf("%w: %s already under %s", ErrAlreadyAttached, child, existing)
	}

	g.Edges[parent] = append(g.Edges[parent], child)
	g.parents[child] = parent
	g.relations[child] = rel
	return nil
}

// Node returns the entity stored under h.
func (g *Memory) Node(h Handle) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.nodes[h]
	return e, ok
}

// Children returns the children of h in attach order.
func (g *Memory) Children(h Handle) []Handle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Handle, len(g.Edges[h]))
	copy(out, g.Edges[h])
	return out
}

// Parent returns the parent of h and the relation connecting them.
func (g *Memory) Parent(h Handle) (Handle, Relation, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.parents[h]
	return p, g.relations[h], ok
}

// Roots returns the nodes without a parent, in creation order.
func (g *Memory) Roots() []Handle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var roots []Handle
	for _, h := range g.order {
		if _, ok := g.parents[h]; !ok {
			roots = append(roots, h)
		}
	}
	return roots
}

// NodeCount returns the number of nodes in the graph.
func (g *Memory) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Memory) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.parents)
}

// CountByKind returns the number of nodes of each kind.
func (g *Memory) CountByKind() map[Kind]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	counts := make(map[Kind]int, len(Kinds))
	for _, e := range g.nodes {
		counts[e.Kind()]++
	}
	return counts
}

// Walk visits root and its descendants depth-first in attach order.
// Returning an error from fn stops the walk.
func (g *Memory) Walk(root Handle, fn func(h Handle, e Entity, depth int) error) error {
	var visit func(h Handle, depth int) error
	visit = func(h Handle, depth int) error {
		e, ok := g.Node(h)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
		}
		if err := fn(h, e, depth); err != nil {
			return err
		}
		for _, child := range g.Children(h) {
			if err := visit(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(root, 0)
}
