package output

import (
	"github.com/hargabyte/jacograph/internal/graph"
)

// NodeOutput is one node of a rendered report tree. Only the fields that
// apply to the node's kind are set.
type NodeOutput struct {
	Kind       graph.Kind `yaml:"kind" json:"kind"`
	Name       string     `yaml:"name,omitempty" json:"name,omitempty"`
	File       string     `yaml:"file,omitempty" json:"file,omitempty"`
	FQN        string     `yaml:"fqn,omitempty" json:"fqn,omitempty"`
	SourceFile string     `yaml:"source_file,omitempty" json:"source_file,omitempty"`
	Signature  string     `yaml:"signature,omitempty" json:"signature,omitempty"`
	Line       string     `yaml:"line,omitempty" json:"line,omitempty"`
	Type       string     `yaml:"type,omitempty" json:"type,omitempty"`
	Missed     *int64     `yaml:"missed,omitempty" json:"missed,omitempty"`
	Covered    *int64     `yaml:"covered,omitempty" json:"covered,omitempty"`

	Children []*NodeOutput `yaml:"children,omitempty" json:"children,omitempty"`
}

// NewNodeOutput converts an entity to its output form.
func NewNodeOutput(e graph.Entity) *NodeOutput {
	n := &NodeOutput{Kind: e.Kind()}
	switch v := e.(type) {
	case graph.Report:
		n.Name, n.File = v.Name, v.FilePath
	case graph.Package:
		n.Name = v.Name
	case graph.Class:
		n.Name, n.FQN, n.SourceFile = v.Name, v.FullyQualifiedName, v.SourceFileName
	case graph.Method:
		n.Name, n.Signature, n.Line = v.Name, v.Signature, v.Line
	case graph.Counter:
		missed, covered := v.Missed, v.Covered
		n.Type, n.Missed, n.Covered = string(v.Type), &missed, &covered
	}
	return n
}

// TreeBuilder assembles a NodeOutput tree from a depth-first walk that
// reports each node with its depth, as graph.Memory.Walk and store.Walk do.
type TreeBuilder struct {
	Density Density

	root  *NodeOutput
	stack []*NodeOutput
}

// Add appends e at depth. Nodes the density excludes are dropped along
// with their subtrees.
func (b *TreeBuilder) Add(e graph.Entity, depth int) {
	if depth > len(b.stack) {
		// parent was dropped
		return
	}
	b.stack = b.stack[:depth]
	if !b.density().Includes(e.Kind()) {
		return
	}

	n := NewNodeOutput(e)
	if depth == 0 {
		b.root = n
	} else {
		parent := b.stack[depth-1]
		parent.Children = append(parent.Children, n)
	}
	b.stack = append(b.stack, n)
}

// Root returns the assembled tree, nil if nothing was added.
func (b *TreeBuilder) Root() *NodeOutput {
	return b.root
}

func (b *TreeBuilder) density() Density {
	if b.Density == "" {
		return DefaultDensity
	}
	return b.Density
}

// MemoryTree renders the subtree of g rooted at root.
func MemoryTree(g *graph.Memory, root graph.Handle, d Density) (*NodeOutput, error) {
	b := &TreeBuilder{Density: d}
	err := g.Walk(root, func(_ graph.Handle, e graph.Entity, depth int) error {
		b.Add(e, depth)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.Root(), nil
}
