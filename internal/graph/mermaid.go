package graph

import (
	"fmt"
	"strings"
)

// MermaidOptions configures Mermaid diagram generation.
type MermaidOptions struct {
	MaxNodes  int    // Maximum nodes before collapsing to classes (default: 60)
	Direction string // Layout direction: "TD" (top-down) or "LR" (left-right)
	// Counter selects the counter type used to colour nodes (default: LINE)
	Counter CounterType
	// Deepest is the deepest kind drawn; Counter nodes are never drawn unless
	// it is KindCounter.
	Deepest Kind
	Title   string
}

// DefaultMermaidOptions returns sensible defaults for Mermaid diagram generation.
func DefaultMermaidOptions() *MermaidOptions {
	return &MermaidOptions{
		MaxNodes:  60,
		Direction: "LR",
		Counter:   CounterLine,
		Deepest:   KindMethod,
	}
}

// GenerateMermaid renders the subtree under root as a Mermaid flowchart.
// Method and class nodes are coloured by their coverage of opts.Counter.
// When the subtree has more than MaxNodes drawable nodes, methods are
// collapsed into their classes.
func GenerateMermaid(g *Memory, root Handle, opts *MermaidOptions) (string, error) {
	if opts == nil {
		opts = DefaultMermaidOptions()
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = 60
	}
	if opts.Direction != "TD" && opts.Direction != "LR" {
		opts.Direction = "LR"
	}
	if opts.Counter == "" {
		opts.Counter = CounterLine
	}
	if opts.Deepest == "" {
		opts.Deepest = KindMethod
	}

	deepest := kindDepth(opts.Deepest)
	if n := countUpTo(g, root, deepest); n > opts.MaxNodes && deepest > kindDepth(KindClass) {
		deepest = kindDepth(KindClass)
	}

	totals := coverageTotals(g, root, opts.Counter)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("flowchart %s\n", opts.Direction))
	if opts.Title != "" {
		sb.WriteString(fmt.Sprintf("    %%%% %s\n", opts.Title))
	}

	var edges []string
	err := g.Walk(root, func(h Handle, e Entity, depth int) error {
		if kindDepth(e.Kind()) > deepest {
			return nil
		}
		shape := GetKindShape(e.Kind())
		id := sanitizeMermaidID(string(h))
		label := escapeMermaidString(nodeLabel(e))
		node := fmt.Sprintf("    %s%s\"%s\"%s", id, shape.Open, label, shape.Close)
		if t, ok := totals[h]; ok {
			if class := CoverageClass(t[0], t[1]); class != "" {
				node += ":::" + class
			}
		}
		sb.WriteString(node + "\n")

		if p, _, ok := g.Parent(h); ok && h != root {
			edges = append(edges, fmt.Sprintf("    %s --> %s", sanitizeMermaidID(string(p)), id))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	for _, e := range edges {
		sb.WriteString(e + "\n")
	}
	for _, def := range coverageClassDefs {
		sb.WriteString("    " + def + "\n")
	}
	return sb.String(), nil
}

// GeneratePieChart renders missed/covered totals of one counter type under
// root as a Mermaid pie chart.
func GeneratePieChart(g *Memory, root Handle, counter CounterType, title string) (string, error) {
	if _, ok := g.Node(root); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownHandle, root)
	}
	t := coverageTotals(g, root, counter)[root]

	var sb strings.Builder
	if title != "" {
		sb.WriteString(fmt.Sprintf("pie title %s\n", escapeMermaidString(title)))
	} else {
		sb.WriteString("pie\n")
	}
	sb.WriteString(fmt.Sprintf("    \"covered\" : %d\n", t[1]))
	sb.WriteString(fmt.Sprintf("    \"missed\" : %d\n", t[0]))
	return sb.String(), nil
}

// coverageTotals sums missed/covered of counter for every node under root.
func coverageTotals(g *Memory, root Handle, counter CounterType) map[Handle][2]int64 {
	totals := make(map[Handle][2]int64)
	var sum func(h Handle) [2]int64
	sum = func(h Handle) [2]int64 {
		var t [2]int64
		e, _ := g.Node(h)
		if c, ok := e.(Counter); ok {
			if c.Type == counter {
				t = [2]int64{c.Missed, c.Covered}
			}
			return t
		}
		for _, child := range g.Children(h) {
			ct := sum(child)
			t[0] += ct[0]
			t[1] += ct[1]
		}
		totals[h] = t
		return t
	}
	sum(root)
	return totals
}

func countUpTo(g *Memory, root Handle, depth int) int {
	n := 0
	_ = g.Walk(root, func(_ Handle, e Entity, _ int) error {
		if kindDepth(e.Kind()) <= depth {
			n++
		}
		return nil
	})
	return n
}

func kindDepth(k Kind) int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return len(Kinds)
}

func nodeLabel(e Entity) string {
	switch v := e.(type) {
	case Report:
		if v.Name != "" {
			return v.Name
		}
		return v.FilePath
	case Package:
		return v.Name
	case Class:
		return v.FullyQualifiedName
	case Method:
		return v.Signature
	case Counter:
		return fmt.Sprintf("%s %d/%d", v.Type, v.Covered, v.Missed+v.Covered)
	}
	return string(e.Kind())
}

// sanitizeMermaidID converts an ID to be valid in Mermaid.
// Mermaid IDs can contain alphanumeric chars and underscores.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	s := sb.String()
	if s == "" {
		return "_empty"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// escapeMermaidString escapes special characters in Mermaid string content.
func escapeMermaidString(s string) string {
	s = strings.ReplaceAll(s, "\"", "#quot;")
	s = strings.ReplaceAll(s, "<", "#lt;")
	s = strings.ReplaceAll(s, ">", "#gt;")
	return s
}
