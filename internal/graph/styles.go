package graph

// KindShape is the Mermaid node shape drawn for one node kind.
type KindShape struct {
	Open  string
	Close string
}

// KindShapes maps node kinds to their Mermaid shapes.
var KindShapes = map[Kind]KindShape{
	// Report - cylinder, it is a stored file
	KindReport: {Open: "[(", Close: ")]"},

	// Packages and classes - containers
	KindPackage: {Open: "[[", Close: "]]"},
	KindClass:   {Open: "{{", Close: "}}"},

	KindMethod:  {Open: "[", Close: "]"},
	KindCounter: {Open: "([", Close: "])"},
}

// CoverageClass buckets a covered ratio into a Mermaid class name.
// Nodes without counters are unstyled.
func CoverageClass(missed, covered int64) string {
	total := missed + covered
	if total == 0 {
		return ""
	}
	ratio := float64(covered) / float64(total)
	switch {
	case ratio >= 0.8:
		return "high"
	case ratio >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// coverageClassDefs are emitted once per diagram.
var coverageClassDefs = []string{
	"classDef high fill:#c8e6c9,stroke:#2e7d32",
	"classDef medium fill:#fff9c4,stroke:#f9a825",
	"classDef low fill:#ffcdd2,stroke:#c62828",
}

// GetKindShape returns the shape for a kind, falling back to a rectangle.
func GetKindShape(k Kind) KindShape {
	if shape, ok := KindShapes[k]; ok {
		return shape
	}
	return KindShape{Open: "[", Close: "]"}
}
