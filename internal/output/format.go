// Package output renders coverage graphs and command results as YAML, JSON
// or an indented text tree.
package output

import (
	"fmt"
	"strings"

	"github.com/hargabyte/jacograph/internal/graph"
)

// Format represents the output format type.
type Format string

const (
	// FormatYAML is the default self-documenting YAML output
	FormatYAML Format = "yaml"

	// FormatJSON is the JSON output format
	FormatJSON Format = "json"

	// FormatText is a compact indented tree, one node per line
	FormatText Format = "text"
)

// ParseFormat parses a format string into a Format value.
// Accepts: "yaml", "json", "text" (case-insensitive)
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("invalid format: %q (expected yaml, json, or text)", s)
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// Density represents how deep into a report tree output goes:
//   - Sparse: report, packages and classes
//   - Medium: adds methods with their signatures (default)
//   - Dense: adds every counter
type Density string

const (
	DensitySparse Density = "sparse"
	DensityMedium Density = "medium"
	DensityDense  Density = "dense"
)

// ParseDensity parses a density string into a Density value.
// Accepts: "sparse", "medium", "dense" (case-insensitive)
func ParseDensity(s string) (Density, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sparse":
		return DensitySparse, nil
	case "medium":
		return DensityMedium, nil
	case "dense":
		return DensityDense, nil
	default:
		return "", fmt.Errorf("invalid density: %q (expected sparse, medium, or dense)", s)
	}
}

// String returns the string representation of the density.
func (d Density) String() string {
	return string(d)
}

// Includes reports whether nodes of kind k are shown at this density.
func (d Density) Includes(k graph.Kind) bool {
	switch k {
	case graph.KindMethod:
		return d == DensityMedium || d == DensityDense
	case graph.KindCounter:
		return d == DensityDense
	default:
		return true
	}
}

// DefaultFormat is the default output format when none is specified.
const DefaultFormat = FormatYAML

// DefaultDensity is the default density level when none is specified.
const DefaultDensity = DensityMedium
