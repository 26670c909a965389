package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hargabyte/jacograph/internal/graph"
	"gopkg.in/yaml.v3"
)

// Formatter is the interface for formatting command output in different formats.
type Formatter interface {
	// Format formats v according to the specified density level.
	Format(v interface{}, density Density) (string, error)

	// FormatToWriter writes formatted output directly to a writer.
	FormatToWriter(w io.Writer, v interface{}, density Density) error
}

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format formats v as YAML.
func (f *YAMLFormatter) Format(v interface{}, density Density) (string, error) {
	var buf bytes.Buffer
	if err := f.FormatToWriter(&buf, v, density); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatToWriter writes YAML output to a writer.
func (f *YAMLFormatter) FormatToWriter(w io.Writer, v interface{}, density Density) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(applyDensityFilter(v, density))
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format formats v as JSON.
func (f *JSONFormatter) Format(v interface{}, density Density) (string, error) {
	var buf bytes.Buffer
	if err := f.FormatToWriter(&buf, v, density); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatToWriter writes JSON output to a writer.
func (f *JSONFormatter) FormatToWriter(w io.Writer, v interface{}, density Density) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(applyDensityFilter(v, density))
}

// TextFormatter renders report trees as indented lines:
//
//	report acme-service (build/jacoco/jacoco.xml)
//	  package org/acme
//	    class org.acme.Foo (Foo.java)
//	      method java.lang.String bar(int, java.lang.String) @10
//	        BRANCH missed=1 covered=3
//
// Values other than *NodeOutput fall back to YAML.
type TextFormatter struct{}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

// Format formats v as text.
func (f *TextFormatter) Format(v interface{}, density Density) (string, error) {
	var buf bytes.Buffer
	if err := f.FormatToWriter(&buf, v, density); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatToWriter writes text output to a writer.
func (f *TextFormatter) FormatToWriter(w io.Writer, v interface{}, density Density) error {
	node, ok := applyDensityFilter(v, density).(*NodeOutput)
	if !ok {
		return NewYAMLFormatter().FormatToWriter(w, v, density)
	}
	if node == nil {
		return nil
	}
	return writeTextNode(w, node, 0)
}

func writeTextNode(w io.Writer, n *NodeOutput, depth int) error {
	if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), textLine(n)); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := writeTextNode(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func textLine(n *NodeOutput) string {
	switch n.Kind {
	case graph.KindReport:
		return fmt.Sprintf("report %s (%s)", n.Name, n.File)
	case graph.KindClass:
		if n.SourceFile != "" {
			return fmt.Sprintf("class %s (%s)", n.FQN, n.SourceFile)
		}
		return "class " + n.FQN
	case graph.KindMethod:
		if n.Line != "" {
			return fmt.Sprintf("method %s @%s", n.Signature, n.Line)
		}
		return "method " + n.Signature
	case graph.KindCounter:
		var missed, covered int64
		if n.Missed != nil {
			missed = *n.Missed
		}
		if n.Covered != nil {
			covered = *n.Covered
		}
		return fmt.Sprintf("%s missed=%d covered=%d", n.Type, missed, covered)
	default:
		return fmt.Sprintf("%s %s", n.Kind, n.Name)
	}
}

// applyDensityFilter prunes report trees to the requested density. Other
// values are returned as-is.
func applyDensityFilter(v interface{}, density Density) interface{} {
	n, ok := v.(*NodeOutput)
	if !ok || n == nil {
		return v
	}
	return pruneNode(n, density)
}

func pruneNode(n *NodeOutput, density Density) *NodeOutput {
	out := *n
	out.Children = nil
	for _, c := range n.Children {
		if density.Includes(c.Kind) {
			out.Children = append(out.Children, pruneNode(c, density))
		}
	}
	return &out
}

// GetFormatter returns a formatter for the specified format.
func GetFormatter(format Format) (Formatter, error) {
	switch format {
	case FormatYAML:
		return NewYAMLFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatText:
		return NewTextFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
