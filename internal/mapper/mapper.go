// Package mapper converts a parsed JaCoCo report into coverage graph entities.
package mapper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hargabyte/jacograph/internal/graph"
	"github.com/hargabyte/jacograph/internal/jacoco"
	"github.com/hargabyte/jacograph/internal/signature"
)

// MappingError reports a field of a well-formed document that cannot be
// converted, such as a non-numeric counter value.
type MappingError struct {
	Entity graph.Kind
	Field  string
	Value  string
	Err    error
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	return fmt.Sprintf("map %s.%s %q: %v", e.Entity, e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Err
}

// Mapper walks report -> packages -> classes -> methods -> counters and
// emits one entity per element, in document order. Each entity is created
// with all of its fields set, filled with its children, and only then attached
// to its parent. A Mapper holds no per-document state.
type Mapper struct {
	Formatter signature.Formatter
}

// New returns a Mapper using f to build method signatures.
func New(f signature.Formatter) *Mapper {
	return &Mapper{Formatter: f}
}

// Map populates the graph rooted at report from doc.
func (m *Mapper) Map(doc *jacoco.Report, sink graph.Sink, report graph.Handle) error {
	for _, pkg := range doc.AllPackages() {
		h, err := m.mapPackage(pkg, sink)
		if err != nil {
			return err
		}
		if err := sink.Attach(report, h, graph.HasPackage); err != nil {
			return fmt.Errorf("attach package %s: %w", pkg.Name, err)
		}
	}
	return nil
}

func (m *Mapper) mapPackage(pkg jacoco.Package, sink graph.Sink) (graph.Handle, error) {
	h, err := sink.Create(graph.Package{Name: pkg.Name})
	if err != nil {
		return "", fmt.Errorf("create package %s: %w", pkg.Name, err)
	}

	for _, cls := range pkg.Classes {
		child, err := m.mapClass(cls, sink)
		if err != nil {
			return "", err
		}
		if err := sink.Attach(h, child, graph.HasClass); err != nil {
			return "", fmt.Errorf("attach class %s: %w", cls.Name, err)
		}
	}
	return h, nil
}

func (m *Mapper) mapClass(cls jacoco.Class, sink graph.Sink) (graph.Handle, error) {
	h, err := sink.Create(graph.Class{
		Name:               cls.Name,
		FullyQualifiedName: FullyQualifiedName(cls.Name),
		SourceFileName:     cls.SourceFileName,
	})
	if err != nil {
		return "", fmt.Errorf("create class %s: %w", cls.Name, err)
	}

	for _, method := range cls.Methods {
		child, err := m.mapMethod(method, sink)
		if err != nil {
			return "", fmt.Errorf("class %s: %w", cls.Name, err)
		}
		if err := sink.Attach(h, child, graph.HasMethod); err != nil {
			return "", fmt.Errorf("attach method %s.%s: %w", cls.Name, method.Name, err)
		}
	}
	return h, nil
}

func (m *Mapper) mapMethod(method jacoco.Method, sink graph.Sink) (graph.Handle, error) {
	sig, err := m.Formatter.Format(method.Name, method.Desc)
	if err != nil {
		return "", &MappingError{Entity: graph.KindMethod, Field: "desc", Value: method.Desc, Err: err}
	}

	h, err := sink.Create(graph.Method{
		Name:      method.Name,
		Signature: sig,
		Line:      method.Line,
	})
	if err != nil {
		return "", fmt.Errorf("create method %s: %w", method.Name, err)
	}

	for _, counter := range method.Counters {
		child, err := mapCounter(counter, sink)
		if err != nil {
			return "", fmt.Errorf("method %s: %w", sig, err)
		}
		if err := sink.Attach(h, child, graph.HasCounter); err != nil {
			return "", fmt.Errorf("attach %s counter of %s: %w", counter.Type, sig, err)
		}
	}
	return h, nil
}

func mapCounter(counter jacoco.Counter, sink graph.Sink) (graph.Handle, error) {
	missed, err := parseTally("missed", counter.Missed)
	if err != nil {
		return "", err
	}
	covered, err := parseTally("covered", counter.Covered)
	if err != nil {
		return "", err
	}

	h, err := sink.Create(graph.Counter{
		Type:    graph.CounterType(counter.Type),
		Missed:  missed,
		Covered: covered,
	})
	if err != nil {
		return "", fmt.Errorf("create %s counter: %w", counter.Type, err)
	}
	return h, nil
}

var errNegative = errors.New("negative count")

func parseTally(field, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, &MappingError{Entity: graph.KindCounter, Field: field, Value: value, Err: err}
	}
	if n < 0 {
		return 0, &MappingError{Entity: graph.KindCounter, Field: field, Value: value, Err: errNegative}
	}
	return n, nil
}

// FullyQualifiedName converts a JVM internal class name (org/acme/Foo) to
// its dotted form (org.acme.Foo).
func FullyQualifiedName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
