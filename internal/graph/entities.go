// Package graph defines the coverage graph model: the entity records produced
// from a JaCoCo report, the relations that connect them, and the Sink through
// which they are persisted.
package graph

import (
	"errors"
	"fmt"
)

// Kind identifies the label of a graph node.
type Kind string

const (
	KindReport  Kind = "Report"
	KindPackage Kind = "Package"
	KindClass   Kind = "Class"
	KindMethod  Kind = "Method"
	KindCounter Kind = "Counter"
)

// Kinds lists every node kind, root first.
var Kinds = []Kind{KindReport, KindPackage, KindClass, KindMethod, KindCounter}

// Relation identifies the type of a parent->child containment edge.
type Relation string

const (
	HasPackage Relation = "HAS_PACKAGE"
	HasClass   Relation = "HAS_CLASS"
	HasMethod  Relation = "HAS_METHOD"
	HasCounter Relation = "HAS_COUNTER"
)

// CounterType is the JaCoCo counter category.
type CounterType string

const (
	CounterInstruction CounterType = "INSTRUCTION"
	CounterLine        CounterType = "LINE"
	CounterBranch      CounterType = "BRANCH"
	CounterComplexity  CounterType = "COMPLEXITY"
	CounterMethod      CounterType = "METHOD"
	CounterClass       CounterType = "CLASS"
)

// IsKnown reports whether t is one of the counter types JaCoCo emits.
func (t CounterType) IsKnown() bool {
	switch t {
	case CounterInstruction, CounterLine, CounterBranch, CounterComplexity, CounterMethod, CounterClass:
		return true
	}
	return false
}

// Entity is implemented by every node record.
type Entity interface {
	Kind() Kind
}

// Report is the root of one scanned coverage file.
type Report struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	FilePath string `json:"file_path" yaml:"file_path"`
}

// Package is a JVM package. Name keeps JaCoCo's slash form (org/acme).
type Package struct {
	Name string `json:"name" yaml:"name"`
}

// Class is a JVM class. FullyQualifiedName is Name with every '/' turned into '.'.
type Class struct {
	Name               string `json:"name" yaml:"name"`
	FullyQualifiedName string `json:"fqn" yaml:"fqn"`
	SourceFileName     string `json:"source_file,omitempty" yaml:"source_file,omitempty"`
}

// Method is a JVM method. Line is kept as text since reports may omit it.
type Method struct {
	Name      string `json:"name" yaml:"name"`
	Signature string `json:"signature" yaml:"signature"`
	Line      string `json:"line,omitempty" yaml:"line,omitempty"`
}

// Counter is a missed/covered tally of one CounterType.
type Counter struct {
	Type    CounterType `json:"type" yaml:"type"`
	Missed  int64       `json:"missed" yaml:"missed"`
	Covered int64       `json:"covered" yaml:"covered"`
}

func (Report) Kind() Kind  { return KindReport }
func (Package) Kind() Kind { return KindPackage }
func (Class) Kind() Kind   { return KindClass }
func (Method) Kind() Kind  { return KindMethod }
func (Counter) Kind() Kind { return KindCounter }

// Handle references a node created through a Sink.
type Handle string

// Sink is the persistence collaborator. Create must receive a fully populated
// entity; Attach wires a child to its single parent exactly once.
type Sink interface {
	Create(e Entity) (Handle, error)
	Attach(parent, child Handle, rel Relation) error
}

var (
	// ErrUnknownHandle is returned when a handle was not issued by the sink.
	ErrUnknownHandle = errors.New("unknown node handle")

	// ErrAlreadyAttached is returned when a child already has a parent.
	ErrAlreadyAttached = errors.New("node already attached to a parent")

	// ErrInvalidRelation is returned when a relation does not fit the kinds it connects.
	ErrInvalidRelation = errors.New("relation does not connect these node kinds")
)

// CheckRelation verifies that rel may connect a parent of kind parent to a
// child of kind child.
func CheckRelation(parent, child Kind, rel Relation) error {
	if rel.ParentKind() != parent || rel.ChildKind() != child {
		return fmt.Errorf("%w: %s -[%s]-> %s", ErrInvalidRelation, parent, rel, child)
	}
	return nil
}

// ParentKind returns the node kind a relation starts from.
func (r Relation) ParentKind() Kind {
	switch r {
	case HasPackage:
		return KindReport
	case HasClass:
		return KindPackage
	case HasMethod:
		return KindClass
	case HasCounter:
		return KindMethod
	}
	return ""
}

// ChildKind returns the node kind a relation points to.
func (r Relation) ChildKind() Kind {
	switch r {
	case HasPackage:
		return KindPackage
	case HasClass:
		return KindClass
	case HasMethod:
		return KindMethod
	case HasCounter:
		return KindCounter
	}
	return ""
}
