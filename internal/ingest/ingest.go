// Package ingest ties classification, parsing and mapping together for one
// coverage report at a time.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hargabyte/jacograph/internal/classify"
	"github.com/hargabyte/jacograph/internal/graph"
	"github.com/hargabyte/jacograph/internal/jacoco"
	"github.com/hargabyte/jacograph/internal/mapper"
	"github.com/sirupsen/logrus"
)

// ErrNotAccepted is returned by Ingest for paths the classifier rejects.
var ErrNotAccepted = errors.New("path is not a coverage report")

// Error is an ingestion failure for one file. Use errors.As to reach the
// underlying *jacoco.ParseError or *mapper.MappingError.
type Error struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// File opens the byte stream of a scanned file.
type File interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileFunc adapts a function to File.
type FileFunc func(ctx context.Context) (io.ReadCloser, error)

// Open implements File.
func (f FileFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

// Host is the scanning side of an ingestion: it owns the graph being written
// and hands out the report node for the file currently being scanned.
type Host interface {
	graph.Sink
	Report(r graph.Report) (graph.Handle, error)
}

// Plugin is the (accepts, ingest) pair registered with the scanner.
type Plugin struct {
	Classifier *classify.Classifier
	Mapper     *mapper.Mapper
	Parse      jacoco.Options
	Log        logrus.FieldLogger
}

// New returns a Plugin.
func New(c *classify.Classifier, m *mapper.Mapper, opts jacoco.Options) *Plugin {
	return &Plugin{Classifier: c, Mapper: m, Parse: opts}
}

// Accepts reports whether path is a coverage report. It never fails.
func (p *Plugin) Accepts(path string) bool {
	return p.Classifier.Accepts(path)
}

// Ingest parses the report behind file and maps it into host under a new
// report node, which it returns. The stream is closed on every path.
func (p *Plugin) Ingest(ctx context.Context, file File, path string, host Host) (graph.Handle, error) {
	if !p.Accepts(path) {
		return "", &Error{Path: path, Err: ErrNotAccepted}
	}
	return p.Load(ctx, file, path, host)
}

// Load is Ingest without the classification check, for files the user
// names explicitly.
func (p *Plugin) Load(ctx context.Context, file File, path string, host Host) (graph.Handle, error) {
	p.logger().WithField("path", path).Debug("scanning jacoco report")

	doc, err := p.read(ctx, file)
	if err != nil {
		return "", &Error{Path: path, Err: err}
	}

	report, err := host.Report(graph.Report{Name: doc.Name, FilePath: path})
	if err != nil {
		return "", &Error{Path: path, Err: fmt.Errorf("create report node: %w", err)}
	}

	if err := p.Mapper.Map(doc, host, report); err != nil {
		return "", &Error{Path: path, Err: err}
	}
	return report, nil
}

func (p *Plugin) read(ctx context.Context, file File) (doc *jacoco.Report, err error) {
	rc, err := file.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()

	return jacoco.ParseWithOptions(rc, p.Parse)
}

func (p *Plugin) logger() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

// MemoryHost is a Host backed by an in-memory graph, used for dry runs.
type MemoryHost struct {
	*graph.Memory
}

// NewMemoryHost returns a Host over a fresh in-memory graph.
func NewMemoryHost() MemoryHost {
	return MemoryHost{Memory: graph.NewMemory()}
}

// Report creates the root report node.
func (h MemoryHost) Report(r graph.Report) (graph.Handle, error) {
	return h.Create(r)
}
