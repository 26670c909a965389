package scan

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"

	"github.com/hargabyte/jacograph/internal/graph"
	"github.com/hargabyte/jacograph/internal/ingest"
	"github.com/hargabyte/jacograph/internal/jacoco"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Failure is a file that could not be ingested.
type Failure struct {
	Path string `json:"path" yaml:"path"`
	Err  error  `json:"-" yaml:"-"`
	// Error is Err rendered for output formats
	Error string `json:"error" yaml:"error"`
}

// Result summarises a scan.
type Result struct {
	Scanned  int       `json:"scanned" yaml:"scanned"`   // files offered by the source
	Accepted int       `json:"accepted" yaml:"accepted"` // files the classifier accepted
	Skipped  int       `json:"skipped" yaml:"skipped"`   // accepted but unchanged since the last scan
	Ingested int       `json:"ingested" yaml:"ingested"`
	Replaced int64     `json:"replaced_nodes" yaml:"replaced_nodes"` // nodes removed from earlier scans
	Nodes    int       `json:"nodes" yaml:"nodes"`
	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Plugin is the (accepts, ingest) capability pair a Scanner dispatches
// files to.
type Plugin interface {
	Accepts(path string) bool
	Ingest(ctx context.Context, file ingest.File, path string, host ingest.Host) (graph.Handle, error)
}

var _ Plugin = (*ingest.Plugin)(nil)

// Scanner runs the ingestion plugin over every accepted file of a Source.
// A failing file is recorded in the result and never stops the scan.
type Scanner struct {
	Plugin Plugin
	Target Target
	// MaxBytes bounds how much of a file is read; <= 0 uses
	// jacoco.DefaultMaxBytes.
	MaxBytes int64
	// Workers bounds concurrent ingestions; <= 0 uses GOMAXPROCS.
	Workers int
	// Force re-ingests files whose content hash is unchanged.
	Force bool
	Log   logrus.FieldLogger

	mu     sync.Mutex
	result *Result
}

// Run scans src. It returns an error only if the source cannot be walked or
// ctx is cancelled; per-file errors are in Result.Failures.
func (s *Scanner) Run(ctx context.Context, src Source) (*Result, error) {
	s.result = &Result{}
	log := s.logger()

	var candidates []Item
	err := src.Walk(ctx, func(it Item) error {
		s.result.Scanned++
		if s.Plugin.Accepts(it.Path) {
			candidates = append(candidates, it)
		}
		return nil
	})
	if err != nil {
		return s.result, err
	}
	s.result.Accepted = len(candidates)
	log.WithField("files", len(candidates)).Debug("coverage reports found")

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, it := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := s.process(gctx, it); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.WithField("path", it.Path).WithError(err).Error("failed to ingest coverage report")
				s.fail(it.Path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.result, err
	}
	if err := ctx.Err(); err != nil {
		return s.result, err
	}

	sort.Slice(s.result.Failures, func(i, j int) bool {
		return s.result.Failures[i].Path < s.result.Failures[j].Path
	})
	return s.result, nil
}

// process ingests one file inside its own target session.
func (s *Scanner) process(ctx context.Context, it Item) error {
	data, hash, err := s.load(ctx, it)
	if err != nil {
		return err
	}

	if !s.Force {
		changed, err := s.Target.IsFileChanged(ctx, it.Path, hash)
		if err != nil {
			return fmt.Errorf("check file hash: %w", err)
		}
		if !changed {
			s.logger().WithField("path", it.Path).Debug("unchanged, skipping")
			s.mu.Lock()
			s.result.Skipped++
			s.mu.Unlock()
			return nil
		}
	}

	sess, err := s.Target.Begin(ctx)
	if err != nil {
		return err
	}
	defer sess.Rollback()

	replaced, err := sess.DeleteReport(it.Path)
	if err != nil {
		return err
	}

	file := ingest.FileFunc(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
	if _, err := s.Plugin.Ingest(ctx, file, it.Path, sess); err != nil {
		return err
	}
	if err := sess.SetFileScanned(it.Path, hash); err != nil {
		return err
	}
	created := sess.Created()
	if err := sess.Commit(); err != nil {
		return err
	}

	s.mu.Lock()
	s.result.Ingested++
	s.result.Nodes += created
	s.result.Replaced += replaced
	s.mu.Unlock()
	return nil
}

// load reads the file once, hashing it on the way. Files over the size
// limit are rejected before parsing.
func (s *Scanner) load(ctx context.Context, it Item) ([]byte, string, error) {
	rc, err := it.File.Open(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("open report: %w", err)
	}
	defer rc.Close()

	limit := s.MaxBytes
	if limit <= 0 {
		limit = jacoco.DefaultMaxBytes
	}

	var buf bytes.Buffer
	if it.Size > 0 && it.Size <= limit {
		buf.Grow(int(it.Size))
	}
	h := xxh3.New()
	if _, err := io.Copy(io.MultiWriter(&buf, h), io.LimitReader(rc, limit+1)); err != nil {
		return nil, "", fmt.Errorf("read report: %w", err)
	}
	if int64(buf.Len()) > limit {
		return nil, "", fmt.Errorf("%w: more than %d bytes", jacoco.ErrTooLarge, limit)
	}
	return buf.Bytes(), hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Scanner) fail(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result.Failures = append(s.result.Failures, Failure{Path: path, Err: err, Error: err.Error()})
}

func (s *Scanner) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
