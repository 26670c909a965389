// Package scan discovers coverage reports in a source tree or bucket and
// feeds them through the ingestion plugin into a graph target.
package scan

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hargabyte/jacograph/internal/ingest"
	"github.com/sirupsen/logrus"
)

// Item is one file offered by a Source.
type Item struct {
	// Path is slash separated and relative to the source root.
	Path string
	Size int64
	File ingest.File
}

// Source enumerates the files of a scan. Walk stops at the first error fn
// returns and returns it.
type Source interface {
	Walk(ctx context.Context, fn func(Item) error) error
}

// FSSource walks a directory tree on the local filesystem. Hidden files and
// directories are always skipped.
type FSSource struct {
	Root    string
	Exclude []string
	Log     logrus.FieldLogger
}

// Walk implements Source. Unreadable entries below the root are logged and
// skipped; an unreadable root is an error.
func (s *FSSource) Walk(ctx context.Context, fn func(Item) error) error {
	root := filepath.Clean(s.Root)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("walk %s: %w", root, err)
			}
			s.logger().WithField("path", path).WithError(err).Warn("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && shouldExcludeDir(path, root, s.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || shouldExcludeFile(path, root, s.Exclude) {
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}

		abs := path
		return fn(Item{
			Path: filepath.ToSlash(getRelativePath(path, root)),
			Size: size,
			File: ingest.FileFunc(func(context.Context) (io.ReadCloser, error) {
				return os.Open(abs)
			}),
		})
	})
}

func (s *FSSource) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

// shouldExcludeDir checks if a directory should be skipped entirely
func shouldExcludeDir(path, basePath string, patterns []string) bool {
	relPath := filepath.ToSlash(getRelativePath(path, basePath))

	// Always exclude hidden directories
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && base != "." {
		return true
	}

	for _, pattern := range patterns {
		// Remove trailing /**
		dirPattern := strings.TrimSuffix(pattern, "/**")
		dirPattern = strings.TrimSuffix(dirPattern, "/*")

		// Simple directory name match
		if base == dirPattern || relPath == dirPattern {
			return true
		}

		if matched, _ := filepath.Match(dirPattern, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(dirPattern, base); matched {
			return true
		}
	}

	return false
}

// shouldExcludeFile checks if a file should be excluded from scanning
func shouldExcludeFile(path, basePath string, patterns []string) bool {
	relPath := filepath.ToSlash(getRelativePath(path, basePath))
	base := filepath.Base(path)

	// Always exclude hidden files
	if strings.HasPrefix(base, ".") {
		return true
	}

	for _, pattern := range patterns {
		// Handle ** patterns by checking the filename alone
		if strings.Contains(pattern, "**") {
			simplePattern := strings.ReplaceAll(pattern, "**/", "")
			simplePattern = strings.ReplaceAll(simplePattern, "**", "")

			if simplePattern != "" {
				if matched, _ := filepath.Match(simplePattern, base); matched {
					return true
				}
			}
		}

		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}

func getRelativePath(path, basePath string) string {
	rel, err := filepath.Rel(basePath, path)
	if err != nil {
		return path
	}
	return rel
}
