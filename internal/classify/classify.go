// Package classify decides which scanned paths are JaCoCo XML reports.
package classify

import (
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultFilename is the report name Gradle's jacocoTestReport task writes.
	DefaultFilename = "jacocoTestReport.xml"

	// DefaultDirname is the directory name Maven's jacoco plugin writes to.
	DefaultDirname = "jacoco"
)

// Classifier accepts a path when it ends with Filename, or when it is an
// .xml file whose parent directory is named Dirname (case-insensitive).
// A nil Dirname disables the directory rule; an empty Filename disables the
// filename rule.
type Classifier struct {
	Filename string
	Dirname  *string
	Log      logrus.FieldLogger
}

// New returns a Classifier for the given filename and directory name.
func New(filename string, dirname *string) *Classifier {
	return &Classifier{Filename: filename, Dirname: dirname}
}

// Default returns a Classifier using DefaultFilename and DefaultDirname.
func Default() *Classifier {
	dirname := DefaultDirname
	return New(DefaultFilename, &dirname)
}

// Accepts reports whether path looks like a coverage report. Paths are
// '/'-separated. It never fails: any fault while classifying is logged and
// treated as "not accepted".
func (c *Classifier) Accepts(path string) (accepted bool) {
	if c == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger().Errorf("error while checking path %s: %v", path, r)
			accepted = false
		}
	}()

	accepted = c.acceptsPath(path)
	if accepted {
		c.logger().Infof("jacoco report accepted: %s", path)
	}
	return accepted
}

func (c *Classifier) acceptsPath(path string) bool {
	if c.Filename != "" && strings.HasSuffix(path, c.Filename) {
		return true
	}
	return c.parentDirectoryMatches(path)
}

func (c *Classifier) parentDirectoryMatches(path string) bool {
	if !strings.HasSuffix(path, ".xml") {
		return false
	}

	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return false
	}

	if c.Dirname == nil {
		return false
	}

	parent := parts[len(parts)-2]
	return strings.EqualFold(*c.Dirname, parent)
}

func (c *Classifier) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}
