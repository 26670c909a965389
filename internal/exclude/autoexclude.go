// Package exclude detects dependency directories that cannot hold a
// project's own coverage reports, so scans can skip them.
package exclude

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Result contains the directories to exclude and why.
type Result struct {
	// Directories to exclude, slash separated and relative to the scan root
	Directories []string
	// Reasons maps each directory to why it was excluded
	Reasons map[string]string
}

// Patterns returns the directories as scan exclude patterns.
func (r *Result) Patterns() []string {
	out := make([]string, 0, len(r.Directories))
	for _, d := range r.Directories {
		out = append(out, d+"/**")
	}
	return out
}

// marker is a build file whose presence identifies a dependency directory
// next to it.
type marker struct {
	file string
	// dir is relative to the marker's directory; "." is that directory itself
	dir string
	// probe must exist inside dir; empty means dir existing is enough
	probe  string
	reason string
}

var markers = []marker{
	{file: "pom.xml", dir: "target/dependency", reason: "Maven copied dependencies (pom.xml detected)"},
	{file: "package.json", dir: "node_modules", reason: "Node.js dependencies (package.json detected)"},
	{file: "go.mod", dir: "vendor", probe: "modules.txt", reason: "Go vendored dependencies (vendor/modules.txt detected)"},
	{file: "composer.json", dir: "vendor", probe: "autoload.php", reason: "PHP Composer dependencies (vendor/autoload.php detected)"},
	{file: "Cargo.toml", dir: "target", reason: "Rust build artifacts (Cargo.toml detected)"},
	{file: "pyvenv.cfg", dir: ".", reason: "Python virtual environment (pyvenv.cfg detected)"},
}

// never descended into while looking for markers
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// DetectAutoExcludes walks root looking for build marker files and returns
// the dependency directories they identify. Only file existence is checked.
// Nested projects are detected too (services/web/node_modules).
func DetectAutoExcludes(root string) *Result {
	result := &Result{Reasons: make(map[string]string)}
	add := func(dir, reason string) {
		if _, ok := result.Reasons[dir]; ok {
			return
		}
		result.Directories = append(result.Directories, dir)
		result.Reasons[dir] = reason
	}

	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") || result.covers(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		for _, m := range markers {
			if d.Name() != m.file {
				continue
			}
			dir := path.Join(path.Dir(rel), m.dir)
			if dir == "." {
				continue
			}
			abs := filepath.Join(root, filepath.FromSlash(dir))
			if m.probe != "" {
				if isFile(filepath.Join(abs, m.probe)) {
					add(dir, m.reason)
				}
			} else if isDir(abs) {
				add(dir, m.reason)
			}
		}
		return nil
	})

	return result
}

// covers reports whether rel is an excluded directory or lies inside one.
func (r *Result) covers(rel string) bool {
	for _, d := range r.Directories {
		if rel == d || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	return false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
