package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/hargabyte/jacograph/internal/classify"
	"github.com/hargabyte/jacograph/internal/config"
	"github.com/hargabyte/jacograph/internal/graph"
	"github.com/hargabyte/jacograph/internal/ingest"
	"github.com/hargabyte/jacograph/internal/jacoco"
	"github.com/hargabyte/jacograph/internal/mapper"
	"github.com/hargabyte/jacograph/internal/signature"
	"github.com/hargabyte/jacograph/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Session = (*store.Session)(nil)
	_ Session = (*memorySession)(nil)
)

const smallReport = `<?xml version="1.0" encoding="UTF-8"?>
<report name="svc">
  <package name="org/acme">
    <class name="org/acme/Foo" sourcefilename="Foo.java">
      <method name="bar" desc="(I)V" line="3">
        <counter type="LINE" missed="0" covered="4"/>
        <counter type="BRANCH" missed="1" covered="1"/>
      </method>
    </class>
  </package>
</report>`

// writeTree creates files under root; paths are slash separated.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newScanner(t *testing.T, target Target) *Scanner {
	t.Helper()
	logger, _ := test.NewNullLogger()
	c := classify.Default()
	c.Log = logger
	sigs, err := signature.NewCached(signature.Descriptor{}, 0)
	require.NoError(t, err)
	p := ingest.New(c, mapper.New(sigs), jacoco.Options{})
	p.Log = logger
	return &Scanner{Plugin: p, Target: target, Workers: 2, Log: logger}
}

func walkPaths(t *testing.T, src Source) []string {
	t.Helper()
	var paths []string
	require.NoError(t, src.Walk(context.Background(), func(it Item) error {
		paths = append(paths, it.Path)
		return nil
	}))
	sort.Strings(paths)
	return paths
}

func TestFSSource_Walk(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/build/reports/jacoco/test/jacocoTestReport.xml": smallReport,
		"app/src/main/java/Foo.java":                         "class Foo {}",
		"lib/target/site/jacoco/jacoco.xml":                  smallReport,
		".gradle/cache/jacoco/jacoco.xml":                    smallReport,
		"node_modules/pkg/jacoco/jacoco.xml":                 smallReport,
		"lib/.hidden.xml":                                    "x",
	})

	src := &FSSource{Root: root, Exclude: config.DefaultConfig().Scan.Exclude}
	assert.Equal(t, []string{
		"app/build/reports/jacoco/test/jacocoTestReport.xml",
		"lib/target/site/jacoco/jacoco.xml",
	}, walkPaths(t, src))
}

func TestFSSource_ItemOpensFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"jacoco/jacoco.xml": smallReport})

	src := &FSSource{Root: root}
	var items []Item
	require.NoError(t, src.Walk(context.Background(), func(it Item) error {
		items = append(items, it)
		return nil
	}))
	require.Len(t, items, 1)
	assert.Equal(t, int64(len(smallReport)), items[0].Size)

	rc, err := items[0].File.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	doc, err := jacoco.Parse(rc)
	require.NoError(t, err)
	assert.Equal(t, "svc", doc.Name)
}

func TestFSSource_MissingRoot(t *testing.T) {
	src := &FSSource{Root: filepath.Join(t.TempDir(), "missing")}
	err := src.Walk(context.Background(), func(Item) error { return nil })
	assert.Error(t, err)
}

func TestShouldExcludeFile(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"/r/a/jacoco.xml", nil, false},
		{"/r/a/.jacoco.xml", nil, true},
		{"/r/a/jacoco.xml", []string{"**/jacoco.xml"}, true},
		{"/r/a/jacoco.xml", []string{"a/*.xml"}, true},
		{"/r/a/jacoco.xml", []string{"b/*.xml"}, false},
		{"/r/a/old-jacoco.xml", []string{"old-*"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldExcludeFile(tt.path, "/r", tt.patterns))
		})
	}
}

func TestScanner_DryRun(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/jacoco/jacoco.xml":                  smallReport,
		"b/build/reports/jacocoTestReport.xml": smallReport,
		"c/notes.xml":                          "<notes/>",
	})

	target := NewMemoryTarget()
	res, err := newScanner(t, target).Run(context.Background(), &FSSource{Root: root})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 2, res.Ingested)
	assert.Equal(t, 12, res.Nodes)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 2, target.Len())

	g, root1, ok := target.Graph("a/jacoco/jacoco.xml")
	require.True(t, ok)
	e, _ := g.Node(root1)
	assert.Equal(t, graph.Report{Name: "svc", FilePath: "a/jacoco/jacoco.xml"}, e)
	assert.Equal(t, map[graph.Kind]int{
		graph.KindReport: 1, graph.KindPackage: 1, graph.KindClass: 1, graph.KindMethod: 1, graph.KindCounter: 2,
	}, g.CountByKind())
}

func TestScanner_FailuresDoNotStopScan(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"ok/jacoco/jacoco.xml":        smallReport,
		"broken/jacoco/jacoco.xml":    `<report><package name="p">`,
		"bad-count/jacoco/jacoco.xml": `<report><package name="p"><class name="p/C"><method name="m" desc="()V" line="1"><counter type="LINE" missed="-1" covered="0"/></method></class></package></report>`,
		"doctype/jacoco/jacoco.xml":   `<!DOCTYPE r [<!ENTITY x "y">]><report/>`,
	})

	target := NewMemoryTarget()
	res, err := newScanner(t, target).Run(context.Background(), &FSSource{Root: root})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Ingested)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, "bad-count/jacoco/jacoco.xml", res.Failures[0].Path)
	assert.Equal(t, "broken/jacoco/jacoco.xml", res.Failures[1].Path)
	assert.Equal(t, "doctype/jacoco/jacoco.xml", res.Failures[2].Path)

	var merr *mapper.MappingError
	assert.True(t, errors.As(res.Failures[0].Err, &merr))
	var perr *jacoco.ParseError
	assert.True(t, errors.As(res.Failures[1].Err, &perr))
	assert.ErrorIs(t, res.Failures[2].Err, jacoco.ErrUnsafeDoctype)
	assert.NotEmpty(t, res.Failures[0].Error)

	// Failed reports leave nothing behind
	assert.Equal(t, 1, target.Len())
}

func TestScanner_Incremental(t *testing.T) {
	st, err := store.Open(config.StorageConfig{Backend: config.BackendSQLite}, t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/jacoco/jacoco.xml": smallReport,
		"b/jacoco/jacoco.xml": smallReport,
	})
	ctx := context.Background()
	sc := newScanner(t, StoreTarget{Store: st})
	src := &FSSource{Root: root}

	res, err := sc.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Ingested)
	assert.Equal(t, 0, res.Skipped)

	// Nothing changed: both files are skipped
	res, err = sc.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Ingested)
	assert.Equal(t, 2, res.Skipped)

	// A changed report replaces its previous subgraph
	writeTree(t, root, map[string]string{
		"a/jacoco/jacoco.xml": `<report name="svc-v2"><package name="org/acme"/></report>`,
	})
	res, err = sc.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, int64(6), res.Replaced)

	counts, err := st.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[graph.KindReport])
	assert.Equal(t, 2, counts[graph.KindPackage])
	assert.Equal(t, 2, counts[graph.KindCounter])

	// Force re-ingests unchanged files without duplicating them
	sc.Force = true
	res, err = sc.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Ingested)

	counts, err = st.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[graph.KindReport])
}

func TestScanner_FailedFileIsRetried(t *testing.T) {
	st, err := store.Open(config.StorageConfig{}, t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/jacoco/jacoco.xml": `<report>`})
	ctx := context.Background()
	sc := newScanner(t, StoreTarget{Store: st})

	res, err := sc.Run(ctx, &FSSource{Root: root})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)

	_, err = st.GetFileHash(ctx, "a/jacoco/jacoco.xml")
	assert.Error(t, err, "a failed file must not be recorded as scanned")

	writeTree(t, root, map[string]string{"a/jacoco/jacoco.xml": smallReport})
	res, err = sc.Run(ctx, &FSSource{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested)
	assert.Empty(t, res.Failures)
}

func TestScanner_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/jacoco/jacoco.xml": smallReport})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newScanner(t, NewMemoryTarget()).Run(ctx, &FSSource{Root: root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_SizeLimit(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/jacoco/jacoco.xml": smallReport})

	sc := newScanner(t, NewMemoryTarget())
	sc.MaxBytes = 64

	res, err := sc.Run(context.Background(), &FSSource{Root: root})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, jacoco.ErrTooLarge)
}

func TestNewBucketSource_Validation(t *testing.T) {
	_, err := NewBucketSource(config.S3Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewBucketSource(config.S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	src, err := NewBucketSource(config.S3Config{Endpoint: "localhost:9000", Bucket: "ci", Prefix: "/builds/42"})
	require.NoError(t, err)
	assert.Equal(t, "s3://ci/builds/42", src.String())
}
