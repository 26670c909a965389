package mapper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/hargabyte/jacograph/internal/graph"
	"github.com/hargabyte/jacograph/internal/jacoco"
	"github.com/hargabyte/jacograph/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapInto(t *testing.T, doc *jacoco.Report) (*graph.Memory, graph.Handle, error) {
	t.Helper()
	g := graph.NewMemory()
	root, err := g.Create(graph.Report{FilePath: "jacocoTestReport.xml", Name: doc.Name})
	require.NoError(t, err)
	return g, root, New(signature.Descriptor{}).Map(doc, g, root)
}

func entityAt[T graph.Entity](t *testing.T, g *graph.Memory, h graph.Handle) T {
	t.Helper()
	e, ok := g.Node(h)
	require.True(t, ok, "missing node %s", h)
	v, ok := e.(T)
	require.True(t, ok, "node %s is %T", h, e)
	return v
}

func TestMap_EndToEnd(t *testing.T) {
	doc := &jacoco.Report{
		Packages: []jacoco.Package{{
			Name: "org/acme",
			Classes: []jacoco.Class{{
				Name: "org/acme/Foo",
				Methods: []jacoco.Method{{
					Name: "bar", Desc: "()V", Line: "10",
					Counters: []jacoco.Counter{{Type: "LINE", Missed: "1", Covered: "2"}},
				}},
			}},
		}},
	}

	g, root, err := mapInto(t, doc)
	require.NoError(t, err)

	pkgs := g.Children(root)
	require.Len(t, pkgs, 1)
	assert.Equal(t, graph.Package{Name: "org/acme"}, entityAt[graph.Package](t, g, pkgs[0]))

	classes := g.Children(pkgs[0])
	require.Len(t, classes, 1)
	assert.Equal(t, graph.Class{Name: "org/acme/Foo", FullyQualifiedName: "org.acme.Foo"},
		entityAt[graph.Class](t, g, classes[0]))

	methods := g.Children(classes[0])
	require.Len(t, methods, 1)
	want, err := signature.Descriptor{}.Format("bar", "()V")
	require.NoError(t, err)
	assert.Equal(t, graph.Method{Name: "bar", Signature: want, Line: "10"},
		entityAt[graph.Method](t, g, methods[0]))

	counters := g.Children(methods[0])
	require.Len(t, counters, 1)
	assert.Equal(t, graph.Counter{Type: graph.CounterLine, Missed: 1, Covered: 2},
		entityAt[graph.Counter](t, g, counters[0]))

	_, rel, ok := g.Parent(counters[0])
	require.True(t, ok)
	assert.Equal(t, graph.HasCounter, rel)
}

// buildDoc returns a report with n packages, m classes per package, k methods
// per class and j counters per method.
func buildDoc(n, m, k, j int) *jacoco.Report {
	types := []string{"INSTRUCTION", "LINE", "BRANCH", "COMPLEXITY", "METHOD", "CLASS"}
	doc := &jacoco.Report{Name: "generated"}
	for p := 0; p < n; p++ {
		pkg := jacoco.Package{Name: fmt.Sprintf("org/acme/p%d", p)}
		for c := 0; c < m; c++ {
			cls := jacoco.Class{Name: fmt.Sprintf("%s/C%d", pkg.Name, c)}
			for me := 0; me < k; me++ {
				method := jacoco.Method{Name: fmt.Sprintf("m%d", me), Desc: "(I)V", Line: strconv.Itoa(me + 1)}
				for ct := 0; ct < j; ct++ {
					method.Counters = append(method.Counters, jacoco.Counter{
						Type: types[ct%len(types)], Missed: strconv.Itoa(ct), Covered: strconv.Itoa(me),
					})
				}
				cls.Methods = append(cls.Methods, method)
			}
			pkg.Classes = append(pkg.Classes, cls)
		}
		doc.Packages = append(doc.Packages, pkg)
	}
	return doc
}

func TestMap_StructureCounts(t *testing.T) {
	tests := []struct{ n, m, k, j int }{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{2, 3, 4, 5},
		{3, 1, 0, 0},
		{1, 2, 2, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%dx%dx%d", tt.n, tt.m, tt.k, tt.j), func(t *testing.T) {
			g, root, err := mapInto(t, buildDoc(tt.n, tt.m, tt.k, tt.j))
			require.NoError(t, err)

			counts := g.CountByKind()
			assert.Equal(t, 1, counts[graph.KindReport])
			assert.Equal(t, tt.n, counts[graph.KindPackage])
			assert.Equal(t, tt.n*tt.m, counts[graph.KindClass])
			assert.Equal(t, tt.n*tt.m*tt.k, counts[graph.KindMethod])
			assert.Equal(t, tt.n*tt.m*tt.k*tt.j, counts[graph.KindCounter])

			// Every non-root node has exactly one parent.
			assert.Equal(t, g.NodeCount()-1, g.EdgeCount())
			assert.Equal(t, []graph.Handle{root}, g.Roots())
		})
	}
}

func TestMap_PreservesDocumentOrder(t *testing.T) {
	g, root, err := mapInto(t, buildDoc(3, 2, 2, 1))
	require.NoError(t, err)

	pkgs := g.Children(root)
	require.Len(t, pkgs, 3)
	for i, h := range pkgs {
		assert.Equal(t, fmt.Sprintf("org/acme/p%d", i), entityAt[graph.Package](t, g, h).Name)
		for c, ch := range g.Children(h) {
			cls := entityAt[graph.Class](t, g, ch)
			assert.Equal(t, fmt.Sprintf("org/acme/p%d/C%d", i, c), cls.Name)
			for me, mh := range g.Children(ch) {
				assert.Equal(t, fmt.Sprintf("m%d", me), entityAt[graph.Method](t, g, mh).Name)
			}
		}
	}
}

func TestFullyQualifiedName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a/b/C", "a.b.C"},
		{"org/acme/Foo$Bar", "org.acme.Foo$Bar"},
		{"Foo", "Foo"},
		{"", ""},
		{"a//b", "a..b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FullyQualifiedName(tt.in), tt.in)
	}
}

func TestMap_CounterValuesMustBeNumeric(t *testing.T) {
	tests := []struct {
		name    string
		missed  string
		covered string
		field   string
	}{
		{"missed not a number", "x", "7", "missed"},
		{"covered not a number", "3", "seven", "covered"},
		{"missed empty", "", "7", "missed"},
		{"negative covered", "0", "-1", "covered"},
		{"float", "1.5", "0", "missed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := buildDoc(1, 1, 1, 1)
			doc.Packages[0].Classes[0].Methods[0].Counters[0].Missed = tt.missed
			doc.Packages[0].Classes[0].Methods[0].Counters[0].Covered = tt.covered

			_, _, err := mapInto(t, doc)
			require.Error(t, err)

			var merr *MappingError
			require.True(t, errors.As(err, &merr), "expected *MappingError, got %v", err)
			assert.Equal(t, graph.KindCounter, merr.Entity)
			assert.Equal(t, tt.field, merr.Field)
		})
	}
}

func TestMap_LargeCounterValues(t *testing.T) {
	doc := buildDoc(1, 1, 1, 1)
	doc.Packages[0].Classes[0].Methods[0].Counters[0] = jacoco.Counter{Type: "INSTRUCTION", Missed: "3", Covered: "9000000000"}

	g, root, err := mapInto(t, doc)
	require.NoError(t, err)

	var counter graph.Counter
	require.NoError(t, g.Walk(root, func(_ graph.Handle, e graph.Entity, _ int) error {
		if c, ok := e.(graph.Counter); ok {
			counter = c
		}
		return nil
	}))
	assert.Equal(t, int64(3), counter.Missed)
	assert.Equal(t, int64(9000000000), counter.Covered)
}

func TestMap_InvalidDescriptorIsMappingError(t *testing.T) {
	doc := buildDoc(1, 1, 1, 0)
	doc.Packages[0].Classes[0].Methods[0].Desc = "not-a-descriptor"

	_, _, err := mapInto(t, doc)
	var merr *MappingError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, graph.KindMethod, merr.Entity)
	assert.ErrorIs(t, err, signature.ErrInvalidDescriptor)
}

func TestMap_EmptyReport(t *testing.T) {
	g, root, err := mapInto(t, &jacoco.Report{Name: "empty"})
	require.NoError(t, err)
	assert.Empty(t, g.Children(root))
	assert.Equal(t, 1, g.NodeCount())
}

func TestMap_Fixture(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "jacoco", "testdata", "jacocoTestReport.xml"))
	require.NoError(t, err)
	defer f.Close()

	doc, err := jacoco.Parse(f)
	require.NoError(t, err)

	g, root, err := mapInto(t, doc)
	require.NoError(t, err)

	counts := g.CountByKind()
	assert.Equal(t, 2, counts[graph.KindPackage])
	assert.Equal(t, 3, counts[graph.KindClass])
	assert.Equal(t, 4, counts[graph.KindMethod])
	assert.Equal(t, 4+5+2+1, counts[graph.KindCounter])

	var sigs []string
	require.NoError(t, g.Walk(root, func(_ graph.Handle, e graph.Entity, _ int) error {
		switch v := e.(type) {
		case graph.Class:
			assert.Equal(t, strings.ReplaceAll(v.Name, "/", "."), v.FullyQualifiedName)
		case graph.Method:
			sigs = append(sigs, v.Signature)
		}
		return nil
	}))
	assert.Equal(t, []string{
		"void <init>()",
		"java.lang.String bar(int,java.lang.String)",
		"org.acme.Foo build()",
		"boolean isBlank(java.lang.CharSequence)",
	}, sigs)
}

func TestMap_GroupedPackages(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "jacoco", "testdata", "grouped.xml"))
	require.NoError(t, err)
	defer f.Close()

	doc, err := jacoco.Parse(f)
	require.NoError(t, err)

	g, root, err := mapInto(t, doc)
	require.NoError(t, err)
	assert.Len(t, g.Children(root), 2)
}

// failingSink fails the nth Create or Attach call.
type failingSink struct {
	*graph.Memory
	failCreateAt int
	failAttachAt int
	creates      int
	attaches     int
}

var errSink = errors.New("store unavailable")

func (s *failingSink) Create(e graph.Entity) (graph.Handle, error) {
	s.creates++
	if s.creates == s.failCreateAt {
		return "", errSink
	}
	return s.Memory.Create(e)
}

func (s *failingSink) Attach(parent, child graph.Handle, rel graph.Relation) error {
	s.attaches++
	if s.attaches == s.failAttachAt {
		return errSink
	}
	return s.Memory.Attach(parent, child, rel)
}

func TestMap_SinkErrorsPropagate(t *testing.T) {
	tests := []struct {
		name         string
		failCreateAt int
		failAttachAt int
	}{
		{"package create", 2, 0},
		{"counter create", 5, 0},
		{"counter attach", 0, 1},
		{"package attach", 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &failingSink{Memory: graph.NewMemory(), failCreateAt: tt.failCreateAt, failAttachAt: tt.failAttachAt}
			root, err := sink.Create(graph.Report{})
			require.NoError(t, err)

			err = New(signature.Descriptor{}).Map(buildDoc(1, 1, 1, 1), sink, root)
			assert.ErrorIs(t, err, errSink)
		})
	}
}

func TestMap_ConcurrentDocuments(t *testing.T) {
	cached, err := signature.NewCached(signature.Descriptor{}, 16)
	require.NoError(t, err)
	m := New(cached)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	graphs := make([]*graph.Memory, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := graph.NewMemory()
			root, err := g.Create(graph.Report{FilePath: fmt.Sprintf("r%d.xml", i)})
			if err != nil {
				errs[i] = err
				return
			}
			graphs[i] = g
			errs[i] = m.Map(buildDoc(2, 2, 2, 2), g, root)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err)
		assert.Equal(t, 1+2+4+8+16, graphs[i].NodeCount())
	}
}
