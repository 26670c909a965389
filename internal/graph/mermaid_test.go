package graph

import (
	"errors"
	"strings"
	"testing"
)

func addCounter(t *testing.T, g *Memory, method Handle, c Counter) {
	t.Helper()
	h, err := g.Create(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Attach(method, h, HasCounter); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateMermaid(t *testing.T) {
	g, h := newTestGraph(t)
	addCounter(t, g, h["m1"], Counter{Type: CounterLine, Missed: 0, Covered: 4})
	addCounter(t, g, h["m2"], Counter{Type: CounterLine, Missed: 3, Covered: 1})

	out, err := GenerateMermaid(g, h["report"], nil)
	if err != nil {
		t.Fatalf("GenerateMermaid: %v", err)
	}

	for _, want := range []string{
		"flowchart LR\n",
		`[("build/jacoco/jacocoTestReport.xml")]`,
		`[["org/acme"]]`,
		`{{"org.acme.Foo"}}`,
		`["void bar()"]:::high`,
		`["int baz()"]:::low`,
		sanitizeMermaidID(string(h["cls"])) + " --> " + sanitizeMermaidID(string(h["m1"])),
		"classDef high",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("diagram missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "LINE 4/4") {
		t.Errorf("counters drawn at default depth:\n%s", out)
	}
}

func TestGenerateMermaid_CollapsesToClasses(t *testing.T) {
	g, h := newTestGraph(t)
	out, err := GenerateMermaid(g, h["report"], &MermaidOptions{MaxNodes: 3})
	if err != nil {
		t.Fatalf("GenerateMermaid: %v", err)
	}
	if strings.Contains(out, "void bar()") {
		t.Errorf("methods should be collapsed:\n%s", out)
	}
	if !strings.Contains(out, "org.acme.Foo") {
		t.Errorf("classes should remain:\n%s", out)
	}
}

func TestGenerateMermaid_UnknownRoot(t *testing.T) {
	g, _ := newTestGraph(t)
	_, err := GenerateMermaid(g, "nope", nil)
	if !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("err = %v, want ErrUnknownHandle", err)
	}
}

func TestGeneratePieChart(t *testing.T) {
	g, h := newTestGraph(t)
	addCounter(t, g, h["m1"], Counter{Type: CounterBranch, Missed: 2, Covered: 6})
	addCounter(t, g, h["m2"], Counter{Type: CounterBranch, Missed: 1, Covered: 1})
	addCounter(t, g, h["m2"], Counter{Type: CounterLine, Missed: 9, Covered: 9})

	out, err := GeneratePieChart(g, h["cls"], CounterBranch, "Foo branches")
	if err != nil {
		t.Fatalf("GeneratePieChart: %v", err)
	}
	want := "pie title Foo branches\n    \"covered\" : 7\n    \"missed\" : 3\n"
	if out != want {
		t.Errorf("got\n%s\nwant\n%s", out, want)
	}
}

func TestCoverageClass(t *testing.T) {
	tests := []struct {
		missed, covered int64
		want            string
	}{
		{0, 0, ""},
		{0, 10, "high"},
		{2, 8, "high"},
		{5, 5, "medium"},
		{9, 1, "low"},
	}
	for _, tt := range tests {
		if got := CoverageClass(tt.missed, tt.covered); got != tt.want {
			t.Errorf("CoverageClass(%d, %d) = %q, want %q", tt.missed, tt.covered, got, tt.want)
		}
	}
}

func TestSanitizeMermaidID(t *testing.T) {
	tests := map[string]string{
		"n1":       "n1",
		"1abc":     "_1abc",
		"a-b/c":    "a_b_c",
		"":         "_empty",
		"ab_cd.ef": "ab_cd_ef",
	}
	for in, want := range tests {
		if got := sanitizeMermaidID(in); got != want {
			t.Errorf("sanitizeMermaidID(%q) = %q, want %q", in, got, want)
		}
	}
}
