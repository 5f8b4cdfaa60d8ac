package postprocess

import (
	"math/rand"
	"strings"
	"testing"
)

func TestRewriteProperties(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "obj.prop", `obj["prop"]`},
		{"chained", "a.b.c", `a["b"]["c"]`},
		{"preserves number", "3.14 + 1.0", "3.14 + 1.0"},
		{"preserves spread", "foo(...args)", "foo(...args)"},
		{"skips string contents", `"obj.prop"`, `"obj.prop"`},
		{"skips line comment", "// obj.prop\nx.y", "// obj.prop\nx[\"y\"]"},
		{"skips block comment", "/* obj.prop */ x.y", `/* obj.prop */ x["y"]`},
		{"call chain", "console.log(x)", `console["log"](x)`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RewriteProperties(tc.in)
			if got != tc.want {
				t.Errorf("RewriteProperties(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRewritePropertiesIdempotent(t *testing.T) {
	in := "scope.vars.get(name)"
	once := RewriteProperties(in)
	twice := RewriteProperties(once)
	if once != twice {
		t.Errorf("RewriteProperties should be idempotent: once=%q twice=%q", once, twice)
	}
}

func TestInjectDecoyCommentsZeroDensityNoOp(t *testing.T) {
	src := "line one\nline two\n"
	if got := InjectDecoyComments(src, rand.New(rand.NewSource(12)), 0); got != src {
		t.Errorf("zero density should be a no-op, got %q", got)
	}
}

func TestInjectDecoyCommentsInsertsLines(t *testing.T) {
	src := strings.Repeat("line\n", 50)
	out := InjectDecoyComments(src, rand.New(rand.NewSource(12)), 1.0)
	if strings.Count(out, "\n") <= strings.Count(src, "\n") {
		t.Error("expected InjectDecoyComments to add lines at density 1.0")
	}
}

func TestFlattenControlFlow(t *testing.T) {
	src := "function dispatch() {\n  while (pc < code.length) {\n    doStuff();\n  }\n  return;\n}"
	out := FlattenControlFlow(src)
	if !strings.Contains(out, "switch (state)") {
		t.Error("expected a switch(state) wrapper")
	}
	if !strings.Contains(out, "doStuff();") {
		t.Error("flattening should preserve the original body")
	}
}

func TestFlattenControlFlowIdempotent(t *testing.T) {
	src := "function dispatch() {\n  while (pc < code.length) {\n    doStuff();\n  }\n}"
	once := FlattenControlFlow(src)
	twice := FlattenControlFlow(once)
	if once != twice {
		t.Error("FlattenControlFlow should be idempotent on an already-flattened loop")
	}
}

func TestFlattenControlFlowNoLoopIsNoOp(t *testing.T) {
	src := "function f() { return 1; }"
	if got := FlattenControlFlow(src); got != src {
		t.Error("source with no dispatch loop should pass through unchanged")
	}
}
