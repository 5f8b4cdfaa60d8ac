package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPathsFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.js")
	if err := os.WriteFile(f, []byte("1;"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := expandPaths([]string{f})
	if err != nil {
		t.Fatalf("expandPaths() error = %v", err)
	}
	if len(got) != 1 || got[0] != f {
		t.Errorf("expandPaths() = %v, want [%s]", got, f)
	}
}

func TestExpandPathsDirectoryFiltersBySourceExt(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.js", "b.mjs", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("1;"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	got, err := expandPaths([]string{dir})
	if err != nil {
		t.Fatalf("expandPaths() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expandPaths() = %v, want 2 source files", got)
	}
}

func TestExpandPathsMissingFile(t *testing.T) {
	if _, err := expandPaths([]string{"/nonexistent/path.js"}); err == nil {
		t.Error("expected an error for a missing path")
	}
}

func TestIsSourceFile(t *testing.T) {
	cases := map[string]bool{
		"a.js": true, "b.mjs": true, "c.cjs": true,
		"readme.md": false, "noext": false,
	}
	for name, want := range cases {
		if got := isSourceFile(name); got != want {
			t.Errorf("isSourceFile(%q) = %v, want %v", name, got, want)
		}
	}
}
