package ident

import (
	"testing"

	"github.com/vanta-works/shroudvm/parser"
)

func TestFreshNamesAreCollisionFree(t *testing.T) {
	m := NewNameManager(8)
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		name, err := m.Fresh()
		if err != nil {
			t.Fatalf("Fresh() error = %v", err)
		}
		if _, dup := seen[name]; dup {
			t.Fatalf("Fresh() returned a duplicate name %q", name)
		}
		seen[name] = struct{}{}
		if !m.Issued(name) {
			t.Errorf("Issued(%q) = false, want true after Fresh()", name)
		}
	}
}

func TestFreshNameShapeAndLength(t *testing.T) {
	m := NewNameManager(10)
	name, err := m.Fresh()
	if err != nil {
		t.Fatalf("Fresh() error = %v", err)
	}
	if len(name) != 10 {
		t.Errorf("len(name) = %d, want 10", len(name))
	}
	first := name[0]
	if !(first >= 'A' && first <= 'Z' || first >= 'a' && first <= 'z' || first == '$' || first == '_') {
		t.Errorf("name %q starts with an invalid identifier character %q", name, first)
	}
}

func TestNewNameManagerClampsMinimumLength(t *testing.T) {
	m := NewNameManager(1)
	name, err := m.Fresh()
	if err != nil {
		t.Fatalf("Fresh() error = %v", err)
	}
	if len(name) != 4 {
		t.Errorf("len(name) = %d, want clamped minimum 4", len(name))
	}
}

func TestTwoManagersHaveDistinctSeeds(t *testing.T) {
	a := NewNameManager(8)
	b := NewNameManager(8)
	if a.Seed() == b.Seed() {
		t.Error("two independently created managers should not share a seed")
	}
}

func TestIsIntrinsicReservesHostNames(t *testing.T) {
	for name := range Intrinsics {
		if !IsIntrinsic(name) {
			t.Errorf("IsIntrinsic(%q) = false, want true", name)
		}
	}
	if IsIntrinsic("totallyNotAnIntrinsic") {
		t.Error("IsIntrinsic(\"totallyNotAnIntrinsic\") = true, want false")
	}
}

func TestCollectorRecordsIdentifiersPropertiesAndParams(t *testing.T) {
	prog, err := parser.ParseSource(`
		function f(x, y) { return x + y; }
		var o = {key: f(1, 2)};
		o.key
	`)
	if err != nil {
		t.Fatalf("ParseSource() error = %v", err)
	}
	c := NewCollector()
	c.Collect(prog)

	for _, name := range []string{"f", "x", "y", "o", "key"} {
		if c.Count(name) == 0 {
			t.Errorf("expected %q to be collected, names = %v", name, c.Names())
		}
	}
}

func TestCollectorExcludesIntrinsicsFromNonIntrinsicNames(t *testing.T) {
	prog, err := parser.ParseSource(`console.log(Math.max(1, 2))`)
	if err != nil {
		t.Fatalf("ParseSource() error = %v", err)
	}
	c := NewCollector()
	c.Collect(prog)

	for _, name := range c.NonIntrinsicNames() {
		if IsIntrinsic(name) {
			t.Errorf("NonIntrinsicNames() included intrinsic %q", name)
		}
	}
	if c.Count("console") == 0 || c.Count("Math") == 0 {
		t.Error("intrinsics should still be counted by Collect, just excluded from NonIntrinsicNames")
	}
}
