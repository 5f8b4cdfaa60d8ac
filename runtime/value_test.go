package runtime

import (
	"math"
	"testing"
)

func TestTruthy(t *testing.T) {
	falsy := []Value{Undefined, Null, False, Number(0), Number(math.NaN()), Str("")}
	for i, v := range falsy {
		if v.Truthy() {
			t.Errorf("falsy[%d] (%v) should be falsy", i, v.Kind())
		}
	}
	truthy := []Value{True, Number(1), Number(-1), Str("x"), FromObject(NewObject()), FromArray(NewArray(nil))}
	for i, v := range truthy {
		if !v.Truthy() {
			t.Errorf("truthy[%d] (%v) should be truthy", i, v.Kind())
		}
	}
}

func TestToNumber(t *testing.T) {
	cases := []struct {
		v    Value
		want float64
	}{
		{Number(42), 42},
		{True, 1},
		{False, 0},
		{Null, 0},
		{Str("3.5"), 3.5},
		{Str("  10  "), 10},
		{Str(""), 0},
	}
	for _, c := range cases {
		if got := c.v.ToNumber(); got != c.want {
			t.Errorf("ToNumber(%v) = %v, want %v", c.v, got, c.want)
		}
	}
	if !math.IsNaN(Undefined.ToNumber()) {
		t.Error("ToNumber(undefined) should be NaN")
	}
	if !math.IsNaN(Str("abc").ToNumber()) {
		t.Error("ToNumber(\"abc\") should be NaN")
	}
}

func TestToDisplayString(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Undefined, "undefined"},
		{Null, "null"},
		{True, "true"},
		{Number(42), "42"},
		{Number(3.5), "3.5"},
		{Str("hi"), "hi"},
		{FromArray(NewArray([]Value{Number(1), Str("a"), Null})), "1,a,"},
		{FromObject(NewObject()), "[object Object]"},
	}
	for _, c := range cases {
		if got := c.v.ToDisplayString(); got != c.want {
			t.Errorf("ToDisplayString(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestStrictEquals(t *testing.T) {
	if !Number(1).StrictEquals(Number(1)) {
		t.Error("1 === 1 should be true")
	}
	if Number(1).StrictEquals(Str("1")) {
		t.Error("1 === \"1\" should be false")
	}
	o1, o2 := FromObject(NewObject()), FromObject(NewObject())
	if o1.StrictEquals(o2) {
		t.Error("distinct objects should not be ===")
	}
	if !o1.StrictEquals(o1) {
		t.Error("an object should be === itself")
	}
}

func TestLooseEquals(t *testing.T) {
	if !Number(1).LooseEquals(Str("1")) {
		t.Error("1 == \"1\" should be true")
	}
	if !Undefined.LooseEquals(Null) {
		t.Error("undefined == null should be true")
	}
	if !True.LooseEquals(Number(1)) {
		t.Error("true == 1 should be true")
	}
	if Number(0).LooseEquals(Undefined) {
		t.Error("0 == undefined should be false")
	}
}

func TestTypeOf(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Undefined, "undefined"},
		{Null, "object"},
		{True, "boolean"},
		{Number(1), "number"},
		{Str("x"), "string"},
		{FromObject(NewObject()), "object"},
		{FromArray(NewArray(nil)), "array"},
		{FromClosure(&Closure{}), "function"},
	}
	for _, c := range cases {
		if got := c.v.TypeOf(); got != c.want {
			t.Errorf("TypeOf(%v) = %q, want %q", c.v.Kind(), got, c.want)
		}
	}
}

func TestObjectInsertionOrder(t *testing.T) {
	o := NewObject()
	o.Set("b", Number(2))
	o.Set("a", Number(1))
	o.Set("b", Number(3))
	want := []string{"b", "a"}
	got := o.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	v, _ := o.Get("b")
	if v.Number() != 3 {
		t.Error("re-Set should overwrite value without reordering keys")
	}
}

func TestObjectDelete(t *testing.T) {
	o := NewObject()
	o.Set("a", Number(1))
	o.Set("b", Number(2))
	o.Delete("a")
	if _, ok := o.Get("a"); ok {
		t.Error("deleted key should not be found")
	}
	if got := o.Keys(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Keys() after delete = %v, want [b]", got)
	}
}
