package runtime

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// installIntrinsics pre-binds every name ident.Intrinsics reserves into the
// interpreter's global scope: console, Math, JSON, the boxed-type
// constructors, the Error family, and the handful of bare global functions
// (parseInt, isNaN, ...). A lowered program never declares these itself —
// ident.Collector.NonIntrinsicNames is what the lowerer/emitter are free to
// rename, and this table is the runtime counterpart of that same boundary.
func (i *Interpreter) installIntrinsics() {
	g := i.globals
	g.Define("undefined", Undefined)
	g.Define("NaN", Number(math.NaN()))
	g.Define("Infinity", Number(math.Inf(1)))

	g.Define("console", consoleObject())
	g.Define("Math", mathObject())
	g.Define("JSON", jsonObject())
	g.Define("Date", FromNative(dateConstructor))

	g.Define("String", FromNative(stringConstructor))
	g.Define("Number", FromNative(numberConstructor))
	g.Define("Boolean", FromNative(booleanConstructor))
	g.Define("Array", FromNative(arrayConstructor))
	g.Define("Object", FromNative(objectConstructor))

	g.Define("Error", errorConstructor("Error"))
	g.Define("TypeError", errorConstructor("TypeError"))
	g.Define("RangeError", errorConstructor("RangeError"))

	g.Define("parseInt", FromNative(nativeParseInt))
	g.Define("parseFloat", FromNative(nativeParseFloat))
	g.Define("isNaN", FromNative(func(i *Interpreter, this Value, args []Value) (Value, error) {
		return Bool(math.IsNaN(arg(args, 0).ToNumber())), nil
	}))
	g.Define("isFinite", FromNative(func(i *Interpreter, this Value, args []Value) (Value, error) {
		n := arg(args, 0).ToNumber()
		return Bool(!math.IsNaN(n) && !math.IsInf(n, 0)), nil
	}))
}

// arg returns args[n], or Undefined if the call was made with fewer
// arguments than the native function's signature wants.
func arg(args []Value, n int) Value {
	if n < len(args) {
		return args[n]
	}
	return Undefined
}

func method(fn NativeFunction) Value { return FromNative(fn) }

// --- console ---

func consoleObject() Value {
	o := NewObject()
	log := method(func(i *Interpreter, this Value, args []Value) (Value, error) {
		parts := make([]string, len(args))
		for k, a := range args {
			parts[k] = a.ToDisplayString()
		}
		fmt.Println(strings.Join(parts, " "))
		return Undefined, nil
	})
	o.Set("log", log)
	o.Set("error", log)
	o.Set("warn", log)
	o.Set("info", log)
	return FromObject(o)
}

// --- Math ---

func mathObject() Value {
	o := NewObject()
	o.Set("PI", Number(math.Pi))
	o.Set("E", Number(math.E))
	unary := func(fn func(float64) float64) Value {
		return method(func(i *Interpreter, this Value, args []Value) (Value, error) {
			return Number(fn(arg(args, 0).ToNumber())), nil
		})
	}
	o.Set("abs", unary(math.Abs))
	o.Set("floor", unary(math.Floor))
	o.Set("ceil", unary(math.Ceil))
	o.Set("round", unary(math.Round))
	o.Set("trunc", unary(math.Trunc))
	o.Set("sqrt", unary(math.Sqrt))
	o.Set("sign", unary(func(n float64) float64 {
		switch {
		case n > 0:
			return 1
		case n < 0:
			return -1
		default:
			return n
		}
	}))
	o.Set("pow", method(func(i *Interpreter, this Value, args []Value) (Value, error) {
		return Number(math.Pow(arg(args, 0).ToNumber(), arg(args, 1).ToNumber())), nil
	}))
	o.Set("random", method(func(i *Interpreter, this Value, args []Value) (Value, error) {
		return Number(rand.Float64()), nil
	}))
	o.Set("max", method(func(i *Interpreter, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return Number(math.Inf(-1)), nil
		}
		m := args[0].ToNumber()
		for _, a := range args[1:] {
			m = math.Max(m, a.ToNumber())
		}
		return Number(m), nil
	}))
	o.Set("min", method(func(i *Interpreter, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return Number(math.Inf(1)), nil
		}
		m := args[0].ToNumber()
		for _, a := range args[1:] {
			m = math.Min(m, a.ToNumber())
		}
		return Number(m), nil
	}))
	return FromObject(o)
}

// --- JSON ---
//
// Uses encoding/json as the wire codec for JSON.parse/stringify: no
// available library speaks generic dynamically-typed JSON trees
// (fxamacker/cbor is a binary format, not JSON, and is reserved for
// program.Program's own on-disk cache representation), so this is stdlib
// by necessity rather than preference.
func jsonObject() Value {
	o := NewObject()
	o.Set("stringify", method(func(i *Interpreter, this Value, args []Value) (Value, error) {
		b, err := json.Marshal(valueToJSON(arg(args, 0)))
		if err != nil {
			return Undefined, err
		}
		return Str(string(b)), nil
	}))
	o.Set("parse", method(func(i *Interpreter, this Value, args []Value) (Value, error) {
		var v interface{}
		if err := json.Unmarshal([]byte(arg(args, 0).ToDisplayString()), &v); err != nil {
			return Undefined, err
		}
		return jsonToValue(v), nil
	}))
	return FromObject(o)
}

func valueToJSON(v Value) interface{} {
	switch v.Kind() {
	case KindUndefined:
		return nil
	case KindNull:
		return nil
	case KindBool:
		return v.Bool()
	case KindNumber:
		return v.Number()
	case KindString:
		return v.Str()
	case KindArray:
		out := make([]interface{}, len(v.Array().Elements))
		for idx, e := range v.Array().Elements {
			out[idx] = valueToJSON(e)
		}
		return out
	case KindObject:
		out := make(map[string]interface{})
		for _, k := range v.Object().Keys() {
			val, _ := v.Object().Get(k)
			out[k] = valueToJSON(val)
		}
		return out
	default:
		return nil
	}
}

func jsonToValue(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return Str(t)
	case []interface{}:
		elems := make([]Value, len(t))
		for idx, e := range t {
			elems[idx] = jsonToValue(e)
		}
		return FromArray(NewArray(elems))
	case map[string]interface{}:
		o := NewObject()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			o.Set(k, jsonToValue(t[k]))
		}
		return FromObject(o)
	default:
		return Undefined
	}
}

// --- boxed-type constructors ---
//
// Each is callable both as a bare function (String(x)) and, since
// NEW_INSTANCE treats any KindNativeFunction the same way CALL_FUNCTION
// does, as a constructor (new String(x)) — both forms coerce rather than
// wrap, since runtime.Value has no boxed-primitive variant to wrap into.

func stringConstructor(i *Interpreter, this Value, args []Value) (Value, error) {
	if len(args) == 0 {
		return Str(""), nil
	}
	return Str(args[0].ToDisplayString()), nil
}

func numberConstructor(i *Interpreter, this Value, args []Value) (Value, error) {
	if len(args) == 0 {
		return Number(0), nil
	}
	return Number(args[0].ToNumber()), nil
}

func booleanConstructor(i *Interpreter, this Value, args []Value) (Value, error) {
	if len(args) == 0 {
		return Bool(false), nil
	}
	return Bool(args[0].Truthy()), nil
}

func arrayConstructor(i *Interpreter, this Value, args []Value) (Value, error) {
	if len(args) == 1 && args[0].IsNumber() {
		n := int(args[0].Number())
		elems := make([]Value, n)
		for k := range elems {
			elems[k] = Undefined
		}
		return FromArray(NewArray(elems)), nil
	}
	elems := make([]Value, len(args))
	copy(elems, args)
	return FromArray(NewArray(elems)), nil
}

func objectConstructor(i *Interpreter, this Value, args []Value) (Value, error) {
	if len(args) > 0 && args[0].IsObject() {
		return args[0], nil
	}
	return FromObject(NewObject()), nil
}

func dateConstructor(i *Interpreter, this Value, args []Value) (Value, error) {
	o := NewObject()
	o.Set("getTime", method(func(i *Interpreter, this Value, args []Value) (Value, error) {
		return Number(0), nil
	}))
	return FromObject(o), nil
}

// errorConstructor builds the callable bound to Error/TypeError/RangeError:
// an object with name/message/stack fields, matching the shape BINARY_OP
// "+" and console.log's ToDisplayString both need to render a caught
// exception usefully.
func errorConstructor(name string) Value {
	return FromNative(func(i *Interpreter, this Value, args []Value) (Value, error) {
		o := NewObject()
		o.Set("name", Str(name))
		o.Set("message", arg(args, 0))
		o.Set("stack", Str(name+": "+arg(args, 0).ToDisplayString()))
		return FromObject(o), nil
	})
}

func nativeParseInt(i *Interpreter, this Value, args []Value) (Value, error) {
	s := strings.TrimSpace(arg(args, 0).ToDisplayString())
	base := 10
	if b := arg(args, 1); !b.IsUndefined() {
		if n := int(b.ToNumber()); n != 0 {
			base = n
		}
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if base == 16 {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	}
	end := 0
	for end < len(s) {
		if _, err := strconv.ParseInt(s[:end+1], base, 64); err != nil {
			break
		}
		end++
	}
	if end == 0 {
		return Number(math.NaN()), nil
	}
	n, err := strconv.ParseInt(s[:end], base, 64)
	if err != nil {
		return Number(math.NaN()), nil
	}
	if neg {
		n = -n
	}
	return Number(float64(n)), nil
}

// nativeParseFloat scans the longest prefix of s matching a JS float
// literal's grammar (sign, digits, fractional part, exponent) and parses
// just that prefix, per parseFloat's "stop at the first unparseable
// character" contract rather than requiring the whole string to be numeric.
func nativeParseFloat(i *Interpreter, this Value, args []Value) (Value, error) {
	s := strings.TrimSpace(arg(args, 0).ToDisplayString())
	pos := 0
	if pos < len(s) && (s[pos] == '+' || s[pos] == '-') {
		pos++
	}
	digitsStart := pos
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		pos++
	}
	if pos < len(s) && s[pos] == '.' {
		pos++
		for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
			pos++
		}
	}
	if pos == digitsStart || (pos == digitsStart+1 && s[digitsStart] == '.') {
		return Number(math.NaN()), nil
	}
	mantissaEnd := pos
	if pos < len(s) && (s[pos] == 'e' || s[pos] == 'E') {
		expPos := pos + 1
		if expPos < len(s) && (s[expPos] == '+' || s[expPos] == '-') {
			expPos++
		}
		digitsBeforeExp := expPos
		for expPos < len(s) && s[expPos] >= '0' && s[expPos] <= '9' {
			expPos++
		}
		if expPos > digitsBeforeExp {
			mantissaEnd = expPos
		}
	}
	n, err := strconv.ParseFloat(s[:mantissaEnd], 64)
	if err != nil {
		return Number(math.NaN()), nil
	}
	return Number(n), nil
}
