package runtime

import "math"

// binaryOp implements one BINARY_OP/LOGICAL_OP operator over two already-
// evaluated operands.
type binaryOp func(a, b Value) (Value, error)

// unaryOp implements one UNARY_OP operator over a single operand.
type unaryOp func(a Value) (Value, error)

// binaryOps is the full BINARY_OP table: arithmetic, bitwise, equality,
// relational, and (non-short-circuit, per LOGICAL_OP's bare "a b -> a op b"
// stack effect) logical. Unknown keys are BadOperator at the call site.
var binaryOps = map[string]binaryOp{
	"+": func(a, b Value) (Value, error) {
		if a.IsString() || b.IsString() {
			return Str(a.ToDisplayString() + b.ToDisplayString()), nil
		}
		return Number(a.ToNumber() + b.ToNumber()), nil
	},
	"-": func(a, b Value) (Value, error) { return Number(a.ToNumber() - b.ToNumber()), nil },
	"*": func(a, b Value) (Value, error) { return Number(a.ToNumber() * b.ToNumber()), nil },
	"/": func(a, b Value) (Value, error) { return Number(a.ToNumber() / b.ToNumber()), nil },
	"%": func(a, b Value) (Value, error) { return Number(math.Mod(a.ToNumber(), b.ToNumber())), nil },

	"<<":  func(a, b Value) (Value, error) { return Number(float64(toInt32(a) << (toUint32(b) & 31))), nil },
	">>":  func(a, b Value) (Value, error) { return Number(float64(toInt32(a) >> (toUint32(b) & 31))), nil },
	">>>": func(a, b Value) (Value, error) { return Number(float64(toUint32(a) >> (toUint32(b) & 31))), nil },
	"&":   func(a, b Value) (Value, error) { return Number(float64(toInt32(a) & toInt32(b))), nil },
	"|":   func(a, b Value) (Value, error) { return Number(float64(toInt32(a) | toInt32(b))), nil },
	"^":   func(a, b Value) (Value, error) { return Number(float64(toInt32(a) ^ toInt32(b))), nil },

	"==":  func(a, b Value) (Value, error) { return Bool(a.LooseEquals(b)), nil },
	"!=":  func(a, b Value) (Value, error) { return Bool(!a.LooseEquals(b)), nil },
	"===": func(a, b Value) (Value, error) { return Bool(a.StrictEquals(b)), nil },
	"!==": func(a, b Value) (Value, error) { return Bool(!a.StrictEquals(b)), nil },

	"<":  func(a, b Value) (Value, error) { return compare(a, b, func(x, y float64) bool { return x < y }, func(x, y string) bool { return x < y }), nil },
	"<=": func(a, b Value) (Value, error) { return compare(a, b, func(x, y float64) bool { return x <= y }, func(x, y string) bool { return x <= y }), nil },
	">":  func(a, b Value) (Value, error) { return compare(a, b, func(x, y float64) bool { return x > y }, func(x, y string) bool { return x > y }), nil },
	">=": func(a, b Value) (Value, error) { return compare(a, b, func(x, y float64) bool { return x >= y }, func(x, y string) bool { return x >= y }), nil },

	"in": func(a, b Value) (Value, error) {
		key := a.ToDisplayString()
		switch {
		case b.IsObject():
			_, ok := b.Object().Get(key)
			return Bool(ok), nil
		case b.IsArray():
			idx, ok := parseArrayIndex(key)
			return Bool(ok && idx >= 0 && idx < len(b.Array().Elements)), nil
		default:
			return Bool(false), nil
		}
	},
	"instanceof": func(a, b Value) (Value, error) {
		if !a.IsObject() || b.Kind() != KindClosure {
			return Bool(false), nil
		}
		return Bool(a.Object().ctor == b.Closure()), nil
	},

	"&&": func(a, b Value) (Value, error) {
		if !a.Truthy() {
			return a, nil
		}
		return b, nil
	},
	"||": func(a, b Value) (Value, error) {
		if a.Truthy() {
			return a, nil
		}
		return b, nil
	},
	"??": func(a, b Value) (Value, error) {
		if !a.IsNullish() {
			return a, nil
		}
		return b, nil
	},
}

// unaryOps is the full UNARY_OP table, plus the synthetic "nullish" operator
// the lowerer's short-circuit redesign of "??" emits: a DUP followed by
// UNARY_OP("nullish") produces the JUMP_IF_TRUE test "is the duplicated
// left operand non-nullish" without needing a dedicated opcode.
var unaryOps = map[string]unaryOp{
	"+":      func(a Value) (Value, error) { return Number(a.ToNumber()), nil },
	"-":      func(a Value) (Value, error) { return Number(-a.ToNumber()), nil },
	"!":      func(a Value) (Value, error) { return Bool(!a.Truthy()), nil },
	"~":      func(a Value) (Value, error) { return Number(float64(^toInt32(a))), nil },
	"typeof": func(a Value) (Value, error) { return Str(a.TypeOf()), nil },
	"void":   func(a Value) (Value, error) { return Undefined, nil },
	"delete": func(a Value) (Value, error) { return Bool(true), nil },
	"nullish": func(a Value) (Value, error) {
		return Bool(!a.IsNullish()), nil
	},
}

func compare(a, b Value, numCmp func(x, y float64) bool, strCmp func(x, y string) bool) Value {
	if a.IsString() && b.IsString() {
		return Bool(strCmp(a.Str(), b.Str()))
	}
	an, bn := a.ToNumber(), b.ToNumber()
	if math.IsNaN(an) || math.IsNaN(bn) {
		return False
	}
	return Bool(numCmp(an, bn))
}

func toInt32(v Value) int32 {
	n := v.ToNumber()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int32(uint32(int64(n)))
}

func toUint32(v Value) uint32 {
	n := v.ToNumber()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return uint32(int64(n))
}

func parseArrayIndex(key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	n := 0
	for _, c := range key {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
