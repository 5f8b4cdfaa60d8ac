package runtime

import (
	"testing"

	"github.com/vanta-works/shroudvm/bytecode"
	"github.com/vanta-works/shroudvm/constpool"
)

// prog is a tiny test-local bytecode builder: callers append raw
// opcode+operand bytes directly (mirroring how the lowerer itself emits),
// since these tests exercise the interpreter in isolation from lower.Lowerer.
type prog struct {
	code []byte
	pool *constpool.Pool
}

func newProg() *prog { return &prog{pool: constpool.New()} }

func (p *prog) op(op bytecode.Opcode)            { p.code = append(p.code, byte(op)) }
func (p *prog) opIdx(op bytecode.Opcode, idx int) { p.code = append(p.code, byte(op), byte(idx)) }
func (p *prog) raw(op bytecode.Opcode, n int)     { p.code = append(p.code, byte(op), byte(n)) }

func (p *prog) constNum(n float64) int {
	idx, _ := p.pool.InsertPrimitive(n)
	return idx
}

func (p *prog) constStr(s string) int {
	idx, _ := p.pool.InsertString(s)
	return idx
}

func (p *prog) ident(name string) int {
	idx, _ := p.pool.InsertIdentifier(name)
	return idx
}

func (p *prog) build() *bytecode.Program {
	return bytecode.NewProgram(p.code, p.pool)
}

func TestReturnLiteral(t *testing.T) {
	p := newProg()
	idx := p.constNum(42)
	p.opIdx(bytecode.OpLoadConst, idx)
	p.op(bytecode.OpReturn)

	interp := NewInterpreter()
	v, err := interp.Run(p.build())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Number() != 42 {
		t.Errorf("result = %v, want 42", v.Number())
	}
}

func TestBinaryOpAddition(t *testing.T) {
	p := newProg()
	a := p.constNum(2)
	b := p.constNum(3)
	op := p.ident("+")
	p.opIdx(bytecode.OpLoadConst, a)
	p.opIdx(bytecode.OpLoadConst, b)
	p.opIdx(bytecode.OpBinaryOp, op)
	p.op(bytecode.OpReturn)

	interp := NewInterpreter()
	v, err := interp.Run(p.build())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Number() != 5 {
		t.Errorf("result = %v, want 5", v.Number())
	}
}

func TestStoreThenLoadVar(t *testing.T) {
	p := newProg()
	name := p.ident("x")
	val := p.constNum(7)
	p.opIdx(bytecode.OpLoadConst, val)
	p.opIdx(bytecode.OpStoreVar, name)
	p.opIdx(bytecode.OpLoadVar, name)
	p.op(bytecode.OpReturn)

	interp := NewInterpreter()
	v, err := interp.Run(p.build())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Number() != 7 {
		t.Errorf("result = %v, want 7", v.Number())
	}
}

// TestAssignExpressionLeavesSingleValue exercises the
// "DUPLICATE; STORE_VAR" emission order lowerAssign uses for an assignment
// expression's own result: STORE_VAR consumes its operand, so the value an
// assignment statement's trailing POP retires must be the duplicate, not a
// second copy left behind by a non-consuming store.
func TestAssignExpressionLeavesSingleValue(t *testing.T) {
	p := newProg()
	name := p.ident("x")
	val := p.constNum(9)
	p.opIdx(bytecode.OpLoadConst, val)
	p.op(bytecode.OpDuplicate)
	p.opIdx(bytecode.OpStoreVar, name)
	// Exactly one POP should fully retire the assignment-expression's
	// result, leaving the operand stack empty.
	p.op(bytecode.OpPop)
	p.opIdx(bytecode.OpLoadVar, name)
	p.op(bytecode.OpReturn)

	interp := NewInterpreter()
	v, err := interp.Run(p.build())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Number() != 9 {
		t.Errorf("result = %v, want 9", v.Number())
	}
}

func TestUndefinedVariableErrors(t *testing.T) {
	p := newProg()
	name := p.ident("nope")
	p.opIdx(bytecode.OpLoadVar, name)
	p.op(bytecode.OpReturn)

	interp := NewInterpreter()
	_, err := interp.Run(p.build())
	if err == nil {
		t.Fatal("expected an UndefinedVariable error")
	}
	if _, ok := err.(*UndefinedVariable); !ok {
		t.Errorf("err = %T, want *UndefinedVariable", err)
	}
}

func TestAssignToUnboundNameCreatesGlobal(t *testing.T) {
	p := newProg()
	name := p.ident("g")
	val := p.constNum(1)
	p.opIdx(bytecode.OpLoadConst, val)
	p.opIdx(bytecode.OpStoreVar, name)
	p.op(bytecode.OpReturn)

	interp := NewInterpreter()
	if _, err := interp.Run(p.build()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, ok := interp.Globals().Get("g"); !ok {
		t.Error("assigning to an unbound name should create it in the global scope")
	}
}

// TestJumpIfFalseSkipsBranch builds the equivalent of `if (false) { 1 }`
// and checks control actually lands past the skipped branch.
func TestJumpIfFalseSkipsBranch(t *testing.T) {
	p := newProg()
	cond := p.constNum(0) // falsy
	p.opIdx(bytecode.OpLoadConst, cond)
	jumpPos := len(p.code)
	p.opIdx(bytecode.OpJumpIfFalse, 0) // patched below
	branchVal := p.constNum(111)
	p.opIdx(bytecode.OpLoadConst, branchVal)
	p.op(bytecode.OpPop)
	target := len(p.code)
	resultVal := p.constNum(222)
	p.opIdx(bytecode.OpLoadConst, resultVal)
	p.op(bytecode.OpReturn)

	disp := target - jumpPos
	idx, _ := p.pool.InsertOffset(disp)
	p.code[jumpPos+1] = byte(idx)

	interp := NewInterpreter()
	v, err := interp.Run(p.build())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Number() != 222 {
		t.Errorf("result = %v, want 222 (branch should have been skipped)", v.Number())
	}
}

func TestThrowCaughtByTryBegin(t *testing.T) {
	p := newProg()
	tryBeginPos := len(p.code)
	p.code = append(p.code, byte(bytecode.OpTryBegin), 0, 0) // patched below

	msg := p.constStr("boom")
	p.opIdx(bytecode.OpLoadConst, msg)
	p.op(bytecode.OpThrow)
	p.op(bytecode.OpTryEnd)
	afterTryJump := len(p.code)
	p.code = append(p.code, byte(bytecode.OpJump), 0) // patched to end, below

	catchPC := len(p.code)
	name := p.ident("e")
	p.opIdx(bytecode.OpCatch, name)
	p.op(bytecode.OpPop)
	p.opIdx(bytecode.OpLoadVar, name)
	p.op(bytecode.OpReturn)

	endPC := len(p.code)

	catchIdx, _ := p.pool.InsertOffset(catchPC)
	finallyIdx, _ := p.pool.InsertOffset(endPC)
	p.code[tryBeginPos+1] = byte(catchIdx)
	p.code[tryBeginPos+2] = byte(finallyIdx)

	afterTryDisp := endPC - afterTryJump
	afterTryIdx, _ := p.pool.InsertOffset(afterTryDisp)
	p.code[afterTryJump+1] = byte(afterTryIdx)

	interp := NewInterpreter()
	v, err := interp.Run(p.build())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Str() != "boom" {
		t.Errorf("caught value = %q, want %q", v.Str(), "boom")
	}
}

func TestUncaughtThrowBecomesError(t *testing.T) {
	p := newProg()
	msg := p.constStr("uncaught")
	p.opIdx(bytecode.OpLoadConst, msg)
	p.op(bytecode.OpThrow)

	interp := NewInterpreter()
	_, err := interp.Run(p.build())
	if err == nil {
		t.Fatal("expected an uncaught-exception error")
	}
	thrown, ok := err.(*ThrownError)
	if !ok {
		t.Fatalf("err = %T, want *ThrownError", err)
	}
	if thrown.Value.Str() != "uncaught" {
		t.Errorf("thrown value = %q, want %q", thrown.Value.Str(), "uncaught")
	}
}

func TestCallClosure(t *testing.T) {
	// function body: RETURN x (param "x" bound positionally)
	body := newProg()
	xIdx := body.ident("x")
	body.opIdx(bytecode.OpLoadVar, xIdx)
	body.op(bytecode.OpReturn)
	bodyProg := body.build()

	p := newProg()
	nameIdx := p.constStr("f")
	paramsIdx, _ := p.pool.InsertStringList([]string{"x"})
	bodyIdx, _ := p.pool.InsertFunctionBody(bodyProg)
	p.code = append(p.code, byte(bytecode.OpCreateFunction), byte(nameIdx), byte(paramsIdx), byte(bodyIdx))
	arg := p.constNum(99)
	p.opIdx(bytecode.OpLoadConst, arg)
	p.raw(bytecode.OpCallFunction, 1)
	p.op(bytecode.OpReturn)

	interp := NewInterpreter()
	v, err := interp.Run(p.build())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Number() != 99 {
		t.Errorf("result = %v, want 99", v.Number())
	}
}

func TestArrayPushAndLoadIndex(t *testing.T) {
	p := newProg()
	p.op(bytecode.OpCreateArray)
	elem := p.constNum(5)
	p.op(bytecode.OpDuplicate)
	p.opIdx(bytecode.OpLoadConst, elem)
	p.op(bytecode.OpArrayPush)
	p.op(bytecode.OpPop)
	zero := p.constNum(0)
	p.opIdx(bytecode.OpLoadConst, zero)
	p.op(bytecode.OpLoadIndex)
	p.op(bytecode.OpReturn)

	interp := NewInterpreter()
	v, err := interp.Run(p.build())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Number() != 5 {
		t.Errorf("result = %v, want 5", v.Number())
	}
}
