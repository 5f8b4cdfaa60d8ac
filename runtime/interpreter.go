package runtime

import (
	"github.com/vanta-works/shroudvm/bytecode"
	"github.com/vanta-works/shroudvm/constpool"
)

// Frame is one call's bookkeeping record: the scope it executes in, and
// the program counter its caller should resume at. A lowered closure
// captures its defining Scope directly rather than a stack-slot window,
// so Frame carries a Scope pointer instead of a base-pointer offset.
type Frame struct {
	ReturnPC int
	Scope    *Scope
}

// TryFrame records one active exception region: where to resume on a
// caught throw, and where the guaranteed finally block (if any) begins.
type TryFrame struct {
	CatchPC   int
	FinallyPC int
}

// handler implements one opcode. It reads its own operand bytes from
// ex.code starting at ex.pc (advancing it), and mutates ex.stack/ex.scope/
// ex.tryBlocks/ex.pc as the opcode requires. Returning a non-nil error
// aborts the frame; setting ex.done with ex.result completes it normally.
type handler func(i *Interpreter, ex *execState) error

// execState is one call frame's live execution state: its own operand
// stack, its own try-block stack, and a cursor into its own program.
// Nested calls (CALL_FUNCTION/NEW_INSTANCE) get a fresh execState via a
// recursive Go call into execProgram — the Go call stack supplies the
// real call stack, and Interpreter.callStack exists purely for
// bookkeeping and introspection.
type execState struct {
	code      []byte
	pool      *constpool.Pool
	pc        int
	opStart   int
	stack     []Value
	scope     *Scope
	tryBlocks []TryFrame
	result    Value
	done      bool
}

func (ex *execState) push(v Value) { ex.stack = append(ex.stack, v) }

func (ex *execState) pop() (Value, error) {
	if len(ex.stack) == 0 {
		return Value{}, &StackUnderflow{}
	}
	v := ex.stack[len(ex.stack)-1]
	ex.stack = ex.stack[:len(ex.stack)-1]
	return v, nil
}

func (ex *execState) top() (Value, error) {
	if len(ex.stack) == 0 {
		return Value{}, &StackUnderflow{}
	}
	return ex.stack[len(ex.stack)-1], nil
}

func (ex *execState) readByte() int {
	b := ex.code[ex.pc]
	ex.pc++
	return int(b)
}

func (ex *execState) identifier() (string, error) {
	idx := ex.readByte()
	entry, err := ex.pool.Get(idx)
	if err != nil {
		return "", err
	}
	name, ok := entry.Value.(string)
	if entry.Tag != constpool.TagIdentifier || !ok {
		return "", &PoolEntryKind{Want: "identifier", Got: entry.Tag.String()}
	}
	return name, nil
}

func (ex *execState) offset() (int, error) {
	idx := ex.readByte()
	entry, err := ex.pool.Get(idx)
	if err != nil {
		return 0, err
	}
	disp, ok := entry.Value.(int)
	if entry.Tag != constpool.TagNumericOffset || !ok {
		return 0, &PoolEntryKind{Want: "numeric-offset", Got: entry.Tag.String()}
	}
	return disp, nil
}

// Interpreter executes lowered bytecode.Programs against a tagged-union
// Value model. One Interpreter's global scope persists across Run calls,
// matching a single obfuscated source file's top-level bindings.
type Interpreter struct {
	globals   *Scope
	callStack []*Frame
}

// NewInterpreter creates an interpreter with its intrinsic globals
// (console, Math, JSON, and the rest of ident.Intrinsics) pre-bound.
func NewInterpreter() *Interpreter {
	i := &Interpreter{globals: NewScope(nil)}
	i.installIntrinsics()
	return i
}

// Globals exposes the root scope, mainly so tests can assert on bindings
// a program left behind at the top level.
func (i *Interpreter) Globals() *Scope { return i.globals }

// Run executes prog's top level in the interpreter's global scope and
// returns its final RETURN value.
func (i *Interpreter) Run(prog *bytecode.Program) (Value, error) {
	return i.execProgram(prog, i.globals)
}

// handlers is built once per process, not once per Interpreter, since it
// closes over no per-instance state — every handler receives both the
// Interpreter and the live execState explicitly.
var handlers map[bytecode.Opcode]handler

func init() {
	handlers = map[bytecode.Opcode]handler{
		bytecode.OpLoadConst:      hLoadConst,
		bytecode.OpLoadVar:        hLoadVar,
		bytecode.OpStoreVar:       hStoreVar,
		bytecode.OpBinaryOp:       hBinaryOp,
		bytecode.OpCallFunction:   hCallFunction,
		bytecode.OpReturn:         hReturn,
		bytecode.OpJump:           hJump,
		bytecode.OpJumpIfTrue:     hJumpIfTrue,
		bytecode.OpJumpIfFalse:    hJumpIfFalse,
		bytecode.OpCreateFunction: hCreateFunction,
		bytecode.OpCreateObject:   hCreateObject,
		bytecode.OpLoadProperty:   hLoadProperty,
		bytecode.OpStoreProperty:  hStoreProperty,
		bytecode.OpPop:            hPop,
		bytecode.OpDuplicate:      hDuplicate,
		bytecode.OpUnaryOp:        hUnaryOp,
		bytecode.OpCreateArray:    hCreateArray,
		bytecode.OpArrayPush:      hArrayPush,
		bytecode.OpLoadIndex:      hLoadIndex,
		bytecode.OpStoreIndex:     hStoreIndex,
		bytecode.OpNewInstance:    hNewInstance,
		bytecode.OpLogicalOp:      hLogicalOp,
		bytecode.OpTryBegin:       hTryBegin,
		bytecode.OpTryEnd:         hTryEnd,
		bytecode.OpCatch:          hCatch,
		bytecode.OpThrow:          hThrow,
		bytecode.OpUndefined:      hUndefined,
		bytecode.OpNull:           hNull,
		bytecode.OpThis:           hThis,
		bytecode.OpNop:            hNop,
	}
}

// execProgram runs one lowered unit (the top-level program, or a
// CREATE_FUNCTION body) to completion in scope, returning its RETURN
// value. Every CALL_FUNCTION/NEW_INSTANCE recurses back into this
// function with a fresh execState, so Go's own call stack is the real
// call stack; callStack is bookkeeping only.
func (i *Interpreter) execProgram(prog *bytecode.Program, scope *Scope) (Value, error) {
	ex := &execState{code: prog.Code, pool: prog.Pool, scope: scope}
	frame := &Frame{Scope: scope}
	i.callStack = append(i.callStack, frame)
	defer func() { i.callStack = i.callStack[:len(i.callStack)-1] }()

	for ex.pc < len(ex.code) {
		ex.opStart = ex.pc
		op := bytecode.Opcode(ex.code[ex.pc])
		ex.pc++

		h, ok := handlers[op]
		if !ok {
			return Undefined, &BadOpcode{Op: op}
		}

		thrown, err := i.invoke(h, ex)
		if thrown != nil {
			if len(ex.tryBlocks) == 0 {
				return Undefined, &ThrownError{Value: thrown.Value}
			}
			tf := ex.tryBlocks[len(ex.tryBlocks)-1]
			ex.tryBlocks = ex.tryBlocks[:len(ex.tryBlocks)-1]
			ex.push(thrown.Value)
			ex.pc = tf.CatchPC
			continue
		}
		if err != nil {
			return Undefined, err
		}
		if ex.done {
			return ex.result, nil
		}
	}
	return Undefined, nil
}

// invoke runs h, recovering a THROW-raised thrownValue panic so the
// dispatch loop can redirect it to the innermost active try block instead
// of unwinding the Go stack. Any other panic (a genuine bug) propagates.
func (i *Interpreter) invoke(h handler, ex *execState) (thrown *thrownValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			if tv, ok := r.(thrownValue); ok {
				thrown = &tv
				return
			}
			panic(r)
		}
	}()
	err = h(i, ex)
	return nil, err
}

// ThrownError wraps a value a THROW statement raised that escaped every
// try block in the program, surfaced as a Go error at Run's boundary.
type ThrownError struct {
	Value Value
}

func (e *ThrownError) Error() string {
	return "uncaught exception: " + e.Value.ToDisplayString()
}

// --- Stack/constant handlers ---

func hLoadConst(i *Interpreter, ex *execState) error {
	idx := ex.readByte()
	entry, err := ex.pool.Get(idx)
	if err != nil {
		return err
	}
	switch entry.Tag {
	case constpool.TagString:
		ex.push(Str(entry.Value.(string)))
	case constpool.TagPrimitive:
		ex.push(primitiveToValue(entry.Value))
	default:
		return &PoolEntryKind{Want: "primitive or string", Got: entry.Tag.String()}
	}
	return nil
}

func primitiveToValue(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case int64:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case float64:
		return Number(t)
	default:
		return Undefined
	}
}

func hPop(i *Interpreter, ex *execState) error {
	_, err := ex.pop()
	return err
}

func hDuplicate(i *Interpreter, ex *execState) error {
	v, err := ex.top()
	if err != nil {
		return err
	}
	ex.push(v)
	return nil
}

func hUndefined(i *Interpreter, ex *execState) error { ex.push(Undefined); return nil }
func hNull(i *Interpreter, ex *execState) error      { ex.push(Null); return nil }
func hNop(i *Interpreter, ex *execState) error       { return nil }

func hThis(i *Interpreter, ex *execState) error {
	v, ok := ex.scope.Get("this")
	if !ok {
		ex.push(Undefined)
		return nil
	}
	ex.push(v)
	return nil
}

// --- Variables ---

func hLoadVar(i *Interpreter, ex *execState) error {
	name, err := ex.identifier()
	if err != nil {
		return err
	}
	v, ok := ex.scope.Get(name)
	if !ok {
		return &UndefinedVariable{Name: name}
	}
	ex.push(v)
	return nil
}

func hStoreVar(i *Interpreter, ex *execState) error {
	name, err := ex.identifier()
	if err != nil {
		return err
	}
	v, err := ex.pop()
	if err != nil {
		return err
	}
	ex.scope.Set(name, v)
	return nil
}

// --- Operators ---

func hBinaryOp(i *Interpreter, ex *execState) error {
	op, err := ex.identifier()
	if err != nil {
		return err
	}
	fn, ok := binaryOps[op]
	if !ok {
		return &BadOperator{Op: op}
	}
	b, err := ex.pop()
	if err != nil {
		return err
	}
	a, err := ex.pop()
	if err != nil {
		return err
	}
	result, err := fn(a, b)
	if err != nil {
		return err
	}
	ex.push(result)
	return nil
}

func hLogicalOp(i *Interpreter, ex *execState) error {
	return hBinaryOp(i, ex)
}

func hUnaryOp(i *Interpreter, ex *execState) error {
	op, err := ex.identifier()
	if err != nil {
		return err
	}
	fn, ok := unaryOps[op]
	if !ok {
		return &BadOperator{Op: op}
	}
	a, err := ex.pop()
	if err != nil {
		return err
	}
	result, err := fn(a)
	if err != nil {
		return err
	}
	ex.push(result)
	return nil
}

// --- Control flow ---

func hJump(i *Interpreter, ex *execState) error {
	disp, err := ex.offset()
	if err != nil {
		return err
	}
	ex.pc = ex.opStart + disp
	return nil
}

func hJumpIfTrue(i *Interpreter, ex *execState) error {
	disp, err := ex.offset()
	if err != nil {
		return err
	}
	v, err := ex.pop()
	if err != nil {
		return err
	}
	if v.Truthy() {
		ex.pc = ex.opStart + disp
	}
	return nil
}

func hJumpIfFalse(i *Interpreter, ex *execState) error {
	disp, err := ex.offset()
	if err != nil {
		return err
	}
	v, err := ex.pop()
	if err != nil {
		return err
	}
	if !v.Truthy() {
		ex.pc = ex.opStart + disp
	}
	return nil
}

func hReturn(i *Interpreter, ex *execState) error {
	v, err := ex.pop()
	if err != nil {
		return err
	}
	ex.result = v
	ex.done = true
	return nil
}

// --- Functions/closures ---

func hCreateFunction(i *Interpreter, ex *execState) error {
	nameIdx := ex.readByte()
	paramsIdx := ex.readByte()
	bodyIdx := ex.readByte()

	nameEntry, err := ex.pool.Get(nameIdx)
	if err != nil {
		return err
	}
	name, _ := nameEntry.Value.(string)

	paramsEntry, err := ex.pool.Get(paramsIdx)
	if err != nil {
		return err
	}
	params, ok := paramsEntry.Value.([]string)
	if !ok {
		return &PoolEntryKind{Want: "string-list", Got: paramsEntry.Tag.String()}
	}

	bodyEntry, err := ex.pool.Get(bodyIdx)
	if err != nil {
		return err
	}
	body, ok := bodyEntry.Value.(*bytecode.Program)
	if !ok {
		return &PoolEntryKind{Want: "function-body", Got: bodyEntry.Tag.String()}
	}

	clos := &Closure{Name: name, Params: params, Program: body, DefiningScope: ex.scope}
	val := FromClosure(clos)
	if name != "" {
		ex.scope.Define(name, val)
	}
	ex.push(val)
	return nil
}

func hCallFunction(i *Interpreter, ex *execState) error {
	argc := ex.readByte()
	args := make([]Value, argc)
	for k := argc - 1; k >= 0; k-- {
		v, err := ex.pop()
		if err != nil {
			return err
		}
		args[k] = v
	}
	callee, err := ex.pop()
	if err != nil {
		return err
	}
	result, err := i.call(callee, Undefined, args)
	if err != nil {
		return err
	}
	ex.push(result)
	return nil
}

// call dispatches a callable Value, used by both CALL_FUNCTION and any
// native function that itself invokes a guest callback (e.g. an
// Array.prototype iteration helper).
func (i *Interpreter) call(callee, this Value, args []Value) (Value, error) {
	switch callee.Kind() {
	case KindClosure:
		clos := callee.Closure()
		scope := NewScope(clos.DefiningScope)
		scope.Define("this", this)
		for idx, p := range clos.Params {
			if idx < len(args) {
				scope.Define(p, args[idx])
			} else {
				scope.Define(p, Undefined)
			}
		}
		prog, ok := clos.Program.(*bytecode.Program)
		if !ok {
			return Undefined, &TypeMismatch{Want: "bytecode.Program", Got: "unknown"}
		}
		return i.execProgram(prog, scope)
	case KindNativeFunction:
		return callee.Native()(i, this, args)
	default:
		return Undefined, &TypeMismatch{Want: "function", Got: callee.TypeOf()}
	}
}

func hNewInstance(i *Interpreter, ex *execState) error {
	argc := ex.readByte()
	args := make([]Value, argc)
	for k := argc - 1; k >= 0; k-- {
		v, err := ex.pop()
		if err != nil {
			return err
		}
		args[k] = v
	}
	callee, err := ex.pop()
	if err != nil {
		return err
	}
	if callee.Kind() == KindNativeFunction {
		result, err := i.call(callee, Undefined, args)
		if err != nil {
			return err
		}
		ex.push(result)
		return nil
	}
	if callee.Kind() != KindClosure {
		return &TypeMismatch{Want: "function", Got: callee.TypeOf()}
	}
	obj := NewObject()
	obj.ctor = callee.Closure()
	instance := FromObject(obj)
	result, err := i.call(callee, instance, args)
	if err != nil {
		return err
	}
	if result.IsObject() {
		ex.push(result)
	} else {
		ex.push(instance)
	}
	return nil
}

// --- Objects/arrays ---

func hCreateObject(i *Interpreter, ex *execState) error {
	ex.push(FromObject(NewObject()))
	return nil
}

func hLoadProperty(i *Interpreter, ex *execState) error {
	name, err := ex.identifier()
	if err != nil {
		return err
	}
	obj, err := ex.pop()
	if err != nil {
		return err
	}
	ex.push(getProperty(obj, name))
	return nil
}

func getProperty(obj Value, name string) Value {
	switch obj.Kind() {
	case KindObject:
		if v, ok := obj.Object().Get(name); ok {
			return v
		}
		return Undefined
	case KindArray:
		if name == "length" {
			return Int(len(obj.Array().Elements))
		}
		if idx, ok := parseArrayIndex(name); ok {
			if idx >= 0 && idx < len(obj.Array().Elements) {
				return obj.Array().Elements[idx]
			}
		}
		return Undefined
	case KindString:
		if name == "length" {
			return Int(len([]rune(obj.Str())))
		}
		return Undefined
	default:
		return Undefined
	}
}

func hStoreProperty(i *Interpreter, ex *execState) error {
	val, err := ex.pop()
	if err != nil {
		return err
	}
	name, err := ex.identifier()
	if err != nil {
		return err
	}
	obj, err := ex.pop()
	if err != nil {
		return err
	}
	if obj.IsObject() {
		obj.Object().Set(name, val)
	} else if obj.IsArray() {
		if idx, ok := parseArrayIndex(name); ok {
			setArrayIndex(obj.Array(), idx, val)
		}
	}
	ex.push(val)
	return nil
}

func setArrayIndex(a *Array, idx int, v Value) {
	if idx < 0 {
		return
	}
	for len(a.Elements) <= idx {
		a.Elements = append(a.Elements, Undefined)
	}
	a.Elements[idx] = v
}

func hCreateArray(i *Interpreter, ex *execState) error {
	ex.push(FromArray(NewArray(nil)))
	return nil
}

func hArrayPush(i *Interpreter, ex *execState) error {
	val, err := ex.pop()
	if err != nil {
		return err
	}
	arr, err := ex.top()
	if err != nil {
		return err
	}
	if !arr.IsArray() {
		return &TypeMismatch{Want: "array", Got: arr.TypeOf()}
	}
	arr.Array().Elements = append(arr.Array().Elements, val)
	return nil
}

func hLoadIndex(i *Interpreter, ex *execState) error {
	idx, err := ex.pop()
	if err != nil {
		return err
	}
	obj, err := ex.pop()
	if err != nil {
		return err
	}
	ex.push(getProperty(obj, idx.ToDisplayString()))
	return nil
}

func hStoreIndex(i *Interpreter, ex *execState) error {
	val, err := ex.pop()
	if err != nil {
		return err
	}
	idx, err := ex.pop()
	if err != nil {
		return err
	}
	obj, err := ex.pop()
	if err != nil {
		return err
	}
	switch obj.Kind() {
	case KindArray:
		if n, ok := parseArrayIndex(idx.ToDisplayString()); ok {
			setArrayIndex(obj.Array(), n, val)
		}
	case KindObject:
		obj.Object().Set(idx.ToDisplayString(), val)
	default:
		return &TypeMismatch{Want: "array or object", Got: obj.TypeOf()}
	}
	ex.push(val)
	return nil
}

// --- Exceptions ---

func hTryBegin(i *Interpreter, ex *execState) error {
	// Unlike JUMP's pool-indexed operand, TRY_BEGIN's two pool entries hold
	// absolute bytecode positions (the lowerer inserts builder.Len()
	// directly), not displacements relative to this opcode's own position.
	catchPC, err := ex.offset()
	if err != nil {
		return err
	}
	finallyPC, err := ex.offset()
	if err != nil {
		return err
	}
	ex.tryBlocks = append(ex.tryBlocks, TryFrame{
		CatchPC:   catchPC,
		FinallyPC: finallyPC,
	})
	return nil
}

func hTryEnd(i *Interpreter, ex *execState) error {
	if len(ex.tryBlocks) > 0 {
		ex.tryBlocks = ex.tryBlocks[:len(ex.tryBlocks)-1]
	}
	return nil
}

func hCatch(i *Interpreter, ex *execState) error {
	name, err := ex.identifier()
	if err != nil {
		return err
	}
	v, err := ex.top()
	if err != nil {
		return err
	}
	ex.scope.Define(name, v)
	return nil
}

func hThrow(i *Interpreter, ex *execState) error {
	v, err := ex.pop()
	if err != nil {
		return err
	}
	panic(thrownValue{Value: v})
}
