// Package bytecode defines the instruction encoding shared by the lowerer,
// the cipher layer, and both interpreters (the Go-native reference one and
// the emitted one). It mirrors the builder/reader/label split of the
// Smalltalk compiler this module grew out of, but the operand model is
// different: every operand except a raw call/new argument count indexes the
// constant pool, including jump displacements.
package bytecode

import (
	"fmt"

	"github.com/pkg/errors"
)

// Opcode identifies a single-byte instruction.
type Opcode byte

const (
	OpLoadConst      Opcode = 0x01
	OpLoadVar        Opcode = 0x02
	OpStoreVar       Opcode = 0x03
	OpBinaryOp       Opcode = 0x04
	OpCallFunction   Opcode = 0x05
	OpReturn         Opcode = 0x06
	OpJump           Opcode = 0x07
	OpJumpIfTrue     Opcode = 0x08
	OpJumpIfFalse    Opcode = 0x09
	OpCreateFunction Opcode = 0x0A
	OpCreateObject   Opcode = 0x0B
	OpLoadProperty   Opcode = 0x0C
	OpStoreProperty  Opcode = 0x0D
	OpPop            Opcode = 0x0E
	OpDuplicate      Opcode = 0x0F
	OpUnaryOp        Opcode = 0x10
	OpCreateArray    Opcode = 0x11
	OpArrayPush      Opcode = 0x12
	OpLoadIndex      Opcode = 0x13
	OpStoreIndex     Opcode = 0x14
	OpNewInstance    Opcode = 0x15
	OpLogicalOp      Opcode = 0x16
	OpTryBegin       Opcode = 0x19
	OpTryEnd         Opcode = 0x1A
	OpCatch          Opcode = 0x1B
	OpThrow          Opcode = 0x1C
	OpUndefined      Opcode = 0x1E
	OpNull           Opcode = 0x1F
	OpThis           Opcode = 0x20
	OpNop            Opcode = 0xFF
)

// OpcodeInfo describes the static shape of one opcode: its mnemonic, how
// many operand bytes follow it, and whether those bytes are a raw argument
// count (CALL_FUNCTION/NEW_INSTANCE) rather than pool indices.
type OpcodeInfo struct {
	Name         string
	OperandBytes int
	RawOperand   bool
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpLoadConst:      {"LOAD_CONST", 1, false},
	OpLoadVar:        {"LOAD_VAR", 1, false},
	OpStoreVar:       {"STORE_VAR", 1, false},
	OpBinaryOp:       {"BINARY_OP", 1, false},
	OpCallFunction:   {"CALL_FUNCTION", 1, true},
	OpReturn:         {"RETURN", 0, false},
	OpJump:           {"JUMP", 1, false},
	OpJumpIfTrue:     {"JUMP_IF_TRUE", 1, false},
	OpJumpIfFalse:    {"JUMP_IF_FALSE", 1, false},
	OpCreateFunction: {"CREATE_FUNCTION", 3, false},
	OpCreateObject:   {"CREATE_OBJECT", 0, false},
	OpLoadProperty:   {"LOAD_PROPERTY", 1, false},
	OpStoreProperty:  {"STORE_PROPERTY", 1, false},
	OpPop:            {"POP", 0, false},
	OpDuplicate:      {"DUPLICATE", 0, false},
	OpUnaryOp:        {"UNARY_OP", 1, false},
	OpCreateArray:    {"CREATE_ARRAY", 0, false},
	OpArrayPush:      {"ARRAY_PUSH", 0, false},
	OpLoadIndex:      {"LOAD_INDEX", 0, false},
	OpStoreIndex:     {"STORE_INDEX", 0, false},
	OpNewInstance:    {"NEW_INSTANCE", 1, true},
	OpLogicalOp:      {"LOGICAL_OP", 1, false},
	OpTryBegin:       {"TRY_BEGIN", 2, false},
	OpTryEnd:         {"TRY_END", 0, false},
	OpCatch:          {"CATCH", 1, false},
	OpThrow:          {"THROW", 0, false},
	OpUndefined:      {"UNDEFINED", 0, false},
	OpNull:           {"NULL", 0, false},
	OpThis:           {"THIS", 0, false},
	OpNop:            {"NOP", 0, false},
}

// Info returns the static description of op, or a zero-value OpcodeInfo with
// an empty Name if op is not a recognized opcode.
func (op Opcode) Info() OpcodeInfo {
	return opcodeTable[op]
}

func (op Opcode) Name() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("OP(%#02x)", byte(op))
}

func (op Opcode) OperandBytes() int {
	return opcodeTable[op].OperandBytes
}

func (op Opcode) Known() bool {
	_, ok := opcodeTable[op]
	return ok
}

func (op Opcode) String() string {
	return op.Name()
}

// AllOpcodes returns every recognized opcode, sorted by byte value.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeTable))
	for op := range opcodeTable {
		ops = append(ops, op)
	}
	for i := 1; i < len(ops); i++ {
		for j := i; j > 0 && ops[j-1] > ops[j]; j-- {
			ops[j-1], ops[j] = ops[j], ops[j-1]
		}
	}
	return ops
}

// Builder assembles a linear instruction stream, resolving forward and
// backward jumps through Label. Operand bytes for every opcode except
// CALL_FUNCTION/NEW_INSTANCE are written as pool-index bytes; pools are
// capped at 256 entries per program, surfaced by callers as a PoolOverflow
// error rather than truncated silently.
type Builder struct {
	code []byte
}

func NewBuilder() *Builder {
	return &Builder{code: make([]byte, 0, 64)}
}

func (b *Builder) Len() int { return len(b.code) }

func (b *Builder) Bytes() []byte {
	out := make([]byte, len(b.code))
	copy(out, b.code)
	return out
}

// Emit appends op and a single pool-index operand byte.
func (b *Builder) Emit(op Opcode, poolIndex int) error {
	if poolIndex < 0 || poolIndex > 255 {
		return errors.Errorf("pool index %d out of byte range for %s", poolIndex, op.Name())
	}
	b.code = append(b.code, byte(op), byte(poolIndex))
	return nil
}

// EmitRaw appends op and a single raw operand byte (CALL_FUNCTION/NEW_INSTANCE
// argument counts).
func (b *Builder) EmitRaw(op Opcode, raw int) error {
	if raw < 0 || raw > 255 {
		return errors.Errorf("raw operand %d out of byte range for %s", raw, op.Name())
	}
	b.code = append(b.code, byte(op), byte(raw))
	return nil
}

// EmitBare appends an opcode with no operand bytes.
func (b *Builder) EmitBare(op Opcode) {
	b.code = append(b.code, byte(op))
}

// EmitTriple appends CREATE_FUNCTION's three pool-index operands.
func (b *Builder) EmitTriple(op Opcode, a, c, d int) error {
	for _, idx := range []int{a, c, d} {
		if idx < 0 || idx > 255 {
			return errors.Errorf("pool index %d out of byte range for %s", idx, op.Name())
		}
	}
	b.code = append(b.code, byte(op), byte(a), byte(c), byte(d))
	return nil
}

// EmitPair appends TRY_BEGIN's two pool-index operands (catch_pc, finally_pc).
func (b *Builder) EmitPair(op Opcode, a, c int) error {
	for _, idx := range []int{a, c} {
		if idx < 0 || idx > 255 {
			return errors.Errorf("pool index %d out of byte range for %s", idx, op.Name())
		}
	}
	b.code = append(b.code, byte(op), byte(a), byte(c))
	return nil
}

// PatchOperand overwrites the single pool-index operand byte of the
// instruction at pos (the position of the opcode byte itself).
func (b *Builder) PatchOperand(pos, poolIndex int) error {
	if poolIndex < 0 || poolIndex > 255 {
		return errors.Errorf("pool index %d out of byte range patching pos %d", poolIndex, pos)
	}
	if pos < 0 || pos+1 >= len(b.code) {
		return errors.Errorf("patch position %d out of range", pos)
	}
	b.code[pos+1] = byte(poolIndex)
	return nil
}

// PatchPair overwrites the two pool-index operand bytes of the instruction
// at pos (used for TRY_BEGIN's catch_pc/finally_pc, resolved after the
// block they guard has been emitted).
func (b *Builder) PatchPair(pos, a, c int) error {
	for _, idx := range []int{a, c} {
		if idx < 0 || idx > 255 {
			return errors.Errorf("pool index %d out of byte range patching pos %d", idx, pos)
		}
	}
	if pos < 0 || pos+2 >= len(b.code) {
		return errors.Errorf("patch position %d out of range", pos)
	}
	b.code[pos+1] = byte(a)
	b.code[pos+2] = byte(c)
	return nil
}

// Label marks a position in the instruction stream that jumps may target
// before that position is known. EmitJump records a pending reference; Mark
// resolves the label and patches every pending reference's pool-index
// operand via the supplied resolver, which is expected to insert the signed
// displacement into the constant pool and return its index.
type Label struct {
	resolved bool
	position int
	pending  []pendingRef
}

type pendingRef struct {
	instrPos int // position of the jump opcode byte
}

func NewLabel() *Label {
	return &Label{}
}

// EmitJump appends a jump-family opcode with a placeholder operand byte and
// records the instruction's position for later patching.
func (l *Label) EmitJump(b *Builder, op Opcode) {
	pos := b.Len()
	b.code = append(b.code, byte(op), 0)
	l.pending = append(l.pending, pendingRef{instrPos: pos})
}

// Mark resolves the label at the builder's current position and patches
// every pending jump's operand to the pool index returned by resolve, which
// is called once per pending reference with the signed displacement
// (target_pc - jump_opcode_pc).
func (l *Label) Mark(b *Builder, resolve func(displacement int) (int, error)) error {
	l.position = b.Len()
	l.resolved = true
	for _, ref := range l.pending {
		disp := l.position - ref.instrPos
		idx, err := resolve(disp)
		if err != nil {
			return errors.Wrapf(err, "resolving jump at %d", ref.instrPos)
		}
		if err := b.PatchOperand(ref.instrPos, idx); err != nil {
			return err
		}
	}
	return nil
}

func (l *Label) Position() int { return l.position }
func (l *Label) Resolved() bool { return l.resolved }

// Reader walks a decoded instruction stream.
type Reader struct {
	code []byte
	pos  int
}

func NewReader(code []byte) *Reader {
	return &Reader{code: code}
}

func (r *Reader) HasMore() bool { return r.pos < len(r.code) }
func (r *Reader) Position() int { return r.pos }
func (r *Reader) Seek(pos int)  { r.pos = pos }
func (r *Reader) Len() int      { return len(r.code) }

func (r *Reader) ReadOpcode() (Opcode, error) {
	if r.pos >= len(r.code) {
		return 0, errors.New("read opcode past end of stream")
	}
	op := Opcode(r.code[r.pos])
	r.pos++
	return op, nil
}

func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.code) {
		return 0, errors.New("read byte past end of stream")
	}
	v := r.code[r.pos]
	r.pos++
	return v, nil
}

// ReadOperands reads n raw operand bytes for the instruction just read.
func (r *Reader) ReadOperands(n int) ([]byte, error) {
	if r.pos+n > len(r.code) {
		return nil, errors.Errorf("read %d operand bytes past end of stream at pos %d", n, r.pos)
	}
	out := r.code[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Disassemble renders a human-readable listing of code, resolving pool-index
// operands via poolRepr (which should format the constant at that index).
func Disassemble(code []byte, poolRepr func(idx int) string) string {
	var out []byte
	r := NewReader(code)
	for r.HasMore() {
		pos := r.Position()
		op, err := r.ReadOpcode()
		if err != nil {
			break
		}
		info := op.Info()
		line := fmt.Sprintf("%04d  %-16s", pos, op.Name())
		if info.OperandBytes > 0 {
			operands, err := r.ReadOperands(info.OperandBytes)
			if err != nil {
				break
			}
			for _, b := range operands {
				if info.RawOperand || poolRepr == nil {
					line += fmt.Sprintf(" %d", b)
				} else {
					line += fmt.Sprintf(" %s", poolRepr(int(b)))
				}
			}
		}
		out = append(out, []byte(line+"\n")...)
	}
	return string(out)
}
