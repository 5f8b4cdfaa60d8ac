package runtime

import (
	"fmt"

	"github.com/vanta-works/shroudvm/bytecode"
)

// BadOpcode is raised when the dispatch loop reads a byte that is not a
// known bytecode.Opcode, or one that has no registered handler.
type BadOpcode struct {
	Op bytecode.Opcode
}

func (e *BadOpcode) Error() string {
	return fmt.Sprintf("runtime: unhandled opcode %s", e.Op)
}

// BadOperator is raised when BINARY_OP, UNARY_OP, or LOGICAL_OP names an
// operator string runtime.ops has no entry for.
type BadOperator struct {
	Op string
}

func (e *BadOperator) Error() string {
	return fmt.Sprintf("runtime: unknown operator %q", e.Op)
}

// StackUnderflow is raised when an opcode's handler pops more operands
// than the current frame's stack holds.
type StackUnderflow struct{}

func (e *StackUnderflow) Error() string { return "runtime: operand stack underflow" }

// TypeMismatch is raised when an opcode requires an operand of a kind it
// did not get (e.g. NEW_INSTANCE on a value that is not callable,
// ARRAY_PUSH on a non-array).
type TypeMismatch struct {
	Want string
	Got  string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("runtime: type mismatch: want %s, got %s", e.Want, e.Got)
}

// SecurityViolation names the failure an anti-analysis probe reports when it
// detects tampering: the emitted interpreter's debugger-hook and digest
// checks throw an error of this name, and nothing in this package raises it
// itself. Detail is deliberately suppressed —
// it must not hand an attacker a diagnostic.
type SecurityViolation struct{}

func (e *SecurityViolation) Error() string { return "runtime: security violation" }

// UndefinedVariable is raised by LOAD_VAR when name is not bound anywhere
// in the scope chain nor in the global scope. STORE_VAR never raises this:
// assigning to an unbound name creates it in the global scope instead.
type UndefinedVariable struct {
	Name string
}

func (e *UndefinedVariable) Error() string {
	return fmt.Sprintf("runtime: %q is not defined", e.Name)
}

// thrownValue is the panic payload THROW raises; the dispatch loop recovers
// it, and either redirects to the innermost active TryFrame's CatchPC or
// (outside of any try region) converts it to a Go error at Run's boundary.
type thrownValue struct {
	Value Value
}

// PoolEntryKind is raised when an opcode reads a constant pool entry of the
// wrong Tag for its operand position (e.g. BINARY_OP indexing a
// TagFunctionBody entry instead of TagIdentifier).
type PoolEntryKind struct {
	Want string
	Got  string
}

func (e *PoolEntryKind) Error() string {
	return fmt.Sprintf("runtime: constant pool entry kind mismatch: want %s, got %s", e.Want, e.Got)
}
