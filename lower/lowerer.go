// Package lower implements the single-pass AST-to-bytecode emission that
// carries the engineering weight of this module: turning an ast.Program
// into a flat bytecode.Program (instruction stream + constant pool), with
// jump targets patched through bytecode.Label and constant-pool indices
// threaded through constpool.Pool.
package lower

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/vanta-works/shroudvm/ast"
	"github.com/vanta-works/shroudvm/bytecode"
	"github.com/vanta-works/shroudvm/constpool"
)

// Policy controls what happens when the lowerer encounters a node kind it
// does not know how to emit.
type Policy int

const (
	// PolicyStrict aborts emission on the first unsupported node.
	PolicyStrict Policy = iota
	// PolicyLossy emits UNSUPPORTED_NODE diagnostics and an UNDEFINED
	// placeholder, continuing emission.
	PolicyLossy
)

// UnsupportedNode is returned (strict mode) or recorded (lossy mode) when
// the lowerer meets a node kind with no emission rule.
type UnsupportedNode struct {
	Kind string
}

func (e *UnsupportedNode) Error() string {
	return fmt.Sprintf("unsupported node kind: %s", e.Kind)
}

// PoolOverflow is returned when a constant pool would grow past the
// single-byte operand's addressable range.
type PoolOverflow struct {
	Attempted int
}

func (e *PoolOverflow) Error() string {
	return fmt.Sprintf("constant pool overflow: attempted entry %d exceeds %d-entry limit", e.Attempted, constpool.MaxEntries)
}

// JumpTooFar is reserved for a raw-byte-offset lowering mode; unused while
// jump displacements are pool-indexed constants (see DESIGN.md).
type JumpTooFar struct {
	Displacement int
}

func (e *JumpTooFar) Error() string {
	return fmt.Sprintf("jump displacement %d exceeds raw-offset encoding width", e.Displacement)
}

// Lowerer turns one ast.Program (or nested ast.FunctionExpr body) into a
// bytecode.Program. A fresh Lowerer is used per function body: nested
// function/arrow literals recursively construct and run their own Lowerer
// rather than sharing builder/pool state with their enclosing scope, since
// each CREATE_FUNCTION body is lowered into an independent sub-program.
type Lowerer struct {
	policy      Policy
	builder     *bytecode.Builder
	pool        *constpool.Pool
	diagnostics []string
	loopLabels  []loopFrame
}

type loopFrame struct {
	breakLabel    *bytecode.Label
	continueLabel *bytecode.Label
}

// New creates a Lowerer that emits under policy.
func New(policy Policy) *Lowerer {
	return &Lowerer{
		policy: policy,
		pool:   constpool.New(),
	}
}

// Diagnostics returns the unsupported-node messages recorded in lossy mode.
func (l *Lowerer) Diagnostics() []string { return l.diagnostics }

// Lower lowers a full program to a bytecode.Program.
func (l *Lowerer) Lower(prog *ast.Program) (*bytecode.Program, error) {
	l.builder = bytecode.NewBuilder()
	if err := l.lowerStatements(prog.Body); err != nil {
		return nil, err
	}
	if err := l.ensureTerminated(); err != nil {
		return nil, err
	}
	return bytecode.NewProgram(l.builder.Bytes(), l.pool), nil
}

// lowerFunctionBody lowers a function/arrow literal's body into its own
// nested sub-program, used by CREATE_FUNCTION. Each nested body gets a
// fresh builder but shares nothing else with the caller: the scope chain
// that makes closures work is an interpreter-side concept, not a
// lowering-time one.
func (l *Lowerer) lowerFunctionBody(body *ast.BlockStmt) (*bytecode.Program, error) {
	nested := New(l.policy)
	nested.builder = bytecode.NewBuilder()
	if err := nested.lowerStatements(body.Body); err != nil {
		return nil, err
	}
	if err := nested.ensureTerminated(); err != nil {
		return nil, err
	}
	l.diagnostics = append(l.diagnostics, nested.diagnostics...)
	return bytecode.NewProgram(nested.builder.Bytes(), nested.pool), nil
}

// ensureTerminated appends UNDEFINED; RETURN if the lowered stream does not
// already end with a RETURN.
func (l *Lowerer) ensureTerminated() error {
	code := l.builder.Bytes()
	if len(code) > 0 && bytecode.Opcode(code[len(code)-1]) == bytecode.OpReturn {
		return nil
	}
	l.builder.EmitBare(bytecode.OpUndefined)
	l.builder.EmitBare(bytecode.OpReturn)
	return nil
}

func (l *Lowerer) unsupported(kind string) error {
	err := &UnsupportedNode{Kind: kind}
	if l.policy == PolicyStrict {
		return err
	}
	l.diagnostics = append(l.diagnostics, err.Error())
	l.builder.EmitBare(bytecode.OpUndefined)
	return nil
}

func (l *Lowerer) insert(tag constpool.Tag, value interface{}) (int, error) {
	idx, err := l.pool.Insert(tag, value)
	if err != nil {
		return 0, &PoolOverflow{Attempted: l.pool.Len() + 1}
	}
	return idx, nil
}

// mark resolves label at the builder's current position, inserting each
// pending jump's signed displacement into the constant pool.
func (l *Lowerer) mark(label *bytecode.Label) error {
	return label.Mark(l.builder, func(disp int) (int, error) {
		return l.insert(constpool.TagNumericOffset, disp)
	})
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (l *Lowerer) lowerStatements(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := l.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lowerer) lowerStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		return l.lowerStatements(s.Body)
	case *ast.ExprStmt:
		if err := l.lowerExpr(s.Expr); err != nil {
			return err
		}
		l.builder.EmitBare(bytecode.OpPop)
		return nil
	case *ast.VarDecl:
		return l.lowerVarDecl(s)
	case *ast.FunctionDecl:
		return l.lowerFunctionDecl(s)
	case *ast.ReturnStmt:
		return l.lowerReturn(s)
	case *ast.IfStmt:
		return l.lowerIf(s)
	case *ast.WhileStmt:
		return l.lowerWhile(s)
	case *ast.ForStmt:
		return l.lowerFor(s)
	case *ast.SwitchStmt:
		return l.lowerSwitch(s)
	case *ast.BreakStmt:
		return l.lowerBreak()
	case *ast.ContinueStmt:
		return l.lowerContinue()
	case *ast.ThrowStmt:
		return l.lowerThrow(s)
	case *ast.TryStmt:
		return l.lowerTry(s)
	default:
		return l.unsupported(fmt.Sprintf("%T", stmt))
	}
}

func (l *Lowerer) lowerVarDecl(s *ast.VarDecl) error {
	if s.Init != nil {
		if err := l.lowerExpr(s.Init); err != nil {
			return err
		}
	} else {
		l.builder.EmitBare(bytecode.OpUndefined)
	}
	idx, err := l.insert(constpool.TagIdentifier, s.Name)
	if err != nil {
		return err
	}
	// STORE_VAR consumes its operand, so the declaration's initializer value
	// is fully retired by the store itself; no trailing POP is needed.
	if err := l.builder.Emit(bytecode.OpStoreVar, idx); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (l *Lowerer) lowerFunctionDecl(s *ast.FunctionDecl) error {
	if err := l.lowerFunctionExpr(s.Fn); err != nil {
		return err
	}
	idx, err := l.insert(constpool.TagIdentifier, s.Fn.Name)
	if err != nil {
		return err
	}
	if err := l.builder.Emit(bytecode.OpStoreVar, idx); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (l *Lowerer) lowerReturn(s *ast.ReturnStmt) error {
	if s.Value != nil {
		if err := l.lowerExpr(s.Value); err != nil {
			return err
		}
	} else {
		l.builder.EmitBare(bytecode.OpUndefined)
	}
	l.builder.EmitBare(bytecode.OpReturn)
	return nil
}

func (l *Lowerer) lowerIf(s *ast.IfStmt) error {
	if err := l.lowerExpr(s.Test); err != nil {
		return err
	}
	elseLabel := bytecode.NewLabel()
	elseLabel.EmitJump(l.builder, bytecode.OpJumpIfFalse)
	if err := l.lowerStmt(s.Consequent); err != nil {
		return err
	}
	if s.Alternate != nil {
		endLabel := bytecode.NewLabel()
		endLabel.EmitJump(l.builder, bytecode.OpJump)
		if err := l.mark(elseLabel); err != nil {
			return err
		}
		if err := l.lowerStmt(s.Alternate); err != nil {
			return err
		}
		return l.mark(endLabel)
	}
	return l.mark(elseLabel)
}

func (l *Lowerer) lowerWhile(s *ast.WhileStmt) error {
	testLabel := bytecode.NewLabel()
	endLabel := bytecode.NewLabel()
	if err := l.mark(testLabel); err != nil {
		return err
	}
	if err := l.lowerExpr(s.Test); err != nil {
		return err
	}
	endLabel.EmitJump(l.builder, bytecode.OpJumpIfFalse)
	l.loopLabels = append(l.loopLabels, loopFrame{breakLabel: endLabel, continueLabel: testLabel})
	err := l.lowerStmt(s.Body)
	l.loopLabels = l.loopLabels[:len(l.loopLabels)-1]
	if err != nil {
		return err
	}
	testLabel.EmitJump(l.builder, bytecode.OpJump)
	return l.mark(endLabel)
}

// lowerFor desugars to init; while(test) { body; update }.
func (l *Lowerer) lowerFor(s *ast.ForStmt) error {
	if s.Init != nil {
		if err := l.lowerStmt(s.Init); err != nil {
			return err
		}
	}
	testLabel := bytecode.NewLabel()
	endLabel := bytecode.NewLabel()
	if err := l.mark(testLabel); err != nil {
		return err
	}
	if s.Test != nil {
		if err := l.lowerExpr(s.Test); err != nil {
			return err
		}
		endLabel.EmitJump(l.builder, bytecode.OpJumpIfFalse)
	}
	continueLabel := bytecode.NewLabel()
	l.loopLabels = append(l.loopLabels, loopFrame{breakLabel: endLabel, continueLabel: continueLabel})
	err := l.lowerStmt(s.Body)
	l.loopLabels = l.loopLabels[:len(l.loopLabels)-1]
	if err != nil {
		return err
	}
	if err := l.mark(continueLabel); err != nil {
		return err
	}
	if s.Update != nil {
		if err := l.lowerExpr(s.Update); err != nil {
			return err
		}
		l.builder.EmitBare(bytecode.OpPop)
	}
	testLabel.EmitJump(l.builder, bytecode.OpJump)
	return l.mark(endLabel)
}

// lowerSwitch emits a cascade of DUP; E[test]; BINARY_OP(===); JUMP_IF_TRUE
// per case, falling through to default/end when no case matches. The
// discriminant is pushed once and kept on the stack (each test dups and
// re-consumes its own copy) until the shared end label's single trailing
// POP; break jumps straight there. Omitting a break lets control fall into
// the next case, matching C-family switch fallthrough.
func (l *Lowerer) lowerSwitch(s *ast.SwitchStmt) error {
	if err := l.lowerExpr(s.Discriminant); err != nil {
		return err
	}
	endLabel := bytecode.NewLabel()
	caseLabels := make([]*bytecode.Label, len(s.Cases))
	for i := range s.Cases {
		caseLabels[i] = bytecode.NewLabel()
	}
	defaultIdx := -1
	for i, c := range s.Cases {
		if !c.Test {
			defaultIdx = i
			continue
		}
		l.builder.EmitBare(bytecode.OpDuplicate)
		if err := l.lowerExpr(c.Value); err != nil {
			return err
		}
		opIdx, err := l.insert(constpool.TagIdentifier, "===")
		if err != nil {
			return err
		}
		if err := l.builder.Emit(bytecode.OpBinaryOp, opIdx); err != nil {
			return errors.WithStack(err)
		}
		caseLabels[i].EmitJump(l.builder, bytecode.OpJumpIfTrue)
	}
	if defaultIdx >= 0 {
		caseLabels[defaultIdx].EmitJump(l.builder, bytecode.OpJump)
	} else {
		endLabel.EmitJump(l.builder, bytecode.OpJump)
	}
	l.loopLabels = append(l.loopLabels, loopFrame{breakLabel: endLabel})
	for i, c := range s.Cases {
		if err := l.mark(caseLabels[i]); err != nil {
			return err
		}
		if err := l.lowerStatements(c.Body); err != nil {
			return err
		}
	}
	l.loopLabels = l.loopLabels[:len(l.loopLabels)-1]
	if err := l.mark(endLabel); err != nil {
		return err
	}
	l.builder.EmitBare(bytecode.OpPop)
	return nil
}

func (l *Lowerer) lowerBreak() error {
	if len(l.loopLabels) == 0 {
		return errors.New("break outside loop or switch")
	}
	l.loopLabels[len(l.loopLabels)-1].breakLabel.EmitJump(l.builder, bytecode.OpJump)
	return nil
}

// lowerContinue targets the nearest enclosing loop's continue label,
// skipping over any switch frames (which have no continueLabel) between
// the continue statement and that loop.
func (l *Lowerer) lowerContinue() error {
	for i := len(l.loopLabels) - 1; i >= 0; i-- {
		if l.loopLabels[i].continueLabel != nil {
			l.loopLabels[i].continueLabel.EmitJump(l.builder, bytecode.OpJump)
			return nil
		}
	}
	return errors.New("continue outside loop")
}

func (l *Lowerer) lowerThrow(s *ast.ThrowStmt) error {
	if err := l.lowerExpr(s.Value); err != nil {
		return err
	}
	l.builder.EmitBare(bytecode.OpThrow)
	return nil
}

func (l *Lowerer) lowerTry(s *ast.TryStmt) error {
	finallyLabel := bytecode.NewLabel()
	endLabel := bytecode.NewLabel()

	// TRY_BEGIN's operands are resolved once catch/finally positions are
	// known, so its two pool entries are placeholders patched after Mark.
	tryBeginPos := l.builder.Len()
	if err := l.builder.EmitPair(bytecode.OpTryBegin, 0, 0); err != nil {
		return errors.WithStack(err)
	}

	if err := l.lowerStatements(s.Block.Body); err != nil {
		return err
	}
	l.builder.EmitBare(bytecode.OpTryEnd)
	if s.FinallyBody != nil {
		finallyLabel.EmitJump(l.builder, bytecode.OpJump)
	} else {
		endLabel.EmitJump(l.builder, bytecode.OpJump)
	}

	// Catch entry point. Reached only by the interpreter's exception
	// redirect, never by fallthrough (the jump above always skips past
	// it). Always present, even for a finally-only try with no catch
	// clause, so the thrown value the interpreter pushes before
	// redirecting here is retired by the unconditional POP below rather
	// than left to corrupt the operand stack; a finally-only try thus
	// swallows its exception once finally has run, instead of re-raising.
	catchPC := l.builder.Len()
	if s.HasCatch && s.CatchParam != "" {
		idx, err := l.insert(constpool.TagIdentifier, s.CatchParam)
		if err != nil {
			return err
		}
		if err := l.builder.Emit(bytecode.OpCatch, idx); err != nil {
			return errors.WithStack(err)
		}
	}
	l.builder.EmitBare(bytecode.OpPop)
	if s.HasCatch {
		if err := l.lowerStatements(s.CatchBody.Body); err != nil {
			return err
		}
	}
	if s.FinallyBody != nil {
		finallyLabel.EmitJump(l.builder, bytecode.OpJump)
	} else {
		endLabel.EmitJump(l.builder, bytecode.OpJump)
	}

	finallyPC := l.builder.Len()
	if s.FinallyBody != nil {
		if err := l.mark(finallyLabel); err != nil {
			return err
		}
		if err := l.lowerStatements(s.FinallyBody.Body); err != nil {
			return err
		}
	}
	if err := l.mark(endLabel); err != nil {
		return err
	}

	catchIdx, err := l.insert(constpool.TagNumericOffset, catchPC)
	if err != nil {
		return err
	}
	finallyIdx, err := l.insert(constpool.TagNumericOffset, finallyPC)
	if err != nil {
		return err
	}
	return errors.WithStack(l.builder.PatchPair(tryBeginPos, catchIdx, finallyIdx))
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (l *Lowerer) lowerExpr(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return l.lowerLiteral(e.Value)
	case *ast.FloatLiteral:
		return l.lowerLiteral(e.Value)
	case *ast.StringLiteral:
		return l.lowerStringLiteral(e.Value)
	case *ast.BoolLiteral:
		return l.lowerLiteral(e.Value)
	case *ast.NullLiteral:
		l.builder.EmitBare(bytecode.OpNull)
		return nil
	case *ast.UndefinedLiteral:
		l.builder.EmitBare(bytecode.OpUndefined)
		return nil
	case *ast.ThisExpr:
		l.builder.EmitBare(bytecode.OpThis)
		return nil
	case *ast.Identifier:
		return l.lowerIdentifier(e)
	case *ast.BinaryExpr:
		return l.lowerBinary(e)
	case *ast.LogicalExpr:
		return l.lowerLogical(e)
	case *ast.UnaryExpr:
		return l.lowerUnary(e)
	case *ast.AssignExpr:
		return l.lowerAssign(e)
	case *ast.CallExpr:
		return l.lowerCall(e)
	case *ast.NewExpr:
		return l.lowerNew(e)
	case *ast.MemberExpr:
		return l.lowerMember(e)
	case *ast.ConditionalExpr:
		return l.lowerConditional(e)
	case *ast.ObjectExpr:
		return l.lowerObject(e)
	case *ast.ArrayExpr:
		return l.lowerArray(e)
	case *ast.FunctionExpr:
		return l.lowerFunctionExpr(e)
	default:
		return l.unsupported(fmt.Sprintf("%T", expr))
	}
}

func (l *Lowerer) lowerLiteral(v interface{}) error {
	idx, err := l.insert(constpool.TagPrimitive, v)
	if err != nil {
		return err
	}
	return errors.WithStack(l.builder.Emit(bytecode.OpLoadConst, idx))
}

func (l *Lowerer) lowerStringLiteral(s string) error {
	idx, err := l.insert(constpool.TagString, s)
	if err != nil {
		return err
	}
	return errors.WithStack(l.builder.Emit(bytecode.OpLoadConst, idx))
}

func (l *Lowerer) lowerIdentifier(e *ast.Identifier) error {
	idx, err := l.insert(constpool.TagIdentifier, e.Name)
	if err != nil {
		return err
	}
	return errors.WithStack(l.builder.Emit(bytecode.OpLoadVar, idx))
}

func (l *Lowerer) lowerBinary(e *ast.BinaryExpr) error {
	if err := l.lowerExpr(e.Left); err != nil {
		return err
	}
	if err := l.lowerExpr(e.Right); err != nil {
		return err
	}
	idx, err := l.insert(constpool.TagIdentifier, e.Operator)
	if err != nil {
		return err
	}
	return errors.WithStack(l.builder.Emit(bytecode.OpBinaryOp, idx))
}

// lowerLogical implements the short-circuit redesign: && skips the rhs when
// the lhs is falsy, || skips it when truthy, ?? skips it when the lhs is
// neither null nor undefined. All three reuse JUMP_IF_TRUE/JUMP_IF_FALSE's
// pool-indexed displacement machinery rather than a dedicated opcode.
func (l *Lowerer) lowerLogical(e *ast.LogicalExpr) error {
	if err := l.lowerExpr(e.Left); err != nil {
		return err
	}
	skip := bytecode.NewLabel()
	switch e.Operator {
	case "&&":
		l.builder.EmitBare(bytecode.OpDuplicate)
		skip.EmitJump(l.builder, bytecode.OpJumpIfFalse)
	case "||":
		l.builder.EmitBare(bytecode.OpDuplicate)
		skip.EmitJump(l.builder, bytecode.OpJumpIfTrue)
	case "??":
		l.builder.EmitBare(bytecode.OpDuplicate)
		nullishIdx, err := l.insert(constpool.TagIdentifier, "nullish")
		if err != nil {
			return err
		}
		if err := l.builder.Emit(bytecode.OpUnaryOp, nullishIdx); err != nil {
			return errors.WithStack(err)
		}
		skip.EmitJump(l.builder, bytecode.OpJumpIfTrue)
	default:
		return errors.Errorf("unknown logical operator %q", e.Operator)
	}
	l.builder.EmitBare(bytecode.OpPop)
	if err := l.lowerExpr(e.Right); err != nil {
		return err
	}
	return l.mark(skip)
}

func (l *Lowerer) lowerUnary(e *ast.UnaryExpr) error {
	if err := l.lowerExpr(e.Operand); err != nil {
		return err
	}
	idx, err := l.insert(constpool.TagIdentifier, e.Operator)
	if err != nil {
		return err
	}
	return errors.WithStack(l.builder.Emit(bytecode.OpUnaryOp, idx))
}

func (l *Lowerer) lowerAssign(e *ast.AssignExpr) error {
	switch target := e.Target.(type) {
	case *ast.Identifier:
		if err := l.lowerExpr(e.Value); err != nil {
			return err
		}
		idx, err := l.insert(constpool.TagIdentifier, target.Name)
		if err != nil {
			return err
		}
		// STORE_VAR consumes its operand, so the assignment expression's own
		// result value must be duplicated before the store, not after.
		l.builder.EmitBare(bytecode.OpDuplicate)
		if err := l.builder.Emit(bytecode.OpStoreVar, idx); err != nil {
			return errors.WithStack(err)
		}
		return nil
	case *ast.MemberExpr:
		if target.Computed {
			if err := l.lowerExpr(target.Object); err != nil {
				return err
			}
			if err := l.lowerExpr(target.Property); err != nil {
				return err
			}
			if err := l.lowerExpr(e.Value); err != nil {
				return err
			}
			l.builder.EmitBare(bytecode.OpStoreIndex)
			return nil
		}
		if err := l.lowerExpr(target.Object); err != nil {
			return err
		}
		if err := l.lowerExpr(e.Value); err != nil {
			return err
		}
		prop := target.Property.(*ast.Identifier)
		idx, err := l.insert(constpool.TagIdentifier, prop.Name)
		if err != nil {
			return err
		}
		if err := l.builder.Emit(bytecode.OpStoreProperty, idx); err != nil {
			return errors.WithStack(err)
		}
		return nil
	default:
		return l.unsupported(fmt.Sprintf("assignment target %T", e.Target))
	}
}

func (l *Lowerer) lowerCall(e *ast.CallExpr) error {
	if err := l.lowerExpr(e.Callee); err != nil {
		return err
	}
	for _, arg := range e.Args {
		if err := l.lowerExpr(arg); err != nil {
			return err
		}
	}
	return errors.WithStack(l.builder.EmitRaw(bytecode.OpCallFunction, len(e.Args)))
}

func (l *Lowerer) lowerNew(e *ast.NewExpr) error {
	if err := l.lowerExpr(e.Callee); err != nil {
		return err
	}
	for _, arg := range e.Args {
		if err := l.lowerExpr(arg); err != nil {
			return err
		}
	}
	return errors.WithStack(l.builder.EmitRaw(bytecode.OpNewInstance, len(e.Args)))
}

func (l *Lowerer) lowerMember(e *ast.MemberExpr) error {
	if err := l.lowerExpr(e.Object); err != nil {
		return err
	}
	if e.Computed {
		if err := l.lowerExpr(e.Property); err != nil {
			return err
		}
		l.builder.EmitBare(bytecode.OpLoadIndex)
		return nil
	}
	prop := e.Property.(*ast.Identifier)
	idx, err := l.insert(constpool.TagIdentifier, prop.Name)
	if err != nil {
		return err
	}
	return errors.WithStack(l.builder.Emit(bytecode.OpLoadProperty, idx))
}

func (l *Lowerer) lowerConditional(e *ast.ConditionalExpr) error {
	if err := l.lowerExpr(e.Test); err != nil {
		return err
	}
	altLabel := bytecode.NewLabel()
	endLabel := bytecode.NewLabel()
	altLabel.EmitJump(l.builder, bytecode.OpJumpIfFalse)
	if err := l.lowerExpr(e.Consequent); err != nil {
		return err
	}
	endLabel.EmitJump(l.builder, bytecode.OpJump)
	if err := l.mark(altLabel); err != nil {
		return err
	}
	if err := l.lowerExpr(e.Alternate); err != nil {
		return err
	}
	return l.mark(endLabel)
}

func (l *Lowerer) lowerObject(e *ast.ObjectExpr) error {
	l.builder.EmitBare(bytecode.OpCreateObject)
	for _, prop := range e.Properties {
		l.builder.EmitBare(bytecode.OpDuplicate)
		if err := l.lowerExpr(prop.Value); err != nil {
			return err
		}
		idx, err := l.insert(constpool.TagIdentifier, prop.Key)
		if err != nil {
			return err
		}
		if err := l.builder.Emit(bytecode.OpStoreProperty, idx); err != nil {
			return errors.WithStack(err)
		}
		l.builder.EmitBare(bytecode.OpPop)
	}
	return nil
}

func (l *Lowerer) lowerArray(e *ast.ArrayExpr) error {
	l.builder.EmitBare(bytecode.OpCreateArray)
	for _, elem := range e.Elements {
		l.builder.EmitBare(bytecode.OpDuplicate)
		if err := l.lowerExpr(elem); err != nil {
			return err
		}
		l.builder.EmitBare(bytecode.OpArrayPush)
		l.builder.EmitBare(bytecode.OpPop)
	}
	return nil
}

// lowerFunctionExpr implements the closures-as-sub-programs redesign:
// CREATE_FUNCTION's body operand is a pool entry holding a nested
// bytecode.Program rather than source text, so no host dynamic-compile
// facility is required at interpretation time.
func (l *Lowerer) lowerFunctionExpr(e *ast.FunctionExpr) error {
	nameIdx, err := l.insert(constpool.TagIdentifier, e.Name)
	if err != nil {
		return err
	}
	paramsIdx, err := l.insert(constpool.TagStringList, append([]string{}, e.Params...))
	if err != nil {
		return err
	}
	body, err := l.lowerFunctionBody(e.Body)
	if err != nil {
		return err
	}
	bodyIdx, err := l.insert(constpool.TagFunctionBody, body)
	if err != nil {
		return err
	}
	return errors.WithStack(l.builder.EmitTriple(bytecode.OpCreateFunction, nameIdx, paramsIdx, bodyIdx))
}
