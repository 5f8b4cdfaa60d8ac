package bytecode

import "github.com/vanta-works/shroudvm/constpool"

// Program is one lowered unit: a flat instruction stream plus the constant
// pool its operands index into. The top-level program and every
// CREATE_FUNCTION body lowered from a nested function/arrow literal are
// both a Program; nesting happens entirely through constpool's
// TagFunctionBody entries holding a *Program, not through any field here.
type Program struct {
	Code []byte
	Pool *constpool.Pool
}

func NewProgram(code []byte, pool *constpool.Pool) *Program {
	return &Program{Code: code, Pool: pool}
}
