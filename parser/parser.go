// Package parser implements a compact recursive-descent parser for the
// JS-family subset the lowerer accepts. Parsing is treated as a necessary
// concession for testability rather than the part of this pipeline carrying
// the engineering weight, so this package stays thin: one file, no error
// recovery beyond reporting the first failure.
package parser

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/vanta-works/shroudvm/ast"
	"github.com/vanta-works/shroudvm/lexer"
)

// ParseError wraps a parse failure with its source position.
type ParseError struct {
	Pos     ast.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Parser consumes a buffered token stream and builds an *ast.Program. The
// whole stream is tokenized upfront, rather than kept as a small
// fixed-depth lookahead, so arrow-function disambiguation can backtrack
// by resetting an index instead of trying to rewind a Lexer's internal
// cursor.
type Parser struct {
	tokens    []lexer.Token
	pos       int
	cur       lexer.Token
	peek      lexer.Token
	loopDepth int
}

func New(source string) *Parser {
	p := &Parser{tokens: lexer.Tokenize(source)}
	p.sync()
	return p
}

// ParseSource is the package's entry point.
func ParseSource(source string) (*ast.Program, error) {
	p := New(source)
	return p.parseProgram()
}

func (p *Parser) tokenAt(i int) lexer.Token {
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF/ERROR sentinel
	}
	return p.tokens[i]
}

// sync refreshes cur/peek from pos. Restoring a saved pos and calling sync
// is how the parser backtracks for arrow-function disambiguation, since the
// token slice itself never mutates after New.
func (p *Parser) sync() {
	p.cur = p.tokenAt(p.pos)
	p.peek = p.tokenAt(p.pos + 1)
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.sync()
}

func (p *Parser) errf(format string, args ...interface{}) error {
	return &ParseError{Pos: p.cur.Pos, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(t lexer.TokenType) (lexer.Token, error) {
	if p.cur.Type != t {
		return lexer.Token{}, p.errf("expected %s, got %s %q", t, p.cur.Type, p.cur.Literal)
	}
	tok := p.cur
	p.advance()
	return tok, nil
}

func span(start, end ast.Position) ast.Span {
	return ast.Span{Start: start, End: end}
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	start := p.cur.Pos
	prog := &ast.Program{}
	for p.cur.Type != lexer.TokenEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, stmt)
	}
	prog.SpanVal = span(start, p.cur.Pos)
	return prog, nil
}

// --- Statements -----------------------------------------------------

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.cur.Type {
	case lexer.TokenLBrace:
		return p.parseBlock()
	case lexer.TokenVar:
		return p.parseVarDecl()
	case lexer.TokenFunction:
		return p.parseFunctionDecl()
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenSwitch:
		return p.parseSwitch()
	case lexer.TokenBreak:
		start := p.cur.Pos
		p.advance()
		p.consumeSemicolon()
		return &ast.BreakStmt{SpanVal: span(start, p.cur.Pos)}, nil
	case lexer.TokenContinue:
		start := p.cur.Pos
		p.advance()
		p.consumeSemicolon()
		return &ast.ContinueStmt{SpanVal: span(start, p.cur.Pos)}, nil
	case lexer.TokenThrow:
		return p.parseThrow()
	case lexer.TokenTry:
		return p.parseTry()
	case lexer.TokenSemicolon:
		start := p.cur.Pos
		p.advance()
		return &ast.BlockStmt{SpanVal: span(start, start)}, nil
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) consumeSemicolon() {
	if p.cur.Type == lexer.TokenSemicolon {
		p.advance()
	}
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	start := p.cur.Pos
	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return nil, err
	}
	block := &ast.BlockStmt{}
	for p.cur.Type != lexer.TokenRBrace && p.cur.Type != lexer.TokenEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Body = append(block.Body, stmt)
	}
	end := p.cur.Pos
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return nil, err
	}
	block.SpanVal = span(start, end)
	return block, nil
}

func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	start := p.cur.Pos
	p.advance() // var
	name, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}
	decl := &ast.VarDecl{Name: name.Literal}
	if p.cur.Type == lexer.TokenOperator && p.cur.Literal == "=" {
		p.advance()
		init, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		decl.Init = init
	}
	p.consumeSemicolon()
	decl.SpanVal = span(start, p.cur.Pos)
	return decl, nil
}

func (p *Parser) parseFunctionDecl() (ast.Stmt, error) {
	start := p.cur.Pos
	fn, err := p.parseFunctionLiteral(true)
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDecl{SpanVal: span(start, p.cur.Pos), Fn: fn}, nil
}

func (p *Parser) parseFunctionLiteral(requireName bool) (*ast.FunctionExpr, error) {
	start := p.cur.Pos
	p.advance() // function
	fn := &ast.FunctionExpr{}
	if p.cur.Type == lexer.TokenIdentifier {
		fn.Name = p.cur.Literal
		p.advance()
	} else if requireName {
		return nil, p.errf("expected function name")
	}
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	for p.cur.Type != lexer.TokenRParen {
		param, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, param.Literal)
		if p.cur.Type == lexer.TokenComma {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	fn.SpanVal = span(start, p.cur.Pos)
	return fn, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	start := p.cur.Pos
	p.advance()
	stmt := &ast.ReturnStmt{}
	if p.cur.Type != lexer.TokenSemicolon && p.cur.Type != lexer.TokenRBrace && p.cur.Type != lexer.TokenEOF {
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Value = val
	}
	p.consumeSemicolon()
	stmt.SpanVal = span(start, p.cur.Pos)
	return stmt, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	start := p.cur.Pos
	p.advance()
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	cons, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Test: test, Consequent: cons}
	if p.cur.Type == lexer.TokenElse {
		p.advance()
		alt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmt.Alternate = alt
	}
	stmt.SpanVal = span(start, p.cur.Pos)
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	start := p.cur.Pos
	p.advance()
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	p.loopDepth++
	body, err := p.parseStatement()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{SpanVal: span(start, p.cur.Pos), Test: test, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	start := p.cur.Pos
	p.advance()
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	var init ast.Stmt
	if p.cur.Type == lexer.TokenVar {
		s, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		init = s
	} else if p.cur.Type != lexer.TokenSemicolon {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		init = &ast.ExprStmt{Expr: e}
		p.consumeSemicolon()
	} else {
		p.advance()
	}
	var test ast.Expr
	if p.cur.Type != lexer.TokenSemicolon {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		test = e
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, err
	}
	var update ast.Expr
	if p.cur.Type != lexer.TokenRParen {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		update = e
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	p.loopDepth++
	body, err := p.parseStatement()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{SpanVal: span(start, p.cur.Pos), Init: init, Test: test, Update: update, Body: body}, nil
}

func (p *Parser) parseSwitch() (ast.Stmt, error) {
	start := p.cur.Pos
	p.advance()
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	disc, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return nil, err
	}
	stmt := &ast.SwitchStmt{Discriminant: disc}
	for p.cur.Type != lexer.TokenRBrace {
		var c ast.SwitchCase
		switch p.cur.Type {
		case lexer.TokenCase:
			p.advance()
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			c.Test = true
			c.Value = val
		case lexer.TokenDefault:
			p.advance()
		default:
			return nil, p.errf("expected case or default, got %s", p.cur.Type)
		}
		if _, err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		for p.cur.Type != lexer.TokenCase && p.cur.Type != lexer.TokenDefault && p.cur.Type != lexer.TokenRBrace {
			s, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			c.Body = append(c.Body, s)
		}
		stmt.Cases = append(stmt.Cases, c)
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return nil, err
	}
	stmt.SpanVal = span(start, p.cur.Pos)
	return stmt, nil
}

func (p *Parser) parseThrow() (ast.Stmt, error) {
	start := p.cur.Pos
	p.advance()
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.consumeSemicolon()
	return &ast.ThrowStmt{SpanVal: span(start, p.cur.Pos), Value: val}, nil
}

func (p *Parser) parseTry() (ast.Stmt, error) {
	start := p.cur.Pos
	p.advance()
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.TryStmt{Block: block}
	if p.cur.Type == lexer.TokenCatch {
		p.advance()
		stmt.HasCatch = true
		if p.cur.Type == lexer.TokenLParen {
			p.advance()
			param, err := p.expect(lexer.TokenIdentifier)
			if err != nil {
				return nil, err
			}
			stmt.CatchParam = param.Literal
			if _, err := p.expect(lexer.TokenRParen); err != nil {
				return nil, err
			}
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.CatchBody = body
	}
	if p.cur.Type == lexer.TokenFinally {
		p.advance()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.FinallyBody = body
	}
	if !stmt.HasCatch && stmt.FinallyBody == nil {
		return nil, p.errf("try statement requires a catch or finally clause")
	}
	stmt.SpanVal = span(start, p.cur.Pos)
	return stmt, nil
}

func (p *Parser) parseExprStmt() (ast.Stmt, error) {
	start := p.cur.Pos
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.consumeSemicolon()
	return &ast.ExprStmt{SpanVal: span(start, p.cur.Pos), Expr: e}, nil
}

// --- Expressions, precedence climbing --------------------------------

// binaryPrecedence gives each binary/logical operator its binding power;
// higher binds tighter.
var binaryPrecedence = map[string]int{
	"??": 1,
	"||": 2,
	"&&": 3,
	"|":  4,
	"^":  5,
	"&":  6,
	"==": 7, "!=": 7, "===": 7, "!==": 7,
	"<": 8, "<=": 8, ">": 8, ">=": 8, "instanceof": 8, "in": 8,
	"<<": 9, ">>": 9, ">>>": 9,
	"+": 10, "-": 10,
	"*": 11, "/": 11, "%": 11,
}

func isLogicalOperator(op string) bool {
	return op == "&&" || op == "||" || op == "??"
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseAssign()
}

func (p *Parser) parseAssign() (ast.Expr, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if p.cur.Type == lexer.TokenOperator && p.cur.Literal == "=" {
		start := left.Span().Start
		p.advance()
		right, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &ast.AssignExpr{SpanVal: span(start, p.cur.Pos), Target: left, Value: right}, nil
	}
	return left, nil
}

func (p *Parser) parseConditional() (ast.Expr, error) {
	test, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.cur.Type == lexer.TokenQuestion {
		start := test.Span().Start
		p.advance()
		cons, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		alt, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &ast.ConditionalExpr{SpanVal: span(start, p.cur.Pos), Test: test, Consequent: cons, Alternate: alt}, nil
	}
	return test, nil
}

func (p *Parser) currentOperatorLiteral() (string, bool) {
	if p.cur.Type == lexer.TokenOperator || p.cur.Type == lexer.TokenLogical {
		return p.cur.Literal, true
	}
	if p.cur.Type == lexer.TokenInstanceof {
		return "instanceof", true
	}
	if p.cur.Type == lexer.TokenIn {
		return "in", true
	}
	return "", false
}

func (p *Parser) parseBinary(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.currentOperatorLiteral()
		if !ok {
			break
		}
		prec, known := binaryPrecedence[op]
		if !known || prec < minPrec {
			break
		}
		start := left.Span().Start
		p.advance()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		if isLogicalOperator(op) {
			left = &ast.LogicalExpr{SpanVal: span(start, p.cur.Pos), Operator: op, Left: left, Right: right}
		} else {
			left = &ast.BinaryExpr{SpanVal: span(start, p.cur.Pos), Operator: op, Left: left, Right: right}
		}
	}
	return left, nil
}

var unaryOperators = map[string]bool{
	"+": true, "-": true, "!": true, "~": true,
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	start := p.cur.Pos
	switch p.cur.Type {
	case lexer.TokenTypeof:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{SpanVal: span(start, p.cur.Pos), Operator: "typeof", Operand: operand}, nil
	case lexer.TokenVoid:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{SpanVal: span(start, p.cur.Pos), Operator: "void", Operand: operand}, nil
	case lexer.TokenDelete:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{SpanVal: span(start, p.cur.Pos), Operator: "delete", Operand: operand}, nil
	case lexer.TokenOperator:
		if unaryOperators[p.cur.Literal] {
			op := p.cur.Literal
			p.advance()
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &ast.UnaryExpr{SpanVal: span(start, p.cur.Pos), Operator: op, Operand: operand}, nil
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		start := expr.Span().Start
		switch p.cur.Type {
		case lexer.TokenDot:
			p.advance()
			name, err := p.expect(lexer.TokenIdentifier)
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{
				SpanVal:  span(start, p.cur.Pos),
				Object:   expr,
				Property: &ast.Identifier{SpanVal: span(name.Pos, name.Pos), Name: name.Literal},
				Computed: false,
			}
		case lexer.TokenLBracket:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenRBracket); err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{SpanVal: span(start, p.cur.Pos), Object: expr, Property: idx, Computed: true}
		case lexer.TokenLParen:
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{SpanVal: span(start, p.cur.Pos), Callee: expr, Args: args}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Expr, error) {
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for p.cur.Type != lexer.TokenRParen {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur.Type == lexer.TokenComma {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	start := p.cur.Pos
	switch p.cur.Type {
	case lexer.TokenInt:
		lit := p.cur.Literal
		p.advance()
		v, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid integer literal %q", lit)
		}
		return &ast.IntLiteral{SpanVal: span(start, p.cur.Pos), Value: v}, nil
	case lexer.TokenFloat:
		lit := p.cur.Literal
		p.advance()
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid float literal %q", lit)
		}
		return &ast.FloatLiteral{SpanVal: span(start, p.cur.Pos), Value: v}, nil
	case lexer.TokenString:
		lit := p.cur.Literal
		p.advance()
		return &ast.StringLiteral{SpanVal: span(start, p.cur.Pos), Value: lit}, nil
	case lexer.TokenTrue:
		p.advance()
		return &ast.BoolLiteral{SpanVal: span(start, p.cur.Pos), Value: true}, nil
	case lexer.TokenFalse:
		p.advance()
		return &ast.BoolLiteral{SpanVal: span(start, p.cur.Pos), Value: false}, nil
	case lexer.TokenNull:
		p.advance()
		return &ast.NullLiteral{SpanVal: span(start, p.cur.Pos)}, nil
	case lexer.TokenUndefined:
		p.advance()
		return &ast.UndefinedLiteral{SpanVal: span(start, p.cur.Pos)}, nil
	case lexer.TokenThis:
		p.advance()
		return &ast.ThisExpr{SpanVal: span(start, p.cur.Pos)}, nil
	case lexer.TokenIdentifier:
		name := p.cur.Literal
		p.advance()
		return &ast.Identifier{SpanVal: span(start, p.cur.Pos), Name: name}, nil
	case lexer.TokenFunction:
		return p.parseFunctionLiteral(false)
	case lexer.TokenNew:
		p.advance()
		callee, err := p.parsePostfixNoCall()
		if err != nil {
			return nil, err
		}
		var args []ast.Expr
		if p.cur.Type == lexer.TokenLParen {
			args, err = p.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		return &ast.NewExpr{SpanVal: span(start, p.cur.Pos), Callee: callee, Args: args}, nil
	case lexer.TokenLParen:
		return p.parseParenOrArrow()
	case lexer.TokenLBracket:
		return p.parseArrayLiteral()
	case lexer.TokenLBrace:
		return p.parseObjectLiteral()
	default:
		return nil, p.errf("unexpected token %s %q", p.cur.Type, p.cur.Literal)
	}
}

// parsePostfixNoCall parses a member-expression chain without consuming a
// trailing call, used for `new Ctor.member(...)`.
func (p *Parser) parsePostfixNoCall() (ast.Expr, error) {
	expr, err := p.parsePrimaryNoNew()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == lexer.TokenDot {
		start := expr.Span().Start
		p.advance()
		name, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		expr = &ast.MemberExpr{SpanVal: span(start, p.cur.Pos), Object: expr, Property: &ast.Identifier{SpanVal: span(name.Pos, p.cur.Pos), Name: name.Literal}}
	}
	return expr, nil
}

func (p *Parser) parsePrimaryNoNew() (ast.Expr, error) {
	start := p.cur.Pos
	name, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}
	return &ast.Identifier{SpanVal: span(start, p.cur.Pos), Name: name.Literal}, nil
}

// parseParenOrArrow disambiguates `(expr)` from `(a, b) => body`.
func (p *Parser) parseParenOrArrow() (ast.Expr, error) {
	start := p.cur.Pos
	save := p.pos
	p.advance() // (
	var params []string
	isArrowShape := true
	for p.cur.Type != lexer.TokenRParen {
		if p.cur.Type != lexer.TokenIdentifier {
			isArrowShape = false
			break
		}
		params = append(params, p.cur.Literal)
		p.advance()
		if p.cur.Type == lexer.TokenComma {
			p.advance()
		} else if p.cur.Type != lexer.TokenRParen {
			isArrowShape = false
			break
		}
	}
	if isArrowShape && p.cur.Type == lexer.TokenRParen {
		p.advance()
		if p.cur.Type == lexer.TokenArrow {
			p.advance()
			return p.parseArrowBody(start, params)
		}
	}
	p.pos = save
	p.sync()
	p.advance() // (
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parseArrowBody(start ast.Position, params []string) (ast.Expr, error) {
	fn := &ast.FunctionExpr{Params: params}
	if p.cur.Type == lexer.TokenLBrace {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		fn.Body = body
	} else {
		exprStart := p.cur.Pos
		e, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		fn.Body = &ast.BlockStmt{
			SpanVal: span(exprStart, p.cur.Pos),
			Body:    []ast.Stmt{&ast.ReturnStmt{SpanVal: span(exprStart, p.cur.Pos), Value: e}},
		}
	}
	fn.SpanVal = span(start, p.cur.Pos)
	return fn, nil
}

func (p *Parser) parseArrayLiteral() (ast.Expr, error) {
	start := p.cur.Pos
	p.advance()
	arr := &ast.ArrayExpr{}
	for p.cur.Type != lexer.TokenRBracket {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, e)
		if p.cur.Type == lexer.TokenComma {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.TokenRBracket); err != nil {
		return nil, err
	}
	arr.SpanVal = span(start, p.cur.Pos)
	return arr, nil
}

func (p *Parser) parseObjectLiteral() (ast.Expr, error) {
	start := p.cur.Pos
	p.advance()
	obj := &ast.ObjectExpr{}
	for p.cur.Type != lexer.TokenRBrace {
		var key string
		switch p.cur.Type {
		case lexer.TokenIdentifier:
			key = p.cur.Literal
		case lexer.TokenString:
			key = p.cur.Literal
		default:
			return nil, p.errf("expected property key, got %s", p.cur.Type)
		}
		p.advance()
		if _, err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		obj.Properties = append(obj.Properties, ast.ObjectProperty{Key: key, Value: val})
		if p.cur.Type == lexer.TokenComma {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return nil, err
	}
	obj.SpanVal = span(start, p.cur.Pos)
	return obj, nil
}
