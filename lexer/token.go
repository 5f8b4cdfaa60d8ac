// Package lexer turns JS-family source text into a token stream for
// package parser to consume.
package lexer

import (
	"fmt"

	"github.com/vanta-works/shroudvm/ast"
)

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	TokenInt
	TokenFloat
	TokenString
	TokenIdentifier

	// Punctuation
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenSemicolon
	TokenComma
	TokenColon
	TokenQuestion
	TokenDot
	TokenArrow // =>

	// Operators (multi-char operators are lexed whole)
	TokenOperator // + - * / % < > <= >= == != === !== << >> >>> & | ^ = ! ~
	TokenLogical  // && || ??
	TokenIncDec   // ++ --

	// Reserved words
	TokenVar
	TokenFunction
	TokenReturn
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenSwitch
	TokenCase
	TokenDefault
	TokenBreak
	TokenContinue
	TokenNew
	TokenThis
	TokenTrue
	TokenFalse
	TokenNull
	TokenUndefined
	TokenTry
	TokenCatch
	TokenFinally
	TokenThrow
	TokenTypeof
	TokenVoid
	TokenDelete
	TokenInstanceof
	TokenIn
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInt:        "INT",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenSemicolon:  ";",
	TokenComma:      ",",
	TokenColon:      ":",
	TokenQuestion:   "?",
	TokenDot:        ".",
	TokenArrow:      "=>",
	TokenOperator:   "OPERATOR",
	TokenLogical:    "LOGICAL",
	TokenIncDec:     "INCDEC",
	TokenVar:        "var",
	TokenFunction:   "function",
	TokenReturn:     "return",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenFor:        "for",
	TokenSwitch:     "switch",
	TokenCase:       "case",
	TokenDefault:    "default",
	TokenBreak:      "break",
	TokenContinue:   "continue",
	TokenNew:        "new",
	TokenThis:       "this",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenNull:       "null",
	TokenUndefined:  "undefined",
	TokenTry:        "try",
	TokenCatch:      "catch",
	TokenFinally:    "finally",
	TokenThrow:      "throw",
	TokenTypeof:     "typeof",
	TokenVoid:       "void",
	TokenDelete:     "delete",
	TokenInstanceof: "instanceof",
	TokenIn:         "in",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token is a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     ast.Position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

var reservedWords = map[string]TokenType{
	"var":        TokenVar,
	"function":   TokenFunction,
	"return":     TokenReturn,
	"if":         TokenIf,
	"else":       TokenElse,
	"while":      TokenWhile,
	"for":        TokenFor,
	"switch":     TokenSwitch,
	"case":       TokenCase,
	"default":    TokenDefault,
	"break":      TokenBreak,
	"continue":   TokenContinue,
	"new":        TokenNew,
	"this":       TokenThis,
	"true":       TokenTrue,
	"false":      TokenFalse,
	"null":       TokenNull,
	"undefined":  TokenUndefined,
	"try":        TokenTry,
	"catch":      TokenCatch,
	"finally":    TokenFinally,
	"throw":      TokenThrow,
	"typeof":     TokenTypeof,
	"void":       TokenVoid,
	"delete":     TokenDelete,
	"instanceof": TokenInstanceof,
	"in":         TokenIn,
}

// IsOperatorChar returns true if r can appear inside a multi-char operator.
func IsOperatorChar(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '%', '<', '>', '=', '!', '~', '&', '|', '^':
		return true
	}
	return false
}
