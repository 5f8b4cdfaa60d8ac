// Package postprocess applies source-level transforms to the rendered JS
// interpreter text emit.Emitter produces: rewriting dot
// property access to bracket indexing, injecting decoy comments, and
// (optionally) flattening the dispatch loop's own control-flow shape.
// Each pass operates on the rendered text directly rather than re-parsing
// it with shroudvm's own ast package, which models the *input* language's
// grammar (what the lowerer consumes), not arbitrary emitted JS — a
// hand-written scanner is the grounded choice here, the same way the
// lexer package hand-scans the input language instead of reaching for a
// third-party tokenizer.
package postprocess

import "strings"

// RewriteProperties rewrites every `ident.name` dot-property access in
// source to `ident["name"]` bracket indexing. It is a
// single forward scan that tracks string/template-literal and comment
// state so it never rewrites a decimal literal (`3.14`), a spread/rest
// token (`...`), or text inside a string or comment. Idempotent: a
// bracket-indexed access has no remaining `.name` for a second pass to
// find.
func RewriteProperties(source string) string {
	var out strings.Builder
	runes := []rune(source)
	n := len(runes)

	i := 0
	for i < n {
		c := runes[i]

		if skip, advanced := skipStringOrComment(runes, i); skip {
			out.WriteString(string(runes[i:advanced]))
			i = advanced
			continue
		}

		if isIdentStart(c) {
			start := i
			for i < n && isIdentPart(runes[i]) {
				i++
			}
			out.WriteString(string(runes[start:i]))

			for isDotProperty(runes, n, i) {
				i++ // consume '.'
				propStart := i
				for i < n && isIdentPart(runes[i]) {
					i++
				}
				out.WriteString(`["`)
				out.WriteString(string(runes[propStart:i]))
				out.WriteString(`"]`)
			}
			continue
		}

		out.WriteRune(c)
		i++
	}
	return out.String()
}

// isDotProperty reports whether pos sits at a '.' that begins a rewritable
// property access: followed by an identifier-start character and not
// itself followed by a second '.' (which would make it a spread/rest or a
// numeric-literal suffix rather than a property access).
func isDotProperty(runes []rune, n int, pos int) bool {
	if pos >= n || runes[pos] != '.' {
		return false
	}
	if pos+1 >= n {
		return false
	}
	next := runes[pos+1]
	if next == '.' {
		return false
	}
	return isIdentStart(next)
}

func isIdentStart(c rune) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// skipStringOrComment detects whether pos begins a string literal,
// template literal, or comment, and if so returns the index just past its
// end so the caller can copy it through untouched.
func skipStringOrComment(runes []rune, pos int) (bool, int) {
	n := len(runes)
	if pos >= n {
		return false, pos
	}
	switch runes[pos] {
	case '\'', '"', '`':
		quote := runes[pos]
		i := pos + 1
		for i < n {
			if runes[i] == '\\' && i+1 < n {
				i += 2
				continue
			}
			if runes[i] == quote {
				i++
				break
			}
			i++
		}
		return true, i
	case '/':
		if pos+1 < n && runes[pos+1] == '/' {
			i := pos
			for i < n && runes[i] != '\n' {
				i++
			}
			return true, i
		}
		if pos+1 < n && runes[pos+1] == '*' {
			i := pos + 2
			for i+1 < n && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			if i+1 < n {
				i += 2
			} else {
				i = n
			}
			return true, i
		}
	}
	return false, pos
}
