package postprocess

import "strings"

// flattenMarker is written into the flattened loop as the first line of
// its body, letting a second pass detect that flattening already
// happened and skip re-wrapping — idempotence by shape rather than by a
// separate out-of-band flag.
const flattenMarker = "/* control-flow-flattened */"

const loopOpen = "while (pc < code.length) {"

// FlattenControlFlow rewrites the dispatch loop's `while (...) { ... }`
// body into `while (...) { switch (state) { case 0: { ... } } }` — a real
// but deliberately simple flattening of the loop's own top-level shape
// into a single-state switch. It flattens the emitted dispatch loop's own
// control structure, never the user program the interpreter runs; there
// is exactly one such loop per emission (one `run`/dispatch function), so
// the first match is the only match.
func FlattenControlFlow(source string) string {
	if strings.Contains(source, flattenMarker) {
		return source
	}
	openAt := strings.Index(source, loopOpen)
	if openAt < 0 {
		return source
	}
	bodyStart := openAt + len(loopOpen)
	bodyEnd := matchingBrace(source, bodyStart-1)
	if bodyEnd < 0 {
		return source
	}
	body := source[bodyStart:bodyEnd]

	var rewritten strings.Builder
	rewritten.WriteString(source[:bodyStart])
	rewritten.WriteString("\n    ")
	rewritten.WriteString(flattenMarker)
	rewritten.WriteString("\n    let state = 0;\n    switch (state) {\n      case 0: {")
	rewritten.WriteString(body)
	rewritten.WriteString("\n        break;\n      }\n    }\n  ")
	rewritten.WriteString(source[bodyEnd:])
	return rewritten.String()
}

// matchingBrace returns the index of the '{' at openPos's matching '}',
// respecting nested braces but not string/comment contents (the dispatch
// loop's literal text is generated by emit's own template, never by
// untrusted input, so a brace-depth counter without lexical awareness of
// strings is sufficient here — unlike RewriteProperties, which must
// handle arbitrary rendered text).
func matchingBrace(source string, openPos int) int {
	if openPos < 0 || openPos >= len(source) || source[openPos] != '{' {
		return -1
	}
	depth := 0
	for i := openPos; i < len(source); i++ {
		switch source[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
