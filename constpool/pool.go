// Package constpool implements the deduplicated constant table that
// bytecode operands index into: a first-class, tagged sequence where
// every entry knows whether it is a bare primitive, a string (subject to
// cipher.EncodePool later), an identifier name, a jump displacement, a
// parameter-name list, or a nested function body.
package constpool

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tag identifies the shape of a pool entry's Value.
type Tag int

const (
	TagPrimitive Tag = iota // bool, nil, int64, float64
	TagString
	TagIdentifier
	TagNumericOffset // signed jump displacement
	TagStringList    // []string, e.g. CREATE_FUNCTION's parameter names
	TagFunctionBody  // *bytecode.Program, recursively lowered
)

func (t Tag) String() string {
	switch t {
	case TagPrimitive:
		return "primitive"
	case TagString:
		return "string"
	case TagIdentifier:
		return "identifier"
	case TagNumericOffset:
		return "numeric-offset"
	case TagStringList:
		return "string-list"
	case TagFunctionBody:
		return "function-body"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// Entry is one slot in the pool.
type Entry struct {
	Tag   Tag
	Value interface{}
}

// Pool is an ordered, write-once, dedup-at-insertion sequence of entries.
// Lookup is by structural key: two insertions of the same Tag+Value return
// the same index, so a repeated constant never duplicates a pool entry.
type Pool struct {
	entries []Entry
	index   map[string]int
}

// MaxEntries is the largest pool size a single-byte pool-index operand can
// address. Insert refuses to add a new entry once the pool holds this many;
// the lower package reports that refusal as a PoolOverflow.
const MaxEntries = 256

func New() *Pool {
	return &Pool{index: make(map[string]int)}
}

func (p *Pool) Len() int { return len(p.entries) }

func (p *Pool) Get(i int) (Entry, error) {
	if i < 0 || i >= len(p.entries) {
		return Entry{}, errors.Errorf("constant pool index %d out of range (len %d)", i, len(p.entries))
	}
	return p.entries[i], nil
}

// Entries returns the pool's entries in insertion order. The returned slice
// must not be mutated.
func (p *Pool) Entries() []Entry {
	return p.entries
}

// key computes the structural dedup key for a tag+value pair. Function
// bodies and string lists are never deduplicated (each CREATE_FUNCTION gets
// its own nested program and its own parameter list instance), since two
// syntactically distinct closures with identical source text must still
// remain distinct callables.
func key(tag Tag, value interface{}) (string, bool) {
	switch tag {
	case TagFunctionBody, TagStringList:
		return "", false
	default:
		return fmt.Sprintf("%d:%v", tag, value), true
	}
}

// Insert adds value tagged as tag, returning its index. If an entry with an
// equal dedup key already exists, its index is returned instead and no new
// entry is created.
func (p *Pool) Insert(tag Tag, value interface{}) (int, error) {
	k, dedupable := key(tag, value)
	if idx, ok := p.index[k]; dedupable && ok {
		return idx, nil
	}
	if len(p.entries) >= MaxEntries {
		return 0, errors.Errorf("constant pool exhausted at %d entries", MaxEntries)
	}
	idx := len(p.entries)
	p.entries = append(p.entries, Entry{Tag: tag, Value: value})
	if dedupable {
		p.index[k] = idx
	}
	return idx, nil
}

// InsertPrimitive inserts a bare non-string literal (bool, nil, int64,
// float64).
func (p *Pool) InsertPrimitive(v interface{}) (int, error) {
	return p.Insert(TagPrimitive, v)
}

// InsertString inserts a string constant. Strings are the only entries the
// cipher layer later rewrites in place (see cipher.EncodePool).
func (p *Pool) InsertString(s string) (int, error) {
	return p.Insert(TagString, s)
}

// InsertIdentifier inserts a variable/property/operator name referenced by
// LOAD_VAR, STORE_VAR, LOAD_PROPERTY, STORE_PROPERTY, BINARY_OP, UNARY_OP, or
// LOGICAL_OP.
func (p *Pool) InsertIdentifier(name string) (int, error) {
	return p.Insert(TagIdentifier, name)
}

// InsertOffset inserts a signed jump displacement, used by the Label
// patching machinery in package bytecode.
func (p *Pool) InsertOffset(disp int) (int, error) {
	return p.Insert(TagNumericOffset, disp)
}

// InsertStringList inserts a parameter-name list for CREATE_FUNCTION.
func (p *Pool) InsertStringList(names []string) (int, error) {
	return p.Insert(TagStringList, names)
}

// InsertFunctionBody inserts a nested function body. The caller supplies an
// already-lowered value (the lowerer passes a *bytecode.Program); package
// bytecode imports constpool, so constpool cannot name that type and stores
// it as interface{}.
func (p *Pool) InsertFunctionBody(body interface{}) (int, error) {
	return p.Insert(TagFunctionBody, body)
}
