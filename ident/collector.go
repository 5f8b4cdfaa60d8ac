package ident

import "github.com/vanta-works/shroudvm/ast"

// Intrinsics enumerates host-provided names the lowerer and emitter must
// never rename or shadow in the emitted scope: numeric/string/container
// constructors, the top-level serialization and time primitives, and the
// console object.
var Intrinsics = map[string]struct{}{
	"Math":       {},
	"JSON":       {},
	"String":     {},
	"Number":     {},
	"Boolean":    {},
	"Array":      {},
	"Object":     {},
	"Date":       {},
	"console":    {},
	"Error":      {},
	"TypeError":  {},
	"RangeError": {},
	"parseInt":   {},
	"parseFloat": {},
	"isNaN":      {},
	"isFinite":   {},
	"undefined":  {},
	"NaN":        {},
	"Infinity":   {},
}

// IsIntrinsic reports whether name is a reserved host-intrinsic name.
func IsIntrinsic(name string) bool {
	_, ok := Intrinsics[name]
	return ok
}

// Collector performs the full pre-order AST walk that records every
// identifier occurrence in a program, seeding name-mangling tables. It is
// a standalone visitor rather than fused with lowering (unlike the
// Smalltalk-family compiler this module grew out of, which discovered
// names as a side effect of codegen) so the lowerer can stay purely
// emission-focused.
type Collector struct {
	seen  map[string]int
	order []string
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[string]int)}
}

// Collect walks prog and records every identifier reference: bare
// identifiers, declared var/function names, non-computed member property
// names, and arrow/function parameter names. Intrinsic names are recorded
// for completeness but are never reassigned; callers consult IsIntrinsic
// before renaming.
func (c *Collector) Collect(prog *ast.Program) {
	ast.Walk(prog, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.Identifier:
			c.record(node.Name)
		case *ast.VarDecl:
			c.record(node.Name)
		case *ast.FunctionExpr:
			if node.Name != "" {
				c.record(node.Name)
			}
			for _, p := range node.Params {
				c.record(p)
			}
		case *ast.MemberExpr:
			if !node.Computed {
				if prop, ok := node.Property.(*ast.Identifier); ok {
					c.record(prop.Name)
				}
			}
		case *ast.ObjectExpr:
			for _, prop := range node.Properties {
				c.record(prop.Key)
			}
		case *ast.TryStmt:
			if node.HasCatch && node.CatchParam != "" {
				c.record(node.CatchParam)
			}
		}
		return true
	})
}

func (c *Collector) record(name string) {
	if name == "" {
		return
	}
	if _, ok := c.seen[name]; !ok {
		c.order = append(c.order, name)
	}
	c.seen[name]++
}

// Names returns every distinct identifier collected, in first-occurrence
// order.
func (c *Collector) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Count returns how many times name was referenced, 0 if never seen.
func (c *Collector) Count(name string) int {
	return c.seen[name]
}

// NonIntrinsicNames returns every distinct collected identifier that is
// not a reserved host intrinsic, the set the lowerer/emitter are free to
// mangle.
func (c *Collector) NonIntrinsicNames() []string {
	var out []string
	for _, name := range c.order {
		if !IsIntrinsic(name) {
			out = append(out, name)
		}
	}
	return out
}
