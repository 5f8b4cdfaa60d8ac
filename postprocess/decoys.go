package postprocess

import (
	"math/rand"
	"strings"
)

// decoyComments are innocuous, review-style one-liners with no bearing on
// the emitted code's behavior — the kind of comment a human reviewer
// leaves and nobody removes.
var decoyComments = []string{
	"// TODO: revisit this once the upstream API stabilizes",
	"// reviewed, looks fine",
	"// left as-is per code review feedback",
	"// NOTE: keep this in sync with the build config",
	"// works as expected in staging",
	"// see ticket for context",
	"// minor cleanup pending",
	"// double-checked the edge cases here",
}

// InjectDecoyComments inserts decoyComments at pseudo-random line
// boundaries in source. rng is seeded by the caller
// from the same emission entropy that seeds ident.NameManager, so decoy
// placement is reproducible for a fixed seed without sharing mutable
// state with the name manager itself. density is the fraction of line
// boundaries (0..1) a comment is inserted at; it is derived from the
// emission's configured entropy.
func InjectDecoyComments(source string, rng *rand.Rand, density float64) string {
	if density <= 0 {
		return source
	}
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines)+len(lines)/4)
	for _, line := range lines {
		if rng.Float64() < density {
			out = append(out, decoyComments[rng.Intn(len(decoyComments))])
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
