// Package ident mints fresh identifier names for the emitted interpreter
// and enumerates the identifiers a source program references, so the
// lowerer and emitter never rename or shadow a host intrinsic.
package ident

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	firstCharAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz$_"
	tailCharAlphabet  = firstCharAlphabet + "0123456789"
)

// NameManager generates fresh, collision-free identifiers for one emission.
// Each VM-internal role (stack register, scope register, decoder helper,
// opcode-handler table, anti-debug routine) draws exactly one name from it,
// so two emissions of the same program are lexically distinct.
type NameManager struct {
	length int
	seed   uuid.UUID
	issued map[string]struct{}
}

// NewNameManager creates a manager issuing names of the given length
// (clamped to a minimum of 4). seed, drawn fresh per emission from
// github.com/google/uuid, makes two managers created in the same
// process-second still diverge; it does not by itself drive character
// sampling, which uses crypto/rand.
func NewNameManager(length int) *NameManager {
	if length < 4 {
		length = 4
	}
	return &NameManager{
		length: length,
		seed:   uuid.New(),
		issued: make(map[string]struct{}),
	}
}

// Seed returns the manager's emission seed, useful for correlating the
// name manager's output with other emission-scoped entropy (decoy comment
// placement, NOP splicing).
func (m *NameManager) Seed() uuid.UUID { return m.seed }

func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, errors.Wrap(err, "sampling random identifier character")
	}
	return alphabet[n.Int64()], nil
}

func (m *NameManager) generate() (string, error) {
	buf := make([]byte, m.length)
	first, err := randomChar(firstCharAlphabet)
	if err != nil {
		return "", err
	}
	buf[0] = first
	for i := 1; i < m.length; i++ {
		c, err := randomChar(tailCharAlphabet)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	return string(buf), nil
}

// Fresh returns a new identifier unique within this manager's issued set.
func (m *NameManager) Fresh() (string, error) {
	for attempts := 0; attempts < 64; attempts++ {
		name, err := m.generate()
		if err != nil {
			return "", err
		}
		if _, taken := m.issued[name]; taken {
			continue
		}
		m.issued[name] = struct{}{}
		return name, nil
	}
	return "", errors.New("name manager exhausted retries avoiding a collision")
}

// FreshFor is a convenience wrapper that panics on error, used at call
// sites where randomness failure is treated as fatal (crypto/rand failing
// indicates a broken host, not a recoverable condition).
func (m *NameManager) FreshFor(role string) string {
	name, err := m.Fresh()
	if err != nil {
		panic(errors.Wrapf(err, "minting fresh name for role %q", role))
	}
	return name
}

// Issued reports whether name has already been issued by this manager.
func (m *NameManager) Issued(name string) bool {
	_, ok := m.issued[name]
	return ok
}
