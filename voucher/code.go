package voucher

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// DefaultCodeBytes is the entropy of a generated code.
const DefaultCodeBytes = 16

// CodeGenerator produces candidate voucher codes. Uniqueness is checked by the
// engine against every code it has ever issued, so a generator may repeat.
type CodeGenerator interface {
	Generate() (Code, error)
}

// GeneratorFunc adapts a function to CodeGenerator.
type GeneratorFunc func() (Code, error)

// Generate implements CodeGenerator.
func (f GeneratorFunc) Generate() (Code, error) { return f() }

// RandomGenerator draws Size random bytes and encodes them as base58.
type RandomGenerator struct {
	Size int
}

// NewRandomGenerator returns a generator with DefaultCodeBytes of entropy.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{Size: DefaultCodeBytes}
}

// Generate implements CodeGenerator.
func (g *RandomGenerator) Generate() (Code, error) {
	size := g.Size
	if size <= 0 {
		size = DefaultCodeBytes
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("voucher: read entropy: %w", err)
	}
	return Code(base58.Encode(buf)), nil
}
