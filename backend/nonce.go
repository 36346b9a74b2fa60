package backend

import (
	"math/rand"

	"go.uber.org/atomic"
)

// NonceGenerator produces request nonces that are unique over
// outstanding requests. It XORs a monotonic counter with a random word,
// mirroring the source backend's own nonce scheme; reimplementations
// only need uniqueness, not any particular bit pattern.
type NonceGenerator struct {
	counter atomic.Uint32
	salt    uint32
}

// NewNonceGenerator returns a NonceGenerator whose random word is drawn
// from seed. Tests use a fixed seed for determinism; production callers
// should seed from a real entropy source.
func NewNonceGenerator(seed int64) *NonceGenerator {
	return &NonceGenerator{salt: rand.New(rand.NewSource(seed)).Uint32()}
}

// Next returns the next nonce. The random word is fixed per generator,
// so nonces repeat only after 2^32 calls.
func (g *NonceGenerator) Next() uint32 {
	return g.counter.Inc() ^ g.salt
}
