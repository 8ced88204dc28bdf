package selector

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// NewSource returns a ChaCha8 generator keyed from crypto/rand, safe for
// concurrent use.
func NewSource() Source {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("selector: crypto/rand unavailable: " + err.Error())
	}
	return &lockedSource{rnd: rand.New(rand.NewChaCha8(seed))}
}

// NewSeededSource returns a deterministic source for reproducible draws.
func NewSeededSource(seed uint64) Source {
	return &lockedSource{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}
