// Package random provides Randomness sources for the genetics engine.
//
// Sources are pure functions of the subject within one execution context: the
// same subject always yields the same seed for a given context seed.
package random

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"kittycore/pkg/domain"

	"golang.org/x/crypto/blake2b"
)

// NewSeed generates a high-entropy context seed using crypto/rand.
func NewSeed() (domain.Seed, error) {
	var s domain.Seed
	if _, err := crand.Read(s[:]); err != nil {
		return domain.Seed{}, fmt.Errorf("read random seed: %w", err)
	}
	return s, nil
}

// MustNewSeed is NewSeed for initialisation paths that cannot return an error.
func MustNewSeed() domain.Seed {
	s, err := NewSeed()
	if err != nil {
		panic(err)
	}
	return s
}

// ParseSeed decodes a 64-character hex seed.
func ParseSeed(value string) (domain.Seed, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return domain.Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	if len(raw) != domain.SeedLen {
		return domain.Seed{}, fmt.Errorf("seed must be %d bytes, got %d", domain.SeedLen, len(raw))
	}
	var s domain.Seed
	copy(s[:], raw)
	return s, nil
}

// Keyed derives seeds as BLAKE2b-256 keyed by the context seed over the
// subject.
type Keyed struct {
	key domain.Seed
}

// NewKeyed returns a source for the given context seed.
func NewKeyed(seed domain.Seed) *Keyed {
	return &Keyed{key: seed}
}

// Random implements domain.Randomness.
func (k *Keyed) Random(subject []byte) domain.Seed {
	h, err := blake2b.New256(k.key[:])
	if err != nil {
		panic(err)
	}
	_, _ = h.Write(subject)
	var out domain.Seed
	copy(out[:], h.Sum(nil))
	return out
}

// Fixed returns the same seed for every subject. It is intended for tests
// that need reproducible genetic codes.
type Fixed struct {
	mu   sync.RWMutex
	seed domain.Seed
}

// NewFixed returns a source that always yields seed.
func NewFixed(seed domain.Seed) *Fixed {
	return &Fixed{seed: seed}
}

// Random implements domain.Randomness.
func (f *Fixed) Random([]byte) domain.Seed {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.seed
}

// Set changes the seed returned by subsequent draws.
func (f *Fixed) Set(seed domain.Seed) {
	f.mu.Lock()
	f.seed = seed
	f.mu.Unlock()
}

// Fill returns a seed with every byte set to b.
func Fill(b byte) domain.Seed {
	var s domain.Seed
	for i := range s {
		s[i] = b
	}
	return s
}
