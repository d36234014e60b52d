// Package memory is an in-process esign.TokenStore.
package memory

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/countersign/pkg/esign"
)

// Store keeps the pair in memory. The zero value is empty and ready to use.
type Store struct {
	mu   sync.Mutex
	pair *esign.TokenPair

	loads int
}

// New returns a store, optionally seeded with a pair.
func New(seed *esign.TokenPair) *Store {
	s := &Store{}
	if seed != nil {
		p := *seed
		s.pair = &p
	}
	return s
}

func (s *Store) Load(context.Context) (esign.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads++
	if s.pair == nil {
		return esign.TokenPair{}, esign.ErrNoTokens
	}
	return *s.pair, nil
}

func (s *Store) Save(_ context.Context, pair esign.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair = &pair
	return nil
}

func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair = nil
	return nil
}

// Loads reports how many times Load was called.
func (s *Store) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}
