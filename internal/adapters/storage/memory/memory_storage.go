// Package memory disponibiliza o storage local de processo usado como fallback.
package memory

import (
	"context"
	"sync"
	"time"

	"traffic-control/internal/core/ports"
)

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

type blockEntry struct {
	reason    string
	expiresAt time.Time
}

// Storage guarda contadores e bloqueios em memória. As contagens são por
// processo e não coordenam entre réplicas; quem garante consistência entre
// instâncias é o storage compartilhado.
type Storage struct {
	mu         sync.Mutex
	counters   map[string]*counterEntry
	blocks     map[string]blockEntry
	sweepEvery time.Duration
	lastSweep  time.Time
}

var _ ports.Storage = (*Storage)(nil)

// New cria o storage local; sweepEvery controla a poda preguiçosa de
// entradas expiradas.
func New(sweepEvery time.Duration) *Storage {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	return &Storage{
		counters:   make(map[string]*counterEntry),
		blocks:     make(map[string]blockEntry),
		sweepEvery: sweepEvery,
		lastSweep:  time.Now(),
	}
}

func (s *Storage) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	entry, ok := s.counters[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &counterEntry{expiresAt: now.Add(ttl)}
		s.counters[key] = entry
	}
	entry.count++
	return entry.count, nil
}

func (s *Storage) IsBlocked(_ context.Context, key string) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.blocks[key]
	if !ok {
		return false, nil
	}
	if now.After(entry.expiresAt) {
		delete(s.blocks, key)
		return false, nil
	}
	return true, nil
}

func (s *Storage) GetBlock(_ context.Context, key string) (string, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.blocks[key]
	if !ok || now.After(entry.expiresAt) {
		return "", nil
	}
	return entry.reason, nil
}

func (s *Storage) SetBlock(_ context.Context, key, reason string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		delete(s.blocks, key)
		return nil
	}
	s.blocks[key] = blockEntry{reason: reason, expiresAt: time.Now().Add(ttl)}
	return nil
}

// sweepLocked remove entradas expiradas quando o intervalo de poda já passou.
func (s *Storage) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) <= s.sweepEvery {
		return
	}
	for key, entry := range s.counters {
		if now.After(entry.expiresAt) {
			delete(s.counters, key)
		}
	}
	for key, entry := range s.blocks {
		if now.After(entry.expiresAt) {
			delete(s.blocks, key)
		}
	}
	s.lastSweep = now
}
