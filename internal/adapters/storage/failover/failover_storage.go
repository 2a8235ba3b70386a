// Package failover compõe o storage compartilhado com o fallback local.
package failover

import (
	"context"
	"fmt"
	"log"
	"time"

	"traffic-control/internal/core/ports"
)

// Storage tenta o backend primário e degrada para o local na primeira falha,
// sem retentativas. A política fica toda aqui, não nos chamadores:
//   - contagens nunca são combinadas entre backends (quem conta é um ou outro);
//   - bloqueios são gravados nos dois backends;
//   - a checagem de bloqueio consulta o compartilhado e depois o local.
type Storage struct {
	primary  ports.Storage
	fallback ports.Storage
	logger   *log.Logger
}

var _ ports.Storage = (*Storage)(nil)

// New compõe os dois backends; primary pode ser nil quando o storage
// compartilhado não está configurado.
func New(primary, fallback ports.Storage, logger *log.Logger) (*Storage, error) {
	if fallback == nil {
		return nil, fmt.Errorf("fallback storage is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Storage{primary: primary, fallback: fallback, logger: logger}, nil
}

func (s *Storage) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s.primary != nil {
		count, err := s.primary.Increment(ctx, key, ttl)
		if err == nil {
			return count, nil
		}
		s.logger.Printf("failover storage: shared increment failed, counting locally: %v", err)
	}
	return s.fallback.Increment(ctx, key, ttl)
}

func (s *Storage) IsBlocked(ctx context.Context, key string) (bool, error) {
	if s.primary != nil {
		blocked, err := s.primary.IsBlocked(ctx, key)
		if err == nil && blocked {
			return true, nil
		}
		if err != nil {
			s.logger.Printf("failover storage: shared block lookup failed, checking locally: %v", err)
		}
	}
	return s.fallback.IsBlocked(ctx, key)
}

func (s *Storage) GetBlock(ctx context.Context, key string) (string, error) {
	if s.primary != nil {
		reason, err := s.primary.GetBlock(ctx, key)
		if err == nil && reason != "" {
			return reason, nil
		}
		if err != nil {
			s.logger.Printf("failover storage: shared block read failed, reading locally: %v", err)
		}
	}
	return s.fallback.GetBlock(ctx, key)
}

func (s *Storage) SetBlock(ctx context.Context, key, reason string, ttl time.Duration) error {
	if s.primary != nil {
		if err := s.primary.SetBlock(ctx, key, reason, ttl); err != nil {
			s.logger.Printf("failover storage: shared block write failed: %v", err)
		}
	}
	return s.fallback.SetBlock(ctx, key, reason, ttl)
}
