// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"
)

type Storage interface {
	// Increment soma 1 ao contador e aplica o TTL somente na primeira escrita da chave.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	IsBlocked(ctx context.Context, key string) (bool, error)
	// GetBlock devolve a razão do bloqueio ou string vazia quando não há bloqueio ativo.
	GetBlock(ctx context.Context, key string) (string, error)
	// SetBlock registra um bloqueio; TTL não positivo remove a entrada.
	SetBlock(ctx context.Context, key string, reason string, ttl time.Duration) error
}
