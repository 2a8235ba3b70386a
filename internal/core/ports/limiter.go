package ports

import (
	"context"

	"traffic-control/internal/core/domain"
)

// RateLimiter decide a admissão de cada requisição; falhas de dependências
// nunca aparecem aqui, a decisão é sempre produzida.
type RateLimiter interface {
	Allow(ctx context.Context, req domain.Request) domain.Decision
}

// LimiterAdmin expõe as operações administrativas sobre bloqueios e suspeitas.
type LimiterAdmin interface {
	BlockStatus(ctx context.Context, ip string) (reason string, blocked bool, err error)
	Unblock(ctx context.Context, ip string) error
	SuspicionScore(ip string) int
	ResetSuspicion(ip string)
}
