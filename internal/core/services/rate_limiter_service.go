package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"traffic-control/internal/core/domain"
	"traffic-control/internal/core/ports"
)

// LimiterConfig agrega as quotas e janelas utilizadas pelo serviço de admissão.
type LimiterConfig struct {
	Window             time.Duration
	DefaultQuota       int
	EndpointQuotas     map[string]int
	BlockDuration      time.Duration
	SuspicionThreshold int
}

// RateLimiterService implementa a lógica central de admissão de requisições.
type RateLimiterService struct {
	storage  ports.Storage
	config   LimiterConfig
	detector *AnomalyDetector
	logger   *log.Logger
}

var (
	_ ports.RateLimiter  = (*RateLimiterService)(nil)
	_ ports.LimiterAdmin = (*RateLimiterService)(nil)
)

// NewRateLimiterService cria uma nova instância do serviço.
func NewRateLimiterService(storage ports.Storage, cfg LimiterConfig, logger *log.Logger) (*RateLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.DefaultQuota <= 0 {
		return nil, fmt.Errorf("default quota must be positive")
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 30 * time.Minute
	}
	if cfg.SuspicionThreshold <= 0 {
		cfg.SuspicionThreshold = 3
	}
	if cfg.EndpointQuotas == nil {
		cfg.EndpointQuotas = make(map[string]int)
	}
	if logger == nil {
		logger = log.Default()
	}

	return &RateLimiterService{
		storage:  storage,
		config:   cfg,
		detector: NewAnomalyDetector(cfg.Window),
		logger:   logger,
	}, nil
}

// Allow avalia se a requisição pode prosseguir. Falhas do storage nunca são
// propagadas nem motivam rejeição: o limiter degrada admitindo.
func (s *RateLimiterService) Allow(ctx context.Context, req domain.Request) domain.Decision {
	ip := normalizeIP(req.ClientIP)
	endpoint := normalizeEndpoint(req.Path)
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	decision := domain.Decision{
		Allowed:    true,
		Identifier: ip,
		Endpoint:   endpoint,
		Limit:      s.quotaFor(endpoint),
		WindowEnds: s.windowEnd(at),
	}
	if ip == "" {
		// Nothing to key a counter on; the surrounding layer owns this case.
		return decision
	}

	if reason, blocked := s.activeBlock(ctx, ip); blocked {
		decision.Allowed = false
		decision.Reason = reason
		decision.RetryAfter = s.config.BlockDuration
		s.logger.Printf("rate limiter: rejected %s %s: %s", ip, endpoint, reason)
		return decision
	}

	if s.detector.Inspect(ip, endpoint, req.Headers, at) {
		if score := s.detector.RaiseScore(ip); score >= s.config.SuspicionThreshold {
			s.block(ctx, ip, domain.ReasonSuspicious)
			decision.Allowed = false
			decision.Reason = domain.ReasonSuspicious
			decision.RetryAfter = s.config.BlockDuration
			return decision
		}
	}

	count, err := s.storage.Increment(ctx, counterKey(ip, endpoint, s.windowIndex(at)), 2*s.config.Window)
	if err != nil {
		s.logger.Printf("rate limiter: counter increment failed for %s %s, admitting: %v", ip, endpoint, err)
		return decision
	}
	decision.CurrentCount = count

	if count > int64(decision.Limit) {
		reason := fmt.Sprintf("rate limit exceeded: %d/%d", count, decision.Limit)
		s.block(ctx, ip, reason)
		decision.Allowed = false
		decision.Reason = reason
		decision.RetryAfter = s.config.BlockDuration
		return decision
	}

	return decision
}

// BlockStatus devolve a razão do bloqueio ativo de um IP, se houver.
func (s *RateLimiterService) BlockStatus(ctx context.Context, ip string) (string, bool, error) {
	reason, err := s.storage.GetBlock(ctx, blockKey(normalizeIP(ip)))
	if err != nil {
		return "", false, err
	}
	return reason, reason != "", nil
}

// Unblock remove o bloqueio de um IP antes do vencimento.
func (s *RateLimiterService) Unblock(ctx context.Context, ip string) error {
	return s.storage.SetBlock(ctx, blockKey(normalizeIP(ip)), "", 0)
}

// SuspicionScore devolve o score acumulado de um IP.
func (s *RateLimiterService) SuspicionScore(ip string) int {
	return s.detector.Score(normalizeIP(ip))
}

// ResetSuspicion zera o score de um IP (ação administrativa).
func (s *RateLimiterService) ResetSuspicion(ip string) {
	s.detector.ResetScore(normalizeIP(ip))
}

func (s *RateLimiterService) activeBlock(ctx context.Context, ip string) (string, bool) {
	blocked, err := s.storage.IsBlocked(ctx, blockKey(ip))
	if err != nil {
		s.logger.Printf("rate limiter: block lookup failed for %s, admitting: %v", ip, err)
		return "", false
	}
	if !blocked {
		return "", false
	}
	reason, err := s.storage.GetBlock(ctx, blockKey(ip))
	if err != nil || reason == "" {
		reason = "blocked"
	}
	return reason, true
}

func (s *RateLimiterService) block(ctx context.Context, ip, reason string) {
	if err := s.storage.SetBlock(ctx, blockKey(ip), reason, s.config.BlockDuration); err != nil {
		s.logger.Printf("rate limiter: failed to persist block for %s: %v", ip, err)
	}
	s.logger.Printf("rate limiter: blocked %s for %s: %s", ip, s.config.BlockDuration, reason)
}

func (s *RateLimiterService) quotaFor(endpoint string) int {
	if quota, ok := s.config.EndpointQuotas[endpoint]; ok {
		return quota
	}
	return s.config.DefaultQuota
}

func (s *RateLimiterService) windowIndex(at time.Time) int64 {
	return at.UnixNano() / int64(s.config.Window)
}

func (s *RateLimiterService) windowEnd(at time.Time) time.Time {
	return time.Unix(0, (s.windowIndex(at)+1)*int64(s.config.Window))
}

func normalizeEndpoint(path string) string {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func normalizeIP(ip string) string {
	return strings.ToLower(strings.TrimSpace(ip))
}

func counterKey(ip, endpoint string, windowIndex int64) string {
	return fmt.Sprintf("ratelimit:counter:%s:%s:%d", ip, endpoint, windowIndex)
}

func blockKey(ip string) string {
	return fmt.Sprintf("ratelimit:block:%s", ip)
}
