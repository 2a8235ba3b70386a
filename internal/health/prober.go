// Package health sonda periodicamente os nós registrados no balanceador.
package health

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"traffic-control/internal/adapters/metrics"
	"traffic-control/internal/core/domain"
	"traffic-control/internal/core/ports"
)

// Config controla cadência e alvo das sondas.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Path     string
}

// Prober marca nós como saudáveis ou não conforme a resposta do endpoint de
// health de cada backend. Ele é a única fonte de recuperação: um nó derrubado
// pelo proxy só volta ao rodízio quando uma sonda responde 2xx.
type Prober struct {
	balancer  ports.LoadBalancer
	client    *http.Client
	interval  time.Duration
	path      string
	collector *metrics.Metrics
	logger    *log.Logger
}

// NewProber cria o prober aplicando os defaults de Config.
func NewProber(balancer ports.LoadBalancer, cfg Config, collector *metrics.Metrics, logger *log.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Path == "" {
		cfg.Path = "/api/health"
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		cfg.Path = "/" + cfg.Path
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Prober{
		balancer:  balancer,
		client:    &http.Client{Timeout: cfg.Timeout},
		interval:  cfg.Interval,
		path:      cfg.Path,
		collector: collector,
		logger:    logger,
	}
}

// Run executa uma varredura imediata e repete a cada intervalo até o contexto
// ser cancelado.
func (p *Prober) Run(ctx context.Context) error {
	p.sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Prober) sweep(ctx context.Context) {
	healthy := 0
	for id, status := range p.balancer.NodeStatuses() {
		ok, elapsed := p.probe(ctx, id, status.URL)
		update := domain.NodeStatusUpdate{Healthy: &ok}
		if ok {
			healthy++
			update.ResponseTime = &elapsed
		}
		p.balancer.UpdateNodeStatus(id, update)
	}

	if p.collector != nil {
		p.collector.HealthyNodes.Set(float64(healthy))
	}
}

func (p *Prober) probe(ctx context.Context, id, baseURL string) (bool, time.Duration) {
	target := strings.TrimRight(baseURL, "/") + p.path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		p.logger.Printf("health: building probe for node %s: %v", id, err)
		return false, 0
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		p.logger.Printf("health: probe failed for node %s: %v", id, err)
		return false, elapsed
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Printf("health: node %s answered %d", id, resp.StatusCode)
		return false, elapsed
	}

	return true, elapsed
}
