// Package metrics expõe os coletores Prometheus da camada de tráfego.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"traffic-control/internal/core/domain"
)

// Metrics agrupa os coletores publicados pelo gateway. Os serviços de domínio
// não conhecem este pacote; quem observa são os adapters HTTP e o prober.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec
	UpstreamErrors  *prometheus.CounterVec
	HealthyNodes    prometheus.Gauge
}

// New registra os coletores no registry padrão; deve ser chamado uma única
// vez por processo.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_control",
			Name:      "requests_total",
			Help:      "Requests evaluated by the rate limiter, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_control",
			Name:      "rejections_total",
			Help:      "Rejected requests, by reason kind.",
		}, []string{"reason"}),
		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "traffic_control",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of proxied upstream calls, by node.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_control",
			Name:      "upstream_errors_total",
			Help:      "Upstream proxy failures, by node.",
		}, []string{"node"}),
		HealthyNodes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic_control",
			Name:      "healthy_nodes",
			Help:      "Nodes currently marked healthy in the balancer registry.",
		}),
	}
}

// ObserveDecision registra o resultado de uma decisão de admissão.
func (m *Metrics) ObserveDecision(decision domain.Decision) {
	outcome := "allowed"
	if !decision.Allowed {
		outcome = "rejected"
	}
	m.RequestsTotal.WithLabelValues(decision.Endpoint, outcome).Inc()
	if !decision.Allowed {
		m.RejectionsTotal.WithLabelValues(reasonKind(decision.Reason)).Inc()
	}
}

func reasonKind(reason string) string {
	switch {
	case reason == domain.ReasonSuspicious:
		return "suspicious"
	case strings.HasPrefix(reason, "rate limit exceeded"):
		return "quota"
	default:
		return "blocked"
	}
}
