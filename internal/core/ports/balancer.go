package ports

import (
	"time"

	"traffic-control/internal/core/domain"
)

// LoadBalancer mantém o registro de nós de backend e escolhe um por requisição.
type LoadBalancer interface {
	AddNode(id, url string, weight int) (domain.Node, error)
	RemoveNode(id string) bool
	// NextNode devolve nil quando não há nós saudáveis.
	NextNode(strategy domain.Strategy) (*domain.Node, error)
	UpdateMetrics(id string, responseTime time.Duration)
	UpdateNodeStatus(id string, update domain.NodeStatusUpdate)
	NodeStatuses() map[string]domain.NodeStatus
}
