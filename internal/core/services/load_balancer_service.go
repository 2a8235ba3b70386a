package services

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"traffic-control/internal/core/domain"
	"traffic-control/internal/core/ports"
)

// Limiares de latência usados no ajuste adaptativo de peso.
const (
	fastResponse = 100 * time.Millisecond
	slowResponse = time.Second
)

// LoadBalancerService mantém o registro de nós e aplica a estratégia de seleção.
// Um único mutex serializa mutações e seleções: a própria seleção avança
// cursores compartilhados e precisa ser atômica frente a seleções concorrentes.
type LoadBalancerService struct {
	mu             sync.Mutex
	nodes          []*domain.Node
	byID           map[string]*domain.Node
	rrCursor       uint64
	weightedCursor uint64
	logger         *log.Logger
}

var _ ports.LoadBalancer = (*LoadBalancerService)(nil)

// NewLoadBalancerService cria um registro vazio. Nada é persistido: um
// reinício exige novo registro de nós.
func NewLoadBalancerService(logger *log.Logger) *LoadBalancerService {
	if logger == nil {
		logger = log.Default()
	}
	return &LoadBalancerService{
		byID:   make(map[string]*domain.Node),
		logger: logger,
	}
}

// AddNode registra um nó saudável com o peso normalizado para [1,10].
func (s *LoadBalancerService) AddNode(id, url string, weight int) (domain.Node, error) {
	id = strings.TrimSpace(id)
	url = strings.TrimSpace(url)
	if id == "" {
		return domain.Node{}, fmt.Errorf("node id is required")
	}
	if url == "" {
		return domain.Node{}, fmt.Errorf("node url is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[id]; exists {
		return domain.Node{}, fmt.Errorf("%w: %s", domain.ErrNodeExists, id)
	}

	node := &domain.Node{
		ID:      id,
		URL:     url,
		Weight:  domain.ClampWeight(weight),
		Healthy: true,
	}
	s.nodes = append(s.nodes, node)
	s.byID[id] = node
	s.logger.Printf("load balancer: registered node %s (%s) weight=%d", id, url, node.Weight)
	return *node, nil
}

// RemoveNode retira um nó do registro e reporta se ele existia.
func (s *LoadBalancerService) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[id]; !exists {
		return false
	}
	delete(s.byID, id)
	for i, node := range s.nodes {
		if node.ID == id {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			break
		}
	}
	s.logger.Printf("load balancer: removed node %s", id)
	return true
}

// NextNode escolhe um nó saudável segundo a estratégia. Devolve nil quando o
// registro filtrado está vazio; o chamador decide a resposta ao cliente.
func (s *LoadBalancerService) NextNode(strategy domain.Strategy) (*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pick func([]*domain.Node) *domain.Node
	switch strategy {
	case domain.StrategyRoundRobin:
		pick = s.pickRoundRobinLocked
	case domain.StrategyLeastConnections:
		pick = pickLeastConnections
	case domain.StrategyWeighted:
		pick = s.pickWeightedLocked
	case domain.StrategyResponseTime:
		pick = pickResponseTime
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownStrategy, strategy)
	}

	healthy := s.healthyLocked()
	if len(healthy) == 0 {
		return nil, nil
	}

	picked := *pick(healthy)
	return &picked, nil
}

// UpdateMetrics registra a latência observada e ajusta o peso do nó:
// abaixo de 100ms o peso sobe, acima de 1s ele desce, sempre dentro de [1,10].
func (s *LoadBalancerService) UpdateMetrics(id string, responseTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.byID[id]
	if !ok {
		return
	}

	node.LastResponseTime = responseTime
	switch {
	case responseTime < fastResponse:
		node.Weight = domain.ClampWeight(node.Weight + 1)
	case responseTime > slowResponse:
		node.Weight = domain.ClampWeight(node.Weight - 1)
	}
}

// UpdateNodeStatus aplica uma atualização parcial e carimba o último health check.
// IDs desconhecidos são ignorados.
func (s *LoadBalancerService) UpdateNodeStatus(id string, update domain.NodeStatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.byID[id]
	if !ok {
		return
	}

	if update.Healthy != nil {
		if node.Healthy != *update.Healthy {
			s.logger.Printf("load balancer: node %s healthy=%t", id, *update.Healthy)
		}
		node.Healthy = *update.Healthy
	}
	if update.ResponseTime != nil {
		node.LastResponseTime = *update.ResponseTime
	}
	if update.Connections != nil {
		node.ActiveConnections = *update.Connections
		if node.ActiveConnections < 0 {
			node.ActiveConnections = 0
		}
	}
	node.LastHealthCheck = time.Now()
}

// NodeStatuses devolve um snapshot do registro para monitoramento externo.
func (s *LoadBalancerService) NodeStatuses() map[string]domain.NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]domain.NodeStatus, len(s.nodes))
	for _, node := range s.nodes {
		statuses[node.ID] = domain.NodeStatus{
			URL:          node.URL,
			Healthy:      node.Healthy,
			Connections:  node.ActiveConnections,
			ResponseTime: node.LastResponseTime.Seconds(),
			LastCheck:    node.LastHealthCheck,
		}
	}
	return statuses
}

// Node devolve uma cópia do nó registrado sob o id.
func (s *LoadBalancerService) Node(id string) (domain.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.byID[id]
	if !ok {
		return domain.Node{}, false
	}
	return *node, true
}

func (s *LoadBalancerService) healthyLocked() []*domain.Node {
	healthy := make([]*domain.Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		if node.Healthy {
			healthy = append(healthy, node)
		}
	}
	return healthy
}

func (s *LoadBalancerService) pickRoundRobinLocked(healthy []*domain.Node) *domain.Node {
	node := healthy[s.rrCursor%uint64(len(healthy))]
	s.rrCursor++
	return node
}

func pickLeastConnections(healthy []*domain.Node) *domain.Node {
	best := healthy[0]
	for _, node := range healthy[1:] {
		if node.ActiveConnections < best.ActiveConnections {
			best = node
		}
	}
	return best
}

// pickWeightedLocked implementa a seleção por peso cumulativo: os pesos são
// acumulados na ordem do registro e vence o primeiro nó cujo acumulado supera
// o ponteiro monotônico módulo o peso total.
func (s *LoadBalancerService) pickWeightedLocked(healthy []*domain.Node) *domain.Node {
	total := 0
	for _, node := range healthy {
		total += node.Weight
	}

	target := int(s.weightedCursor % uint64(total))
	s.weightedCursor++

	cumulative := 0
	for _, node := range healthy {
		cumulative += node.Weight
		if cumulative > target {
			return node
		}
	}
	return healthy[len(healthy)-1]
}

func pickResponseTime(healthy []*domain.Node) *domain.Node {
	best := healthy[0]
	for _, node := range healthy[1:] {
		if fasterThan(node.LastResponseTime, best.LastResponseTime) {
			best = node
		}
	}
	return best
}

// fasterThan trata latência zero (nó ainda não medido) como infinita.
func fasterThan(a, b time.Duration) bool {
	if a == 0 {
		return false
	}
	if b == 0 {
		return true
	}
	return a < b
}
