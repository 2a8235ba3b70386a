package services

import (
	"io"
	"log"
	"testing"
	"time"

	"traffic-control/internal/core/domain"
)

func TestLoadBalancer_RoundRobinRotation(t *testing.T) {
	service := newTestBalancer(t, node("a", 1), node("b", 1), node("c", 1))

	want := []string{"a", "b", "c", "a", "b", "c"}
	for i, expected := range want {
		if got := nextID(t, service, domain.StrategyRoundRobin); got != expected {
			t.Fatalf("call %d: expected %s, got %s", i+1, expected, got)
		}
	}
}

func TestLoadBalancer_RoundRobinAfterRecovery(t *testing.T) {
	service := newTestBalancer(t, node("a", 1), node("b", 1), node("c", 1))

	setHealthy(service, "b", false)
	for i := 0; i < 4; i++ {
		if got := nextID(t, service, domain.StrategyRoundRobin); got == "b" {
			t.Fatalf("call %d: picked unhealthy node", i+1)
		}
	}

	setHealthy(service, "b", true)
	seen := make(map[string]int)
	for i := 0; i < 3; i++ {
		seen[nextID(t, service, domain.StrategyRoundRobin)]++
	}
	for _, id := range []string{"a", "b", "c"} {
		if seen[id] != 1 {
			t.Fatalf("expected each node exactly once per rotation, got %v", seen)
		}
	}
}

func TestLoadBalancer_WeightedDistribution(t *testing.T) {
	service := newTestBalancer(t, node("a", 1), node("b", 3))

	counts := make(map[string]int)
	for i := 0; i < 4000; i++ {
		counts[nextID(t, service, domain.StrategyWeighted)]++
	}

	if counts["a"]+counts["b"] != 4000 {
		t.Fatalf("expected every call to pick a node, got %v", counts)
	}
	if counts["b"] < 2*counts["a"] || counts["b"] > 4*counts["a"] {
		t.Fatalf("expected b to be picked roughly 3x as often as a, got %v", counts)
	}
}

func TestLoadBalancer_LeastConnections(t *testing.T) {
	service := newTestBalancer(t, node("a", 1), node("b", 1), node("c", 1))

	setConnections(service, "a", 4)
	setConnections(service, "b", 1)
	setConnections(service, "c", 1)

	// Ties resolve in registry order.
	if got := nextID(t, service, domain.StrategyLeastConnections); got != "b" {
		t.Fatalf("expected b, got %s", got)
	}

	setConnections(service, "b", 9)
	if got := nextID(t, service, domain.StrategyLeastConnections); got != "c" {
		t.Fatalf("expected c, got %s", got)
	}
}

func TestLoadBalancer_ResponseTimeSelection(t *testing.T) {
	service := newTestBalancer(t, node("a", 1), node("b", 1), node("c", 1))

	// No node has a measurement yet: the first healthy node wins.
	if got := nextID(t, service, domain.StrategyResponseTime); got != "a" {
		t.Fatalf("expected a, got %s", got)
	}

	service.UpdateMetrics("b", 200*time.Millisecond)
	service.UpdateMetrics("c", 150*time.Millisecond)

	// Unmeasured nodes are deprioritized against any measured latency.
	if got := nextID(t, service, domain.StrategyResponseTime); got != "c" {
		t.Fatalf("expected c, got %s", got)
	}
}

func TestLoadBalancer_WeightTuning(t *testing.T) {
	service := newTestBalancer(t, nodeSpec{id: "a", url: "http://a.internal:9000", weight: 5})

	service.UpdateMetrics("a", 50*time.Millisecond)
	if weight := nodeWeight(t, service, "a"); weight != 6 {
		t.Fatalf("expected fast response to raise weight to 6, got %d", weight)
	}

	service.UpdateMetrics("a", 1500*time.Millisecond)
	if weight := nodeWeight(t, service, "a"); weight != 5 {
		t.Fatalf("expected slow response to lower weight to 5, got %d", weight)
	}

	service.UpdateMetrics("a", 100*time.Millisecond)
	service.UpdateMetrics("a", time.Second)
	if weight := nodeWeight(t, service, "a"); weight != 5 {
		t.Fatalf("expected boundary latencies to leave weight unchanged, got %d", weight)
	}

	for i := 0; i < 10; i++ {
		service.UpdateMetrics("a", 10*time.Millisecond)
	}
	if weight := nodeWeight(t, service, "a"); weight != domain.MaxNodeWeight {
		t.Fatalf("expected weight capped at %d, got %d", domain.MaxNodeWeight, weight)
	}

	service.AddNode("floor", "http://floor.internal:9000", 1)
	service.UpdateMetrics("floor", 2*time.Second)
	if weight := nodeWeight(t, service, "floor"); weight != domain.MinNodeWeight {
		t.Fatalf("expected weight floored at %d, got %d", domain.MinNodeWeight, weight)
	}
}

func TestLoadBalancer_EmptyAndUnhealthyRegistry(t *testing.T) {
	service := newTestBalancer(t)

	picked, err := service.NextNode(domain.StrategyRoundRobin)
	if err != nil {
		t.Fatalf("unexpected error on empty registry: %v", err)
	}
	if picked != nil {
		t.Fatalf("expected no node from an empty registry, got %+v", picked)
	}

	service.AddNode("a", "http://a.internal:9000", 1)
	setHealthy(service, "a", false)

	picked, err = service.NextNode(domain.StrategyLeastConnections)
	if err != nil {
		t.Fatalf("unexpected error with all nodes unhealthy: %v", err)
	}
	if picked != nil {
		t.Fatalf("expected no node with all nodes unhealthy, got %+v", picked)
	}
}

func TestLoadBalancer_UnknownStrategy(t *testing.T) {
	service := newTestBalancer(t, node("a", 1))

	picked, err := service.NextNode(domain.Strategy(99))
	if err == nil || !domain.IsUnknownStrategyError(err) {
		t.Fatalf("expected unsupported strategy error, got node=%+v err=%v", picked, err)
	}
}

func TestLoadBalancer_AddRemoveValidation(t *testing.T) {
	service := newTestBalancer(t)

	created, err := service.AddNode("a", "http://a.internal:9000", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Weight != domain.MinNodeWeight {
		t.Fatalf("expected zero weight to clamp to %d, got %d", domain.MinNodeWeight, created.Weight)
	}

	created, err = service.AddNode("heavy", "http://heavy.internal:9000", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Weight != domain.MaxNodeWeight {
		t.Fatalf("expected oversized weight to clamp to %d, got %d", domain.MaxNodeWeight, created.Weight)
	}

	if _, err := service.AddNode("a", "http://other.internal:9000", 1); !domain.IsNodeExistsError(err) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	if _, err := service.AddNode("", "http://x.internal:9000", 1); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if _, err := service.AddNode("x", "", 1); err == nil {
		t.Fatalf("expected error for empty url")
	}

	if removed := service.RemoveNode("ghost"); removed {
		t.Fatalf("expected removing an unknown id to report false")
	}
	if removed := service.RemoveNode("a"); !removed {
		t.Fatalf("expected removal of a registered node")
	}
	if got := nextID(t, service, domain.StrategyRoundRobin); got != "heavy" {
		t.Fatalf("expected selection to skip removed nodes, got %s", got)
	}
}

func TestLoadBalancer_PartialStatusUpdate(t *testing.T) {
	service := newTestBalancer(t, node("a", 1))

	rt := 80 * time.Millisecond
	service.UpdateNodeStatus("a", domain.NodeStatusUpdate{ResponseTime: &rt})

	updated, ok := service.Node("a")
	if !ok {
		t.Fatalf("expected node a to exist")
	}
	if !updated.Healthy {
		t.Fatalf("expected untouched fields to keep their values")
	}
	if updated.LastResponseTime != rt {
		t.Fatalf("expected response time %s, got %s", rt, updated.LastResponseTime)
	}
	if updated.LastHealthCheck.IsZero() {
		t.Fatalf("expected the health check timestamp to be stamped")
	}

	setConnections(service, "a", -5)
	if updated, _ = service.Node("a"); updated.ActiveConnections != 0 {
		t.Fatalf("expected negative connections to clamp to 0, got %d", updated.ActiveConnections)
	}

	// Unknown ids are ignored, not errors.
	service.UpdateNodeStatus("ghost", domain.NodeStatusUpdate{ResponseTime: &rt})
	service.UpdateMetrics("ghost", rt)

	statuses := service.NodeStatuses()
	status, ok := statuses["a"]
	if !ok {
		t.Fatalf("expected snapshot to contain node a")
	}
	if status.URL != "http://a.internal:9000" || status.ResponseTime != rt.Seconds() {
		t.Fatalf("unexpected snapshot: %+v", status)
	}
}

type nodeSpec struct {
	id     string
	url    string
	weight int
}

func node(id string, weight int) nodeSpec {
	return nodeSpec{id: id, url: "http://" + id + ".internal:9000", weight: weight}
}

// newTestBalancer is a helper that registers the given nodes before returning.
func newTestBalancer(t *testing.T, specs ...nodeSpec) *LoadBalancerService {
	t.Helper()
	service := NewLoadBalancerService(log.New(io.Discard, "", 0))
	for _, spec := range specs {
		if _, err := service.AddNode(spec.id, spec.url, spec.weight); err != nil {
			t.Fatalf("failed to add node %s: %v", spec.id, err)
		}
	}
	return service
}

func nextID(t *testing.T, service *LoadBalancerService, strategy domain.Strategy) string {
	t.Helper()
	picked, err := service.NextNode(strategy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if picked == nil {
		t.Fatalf("expected a node to be picked")
	}
	return picked.ID
}

func nodeWeight(t *testing.T, service *LoadBalancerService, id string) int {
	t.Helper()
	registered, ok := service.Node(id)
	if !ok {
		t.Fatalf("expected node %s to exist", id)
	}
	return registered.Weight
}

func setHealthy(service *LoadBalancerService, id string, healthy bool) {
	service.UpdateNodeStatus(id, domain.NodeStatusUpdate{Healthy: &healthy})
}

func setConnections(service *LoadBalancerService, id string, connections int64) {
	service.UpdateNodeStatus(id, domain.NodeStatusUpdate{Connections: &connections})
}
