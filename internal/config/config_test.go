package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"traffic-control/internal/core/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Storage.Type != "redis" {
		t.Fatalf("expected redis storage, got %q", cfg.Storage.Type)
	}
	if cfg.RateLimiter.Window != time.Minute {
		t.Fatalf("expected a one minute window, got %s", cfg.RateLimiter.Window)
	}
	if cfg.RateLimiter.DefaultQuota != 60 {
		t.Fatalf("expected default quota 60, got %d", cfg.RateLimiter.DefaultQuota)
	}
	if cfg.RateLimiter.BlockDuration != 30*time.Minute {
		t.Fatalf("expected 30 minute blocks, got %s", cfg.RateLimiter.BlockDuration)
	}
	if cfg.RateLimiter.SuspicionThreshold != 3 {
		t.Fatalf("expected suspicion threshold 3, got %d", cfg.RateLimiter.SuspicionThreshold)
	}

	overrides := cfg.RateLimiter.EndpointQuotas
	if overrides["/api/analyze"] != 30 || overrides["/api/analyze-image"] != 20 || overrides["/api/health"] != 120 {
		t.Fatalf("unexpected default overrides: %v", overrides)
	}

	if cfg.Gateway.RPS != 0 {
		t.Fatalf("expected the burst guard off by default, got %f", cfg.Gateway.RPS)
	}
	if cfg.Balancer.Strategy != domain.StrategyRoundRobin {
		t.Fatalf("expected round robin by default, got %s", cfg.Balancer.Strategy)
	}
	if !cfg.HealthCheck.Enabled || cfg.HealthCheck.Interval != 15*time.Second || cfg.HealthCheck.Timeout != 3*time.Second {
		t.Fatalf("unexpected health check defaults: %+v", cfg.HealthCheck)
	}
	if cfg.HealthCheck.Path != "/api/health" {
		t.Fatalf("expected probe path /api/health, got %q", cfg.HealthCheck.Path)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("expected metrics enabled by default")
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "10")
	t.Setenv("RATE_LIMIT_DEFAULT_PER_WINDOW", "5")
	t.Setenv("RATE_LIMIT_ENDPOINT_OVERRIDES", "/api/upload:2")
	t.Setenv("RATE_LIMIT_BLOCK_DURATION_MINUTES", "1")
	t.Setenv("RATE_LIMIT_SUSPICION_THRESHOLD", "5")
	t.Setenv("GATEWAY_RPS", "200.5")
	t.Setenv("GATEWAY_BURST", "400")
	t.Setenv("BALANCER_STRATEGY", "least_connections")
	t.Setenv("NODES_FILE", "/etc/gateway/nodes.yaml")
	t.Setenv("HEALTH_CHECK_ENABLED", "false")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Storage.Type != "memory" {
		t.Fatalf("unexpected server or storage config: %+v", cfg)
	}
	if cfg.RateLimiter.Window != 10*time.Second || cfg.RateLimiter.DefaultQuota != 5 {
		t.Fatalf("unexpected limiter config: %+v", cfg.RateLimiter)
	}
	if len(cfg.RateLimiter.EndpointQuotas) != 1 || cfg.RateLimiter.EndpointQuotas["/api/upload"] != 2 {
		t.Fatalf("unexpected overrides: %v", cfg.RateLimiter.EndpointQuotas)
	}
	if cfg.RateLimiter.BlockDuration != time.Minute || cfg.RateLimiter.SuspicionThreshold != 5 {
		t.Fatalf("unexpected limiter config: %+v", cfg.RateLimiter)
	}
	if cfg.Gateway.RPS != 200.5 || cfg.Gateway.Burst != 400 {
		t.Fatalf("unexpected gateway config: %+v", cfg.Gateway)
	}
	if cfg.Balancer.Strategy != domain.StrategyLeastConnections {
		t.Fatalf("expected least_connections, got %s", cfg.Balancer.Strategy)
	}
	if cfg.Balancer.NodesFile != "/etc/gateway/nodes.yaml" {
		t.Fatalf("unexpected nodes file: %q", cfg.Balancer.NodesFile)
	}
	if cfg.HealthCheck.Enabled || cfg.Metrics.Enabled {
		t.Fatal("expected health checks and metrics disabled")
	}
}

func TestLoadClearsOverridesWhenSetEmpty(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENDPOINT_OVERRIDES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if len(cfg.RateLimiter.EndpointQuotas) != 0 {
		t.Fatalf("expected no overrides, got %v", cfg.RateLimiter.EndpointQuotas)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"window", "RATE_LIMIT_WINDOW_SECONDS", "sixty"},
		{"quota", "RATE_LIMIT_DEFAULT_PER_WINDOW", "many"},
		{"rps", "GATEWAY_RPS", "fast"},
		{"health flag", "HEALTH_CHECK_ENABLED", "sim"},
		{"override shape", "RATE_LIMIT_ENDPOINT_OVERRIDES", "/api/analyze"},
		{"override quota", "RATE_LIMIT_ENDPOINT_OVERRIDES", "/api/analyze:0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected an error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	t.Setenv("BALANCER_STRATEGY", "fastest")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
	if !errors.Is(err, domain.ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestLoadNodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.yaml")
	content := `nodes:
  - id: node-a
    url: http://10.0.0.1:9001
    weight: 3
  - id: node-b
    url: http://10.0.0.2:9001
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing nodes file: %v", err)
	}

	nodes, err := LoadNodes(path)
	if err != nil {
		t.Fatalf("loading nodes: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].ID != "node-a" || nodes[0].URL != "http://10.0.0.1:9001" || nodes[0].Weight != 3 {
		t.Fatalf("unexpected first node: %+v", nodes[0])
	}
	if nodes[1].Weight != 0 {
		t.Fatalf("expected omitted weight to stay zero, got %d", nodes[1].Weight)
	}
}

func TestLoadNodesEmptyPathMeansNoInventory(t *testing.T) {
	nodes, err := LoadNodes("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if nodes != nil {
		t.Fatalf("expected nil inventory, got %v", nodes)
	}
}

func TestLoadNodesRejectsMissingOrBrokenFiles(t *testing.T) {
	if _, err := LoadNodes(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("nodes: [whoops"), 0o600); err != nil {
		t.Fatalf("writing broken file: %v", err)
	}
	if _, err := LoadNodes(path); err == nil || !strings.Contains(err.Error(), "parsing nodes file") {
		t.Fatalf("expected a parse error, got %v", err)
	}
}
