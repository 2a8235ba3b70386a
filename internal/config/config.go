// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"traffic-control/internal/core/domain"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	RateLimiter RateLimiterConfig
	Gateway     GatewayConfig
	Balancer    BalancerConfig
	HealthCheck HealthCheckConfig
	Metrics     MetricsConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	Type  string
	Redis RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type RateLimiterConfig struct {
	Window             time.Duration
	DefaultQuota       int
	EndpointQuotas     map[string]int
	BlockDuration      time.Duration
	SuspicionThreshold int
}

// GatewayConfig limita a vazão global do processo; RPS zero desliga o guard.
type GatewayConfig struct {
	RPS   float64
	Burst int
}

type BalancerConfig struct {
	Strategy  domain.Strategy
	NodesFile string
}

type HealthCheckConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
	Path     string
}

type MetricsConfig struct {
	Enabled bool
}

const defaultEndpointOverrides = "/api/analyze:30,/api/analyze-image:20,/api/health:120"

func Load() (Config, error) {
	_ = godotenv.Load()

	server := ServerConfig{Port: getEnv("SERVER_PORT", "8080")}

	storageType := getEnv("STORAGE_TYPE", "redis")

	redisConfig, err := buildRedisConfig()
	if err != nil {
		return Config{}, err
	}

	rateLimiterConfig, err := buildRateLimiterConfig()
	if err != nil {
		return Config{}, err
	}

	gatewayConfig, err := buildGatewayConfig()
	if err != nil {
		return Config{}, err
	}

	balancerConfig, err := buildBalancerConfig()
	if err != nil {
		return Config{}, err
	}

	healthConfig, err := buildHealthCheckConfig()
	if err != nil {
		return Config{}, err
	}

	metricsEnabled, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid METRICS_ENABLED: %w", err)
	}

	return Config{
		Server: server,
		Storage: StorageConfig{
			Type:  storageType,
			Redis: redisConfig,
		},
		RateLimiter: rateLimiterConfig,
		Gateway:     gatewayConfig,
		Balancer:    balancerConfig,
		HealthCheck: healthConfig,
		Metrics:     MetricsConfig{Enabled: metricsEnabled},
	}, nil
}

func buildRedisConfig() (RedisConfig, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return RedisConfig{
		Host:     host,
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func buildRateLimiterConfig() (RateLimiterConfig, error) {
	windowSeconds, err := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "60"))
	if err != nil {
		return RateLimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS: %w", err)
	}
	defaultQuota, err := strconv.Atoi(getEnv("RATE_LIMIT_DEFAULT_PER_WINDOW", "60"))
	if err != nil {
		return RateLimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_DEFAULT_PER_WINDOW: %w", err)
	}
	blockMinutes, err := strconv.Atoi(getEnv("RATE_LIMIT_BLOCK_DURATION_MINUTES", "30"))
	if err != nil {
		return RateLimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_BLOCK_DURATION_MINUTES: %w", err)
	}
	threshold, err := strconv.Atoi(getEnv("RATE_LIMIT_SUSPICION_THRESHOLD", "3"))
	if err != nil {
		return RateLimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_SUSPICION_THRESHOLD: %w", err)
	}

	overrides, err := buildEndpointOverrides()
	if err != nil {
		return RateLimiterConfig{}, err
	}

	return RateLimiterConfig{
		Window:             time.Duration(windowSeconds) * time.Second,
		DefaultQuota:       defaultQuota,
		EndpointQuotas:     overrides,
		BlockDuration:      time.Duration(blockMinutes) * time.Minute,
		SuspicionThreshold: threshold,
	}, nil
}

// buildEndpointOverrides lê RATE_LIMIT_ENDPOINT_OVERRIDES. A variável ausente
// aplica os overrides padrão; definida como vazia, remove todos.
func buildEndpointOverrides() (map[string]int, error) {
	raw, ok := os.LookupEnv("RATE_LIMIT_ENDPOINT_OVERRIDES")
	if !ok {
		raw = defaultEndpointOverrides
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]int{}, nil
	}

	overrides := make(map[string]int)
	items := strings.Split(raw, ",")

	for _, item := range items {
		parts := strings.Split(strings.TrimSpace(item), ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("endpoint override must follow PATH:REQUESTS_PER_WINDOW: %s", item)
		}

		path := strings.TrimSpace(parts[0])
		quota, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid quota for endpoint %s: %w", path, err)
		}
		if quota <= 0 {
			return nil, fmt.Errorf("quota for endpoint %s must be positive", path)
		}

		overrides[path] = quota
	}

	return overrides, nil
}

func buildGatewayConfig() (GatewayConfig, error) {
	rps, err := strconv.ParseFloat(getEnv("GATEWAY_RPS", "0"), 64)
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("invalid GATEWAY_RPS: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("GATEWAY_BURST", "0"))
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("invalid GATEWAY_BURST: %w", err)
	}

	return GatewayConfig{RPS: rps, Burst: burst}, nil
}

func buildBalancerConfig() (BalancerConfig, error) {
	strategy, err := domain.ParseStrategy(getEnv("BALANCER_STRATEGY", "round_robin"))
	if err != nil {
		return BalancerConfig{}, fmt.Errorf("invalid BALANCER_STRATEGY: %w", err)
	}

	return BalancerConfig{
		Strategy:  strategy,
		NodesFile: strings.TrimSpace(os.Getenv("NODES_FILE")),
	}, nil
}

func buildHealthCheckConfig() (HealthCheckConfig, error) {
	enabled, err := strconv.ParseBool(getEnv("HEALTH_CHECK_ENABLED", "true"))
	if err != nil {
		return HealthCheckConfig{}, fmt.Errorf("invalid HEALTH_CHECK_ENABLED: %w", err)
	}
	intervalSeconds, err := strconv.Atoi(getEnv("HEALTH_CHECK_INTERVAL_SECONDS", "15"))
	if err != nil {
		return HealthCheckConfig{}, fmt.Errorf("invalid HEALTH_CHECK_INTERVAL_SECONDS: %w", err)
	}
	timeoutSeconds, err := strconv.Atoi(getEnv("HEALTH_CHECK_TIMEOUT_SECONDS", "3"))
	if err != nil {
		return HealthCheckConfig{}, fmt.Errorf("invalid HEALTH_CHECK_TIMEOUT_SECONDS: %w", err)
	}

	return HealthCheckConfig{
		Enabled:  enabled,
		Interval: time.Duration(intervalSeconds) * time.Second,
		Timeout:  time.Duration(timeoutSeconds) * time.Second,
		Path:     getEnv("HEALTH_CHECK_PATH", "/api/health"),
	}, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
