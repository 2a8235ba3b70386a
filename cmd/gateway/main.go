package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	httpHandlers "traffic-control/internal/adapters/http/handlers"
	httpMiddleware "traffic-control/internal/adapters/http/middleware"
	"traffic-control/internal/adapters/metrics"
	failoverstorage "traffic-control/internal/adapters/storage/failover"
	memorystorage "traffic-control/internal/adapters/storage/memory"
	redisstorage "traffic-control/internal/adapters/storage/redis"
	"traffic-control/internal/config"
	"traffic-control/internal/core/ports"
	"traffic-control/internal/core/services"
	"traffic-control/internal/health"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := log.Default()

	storage, closeFn, err := initStorage(cfg.Storage, cfg.RateLimiter.Window, logger)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer closeFn()

	limiter, err := services.NewRateLimiterService(storage, services.LimiterConfig{
		Window:             cfg.RateLimiter.Window,
		DefaultQuota:       cfg.RateLimiter.DefaultQuota,
		EndpointQuotas:     cfg.RateLimiter.EndpointQuotas,
		BlockDuration:      cfg.RateLimiter.BlockDuration,
		SuspicionThreshold: cfg.RateLimiter.SuspicionThreshold,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create limiter: %v", err)
	}

	balancer := services.NewLoadBalancerService(logger)
	if err := registerNodes(balancer, cfg.Balancer.NodesFile); err != nil {
		log.Fatalf("failed to register nodes: %v", err)
	}

	var collector *metrics.Metrics
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	proxy := httpHandlers.NewProxyHandler(balancer, cfg.Balancer.Strategy, collector, logger)
	admin := httpHandlers.NewAdminHandler(balancer, limiter, logger)

	r := chi.NewRouter()
	r.Get("/healthz", httpHandlers.HealthzHandler)
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Mount("/admin", admin.Routes())
	r.Group(func(r chi.Router) {
		r.Use(httpMiddleware.NewBurstGuardMiddleware(cfg.Gateway.RPS, cfg.Gateway.Burst))
		r.Use(httpMiddleware.NewRateLimiterMiddleware(limiter, collector))
		r.Handle("/*", proxy)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Printf("gateway listening on %s (strategy %s)", srv.Addr, cfg.Balancer.Strategy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.HealthCheck.Enabled {
		prober := health.NewProber(balancer, health.Config{
			Interval: cfg.HealthCheck.Interval,
			Timeout:  cfg.HealthCheck.Timeout,
			Path:     cfg.HealthCheck.Path,
		}, collector, logger)
		group.Go(func() error {
			return prober.Run(ctx)
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		logger.Println("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("gateway stopped: %v", err)
	}
}

// initStorage monta o storage híbrido: contadores locais sempre existem e o
// Redis, quando configurado, entra como camada compartilhada preferencial.
func initStorage(cfg config.StorageConfig, window time.Duration, logger *log.Logger) (ports.Storage, func(), error) {
	local := memorystorage.New(window)

	switch cfg.Type {
	case "redis":
		shared, err := redisstorage.New(redisstorage.Config{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shared.Ping(pingCtx); err != nil {
			logger.Printf("redis unreachable, using local counters until it returns: %v", err)
		}

		storage, err := failoverstorage.New(shared, local, logger)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {
			if err := shared.Close(); err != nil {
				logger.Printf("failed to close redis storage: %v", err)
			}
		}, nil
	case "memory":
		storage, err := failoverstorage.New(nil, local, logger)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func registerNodes(balancer ports.LoadBalancer, path string) error {
	entries, err := config.LoadNodes(path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := balancer.AddNode(id, entry.URL, entry.Weight); err != nil {
			return fmt.Errorf("registering node %s: %w", id, err)
		}
	}

	return nil
}
