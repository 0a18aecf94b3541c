package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/patron-bridge/internal/adapters/driven/auth"
	"github.com/custodia-labs/patron-bridge/internal/adapters/driven/failover"
	"github.com/custodia-labs/patron-bridge/internal/adapters/driven/memory"
	"github.com/custodia-labs/patron-bridge/internal/adapters/driven/patreon"
	redisadapter "github.com/custodia-labs/patron-bridge/internal/adapters/driven/redis"
	httpadapter "github.com/custodia-labs/patron-bridge/internal/adapters/driving/http"
	"github.com/custodia-labs/patron-bridge/internal/config"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/patron-bridge/internal/core/services"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("patron-bridge %s starting", version)

	logger := slog.Default()

	// Setup context with cancellation for graceful shutdown of the
	// background sweeper.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// ===== Session Store (Redis with in-memory fallback) =====
	localStore := memory.NewSessionStore()

	var sessionStore driven.SessionStore = localStore
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The failover store keeps serving from the local map; a
			// recovered Redis takes over transparently.
			log.Printf("Warning: Redis ping failed: %v (degraded to local store until it recovers)", err)
		} else {
			log.Println("Redis connected")
		}
		defer redisClient.Close()

		sessionStore = failover.NewStore(failover.Config{
			Primary:  redisadapter.NewSessionStore(redisClient),
			Fallback: localStore,
			Logger:   logger,
		})
	} else {
		log.Println("No REDIS_URL configured, using process-local session store")
	}

	// ===== Provider client =====
	providerClient := patreon.NewClient(patreon.Config{
		ClientID:     cfg.PatreonClientID,
		ClientSecret: cfg.PatreonClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Timeout:      cfg.ProviderTimeout,
	})

	// ===== Maintenance auth =====
	authAdapter := auth.NewAdapter(cfg.AdminSecret)

	// ===== Flow service =====
	flowService := services.NewFlowService(services.FlowServiceConfig{
		Store:        sessionStore,
		Provider:     providerClient,
		SessionTTL:   cfg.SessionTTL,
		StaleWindow:  cfg.StaleWindow,
		CodeFallback: cfg.CodeFallback,
		Logger:       logger,
	})

	log.Printf("Flow config: ttl=%s stale_window=%s code_fallback=%t",
		cfg.SessionTTL, cfg.StaleWindow, cfg.CodeFallback)

	// ===== Periodic sweep =====
	// Opportunistic sweeps cover serverless-style deployments; the timer
	// covers long-running ones.
	go runSweeper(ctx, flowService.Sweep, cfg.SweepInterval, logger)

	// ===== HTTP server =====
	server := httpadapter.NewServer(httpadapter.Config{
		Host:    cfg.Host,
		Port:    cfg.Port,
		Version: version,
		Logger:  logger,
	}, flowService, authAdapter)

	log.Printf("API server starting on :%d", cfg.Port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runSweeper triggers a sweep on a fixed interval until ctx is cancelled.
func runSweeper(ctx context.Context, sweep func(context.Context) (int, error), interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sweep(ctx)
			if err != nil {
				logger.Warn("periodic sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("periodic sweep", "removed", removed)
			}
		}
	}
}
