package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/chaintrader/internal/config"
	"github.com/rickgao/chaintrader/internal/database"
	"github.com/rickgao/chaintrader/internal/journal"
	"github.com/rickgao/chaintrader/internal/markets"
	"github.com/rickgao/chaintrader/internal/rest"
	"github.com/rickgao/chaintrader/internal/stream"
	"github.com/rickgao/chaintrader/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/marketwatch.local.yaml", "path to config file")
	healthPort := flag.Int("health-port", 8080, "health endpoint port")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting marketwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"api_url", cfg.API.BaseURL,
		"stream_url", cfg.Stream.URL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect the trade journal when a database is configured.
	var pool *pgxpool.Pool
	var jnl *journal.Journal
	if cfg.Database.Journal.Enabled() {
		logger.Info("connecting to journal database",
			"host", cfg.Database.Journal.Host,
			"database", cfg.Database.Journal.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database.Journal)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		jnl = journal.New(journal.DefaultConfig(), pool, logger)
		if err := jnl.Start(ctx); err != nil {
			logger.Error("failed to start journal", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			jnl.Stop(shutdownCtx)
		}()

		logger.Info("journal started")
	} else {
		logger.Info("journal database not configured, journaling disabled")
	}

	// Create partner API client
	apiClient := rest.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		rest.WithLogger(logger),
		rest.WithTimeout(cfg.API.Timeout),
		rest.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Create market registry
	registry := markets.New(markets.DefaultConfig(), apiClient, logger)

	// Start health server early so we can monitor sync progress
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *healthPort),
		Handler: healthHandler(pool, registry, logger),
	}

	go func() {
		logger.Info("starting health server", "port", *healthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Start market registry (initial sync)
	logger.Info("starting market registry (initial sync)...")
	if err := registry.Start(ctx); err != nil {
		logger.Error("failed to start market registry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		registry.Stop(shutdownCtx)
	}()

	trading := registry.Trading()
	logger.Info("market registry started",
		"markets", registry.Len(),
		"trading", len(trading),
	)

	// Connect the event feed and subscribe to trading markets.
	feed := stream.NewClient(streamConfig(cfg.Stream, cfg.API.APIKey), logger)
	if err := feed.Connect(ctx); err != nil {
		logger.Error("failed to connect event feed", "error", err)
		os.Exit(1)
	}
	defer feed.Close()

	ids := make([]int64, 0, len(trading))
	for _, m := range trading {
		ids = append(ids, m.AppID)
	}
	if err := feed.Subscribe([]string{"trade", "market_lifecycle"}, ids); err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}

	go consumeFeed(ctx, feed, jnl, logger)
	go consumeChanges(ctx, registry, logger)

	logger.Info("marketwatch running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", *healthPort),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("marketwatch stopped")
}

func streamConfig(sc config.StreamConfig, apiKey string) stream.ClientConfig {
	cfg := stream.DefaultClientConfig()
	cfg.URL = sc.URL
	cfg.APIKey = apiKey
	if sc.BufferSize > 0 {
		cfg.BufferSize = sc.BufferSize
	}
	if sc.WriteTimeout > 0 {
		cfg.WriteTimeout = sc.WriteTimeout
	}
	if sc.PingTimeout > 0 {
		cfg.PingTimeout = sc.PingTimeout
	}
	return cfg
}

// consumeFeed logs event-feed traffic until the context is cancelled,
// journaling observed trades when a journal is configured.
func consumeFeed(ctx context.Context, feed stream.Client, jnl *journal.Journal, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-feed.Errors():
			logger.Error("event feed error", "error", err)
			return
		case ev := <-feed.Events():
			switch ev.Type {
			case "trade":
				var trade stream.TradeMsg
				if err := json.Unmarshal(ev.Msg, &trade); err != nil {
					logger.Warn("undecodable trade message", "error", err)
					continue
				}
				logger.Info("trade",
					"market_app_id", trade.MarketAppID,
					"position", trade.Position,
					"price", trade.Price,
					"quantity", trade.Quantity,
				)
				if jnl != nil {
					jnl.Record(journal.Entry{
						TradeID:     uuid.New(),
						MarketAppID: trade.MarketAppID,
						Position:    trade.Position,
						Price:       trade.Price,
						Quantity:    trade.Quantity,
						SubmittedAt: time.Unix(trade.Timestamp, 0),
					})
				}
			case "market_lifecycle":
				var lc stream.LifecycleMsg
				if err := json.Unmarshal(ev.Msg, &lc); err != nil {
					logger.Warn("undecodable lifecycle message", "error", err)
					continue
				}
				logger.Info("market lifecycle",
					"market_app_id", lc.MarketAppID,
					"event", lc.EventType,
					"old_status", lc.OldStatus,
					"new_status", lc.NewStatus,
					"outcome", lc.Outcome,
				)
			case "error":
				var em stream.ErrorMsg
				if err := json.Unmarshal(ev.Msg, &em); err != nil {
					logger.Warn("undecodable error reply", "error", err)
					continue
				}
				logger.Error("feed command rejected", "code", em.Code, "message", em.Message)
			}
		}
	}
}

// consumeChanges logs market status transitions from registry reconciliation.
func consumeChanges(ctx context.Context, registry *markets.Registry, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-registry.Changes():
			logger.Info("market status change",
				"market_app_id", change.AppID,
				"old_status", change.OldStatus,
				"new_status", change.NewStatus,
			)
		}
	}
}

// healthHandler serves /health and /debug/markets.
func healthHandler(pool *pgxpool.Pool, registry *markets.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["journal_db"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["journal_db"] = "connected"
			}
		}

		health.Components["market_registry"] = map[string]interface{}{
			"markets": registry.Len(),
			"trading": len(registry.Trading()),
		}
		if registry.Len() == 0 {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/markets", func(w http.ResponseWriter, r *http.Request) {
		trading := registry.Trading()

		// Limit to first 100 for debugging
		limit := 100
		showing := trading
		if len(showing) > limit {
			showing = showing[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   len(trading),
			"showing": len(showing),
			"markets": showing,
		})
	})

	return mux
}
