package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rpv/catalog-engine/internal/auth"
	"github.com/rpv/catalog-engine/internal/catalog"
	"github.com/rpv/catalog-engine/internal/config"
	"github.com/rpv/catalog-engine/internal/metrics"
	"github.com/rpv/catalog-engine/internal/store"
	"github.com/rpv/catalog-engine/internal/trade"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration failed", "err", err)
		os.Exit(1)
	}

	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- KV adapter ---
	var kv store.KV
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		kv = store.NewRedisKV(rdb)
		slog.Info("Redis KV enabled")
	} else {
		kv = store.NewMemoryKV()
		slog.Warn("REDIS_URL not set, using in-memory KV (trade state will not survive restarts)")
	}

	// --- Item store ---
	var items store.ItemStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		items = store.NewPostgresItems(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		items = store.NewMemoryItems()
		slog.Warn("DATABASE_URL not set, using in-memory item store")
	}

	// --- Catalog ---
	source := catalog.NewSource(items, kv, cfg.UpstreamURL)
	if err := source.Seed(context.Background()); err != nil {
		slog.Warn("catalog seed failed", "err", err)
	}

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Trade engine ---
	policy := trade.PolicyAppend
	if cfg.Trade.MergePolicy == "merge" {
		policy = trade.PolicyMerge
	}
	engine := trade.NewEngine(context.Background(), kv, trade.Config{
		Policy:     policy,
		StrictBand: cfg.Trade.StrictFairBand,
	})
	tradeSvc := trade.NewService(engine, source, wsHub)

	// --- Catalog + auth services ---
	catalogSvc := catalog.NewService(source, items, func() {
		wsHub.Broadcast(trade.WSMessage{Type: "catalog_changed"})
	})
	authSvc := auth.NewService(auth.StaticChecker{
		Username: cfg.Admin.Username,
		Password: cfg.Admin.Password,
		Role:     cfg.Admin.Role,
	}, kv)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for the static frontend.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"catalog-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for change notifications.
		r.Get("/ws", wsHub.HandleWS)

		// Admin session.
		r.Post("/login", authSvc.HandleLogin)
		r.Post("/logout", authSvc.HandleLogout)

		// Catalog view.
		r.Get("/items", catalogSvc.ListItems)
		r.Get("/items/{itemID}", catalogSvc.GetItem)
		r.Get("/rarities", catalogSvc.ListRarities)
		r.Get("/online", catalogSvc.GetOnline)

		// Admin CRUD.
		r.Group(func(r chi.Router) {
			r.Use(authSvc.Middleware)
			r.Post("/items", catalogSvc.CreateItem)
			r.Put("/items/{itemID}", catalogSvc.UpdateItem)
			r.Delete("/items/{itemID}", catalogSvc.DeleteItem)
		})

		// Trade calculator.
		r.Get("/trade", tradeSvc.GetTrade)
		r.Post("/trade/entries", tradeSvc.AddEntry)
		r.Post("/trade/reset", tradeSvc.Reset)
		r.Delete("/trade/{side}/entries/{entryID}", tradeSvc.RemoveEntry)
		r.Post("/trade/{side}/entries/{entryID}/quantity", tradeSvc.ChangeQuantity)
		r.Put("/trade/{side}/tokens", tradeSvc.SetTokens)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("catalog-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down catalog-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("catalog-engine stopped")
}
