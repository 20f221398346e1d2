package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/cwrk-planet/webinar-edge/internal/config"
	"github.com/cwrk-planet/webinar-edge/internal/edge"
	httputilx "github.com/cwrk-planet/webinar-edge/pkg/httputil"
	"github.com/cwrk-planet/webinar-edge/pkg/logger"
)

func main() {
	// --- config ---
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting webinar-edge",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- rate limit store ---
	var store edge.RateLimitStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		store = edge.NewRedisStore(rdb, "")
		slog.Info("rate limit store: redis", "addr", cfg.Redis.Addr)
	} else {
		mem := edge.NewMemoryStore()
		go mem.Run(ctx, cfg.RateLimit.SweepInterval)
		store = mem
		slog.Info("rate limit store: memory", "sweep", cfg.RateLimit.SweepInterval.String())
	}

	// --- pipeline ---
	pipeline := edge.New(edge.Config{
		JWTSecret:  cfg.Security.JWTSecret,
		ClockSkew:  cfg.Security.ClockSkew,
		Production: cfg.IsProduction(),
		CORSOrigin: cfg.Security.CORSOrigin,
		Limits: map[string]edge.Limit{
			"auth": {Requests: cfg.RateLimit.Auth.Requests, Window: cfg.RateLimit.Auth.Window},
			"api":  {Requests: cfg.RateLimit.API.Requests, Window: cfg.RateLimit.API.Window},
		},
		Store: store,
	})

	// --- upstream proxy ---
	target, err := url.Parse(cfg.Upstream.Target)
	if err != nil {
		log.Fatalf("upstream target: %v", err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("upstream unavailable", "path", r.URL.Path, "err", err)
		httputilx.JSON(w, http.StatusBadGateway, map[string]any{
			"error": map[string]any{"message": "upstream unavailable"},
		})
	}

	// --- router ---
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Security.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", edge.LocalStorageTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputilx.MiddlewareLogging)
	r.Use(pipeline.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputilx.OK(w, map[string]string{"status": "ok"})
	})
	r.NotFound(proxy.ServeHTTP)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	slog.Info("stopped")
}
