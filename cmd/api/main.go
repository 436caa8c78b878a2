package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/AlvinAlvito/posi-mobile/internal/config"
	"github.com/AlvinAlvito/posi-mobile/internal/dispatcher"
	"github.com/AlvinAlvito/posi-mobile/internal/httpapi"
	"github.com/AlvinAlvito/posi-mobile/internal/logging"
	"github.com/AlvinAlvito/posi-mobile/internal/observability"
	"github.com/AlvinAlvito/posi-mobile/internal/push"
	"github.com/AlvinAlvito/posi-mobile/internal/realtime"
	"github.com/AlvinAlvito/posi-mobile/internal/service"
	"github.com/AlvinAlvito/posi-mobile/internal/store"
	"github.com/AlvinAlvito/posi-mobile/internal/store/pg"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPoolMaxConns,
		MinConns:          cfg.DBPoolMinConns,
		MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPoolHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := db.Ping(startupCtx); err != nil {
		startupCancel()
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}
	startupCancel()

	observability.Register(prometheus.DefaultRegisterer)

	pgStore := pg.New(db)
	pgStore.TargetChunk = cfg.TargetInsertChunk
	capability := store.NewCapability(pgStore)

	var publisher realtime.Publisher = realtime.NopPublisher{}
	if cfg.RedisAddr != "" {
		publisher = &realtime.RedisPublisher{Client: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})}
	} else {
		slog.Warn("realtime publishing disabled: REDIS_ADDR not set")
	}

	sender := &push.Sender{
		Limiter: rate.NewLimiter(rate.Limit(cfg.PushRPS), cfg.PushBurst),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "fcm",
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		}),
	}
	if cfg.FCMServerKey != "" {
		sender.Gateway = &push.Client{
			ServerKey: cfg.FCMServerKey,
			BaseURL:   cfg.FCMBaseURL,
			HTTP:      &http.Client{Timeout: 8 * time.Second},
		}
	} else {
		slog.Warn("push disabled: FCM_SERVER_KEY not set")
	}

	disp := &dispatcher.Dispatcher{
		Store:      pgStore,
		Capability: capability,
		Publisher:  publisher,
		Push:       sender,
		BatchSize:  cfg.BroadcastBatchSize,
		SchemaErr:  pg.IsUndefinedColumn,
	}

	svc := &service.BroadcastService{
		Store:      pgStore,
		Capability: capability,
		Publisher:  publisher,
		Push:       sender,
		Signal:     func() { disp.Start(ctx) },
	}

	s := httpapi.New()
	api := &httpapi.API{
		Svc:  svc,
		Auth: httpapi.StaticVerifier{Token: cfg.AdminAPIToken, AdminID: cfg.AdminUserID},
	}
	api.Register(s.Mux)

	s.Mux.HandleFunc("/healthz", httpapi.Healthz())
	s.Mux.HandleFunc("/readyz", httpapi.Readyz(2*time.Second, func(c context.Context) error {
		return db.Ping(c)
	}))

	handler := httpapi.Logging(httpapi.Metrics(observability.APIRequests)(s.Mux))
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	// Pick up any broadcast left sending by a previous process.
	disp.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
