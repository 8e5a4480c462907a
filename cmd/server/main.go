package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/stockroom/internal/fulfillment"
	"github.com/jcmexdev/stockroom/internal/httpx"
	"github.com/jcmexdev/stockroom/internal/locks"
	"github.com/jcmexdev/stockroom/internal/pkg/cache"
	"github.com/jcmexdev/stockroom/internal/pkg/telemetry"
	"github.com/jcmexdev/stockroom/internal/store/sqlite"
)

const serviceName = "stockroom"

func main() {
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpAddr := getEnv("HTTP_ADDR", ":8080")
	dbPath := getEnv("DB_PATH", "./data/stockroom.db")
	lockWait := getEnvDuration("LOCK_WAIT", 5*time.Second)

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		shutdown, err := telemetry.SetupTracer(ctx, serviceName)
		if err != nil {
			slog.Error("tracer setup failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	st, err := sqlite.Open(dbPath)
	if err != nil {
		slog.Error("store open failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var dashboardCache cache.Cache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		dashboardCache = cache.WithBreaker(cache.NewRedisCache(redisAddr, serviceName), "dashboard-cache")
	}

	service := fulfillment.NewService(st, locks.NewManager(lockWait))
	handler := httpx.NewHandler(service, dashboardCache)
	router := otelhttp.NewHandler(httpx.NewRouter(handler), serviceName)

	server := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", httpAddr, "db", dbPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
