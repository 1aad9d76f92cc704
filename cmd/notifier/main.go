package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"todonotify/internal/api"
	"todonotify/internal/app"
	"todonotify/internal/config"
	"todonotify/internal/httpserver"
	"todonotify/pkg/logger"
	"todonotify/pkg/otel"
)

const serviceName = "todo-notifier"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logger.NewLogger(cfg.Log.Level)
	defer logger.Sync()

	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, logger)
	if err != nil {
		logger.Warn("OpenTelemetry init failed, continuing without tracing", zap.Error(err))
		shutdownOtel = func() {}
	}
	defer shutdownOtel()

	logger.Info("Starting notifier...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("timezone", cfg.Notifier.Timezone),
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	a := app.New(cfg, logger)
	err = a.Initialize(initCtx)
	initCancel()
	if err != nil {
		logger.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	router := httpserver.NewRouter(httpserver.Handlers{
		Notifications: api.NewNotificationHandler(a.History, a.Engine, logger),
		Preferences:   api.NewPreferenceHandler(a.Preferences, logger),
		Admin:         api.NewAdminHandler(a.Engine, a.Scheduler),
	}, cfg.JWT.Secret, a.Ready, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("notifier is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down notifier gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("Notifier shutdown error", zap.Error(err))
	}

	logger.Info("notifier shutdown complete")
}
