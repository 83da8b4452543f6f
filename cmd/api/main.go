package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tradewatch/internal/app"
	"tradewatch/pkg/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogger(cfg.LogLevel)

	// The broker is only needed when relayed notifications are queued.
	rt, err := app.Bootstrap(cfg, cfg.Notify.Queue != "")
	if err != nil {
		logrus.Fatal("Failed to initialize: ", err)
	}
	defer rt.Close()

	if err := rt.EnablePublisher(); err != nil {
		logrus.Fatal("Failed to open RabbitMQ publisher: ", err)
	}
	if rt.Publisher == nil && cfg.Notify.Queue != "" {
		logrus.Warn("NOTIFY_QUEUE is set but RabbitMQ is not configured, dispatching inline")
	}

	r := app.NewRouter(cfg, rt.Services, rt.JobPublisher())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}
}
