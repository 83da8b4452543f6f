package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"tradewatch/internal/app"
	"tradewatch/pkg/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogger(cfg.LogLevel)

	if cfg.Notify.Queue == "" || !cfg.RabbitMQ.Enabled() {
		logrus.Fatal("Worker requires NOTIFY_QUEUE and RABBITMQ_HOST")
	}

	rt, err := app.Bootstrap(cfg, true)
	if err != nil {
		logrus.Fatal("Failed to initialize: ", err)
	}
	defer rt.Close()

	msgConsumer, err := config.NewConsumer(rt.RabbitMQ, cfg.Notify.Queue)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.WithField("queue", cfg.Notify.Queue).Info("Notification worker started, waiting for messages...")

	err = msgConsumer.Consume(ctx, rt.Dispatcher.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Error("Consumer stopped")
	}
	logrus.Info("Notification worker stopped")
}
