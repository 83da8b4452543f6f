package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"tradewatch/internal/app"
	"tradewatch/pkg/config"
	"tradewatch/schedule"
)

func main() {
	cfg := config.Load()
	config.SetupLogger(cfg.LogLevel)

	rt, err := app.Bootstrap(cfg, false)
	if err != nil {
		logrus.Fatal("Failed to initialize: ", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := schedule.NewMaintenance(rt.Directory, rt.Stores.Notifications, cfg.Schedule.KeyRetention, rt.Log)
	c := schedule.NewCron()
	if err := schedule.Register(ctx, c, m, cfg.Schedule); err != nil {
		logrus.Fatal("Failed to add scheduled jobs: ", err)
	}

	c.Start()
	logrus.Info("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	logrus.Info("Scheduler stopped")
}
