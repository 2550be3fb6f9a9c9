package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"friendtime/config"
	"friendtime/db"
	"friendtime/logger"
	"friendtime/services"

	"go.uber.org/zap"
)

// Отдельный процесс сборщика для развертываний, где API запущен без reaper.enabled
func main() {
	var configPath string
	var once bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.BoolVar(&once, "once", false, "Run a single pass and exit")
	flag.Parse()

	if err := config.LoadConfig(configPath); err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	cfg := config.AppConfig

	log, err := logger.NewLogger(cfg.Logs.Level, cfg.Logs.Environment)
	if err != nil {
		panic("Failed to create logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.ConnectDB(); err != nil {
		log.Fatal("Failed to connect to the database", zap.Error(err))
	}

	container, err := services.NewContainer(ctx, cfg, db.ORM, nil, logger.WithComponent(log, "reaper_cmd"))
	if err != nil {
		log.Fatal("Failed to build services", zap.Error(err))
	}
	defer func() { _ = container.Close() }()

	if once {
		closed, err := container.Reaper.Reap(ctx)
		if err != nil {
			log.Error("Reap failed", zap.Int("closed", closed), zap.Error(err))
			return
		}
		log.Info("Reap finished", zap.Int("closed", closed))
		return
	}

	container.Reaper.Run(ctx)
}
