package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"friendtime/api/handlers"
	"friendtime/api/routes"
	"friendtime/config"
	"friendtime/db"
	"friendtime/logger"
	"friendtime/services"

	"go.uber.org/zap"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	err := config.LoadConfig(configPath)
	if err != nil {
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

	log.Info("Starting server...",
		zap.String("events_driver", cfg.Events.Driver),
		zap.Float64("enter_threshold_m", cfg.Tracking.EnterThresholdMeters),
		zap.Float64("exit_threshold_m", cfg.Tracking.ExitThresholdMeters))

	if err := db.ConnectDB(); err != nil {
		log.Fatal("Failed to connect to the database", zap.Error(err))
	}

	// Без Redis работаем с кешем в памяти и синхронной проверкой близости
	if err := services.InitRedis(ctx); err != nil {
		log.Warn("Redis unavailable, falling back to inline proximity checks", zap.Error(err))
	}
	defer func() { _ = services.CloseRedis() }()

	container, err := services.NewContainer(ctx, cfg, db.ORM, services.RedisClient, log)
	if err != nil {
		log.Fatal("Failed to build services", zap.Error(err))
	}
	defer func() { _ = container.Close() }()
	container.Start(ctx)

	router := routes.NewRouter(&handlers.Handlers{
		Users:    container.Users,
		Friends:  container.Friends,
		Pipeline: container.Pipeline,
		Stats:    container.Stats,
		Reaper:   container.Reaper,
		Conns:    container.Conns,
		Queue:    container.Queue,
		Log:      logger.WithComponent(log, "http"),
	}, "friendtime")

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Backend.Host, cfg.Backend.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
