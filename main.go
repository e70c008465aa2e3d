package main

import (
	"artemis/api"
	"artemis/config"
	"artemis/service"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to YAML config (default $"+config.EnvConfigPath+")")
	listen := flag.String("listen", "", "HTTP listen address, overrides server.listen")
	logLevel := flag.String("log-level", "", "log level, overrides log.level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if flag.CommandLine.Changed("listen") {
		cfg.Server.Listen = *listen
	}
	if flag.CommandLine.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}

	logFile, err := config.SetupLogging(cfg.Log)
	if err != nil {
		log.WithError(err).Fatal("Failed to setup logging")
	}
	defer logFile.Close()

	log.Println("Starting Artemis tracker...")

	registry := service.NewDeviceRegistry(service.RealClock, cfg.Presence.Timeout)
	history := service.NewHistoryStore(cfg.History.Limit)
	hub := service.NewHub(cfg.Broadcast.SubscriberBuffer)
	pipeline := service.NewPipeline(registry, history, hub, service.RealClock)

	ctx, cancel := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		if err := pipeline.RunSweeper(ctx, cfg.Presence.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Presence sweeper stopped")
		}
	}()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	api.SetupRoutes(ctx, router, pipeline)

	server := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: router,
	}

	go func() {
		log.WithFields(log.Fields{
			"listen":  cfg.Server.Listen,
			"timeout": cfg.Presence.Timeout,
			"sweep":   cfg.Presence.SweepInterval,
			"history": cfg.History.Limit,
		}).Info("Server starting")
		log.Printf("WebSocket subscribers on ws://%s/ws, relay ingest on /ws/ingest", cfg.Server.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	// Stops the sweeper and closes relay ingest streams.
	cancel()
	<-sweeperDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}

	// Hijacked websocket connections are not tracked by Shutdown; closing
	// the hub ends every subscriber's write pump.
	hub.Close()
	log.Println("Server stopped")
}
