package main

import (
	"artemis/config"
	"artemis/relay"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to YAML config (default $"+config.EnvConfigPath+")")
	source := flag.String("source", "", "device-side websocket URL, overrides relay.source_url")
	sink := flag.String("sink", "", "server ingest websocket URL, overrides relay.sink_url")
	statusAddr := flag.String("status-addr", "", "status HTTP address, overrides relay.status_addr (empty config value disables it)")
	logLevel := flag.String("log-level", "", "log level, overrides log.level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if flag.CommandLine.Changed("source") {
		cfg.Relay.SourceURL = *source
	}
	if flag.CommandLine.Changed("sink") {
		cfg.Relay.SinkURL = *sink
	}
	if flag.CommandLine.Changed("status-addr") {
		cfg.Relay.StatusAddr = *statusAddr
	}
	if flag.CommandLine.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}

	logFile, err := config.SetupLogging(cfg.Log)
	if err != nil {
		log.WithError(err).Fatal("Failed to setup logging")
	}
	defer logFile.Close()

	bridge, err := relay.New(relay.Config{
		SourceURL: cfg.Relay.SourceURL,
		SinkURL:   cfg.Relay.SinkURL,
		Backoff:   cfg.Relay.Backoff,
		QueueSize: cfg.Relay.QueueSize,
	})
	if err != nil {
		log.WithError(err).Fatal("Invalid relay configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		bridge.Run(ctx)
	}()

	var statusServer *http.Server
	if cfg.Relay.StatusAddr != "" {
		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Mount("/", bridge.Handler())

		statusServer = &http.Server{Addr: cfg.Relay.StatusAddr, Handler: r}
		go func() {
			log.WithField("addr", cfg.Relay.StatusAddr).Info("Relay status server starting")
			if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Status server failed")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down relay...")
	cancel()
	<-bridgeDone

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Status server shutdown error")
		}
	}

	status := bridge.Status()
	log.WithFields(log.Fields{
		"forwarded": status.Forwarded,
		"dropped":   status.Dropped,
		"pending":   status.QueueDepth,
	}).Info("Relay stopped")
}
