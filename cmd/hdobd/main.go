package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/recon-hdob/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/recon-hdob/internal/adapter/kafka"
	"github.com/couchcryptid/recon-hdob/internal/config"
	"github.com/couchcryptid/recon-hdob/internal/observability"
	"github.com/couchcryptid/recon-hdob/internal/pipeline"
	"github.com/couchcryptid/recon-hdob/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	var opts []service.Option
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		opts = append(opts, service.WithPublisher(writer))
		logger.Info("kafka publication enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publication disabled")
	}

	conv := pipeline.New(logger, metrics)
	svc := service.New(conv, cfg.CacheSize, logger, metrics, opts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, httpadapter.Options{
		Job:              cfg.Job(),
		Message:          cfg.MessageOptions(),
		AllowAnyInterval: cfg.AllowAnyInterval,
		MaxBodyBytes:     cfg.MaxBodyBytes,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc.Start()
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	svc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
