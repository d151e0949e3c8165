package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/Apurer/order-ledger/internal/app/api"
	platformkafka "github.com/Apurer/order-ledger/internal/platform/kafka"
	platformobservability "github.com/Apurer/order-ledger/internal/platform/observability"
	"github.com/Apurer/order-ledger/internal/platform/outbox"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, platformobservability.SettingsFromEnv("order-ledger-outbox-relay"))
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		_ = shutdown(context.Background())
	}()
	logger := instruments.Logger

	if cfg.PostgresDSN == "" {
		logger.Error("POSTGRES_DSN not set; nothing to relay")
		os.Exit(1)
	}
	kafkaClient := platformkafka.NewClient(cfg.KafkaBrokers, cfg.KafkaClientID)
	if !kafkaClient.Enabled() {
		logger.Error("KAFKA_BROKERS not set; cannot relay outbox events")
		os.Exit(1)
	}

	pool, err := outbox.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("failed to connect outbox pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	producers := kafkaClient.NewProducers(instruments.Tracing())
	defer producers.Close()

	relay := outbox.NewRelay(outbox.NewStore(pool), producers, logger)
	sent, err := relay.RunOnce(ctx, cfg.OutboxBatchSize)
	if err != nil {
		logger.Error("outbox relay failed", slog.Int("sent", sent), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("outbox relay completed", slog.Int("sent", sent))
}
