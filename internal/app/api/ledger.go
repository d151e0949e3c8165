package api

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Apurer/order-ledger/internal/clients/http/rest"
	"github.com/Apurer/order-ledger/internal/domains/orders/adapters/external/catalog"
	"github.com/Apurer/order-ledger/internal/domains/orders/adapters/external/registry"
	ordersmemory "github.com/Apurer/order-ledger/internal/domains/orders/adapters/memory"
	kafkapublisher "github.com/Apurer/order-ledger/internal/domains/orders/adapters/messaging/kafka"
	ordersobs "github.com/Apurer/order-ledger/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/Apurer/order-ledger/internal/domains/orders/adapters/persistence/postgres"
	ordersapp "github.com/Apurer/order-ledger/internal/domains/orders/application"
	ordersports "github.com/Apurer/order-ledger/internal/domains/orders/ports"
	platformkafka "github.com/Apurer/order-ledger/internal/platform/kafka"
	"github.com/Apurer/order-ledger/internal/platform/migrations"
	platformobservability "github.com/Apurer/order-ledger/internal/platform/observability"
	"github.com/Apurer/order-ledger/internal/platform/outbox"
	platformpostgres "github.com/Apurer/order-ledger/internal/platform/postgres"
)

const instrumentationScope = "internal.orders.application"

// Ledger is the order service with every adapter resolved from config.
type Ledger struct {
	Service ordersports.Service
	cleanup []func()
}

// Close releases connections and writers in reverse order of acquisition.
func (l *Ledger) Close() {
	for i := len(l.cleanup) - 1; i >= 0; i-- {
		l.cleanup[i]()
	}
}

func (l *Ledger) onClose(fn func()) {
	l.cleanup = append(l.cleanup, fn)
}

// BuildLedger resolves stores, collaborators and the event publisher.
// Postgres and Kafka are optional; without them the ledger runs on in-memory adapters.
func BuildLedger(ctx context.Context, cfg Config, instruments *platformobservability.Instruments) (*Ledger, error) {
	logger := effectiveLogger(instruments)
	meter := instruments.Meter(instrumentationScope)
	ledger := &Ledger{}

	pgOpts := platformpostgres.DefaultOptions()
	pgOpts.Logger = logger
	db, closeDB := platformpostgres.ConnectOrFallback(ctx, cfg.PostgresDSN, pgOpts)
	ledger.onClose(closeDB)
	if db != nil {
		if err := migrations.Run(db); err != nil {
			ledger.Close()
			return nil, fmt.Errorf("failed to migrate order schema: %w", err)
		}
	}
	repo, idempotency := buildStores(db, logger)

	httpClient := rest.NewHTTPClient(cfg.UpstreamTimeout)
	registryAPI, err := rest.NewClient("client-registry", cfg.ClientRegistryURL, httpClient)
	if err != nil {
		ledger.Close()
		return nil, err
	}
	catalogAPI, err := rest.NewClient("catalog", cfg.CatalogURL, httpClient)
	if err != nil {
		ledger.Close()
		return nil, err
	}
	clients := registry.NewClient(registryAPI)
	products := catalog.NewClient(catalogAPI)

	publisher := buildPublisher(cfg, instruments, ledger, logger)
	reconciliation := buildReconciliationLog(ctx, cfg, db, ledger, logger)

	credit := ordersapp.CreditPolicy(ordersapp.NewLocalCreditPolicy(repo))
	if cfg.CreditPolicy == CreditPolicyRegistry {
		credit = ordersapp.NewRegistryCreditPolicy(clients)
	}
	logger.Info("order ledger configured", slog.String("credit_policy", cfg.CreditPolicy))

	core := ordersapp.NewService(
		repo,
		clients,
		products,
		ordersobs.NewPublisher(publisher, instruments.Tracer("internal.orders.events"), meter),
		ordersapp.WithCreditPolicy(credit),
		ordersapp.WithIdempotencyStore(idempotency),
		ordersapp.WithReconciliationLog(ordersobs.NewReconciliationLog(reconciliation, logger, meter)),
		ordersapp.WithLogger(logger),
	)
	ledger.Service = ordersobs.New(
		core,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer(instrumentationScope)),
		ordersobs.WithMeter(meter),
	)
	return ledger, nil
}

func buildStores(db *gorm.DB, logger *slog.Logger) (ordersports.Repository, ordersports.IdempotencyStore) {
	if db == nil {
		logger.Warn("order store running in memory")
		return ordersmemory.NewRepository(), ordersmemory.NewIdempotencyStore()
	}
	logger.Info("order store configured with postgres")
	return orderspostgres.NewRepository(db), orderspostgres.NewIdempotencyStore(db)
}

func buildPublisher(cfg Config, instruments *platformobservability.Instruments, ledger *Ledger, logger *slog.Logger) ordersports.EventPublisher {
	client := platformkafka.NewClient(cfg.KafkaBrokers, cfg.KafkaClientID)
	if !client.Enabled() {
		logger.Warn("KAFKA_BROKERS not set, order events stay in process")
		return ordersmemory.NewPublisher()
	}
	producers := client.NewProducers(instruments.Tracing())
	ledger.onClose(func() {
		if err := producers.Close(); err != nil {
			logger.Warn("failed to close kafka writers", slog.String("error", err.Error()))
		}
	})
	logger.Info("order events publishing to kafka", slog.Any("brokers", client.Brokers))
	return kafkapublisher.NewPublisher(producers, cfg.Topics())
}

func buildReconciliationLog(ctx context.Context, cfg Config, db *gorm.DB, ledger *Ledger, logger *slog.Logger) ordersports.ReconciliationLog {
	if db == nil {
		return ordersmemory.NewReconciliationLog()
	}
	pool, err := outbox.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Warn("failed to open outbox pool, reconciliation kept in memory", slog.String("error", err.Error()))
		return ordersmemory.NewReconciliationLog()
	}
	ledger.onClose(pool.Close)
	return kafkapublisher.NewOutboxLog(outbox.NewStore(pool), cfg.Topics())
}

