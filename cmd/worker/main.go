package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/order-ledger/internal/app/api"
	platformobservability "github.com/Apurer/order-ledger/internal/platform/observability"
	orderactivities "github.com/Apurer/order-ledger/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/order-ledger/internal/platform/temporal/workflows/orders"
)

func main() {
	ctx := context.Background()
	const serviceName = "order-ledger-worker"
	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, platformobservability.SettingsFromEnv(serviceName))
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	ledger, err := api.BuildLedger(ctx, cfg, instruments)
	if err != nil {
		logger.Error("failed to build order ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer ledger.Close()
	activities := orderactivities.NewActivities(ledger.Service)

	if cfg.TemporalDisabled {
		logger.Warn("TEMPORAL_DISABLED is ignored by the worker")
		cfg.TemporalDisabled = false
	}
	temporalClient, err := api.DialTemporal(cfg, instruments, "temporal-worker")
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, orderworkflows.IntakeTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(orderworkflows.IntakeWorkflow, workflow.RegisterOptions{Name: orderworkflows.IntakeWorkflowName})
	w.RegisterActivityWithOptions(activities.PlaceOrder, activity.RegisterOptions{Name: orderactivities.PlaceOrderActivityName})

	logger.Info("worker listening", slog.String("taskQueue", orderworkflows.IntakeTaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
