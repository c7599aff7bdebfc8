package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"resume-ats/internal/bootstrap"
	"resume-ats/internal/queue"
	"resume-ats/internal/shared/config"
	"resume-ats/internal/shared/storage/db"
	"resume-ats/internal/shared/telemetry"
	"resume-ats/internal/workerproc"
)

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.LogJSON, cfg.LogDebug); err != nil {
		telemetry.Error("worker.logger_init_failed", map[string]any{"error": err.Error()})
	}
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildFor(ctx, cfg, db.ProfileWorker)
	if err != nil {
		telemetry.Error("worker.bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()

	consume, err := consumerFor(app, cfg.WorkerConcurrency)
	if err != nil {
		telemetry.Error("worker.bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	err = consume(ctx, workerproc.Handler(app.AnalysesService))
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		telemetry.Info("worker.stopped", nil)
	case errors.Is(err, queue.ErrShutdownTimeout):
		telemetry.Warn("worker.stopped", map[string]any{"error": err.Error()})
	default:
		telemetry.Error("worker.stopped", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

type consumeFunc func(ctx context.Context, h queue.Handler) error

// consumerFor picks the consumer of the configured queue backend.
func consumerFor(app *bootstrap.App, concurrency int) (consumeFunc, error) {
	switch {
	case app.SQS != nil:
		return app.SQS.Consume, nil
	case app.AMQP != nil:
		return func(ctx context.Context, h queue.Handler) error {
			return app.AMQP.Consume(ctx, h, concurrency)
		}, nil
	}
	return nil, errors.New("worker requires QUEUE_BACKEND=sqs or amqp")
}
