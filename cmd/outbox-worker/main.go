// Command outbox-worker publishes pending canonical events to SQS.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/chatcommerce/cmd/mainconfig"
	appconfig "github.com/wolfman30/chatcommerce/internal/config"
	"github.com/wolfman30/chatcommerce/internal/events"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("outbox worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("outbox worker stopped")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg.DatabaseURL == "" || cfg.OutboxSQSQueueURL == "" {
		return errors.New("outbox worker requires DATABASE_URL and OUTBOX_SQS_QUEUE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}
	publisher := events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.OutboxSQSQueueURL)

	logger.Info("outbox worker started", "queue_url", cfg.OutboxSQSQueueURL, "interval", cfg.OutboxPollInterval.String())
	events.NewDeliverer(events.NewOutboxStore(pool), publisher, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval).
		Start(ctx)
	return nil
}
