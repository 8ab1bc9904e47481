package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
	"github.com/imrishuroy/glaze-storefront/internal/config"
	"github.com/imrishuroy/glaze-storefront/internal/docstore"
	"github.com/imrishuroy/glaze-storefront/internal/events"
	"github.com/imrishuroy/glaze-storefront/internal/idempotency"
	"github.com/imrishuroy/glaze-storefront/internal/mailer"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
)

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.RunLocal {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	clients, err := aws.NewClients(ctx, cfg.AWS)
	if err != nil {
		fatal(logger, "failed to init aws clients", err)
	}

	idem := idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, 48*time.Hour)
	var repo orders.Repository
	if cfg.Orders.Backend == "postgres" {
		pg, err := orders.OpenPostgres(ctx, cfg.Orders.DatabaseURL)
		if err != nil {
			fatal(logger, "failed to open order store", err)
		}
		defer pg.Close()
		repo = pg
	} else {
		repo = orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, idem)
	}
	docs := docstore.NewStore(clients.DynamoDB, cfg.Tables.State, docstore.NewRegistry(settings.Schema))

	p := NewProcessor(
		idem,
		repo,
		settings.NewStore(docs),
		mailer.New(&http.Client{Timeout: 10 * time.Second}, ""),
		aws.NewMetrics(clients.CloudWatch),
		logger,
	)

	if cfg.Events.Backend == "kafka" {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		consumer := events.NewKafkaConsumer(cfg.Events.KafkaBrokers, cfg.Events.Topic, cfg.Events.GroupID, logger)
		logger.Info("consuming order events", "topic", cfg.Events.Topic, "group", cfg.Events.GroupID)
		if err := consumer.Consume(ctx, p.Process); err != nil {
			fatal(logger, "consumer stopped", err)
		}
		return
	}

	// RUN_LOCAL feeds one message from LOCAL_SQS_BODY through the handler.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"order_id":"local-order-1","customer_email":"demo@glaze.test","total":"18","placed_at":"2024-01-01T00:00:00Z"}`
		}
		resp, err := p.Handle(ctx, lambdaevents.SQSEvent{
			Records: []lambdaevents.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Error("local handler failed", "err", err, "failures", len(resp.BatchItemFailures))
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
