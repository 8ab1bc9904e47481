package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/imrishuroy/glaze-storefront/internal/auth"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
	"github.com/imrishuroy/glaze-storefront/internal/backup"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/checkout"
	"github.com/imrishuroy/glaze-storefront/internal/config"
	"github.com/imrishuroy/glaze-storefront/internal/consultant"
	"github.com/imrishuroy/glaze-storefront/internal/docstore"
	"github.com/imrishuroy/glaze-storefront/internal/events"
	"github.com/imrishuroy/glaze-storefront/internal/handlers"
	"github.com/imrishuroy/glaze-storefront/internal/idempotency"
	"github.com/imrishuroy/glaze-storefront/internal/mailer"
	"github.com/imrishuroy/glaze-storefront/internal/media"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/imrishuroy/glaze-storefront/internal/reviews"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
	"github.com/imrishuroy/glaze-storefront/internal/storefront"
	"golang.org/x/crypto/bcrypt"
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

func openOrders(ctx context.Context, cfg *config.Config, clients *aws.Clients) (orders.Repository, error) {
	if cfg.Orders.Backend == "postgres" {
		pg, err := orders.OpenPostgres(ctx, cfg.Orders.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	idem := idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, 48*time.Hour)
	return orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, idem), nil
}

func newPublisher(cfg *config.Config, clients *aws.Clients, logger *slog.Logger) events.Publisher {
	switch cfg.Events.Backend {
	case "kafka":
		return events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.Topic)
	case "none":
		return events.Discard{Logger: logger}
	default:
		return events.NewSQSPublisher(aws.NewPublisher(clients.SQS, cfg.Events.QueueURL))
	}
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

	docs := docstore.NewStore(clients.DynamoDB, cfg.Tables.State, docstore.NewRegistry(
		catalog.Schema,
		reviews.Schema,
		settings.Schema,
		auth.SessionsSchema,
		auth.NewDirectorySchema(bcrypt.DefaultCost),
	))
	cat := catalog.NewStore(docs)
	revs := reviews.NewStore(docs)
	st := settings.NewStore(docs)
	dir := auth.NewDirectory(docs)

	ords, err := openOrders(ctx, cfg, clients)
	if err != nil {
		fatal(logger, "failed to open order store", err)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	verifier, err := auth.NewJWKSVerifier(ctx, cfg.Auth.JWKSURL, cfg.Auth.TrustedIssuers, httpClient, auth.JWKSOptions{})
	if err != nil {
		fatal(logger, "failed to init identity token verifier", err)
	}
	authSvc := auth.NewService(
		dir,
		auth.NewChallenges(cfg.Auth.OTPTTL),
		verifier,
		st,
		mailer.New(httpClient, ""),
		auth.Options{
			AdminEmails:      cfg.Auth.AdminEmails,
			DemoLogin:        cfg.Auth.DemoLogin,
			MinPasswordChars: cfg.Auth.MinPasswordChars,
			BcryptCost:       bcrypt.DefaultCost,
		},
		logger,
	)

	shell := storefront.New(storefront.Deps{
		Catalog:  cat,
		Reviews:  revs,
		Orders:   ords,
		Auth:     authSvc,
		Sessions: auth.NewSessions(docs),
		Settings: st,
		Backup: backup.NewService(clients.S3, cfg.Backup.Bucket, cfg.Backup.Prefix, backup.Sources{
			Catalog:   cat,
			Reviews:   revs,
			Orders:    ords,
			Directory: dir,
		}, logger),
		Media:      media.NewStore(clients.S3, cfg.Media.Bucket, cfg.Media.Prefix, cfg.Media.PublicURL(cfg.AWS.Region)),
		Consultant: consultant.New(cat, st, consultant.NewGemini(&http.Client{Timeout: time.Minute}), logger),
		Events:     newPublisher(cfg, clients, logger),
		Metrics:    aws.NewMetrics(clients.CloudWatch),
		Checkout:   cfg.Checkout,
		Scheduler:  checkout.Clock,
		Logger:     logger,
	})

	r := handlers.NewRouter(shell, logger)

	if cfg.RunLocal {
		logger.Info("running local server", "addr", cfg.HTTPAddr)
		if err := r.Run(cfg.HTTPAddr); err != nil {
			fatal(logger, "failed to run local server", err)
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req lambdaevents.APIGatewayProxyRequest) (lambdaevents.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
