// Package storefronttest builds a Shell over in-memory AWS fakes with a
// manually driven checkout clock.
package storefronttest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/auth"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
	"github.com/imrishuroy/glaze-storefront/internal/aws/awstest"
	"github.com/imrishuroy/glaze-storefront/internal/backup"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/checkout"
	"github.com/imrishuroy/glaze-storefront/internal/config"
	"github.com/imrishuroy/glaze-storefront/internal/consultant"
	"github.com/imrishuroy/glaze-storefront/internal/docstore"
	"github.com/imrishuroy/glaze-storefront/internal/events"
	"github.com/imrishuroy/glaze-storefront/internal/idempotency"
	"github.com/imrishuroy/glaze-storefront/internal/media"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/imrishuroy/glaze-storefront/internal/reviews"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
	"github.com/imrishuroy/glaze-storefront/internal/storefront"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const (
	StateTable       = "state"
	OrdersTable      = "orders"
	IdempotencyTable = "idempotency"
	QueueURL         = "https://sqs.local/orders"
	Bucket           = "glaze-backups"
	MediaBucket      = "glaze-media"
	MediaURL         = "https://media.glaze.test"

	// GoodToken is accepted by the harness token verifier.
	GoodToken = "good-token"
)

// Clock is a checkout.Scheduler that only fires on Advance.
type Clock struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*task
}

type task struct {
	due     time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *task) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *Clock) AfterFunc(d time.Duration, f func()) checkout.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &task{due: c.now + d, f: f}
	c.tasks = append(c.tasks, t)
	return t
}

// Advance fires, in due order, every task that falls due within d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *task
		for _, t := range c.tasks {
			if t.stopped || t.fired || t.due > target {
				continue
			}
			if next == nil || t.due < next.due {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.due
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

// Mail records what the auth flows send.
type Mail struct {
	mu   sync.Mutex
	Sent []map[string]string
}

func (m *Mail) Send(ctx context.Context, st settings.Settings, templateID string, params map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, params)
	return nil
}

// LastCode is the most recently mailed one-time code.
func (m *Mail) LastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return ""
	}
	return m.Sent[len(m.Sent)-1]["code"]
}

type verifier struct{}

func (verifier) Verify(ctx context.Context, raw, audience string) (*auth.IdentityClaims, error) {
	if raw != GoodToken {
		return nil, errors.New("bad signature")
	}
	return &auth.IdentityClaims{Email: "gina@glaze.test", EmailVerified: true, Name: "Gina", Picture: "https://img.test/gina.png"}, nil
}

type model struct{}

func (model) Recommend(ctx context.Context, apiKey string, p consultant.Prompt) (consultant.Recommendation, error) {
	return consultant.Recommendation{ProductID: "p2", Reasoning: "a warm peach for a warm vibe"}, nil
}

// Harness is a Shell plus handles on every fake behind it.
type Harness struct {
	Shell      *storefront.Shell
	Dynamo     *awstest.Dynamo
	SQS        *awstest.SQS
	CloudWatch *awstest.CloudWatch
	S3         *awstest.S3
	Clock      *Clock
	Mail       *Mail
	Docs       *docstore.Store
}

// New builds a harness. The admin allow-list holds admin@glaze.test and demo
// login is enabled.
func New(t testing.TB) *Harness {
	t.Helper()
	h := &Harness{
		Dynamo: awstest.NewDynamo(map[string]string{
			StateTable:       "doc_key",
			OrdersTable:      "order_id",
			IdempotencyTable: "idempotency_key",
		}),
		SQS:        &awstest.SQS{},
		CloudWatch: &awstest.CloudWatch{},
		S3:         awstest.NewS3(),
		Clock:      &Clock{},
		Mail:       &Mail{},
	}
	h.Shell = h.Restart()
	return h
}

// Restart builds a fresh Shell over the same tables, as a new process would.
func (h *Harness) Restart() *storefront.Shell {
	cfg := config.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := docstore.NewRegistry(
		catalog.Schema,
		reviews.Schema,
		settings.Schema,
		auth.SessionsSchema,
		auth.NewDirectorySchema(bcrypt.MinCost),
	)
	h.Docs = docstore.NewStore(h.Dynamo, StateTable, reg)

	cat := catalog.NewStore(h.Docs)
	revs := reviews.NewStore(h.Docs)
	st := settings.NewStore(h.Docs)
	dir := auth.NewDirectory(h.Docs)
	ords := orders.NewStore(h.Dynamo, OrdersTable, idempotency.NewStore(h.Dynamo, IdempotencyTable, 48*time.Hour))

	authSvc := auth.NewService(dir, auth.NewChallenges(cfg.Auth.OTPTTL), verifier{}, st, h.Mail, auth.Options{
		AdminEmails: []string{"admin@glaze.test"},
		DemoLogin:   true,
		BcryptCost:  bcrypt.MinCost,
	}, logger)

	return storefront.New(storefront.Deps{
		Catalog:  cat,
		Reviews:  revs,
		Orders:   ords,
		Auth:     authSvc,
		Sessions: auth.NewSessions(h.Docs),
		Settings: st,
		Backup: backup.NewService(h.S3, Bucket, cfg.Backup.Prefix, backup.Sources{
			Catalog:   cat,
			Reviews:   revs,
			Orders:    ords,
			Directory: dir,
		}, logger),
		Media:      media.NewStore(h.S3, MediaBucket, "images/", MediaURL),
		Consultant: consultant.New(cat, st, model{}, logger),
		Events:     events.NewSQSPublisher(aws.NewPublisher(h.SQS, QueueURL)),
		Metrics:    aws.NewMetrics(h.CloudWatch),
		Checkout:   cfg.Checkout,
		Scheduler:  h.Clock,
		Logger:     logger,
	})
}

func ptr(s string) *string { return &s }

// ConfigureIntegrations stores settings that enable email, PayPal, OAuth and
// the consultant.
func (h *Harness) ConfigureIntegrations(t testing.TB) {
	t.Helper()
	_, err := h.Shell.Settings.Update(context.Background(), validation.SettingsRequest{
		GeminiAPIKey:        ptr("gem-key-1234"),
		OAuthClientID:       ptr("client-id.apps.test"),
		EmailServiceID:      ptr("service_1"),
		EmailSignupTemplate: ptr("tpl_signup"),
		EmailResetTemplate:  ptr("tpl_reset"),
		EmailOrderTemplate:  ptr("tpl_order"),
		EmailPublicKey:      ptr("pub-key-5678"),
		PayPalRecipient:     ptr("shop@glaze.test"),
		MpesaBusinessNumber: ptr("174379"),
		MpesaType:           ptr("paybill"),
	})
	if err != nil {
		t.Fatalf("configure settings: %v", err)
	}
}

// Login signs a customer up through the OTP flow and logs the session in.
func (h *Harness) Login(t testing.TB, sessionID, name, email string) auth.User {
	t.Helper()
	ctx := context.Background()
	if err := h.Shell.Signup(ctx, validation.SignupRequest{Name: name, Email: email, Password: "secret1"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	u, err := h.Shell.VerifySignup(ctx, sessionID, validation.VerifyRequest{Email: email, Code: h.Mail.LastCode()})
	if err != nil {
		t.Fatalf("VerifySignup: %v", err)
	}
	return u
}
