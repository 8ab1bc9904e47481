// Package config loads service configuration: defaults, then an optional
// YAML or JSON file named by GLAZE_CONFIG, then environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	HTTPAddr string `yaml:"httpAddr" json:"httpAddr"`
	RunLocal bool   `yaml:"runLocal" json:"runLocal"`
	LogLevel string `yaml:"logLevel" json:"logLevel"`

	AWS      AWS      `yaml:"aws" json:"aws"`
	Tables   Tables   `yaml:"tables" json:"tables"`
	Orders   Orders   `yaml:"orders" json:"orders"`
	Events   Events   `yaml:"events" json:"events"`
	Backup   Backup   `yaml:"backup" json:"backup"`
	Media    Media    `yaml:"media" json:"media"`
	Auth     Auth     `yaml:"auth" json:"auth"`
	Checkout Checkout `yaml:"checkout" json:"checkout"`
}

// AWS configures the SDK clients. Endpoint points every client at a local
// emulator such as LocalStack.
type AWS struct {
	Region      string `yaml:"region" json:"region"`
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	MaxAttempts int    `yaml:"maxAttempts" json:"maxAttempts"`
}

// Tables names the DynamoDB tables.
type Tables struct {
	State       string `yaml:"state" json:"state"`
	Orders      string `yaml:"orders" json:"orders"`
	Idempotency string `yaml:"idempotency" json:"idempotency"`
}

// Orders selects the order store backend.
type Orders struct {
	Backend     string `yaml:"backend" json:"backend"` // dynamodb | postgres
	DatabaseURL string `yaml:"databaseURL" json:"databaseURL"`
}

// Events selects where order events are published.
type Events struct {
	Backend      string   `yaml:"backend" json:"backend"` // sqs | kafka | none
	QueueURL     string   `yaml:"queueURL" json:"queueURL"`
	KafkaBrokers []string `yaml:"kafkaBrokers" json:"kafkaBrokers"`
	Topic        string   `yaml:"topic" json:"topic"`
	GroupID      string   `yaml:"groupID" json:"groupID"`
}

// Media configures where uploaded product images are stored. BaseURL is the
// public address of the bucket; it defaults to the bucket's S3 address.
type Media struct {
	Bucket  string `yaml:"bucket" json:"bucket"`
	Prefix  string `yaml:"prefix" json:"prefix"`
	BaseURL string `yaml:"baseURL" json:"baseURL"`
}

// PublicURL is BaseURL or the virtual-hosted S3 address of the bucket.
func (m Media) PublicURL(region string) string {
	if m.BaseURL != "" || m.Bucket == "" {
		return m.BaseURL
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", m.Bucket, region)
}

// Backup configures the S3 bucket catalog backups go to.
type Backup struct {
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// Auth configures the authentication flows.
type Auth struct {
	AdminEmails      []string      `yaml:"adminEmails" json:"adminEmails"`
	DemoLogin        bool          `yaml:"demoLogin" json:"demoLogin"`
	OTPTTL           time.Duration `yaml:"otpTTL" json:"otpTTL"`
	JWKSURL          string        `yaml:"jwksURL" json:"jwksURL"`
	TrustedIssuers   []string      `yaml:"trustedIssuers" json:"trustedIssuers"`
	MinPasswordChars int           `yaml:"minPasswordChars" json:"minPasswordChars"`
}

// Checkout holds the payment simulation timings.
type Checkout struct {
	PayPalConfirmDelay time.Duration `yaml:"paypalConfirmDelay" json:"paypalConfirmDelay"`
	PushSendDelay      time.Duration `yaml:"pushSendDelay" json:"pushSendDelay"`
	PushConfirmDelay   time.Duration `yaml:"pushConfirmDelay" json:"pushConfirmDelay"`
	GatewayTimeout     time.Duration `yaml:"gatewayTimeout" json:"gatewayTimeout"`
	SuccessDisplay     time.Duration `yaml:"successDisplay" json:"successDisplay"`
	ReturnURL          string        `yaml:"returnURL" json:"returnURL"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
		AWS:      AWS{Region: "us-east-1"},
		Tables: Tables{
			State:       "glaze-state",
			Orders:      "glaze-orders",
			Idempotency: "glaze-idempotency",
		},
		Orders: Orders{Backend: "dynamodb"},
		Events: Events{
			Backend: "sqs",
			Topic:   "orders.placed",
			GroupID: "glaze-worker",
		},
		Backup: Backup{Prefix: "backups/"},
		Media:  Media{Prefix: "images/"},
		Auth: Auth{
			OTPTTL:           10 * time.Minute,
			JWKSURL:          "https://www.googleapis.com/oauth2/v3/certs",
			TrustedIssuers:   []string{"accounts.google.com", "https://accounts.google.com"},
			MinPasswordChars: 6,
		},
		Checkout: Checkout{
			PayPalConfirmDelay: 5 * time.Second,
			PushSendDelay:      2 * time.Second,
			PushConfirmDelay:   5 * time.Second,
			GatewayTimeout:     10 * time.Minute,
			SuccessDisplay:     3 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the GLAZE_CONFIG file and the environment.
func Load() (*Config, error) {
	c := New()
	if path := os.Getenv("GLAZE_CONFIG"); path != "" {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile loads configuration from a file (YAML or JSON based on extension).
// Zero values in the file keep the current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &loaded); err != nil {
			return fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	c.merge(&loaded)
	return nil
}

func (c *Config) merge(l *Config) {
	setStr(&c.HTTPAddr, l.HTTPAddr)
	setStr(&c.LogLevel, l.LogLevel)
	c.RunLocal = c.RunLocal || l.RunLocal

	setStr(&c.AWS.Region, l.AWS.Region)
	setStr(&c.AWS.Endpoint, l.AWS.Endpoint)
	if l.AWS.MaxAttempts > 0 {
		c.AWS.MaxAttempts = l.AWS.MaxAttempts
	}

	setStr(&c.Tables.State, l.Tables.State)
	setStr(&c.Tables.Orders, l.Tables.Orders)
	setStr(&c.Tables.Idempotency, l.Tables.Idempotency)

	setStr(&c.Orders.Backend, l.Orders.Backend)
	setStr(&c.Orders.DatabaseURL, l.Orders.DatabaseURL)

	setStr(&c.Events.Backend, l.Events.Backend)
	setStr(&c.Events.QueueURL, l.Events.QueueURL)
	setStr(&c.Events.Topic, l.Events.Topic)
	setStr(&c.Events.GroupID, l.Events.GroupID)
	if len(l.Events.KafkaBrokers) > 0 {
		c.Events.KafkaBrokers = l.Events.KafkaBrokers
	}

	setStr(&c.Backup.Bucket, l.Backup.Bucket)
	setStr(&c.Backup.Prefix, l.Backup.Prefix)

	setStr(&c.Media.Bucket, l.Media.Bucket)
	setStr(&c.Media.Prefix, l.Media.Prefix)
	setStr(&c.Media.BaseURL, l.Media.BaseURL)

	if len(l.Auth.AdminEmails) > 0 {
		c.Auth.AdminEmails = l.Auth.AdminEmails
	}
	if len(l.Auth.TrustedIssuers) > 0 {
		c.Auth.TrustedIssuers = l.Auth.TrustedIssuers
	}
	c.Auth.DemoLogin = c.Auth.DemoLogin || l.Auth.DemoLogin
	setDur(&c.Auth.OTPTTL, l.Auth.OTPTTL)
	setStr(&c.Auth.JWKSURL, l.Auth.JWKSURL)
	if l.Auth.MinPasswordChars > 0 {
		c.Auth.MinPasswordChars = l.Auth.MinPasswordChars
	}

	setDur(&c.Checkout.PayPalConfirmDelay, l.Checkout.PayPalConfirmDelay)
	setDur(&c.Checkout.PushSendDelay, l.Checkout.PushSendDelay)
	setDur(&c.Checkout.PushConfirmDelay, l.Checkout.PushConfirmDelay)
	setDur(&c.Checkout.GatewayTimeout, l.Checkout.GatewayTimeout)
	setDur(&c.Checkout.SuccessDisplay, l.Checkout.SuccessDisplay)
	setStr(&c.Checkout.ReturnURL, l.Checkout.ReturnURL)
}

// setStr overwrites dst unless v is empty.
func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// setDur overwrites dst unless v is zero.
func setDur(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// splitList splits a comma separated value, trimming entries and dropping
// empty ones.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"HTTP_ADDR":             &c.HTTPAddr,
		"LOG_LEVEL":             &c.LogLevel,
		"AWS_REGION":            &c.AWS.Region,
		"AWS_ENDPOINT_OVERRIDE": &c.AWS.Endpoint,
		"STATE_TABLE":           &c.Tables.State,
		"ORDERS_TABLE":          &c.Tables.Orders,
		"IDEMPOTENCY_TABLE":     &c.Tables.Idempotency,
		"ORDERS_BACKEND":        &c.Orders.Backend,
		"DATABASE_URL":          &c.Orders.DatabaseURL,
		"EVENTS_BACKEND":        &c.Events.Backend,
		"ORDERS_QUEUE_URL":      &c.Events.QueueURL,
		"ORDERS_TOPIC":          &c.Events.Topic,
		"BACKUP_BUCKET":         &c.Backup.Bucket,
		"MEDIA_BUCKET":          &c.Media.Bucket,
		"MEDIA_BASE_URL":        &c.Media.BaseURL,
		"CHECKOUT_RETURN_URL":   &c.Checkout.ReturnURL,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Events.KafkaBrokers = splitList(v)
	}
	if v, ok := lookup("ADMIN_EMAILS"); ok && v != "" {
		c.Auth.AdminEmails = splitList(v)
	}

	flags := map[string]*bool{
		"RUN_LOCAL":  &c.RunLocal,
		"DEMO_LOGIN": &c.Auth.DemoLogin,
	}
	for key, dst := range flags {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = b
	}

	switch c.Orders.Backend {
	case "dynamodb", "postgres":
	default:
		return fmt.Errorf("unknown orders backend %q", c.Orders.Backend)
	}
	switch c.Events.Backend {
	case "sqs", "kafka", "none":
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}
	return nil
}
