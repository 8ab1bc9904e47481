// Package backup snapshots the storefront's documents and orders to S3 and
// restores them.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/auth"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/idempotency"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/imrishuroy/glaze-storefront/internal/reviews"
)

// Version is the snapshot format written by Create.
const Version = 1

const keyTimeFormat = "20060102T150405Z"

// Snapshot is the JSON document stored per backup.
type Snapshot struct {
	Version   int                     `json:"version"`
	CreatedAt time.Time               `json:"created_at"`
	Catalog   []catalog.Product       `json:"catalog"`
	Reviews   []reviews.Review        `json:"reviews"`
	Orders    []orders.Order          `json:"orders"`
	Directory map[string]auth.Account `json:"directory"`
}

// Info describes a stored backup.
type Info struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Report summarises a restore.
type Report struct {
	Key            string `json:"key"`
	Products       int    `json:"products"`
	Reviews        int    `json:"reviews"`
	Accounts       int    `json:"accounts"`
	OrdersRestored int    `json:"orders_restored"`
	OrdersSkipped  int    `json:"orders_skipped"` // already present
}

type CatalogStore interface {
	List(ctx context.Context) ([]catalog.Product, error)
	Replace(ctx context.Context, products []catalog.Product) error
}

type ReviewStore interface {
	All(ctx context.Context) ([]reviews.Review, error)
	Replace(ctx context.Context, rs []reviews.Review) error
}

type DirectoryStore interface {
	All(ctx context.Context) (map[string]auth.Account, error)
	Replace(ctx context.Context, accounts map[string]auth.Account) error
}

// Sources are the stores a backup reads and a restore writes.
type Sources struct {
	Catalog   CatalogStore
	Reviews   ReviewStore
	Orders    orders.Repository
	Directory DirectoryStore
}

// Service writes backups to one bucket under a key prefix.
type Service struct {
	client  aws.S3API
	bucket  string
	prefix  string
	src     Sources
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewService(client aws.S3API, bucket, prefix string, src Sources, logger *slog.Logger) *Service {
	return &Service{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		src:     src,
		logger:  logger,
		nowFunc: time.Now,
	}
}

var errNotConfigured = apperr.NotConfigured("backup_not_configured", "cloud backup is not set up yet")

func (s *Service) configured() error {
	if s.bucket == "" || s.client == nil {
		return errNotConfigured
	}
	return nil
}

func (s *Service) failed(op string, err error) error {
	s.logger.Error("cloud backup call failed", "op", op, "bucket", s.bucket, "err", err)
	return apperr.Integration("backup_failed", "the cloud backup service is unavailable, please try again", err)
}

// Create stores a snapshot named after the current time.
func (s *Service) Create(ctx context.Context) (Info, error) {
	if err := s.configured(); err != nil {
		return Info{}, err
	}
	snap, err := s.collect(ctx)
	if err != nil {
		return Info{}, err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return Info{}, fmt.Errorf("marshal backup: %w", err)
	}

	key := s.prefix + "glaze-" + snap.CreatedAt.Format(keyTimeFormat) + ".json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return Info{}, s.failed("put", err)
	}
	s.logger.Info("backup created", "key", key, "orders", len(snap.Orders))
	return Info{Key: key, Size: int64(len(body)), CreatedAt: snap.CreatedAt}, nil
}

func (s *Service) collect(ctx context.Context) (Snapshot, error) {
	products, err := s.src.Catalog.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	rs, err := s.src.Reviews.All(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	placed, err := s.src.Orders.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	dir, err := s.src.Directory.All(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Version:   Version,
		CreatedAt: s.nowFunc().UTC().Truncate(time.Second),
		Catalog:   products,
		Reviews:   rs,
		Orders:    placed,
		Directory: dir,
	}, nil
}

// List returns the stored backups, newest first.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	input := &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &s.prefix}
	out := []Info{}
	for {
		page, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, s.failed("list", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || !strings.HasSuffix(*obj.Key, ".json") {
				continue
			}
			info := Info{Key: *obj.Key}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.CreatedAt = *obj.LastModified
			}
			out = append(out, info)
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}
	// keys embed the timestamp, so lexical order is chronological
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Restore replaces the catalog, reviews and directory with the backup's and
// re-creates orders the store no longer has. Orders still present keep their
// current status.
func (s *Service) Restore(ctx context.Context, key string) (Report, error) {
	if err := s.configured(); err != nil {
		return Report{}, err
	}
	if !strings.HasPrefix(key, s.prefix) || !strings.HasSuffix(key, ".json") {
		return Report{}, apperr.Validation("invalid_backup_key", "that is not a backup of this store")
	}
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return Report{}, apperr.NotFound("backup_not_found", "backup not found")
		}
		return Report{}, s.failed("get", err)
	}
	defer obj.Body.Close()

	var snap Snapshot
	dec := json.NewDecoder(obj.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return Report{}, apperr.Validation("malformed_backup", "the backup file could not be read")
	}
	if snap.Version != Version {
		return Report{}, apperr.Validation("unsupported_backup", fmt.Sprintf("backup version %d is not supported", snap.Version))
	}

	if err := s.src.Catalog.Replace(ctx, snap.Catalog); err != nil {
		return Report{}, err
	}
	if err := s.src.Reviews.Replace(ctx, snap.Reviews); err != nil {
		return Report{}, err
	}
	if err := s.src.Directory.Replace(ctx, snap.Directory); err != nil {
		return Report{}, err
	}

	rep := Report{Key: key, Products: len(snap.Catalog), Reviews: len(snap.Reviews), Accounts: len(snap.Directory)}
	for _, o := range snap.Orders {
		created, err := s.src.Orders.CreateOnce(ctx, idempotency.RestoreKey(o.ID), o)
		if err != nil {
			return rep, err
		}
		if created {
			rep.OrdersRestored++
		} else {
			rep.OrdersSkipped++
		}
	}
	s.logger.Info("backup restored", "key", key, "orders_restored", rep.OrdersRestored)
	return rep, nil
}
