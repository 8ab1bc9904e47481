// Package media keeps uploaded product images in S3 so catalog documents
// and order snapshots only carry a URL.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
)

// MaxImageBytes is the largest decoded upload accepted.
const MaxImageBytes = 1 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Store uploads images to one bucket. baseURL is the public address the
// bucket is served from.
type Store struct {
	client  aws.S3API
	bucket  string
	prefix  string
	baseURL string
	nowFunc func() time.Time
}

func NewStore(client aws.S3API, bucket, prefix, baseURL string) *Store {
	return &Store{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		nowFunc: time.Now,
	}
}

// IsDataURI reports whether image is an embedded upload rather than a URL.
func IsDataURI(image string) bool { return strings.HasPrefix(image, "data:") }

// Put stores a base64 data URI for productID and returns its public URL.
func (s *Store) Put(ctx context.Context, productID, dataURI string) (string, error) {
	if s == nil || s.bucket == "" {
		return "", apperr.NotConfigured("image_upload_not_configured", "image uploads are not set up, use an image URL")
	}
	mime, body, err := decodeDataURI(dataURI)
	if err != nil {
		return "", apperr.Validation("invalid_image", err.Error())
	}
	ext, ok := extensions[mime]
	if !ok {
		return "", apperr.Validation("unsupported_image", "images must be jpeg, png, webp or gif")
	}
	if len(body) > MaxImageBytes {
		return "", apperr.Validation("image_too_large", fmt.Sprintf("images are limited to %d KiB", MaxImageBytes>>10))
	}
	if productID == "" {
		productID = "product"
	}

	key := fmt.Sprintf("%s%s-%d%s", s.prefix, productID, s.nowFunc().UnixMilli(), ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       &s.bucket,
		Key:          &key,
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(mime),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", apperr.Integration("image_upload_failed", "the image could not be stored, please try again", err)
	}
	return s.baseURL + "/" + key, nil
}

// decodeDataURI accepts "data:<mime>;base64,<payload>".
func decodeDataURI(uri string) (mime string, body []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("image is not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data URI has no payload")
	}
	mime, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("data URI must be base64 encoded")
	}
	body, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data URI payload: %w", err)
	}
	return strings.ToLower(mime), body, nil
}
