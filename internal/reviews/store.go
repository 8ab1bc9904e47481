// Package reviews stores product reviews left by customers and guests.
package reviews

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/docstore"
)

var Schema = docstore.Schema{Name: SchemaName, Version: 1}

// Store keeps the review document in the state table.
type Store struct {
	docs    *docstore.Store
	nowFunc func() time.Time
}

func NewStore(docs *docstore.Store) *Store {
	return &Store{docs: docs, nowFunc: time.Now}
}

// Add records a review. author is the session user's name, or the name a
// guest typed in; it is required either way.
func (s *Store) Add(ctx context.Context, productID, author string, rating int, comment string) (Review, error) {
	if rating < 1 || rating > 5 {
		return Review{}, apperr.Validation("invalid_rating", "rating must be between 1 and 5")
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return Review{}, apperr.Validation("name_required", "please enter your name")
	}
	now := s.nowFunc().UTC()
	r := Review{
		ID:        fmt.Sprintf("r%d", now.UnixMilli()),
		ProductID: productID,
		Author:    author,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		Date:      now,
	}
	_, err := docstore.Update(ctx, s.docs, DocKey, SchemaName, seedDoc, func(d *document) error {
		d.Reviews = append([]Review{r}, d.Reviews...)
		return nil
	})
	if err != nil {
		return Review{}, err
	}
	return r, nil
}

// All returns every review, newest first.
func (s *Store) All(ctx context.Context) ([]Review, error) {
	doc, err := docstore.Read(ctx, s.docs, DocKey, SchemaName, seedDoc)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	return doc.Reviews, nil
}

// ListByProduct returns the reviews of one product, newest first.
func (s *Store) ListByProduct(ctx context.Context, productID string) ([]Review, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := []Review{}
	for _, r := range all {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Summary aggregates the reviews of one product.
func (s *Store) Summary(ctx context.Context, productID string) (Summary, error) {
	rs, err := s.ListByProduct(ctx, productID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(rs), nil
}

// Summarize computes count, exact average and rounded stars.
func Summarize(rs []Review) Summary {
	if len(rs) == 0 {
		return Summary{}
	}
	sum := 0
	for _, r := range rs {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(rs))
	// half-up like the storefront's star widget
	return Summary{Count: len(rs), Average: avg, Stars: int(math.Floor(avg + 0.5))}
}

// Replace overwrites every review, as a backup restore does.
func (s *Store) Replace(ctx context.Context, rs []Review) error {
	_, err := docstore.Update(ctx, s.docs, DocKey, SchemaName, seedDoc, func(d *document) error {
		d.Reviews = rs
		return nil
	})
	return err
}
