// Package docstore persists versioned JSON documents in a DynamoDB table.
//
// Each document is an Envelope holding the schema name and version it was
// written with and a revision counter used for optimistic concurrency.
// Bodies are decoded strictly; older versions are upgraded in memory and
// unknown shapes are rejected.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
)

const maxUpdateAttempts = 3

// Store reads and writes documents in the state table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	registry  *Registry
	nowFunc   func() time.Time
}

// NewStore creates a new document Store.
func NewStore(client aws.DynamoDBAPI, tableName string, registry *Registry) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		registry:  registry,
		nowFunc:   time.Now,
	}
}

// Load decodes the document stored under key into dst and returns its revision.
func (s *Store) Load(ctx context.Context, key, schema string, dst any) (int64, error) {
	sc, err := s.registry.lookup(schema)
	if err != nil {
		return 0, err
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            docKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("get document %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return 0, ErrNotFound
	}

	var env Envelope
	if err := attributevalue.UnmarshalMap(out.Item, &env); err != nil {
		return 0, fmt.Errorf("%w: envelope %s: %v", ErrMalformed, key, err)
	}
	if env.Schema != sc.Name {
		return 0, fmt.Errorf("%w: %s holds %q, want %q", ErrUnknownSchema, key, env.Schema, sc.Name)
	}
	if env.SchemaVersion > sc.Version || env.SchemaVersion < 1 {
		return 0, fmt.Errorf("%w: %s is %s v%d, current v%d", ErrUnknownSchema, key, env.Schema, env.SchemaVersion, sc.Version)
	}

	body, err := sc.upgrade(env.SchemaVersion, []byte(env.Body))
	if err != nil {
		return 0, err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return env.Revision, nil
}

// Save writes v under key if the stored revision still equals expectedRev
// (0 means the document must not exist yet) and returns the new revision.
func (s *Store) Save(ctx context.Context, key, schema string, expectedRev int64, v any) (int64, error) {
	sc, err := s.registry.lookup(schema)
	if err != nil {
		return 0, err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal document %s: %w", key, err)
	}

	env := Envelope{
		Key:           key,
		Schema:        sc.Name,
		SchemaVersion: sc.Version,
		Revision:      expectedRev + 1,
		Body:          string(body),
		UpdatedAt:     s.nowFunc().UTC().Format(time.RFC3339),
	}
	item, err := attributevalue.MarshalMap(env)
	if err != nil {
		return 0, fmt.Errorf("marshal envelope %s: %w", key, err)
	}

	input := &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}
	if expectedRev == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(doc_key)")
	} else {
		input.ConditionExpression = aws.String("revision = :expected")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedRev, 10)},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("put document %s: %w", key, err)
	}
	return env.Revision, nil
}

// Delete removes the document stored under key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key:       docKey(key),
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

// Read loads the document under key, or returns seed() when none is stored.
func Read[D any](ctx context.Context, s *Store, key, schema string, seed func() D) (D, error) {
	var d D
	_, err := s.Load(ctx, key, schema, &d)
	if errors.Is(err, ErrNotFound) {
		return seed(), nil
	}
	if err != nil {
		var zero D
		return zero, err
	}
	return d, nil
}

// Update loads the document under key (seed() when missing), applies fn and
// saves the result with the loaded revision. A lost revision check reloads and
// retries. An error from fn aborts without saving.
func Update[D any](ctx context.Context, s *Store, key, schema string, seed func() D, fn func(*D) error) (D, error) {
	var zero D
	for attempt := 1; ; attempt++ {
		var d D
		rev, err := s.Load(ctx, key, schema, &d)
		switch {
		case errors.Is(err, ErrNotFound):
			d, rev = seed(), 0
		case err != nil:
			return zero, err
		}

		if err := fn(&d); err != nil {
			return zero, err
		}

		_, err = s.Save(ctx, key, schema, rev, d)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrConflict) || attempt == maxUpdateAttempts {
			return zero, err
		}
	}
}

func docKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"doc_key": &types.AttributeValueMemberS{Value: key},
	}
}
