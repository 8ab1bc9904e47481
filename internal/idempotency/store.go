// Package idempotency records which side effects already ran so retried
// requests and redelivered messages do not repeat them.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
)

// ErrNotClaimed is returned when finishing a key that is not IN_PROGRESS.
var ErrNotClaimed = errors.New("idempotency key is not in progress")

// DefaultLease is how long an IN_PROGRESS claim is honoured without an update
// before another Claim may take it over.
const DefaultLease = 15 * time.Minute

// Store keeps idempotency records in a DynamoDB table keyed by
// idempotency_key. Records expire through the table's expires_at TTL.
type Store struct {
	client  aws.DynamoDBAPI
	table   string
	ttl     time.Duration
	lease   time.Duration
	nowFunc func() time.Time
}

func NewStore(client aws.DynamoDBAPI, table string, ttl time.Duration) *Store {
	return &Store{client: client, table: table, ttl: ttl, lease: DefaultLease, nowFunc: time.Now}
}

// WithLease replaces DefaultLease. Zero disables takeover of stale claims.
func (s *Store) WithLease(d time.Duration) *Store {
	s.lease = d
	return s
}

// TableName is the table the records live in.
func (s *Store) TableName() string { return s.table }

// TTL is the lifetime given to new records.
func (s *Store) TTL() time.Duration { return s.ttl }

func isConditionFailed(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"idempotency_key": &types.AttributeValueMemberS{Value: key}}
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

// Claim takes ownership of key. A new key is created IN_PROGRESS; a FAILED
// key is moved back to IN_PROGRESS so the work is retried. An IN_PROGRESS key
// whose updated_at is older than the lease was abandoned by a crashed owner
// and is taken over. Other IN_PROGRESS keys and DONE keys yield false.
func (s *Store) Claim(ctx context.Context, key, orderID string) (bool, error) {
	created, err := s.create(ctx, key, orderID)
	if err != nil || created {
		return created, err
	}

	raw, rec, err := s.get(ctx, key)
	if err != nil || rec == nil {
		return false, err
	}

	switch {
	case rec.Status == StatusFailed:
		err = s.transition(ctx, key, StatusFailed, StatusInProgress, "", "")
	case rec.Status == StatusInProgress && s.stale(rec):
		err = s.takeOver(ctx, key, raw["updated_at"])
	default:
		return false, nil
	}
	if errors.Is(err, ErrNotClaimed) {
		// Another consumer reclaimed it first.
		return false, nil
	}
	return err == nil, err
}

func (s *Store) stale(rec *Record) bool {
	return s.lease > 0 && !rec.UpdatedAt.IsZero() && s.nowFunc().Sub(rec.UpdatedAt) >= s.lease
}

// takeOver refreshes updated_at on an IN_PROGRESS key, provided nobody
// touched it since seen was read.
func (s *Store) takeOver(ctx context.Context, key string, seen types.AttributeValue) error {
	if seen == nil {
		return fmt.Errorf("%s has no updated_at: %w", key, ErrNotClaimed)
	}
	values := map[string]types.AttributeValue{
		":from": str(StatusInProgress),
		":seen": seen,
		":ua":   str(s.nowFunc().UTC().Format(time.RFC3339Nano)),
	}
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.table,
		Key:                       keyAttr(key),
		UpdateExpression:          aws.String("SET updated_at = :ua"),
		ConditionExpression:       aws.String("#s = :from AND updated_at = :seen"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("%s take over: %w", key, ErrNotClaimed)
	}
	if err != nil {
		return fmt.Errorf("take over %s: %w", key, err)
	}
	return nil
}

func (s *Store) create(ctx context.Context, key, orderID string) (bool, error) {
	item, err := attributevalue.MarshalMap(NewRecord(key, orderID, s.nowFunc(), s.ttl))
	if err != nil {
		return false, fmt.Errorf("marshal record %s: %w", key, err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.table,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(idempotency_key)"),
	})
	switch {
	case err == nil:
		return true, nil
	case isConditionFailed(err):
		return false, nil
	default:
		return false, fmt.Errorf("create record %s: %w", key, err)
	}
}

// Get returns the record for key, or (nil, nil) when there is none.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	_, rec, err := s.get(ctx, key)
	return rec, err
}

func (s *Store) get(ctx context.Context, key string) (map[string]types.AttributeValue, *Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{TableName: &s.table, Key: keyAttr(key)})
	if err != nil {
		return nil, nil, fmt.Errorf("get record %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, nil, fmt.Errorf("unmarshal record %s: %w", key, err)
	}
	return out.Item, &rec, nil
}

// MarkDone finishes a claimed key and keeps a short summary of the outcome.
func (s *Store) MarkDone(ctx context.Context, key, result string) error {
	return s.transition(ctx, key, StatusInProgress, StatusDone, "result", result)
}

// MarkFailed releases a claimed key for a later Claim, recording why.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	return s.transition(ctx, key, StatusInProgress, StatusFailed, "note", note)
}

// transition moves key from one status to another, optionally setting one
// more string attribute. A record not in the from status yields ErrNotClaimed.
func (s *Store) transition(ctx context.Context, key, from, to, attr, value string) error {
	expr := "SET #s = :to, updated_at = :ua"
	names := map[string]string{"#s": "status"}
	values := map[string]types.AttributeValue{
		":from": str(from),
		":to":   str(to),
		":ua":   str(s.nowFunc().UTC().Format(time.RFC3339)),
	}
	if attr != "" {
		expr += ", #a = :a"
		names["#a"] = attr
		values[":a"] = str(value)
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.table,
		Key:                       keyAttr(key),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("#s = :from"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("%s %s to %s: %w", key, from, to, ErrNotClaimed)
	}
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", key, to, err)
	}
	return nil
}
