// Package orders stores completed checkouts and enforces the status lifecycle.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
	"github.com/imrishuroy/glaze-storefront/internal/idempotency"
)

// ErrStatusMismatch is returned by UpdateStatus when the stored status is not the expected one.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// record is the item stored in the orders table. The immutable part of the
// order is one JSON attribute; status is the only attribute ever updated.
type record struct {
	OrderID       string    `dynamodbav:"order_id"` // PK
	Status        Status    `dynamodbav:"status"`
	CustomerEmail string    `dynamodbav:"customer_email"`
	Total         string    `dynamodbav:"total"`
	Snapshot      string    `dynamodbav:"snapshot"`
	CreatedAt     time.Time `dynamodbav:"created_at"`
	UpdatedAt     time.Time `dynamodbav:"updated_at"`
}

var _ Repository = (*Store)(nil)

// Store encapsulates operations on the orders table.
type Store struct {
	client      aws.DynamoDBAPI
	tableName   string
	idempotency *idempotency.Store
	nowFunc     func() time.Time
}

// NewStore creates a new orders Store. Creation is guarded by records in
// the idempotency store's table.
func NewStore(client aws.DynamoDBAPI, tableName string, idem *idempotency.Store) *Store {
	return &Store{
		client:      client,
		tableName:   tableName,
		idempotency: idem,
		nowFunc:     time.Now,
	}
}

func (s *Store) toRecord(o Order) (record, error) {
	now := s.nowFunc()
	if o.Date.IsZero() {
		o.Date = now
	}
	snap, err := json.Marshal(snapshotOf(o))
	if err != nil {
		return record{}, fmt.Errorf("marshal order snapshot: %w", err)
	}
	return record{
		OrderID:       o.ID,
		Status:        o.Status,
		CustomerEmail: o.CustomerEmail,
		Total:         o.Total.StringFixed(2),
		Snapshot:      string(snap),
		CreatedAt:     o.Date,
		UpdatedAt:     now,
	}, nil
}

func fromRecord(r record) (Order, error) {
	var snap snapshot
	if err := json.Unmarshal([]byte(r.Snapshot), &snap); err != nil {
		return Order{}, fmt.Errorf("unmarshal order snapshot %s: %w", r.OrderID, err)
	}
	return snap.order(r.OrderID, r.CustomerEmail, r.Status, r.UpdatedAt), nil
}

// CreateOnce atomically creates:
//   - idempotency record under key (ConditionExpression attribute_not_exists(idempotency_key))
//   - order record in the orders table (ConditionExpression attribute_not_exists(order_id))
//
// created=false without error means the key or the order id is already
// taken. Any other cancellation, such as throttling or a conflicting
// transaction, is returned as an error.
func (s *Store) CreateOnce(ctx context.Context, key string, o Order) (bool, error) {
	if o.Date.IsZero() {
		o.Date = s.nowFunc()
	}
	idem := idempotency.NewRecord(key, o.ID, s.nowFunc(), s.idempotency.TTL())
	idem.Status = idempotency.StatusDone
	idempMap, err := attributevalue.MarshalMap(idem)
	if err != nil {
		return false, fmt.Errorf("marshal idempotency item: %w", err)
	}

	rec, err := s.toRecord(o)
	if err != nil {
		return false, err
	}
	orderMap, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal order item: %w", err)
	}

	idempTable := s.idempotency.TableName()
	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempTable,
					Item:                idempMap,
					ConditionExpression: aws.String("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: aws.String("attribute_not_exists(order_id)"),
				},
			},
		},
	})
	if err == nil {
		return true, nil
	}
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || !conditionFailed(tce) {
		return false, fmt.Errorf("transact write: %w", err)
	}

	// Confirm what blocked the write before reporting it as a duplicate.
	rec, gerr := s.idempotency.Get(ctx, key)
	if gerr != nil {
		return false, fmt.Errorf("check idempotency record: %w", gerr)
	}
	if rec != nil {
		return false, nil
	}
	existing, gerr := s.Get(ctx, o.ID)
	if gerr != nil {
		return false, fmt.Errorf("check existing order: %w", gerr)
	}
	if existing != nil {
		return false, nil
	}
	return false, fmt.Errorf("transact write cancelled with nothing stored: %w", err)
}

func conditionFailed(tce *types.TransactionCanceledException) bool {
	for _, r := range tce.CancellationReasons {
		if r.Code != nil && *r.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	key := map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var r record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	o, err := fromRecord(r)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns every order, newest first.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	return s.scan(ctx, &dyn.ScanInput{TableName: &s.tableName})
}

// ListByCustomer returns the orders placed by email, newest first.
func (s *Store) ListByCustomer(ctx context.Context, email string) ([]Order, error) {
	return s.scan(ctx, &dyn.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("customer_email = :e"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: email},
		},
	})
}

func (s *Store) scan(ctx context.Context, input *dyn.ScanInput) ([]Order, error) {
	out := []Order{}
	for {
		page, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		for _, item := range page.Items {
			var r record
			if err := attributevalue.UnmarshalMap(item, &r); err != nil {
				return nil, fmt.Errorf("unmarshal order: %w", err)
			}
			o, err := fromRecord(r)
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
	sortNewestFirst(out)
	return out, nil
}

// UpdateStatus conditionally updates the order status from expected -> next.
// Returns nil on success, ErrStatusMismatch if condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expected, next Status) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         aws.String("SET #s = :new, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(next)},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		},
		ConditionExpression: aws.String("#s = :expected"),
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}
