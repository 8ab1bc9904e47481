package idempotency

import "time"

const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is one guarded side effect. Keys are namespaced by what they
// guard; see CheckoutKey, NotifyKey and RestoreKey.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"`
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	Result         string    `dynamodbav:"result,omitempty"`
	Note           string    `dynamodbav:"note,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`

	// ExpiresAt is the table's TTL attribute, in epoch seconds.
	ExpiresAt int64 `dynamodbav:"expires_at"`
}

// NewRecord returns an IN_PROGRESS record expiring ttl after now.
func NewRecord(key, orderID string, now time.Time, ttl time.Duration) Record {
	return Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		OrderID:        orderID,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(ttl).Unix(),
	}
}

// CheckoutKey guards order creation for one checkout.
func CheckoutKey(checkoutID string) string { return "checkout:" + checkoutID }

// NotifyKey guards the confirmation email of one order.
func NotifyKey(orderID string) string { return "notify:" + orderID }

// RestoreKey guards re-inserting one order from a backup.
func RestoreKey(orderID string) string { return "restore:" + orderID }
