package orders

import (
	"context"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/cart"
	"github.com/shopspring/decimal"
)

// Status is an order's fulfilment state.
type Status string

// Order statuses
const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists the taxonomy in progression order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	MethodPayPal PaymentMethod = "paypal"
	MethodMpesa  PaymentMethod = "mpesa"
)

// ShippingDetails is captured once per checkout and embedded in the order.
type ShippingDetails struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
}

// Order is the record of a completed checkout. Everything but Status is
// fixed at creation.
type Order struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Customer      ShippingDetails `json:"customer"`
	Items         []cart.Item     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CustomerEmail string          `json:"customer_email"` // account that placed it
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Repository is an order store. Get returns (nil, nil) for an unknown id.
type Repository interface {
	// CreateOnce stores o unless an order was already stored under key.
	CreateOnce(ctx context.Context, key string, o Order) (created bool, err error)
	Get(ctx context.Context, id string) (*Order, error)
	// List returns every order, newest first.
	List(ctx context.Context) ([]Order, error)
	// ListByCustomer returns the orders placed by one account, newest first.
	ListByCustomer(ctx context.Context, email string) ([]Order, error)
	// UpdateStatus moves the order from expected to next, or fails with ErrStatusMismatch.
	UpdateStatus(ctx context.Context, id string, expected, next Status) error
}

// snapshot is the immutable part of an order as persisted.
type snapshot struct {
	Date          time.Time       `json:"date"`
	Customer      ShippingDetails `json:"customer"`
	Items         []cart.Item     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
}

func snapshotOf(o Order) snapshot {
	return snapshot{
		Date:          o.Date,
		Customer:      o.Customer,
		Items:         o.Items,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
	}
}

func (s snapshot) order(id, email string, status Status, updated time.Time) Order {
	return Order{
		ID:            id,
		Date:          s.Date,
		Customer:      s.Customer,
		Items:         s.Items,
		Total:         s.Total,
		Status:        status,
		PaymentMethod: s.PaymentMethod,
		CustomerEmail: email,
		UpdatedAt:     updated,
	}
}
