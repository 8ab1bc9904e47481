// Package checkout drives the per-session checkout wizard: shipping details,
// payment method and one of the payment simulations, ending in an order.
package checkout

import (
	"context"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/cart"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/shopspring/decimal"
)

// Step is a wizard state.
type Step string

const (
	StepShipping     Step = "SHIPPING"
	StepSelectMethod Step = "SELECT_METHOD"
	StepPayPal       Step = "PAYPAL"
	StepMpesa        Step = "MPESA"
	StepProcessing   Step = "PROCESSING"
	StepPushSent     Step = "MPESA_PUSH_SENT"
	StepSuccess      Step = "SUCCESS"
)

// locked reports whether the wizard may not be closed in this step.
func (s Step) locked() bool { return s == StepProcessing || s == StepPushSent }

// GatewayParams configures the client-side payment widget.
type GatewayParams struct {
	PublicKey string `json:"public_key"`
	Live      bool   `json:"live"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	APIRef    string `json:"api_ref"` // checkout id, echoed back in the widget callback
}

// PushDetails describes a simulated mobile-money push.
type PushDetails struct {
	Phone          string `json:"phone"`
	BusinessNumber string `json:"business_number,omitempty"`
	BusinessType   string `json:"business_type,omitempty"`
}

// View is what a client sees of its wizard.
type View struct {
	ID          string                  `json:"id"`
	Step        Step                    `json:"step"`
	Items       []cart.Item             `json:"items"`
	Total       decimal.Decimal         `json:"total"`
	Shipping    *orders.ShippingDetails `json:"shipping,omitempty"`
	Method      orders.PaymentMethod    `json:"method,omitempty"`
	RedirectURL string                  `json:"redirect_url,omitempty"`
	Gateway     *GatewayParams          `json:"gateway,omitempty"`
	Push        *PushDetails            `json:"push,omitempty"`
	OrderID     string                  `json:"order_id,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Closable    bool                    `json:"closable"`
}

// Result is a paid checkout, handed to the Completion.
type Result struct {
	CheckoutID    string
	SessionID     string
	CustomerEmail string
	Method        orders.PaymentMethod
	Shipping      orders.ShippingDetails
	Items         []cart.Item
	Total         decimal.Decimal
	PaidAt        time.Time
}

// Completion records a paid checkout and returns the order id. It may be
// called again for the same checkout id after a failure and must not create a
// second order when it is.
type Completion func(ctx context.Context, r Result) (orderID string, err error)
