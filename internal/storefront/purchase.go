package storefront

import (
	"context"
	"fmt"

	"github.com/imrishuroy/glaze-storefront/internal/cart"
	"github.com/imrishuroy/glaze-storefront/internal/checkout"
	"github.com/imrishuroy/glaze-storefront/internal/events"
	"github.com/imrishuroy/glaze-storefront/internal/idempotency"
	"github.com/imrishuroy/glaze-storefront/internal/media"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

// StartCheckout opens the wizard over the current cart.
func (s *Shell) StartCheckout(ctx context.Context, sessionID string) (checkout.View, error) {
	u, err := s.requireUser(ctx, sessionID)
	if err != nil {
		return checkout.View{}, err
	}
	return s.checkouts.Start(sessionID, u.Email, s.client(sessionID).cart.Items())
}

func (s *Shell) Checkout(sessionID string) (checkout.View, error) {
	return s.checkouts.Get(sessionID)
}

func (s *Shell) SubmitShipping(sessionID string, req validation.ShippingRequest) (checkout.View, error) {
	return s.checkouts.SubmitShipping(sessionID, req)
}

func (s *Shell) SelectMethod(sessionID string, req validation.MethodRequest) (checkout.View, error) {
	if err := validation.Check(req); err != nil {
		return checkout.View{}, err
	}
	return s.checkouts.SelectMethod(sessionID, req.Method)
}

func (s *Shell) PayWithPayPal(ctx context.Context, sessionID string) (checkout.View, error) {
	st, err := s.Settings.Current(ctx)
	if err != nil {
		return checkout.View{}, err
	}
	return s.checkouts.PayWithPayPal(sessionID, st)
}

func (s *Shell) PayWithMobileMoney(ctx context.Context, sessionID string, req validation.MobileMoneyRequest) (checkout.View, error) {
	st, err := s.Settings.Current(ctx)
	if err != nil {
		return checkout.View{}, err
	}
	return s.checkouts.PayWithMobileMoney(sessionID, st, req.Phone)
}

func (s *Shell) GatewayResult(sessionID string, req validation.GatewayRequest) (checkout.View, error) {
	return s.checkouts.GatewayResult(sessionID, req)
}

func (s *Shell) CloseCheckout(sessionID string) error {
	return s.checkouts.Close(sessionID)
}

// completeCheckout turns a paid checkout into an order. The checkout id is
// the order id and the idempotency key, so a retried completion finds the
// order it already created.
func (s *Shell) completeCheckout(ctx context.Context, r checkout.Result) (string, error) {
	o := orders.Order{
		ID:            r.CheckoutID,
		Date:          r.PaidAt.UTC(),
		Customer:      r.Shipping,
		Items:         orderItems(r.Items),
		Total:         r.Total,
		Status:        orders.StatusPending,
		PaymentMethod: r.Method,
		CustomerEmail: r.CustomerEmail,
	}
	created, err := s.Orders.CreateOnce(ctx, idempotency.CheckoutKey(r.CheckoutID), o)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	s.client(r.SessionID).cart.Clear()
	if !created {
		s.Logger.Info("order already recorded for checkout", "checkout_id", r.CheckoutID)
		return o.ID, nil
	}

	s.Logger.Info("order placed", "order_id", o.ID, "email", o.CustomerEmail, "total", o.Total.StringFixed(2))
	if err := s.Events.Publish(ctx, events.OrderPlaced{
		OrderID:       o.ID,
		CustomerEmail: o.CustomerEmail,
		Total:         o.Total,
		PlacedAt:      o.Date,
	}); err != nil {
		s.Logger.Error("publish order event failed", "order_id", o.ID, "err", err)
	}
	if err := s.Metrics.Count(ctx, "OrdersPlaced", 1, map[string]string{"PaymentMethod": string(o.PaymentMethod)}); err != nil {
		s.Logger.Error("record metric failed", "order_id", o.ID, "err", err)
	}
	return o.ID, nil
}

// orderItems copies the checkout lines without embedded image bodies.
func orderItems(items []cart.Item) []cart.Item {
	out := make([]cart.Item, len(items))
	for i, it := range items {
		if media.IsDataURI(it.Image) {
			it.Image = ""
		}
		out[i] = it
	}
	return out
}

// MyOrders lists the orders placed by the session user.
func (s *Shell) MyOrders(ctx context.Context, sessionID string) ([]orders.Order, error) {
	u, err := s.requireUser(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Orders.ListByCustomer(ctx, u.Email)
}
