package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/cart"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/config"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
	"github.com/shopspring/decimal"
)

// manual is a Scheduler driven by Advance.
type manual struct {
	now   time.Duration
	tasks []*manualTask
}

type manualTask struct {
	due     time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (m *manual) AfterFunc(d time.Duration, f func()) Task {
	t := &manualTask{due: m.now + d, f: f}
	m.tasks = append(m.tasks, t)
	return t
}

func (m *manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		var next *manualTask
		for _, t := range m.tasks {
			if t.stopped || t.fired || t.due > target {
				continue
			}
			if next == nil || t.due < next.due {
				next = t
			}
		}
		if next == nil {
			break
		}
		m.now = next.due
		next.fired = true
		next.f()
	}
	m.now = target
}

type harness struct {
	reg      *Registry
	clock    *manual
	results  []Result
	failNext error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: &manual{}}
	opts := config.New().Checkout
	opts.ReturnURL = "https://glaze.test/"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.reg = NewRegistry(opts, h.clock, func(ctx context.Context, r Result) (string, error) {
		h.results = append(h.results, r)
		if h.failNext != nil {
			err := h.failNext
			h.failNext = nil
			return "", err
		}
		return "order-" + r.CheckoutID, nil
	}, logger)
	n := 0
	h.reg.newID = func() string {
		n++
		return "chk-" + string(rune('0'+n))
	}
	return h
}

func items() []cart.Item {
	return []cart.Item{
		{Product: catalog.Product{ID: "p1", Name: "Crystal Clear", Price: decimal.NewFromInt(18)}, Quantity: 2},
		{Product: catalog.Product{ID: "p4", Name: "Berry Bite", Price: decimal.NewFromInt(22)}, Quantity: 1},
	}
}

func shipping() validation.ShippingRequest {
	return validation.ShippingRequest{
		Name: "Ann", Email: "ann@glaze.test", Phone: "0712345678", Address: "1 Gloss Lane", City: "Nairobi",
	}
}

// toMethod drives a fresh wizard up to the given payment method step.
func (h *harness) toMethod(t *testing.T, session, method string) {
	t.Helper()
	if _, err := h.reg.Start(session, "ann@glaze.test", items()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.reg.SubmitShipping(session, shipping()); err != nil {
		t.Fatalf("SubmitShipping: %v", err)
	}
	if _, err := h.reg.SelectMethod(session, method); err != nil {
		t.Fatalf("SelectMethod: %v", err)
	}
}

func TestStartPreconditions(t *testing.T) {
	h := newHarness(t)
	if _, err := h.reg.Start("s", "", items()); apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := h.reg.Start("s", "ann@glaze.test", nil); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	v, err := h.reg.Start("s", "ann@glaze.test", items())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v.Step != StepShipping || !v.Total.Equal(decimal.NewFromInt(58)) || !v.Closable {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestStartSnapshotsItems(t *testing.T) {
	h := newHarness(t)
	in := items()
	if _, err := h.reg.Start("s", "ann@glaze.test", in); err != nil {
		t.Fatalf("Start: %v", err)
	}
	in[0].Quantity = 10
	v, _ := h.reg.Get("s")
	if v.Items[0].Quantity != 2 || !v.Total.Equal(decimal.NewFromInt(58)) {
		t.Fatalf("wizard must hold its own copy: %+v", v.Items)
	}
}

func TestShippingValidation(t *testing.T) {
	h := newHarness(t)
	_, _ = h.reg.Start("s", "ann@glaze.test", items())

	req := shipping()
	req.City = "  "
	_, err := h.reg.SubmitShipping("s", req)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindValidation || e.Fields["city"] == "" {
		t.Fatalf("expected city error, got %v", err)
	}
	if _, err := h.reg.SelectMethod("s", "paypal"); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("method selection before shipping must fail, got %v", err)
	}
	v, err := h.reg.SubmitShipping("s", shipping())
	if err != nil || v.Step != StepSelectMethod || v.Shipping.City != "Nairobi" {
		t.Fatalf("SubmitShipping: %+v %v", v, err)
	}
}

func TestPayPalFlow(t *testing.T) {
	h := newHarness(t)
	h.toMethod(t, "s", "paypal")

	v, err := h.reg.PayWithPayPal("s", settings.Settings{PayPalRecipient: "shop@glaze.test"})
	if err != nil {
		t.Fatalf("PayWithPayPal: %v", err)
	}
	if v.Step != StepProcessing || v.Closable {
		t.Fatalf("expected locked PROCESSING, got %+v", v)
	}
	u, err := url.Parse(v.RedirectURL)
	if err != nil {
		t.Fatalf("bad redirect: %v", err)
	}
	if q := u.Query(); q.Get("business") != "shop@glaze.test" || q.Get("amount") != "58.00" || q.Get("return") != "https://glaze.test/" {
		t.Fatalf("unexpected redirect query: %s", u.RawQuery)
	}
	if err := h.reg.Close("s"); apperr.KindOf(err) != apperr.KindLocked {
		t.Fatalf("expected Locked, got %v", err)
	}

	h.clock.Advance(4 * time.Second)
	if len(h.results) != 0 {
		t.Fatalf("completed too early")
	}
	h.clock.Advance(time.Second)
	if len(h.results) != 1 {
		t.Fatalf("expected one completion, got %d", len(h.results))
	}
	r := h.results[0]
	if r.Method != "paypal" || r.Shipping.Email != "ann@glaze.test" || !r.Total.Equal(decimal.NewFromInt(58)) || r.SessionID != "s" {
		t.Fatalf("unexpected result: %+v", r)
	}
	v, _ = h.reg.Get("s")
	if v.Step != StepSuccess || v.OrderID != "order-chk-1" {
		t.Fatalf("unexpected view: %+v", v)
	}

	h.clock.Advance(3 * time.Second)
	if _, err := h.reg.Get("s"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("wizard should be discarded after the success display, got %v", err)
	}
	if len(h.results) != 1 {
		t.Fatalf("completion must fire once")
	}
}

func TestPayPalNotConfigured(t *testing.T) {
	h := newHarness(t)
	h.toMethod(t, "s", "paypal")
	if _, err := h.reg.PayWithPayPal("s", settings.Settings{}); apperr.KindOf(err) != apperr.KindNotConfigured {
		t.Fatalf("expected NotConfigured, got %v", err)
	}
	v, _ := h.reg.Get("s")
	if v.Step != StepPayPal {
		t.Fatalf("state must not change, got %s", v.Step)
	}
}

func TestSimulatedPush(t *testing.T) {
	h := newHarness(t)
	h.toMethod(t, "s", "mpesa")
	st := settings.Settings{MpesaBusinessNumber: "174379", MpesaType: "paybill"}

	if _, err := h.reg.PayWithMobileMoney("s", st, "12345"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected phone validation error, got %v", err)
	}
	v, err := h.reg.PayWithMobileMoney("s", st, "0712 345 678")
	if err != nil || v.Step != StepProcessing || v.Push == nil || v.Push.Phone != "0712345678" {
		t.Fatalf("PayWithMobileMoney: %+v %v", v, err)
	}

	h.clock.Advance(2 * time.Second)
	v, _ = h.reg.Get("s")
	if v.Step != StepPushSent || v.Closable {
		t.Fatalf("expected locked MPESA_PUSH_SENT, got %+v", v)
	}
	if err := h.reg.Close("s"); apperr.KindOf(err) != apperr.KindLocked {
		t.Fatalf("expected Locked, got %v", err)
	}

	h.clock.Advance(5 * time.Second)
	v, _ = h.reg.Get("s")
	if v.Step != StepSuccess || len(h.results) != 1 || h.results[0].Method != "mpesa" {
		t.Fatalf("expected success, got %+v (%d results)", v, len(h.results))
	}
}

func TestGatewayFailureAndTimeout(t *testing.T) {
	h := newHarness(t)
	h.toMethod(t, "s", "mpesa")
	st := settings.Settings{GatewayPublicKey: "ISPubKey_test_1", GatewayLive: false}

	v, err := h.reg.PayWithMobileMoney("s", st, "")
	if err != nil || v.Gateway == nil || v.Gateway.APIRef != v.ID || v.Gateway.Amount != "58.00" {
		t.Fatalf("expected widget params, got %+v %v", v, err)
	}
	v, err = h.reg.GatewayResult("s", validation.GatewayRequest{Result: "failed"})
	if err != nil || v.Step != StepSelectMethod || v.Error == "" {
		t.Fatalf("failure should return to method selection: %+v %v", v, err)
	}

	if _, err := h.reg.SelectMethod("s", "mpesa"); err != nil {
		t.Fatalf("SelectMethod: %v", err)
	}
	if _, err := h.reg.PayWithMobileMoney("s", st, ""); err != nil {
		t.Fatalf("PayWithMobileMoney: %v", err)
	}
	h.clock.Advance(10 * time.Minute)
	v, _ = h.reg.Get("s")
	if v.Step != StepSelectMethod || v.Error == "" {
		t.Fatalf("timeout should return to method selection: %+v", v)
	}
	if _, err := h.reg.GatewayResult("s", validation.GatewayRequest{Result: "complete"}); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("late callback should be rejected, got %v", err)
	}
	if len(h.results) != 0 {
		t.Fatalf("no order expected")
	}
}

func TestGatewayComplete(t *testing.T) {
	h := newHarness(t)
	h.toMethod(t, "s", "mpesa")
	v, _ := h.reg.PayWithMobileMoney("s", settings.Settings{GatewayPublicKey: "k"}, "")

	if _, err := h.reg.GatewayResult("s", validation.GatewayRequest{Result: "complete", Reference: "other"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected reference mismatch, got %v", err)
	}
	v, err := h.reg.GatewayResult("s", validation.GatewayRequest{Result: "complete", Reference: v.ID})
	if err != nil || v.Step != StepSuccess || v.OrderID == "" {
		t.Fatalf("GatewayResult: %+v %v", v, err)
	}
	// the gateway timeout must not fire after completion
	h.clock.Advance(10 * time.Minute)
	if len(h.results) != 1 {
		t.Fatalf("expected one completion, got %d", len(h.results))
	}
}

func TestTeardownIgnoresLateCallbacks(t *testing.T) {
	h := newHarness(t)
	h.toMethod(t, "s", "paypal")
	if _, err := h.reg.PayWithPayPal("s", settings.Settings{PayPalRecipient: "shop@glaze.test"}); err != nil {
		t.Fatalf("PayWithPayPal: %v", err)
	}
	h.reg.Teardown("s")
	h.clock.Advance(time.Minute)
	if len(h.results) != 0 {
		t.Fatalf("torn down checkout must not complete")
	}
	if _, err := h.reg.Get("s"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompletionFailureAllowsRetry(t *testing.T) {
	h := newHarness(t)
	h.toMethod(t, "s", "paypal")
	h.failNext = errors.New("dynamo unavailable")
	st := settings.Settings{PayPalRecipient: "shop@glaze.test"}

	_, _ = h.reg.PayWithPayPal("s", st)
	h.clock.Advance(5 * time.Second)
	v, _ := h.reg.Get("s")
	if v.Step != StepSelectMethod || !strings.Contains(v.Error, "could not record") {
		t.Fatalf("expected retryable state, got %+v", v)
	}

	_, _ = h.reg.SelectMethod("s", "paypal")
	_, _ = h.reg.PayWithPayPal("s", st)
	h.clock.Advance(5 * time.Second)
	v, _ = h.reg.Get("s")
	if v.Step != StepSuccess {
		t.Fatalf("expected success, got %+v", v)
	}
	if len(h.results) != 2 || h.results[0].CheckoutID != h.results[1].CheckoutID {
		t.Fatalf("retry must reuse the checkout id: %+v", h.results)
	}
}

func TestStartReplacesClosableWizardOnly(t *testing.T) {
	h := newHarness(t)
	first, _ := h.reg.Start("s", "ann@glaze.test", items())
	second, err := h.reg.Start("s", "ann@glaze.test", items())
	if err != nil || second.ID == first.ID {
		t.Fatalf("expected a fresh wizard, got %+v %v", second, err)
	}

	_, _ = h.reg.SubmitShipping("s", shipping())
	_, _ = h.reg.SelectMethod("s", "paypal")
	_, _ = h.reg.PayWithPayPal("s", settings.Settings{PayPalRecipient: "x@y.co"})
	if _, err := h.reg.Start("s", "ann@glaze.test", items()); apperr.KindOf(err) != apperr.KindLocked {
		t.Fatalf("expected Locked while paying, got %v", err)
	}
}

func TestCloseBeforePayment(t *testing.T) {
	h := newHarness(t)
	h.toMethod(t, "s", "mpesa")
	if err := h.reg.Close("s"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := h.reg.Get("s"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPayPalURL(t *testing.T) {
	got := PayPalURL("shop@glaze.test", decimal.RequireFromString("58"), "")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if u.Host != "www.paypal.com" || q.Get("cmd") != "_xclick" || q.Get("currency_code") != "USD" ||
		q.Get("item_name") != "Glaze Cosmetics Order" || q.Get("amount") != "58.00" || q.Has("return") {
		t.Fatalf("unexpected url %s", got)
	}
}
