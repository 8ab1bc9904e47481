package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/cart"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
	"github.com/shopspring/decimal"
)

const (
	msgPaymentFailed = "payment failed, please try again"
	msgOrderFailed   = "your payment went through but we could not record the order, please try again"
	completionBudget = 30 * time.Second
)

var errClosed = apperr.NotFound("checkout_not_found", "no checkout in progress")

// Wizard is one checkout. Scheduled callbacks carry the generation they were
// scheduled in; any state change that invalidates them bumps gen, so a late
// callback is ignored even when its timer could not be stopped.
type Wizard struct {
	mu  sync.Mutex
	reg *Registry

	id            string
	sessionID     string
	customerEmail string
	items         []cart.Item
	total         decimal.Decimal

	step        Step
	shipping    *orders.ShippingDetails
	method      orders.PaymentMethod
	redirectURL string
	gateway     *GatewayParams
	push        *PushDetails
	errMsg      string
	orderID     string

	gen    uint64
	tasks  []Task
	closed bool
}

// ID is the checkout id.
func (w *Wizard) ID() string { return w.id }

func (w *Wizard) view() View {
	v := View{
		ID:          w.id,
		Step:        w.step,
		Items:       append([]cart.Item(nil), w.items...),
		Total:       w.total,
		Method:      w.method,
		RedirectURL: w.redirectURL,
		OrderID:     w.orderID,
		Error:       w.errMsg,
		Closable:    !w.step.locked(),
	}
	if w.shipping != nil {
		s := *w.shipping
		v.Shipping = &s
	}
	if w.gateway != nil {
		g := *w.gateway
		v.Gateway = &g
	}
	if w.push != nil {
		p := *w.push
		v.Push = &p
	}
	return v
}

// cancel stops pending tasks and invalidates any that already fired. Caller holds mu.
func (w *Wizard) cancel() {
	for _, t := range w.tasks {
		t.Stop()
	}
	w.tasks = nil
	w.gen++
}

// after schedules f under mu in the current generation. Caller holds mu.
func (w *Wizard) after(d time.Duration, f func()) {
	gen := w.gen
	w.tasks = append(w.tasks, w.reg.sched.AfterFunc(d, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed || w.gen != gen {
			return
		}
		f()
	}))
}

func (w *Wizard) submitShipping(req validation.ShippingRequest) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, errClosed
	}
	switch w.step {
	case StepShipping, StepSelectMethod, StepPayPal, StepMpesa:
	default:
		return View{}, stepError(w.step)
	}
	req = validation.ShippingRequest{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		City:    strings.TrimSpace(req.City),
	}
	if err := validation.Check(req); err != nil {
		return View{}, err
	}
	w.shipping = &orders.ShippingDetails{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		City:    req.City,
	}
	w.step = StepSelectMethod
	w.errMsg = ""
	return w.view(), nil
}

func (w *Wizard) selectMethod(method string) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, errClosed
	}
	switch w.step {
	case StepSelectMethod, StepPayPal, StepMpesa:
	default:
		return View{}, stepError(w.step)
	}
	switch orders.PaymentMethod(method) {
	case orders.MethodPayPal:
		w.step = StepPayPal
	case orders.MethodMpesa:
		w.step = StepMpesa
	default:
		return View{}, apperr.Validation("invalid_method", "choose paypal or mpesa")
	}
	w.method = orders.PaymentMethod(method)
	w.errMsg = ""
	w.redirectURL = ""
	w.gateway = nil
	w.push = nil
	return w.view(), nil
}

func (w *Wizard) payWithPayPal(st settings.Settings) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, errClosed
	}
	if w.step != StepPayPal {
		return View{}, stepError(w.step)
	}
	if st.PayPalRecipient == "" {
		return View{}, apperr.NotConfigured("paypal_not_configured", "PayPal payments are not set up yet")
	}
	w.redirectURL = PayPalURL(st.PayPalRecipient, w.total, w.reg.opts.ReturnURL)
	w.step = StepProcessing
	w.errMsg = ""
	w.cancel()
	// The redirect flow gives no confirmation; payment is assumed after the delay.
	w.after(w.reg.opts.PayPalConfirmDelay, w.succeed)
	return w.view(), nil
}

func (w *Wizard) payWithMobileMoney(st settings.Settings, phone string) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, errClosed
	}
	if w.step != StepMpesa {
		return View{}, stepError(w.step)
	}
	w.cancel()
	w.errMsg = ""

	if st.GatewayPublicKey != "" {
		w.gateway = &GatewayParams{
			PublicKey: st.GatewayPublicKey,
			Live:      st.GatewayLive,
			Amount:    w.total.StringFixed(2),
			Currency:  "KES",
			Email:     w.shipping.Email,
			Phone:     w.shipping.Phone,
			APIRef:    w.id,
		}
		w.step = StepProcessing
		w.after(w.reg.opts.GatewayTimeout, func() {
			w.reg.logger.Warn("payment gateway timed out", "checkout_id", w.id)
			w.fail()
		})
		return w.view(), nil
	}

	phone = strings.TrimSpace(phone)
	if !validation.ValidMobilePhone(phone) {
		return View{}, apperr.Validation("invalid_phone", "enter a valid phone number, e.g. 0712345678")
	}
	w.push = &PushDetails{
		Phone:          validation.PhoneDigits(phone),
		BusinessNumber: st.MpesaBusinessNumber,
		BusinessType:   st.MpesaType,
	}
	w.step = StepProcessing
	w.after(w.reg.opts.PushSendDelay, func() {
		w.step = StepPushSent
		w.after(w.reg.opts.PushConfirmDelay, w.succeed)
	})
	return w.view(), nil
}

func (w *Wizard) gatewayResult(req validation.GatewayRequest) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, errClosed
	}
	if w.step != StepProcessing || w.gateway == nil {
		return View{}, apperr.Conflict("no_payment_pending", "no payment is waiting for the gateway")
	}
	if req.Reference != "" && req.Reference != w.id {
		return View{}, apperr.Validation("wrong_reference", "the payment reference does not match this checkout")
	}
	w.cancel()
	if req.Result != "complete" {
		w.reg.logger.Error("payment gateway reported failure", "checkout_id", w.id)
		w.fail()
		return w.view(), nil
	}
	w.succeed()
	return w.view(), nil
}

// fail returns to method selection with a generic error. Caller holds mu.
func (w *Wizard) fail() {
	w.tasks = nil
	w.step = StepSelectMethod
	w.gateway = nil
	w.push = nil
	w.errMsg = msgPaymentFailed
}

// succeed records the order. Caller holds mu. The completion itself runs
// without mu so it can touch the session that owns this wizard.
func (w *Wizard) succeed() {
	if w.step == StepSuccess {
		return
	}
	w.step = StepSuccess
	w.tasks = nil
	gen := w.gen
	res := Result{
		CheckoutID:    w.id,
		SessionID:     w.sessionID,
		CustomerEmail: w.customerEmail,
		Method:        w.method,
		Shipping:      *w.shipping,
		Items:         append([]cart.Item(nil), w.items...),
		Total:         w.total,
		PaidAt:        w.reg.nowFunc(),
	}

	w.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), completionBudget)
	orderID, err := w.reg.complete(ctx, res)
	cancel()
	w.mu.Lock()

	if w.closed || w.gen != gen {
		// torn down meanwhile; the order, if any, stands
		return
	}
	if err != nil {
		w.reg.logger.Error("checkout completion failed", "checkout_id", w.id, "err", err)
		w.step = StepSelectMethod
		w.gateway = nil
		w.push = nil
		w.errMsg = msgOrderFailed
		return
	}
	w.orderID = orderID
	w.after(w.reg.opts.SuccessDisplay, func() {
		w.closed = true
		w.reg.forget(w)
	})
}

// close ends the wizard. Unless forced, it is refused while a payment is in flight.
func (w *Wizard) close(force bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if !force && w.step.locked() {
		return apperr.Locked("checkout_locked", "a payment is in progress and cannot be abandoned")
	}
	w.cancel()
	w.closed = true
	return nil
}

func (w *Wizard) snapshot() (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, errClosed
	}
	return w.view(), nil
}

func stepError(s Step) error {
	return apperr.Conflict("wrong_step", "that action is not available during "+string(s))
}
