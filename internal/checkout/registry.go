package checkout

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/cart"
	"github.com/imrishuroy/glaze-storefront/internal/config"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

// Registry holds at most one wizard per client session. Registry methods never
// hold the registry lock while taking a wizard's lock.
type Registry struct {
	mu      sync.Mutex
	wizards map[string]*Wizard // by session id

	opts     config.Checkout
	sched    Scheduler
	complete Completion
	logger   *slog.Logger
	newID    func() string
	nowFunc  func() time.Time
}

func NewRegistry(opts config.Checkout, sched Scheduler, complete Completion, logger *slog.Logger) *Registry {
	return &Registry{
		wizards:  map[string]*Wizard{},
		opts:     opts,
		sched:    sched,
		complete: complete,
		logger:   logger,
		newID:    uuid.NewString,
		nowFunc:  time.Now,
	}
}

// Start opens a wizard over a snapshot of items, replacing any closable
// wizard the session already had.
func (r *Registry) Start(sessionID, customerEmail string, items []cart.Item) (View, error) {
	if customerEmail == "" {
		return View{}, apperr.Unauthenticated("login_required", "log in to check out")
	}
	if len(items) == 0 {
		return View{}, apperr.Validation("cart_empty", "your cart is empty")
	}
	if prev := r.lookup(sessionID); prev != nil {
		if err := prev.close(false); err != nil {
			return View{}, err
		}
	}

	snap := append([]cart.Item(nil), items...)
	w := &Wizard{
		reg:           r,
		id:            r.newID(),
		sessionID:     sessionID,
		customerEmail: customerEmail,
		items:         snap,
		total:         cart.Total(snap),
		step:          StepShipping,
	}
	r.mu.Lock()
	r.wizards[sessionID] = w
	r.mu.Unlock()

	r.logger.Info("checkout started", "checkout_id", w.id, "email", customerEmail, "total", w.total.StringFixed(2))
	return w.snapshot()
}

func (r *Registry) lookup(sessionID string) *Wizard {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wizards[sessionID]
}

// Active reports whether the session has a checkout open.
func (r *Registry) Active(sessionID string) bool {
	return r.lookup(sessionID) != nil
}

func (r *Registry) get(sessionID string) (*Wizard, error) {
	w := r.lookup(sessionID)
	if w == nil {
		return nil, errClosed
	}
	return w, nil
}

// forget drops w if it is still the session's wizard.
func (r *Registry) forget(w *Wizard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wizards[w.sessionID] == w {
		delete(r.wizards, w.sessionID)
	}
}

// Get returns the session's wizard.
func (r *Registry) Get(sessionID string) (View, error) {
	w, err := r.get(sessionID)
	if err != nil {
		return View{}, err
	}
	return w.snapshot()
}

func (r *Registry) SubmitShipping(sessionID string, req validation.ShippingRequest) (View, error) {
	w, err := r.get(sessionID)
	if err != nil {
		return View{}, err
	}
	return w.submitShipping(req)
}

func (r *Registry) SelectMethod(sessionID, method string) (View, error) {
	w, err := r.get(sessionID)
	if err != nil {
		return View{}, err
	}
	return w.selectMethod(method)
}

// PayWithPayPal returns the redirect link and confirms the payment after the
// configured delay.
func (r *Registry) PayWithPayPal(sessionID string, st settings.Settings) (View, error) {
	w, err := r.get(sessionID)
	if err != nil {
		return View{}, err
	}
	return w.payWithPayPal(st)
}

// PayWithMobileMoney hands off to the payment gateway widget when a gateway
// key is set, otherwise simulates a push to phone.
func (r *Registry) PayWithMobileMoney(sessionID string, st settings.Settings, phone string) (View, error) {
	w, err := r.get(sessionID)
	if err != nil {
		return View{}, err
	}
	return w.payWithMobileMoney(st, phone)
}

// GatewayResult applies the widget's completion or failure callback.
func (r *Registry) GatewayResult(sessionID string, req validation.GatewayRequest) (View, error) {
	if err := validation.Check(req); err != nil {
		return View{}, err
	}
	w, err := r.get(sessionID)
	if err != nil {
		return View{}, err
	}
	return w.gatewayResult(req)
}

// Close abandons the wizard. It fails with a Locked error while a payment is in flight.
func (r *Registry) Close(sessionID string) error {
	w, err := r.get(sessionID)
	if err != nil {
		return err
	}
	if err := w.close(false); err != nil {
		return err
	}
	r.forget(w)
	return nil
}

// Teardown closes the session's wizard unconditionally. Callbacks still in
// flight are ignored.
func (r *Registry) Teardown(sessionID string) {
	w := r.lookup(sessionID)
	if w == nil {
		return
	}
	_ = w.close(true)
	r.forget(w)
}
