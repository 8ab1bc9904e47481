// Package storefront is the application shell. It owns every store and the
// per-session state (cart, identity, checkout) and exposes the commands the
// HTTP layer calls.
package storefront

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/auth"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
	"github.com/imrishuroy/glaze-storefront/internal/backup"
	"github.com/imrishuroy/glaze-storefront/internal/cart"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/checkout"
	"github.com/imrishuroy/glaze-storefront/internal/config"
	"github.com/imrishuroy/glaze-storefront/internal/consultant"
	"github.com/imrishuroy/glaze-storefront/internal/events"
	"github.com/imrishuroy/glaze-storefront/internal/media"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/imrishuroy/glaze-storefront/internal/reviews"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
)

// Deps groups everything the shell is built from.
type Deps struct {
	Catalog    *catalog.Store
	Reviews    *reviews.Store
	Orders     orders.Repository
	Auth       *auth.Service
	Sessions   *auth.Sessions
	Settings   *settings.Store
	Backup     *backup.Service
	Consultant *consultant.Consultant
	Media      *media.Store
	Events     events.Publisher
	Metrics    *aws.Metrics
	Checkout   config.Checkout
	Scheduler  checkout.Scheduler
	Logger     *slog.Logger
}

// Idle session state is swept: an empty cart after idleEmpty, any cart
// after idleAbandoned. Sessions with an open checkout are kept.
const (
	idleEmpty     = 30 * time.Minute
	idleAbandoned = 24 * time.Hour
	sweepEvery    = time.Minute
)

// client is the state of one client session.
type client struct {
	mu     sync.Mutex
	cart   *cart.Cart
	user   *auth.User
	loaded bool // user restored from the session store

	seen time.Time // guarded by Shell.mu
}

type Shell struct {
	Deps

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
	nowFunc   func() time.Time
	checkouts *checkout.Registry
}

func New(d Deps) *Shell {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Scheduler == nil {
		d.Scheduler = checkout.Clock
	}
	if d.Events == nil {
		d.Events = events.Discard{Logger: d.Logger}
	}
	s := &Shell{Deps: d, clients: map[string]*client{}, nowFunc: time.Now}
	s.checkouts = checkout.NewRegistry(d.Checkout, d.Scheduler, s.completeCheckout, d.Logger)
	return s
}

// NewSessionID mints an id for a client that did not send one.
func NewSessionID() string { return uuid.NewString() }

func (s *Shell) client(sessionID string) *client {
	now := s.nowFunc()
	s.mu.Lock()
	c, ok := s.clients[sessionID]
	if !ok {
		c = &client{cart: cart.New()}
		s.clients[sessionID] = c
	}
	c.seen = now
	due := now.Sub(s.lastSweep) >= sweepEvery
	s.mu.Unlock()

	if due {
		s.Sweep(now)
	}
	return c
}

// peek returns the session's state without creating it.
func (s *Shell) peek(sessionID string) *client {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.clients[sessionID]
	if c != nil {
		c.seen = s.nowFunc()
	}
	return c
}

// SessionCount is the number of sessions holding in-memory state.
func (s *Shell) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Sweep drops the state of sessions idle at now and reports how many went.
// A dropped identity is restored from the session store on the next request.
func (s *Shell) Sweep(now time.Time) int {
	type idle struct {
		id   string
		c    *client
		seen time.Time
	}
	s.mu.Lock()
	s.lastSweep = now
	var found []idle
	for id, c := range s.clients {
		if now.Sub(c.seen) >= idleEmpty {
			found = append(found, idle{id: id, c: c, seen: c.seen})
		}
	}
	s.mu.Unlock()

	dropped := 0
	for _, x := range found {
		if s.checkouts.Active(x.id) {
			continue
		}
		if x.c.cart.Count() > 0 && now.Sub(x.seen) < idleAbandoned {
			continue
		}
		s.mu.Lock()
		if cur := s.clients[x.id]; cur == x.c && cur.seen.Equal(x.seen) {
			delete(s.clients, x.id)
			dropped++
		}
		s.mu.Unlock()
	}
	if dropped > 0 {
		s.Logger.Debug("idle sessions swept", "dropped", dropped)
	}
	return dropped
}

// User returns the identity of the session, restoring it from the session
// store the first time the session is seen. nil means logged out.
func (s *Shell) User(ctx context.Context, sessionID string) (*auth.User, error) {
	c := s.peek(sessionID)
	if c == nil {
		// Unknown sessions only get state once they turn out to be logged in.
		u, err := s.Sessions.Load(ctx, sessionID)
		if err != nil || u == nil {
			return nil, err
		}
		c = s.client(sessionID)
		c.mu.Lock()
		if !c.loaded {
			c.user, c.loaded = u, true
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		u, err := s.Sessions.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		c.user = u
		c.loaded = true
	}
	if c.user == nil {
		return nil, nil
	}
	u := *c.user
	return &u, nil
}

func (s *Shell) requireUser(ctx context.Context, sessionID string) (auth.User, error) {
	u, err := s.User(ctx, sessionID)
	if err != nil {
		return auth.User{}, err
	}
	if u == nil {
		return auth.User{}, apperr.Unauthenticated("login_required", "please log in first")
	}
	return *u, nil
}

// RequireAdmin fails unless the session belongs to an administrator.
func (s *Shell) RequireAdmin(ctx context.Context, sessionID string) error {
	u, err := s.requireUser(ctx, sessionID)
	if err != nil {
		return err
	}
	if !u.IsAdmin {
		return apperr.Forbidden("admin_only", "administrators only")
	}
	return nil
}

func (s *Shell) setUser(ctx context.Context, sessionID string, u auth.User) error {
	if err := s.Sessions.Save(ctx, sessionID, u); err != nil {
		return err
	}
	c := s.client(sessionID)
	c.mu.Lock()
	c.user = &u
	c.loaded = true
	c.mu.Unlock()
	return nil
}
