package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"
)

// Purpose separates signup codes from password-reset codes.
type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeReset  Purpose = "reset"
)

// MaxAttempts is how many wrong codes a challenge tolerates before it is dropped.
const MaxAttempts = 5

type challenge struct {
	code    string
	expires time.Time
	misses  int
	pending *Account // signup only: the account created on a correct code
}

// Challenges holds outstanding one-time codes in memory, one per (purpose, email).
// Issuing again replaces the previous code.
type Challenges struct {
	mu      sync.Mutex
	ttl     time.Duration
	items   map[string]challenge
	random  io.Reader
	nowFunc func() time.Time
}

func NewChallenges(ttl time.Duration) *Challenges {
	return &Challenges{
		ttl:     ttl,
		items:   map[string]challenge{},
		random:  rand.Reader,
		nowFunc: time.Now,
	}
}

func challengeKey(p Purpose, email string) string { return string(p) + ":" + NormalizeEmail(email) }

// Issue creates a fresh 6-digit code.
func (c *Challenges) Issue(p Purpose, email string, pending *Account) (string, error) {
	n, err := rand.Int(c.random, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[challengeKey(p, email)] = challenge{
		code:    code,
		expires: c.nowFunc().Add(c.ttl),
		pending: pending,
	}
	return code, nil
}

// Verify consumes the challenge when code matches. A wrong code leaves it in
// place until MaxAttempts misses; an expired one is dropped.
func (c *Challenges) Verify(p Purpose, email, code string) (*Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := challengeKey(p, email)
	ch, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.nowFunc().After(ch.expires) {
		delete(c.items, key)
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(ch.code), []byte(code)) != 1 {
		ch.misses++
		if ch.misses >= MaxAttempts {
			delete(c.items, key)
		} else {
			c.items[key] = ch
		}
		return nil, false
	}
	delete(c.items, key)
	return ch.pending, true
}
