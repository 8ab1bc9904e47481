package storefront

import (
	"context"

	"github.com/imrishuroy/glaze-storefront/internal/auth"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

func (s *Shell) Signup(ctx context.Context, req validation.SignupRequest) error {
	if err := validation.Check(req); err != nil {
		return err
	}
	return s.Auth.Signup(ctx, req.Name, req.Email, req.Password)
}

// VerifySignup creates the account and logs the session in.
func (s *Shell) VerifySignup(ctx context.Context, sessionID string, req validation.VerifyRequest) (auth.User, error) {
	if err := validation.Check(req); err != nil {
		return auth.User{}, err
	}
	u, err := s.Auth.VerifySignup(ctx, req.Email, req.Code)
	if err != nil {
		return auth.User{}, err
	}
	return u, s.setUser(ctx, sessionID, u)
}

func (s *Shell) Login(ctx context.Context, sessionID string, req validation.LoginRequest) (auth.User, error) {
	if err := validation.Check(req); err != nil {
		return auth.User{}, err
	}
	u, err := s.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return auth.User{}, err
	}
	return u, s.setUser(ctx, sessionID, u)
}

func (s *Shell) RequestReset(ctx context.Context, req validation.ForgotRequest) error {
	if err := validation.Check(req); err != nil {
		return err
	}
	return s.Auth.RequestReset(ctx, req.Email)
}

func (s *Shell) ResetPassword(ctx context.Context, req validation.ResetRequest) error {
	if err := validation.Check(req); err != nil {
		return err
	}
	return s.Auth.ResetPassword(ctx, req.Email, req.Code, req.Password)
}

func (s *Shell) FederatedLogin(ctx context.Context, sessionID string, req validation.OAuthRequest) (auth.User, error) {
	if err := validation.Check(req); err != nil {
		return auth.User{}, err
	}
	u, err := s.Auth.FederatedLogin(ctx, req.IDToken)
	if err != nil {
		return auth.User{}, err
	}
	return u, s.setUser(ctx, sessionID, u)
}

func (s *Shell) DemoLogin(ctx context.Context, sessionID string) (auth.User, error) {
	u, err := s.Auth.DemoLogin(ctx)
	if err != nil {
		return auth.User{}, err
	}
	return u, s.setUser(ctx, sessionID, u)
}

// Logout forgets the session identity, empties the cart and drops any open
// checkout. The directory and the order history are untouched.
func (s *Shell) Logout(ctx context.Context, sessionID string) error {
	s.checkouts.Teardown(sessionID)
	if c := s.peek(sessionID); c != nil {
		c.cart.Clear()
		c.mu.Lock()
		c.user = nil
		c.loaded = true
		c.mu.Unlock()
	}
	if err := s.Sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.clients, sessionID)
	s.mu.Unlock()
	return nil
}
