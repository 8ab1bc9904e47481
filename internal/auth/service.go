// Package auth implements the storefront sign-in flows: email and password
// with one-time-code verification, password reset, federated login with a
// verified identity token, and the demo administrator shortcut.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/mailer"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
	"golang.org/x/crypto/bcrypt"
)

// SettingsSource supplies the current integration credentials.
type SettingsSource interface {
	Current(ctx context.Context) (settings.Settings, error)
}

// Mailer sends a templated email.
type Mailer interface {
	Send(ctx context.Context, st settings.Settings, templateID string, params map[string]string) error
}

const demoAvatar = "https://ui-avatars.com/api/?name=Demo+Admin&background=ec4899&color=fff"

// Options tune the flows.
type Options struct {
	AdminEmails      []string
	DemoLogin        bool
	MinPasswordChars int
	BcryptCost       int
}

// Service runs the authentication flows against the directory.
type Service struct {
	dir      *Directory
	codes    *Challenges
	verifier TokenVerifier
	settings SettingsSource
	mail     Mailer
	opts     Options
	logger   *slog.Logger
}

func NewService(dir *Directory, codes *Challenges, verifier TokenVerifier, src SettingsSource, mail Mailer, opts Options, logger *slog.Logger) *Service {
	if opts.MinPasswordChars <= 0 {
		opts.MinPasswordChars = 6
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		dir:      dir,
		codes:    codes,
		verifier: verifier,
		settings: src,
		mail:     mail,
		opts:     opts,
		logger:   logger,
	}
}

var (
	errInvalidCredentials = apperr.Credential("invalid_credentials", "invalid email or password")
	errInvalidCode        = apperr.Credential("invalid_code", "invalid verification code")
)

func (s *Service) isAdmin(email string) bool {
	for _, a := range s.opts.AdminEmails {
		if NormalizeEmail(a) == NormalizeEmail(email) {
			return true
		}
	}
	return false
}

func (s *Service) checkPassword(pw string) error {
	if len(pw) < s.opts.MinPasswordChars {
		return apperr.Validation("password_too_short", "password must be at least 6 characters")
	}
	return nil
}

// Signup starts account creation: it holds the hashed credential with a
// fresh code and sends the code to the address. Nothing is written to the
// directory until VerifySignup succeeds.
func (s *Service) Signup(ctx context.Context, name, email, password string) error {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" || email == "" {
		return apperr.Validation("missing_fields", "name and email are required")
	}
	if err := s.checkPassword(password); err != nil {
		return err
	}
	if _, exists, err := s.dir.Get(ctx, email); err != nil {
		return err
	} else if exists {
		return errEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return err
	}
	pending := &Account{
		User: User{
			Name:       name,
			Email:      email,
			Avatar:     avatarFor(name),
			IsVerified: true,
		},
		PasswordHash: string(hash),
		Provider:     ProviderPassword,
	}
	code, err := s.codes.Issue(PurposeSignup, email, pending)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, email, name, code, func(st settings.Settings) string { return st.EmailSignupTemplate })
}

// VerifySignup creates the account when code matches and logs it in.
// A wrong code leaves the directory untouched.
func (s *Service) VerifySignup(ctx context.Context, email, code string) (User, error) {
	pending, ok := s.codes.Verify(PurposeSignup, email, code)
	if !ok || pending == nil {
		return User{}, errInvalidCode
	}
	if err := s.dir.Create(ctx, *pending); err != nil {
		return User{}, err
	}
	u := pending.User
	u.IsAdmin = u.IsAdmin || s.isAdmin(u.Email)
	s.logger.Info("account created", "email", u.Email)
	return u, nil
}

// Login checks email and password against the directory.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	acct, ok, err := s.dir.Get(ctx, email)
	if err != nil {
		return User{}, err
	}
	if !ok || acct.PasswordHash == "" {
		return User{}, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return User{}, errInvalidCredentials
	}
	u := acct.User
	u.IsAdmin = u.IsAdmin || s.isAdmin(u.Email)
	return u, nil
}

// RequestReset sends a password-reset code to an existing account.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	acct, ok, err := s.dir.Get(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return errAccountNotFound
	}
	code, err := s.codes.Issue(PurposeReset, email, nil)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, NormalizeEmail(email), acct.User.Name, code, func(st settings.Settings) string { return st.EmailResetTemplate })
}

// ResetPassword replaces the credential when code matches.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	if err := s.checkPassword(password); err != nil {
		return err
	}
	if _, ok := s.codes.Verify(PurposeReset, email, code); !ok {
		return errInvalidCode
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.dir.SetPasswordHash(ctx, email, string(hash)); err != nil {
		return err
	}
	s.logger.Info("password reset", "email", NormalizeEmail(email))
	return nil
}

// FederatedLogin trusts the claims of a verified identity token. First-time
// users get a directory entry with no credential.
func (s *Service) FederatedLogin(ctx context.Context, idToken string) (User, error) {
	st, err := s.settings.Current(ctx)
	if err != nil {
		return User{}, err
	}
	if st.OAuthClientID == "" {
		return User{}, apperr.NotConfigured("oauth_not_configured", "sign in with Google is not configured")
	}
	claims, err := s.verifier.Verify(ctx, idToken, st.OAuthClientID)
	if err != nil {
		s.logger.Warn("identity token rejected", "err", err)
		return User{}, apperr.Credential("invalid_token", "could not verify your sign-in")
	}

	acct, err := s.dir.Ensure(ctx, Account{
		User: User{
			Name:       claims.Name,
			Email:      NormalizeEmail(claims.Email),
			Avatar:     claims.Picture,
			IsVerified: claims.EmailVerified,
		},
		Provider: ProviderGoogle,
	})
	if err != nil {
		return User{}, err
	}
	u := acct.User
	u.IsAdmin = s.isAdmin(u.Email)
	return u, nil
}

// DemoLogin returns the demo administrator without any credential check.
func (s *Service) DemoLogin(ctx context.Context) (User, error) {
	if !s.opts.DemoLogin {
		return User{}, apperr.Forbidden("demo_disabled", "demo login is disabled")
	}
	return User{
		Name:       "Demo Admin",
		Email:      "admin@glaze.demo",
		Avatar:     demoAvatar,
		IsAdmin:    true,
		IsVerified: true,
	}, nil
}

// dispatch emails code to the user. When email is not configured the code is
// written to the log instead.
func (s *Service) dispatch(ctx context.Context, email, name, code string, template func(settings.Settings) string) error {
	st, err := s.settings.Current(ctx)
	if err != nil {
		return err
	}
	params := map[string]string{
		"to_email": email,
		"to_name":  name,
		"code":     code,
		"expires":  s.codes.ttl.Round(time.Minute).String(),
	}
	err = s.mail.Send(ctx, st, template(st), params)
	if errors.Is(err, mailer.ErrNotConfigured) {
		s.logger.Info("email not configured, verification code", "email", email, "code", code)
		return nil
	}
	if err != nil {
		s.logger.Error("send verification code", "email", email, "err", err)
		return apperr.Integration("email_failed", "we could not send your code, please try again", err)
	}
	return nil
}

func avatarFor(name string) string {
	return "https://ui-avatars.com/api/?name=" + strings.ReplaceAll(strings.TrimSpace(name), " ", "+")
}
