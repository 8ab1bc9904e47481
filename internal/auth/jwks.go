package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// IdentityClaims are the claims trusted from a verified identity token.
type IdentityClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// TokenVerifier checks an identity token issued for audience.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken, audience string) (*IdentityClaims, error)
}

// JWKSOptions tunes key set refreshes. Zero values take the defaults.
type JWKSOptions struct {
	// RefreshInterval is how often the key set is refetched in the background.
	RefreshInterval time.Duration
	// UnknownKIDEvery is the minimum gap between refetches triggered by a
	// token naming a key the set does not hold.
	UnknownKIDEvery time.Duration
}

// JWKSVerifier verifies RS256 identity tokens against a provider's published
// key set.
type JWKSVerifier struct {
	keys    keyfunc.Keyfunc
	issuers []string
	nowFunc func() time.Time
}

// NewJWKSVerifier fetches the key set at url and keeps it fresh until ctx is
// done. A failed first fetch is not fatal; the next refresh retries.
func NewJWKSVerifier(ctx context.Context, url string, issuers []string, client *http.Client, opts JWKSOptions) (*JWKSVerifier, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Hour
	}
	if opts.UnknownKIDEvery <= 0 {
		opts.UnknownKIDEvery = 5 * time.Minute
	}

	remote, err := jwkset.NewStorageFromHTTP(url, jwkset.HTTPClientStorageOptions{
		Client:                    client,
		Ctx:                       ctx,
		HTTPTimeout:               client.Timeout,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           opts.RefreshInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("jwks storage %s: %w", url, err)
	}
	storage, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{url: remote},
		RateLimitWaitMax:  time.Second,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(opts.UnknownKIDEvery), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("jwks client %s: %w", url, err)
	}
	keys, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("jwks keyfunc: %w", err)
	}
	return &JWKSVerifier{keys: keys, issuers: issuers, nowFunc: time.Now}, nil
}

// Verify checks signature, audience, issuer and expiry before returning the claims.
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken, audience string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, v.keys.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.nowFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("verify identity token: %w", err)
	}
	if len(v.issuers) > 0 && !slices.Contains(v.issuers, claims.Issuer) {
		return nil, fmt.Errorf("verify identity token: untrusted issuer %q", claims.Issuer)
	}
	if claims.Email == "" {
		return nil, errors.New("verify identity token: no email claim")
	}
	return claims, nil
}
