package handlers

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEARER TOKEN AUTHENTICATION
// Tokens are issued by the external identity provider; this side only verifies.
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// AuthConfig configures token verification. At least one key must be set.
type AuthConfig struct {
	HMACSecret      string
	RSAPublicKeyPEM string
	Issuer          string
	Audience        string
	Leeway          time.Duration
}

// Claims is the token payload the engine understands.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// JWTAuthenticator verifies HS256 or RS256 bearer tokens.
type JWTAuthenticator struct {
	cfg    AuthConfig
	secret []byte
	pub    *rsa.PublicKey
	now    func() time.Time
}

// NewJWTAuthenticator parses the configured keys.
func NewJWTAuthenticator(cfg AuthConfig) (*JWTAuthenticator, error) {
	a := &JWTAuthenticator{cfg: cfg, now: time.Now}
	if cfg.HMACSecret != "" {
		a.secret = []byte(cfg.HMACSecret)
	}
	if cfg.RSAPublicKeyPEM != "" {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.RSAPublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse rsa public key: %w", err)
		}
		a.pub = pub
	}
	if a.secret == nil && a.pub == nil {
		return nil, errors.New("auth: no verification key configured")
	}
	return a, nil
}

// Verify parses the token and returns the principal it names.
func (a *JWTAuthenticator) Verify(token string) (shared.Principal, error) {
	var claims Claims
	parser := jwt.Parser{SkipClaimsValidation: true}
	_, err := parser.ParseWithClaims(token, &claims, a.keyFunc)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := a.validate(&claims); err != nil {
		return shared.Principal{}, err
	}

	uid, err := shared.NewUserID(claims.Subject)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	role := shared.RoleUser
	if strings.EqualFold(claims.Role, string(shared.RoleAdmin)) {
		role = shared.RoleAdmin
	}
	return shared.Principal{ID: uid, Email: claims.Email, Name: claims.Name, Role: role}, nil
}

func (a *JWTAuthenticator) keyFunc(t *jwt.Token) (interface{}, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if a.secret != nil {
			return a.secret, nil
		}
	case *jwt.SigningMethodRSA:
		if a.pub != nil {
			return a.pub, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
}

// validate checks time claims with leeway plus issuer and audience.
func (a *JWTAuthenticator) validate(c *Claims) error {
	now := a.now()
	if c.ExpiresAt == nil || now.After(c.ExpiresAt.Add(a.cfg.Leeway)) {
		return fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if c.NotBefore != nil && now.Add(a.cfg.Leeway).Before(c.NotBefore.Time) {
		return fmt.Errorf("%w: not valid yet", ErrInvalidToken)
	}
	if a.cfg.Issuer != "" && !c.VerifyIssuer(a.cfg.Issuer, true) {
		return fmt.Errorf("%w: issuer", ErrInvalidToken)
	}
	if a.cfg.Audience != "" && !c.VerifyAudience(a.cfg.Audience, true) {
		return fmt.Errorf("%w: audience", ErrInvalidToken)
	}
	return nil
}

// Middleware rejects requests without a valid bearer token and stores the
// principal in the request context.
func (a *JWTAuthenticator) Middleware(onError func(http.ResponseWriter, *http.Request, error)) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				onError(w, r, ErrMissingToken)
				return
			}
			p, err := a.Verify(token)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	t := strings.TrimSpace(h[7:])
	return t, t != ""
}

type principalKey struct{}

// WithPrincipal stores the verified caller in ctx.
func WithPrincipal(ctx context.Context, p shared.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the verified caller, if any.
func PrincipalFrom(ctx context.Context) (shared.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(shared.Principal)
	return p, ok
}
