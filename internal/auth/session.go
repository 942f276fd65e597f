// Package auth resolves the caller's identity for the storefront API.
//
// A request is authenticated by, in order: a server-side session referenced by
// the session cookie, an HS256 bearer token whose subject is the user id, or,
// in development only, the X-User-ID header. Whatever source matched, the user
// must exist in the users table.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/repo"
)

var (
	ErrUnauthenticated = errors.New("auth: not authenticated")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrExpiredToken    = errors.New("auth: token expired")
)

// DevUserHeader carries a raw user id when Options.AllowDevHeader is set.
const DevUserHeader = "X-User-ID"

// Identity is the authenticated caller.
type Identity struct {
	User   domain.User
	Roles  []string
	Source string // "cookie", "bearer" or "header"
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Claims is the bearer token payload. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// Options configures a Validator.
type Options struct {
	CookieName     string
	JWTSecret      []byte // bearer tokens are rejected when empty
	JWTIssuer      string // checked when non-empty
	AllowDevHeader bool
	Clock          func() time.Time
}

// Validator implements the session lookup consumed by the HTTP layer.
type Validator struct {
	db   *gorm.DB
	opts Options
}

// NewValidator returns a Validator reading sessions and users from db.
func NewValidator(db *gorm.DB, opts Options) *Validator {
	if opts.CookieName == "" {
		opts.CookieName = "session_id"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	opts.JWTSecret = append([]byte(nil), opts.JWTSecret...)
	return &Validator{db: db, opts: opts}
}

// CookieName returns the session cookie name.
func (v *Validator) CookieName() string { return v.opts.CookieName }

// Validate returns the caller's identity, or ErrUnauthenticated when the
// request carries no usable credentials. Lookup failures are returned as is.
func (v *Validator) Validate(r *http.Request) (*Identity, error) {
	if r == nil {
		return nil, ErrUnauthenticated
	}
	ctx := r.Context()

	if c, err := r.Cookie(v.opts.CookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		u, err := repo.GetSessionUser(ctx, v.db, c.Value, v.opts.Clock().UTC())
		switch {
		case err == nil:
			return v.identity(ctx, *u, "cookie")
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}
	}

	if tok, ok := bearerToken(r); ok && len(v.opts.JWTSecret) > 0 {
		claims, err := v.ParseToken(tok)
		if err != nil {
			return nil, ErrUnauthenticated
		}
		return v.lookupUser(ctx, claims.Subject, "bearer")
	}

	if v.opts.AllowDevHeader {
		if id := strings.TrimSpace(r.Header.Get(DevUserHeader)); id != "" {
			return v.lookupUser(ctx, id, "header")
		}
	}
	return nil, ErrUnauthenticated
}

// ParseToken validates an HS256 bearer token and returns its claims.
func (v *Validator) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.opts.Clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.opts.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(v.opts.JWTIssuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.opts.JWTSecret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueToken signs a bearer token for userID valid for ttl.
func (v *Validator) IssueToken(userID string, ttl time.Duration) (string, error) {
	if len(v.opts.JWTSecret) == 0 {
		return "", errors.New("auth: no signing secret configured")
	}
	now := v.opts.Clock()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.opts.JWTIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}})
	return tok.SignedString(v.opts.JWTSecret)
}

func (v *Validator) lookupUser(ctx context.Context, userID, source string) (*Identity, error) {
	u, err := repo.GetUser(ctx, v.db, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return v.identity(ctx, *u, source)
}

func (v *Validator) identity(ctx context.Context, u domain.User, source string) (*Identity, error) {
	roles, err := repo.ListRoles(ctx, v.db, u.ID)
	if err != nil {
		return nil, err
	}
	return &Identity{User: u, Roles: roles, Source: source}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}
