// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on purchase and crate-open
// requests. The normalized key is stashed in the gin context; handlers pass it
// to the services, which persist it (store purchases) or use it as the open
// attempt id (crate opens). When a lookup reports that the key already
// produced a committed result, the request is flagged as a replay so the rate
// limiter lets it through and the handler can mark the response.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed is set on responses served from a prior result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the key was found to have a committed result.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// MarkReplayed sets the Idempotency-Replayed response header.
func MarkReplayed(c *gin.Context) {
	c.Header(HeaderIdempotencyReplayed, "true")
}

// IdempotencyLookup reports whether (userID, scope, key) already produced a
// committed, unexpired result. Errors are treated as "not found".
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error)

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts key characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Scope names the operation the key belongs to, e.g. "store:purchase".
	Scope string
	// Lookup is optional.
	Lookup IdempotencyLookup
	// Match replaces Lookup when the replay decision depends on the request
	// itself, e.g. the key must belong to the same target resource.
	Match IdempotencyMatch
}

// IdempotencyMatch reports whether key is a replay of this very request.
// It may read the body through ShouldBindBodyWith. Errors are treated as
// "not found".
type IdempotencyMatch func(c *gin.Context, userID, key string) (bool, error)

// IdempotencyValidator validates the header on unsafe methods. It must run
// after authentication so the lookup sees the caller's id.
func IdempotencyValidator(opts IdempotencyOptions) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"ok":         false,
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"error":      "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if uid := c.GetString("userID"); uid != "" {
			var found bool
			var err error
			switch {
			case opts.Match != nil:
				found, err = opts.Match(c, uid, key)
			case opts.Lookup != nil:
				found, err = opts.Lookup(c.Request.Context(), uid, opts.Scope, key, time.Now().UTC())
			}
			if err == nil && found {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
