package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Gin context keys set by RequireSession.
const (
	CtxUserID   = "userID"
	CtxIdentity = "identity"
)

// SessionValidator is what RequireSession needs from a Validator.
type SessionValidator interface {
	Validate(r *http.Request) (*Identity, error)
}

// RequireSession aborts with 401 unless the request is authenticated. On
// success the user id and identity are stored in the gin context.
func RequireSession(v SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Validate(c.Request)
		if err != nil {
			status := http.StatusUnauthorized
			if !errors.Is(err, ErrUnauthenticated) {
				log.Error().Err(err).Msg("session lookup failed")
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{
				"ok":         false,
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       codeFor(status),
				"error":      messageFor(status),
			})
			return
		}
		c.Set(CtxUserID, id.User.ID)
		c.Set(CtxIdentity, id)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireSession.
func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok && id != nil
}

func codeFor(status int) string {
	if status == http.StatusUnauthorized {
		return "unauthorized"
	}
	return "internal_error"
}

func messageFor(status int) string {
	if status == http.StatusUnauthorized {
		return "Not authenticated"
	}
	return "Session lookup failed"
}
