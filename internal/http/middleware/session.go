package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agrihub-davao/chat-backend/internal/session"
)

// HeaderSessionToken carries the opaque token issued by POST /sessions.
const HeaderSessionToken = "X-Session-Token"

const (
	ctxKeyUserID  = "userID"
	ctxKeySession = "session"
	ctxKeyToken   = "session.token"
)

// SessionLoader resolves a token into a stored session.
type SessionLoader interface {
	Load(ctx context.Context, token string) (session.UserSession, error)
}

// SessionAuth resolves the session token of the request and stores the user
// id under "userID" for downstream middleware and handlers.
//
// The token is read from X-Session-Token. Websocket upgrades cannot set
// custom headers from browsers, so GET requests may pass it as ?token=.
// Unknown tokens yield 401; store failures yield 503.
func SessionAuth(loader SessionLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(HeaderSessionToken))
		if token == "" && c.Request.Method == http.MethodGet {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "missing session token")
			return
		}

		us, err := loader.Load(c.Request.Context(), token)
		switch {
		case errors.Is(err, session.ErrNotFound):
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "unknown or expired session")
			return
		case err != nil:
			LoggerFrom(c).Error().Err(err).Msg("session lookup failed")
			abortWithError(c, http.StatusServiceUnavailable, "store_unavailable", "session store unavailable")
			return
		}

		c.Set(ctxKeyToken, token)
		c.Set(ctxKeySession, us)
		c.Set(ctxKeyUserID, us.ID)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" when the request carries
// no session.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SessionToken returns the token resolved by SessionAuth.
func SessionToken(c *gin.Context) string {
	s, _ := c.Get(ctxKeyToken)
	tok, _ := s.(string)
	return tok
}

// CurrentSession returns the session resolved by SessionAuth.
func CurrentSession(c *gin.Context) (session.UserSession, bool) {
	v, ok := c.Get(ctxKeySession)
	if !ok {
		return session.UserSession{}, false
	}
	us, ok := v.(session.UserSession)
	return us, ok
}
