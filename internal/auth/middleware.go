package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/abduss/filestore/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHeader carries the session id for clients that cannot keep cookies.
const SessionHeader = "X-Session-ID"

// sessionQueryParam is honoured on websocket upgrades only, where browsers cannot set headers.
const sessionQueryParam = "sessionId"

const principalContextKey = "filestorePrincipal"

type resolver interface {
	Resolve(ctx context.Context, sessionID string) (Principal, error)
}

// GateConfig tunes session transport and the redirect target.
type GateConfig struct {
	CookieName string
	LoginPath  string
}

// Gate resolves the request's session to an active user or rejects the
// request with the negotiated failure response.
func Gate(service resolver, cfg GateConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := SessionID(c, cfg.CookieName)

		principal, err := service.Resolve(c.Request.Context(), id)
		if err != nil {
			if !errors.Is(err, ErrUnauthorized) {
				logger.FromContext(c).Error("resolve session", zap.Error(err))
			}
			NegotiateFailure(c.Request, cfg.LoginPath).Reject(c)
			return
		}

		c.Set(principalContextKey, principal)
		c.Header(SessionHeader, principal.SessionID)
		c.Next()
	}
}

// SessionID extracts the session identifier. The header wins over the cookie.
func SessionID(c *gin.Context, cookieName string) string {
	if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" {
		return id
	}
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	if isWebSocketUpgrade(c.Request) {
		return strings.TrimSpace(c.Query(sessionQueryParam))
	}
	return ""
}

// CurrentUser extracts the authenticated principal from the context.
func CurrentUser(c *gin.Context) (Principal, bool) {
	value, exists := c.Get(principalContextKey)
	if !exists {
		return Principal{}, false
	}
	p, ok := value.(Principal)
	return p, ok
}
