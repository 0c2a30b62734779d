package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Responder writes the response for a request that needs authentication it
// does not have.
type Responder interface {
	Reject(c *gin.Context)
}

// JSONResponder answers 401 with an error body, for programmatic callers.
type JSONResponder struct{}

func (JSONResponder) Reject(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// RedirectResponder sends browsers back to the entry page.
type RedirectResponder struct {
	Location string
}

func (r RedirectResponder) Reject(c *gin.Context) {
	c.Redirect(http.StatusFound, r.Location)
	c.Abort()
}

// NegotiateFailure picks the Responder for this request: callers that asked
// for JSON, sent an XHR marker or are upgrading to a websocket get a 401,
// everyone else is redirected to loginPath.
func NegotiateFailure(r *http.Request, loginPath string) Responder {
	if WantsJSON(r) || isWebSocketUpgrade(r) {
		return JSONResponder{}
	}
	return RedirectResponder{Location: loginPath}
}

// WantsJSON reports whether the caller declared it accepts structured responses.
func WantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	for _, accept := range r.Header.Values("Accept") {
		if strings.Contains(strings.ToLower(accept), "application/json") {
			return true
		}
	}
	return false
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
