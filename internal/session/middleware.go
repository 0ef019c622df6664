package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieName carries the signed session token.
const CookieName = "console_session"

const contextKey = "session"

// Middleware attaches the caller's session, starting a new one when the cookie
// is missing, invalid or points at an expired session.
func Middleware(m *Manager, signer *Signer, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok, err := c.Cookie(CookieName); err == nil && tok != "" {
			if claims, err := signer.Parse(tok); err == nil {
				if s, ok := m.Get(claims.SessionID); ok {
					c.Set(contextKey, s)
					c.Next()
					return
				}
			}
		}

		s := m.Create()
		tok, exp, err := signer.Issue(s.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session issue failed"})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, tok, int(time.Until(exp).Seconds()), "/", "", secure, true)
		c.Set(contextKey, s)
		c.Next()
	}
}

// From returns the session attached by Middleware.
func From(c *gin.Context) *Session {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}
