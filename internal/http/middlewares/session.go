package middlewares

import (
	"net/http"
	"time"

	"github.com/geocoder89/profilehub/internal/session"
	"github.com/gin-gonic/gin"
)

const SessionCookieName = "profilehub_session"

// LoadSession attaches the signed-in session, if any. A missing or expired
// session is not an error; the cookie is simply cleared.
func LoadSession(store session.Store, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookieName)
		if err != nil || id == "" {
			c.Next()
			return
		}

		s, err := store.Get(c.Request.Context(), id)
		if err != nil || time.Now().After(s.ExpiresAt) {
			ClearSessionCookie(c, secure)
			c.Next()
			return
		}

		c.Set(CtxSession, s)
		c.Next()
	}
}

func SessionFromContext(c *gin.Context) (session.Session, bool) {
	v, ok := c.Get(CtxSession)
	if !ok {
		return session.Session{}, false
	}
	s, ok := v.(session.Session)
	return s, ok
}

// SetSessionCookie writes a browser-session cookie unless the session is
// persistent, in which case it lives until the session expires.
func SetSessionCookie(c *gin.Context, s session.Session, secure bool) {
	maxAge := 0
	if s.Persistent {
		maxAge = int(time.Until(s.ExpiresAt).Seconds())
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, s.ID, maxAge, "/", "", secure, true)
}

func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", secure, true)
}
