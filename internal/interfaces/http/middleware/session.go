package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionKey is the gin context key the shopper session id is stored under.
const SessionKey = "sid"

// SessionConfig holds session cookie settings.
type SessionConfig struct {
	CookieName   string
	CookieDomain string
	CookiePath   string
	CookieSecure bool
	SameSite     string // "strict", "lax", or "none"
	TTL          int    // cookie max age in seconds
}

// Session issues and loads the shopper session cookie. Every request gets a
// session id: an existing cookie is reused, otherwise a fresh id is minted
// and set. The id is the key for all per-shopper state, so it must survive
// the cross-site return navigation from a payment gateway (SameSite=Lax
// still sends the cookie on top-level GETs).
func Session(cfg SessionConfig) gin.HandlerFunc {
	sameSite := parseSameSite(cfg.SameSite)

	return func(c *gin.Context) {
		sid, err := c.Cookie(cfg.CookieName)
		if err != nil || sid == "" || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    sid,
				Domain:   cfg.CookieDomain,
				Path:     cfg.CookiePath,
				MaxAge:   cfg.TTL,
				Secure:   cfg.CookieSecure,
				HttpOnly: true,
				SameSite: sameSite,
			})
		}
		c.Set(SessionKey, sid)
		c.Next()
	}
}

// GetSessionID returns the shopper session id for the request.
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionKey)
}

func parseSameSite(v string) http.SameSite {
	switch v {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
