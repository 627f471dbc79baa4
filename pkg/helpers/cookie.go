package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieManager writes and clears the session token cookie. The token itself
// is opaque; the server-side payload behind it lives in the session store.
type CookieManager struct {
	Name   string
	Domain string
	Secure bool
	TTL    time.Duration
}

func NewCookieManager(name, domain string, secure bool, ttl time.Duration) *CookieManager {
	return &CookieManager{Name: name, Domain: domain, Secure: secure, TTL: ttl}
}

func (m *CookieManager) SetSession(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.Name, token, int(m.TTL.Seconds()), "/", m.Domain, m.Secure, true)
}

func (m *CookieManager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.Name, "", -1, "/", m.Domain, m.Secure, true)
}
