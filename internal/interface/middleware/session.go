package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/liteboard/auth-service/pkg/helpers"
)

// TokenKey is the gin context key holding the caller's session token.
const TokenKey = "session_token"

// tokenIssuedKey marks tokens minted by the server during this request, as
// opposed to tokens presented by the client.
const tokenIssuedKey = "session_token_issued"

// Session ensures every request carries a session token. A caller arriving
// without the cookie gets a fresh opaque token minted and set; the
// server-side payload behind it stays empty until a successful register or
// login. The token itself never encodes identity.
func Session(cookies *helpers.CookieManager, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookies.Name)
		if err != nil || token == "" {
			token, err = helpers.GenerateToken(32)
			if err != nil {
				logger.WithError(err).Error("session token generation failed")
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			cookies.SetSession(c, token)
			c.Set(tokenIssuedKey, true)
		}
		c.Set(TokenKey, token)
		c.Next()
	}
}

// SessionToken returns the token placed in the context by Session.
func SessionToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}

// TokenIssued reports whether the request's session token was minted by the
// server during this request. A false return means the client chose the
// token, so it must never be promoted to an authenticated session.
func TokenIssued(c *gin.Context) bool {
	return c.GetBool(tokenIssuedKey)
}
