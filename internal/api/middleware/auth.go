package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-minter/internal/identity"
	"github.com/feral-file/ff-minter/internal/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	CREDENTIALS_KEY contextKey = "host_credentials"

	// DISPLAY_NAME_HEADER carries the host's display name when the token has none
	DISPLAY_NAME_HEADER = "X-Display-Name"
)

// HostCredentials extracts the host session token and display name hint.
// It never rejects a request: verification happens once, at session bootstrap,
// and an unverifiable caller becomes an ineligible session.
func HostCredentials() gin.HandlerFunc {
	return func(c *gin.Context) {
		creds := identity.Credentials{
			Token:           identity.BearerToken(c.GetHeader("Authorization")),
			DisplayNameHint: strings.TrimSpace(c.GetHeader(DISPLAY_NAME_HEADER)),
		}
		c.Set(string(CREDENTIALS_KEY), creds)
		c.Next()
	}
}

// CredentialsFromContext returns the credentials extracted by HostCredentials
func CredentialsFromContext(c *gin.Context) identity.Credentials {
	v, ok := c.Get(string(CREDENTIALS_KEY))
	if !ok {
		return identity.Credentials{}
	}
	creds, _ := v.(identity.Credentials)
	return creds
}

// SessionLogging attaches the session id path parameter to the request context for log correlation
func SessionLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param("id"); id != "" {
			ctx := logger.WithSession(c.Request.Context(), logger.SessionInfo{SessionID: id})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
