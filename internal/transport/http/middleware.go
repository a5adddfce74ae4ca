package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/directchat/internal/auth"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyIdentity is the context key for storing the resolved identity.
	ContextKeyIdentity = "identity"
)

// AuthMiddleware resolves the session credential with the same verifier the live
// connection handshake uses.
func AuthMiddleware(verifier *auth.Verifier, cookieName string, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.Verify(c.Request.Context(), auth.TokenFromRequest(c.Request, cookieName))
		if err != nil {
			if auth.IsAuthError(err) {
				logger.Debug().Err(err).Msg("unauthorized request")
				c.AbortWithStatusJSON(http.StatusUnauthorized, errUnauthorized)
				return
			}
			logger.Error().Err(err).Msg("verify credential")
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
			return
		}

		c.Set(ContextKeyUserID, identity.UserID)
		c.Set(ContextKeyIdentity, identity)

		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// currentUserID reads the id AuthMiddleware stored. It answers 401 and returns false when missing.
func currentUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		c.JSON(http.StatusUnauthorized, errUnauthorized)
		return 0, false
	}
	uid, ok := v.(int64)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return 0, false
	}
	return uid, true
}
