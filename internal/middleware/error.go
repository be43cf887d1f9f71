package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/homevisit-api/internal/handler"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		requestID := c.GetString(ContextRequestID)
		lastErr := c.Errors.Last()
		status, resp := handler.ErrorFrom(lastErr.Err)

		event := log.Warn()
		if apperrors.CodeOf(lastErr.Err) == apperrors.ErrInternal {
			event = log.Error()
		}
		event.
			Err(lastErr.Err).
			Str("request_id", requestID).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Int("status", status).
			Msg("Request error")

		c.JSON(status, resp)
	}
}

// abortWith stops the chain and renders err immediately.
func abortWith(c *gin.Context, err error) {
	status, resp := handler.ErrorFrom(err)
	c.AbortWithStatusJSON(status, resp)
}
