// Package handler implements the HTTP request handlers.
package handler

import (
	"github.com/gin-gonic/gin"

	"storybible-api/internal/interfaces/http/dto"
	"storybible-api/pkg/errors"
	"storybible-api/pkg/logger"
)

// respondError is the single funnel for handler errors: application
// errors keep their status and message, anything else becomes a
// generic 500 with details only in the logs.
func respondError(c *gin.Context, err error) {
	if errors.IsAppError(err) {
		appErr := errors.AsAppError(err)
		if appErr.HTTPStatus >= 500 {
			logger.Error(c.Request.Context(), "request failed", err,
				"path", c.Request.URL.Path, "method", c.Request.Method)
		}
		dto.Error(c, appErr.HTTPStatus, appErr.Message)
		return
	}

	logger.Error(c.Request.Context(), "unclassified handler error", err,
		"path", c.Request.URL.Path, "method", c.Request.Method)
	dto.InternalError(c, "internal server error")
}
