package utils

import (
	"log/slog"
	"net/http"

	apperrors "user-management-backend/internal/errors"

	"github.com/gin-gonic/gin"
)

// SuccessResponse sends a standard success JSON response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// CreatedResponse sends a 201 with the standard success envelope
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}

// ErrorResponse sends a standard error JSON response
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
	})
}

// AppErrorResponse renders err using its AppError code and status. Internal
// causes are logged but never exposed to the client.
func AppErrorResponse(c *gin.Context, err error, logger *slog.Logger) {
	appErr := apperrors.From(err)

	if logger != nil {
		if appErr.Code == apperrors.CodeInternalError {
			logger.Error("request failed",
				slog.String("path", c.FullPath()),
				slog.String("error", err.Error()))
		} else {
			logger.Debug("request rejected",
				slog.String("path", c.FullPath()),
				slog.String("code", appErr.Code))
		}
	}

	body := gin.H{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	c.JSON(appErr.HTTPCode, body)
}

// MessageResponse sends a simple message response
func MessageResponse(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
	})
}
