package middleware

import (
	"github.com/gin-gonic/gin"
	"room_coordinator/pkg/errors"
	"room_coordinator/pkg/logger"
)

// ErrorHandler отвечает на ошибки, добавленные через c.Error, если ответ еще не записан
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last()

		statusCode := errors.HTTPStatusFromError(err.Err)
		if statusCode >= 500 {
			log.Error("Unhandled request error", "error", err.Err, "path", c.Request.URL.Path)
		}

		c.JSON(statusCode, gin.H{
			"error": errors.PublicMessage(err.Err),
		})
	}
}
