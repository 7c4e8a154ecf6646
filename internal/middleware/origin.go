package middleware

import (
	"github.com/gin-gonic/gin"
	"room_coordinator/internal/service"
)

// OriginIP кладет адрес клиента в контекст запроса, оттуда он попадает в журнал аудита
func OriginIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithOriginIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
