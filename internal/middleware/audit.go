package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/pkg/middleware/requestid"
)

// Audit logs every successful admin mutation with the acting account.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}
		actor := CurrentActor(c)
		logger.Info("admin_audit",
			zap.String("action", action),
			zap.String("actor_id", actor.ID),
			zap.String("path", c.FullPath()),
			zap.String("target_id", c.Param("id")),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", requestid.Value(c)),
		)
	}
}
