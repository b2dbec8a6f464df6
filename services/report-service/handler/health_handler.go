package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// Health reports the service status and, when given, the store's reachability.
func Health(service string, store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "healthy", "service": service}
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store(ctx); err != nil {
				body["status"] = "degraded"
				body["store"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
