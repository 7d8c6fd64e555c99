package server

import (
	"context"
	"net/http"

	"mijob/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// QueueInspector is satisfied by *email.Service.
type QueueInspector interface {
	QueueLength(ctx context.Context) int64
}

// EmailQueue reports how many notifications are waiting for the worker.
func EmailQueue(q QueueInspector) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pending": q.QueueLength(c.Request.Context())})
	}
}

// Metrics exposes Prometheus metrics in text format.
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
