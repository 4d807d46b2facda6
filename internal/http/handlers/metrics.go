package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/halcyonlabs/agentstudio-backend/internal/observability"
)

type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler { return &MetricsHandler{} }

func (h *MetricsHandler) Metrics(c *gin.Context) {
	m := observability.Current()
	if m == nil {
		c.String(http.StatusNotFound, "metrics disabled")
		return
	}
	c.Header("Content-Type", "text/plain; version=0.0.4")
	if err := m.WritePrometheus(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
