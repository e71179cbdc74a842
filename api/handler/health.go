package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/prober"
	"github.com/pardeepdhingra/urllens/render"
	"github.com/pardeepdhingra/urllens/store"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports session store utilisation and renderer availability. Status
// degrades when the store is over 80% full, because new audits start
// getting rejected once it fills with running sessions.
func Health(st store.SessionStore, rd render.Renderer, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := st.Stats()

		status := "healthy"
		if stats.Max > 0 && stats.Total > int(float64(stats.Max)*0.8) {
			status = "degraded"
		}

		renderer := "unavailable"
		if rd != nil && rd.Available() {
			renderer = "available"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			Sessions:       stats,
			Renderer:       renderer,
			CatalogVersion: prober.CatalogVersion,
			Version:        "0.1.0",
		})
	}
}
