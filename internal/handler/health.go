package handler

import (
	"net/http"
	"time"

	"birdcam/internal/dto"
	"birdcam/internal/logger"
	hub "birdcam/internal/service/websocket"
)

// HealthHandler reports liveness and the number of connected viewers.
func HealthHandler(started time.Time, h *hub.Hub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := dto.Health{
			Status: "ok",
			Uptime: time.Since(started).Round(time.Second).String(),
		}
		if h != nil {
			health.Viewers = h.ClientCount()
		}
		writeJSON(w, logger, health)
	}
}
