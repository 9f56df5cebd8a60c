package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"birdcam/internal/logger"
	hub "birdcam/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsWebsocketHandler registers viewers with the hub so they receive a JSON notice
// for every saved evidence image.
func EventsWebsocketHandler(h *hub.Hub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		if !h.Register(connection) {
			connection.Close()
			return
		}
		defer h.Unregister(connection)

		// Viewers only listen; reading detects disconnects.
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Viewer disconnected normally")
				} else {
					logger.Debug("Viewer disconnected: %v", err)
				}
				return
			}
		}
	}
}
