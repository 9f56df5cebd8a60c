package route

import (
	"net/http"
	"time"

	"birdcam/internal/config"
	"birdcam/internal/handler"
	"birdcam/internal/logger"
	"birdcam/internal/metrics"
	"birdcam/internal/middleware"
	"birdcam/internal/repository"
	"birdcam/internal/service/storage"
	hub "birdcam/internal/service/websocket"
)

// Deps are the collaborators the HTTP surface reads from. Repositories and Metrics may
// be nil, which disables the routes that need them.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Hub           *hub.Hub
	Metrics       *metrics.Metrics
	Sink          *storage.FileSink
	ImageRepo     repository.ImageRepository
	DetectionRepo repository.DetectionRepository
	Started       time.Time
}

// SetupRoutes registers the API endpoints and wraps the mux with request logging.
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", handler.HealthHandler(d.Started, d.Hub, d.Logger))

	if d.Hub != nil {
		mux.HandleFunc("/api/events", handler.EventsWebsocketHandler(d.Hub, d.Logger))
	}

	if d.ImageRepo != nil {
		mux.HandleFunc("/api/evidence", handler.ListEvidenceHandler(d.Logger, d.Sink, d.ImageRepo, d.DetectionRepo))
		mux.HandleFunc("/api/evidence/stats", handler.EvidenceStatsHandler(d.Logger, d.ImageRepo))
		mux.HandleFunc("/api/evidence/delete", handler.DeleteEvidenceHandler(d.Config, d.Logger, d.ImageRepo))
	}
	mux.HandleFunc("/api/evidence/view", handler.ViewEvidenceHandler(d.Config))

	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}

	// Log endpoints
	if dir := d.Logger.Dir(); dir != "" {
		for _, name := range []string{logger.InfoFile, logger.WarningFile, logger.ErrorFile} {
			mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(dir, name))
			mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(d.Logger, name))
		}
	}

	return middleware.LoggingMiddleware(d.Logger, mux)
}
