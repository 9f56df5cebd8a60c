// Package app wires configuration, adapters and the ingestion loop into a runnable
// process.
package app

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"birdcam/internal/config"
	"birdcam/internal/logger"
	"birdcam/internal/metrics"
	"birdcam/internal/repository"
	"birdcam/internal/repository/sqlite"
	"birdcam/internal/route"
	"birdcam/internal/service"
	"birdcam/internal/service/ai"
	"birdcam/internal/service/annotate"
	"birdcam/internal/service/detection"
	"birdcam/internal/service/mqtt"
	"birdcam/internal/service/source"
	"birdcam/internal/service/source/capture"
	"birdcam/internal/service/storage"
	"birdcam/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

// Components lets callers supply their own frame source or detector. Nil fields are
// built from the configuration.
type Components struct {
	Source   source.FrameSource
	Detector detection.Detector
}

// App owns every long-lived component of the process.
type App struct {
	config    *config.Config
	logger    *logger.Logger
	source    source.FrameSource
	detector  detection.Detector
	db        *sqlite.DB
	hub       *websocket.Hub
	publisher *mqtt.Publisher
	metrics   *metrics.Metrics
	sink      *storage.FileSink
	index     *storage.Index
	manager   *service.Manager
	images    *sqlite.ImageRepository
	dets      *sqlite.DetectionRepository
	started   time.Time
}

// New builds the application. It fails with detection.ErrNoTargetClasses when none of
// the configured targets exist in the detector vocabulary.
func New(cfg *config.Config, log *logger.Logger, c Components) (*App, error) {
	a := &App{config: cfg, logger: log, started: time.Now()}

	a.detector = c.Detector
	if a.detector == nil {
		d, err := ai.NewSSDDetector(cfg.ModelPath, cfg.ConfigPath, cfg.LabelsPath, log)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create detector")
		}
		a.detector = d
	}

	targets, err := detection.ResolveTargets(a.detector.Labels(), cfg.Targets, cfg.Colors, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	if a.metrics, err = metrics.New(); err != nil {
		a.Close()
		return nil, err
	}

	renderer, err := annotate.NewRenderer(0)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sink = storage.NewFileSink(cfg.OutputDir, cfg.JPEGQuality)
	var listeners []service.EvidenceListener

	if cfg.DBPath != "" {
		if a.db, err = sqlite.New(cfg.DBPath); err != nil {
			a.Close()
			return nil, errors.Wrap(err, "failed to open evidence index")
		}
		a.images = sqlite.NewImageRepository(a.db)
		a.dets = sqlite.NewDetectionRepository(a.db)
		a.index = storage.NewIndex(a.images, a.dets, log)
		listeners = append(listeners, a.index)
	}

	if cfg.MQTT.Broker != "" {
		a.publisher = mqtt.NewPublisher(cfg.MQTT, log)
		listeners = append(listeners, a.publisher)
	}

	if cfg.HTTPAddr != "" {
		a.hub = websocket.NewHub(log)
		listeners = append(listeners, a.hub)
	}

	a.source = c.Source
	if a.source == nil {
		if a.source, err = capture.Open(cfg.Source, log); err != nil {
			a.Close()
			return nil, errors.Wrap(err, "failed to open frame source")
		}
	}

	a.manager, err = service.NewManager(service.Options{
		Source:    a.source,
		Detector:  a.detector,
		Targets:   targets,
		Threshold: cfg.ConfidenceThreshold,
		Interval:  cfg.Throttle(),
		Renderer:  renderer,
		Persister: storage.NewPersister(a.sink),
		Listeners: listeners,
		Metrics:   a.metrics,
		Camera:    cfg.SourceName,
		Logger:    log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Manager returns the ingestion loop.
func (a *App) Manager() *service.Manager {
	return a.manager
}

// Run starts the HTTP server, WebSocket hub and MQTT client, then runs the ingestion
// loop until ctx is cancelled or the loop stops on its own.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	// A blocked NextFrame only returns once the source is closed.
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		if err := a.source.Close(); err != nil {
			a.logger.Warning("Error closing frame source: %v", err)
		}
	}()

	if a.publisher != nil {
		if err := a.publisher.Connect(ctx); err != nil {
			a.logger.Warning("MQTT broker unavailable, notices will be retried on reconnect: %v", err)
		}
	}

	var server *http.Server
	if a.hub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.hub.Run(ctx)
		}()

		server = &http.Server{
			Addr: a.config.HTTPAddr,
			Handler: route.SetupRoutes(route.Deps{
				Config:        a.config,
				Logger:        a.logger,
				Hub:           a.hub,
				Metrics:       a.metrics,
				Sink:          a.sink,
				ImageRepo:     a.imageRepo(),
				DetectionRepo: a.detectionRepo(),
				Started:       a.started,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.logger.Info("🚀 HTTP server listening on %s", a.config.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("HTTP server failed: %v", err)
			}
		}()
	}

	a.logger.Info("📁 Evidence: %s", a.config.OutputDir)
	a.logger.Info("🤖 Model: %s", a.config.ModelPath)
	runErr := a.manager.Run(ctx)
	cancel()

	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warning("HTTP server shutdown: %v", err)
		}
		stop()
	}
	wg.Wait()
	return runErr
}

// imageRepo and detectionRepo keep a disabled index a nil interface.
func (a *App) imageRepo() repository.ImageRepository {
	if a.images == nil {
		return nil
	}
	return a.images
}

func (a *App) detectionRepo() repository.DetectionRepository {
	if a.dets == nil {
		return nil
	}
	return a.dets
}

// Close releases the detector, the source, the index database and the MQTT client.
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.source != nil {
		keep(a.source.Close())
	}
	if closer, ok := a.detector.(io.Closer); ok {
		keep(closer.Close())
	}
	if a.db != nil {
		keep(a.db.Close())
	}
	return firstErr
}
