// Package service runs the frame ingestion loop that ties detection, presence
// tracking, annotation and evidence persistence together.
package service

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"birdcam/internal/logger"
	"birdcam/internal/metrics"
	"birdcam/internal/model"
	"birdcam/internal/service/annotate"
	"birdcam/internal/service/detection"
	"birdcam/internal/service/presence"
	"birdcam/internal/service/source"
	"birdcam/internal/service/storage"
)

// EvidenceListener is notified after an evidence image has been written. Errors are
// logged by the loop and never stop it.
type EvidenceListener interface {
	Name() string
	OnEvidence(ctx context.Context, evidence model.Evidence) error
}

// Options configures a Manager. Renderer, Listeners, Metrics and Clock are optional.
type Options struct {
	Source    source.FrameSource
	Detector  detection.Detector
	Targets   []model.TargetClass
	Threshold float64
	Interval  time.Duration
	Renderer  *annotate.Renderer
	Persister *storage.Persister
	Listeners []EvidenceListener
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Camera    string
	Logger    *logger.Logger
}

// Manager owns the presence engine and runs the single-threaded ingestion loop.
type Manager struct {
	source    source.FrameSource
	detector  detection.Detector
	targets   []model.TargetClass
	threshold float64
	engine    *presence.Engine
	renderer  *annotate.Renderer
	persister *storage.Persister
	listeners []EvidenceListener
	metrics   *metrics.Metrics
	clock     clock.Clock
	camera    string
	logger    *logger.Logger

	frames uint64
	events uint64
}

// NewManager validates opts and creates a Manager with every class absent.
func NewManager(opts Options) (*Manager, error) {
	switch {
	case opts.Source == nil:
		return nil, errors.New("frame source is required")
	case opts.Detector == nil:
		return nil, errors.New("detector is required")
	case opts.Persister == nil:
		return nil, errors.New("persister is required")
	case opts.Logger == nil:
		return nil, errors.New("logger is required")
	case len(opts.Targets) == 0:
		return nil, detection.ErrNoTargetClasses
	case opts.Interval <= 0:
		return nil, errors.Errorf("throttle interval must be positive, got %s", opts.Interval)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Manager{
		source:    opts.Source,
		detector:  opts.Detector,
		targets:   opts.Targets,
		threshold: opts.Threshold,
		engine:    presence.NewEngine(opts.Targets, opts.Interval),
		renderer:  opts.Renderer,
		persister: opts.Persister,
		listeners: opts.Listeners,
		metrics:   opts.Metrics,
		clock:     clk,
		camera:    opts.Camera,
		logger:    opts.Logger,
	}, nil
}

// Engine exposes the presence engine for inspection. It must not be mutated while Run
// is active.
func (m *Manager) Engine() *presence.Engine {
	return m.engine
}

// Stats returns the number of frames processed and events emitted. Call it after Run
// has returned.
func (m *Manager) Stats() (frames, events uint64) {
	return m.frames, m.events
}

// Run processes frames until ctx is cancelled or the source is exhausted, both of which
// return nil. A source or detector failure stops the loop and is returned.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("🎬 Ingestion started: %d target class(es), threshold %.2f, throttle %s",
		len(m.targets), m.threshold, m.engine.Interval())
	defer func() {
		m.logger.Info("🛑 Ingestion stopped: %d frame(s) processed, %d event(s) emitted", m.frames, m.events)
	}()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Shutdown requested")
			return nil
		default:
		}

		frame, err := m.source.NextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				m.logger.Info("Frame source exhausted")
				return nil
			}
			m.logger.Error("Frame acquisition failed: %v", err)
			return errors.Wrap(err, "frame acquisition failed")
		}

		if err := m.processFrame(ctx, frame); err != nil {
			return err
		}
	}
}

// processFrame runs one loop iteration for an acquired frame.
func (m *Manager) processFrame(ctx context.Context, frame model.Frame) error {
	now := frame.Timestamp
	if now.IsZero() {
		now = m.clock.Now()
	}

	start := m.clock.Now()
	raw, err := m.detector.Detect(frame.Image)
	if m.metrics != nil {
		m.metrics.ObserveInference(m.clock.Since(start))
	}
	if err != nil {
		m.logger.Error("Detection failed on frame %d: %v", frame.Seq, err)
		return errors.Wrapf(err, "detection failed on frame %d", frame.Seq)
	}

	m.frames++
	matches := detection.Filter(raw, m.threshold, m.targets)
	if m.metrics != nil {
		m.metrics.FramesProcessed.Inc()
		for _, t := range m.targets {
			if n := len(matches.Detections(t.Name)); n > 0 {
				m.metrics.Detections.WithLabelValues(t.Name).Add(float64(n))
			}
		}
	}

	emitting := m.engine.Update(matches, now)
	if len(emitting) == 0 {
		return nil
	}

	evidenceFrame := m.annotateFrame(frame, emitting, matches)

	// The frame in flight is finished even if shutdown was requested meanwhile.
	persistCtx := context.WithoutCancel(ctx)
	for _, class := range emitting {
		m.events++
		if m.metrics != nil {
			m.metrics.Events.WithLabelValues(class.Name).Inc()
		}

		event := model.EvidenceEvent{
			ID:         uuid.New(),
			Class:      class,
			Timestamp:  now,
			Frame:      evidenceFrame,
			Detections: matches.Detections(class.Name),
		}

		location, err := m.persister.Persist(persistCtx, class.Name, now, evidenceFrame)
		if err != nil {
			m.logger.Error("Failed to save evidence for %s: %v", class.Name, err)
			if m.metrics != nil {
				m.metrics.PersistFailures.WithLabelValues(class.Name).Inc()
			}
			continue
		}
		m.logger.Info("📸 %s sighted (%d box(es)), saved to %s", class.Name, len(event.Detections), location)

		m.notify(persistCtx, model.Evidence{
			Event:    event,
			Camera:   m.camera,
			Name:     storage.Name(class.Name, now),
			Location: location,
		})
	}
	return nil
}

// annotateFrame draws every emitting class on one copy of the frame. On failure the
// unannotated frame is used.
func (m *Manager) annotateFrame(frame model.Frame, emitting []model.TargetClass, matches detection.Matches) image.Image {
	if m.renderer == nil {
		return frame.Image
	}
	sets := make([]annotate.Set, 0, len(emitting))
	for _, class := range emitting {
		sets = append(sets, annotate.Set{Class: class, Detections: matches.Detections(class.Name)})
	}
	annotated, err := m.renderer.Render(frame.Image, sets)
	if err != nil {
		m.logger.Warning("Annotation failed on frame %d, saving it unannotated: %v", frame.Seq, err)
		return frame.Image
	}
	return annotated
}

func (m *Manager) notify(ctx context.Context, evidence model.Evidence) {
	for _, l := range m.listeners {
		if err := l.OnEvidence(ctx, evidence); err != nil {
			m.logger.Warning("%s listener failed for %s: %v", l.Name(), evidence.Name, err)
			if m.metrics != nil {
				m.metrics.ListenerFailures.WithLabelValues(l.Name()).Inc()
			}
		}
	}
}
