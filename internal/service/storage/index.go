package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"birdcam/internal/logger"
	"birdcam/internal/model"
	"birdcam/internal/repository"
)

// Index records every written evidence image and its qualifying detections in the
// evidence database.
type Index struct {
	images     repository.ImageRepository
	detections repository.DetectionRepository
	logger     *logger.Logger
}

// NewIndex creates an evidence listener backed by the given repositories.
func NewIndex(images repository.ImageRepository, detections repository.DetectionRepository, logger *logger.Logger) *Index {
	return &Index{images: images, detections: detections, logger: logger}
}

// Name identifies the listener in logs and metrics.
func (i *Index) Name() string {
	return "index"
}

// OnEvidence upserts the image row for the evidence file. A file overwritten by a
// same-second event replaces the previous row and its detections.
func (i *Index) OnEvidence(ctx context.Context, evidence model.Evidence) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var size int64
	if info, err := os.Stat(evidence.Location); err == nil {
		size = info.Size()
	}

	img := &model.Image{
		Filename:  filepath.Base(evidence.Location),
		Camera:    evidence.Camera,
		Class:     evidence.Event.Class.Name,
		Timestamp: evidence.Event.Timestamp,
		FilePath:  evidence.Location,
		FileSize:  size,
	}
	id, err := i.images.Insert(img)
	if err != nil {
		return errors.Wrapf(err, "failed to index %s", img.Filename)
	}

	records := make([]model.DetectionRecord, 0, len(evidence.Event.Detections))
	for _, d := range evidence.Event.Detections {
		records = append(records, model.DetectionRecord{
			ImageID:    id,
			ObjectName: evidence.Event.Class.Name,
			X:          d.Box.X1,
			Y:          d.Box.Y1,
			Width:      d.Box.Width(),
			Height:     d.Box.Height(),
			Confidence: d.Confidence,
		})
	}
	if err := i.detections.Replace(id, records); err != nil {
		return errors.Wrapf(err, "failed to index detections of %s", img.Filename)
	}

	i.logger.Debug("Indexed %s (id %d, %d detection(s))", img.Filename, id, len(records))
	return nil
}
