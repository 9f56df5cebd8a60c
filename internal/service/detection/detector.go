// Package detection turns raw detector output into per-class presence signals.
package detection

import (
	"image"

	"birdcam/internal/model"
)

// Detector is the capability the core needs from an inference backend.
type Detector interface {
	// Labels returns the full vocabulary of the backend.
	Labels() map[model.ClassID]string
	// Detect runs inference on one frame.
	Detect(img image.Image) ([]model.Detection, error)
}
