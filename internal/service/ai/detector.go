// Package ai runs object detection with the OpenCV DNN module.
package ai

import (
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"birdcam/internal/logger"
	"birdcam/internal/model"
	"birdcam/internal/service/detection"
)

// Input geometry of the SSD MobileNet COCO graph.
const (
	inputSize  = 300
	inputScale = 1.0 / 127.5
	inputMean  = 127.5
	// Each output row is [batch, class, confidence, x1, y1, x2, y2] with coordinates
	// normalised to the frame size.
	rowWidth = 7
)

// SSDDetector runs an SSD MobileNet network loaded through gocv. It is safe for use by
// one caller at a time; Detect serialises concurrent calls.
type SSDDetector struct {
	net    gocv.Net
	labels map[model.ClassID]string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewSSDDetector loads the network from modelPath/configPath. labelsPath may be empty
// to use the built-in COCO vocabulary.
func NewSSDDetector(modelPath, configPath, labelsPath string, logger *logger.Logger) (*SSDDetector, error) {
	labels, err := detection.LoadLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, errors.Wrapf(err, "config file not found: %s", configPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load network from %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "failed to set preferable backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "failed to set preferable target")
	}

	logger.Info("🤖 Detection network initialized (%d labels)", len(labels))
	return &SSDDetector{net: net, labels: labels, logger: logger}, nil
}

// Labels returns a copy of the detector vocabulary.
func (d *SSDDetector) Labels() map[model.ClassID]string {
	out := make(map[model.ClassID]string, len(d.labels))
	for id, name := range d.labels {
		out[id] = name
	}
	return out
}

// Detect runs the network on img and returns every detection with a positive
// confidence. Thresholding is left to the caller.
func (d *SSDDetector) Detect(img image.Image) ([]model.Detection, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty frame")
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert frame")
	}
	defer mat.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(mat, inputScale, image.Pt(inputSize, inputSize), gocv.NewScalar(inputMean, inputMean, inputMean, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	rows := output.Reshape(1, output.Total()/rowWidth)
	defer rows.Close()

	return decodeRows(rows.Rows(), rows.GetFloatAt, mat.Cols(), mat.Rows()), nil
}

// decodeRows converts raw network rows into detections clamped to a cols x rows frame.
func decodeRows(n int, at func(row, col int) float32, cols, rows int) []model.Detection {
	var out []model.Detection
	for i := 0; i < n; i++ {
		confidence := at(i, 2)
		if !(confidence > 0) {
			continue
		}
		box := model.BoundingBox{
			X1: clamp(int(at(i, 3)*float32(cols)), cols),
			Y1: clamp(int(at(i, 4)*float32(rows)), rows),
			X2: clamp(int(at(i, 5)*float32(cols)), cols),
			Y2: clamp(int(at(i, 6)*float32(rows)), rows),
		}
		conf := float64(confidence)
		if conf > 1 {
			conf = 1
		}
		out = append(out, model.Detection{
			ClassID:    model.ClassID(at(i, 1)),
			Confidence: conf,
			Box:        box,
		})
	}
	return out
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Close releases the network.
func (d *SSDDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
