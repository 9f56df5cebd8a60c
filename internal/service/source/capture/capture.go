// Package capture reads frames through OpenCV and picks the frame source for a
// configured address.
package capture

import (
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"birdcam/internal/logger"
	"birdcam/internal/model"
	"birdcam/internal/service/source"
)

// Open selects a source for uri: "udp://host:port" listens for JPEG datagrams,
// anything else (RTSP/HTTP URL, file path or device index) goes to OpenCV.
func Open(uri string, logger *logger.Logger) (source.FrameSource, error) {
	if strings.HasPrefix(uri, source.UDPScheme) {
		src, err := source.ListenUDP(strings.TrimPrefix(uri, source.UDPScheme), logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	src, err := New(uri, logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Capture reads frames through an OpenCV VideoCapture.
type Capture struct {
	uri    string
	live   bool
	device *gocv.VideoCapture
	mat    gocv.Mat
	clock  clock.Clock
	seq    uint64
	closed bool
	mu     sync.Mutex
	logger *logger.Logger
}

// New opens a stream URL, a video file, or a camera index such as "0".
func New(uri string, logger *logger.Logger) (*Capture, error) {
	var (
		device *gocv.VideoCapture
		err    error
	)
	if index, convErr := strconv.Atoi(uri); convErr == nil {
		device, err = gocv.OpenVideoCapture(index)
	} else {
		device, err = gocv.OpenVideoCapture(uri)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open video source %s", uri)
	}
	if !device.IsOpened() {
		device.Close()
		return nil, errors.Errorf("video source %s is not open", uri)
	}

	logger.Info("📹 Video source opened: %s", uri)
	return &Capture{
		uri:    uri,
		live:   IsLive(uri),
		device: device,
		mat:    gocv.NewMat(),
		clock:  clock.New(),
		logger: logger,
	}, nil
}

// IsLive reports whether uri names a camera device or a network stream rather than a
// file, which can legitimately run out of frames.
func IsLive(uri string) bool {
	if _, err := strconv.Atoi(uri); err == nil {
		return true
	}
	return strings.Contains(uri, "://") && !strings.HasPrefix(strings.ToLower(uri), "file://")
}

// grabFailure maps a failed read to io.EOF for files and to an error for live sources.
func grabFailure(uri string, live bool) error {
	if !live {
		return io.EOF
	}
	return errors.Errorf("failed to grab frame from %s", uri)
}

// NextFrame reads the next frame. The end of a file is reported as io.EOF; a failed grab
// on a live stream or device is an error.
func (c *Capture) NextFrame() (model.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return model.Frame{}, io.EOF
	}
	if ok := c.device.Read(&c.mat); !ok || c.mat.Empty() {
		return model.Frame{}, grabFailure(c.uri, c.live)
	}
	now := c.clock.Now()

	img, err := c.mat.ToImage()
	if err != nil {
		return model.Frame{}, errors.Wrap(err, "failed to convert frame")
	}
	c.seq++
	return model.Frame{Seq: c.seq, Timestamp: now, Image: img}, nil
}

// Close releases the device. Further reads return io.EOF.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.device.Close()
}
