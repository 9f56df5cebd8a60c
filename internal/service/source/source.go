// Package source provides frame sources for the ingestion loop. The OpenCV-backed
// capture lives in the capture subpackage so this package builds without cgo.
package source

import "birdcam/internal/model"

// FrameSource yields decoded frames in capture order. NextFrame blocks until a frame is
// available and returns io.EOF once the source is exhausted or closed.
type FrameSource interface {
	NextFrame() (model.Frame, error)
	Close() error
}

// UDPScheme prefixes source addresses served by ListenUDP.
const UDPScheme = "udp://"
