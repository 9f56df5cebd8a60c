package model

import (
	"image"
	"time"
)

// Frame is one decoded video frame.
type Frame struct {
	// Seq is the monotonic sequence number assigned by the source.
	Seq uint64
	// Timestamp is when the frame was captured. Zero when the source does not stamp frames.
	Timestamp time.Time
	Image     image.Image
}
