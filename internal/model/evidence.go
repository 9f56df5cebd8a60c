package model

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// EvidenceEvent is a sighting the presence engine decided to record.
type EvidenceEvent struct {
	ID         uuid.UUID
	Class      TargetClass
	Timestamp  time.Time
	Frame      image.Image
	Detections []Detection
}

// Evidence is an EvidenceEvent that was written by a sink.
type Evidence struct {
	Event    EvidenceEvent
	Camera   string
	Name     string
	Location string
}

// EvidenceNotice is the JSON payload published to event subscribers.
type EvidenceNotice struct {
	ID         string      `json:"id"`
	Camera     string      `json:"camera"`
	Class      string      `json:"class"`
	Timestamp  time.Time   `json:"timestamp"`
	Location   string      `json:"location"`
	Detections []Detection `json:"detections"`
}

// Notice builds the subscriber payload for the evidence.
func (e Evidence) Notice() EvidenceNotice {
	return EvidenceNotice{
		ID:         e.Event.ID.String(),
		Camera:     e.Camera,
		Class:      e.Event.Class.Name,
		Timestamp:  e.Event.Timestamp,
		Location:   e.Location,
		Detections: e.Event.Detections,
	}
}
