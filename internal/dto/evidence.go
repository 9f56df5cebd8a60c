// Package dto holds the JSON payloads of the HTTP API.
package dto

import (
	"time"

	"birdcam/internal/model"
)

// EvidenceInfo describes one indexed evidence image.
type EvidenceInfo struct {
	ID         int64                   `json:"id"`
	Name       string                  `json:"name"`
	Camera     string                  `json:"camera"`
	Class      string                  `json:"class"`
	Timestamp  time.Time               `json:"timestamp"`
	Size       int64                   `json:"size"`
	URL        string                  `json:"url"`
	Detections []model.DetectionRecord `json:"detections"`
}

// EvidenceList is a paginated response for the evidence listing.
type EvidenceList struct {
	Images      []EvidenceInfo `json:"images"`
	Total       int            `json:"total"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
	SizeBytes   int64          `json:"sizeBytes"`
}

// Health is the liveness payload.
type Health struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Viewers int    `json:"viewers"`
}
