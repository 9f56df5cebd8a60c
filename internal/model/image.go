package model

import "time"

// Image represents an indexed evidence image record.
type Image struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Camera    string    `json:"camera"`
	Class     string    `json:"class"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// ImageFilter contains filtering options for querying indexed images.
type ImageFilter struct {
	Camera string
	Class  string
	After  time.Time
	Before time.Time
	Limit  int
	Offset int
}

// DetectionRecord represents a stored bounding box that belongs to an indexed image.
type DetectionRecord struct {
	ID         int64   `json:"id"`
	ImageID    int64   `json:"image_id"`
	ObjectName string  `json:"object_name"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// ImageStats contains statistics about indexed images.
type ImageStats struct {
	TotalImages    int            `json:"total_images"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerClass       map[string]int `json:"per_class"`
}
