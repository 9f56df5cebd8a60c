package repository

import "birdcam/internal/model"

// ImageRepository defines the operations on indexed evidence images.
type ImageRepository interface {
	// Create operations
	Insert(img *model.Image) (int64, error)
	BulkInsert(images []model.Image) error

	// Read operations
	GetByID(id int64) (*model.Image, error)
	GetByFilename(filename string) (*model.Image, error)
	GetAll(filter *model.ImageFilter) ([]model.Image, error)
	GetTotalCount(filter *model.ImageFilter) (int, error)
	GetStats() (*model.ImageStats, error)

	// Delete operations
	DeleteByFilename(filename string) error
}

// DetectionRepository defines the operations on boxes stored with indexed images.
// Deleting an image removes its detections.
type DetectionRepository interface {
	// Replace swaps all boxes of an image atomically.
	Replace(imageID int64, detections []model.DetectionRecord) error

	GetByImageID(imageID int64) ([]model.DetectionRecord, error)
	GetByImageIDs(imageIDs []int64) (map[int64][]model.DetectionRecord, error)
}
