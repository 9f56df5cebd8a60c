package sqlite

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"birdcam/internal/model"
)

// DetectionRepository stores the qualifying boxes of each indexed evidence image.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a detection repository on db.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

const detectionColumns = `id, image_id, object_name, x, y, width, height, confidence`

// Replace swaps the stored boxes of an image for records in one transaction. Each
// record's ImageID is set to imageID.
func (r *DetectionRepository) Replace(imageID int64, records []model.DetectionRecord) error {
	return r.db.write(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM detections WHERE image_id = ?`, imageID); err != nil {
			return errors.Wrapf(err, "failed to clear detections of image %d", imageID)
		}
		if len(records) == 0 {
			return nil
		}

		stmt, err := tx.Prepare(`INSERT INTO detections (image_id, object_name, x, y, width, height, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "failed to prepare detection insert")
		}
		defer stmt.Close()

		for i := range records {
			rec := &records[i]
			rec.ImageID = imageID
			res, err := stmt.Exec(imageID, rec.ObjectName, rec.X, rec.Y, rec.Width, rec.Height, rec.Confidence)
			if err != nil {
				return errors.Wrapf(err, "failed to store %s box of image %d", rec.ObjectName, imageID)
			}
			if rec.ID, err = res.LastInsertId(); err != nil {
				return errors.Wrap(err, "failed to read detection id")
			}
		}
		return nil
	})
}

// GetByImageID returns the boxes of one image in insertion order.
func (r *DetectionRepository) GetByImageID(imageID int64) ([]model.DetectionRecord, error) {
	byImage, err := r.GetByImageIDs([]int64{imageID})
	if err != nil {
		return nil, err
	}
	return byImage[imageID], nil
}

// GetByImageIDs loads the boxes of several images with one query, keyed by image id.
// Images without boxes have no entry.
func (r *DetectionRepository) GetByImageIDs(imageIDs []int64) (map[int64][]model.DetectionRecord, error) {
	byImage := make(map[int64][]model.DetectionRecord, len(imageIDs))
	if len(imageIDs) == 0 {
		return byImage, nil
	}

	args := make([]interface{}, len(imageIDs))
	for i, id := range imageIDs {
		args[i] = id
	}
	query := `SELECT ` + detectionColumns + ` FROM detections WHERE image_id IN (?` +
		strings.Repeat(",?", len(imageIDs)-1) + `) ORDER BY image_id, id`

	err := r.db.read(func(conn *sql.DB) error {
		rows, err := conn.Query(query, args...)
		if err != nil {
			return errors.Wrap(err, "failed to query detections")
		}
		defer rows.Close()

		for rows.Next() {
			var rec model.DetectionRecord
			if err := rows.Scan(&rec.ID, &rec.ImageID, &rec.ObjectName, &rec.X, &rec.Y, &rec.Width, &rec.Height, &rec.Confidence); err != nil {
				return errors.Wrap(err, "failed to scan detection")
			}
			byImage[rec.ImageID] = append(byImage[rec.ImageID], rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return byImage, nil
}
