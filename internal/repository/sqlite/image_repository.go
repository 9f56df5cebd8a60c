package sqlite

import (
	"database/sql"

	"github.com/pkg/errors"

	"birdcam/internal/model"
)

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

const imageColumns = `id, filename, camera, class, timestamp, filepath, filesize`

const upsertImage = `
	INSERT INTO images (filename, camera, class, timestamp, filepath, filesize)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(filename) DO UPDATE SET
		camera = excluded.camera,
		class = excluded.class,
		timestamp = excluded.timestamp,
		filepath = excluded.filepath,
		filesize = excluded.filesize
	RETURNING id
`

// Insert adds an image record. A record with the same filename is replaced, matching
// the file sink which overwrites colliding evidence names.
func (r *ImageRepository) Insert(img *model.Image) (int64, error) {
	err := r.db.write(func(tx *sql.Tx) error {
		return tx.QueryRow(upsertImage,
			img.Filename, img.Camera, img.Class, img.Timestamp.UTC(), img.FilePath, img.FileSize,
		).Scan(&img.ID)
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert image")
	}
	return img.ID, nil
}

// BulkInsert adds many image records in a single transaction.
func (r *ImageRepository) BulkInsert(images []model.Image) error {
	return r.db.write(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(upsertImage)
		if err != nil {
			return errors.Wrap(err, "failed to prepare statement")
		}
		defer stmt.Close()

		for i := range images {
			img := &images[i]
			if err := stmt.QueryRow(img.Filename, img.Camera, img.Class, img.Timestamp.UTC(), img.FilePath, img.FileSize).Scan(&img.ID); err != nil {
				return errors.Wrapf(err, "failed to insert image %s", img.Filename)
			}
		}
		return nil
	})
}

// GetByID retrieves an image by its ID. A missing image yields (nil, nil).
func (r *ImageRepository) GetByID(id int64) (*model.Image, error) {
	return r.getOne(`SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
}

// GetByFilename retrieves an image by its filename. A missing image yields (nil, nil).
func (r *ImageRepository) GetByFilename(filename string) (*model.Image, error) {
	return r.getOne(`SELECT `+imageColumns+` FROM images WHERE filename = ?`, filename)
}

func (r *ImageRepository) getOne(query string, arg interface{}) (*model.Image, error) {
	var img model.Image
	err := r.db.read(func(conn *sql.DB) error {
		return conn.QueryRow(query, arg).Scan(&img.ID, &img.Filename, &img.Camera, &img.Class, &img.Timestamp, &img.FilePath, &img.FileSize)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get image")
	}
	return &img, nil
}

// whereClause builds the filter conditions shared by GetAll and GetTotalCount.
func whereClause(filter *model.ImageFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Camera != "" {
		query += " AND camera = ?"
		args = append(args, filter.Camera)
	}
	if filter.Class != "" {
		query += " AND class = ?"
		args = append(args, filter.Class)
	}
	if !filter.After.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.After.UTC())
	}
	if !filter.Before.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, filter.Before.UTC())
	}
	return query, args
}

// GetAll retrieves images matching the filter, newest first.
func (r *ImageRepository) GetAll(filter *model.ImageFilter) ([]model.Image, error) {
	where, args := whereClause(filter)
	query := `SELECT ` + imageColumns + ` FROM images` + where + " ORDER BY timestamp DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	var images []model.Image
	err := r.db.read(func(conn *sql.DB) error {
		rows, err := conn.Query(query, args...)
		if err != nil {
			return errors.Wrap(err, "failed to query images")
		}
		defer rows.Close()

		for rows.Next() {
			var img model.Image
			if err := rows.Scan(&img.ID, &img.Filename, &img.Camera, &img.Class, &img.Timestamp, &img.FilePath, &img.FileSize); err != nil {
				return errors.Wrap(err, "failed to scan image")
			}
			images = append(images, img)
		}
		return rows.Err()
	})
	return images, err
}

// GetTotalCount returns the number of images matching the filter.
func (r *ImageRepository) GetTotalCount(filter *model.ImageFilter) (int, error) {
	where, args := whereClause(filter)

	var count int
	err := r.db.read(func(conn *sql.DB) error {
		return conn.QueryRow(`SELECT COUNT(*) FROM images`+where, args...).Scan(&count)
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to count images")
	}
	return count, nil
}

// GetStats returns statistics about indexed images.
func (r *ImageRepository) GetStats() (*model.ImageStats, error) {
	stats := &model.ImageStats{
		PerClass: make(map[string]int),
	}

	// Per-class rows sum to the totals, so one grouped query serves both.
	err := r.db.read(func(conn *sql.DB) error {
		rows, err := conn.Query(`SELECT class, COUNT(*), COALESCE(SUM(filesize), 0) FROM images GROUP BY class`)
		if err != nil {
			return errors.Wrap(err, "failed to group images")
		}
		defer rows.Close()

		for rows.Next() {
			var class string
			var count int
			var size int64
			if err := rows.Scan(&class, &count, &size); err != nil {
				return errors.Wrap(err, "failed to scan class count")
			}
			stats.PerClass[class] = count
			stats.TotalImages += count
			stats.TotalSizeBytes += size
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteByFilename removes an image by filename; its detections go with it. A missing
// image is not an error.
func (r *ImageRepository) DeleteByFilename(filename string) error {
	err := r.db.write(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM images WHERE filename = ?`, filename)
		return err
	})
	return errors.Wrapf(err, "failed to delete image %s", filename)
}
