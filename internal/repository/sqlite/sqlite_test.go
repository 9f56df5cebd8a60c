package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdcam/internal/model"
	"birdcam/internal/repository"
)

var (
	_ repository.ImageRepository     = (*ImageRepository)(nil)
	_ repository.DetectionRepository = (*DetectionRepository)(nil)
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func image(name, class string, ts time.Time) *model.Image {
	return &model.Image{
		Filename:  name,
		Camera:    "birdcam",
		Class:     class,
		Timestamp: ts,
		FilePath:  "/evidence/" + name,
		FileSize:  1024,
	}
}

var t0 = time.Date(2025, 6, 15, 14, 30, 5, 0, time.UTC)

func TestDatabase_CreatesFileAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "evidence.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestImageRepository_InsertAndGet(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))

	img := image("bird_2025-06-15_14-30-05.jpg", "bird", t0)
	id, err := repo.Insert(img)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, img.ID)

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bird", got.Class)
	assert.Equal(t, "birdcam", got.Camera)
	assert.True(t, got.Timestamp.Equal(t0))

	byName, err := repo.GetByFilename("bird_2025-06-15_14-30-05.jpg")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, id, byName.ID)

	missing, err := repo.GetByFilename("nope.jpg")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestImageRepository_SameFilenameReplaces(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))

	first := image("bird_2025-06-15_14-30-05.jpg", "bird", t0)
	id1, err := repo.Insert(first)
	require.NoError(t, err)

	second := image("bird_2025-06-15_14-30-05.jpg", "bird", t0.Add(500*time.Millisecond))
	second.FileSize = 2048
	id2, err := repo.Insert(second)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	count, err := repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetByID(id1)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), got.FileSize)
}

func TestImageRepository_FilterAndPaging(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))

	var batch []model.Image
	for i := 0; i < 6; i++ {
		class := "bird"
		if i%2 == 1 {
			class = "cat"
		}
		ts := t0.Add(time.Duration(i) * time.Minute)
		batch = append(batch, *image(fmt.Sprintf("%s_%d.jpg", class, i), class, ts))
	}
	require.NoError(t, repo.BulkInsert(batch))
	for _, img := range batch {
		assert.Positive(t, img.ID)
	}

	birds, err := repo.GetAll(&model.ImageFilter{Class: "bird"})
	require.NoError(t, err)
	require.Len(t, birds, 3)
	assert.Equal(t, "bird_4.jpg", birds[0].Filename, "newest first")

	window, err := repo.GetAll(&model.ImageFilter{After: t0.Add(2 * time.Minute), Before: t0.Add(4 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, window, 2)

	page, err := repo.GetAll(&model.ImageFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "cat_3.jpg", page[0].Filename)

	count, err := repo.GetTotalCount(&model.ImageFilter{Class: "cat", Camera: "birdcam"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalImages)
	assert.Equal(t, int64(6*1024), stats.TotalSizeBytes)
	assert.Equal(t, map[string]int{"bird": 3, "cat": 3}, stats.PerClass)
}

func TestDetectionRepository_ReplaceAndCascade(t *testing.T) {
	db := newTestDB(t)
	images := NewImageRepository(db)
	detections := NewDetectionRepository(db)

	id, err := images.Insert(image("cat_2025-06-15_14-30-05.jpg", "cat", t0))
	require.NoError(t, err)

	require.NoError(t, detections.Replace(id, nil))
	recs := []model.DetectionRecord{
		{ObjectName: "cat", X: 1, Y: 2, Width: 30, Height: 40, Confidence: 0.9},
		{ObjectName: "cat", X: 50, Y: 60, Width: 10, Height: 10, Confidence: 0.6},
	}
	require.NoError(t, detections.Replace(id, recs))
	assert.Equal(t, id, recs[0].ImageID)
	assert.Positive(t, recs[1].ID)

	got, err := detections.GetByImageID(id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 30, got[0].Width)
	assert.InDelta(t, 0.6, got[1].Confidence, 1e-9)

	// A second replace leaves only the new boxes.
	require.NoError(t, detections.Replace(id, []model.DetectionRecord{{ObjectName: "cat", Width: 5, Height: 5, Confidence: 0.7}}))
	got, err = detections.GetByImageID(id)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Width)

	require.NoError(t, images.DeleteByFilename("cat_2025-06-15_14-30-05.jpg"))
	got, err = detections.GetByImageID(id)
	require.NoError(t, err)
	assert.Empty(t, got, "deleting the image removes its boxes")

	assert.NoError(t, images.DeleteByFilename("cat_2025-06-15_14-30-05.jpg"), "deleting twice is harmless")
}

func TestDetectionRepository_GetByImageIDs(t *testing.T) {
	db := newTestDB(t)
	images := NewImageRepository(db)
	detections := NewDetectionRepository(db)

	a, err := images.Insert(image("bird_a.jpg", "bird", t0))
	require.NoError(t, err)
	b, err := images.Insert(image("bird_b.jpg", "bird", t0.Add(time.Minute)))
	require.NoError(t, err)
	c, err := images.Insert(image("bird_c.jpg", "bird", t0.Add(2*time.Minute)))
	require.NoError(t, err)

	require.NoError(t, detections.Replace(a, []model.DetectionRecord{{ObjectName: "bird"}, {ObjectName: "bird"}}))
	require.NoError(t, detections.Replace(b, []model.DetectionRecord{{ObjectName: "bird"}}))

	byImage, err := detections.GetByImageIDs([]int64{a, b, c})
	require.NoError(t, err)
	assert.Len(t, byImage[a], 2)
	assert.Len(t, byImage[b], 1)
	assert.NotContains(t, byImage, c)

	empty, err := detections.GetByImageIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDatabase_MigratesOnceAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "evidence.db")

	db, err := New(path)
	require.NoError(t, err)
	version, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
	_, err = NewImageRepository(db).Insert(image("bird_1.jpg", "bird", t0))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := NewImageRepository(db).GetByFilename("bird_1.jpg")
	require.NoError(t, err)
	require.NotNil(t, got, "data survives reopening")
}

func TestDatabase_ConcurrentInserts(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := repo.Insert(image(fmt.Sprintf("concurrent_%d.jpg", idx), "bird", t0))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}
