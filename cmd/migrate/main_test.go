package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdcam/internal/model"
	"birdcam/internal/repository/sqlite"
)

func TestMigrate_IndexesEvidenceNames(t *testing.T) {
	dir := t.TempDir()
	imagesDir := filepath.Join(dir, "evidence")
	require.NoError(t, os.MkdirAll(imagesDir, 0755))
	for _, name := range []string{
		"bird_2025-06-15_14-30-05.jpg",
		"teddy bear_2025-06-15_14-31-00.jpg",
		"red_fox_2025-06-15_14-32-10.jpg",
		"notes.txt",
		"garbage.jpg",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(imagesDir, name), []byte("jpeg"), 0644))
	}
	dbPath := filepath.Join(dir, "data", "evidence.db")

	cmd := newMigrateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--images", imagesDir, "--db", dbPath, "--camera", "garden"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Successfully migrated 3 images")
	assert.Contains(t, out.String(), "Skipping garbage.jpg")
	assert.Contains(t, out.String(), "red_fox: 1 images")

	db, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer db.Close()
	repo := sqlite.NewImageRepository(db)

	img, err := repo.GetByFilename("teddy bear_2025-06-15_14-31-00.jpg")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "teddy bear", img.Class)
	assert.Equal(t, "garden", img.Camera)
	assert.Equal(t, int64(4), img.FileSize)

	// Running twice does not duplicate rows.
	require.NoError(t, migrate(&bytes.Buffer{}, imagesDir, dbPath, "garden"))
	count, err := repo.GetTotalCount(&model.ImageFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMigrate_EmptyDirectory(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, migrate(&out, t.TempDir(), filepath.Join(t.TempDir(), "x.db"), "garden"))
	assert.Contains(t, out.String(), "No images found")
}
