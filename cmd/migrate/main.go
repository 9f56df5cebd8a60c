package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"birdcam/internal/model"
	"birdcam/internal/repository/sqlite"
	"birdcam/internal/service/storage"
)

func main() {
	if err := newMigrateCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newMigrateCommand() *cobra.Command {
	var imagesDir, dbPath, camera string

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Index an existing evidence directory into the evidence database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.OutOrStdout(), imagesDir, dbPath, camera)
		},
	}
	cmd.Flags().StringVar(&imagesDir, "images", "evidence", "Directory containing evidence images")
	cmd.Flags().StringVar(&dbPath, "db", filepath.Join("data", "evidence.db"), "Database path")
	cmd.Flags().StringVar(&camera, "camera", "birdcam", "Camera name recorded for every image")
	return cmd
}

func migrate(out io.Writer, imagesDir, dbPath, camera string) error {
	fmt.Fprintf(out, "Migrating images from %s to database %s\n", imagesDir, dbPath)

	files, err := os.ReadDir(imagesDir)
	if err != nil {
		return errors.Wrap(err, "failed to read images directory")
	}

	var images []model.Image
	skipped := 0
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".jpg") {
			continue
		}

		class, timestamp, err := storage.ParseName(file.Name(), time.Local)
		if err != nil {
			fmt.Fprintf(out, "⚠️  Skipping %s: %v\n", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			fmt.Fprintf(out, "⚠️  Failed to get info for %s: %v\n", file.Name(), err)
			skipped++
			continue
		}

		images = append(images, model.Image{
			Filename:  file.Name(),
			Camera:    camera,
			Class:     class,
			Timestamp: timestamp,
			FilePath:  filepath.Join(imagesDir, file.Name()),
			FileSize:  info.Size(),
		})
	}

	if len(images) == 0 {
		fmt.Fprintln(out, "No images found to migrate")
		return nil
	}

	db, err := sqlite.New(dbPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer db.Close()
	repo := sqlite.NewImageRepository(db)

	fmt.Fprintf(out, "Inserting %d images into database...\n", len(images))
	if err := repo.BulkInsert(images); err != nil {
		return errors.Wrap(err, "failed to insert images")
	}

	fmt.Fprintf(out, "✅ Successfully migrated %d images to database\n", len(images))
	if skipped > 0 {
		fmt.Fprintf(out, "⚠️  Skipped %d files (invalid format or errors)\n", skipped)
	}

	stats, err := repo.GetStats()
	if err != nil {
		return nil
	}
	fmt.Fprintf(out, "\n📊 Database Statistics:\n")
	fmt.Fprintf(out, "   Total images: %d\n", stats.TotalImages)
	fmt.Fprintf(out, "   Total size: %d bytes\n", stats.TotalSizeBytes)
	classes := make([]string, 0, len(stats.PerClass))
	for class := range stats.PerClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	fmt.Fprintf(out, "   Per class:\n")
	for _, class := range classes {
		fmt.Fprintf(out, "      - %s: %d images\n", class, stats.PerClass[class])
	}
	return nil
}
