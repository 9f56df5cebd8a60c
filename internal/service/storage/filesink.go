package storage

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// FileSink writes evidence as JPEG files into a directory. An existing file with the
// same name is overwritten.
type FileSink struct {
	dir     string
	quality int
}

// NewFileSink creates a sink rooted at dir.
func NewFileSink(dir string, quality int) *FileSink {
	return &FileSink{dir: dir, quality: quality}
}

// Dir returns the evidence directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Path returns the file path used for an evidence name.
func (s *FileSink) Path(name string) string {
	return filepath.Join(s.dir, name+".jpg")
}

// Write encodes img as JPEG to <dir>/<name>.jpg.
func (s *FileSink) Write(ctx context.Context, name string, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.Errorf("invalid evidence name %q", name)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.Wrap(err, "error creating evidence directory")
	}

	fullpath := s.Path(name)
	if err := imaging.Save(img, fullpath, imaging.JPEGQuality(s.quality)); err != nil {
		return "", errors.Wrapf(err, "error saving image %s", filepath.Base(fullpath))
	}
	return fullpath, nil
}

// DirectorySize returns the total size of the files in the evidence directory.
func (s *FileSink) DirectorySize() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return total, err
}
