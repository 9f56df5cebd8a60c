package service

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The loop and everything it imports must build without OpenCV; only the adapters in
// ai and source/capture may link gocv.
func TestLoopPackagesDoNotImportOpenCV(t *testing.T) {
	dirs := []string{".", "source", "detection", "presence", "storage", "annotate"}
	for _, dir := range dirs {
		files, err := filepath.Glob(filepath.Join(dir, "*.go"))
		require.NoError(t, err)
		require.NotEmpty(t, files, dir)

		for _, file := range files {
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(token.NewFileSet(), file, nil, parser.ImportsOnly)
			require.NoError(t, err, file)
			for _, imp := range f.Imports {
				path, err := strconv.Unquote(imp.Path.Value)
				require.NoError(t, err)
				assert.False(t, strings.HasPrefix(path, "gocv.io/"), "%s imports %s", file, path)
				assert.NotEqual(t, "birdcam/internal/service/source/capture", path, "%s imports the capture adapter", file)
			}
		}
	}
}
