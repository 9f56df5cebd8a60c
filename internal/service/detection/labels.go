package detection

import (
	"bufio"
	_ "embed"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"birdcam/internal/model"
)

//go:embed coco_labels.txt
var cocoLabels string

// COCOLabels returns the COCO vocabulary of the bundled SSD MobileNet models.
func COCOLabels() map[model.ClassID]string {
	labels, err := ParseLabels(strings.NewReader(cocoLabels))
	if err != nil {
		panic(err)
	}
	return labels
}

// ParseLabels reads a label vocabulary. Each non-empty line that does not start with
// '#' is either "<id> <name>", "<id>: <name>" or a bare name, in which case the id is
// the zero-based position of the entry.
func ParseLabels(r io.Reader) (map[model.ClassID]string, error) {
	labels := make(map[model.ClassID]string)
	scanner := bufio.NewScanner(r)
	index := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		id, name := model.ClassID(index), text
		if fields := strings.SplitN(text, " ", 2); len(fields) == 2 {
			if n, err := strconv.Atoi(strings.TrimSuffix(fields[0], ":")); err == nil {
				id, name = model.ClassID(n), strings.TrimSpace(fields[1])
			}
		}
		if name == "" {
			return nil, errors.Errorf("label line %d has no name", line)
		}
		labels[id] = name
		index++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read labels")
	}
	if len(labels) == 0 {
		return nil, errors.New("label vocabulary is empty")
	}
	return labels, nil
}

// LoadLabels reads a label file from disk. An empty path yields the COCO vocabulary.
func LoadLabels(path string) (map[model.ClassID]string, error) {
	if path == "" {
		return COCOLabels(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open labels file %s", path)
	}
	defer f.Close()

	labels, err := ParseLabels(f)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid labels file %s", path)
	}
	return labels, nil
}
