package detection

import (
	"image/color"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"birdcam/internal/logger"
	"birdcam/internal/model"
)

// ErrNoTargetClasses is returned when none of the configured names exist in the
// detector vocabulary.
var ErrNoTargetClasses = errors.New("no configured target class is known to the detector")

// goldenAngle spreads consecutive palette hues as far apart as possible.
const goldenAngle = 137.508

// ResolveTargets maps configured class names onto the detector vocabulary. Matching is
// case-insensitive on the exact name. Unknown names are logged and skipped. colors may
// carry per-name hex overrides; other classes get a palette color by resolution order.
func ResolveTargets(vocab map[model.ClassID]string, names []string, colors map[string]string, log *logger.Logger) ([]model.TargetClass, error) {
	index := vocabularyIndex(vocab)
	overrides := colorOverrides(colors, log)

	seen := make(map[string]bool, len(names))
	var targets []model.TargetClass

	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		entry, ok := index[key]
		if !ok {
			log.Warning("Target class %q is not known to the detector, ignoring it", name)
			continue
		}

		c, ok := overrides[key]
		if !ok {
			c = PaletteColor(len(targets))
		}

		targets = append(targets, model.TargetClass{
			Name:  entry.name,
			ID:    entry.id,
			Color: c,
		})
	}

	if len(targets) == 0 {
		return nil, ErrNoTargetClasses
	}

	for _, t := range targets {
		log.Info("🎯 Watching for %s (id %d)", t.Name, t.ID)
	}
	return targets, nil
}

type vocabEntry struct {
	id   model.ClassID
	name string
}

// vocabularyIndex keys the vocabulary by lower-cased name. When a name appears under
// several ids, the lowest id wins.
func vocabularyIndex(vocab map[model.ClassID]string) map[string]vocabEntry {
	ids := make([]model.ClassID, 0, len(vocab))
	for id := range vocab {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	index := make(map[string]vocabEntry, len(vocab))
	for _, id := range ids {
		key := strings.ToLower(vocab[id])
		if _, exists := index[key]; exists {
			continue
		}
		index[key] = vocabEntry{id: id, name: vocab[id]}
	}
	return index
}

func colorOverrides(colors map[string]string, log *logger.Logger) map[string]color.RGBA {
	out := make(map[string]color.RGBA, len(colors))
	for name, hex := range colors {
		c, err := colorful.Hex(hex)
		if err != nil {
			log.Warning("Invalid color %q for class %q: %v", hex, name, err)
			continue
		}
		r, g, b := c.RGB255()
		out[strings.ToLower(name)] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

// PaletteColor returns a saturated, well separated color for the i-th class.
func PaletteColor(i int) color.RGBA {
	hue := float64(i) * goldenAngle
	for hue >= 360 {
		hue -= 360
	}
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
