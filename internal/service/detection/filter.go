package detection

import "birdcam/internal/model"

// Matches holds, for one frame, the qualifying detections of every target class.
type Matches struct {
	byClass map[model.ClassID][]model.Detection
	names   map[string]model.ClassID
}

// Filter keeps detections whose class is a target and whose confidence strictly
// exceeds threshold. Every target class gets an entry, possibly empty. No
// deduplication is applied.
func Filter(raw []model.Detection, threshold float64, targets []model.TargetClass) Matches {
	m := Matches{
		byClass: make(map[model.ClassID][]model.Detection, len(targets)),
		names:   make(map[string]model.ClassID, len(targets)),
	}
	for _, t := range targets {
		m.byClass[t.ID] = nil
		m.names[t.Name] = t.ID
	}

	for _, d := range raw {
		if !d.Valid() {
			continue
		}
		if _, ok := m.byClass[d.ClassID]; !ok {
			continue
		}
		if d.Confidence > threshold {
			m.byClass[d.ClassID] = append(m.byClass[d.ClassID], d)
		}
	}
	return m
}

// Present reports whether the named class has at least one qualifying detection.
func (m Matches) Present(name string) bool {
	return len(m.Detections(name)) > 0
}

// Detections returns the qualifying detections of the named class.
func (m Matches) Detections(name string) []model.Detection {
	id, ok := m.names[name]
	if !ok {
		return nil
	}
	return m.byClass[id]
}

// Count returns the total number of qualifying detections across classes.
func (m Matches) Count() int {
	n := 0
	for _, dets := range m.byClass {
		n += len(dets)
	}
	return n
}
