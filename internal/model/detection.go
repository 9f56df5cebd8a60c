package model

import (
	"image"
	"image/color"
	"math"
)

// ClassID is the detector-specific identifier of an object class. It only has
// meaning through the vocabulary of the detector that produced it.
type ClassID int

// BoundingBox is a detection rectangle in frame-pixel coordinates.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Detection is a single raw detector output for one frame.
type Detection struct {
	ClassID    ClassID     `json:"class_id"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// Valid reports whether the detection has a usable confidence and a non-inverted box.
func (d Detection) Valid() bool {
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return false
	}
	return d.Box.X2 >= d.Box.X1 && d.Box.Y2 >= d.Box.Y1
}

// TargetClass is an object category the engine watches for.
type TargetClass struct {
	Name  string
	ID    ClassID
	Color color.RGBA
}
