// Package annotate draws detection boxes and labels onto a copy of a frame.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"birdcam/internal/model"
)

const (
	defaultLineWidth = 2.0
	defaultFontSize  = 14.0
	labelPadding     = 3.0
)

// Set is the group of boxes drawn for one class.
type Set struct {
	Class      model.TargetClass
	Detections []model.Detection
}

// Renderer draws bounding boxes in the class color with a "<name> (<confidence>)" label.
type Renderer struct {
	face      font.Face
	lineWidth float64
}

// NewRenderer parses the embedded Go font. fontSize <= 0 selects the default size.
func NewRenderer(fontSize float64) (*Renderer, error) {
	if fontSize <= 0 {
		fontSize = defaultFontSize
	}
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse label font")
	}
	return &Renderer{
		face:      truetype.NewFace(f, &truetype.Options{Size: fontSize}),
		lineWidth: defaultLineWidth,
	}, nil
}

// Label formats the text drawn above a box.
func Label(name string, confidence float64) string {
	return fmt.Sprintf("%s (%.2f)", name, confidence)
}

// Render returns a single annotated copy of frame with every set drawn on it. The
// input frame is left untouched.
func (r *Renderer) Render(frame image.Image, sets []Set) (image.Image, error) {
	if frame == nil {
		return nil, errors.New("no frame to annotate")
	}
	if frame.Bounds().Empty() {
		return nil, errors.New("frame is empty")
	}

	dc := gg.NewContextForImage(frame)
	dc.SetFontFace(r.face)
	origin := frame.Bounds().Min

	for _, set := range sets {
		for _, d := range set.Detections {
			rect := d.Box.Rect().Sub(origin)
			r.drawBox(dc, rect, set.Class.Color)
			r.drawLabel(dc, Label(set.Class.Name, d.Confidence), rect, set.Class.Color)
		}
	}
	return dc.Image(), nil
}

func (r *Renderer) drawBox(dc *gg.Context, rect image.Rectangle, c color.Color) {
	dc.SetColor(c)
	dc.SetLineWidth(r.lineWidth)
	dc.DrawRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
	dc.Stroke()
}

// drawLabel writes the label above the box, or inside it when the box touches the top edge.
func (r *Renderer) drawLabel(dc *gg.Context, text string, rect image.Rectangle, c color.Color) {
	w, h := dc.MeasureString(text)
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y) - labelPadding
	if y-h < 0 {
		y = float64(rect.Min.Y) + h + labelPadding
	}

	dc.SetColor(c)
	dc.DrawRectangle(x, y-h-labelPadding, w+2*labelPadding, h+2*labelPadding)
	dc.Fill()

	dc.SetColor(contrast(c))
	dc.DrawString(text, x+labelPadding, y)
}

// contrast picks black or white text for a label background.
func contrast(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	luma := (299*r + 587*g + 114*b) / 1000
	if luma > 0x7fff {
		return color.Black
	}
	return color.White
}
