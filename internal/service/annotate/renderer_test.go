package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdcam/internal/model"
)

func grayFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 128, G: 128, B: 128, A: 255}}, image.Point{}, draw.Src)
	return img
}

func sameRGB(t *testing.T, want color.RGBA, got color.Color) bool {
	t.Helper()
	r, g, b, _ := got.RGBA()
	return uint8(r>>8) == want.R && uint8(g>>8) == want.G && uint8(b>>8) == want.B
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "bird (0.87)", Label("bird", 0.8713))
	assert.Equal(t, "teddy bear (1.00)", Label("teddy bear", 0.999))
}

func TestRender_DrawsBoxInClassColor(t *testing.T) {
	r, err := NewRenderer(0)
	require.NoError(t, err)

	frame := grayFrame(200, 200)
	green := color.RGBA{G: 255, A: 255}
	sets := []Set{{
		Class:      model.TargetClass{Name: "bird", ID: 16, Color: green},
		Detections: []model.Detection{{ClassID: 16, Confidence: 0.9, Box: model.BoundingBox{X1: 50, Y1: 60, X2: 150, Y2: 160}}},
	}}

	out, err := r.Render(frame, sets)
	require.NoError(t, err)
	require.Equal(t, frame.Bounds(), out.Bounds())

	// Left edge of the box, well below the label.
	assert.True(t, sameRGB(t, green, out.At(50, 120)), "box edge should be drawn in class color")
	// Center of the box is untouched.
	assert.True(t, sameRGB(t, color.RGBA{R: 128, G: 128, B: 128}, out.At(100, 120)))
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	r, err := NewRenderer(12)
	require.NoError(t, err)

	frame := grayFrame(100, 100)
	before := append([]uint8(nil), frame.Pix...)

	sets := []Set{{
		Class:      model.TargetClass{Name: "cat", Color: color.RGBA{R: 255, A: 255}},
		Detections: []model.Detection{{Confidence: 0.7, Box: model.BoundingBox{X1: 10, Y1: 30, X2: 60, Y2: 90}}},
	}}

	_, err = r.Render(frame, sets)
	require.NoError(t, err)
	assert.Equal(t, before, frame.Pix)
}

func TestRender_MultipleClassesShareOneCopy(t *testing.T) {
	r, err := NewRenderer(0)
	require.NoError(t, err)

	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	sets := []Set{
		{Class: model.TargetClass{Name: "bird", Color: red}, Detections: []model.Detection{
			{Confidence: 0.9, Box: model.BoundingBox{X1: 20, Y1: 40, X2: 80, Y2: 180}},
			{Confidence: 0.6, Box: model.BoundingBox{X1: 100, Y1: 40, X2: 140, Y2: 180}},
		}},
		{Class: model.TargetClass{Name: "cat", Color: blue}, Detections: []model.Detection{
			{Confidence: 0.8, Box: model.BoundingBox{X1: 160, Y1: 40, X2: 190, Y2: 180}},
		}},
	}

	out, err := r.Render(grayFrame(200, 200), sets)
	require.NoError(t, err)

	assert.True(t, sameRGB(t, red, out.At(20, 120)))
	assert.True(t, sameRGB(t, red, out.At(100, 120)))
	assert.True(t, sameRGB(t, blue, out.At(160, 120)))
}

func TestRender_RejectsMissingFrame(t *testing.T) {
	r, err := NewRenderer(0)
	require.NoError(t, err)

	_, err = r.Render(nil, nil)
	assert.Error(t, err)

	_, err = r.Render(image.NewRGBA(image.Rect(0, 0, 0, 0)), nil)
	assert.Error(t, err)
}
