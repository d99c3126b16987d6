package mask

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	opaqueBlack = color.RGBA{A: 255}
	opaqueWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestNewBox_Normalised(t *testing.T) {
	a := NewBox(Point{X: 50, Y: 10}, Point{X: 20, Y: 40})
	b := NewBox(Point{X: 20, Y: 40}, Point{X: 50, Y: 10})
	assert.Equal(t, a, b)
	assert.Equal(t, [4]float64{20, 10, 50, 40}, a.Corners())
	assert.Equal(t, 30.0, a.Width())
	assert.Equal(t, 30.0, a.Height())
}

func TestViewport_RoundTrip(t *testing.T) {
	v := Viewport{Left: 120, Top: 80, ScaleX: 0.5, ScaleY: 0.5, Zoom: 2}
	p := Point{X: 333, Y: 444}
	q := v.ToViewport(v.ToImage(p))
	assert.InDelta(t, p.X, q.X, 1e-9)
	assert.InDelta(t, p.Y, q.Y, 1e-9)

	// (box - imageLeft) / scale
	box := Viewport{Left: 100, Top: 50, ScaleX: 0.5, ScaleY: 0.5}.BoxToImage(Point{X: 200, Y: 150}, Point{X: 150, Y: 100})
	assert.Equal(t, [4]float64{100, 100, 200, 200}, box.Corners())
}

func TestViewport_Fit(t *testing.T) {
	v := Fit(1000, 800, 500, 200, 0.8)
	assert.InDelta(t, 1.6, v.ScaleX, 1e-9)
	assert.InDelta(t, 100, v.Left, 1e-9)
	assert.InDelta(t, 240, v.Top, 1e-9)
	assert.True(t, v.Contains(Point{X: 500, Y: 400}, 500, 200))
	assert.False(t, v.Contains(Point{X: 50, Y: 400}, 500, 200))
}

func TestViewport_Brush(t *testing.T) {
	v := Viewport{ScaleX: 2, ScaleY: 2, Zoom: 0.5}
	assert.Equal(t, 100.0, v.BrushWidth(DefaultBrushWidth))
	s := v.StrokeToImage([]Point{{X: 10, Y: 10}}, DefaultBrushWidth)
	assert.Equal(t, 50.0, s.Width)
	assert.Equal(t, Point{X: 10, Y: 10}, s.Points[0])
}

func TestRender_Polygon(t *testing.T) {
	poly := Polygon{Points: []Point{{X: 10, Y: 10}, {X: 90, Y: 10}, {X: 90, Y: 90}, {X: 10, Y: 90}}}
	img, err := Render(100, 100, []Shape{poly}, Options{})
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	assert.Equal(t, opaqueWhite, img.RGBAAt(50, 50))
	assert.Equal(t, opaqueBlack, img.RGBAAt(2, 2))
	assert.Equal(t, opaqueBlack, img.RGBAAt(97, 50))
}

func TestRender_Cutout(t *testing.T) {
	shapes := []Shape{NewBox(Point{X: 60, Y: 40}, Point{X: 20, Y: 10})}
	img, err := Render(80, 50, shapes, Options{Cutout: true})
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{}, img.RGBAAt(40, 25))
	assert.Equal(t, opaqueBlack, img.RGBAAt(5, 5))
	assert.Equal(t, opaqueBlack, img.RGBAAt(70, 45))
}

func TestRender_Stroke(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	stroke := Stroke{Points: []Point{{X: 10, Y: 50}, {X: 90, Y: 50}}, Width: 20}
	img, err := Render(100, 100, []Shape{stroke}, Options{Foreground: red})
	require.NoError(t, err)

	assert.Equal(t, red, img.RGBAAt(50, 50))
	assert.Equal(t, red, img.RGBAAt(50, 43))
	assert.Equal(t, opaqueBlack, img.RGBAAt(50, 20))

	_, err = Render(0, 10, nil, Options{})
	assert.Error(t, err)
}

func TestShapeSpec(t *testing.T) {
	shapes, err := Shapes([]ShapeSpec{
		{Type: "box", Points: []Point{{X: 5, Y: 5}, {X: 1, Y: 1}}},
		{Type: "stroke", Points: []Point{{X: 1, Y: 1}}, Width: 4},
		{Type: "polygon", Points: []Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
	})
	require.NoError(t, err)
	assert.Equal(t, NewBox(Point{X: 1, Y: 1}, Point{X: 5, Y: 5}), shapes[0])

	_, err = Shapes([]ShapeSpec{{Type: "polygon", Points: []Point{{X: 0, Y: 0}}}})
	assert.ErrorIs(t, err, ErrEmptyShape)
	_, err = ShapeSpec{Type: "circle"}.Shape()
	assert.Error(t, err)
	_, err = ShapeSpec{Type: "stroke", Points: []Point{{X: 1, Y: 1}}}.Shape()
	assert.Error(t, err)
}

func TestErase(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = 200
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	// Mask 左半边不透明
	m := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			m.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}

	out := Erase(img, m)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(0), out.NRGBAAt(1, 1).A)
	assert.Equal(t, color.NRGBA{R: 200, G: 200, B: 200, A: 255}, out.NRGBAAt(3, 0))
	// 原图不变
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).A)
}

func TestErase_ScalesMask(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	m := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	m.SetNRGBA(0, 0, color.NRGBA{A: 255})

	out := Erase(img, m)
	assert.Equal(t, image.Rect(0, 0, 40, 40), out.Bounds())
	assert.Less(t, out.NRGBAAt(2, 2).A, uint8(64))
	assert.Equal(t, uint8(255), out.NRGBAAt(35, 35).A)
}

func TestViewport_SpecToImage(t *testing.T) {
	v := Viewport{Left: 300, Top: 300, ScaleX: 1, ScaleY: 1, Zoom: 0.5}
	s := v.SpecToImage(ShapeSpec{Type: "stroke", Points: []Point{{X: 200, Y: 250}}, Width: 50})
	assert.Equal(t, Point{X: 100, Y: 200}, s.Points[0])
	assert.Equal(t, 100.0, s.Width)

	b := v.SpecToImage(ShapeSpec{Type: "box", Points: []Point{{X: 150, Y: 150}, {X: 250, Y: 250}}, Width: 3})
	assert.Equal(t, 3.0, b.Width)
	assert.Equal(t, Point{X: 0, Y: 0}, b.Points[0])
}
