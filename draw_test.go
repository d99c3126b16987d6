package maskkit

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawer_DrawText(t *testing.T) {
	d, err := NewTextDrawer("")
	require.NoError(t, err)
	defer d.Close()

	img := image.NewRGBA(image.Rect(0, 0, 120, 30))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	d.DrawText(img, "Hello World", 2, 20, color.Black)

	dark := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] < 128 {
			dark++
		}
	}
	assert.Greater(t, dark, 0)
}

func TestDrawer_SetSize(t *testing.T) {
	d, err := NewTextDrawer("")
	require.NoError(t, err)
	defer d.Close()

	small := d.MeasureText("score: 0.98")
	require.NoError(t, d.SetSize(24))
	assert.Greater(t, d.MeasureText("score: 0.98"), small)
}

func TestNewTextDrawer_MissingFont(t *testing.T) {
	_, err := NewTextDrawer("./fonts/missing.ttf")
	assert.Error(t, err)
}
