package main

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/getcharzp/go-maskkit"
	"github.com/getcharzp/go-maskkit/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClicks(t *testing.T) {
	clicks, err := parseClicks("10,20; 30.5,40,0;1,2,2;3,4,3")
	require.NoError(t, err)
	assert.Equal(t, []sam.Click{
		{X: 10, Y: 20, Label: sam.LabelForeground},
		{X: 30.5, Y: 40, Label: sam.LabelBackground},
		{X: 1, Y: 2, Label: sam.LabelBoxTopLeft},
		{X: 3, Y: 4, Label: sam.LabelBoxBotRight},
	}, clicks)

	clicks, err = parseClicks("")
	require.NoError(t, err)
	assert.Empty(t, clicks)

	_, err = parseClicks("1")
	assert.Error(t, err)
	_, err = parseClicks("a,b")
	assert.Error(t, err)
}

func TestRunMask(t *testing.T) {
	dir := t.TempDir()
	shapes := filepath.Join(dir, "shapes.json")
	require.NoError(t, os.WriteFile(shapes, []byte(`[{"type":"box","points":[{"x":1,"y":1},{"x":5,"y":5}]}]`), 0o644))
	out := filepath.Join(dir, "mask.png")

	require.NoError(t, runMask([]string{"-width", "8", "-height", "6", "-shapes", shapes, "-out", out}))
	img, err := maskkit.LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())

	err = runMask([]string{"-width", "0", "-height", "6", "-shapes", shapes, "-out", out})
	assert.Error(t, err)
}

func TestWriteImage_UnknownFormat(t *testing.T) {
	err := writeImage(filepath.Join(t.TempDir(), "x.bmp"), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	assert.Error(t, err)
}
