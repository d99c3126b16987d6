package rembg

import (
	"context"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedExt(t *testing.T) {
	for _, name := range []string{"a.png", "b.jpg", "c.jpeg", "d.webp", "E.PNG"} {
		assert.True(t, AllowedExt(name), name)
	}
	for _, name := range []string{"a.gif", "b", "c.png.txt", ".bmp"} {
		assert.False(t, AllowedExt(name), name)
	}
}

func TestPreprocess(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	for i := range img.Pix {
		img.Pix[i] = 128
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	data := preprocess(img)
	require.Len(t, data, 3*InputSize*InputSize)

	// 均匀图像除以最大值后为 1
	plane := InputSize * InputSize
	assert.InDelta(t, (1-MeanR)/StdR, data[0], 1e-4)
	assert.InDelta(t, (1-MeanG)/StdG, data[plane+100], 1e-4)
	assert.InDelta(t, (1-MeanB)/StdB, data[2*plane+plane-1], 1e-4)
}

func TestNormalize(t *testing.T) {
	g := normalize([]float32{-2, 0, 2, 1}, 2, 2)
	assert.Equal(t, []uint8{0, 128, 255, 191}, g.Pix)

	flat := normalize([]float32{3, 3, 3, 3}, 2, 2)
	assert.Equal(t, []uint8{0, 0, 0, 0}, flat.Pix)
}

func TestPostprocess_Size(t *testing.T) {
	pred := make([]float32, 4*4)
	for i := 8; i < 16; i++ {
		pred[i] = 1
	}
	mask := postprocess(pred, 4, 4, 40, 20)
	assert.Equal(t, image.Rect(0, 0, 40, 20), mask.Bounds())
	// Lanczos 会有少量振铃
	assert.Less(t, mask.GrayAt(20, 1).Y, uint8(32))
	assert.Greater(t, mask.GrayAt(20, 18).Y, uint8(223))
}

func TestApplyAlpha(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 13, 11))
	for x := 10; x < 13; x++ {
		img.Set(x, 10, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	}
	mask := image.NewGray(image.Rect(0, 0, 2, 1))
	mask.Pix[0] = 255
	mask.Pix[1] = 0

	out := ApplyAlpha(img, mask)
	assert.Equal(t, image.Rect(0, 0, 3, 1), out.Bounds())
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, uint8(0), out.NRGBAAt(1, 0).A)
	// Mask 未覆盖的列
	assert.Equal(t, uint8(0), out.NRGBAAt(2, 0).A)
}

func TestClient_Remove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(f)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte(hdr.Filename + ":" + string(body)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	out, err := c.Remove(context.Background(), "cat.jpg", strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.Equal(t, "cat.jpg:pixels", string(out))

	_, err = c.Remove(context.Background(), "cat.gif", strings.NewReader("pixels"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Error processing image"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Remove(context.Background(), "a.png", strings.NewReader("x"))
	assert.Error(t, err)
}
