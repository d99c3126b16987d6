package sam

import (
	"image"

	"github.com/up-zero/gotool/imageutil"
)

// preprocess 长边缩放到 1024，归一化并在右下方补零到 1024x1024
func preprocess(img image.Image, scale *ModelScale) []float32 {
	newW, newH := scale.ResizedSize()
	resized := imageutil.Resize(img, newW, newH)
	return normalizeAndPad(resized, InputSize, InputSize)
}

// normalizeAndPad 归一化和填充
func normalizeAndPad(src image.Image, targetW, targetH int) []float32 {
	bounds := src.Bounds()
	w, h := min(bounds.Dx(), targetW), min(bounds.Dy(), targetH)
	data := make([]float32, 3*targetW*targetH)
	plane := targetW * targetH

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA returns 0-65535
			rf := (float32(r)/65535.0 - MeanR) / StdR
			gf := (float32(g)/65535.0 - MeanG) / StdG
			bf := (float32(b)/65535.0 - MeanB) / StdB

			// 目标索引 (CHW)
			idx := y*targetW + x
			data[idx] = rf
			data[plane+idx] = gf
			data[2*plane+idx] = bf
		}
	}
	return data
}
