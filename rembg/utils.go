package rembg

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// preprocess 缩放到 320x320，除以最大值后做 ImageNet 归一化 (CHW)
func preprocess(img image.Image) []float32 {
	resized := imaging.Resize(img, InputSize, InputSize, imaging.Lanczos)

	var maxVal uint8
	for i, v := range resized.Pix {
		if i%4 == 3 {
			continue
		}
		if v > maxVal {
			maxVal = v
		}
	}
	scale := float32(1)
	if maxVal > 0 {
		scale = 1 / float32(maxVal)
	}

	plane := InputSize * InputSize
	data := make([]float32, 3*plane)
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			o := y*resized.Stride + 4*x
			idx := y*InputSize + x
			data[idx] = (float32(resized.Pix[o])*scale - MeanR) / StdR
			data[plane+idx] = (float32(resized.Pix[o+1])*scale - MeanG) / StdG
			data[2*plane+idx] = (float32(resized.Pix[o+2])*scale - MeanB) / StdB
		}
	}
	return data
}

// normalize min-max 归一化到 [0, 255]
func normalize(pred []float32, width, height int) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	n := min(len(pred), width*height)
	if n == 0 {
		return gray
	}
	lo, hi := pred[0], pred[0]
	for _, v := range pred[:n] {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		return gray
	}
	for i := 0; i < n; i++ {
		gray.Pix[i] = uint8((pred[i]-lo)/span*255 + 0.5)
	}
	return gray
}

// postprocess 归一化后缩放回原图尺寸
func postprocess(pred []float32, predW, predH, origW, origH int) *image.Gray {
	small := normalize(pred, predW, predH)
	resized := imaging.Resize(small, origW, origH, imaging.Lanczos)

	// imaging 输出 NRGBA，取 R 通道作为灰度
	mask := image.NewGray(image.Rect(0, 0, origW, origH))
	for y := 0; y < origH; y++ {
		for x := 0; x < origW; x++ {
			mask.Pix[y*mask.Stride+x] = resized.Pix[y*resized.Stride+4*x]
		}
	}
	return mask
}

// ApplyAlpha 将 Mask 作为透明通道合成到原图上，Mask 未覆盖的区域完全透明
func ApplyAlpha(img image.Image, mask *image.Gray) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	mb := mask.Bounds()
	parallel.Line(dst.Rect.Dy(), func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < dst.Rect.Dx(); x++ {
				var a uint8
				if x < mb.Dx() && y < mb.Dy() {
					a = mask.Pix[mask.PixOffset(mb.Min.X+x, mb.Min.Y+y)]
				}
				o := y*dst.Stride + 4*x + 3
				dst.Pix[o] = uint8(uint16(dst.Pix[o]) * uint16(a) / 255)
			}
		}
	})
	return dst
}
