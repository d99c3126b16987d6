package sam

import "image"

// MaskToImage 将模型输出的 Mask logits 转换为 RGBA 图像
//
// 第 i 个元素对应像素 (i%width, i/width)，大于阈值的像素填充 MaskColor，
// 其余为全透明黑色。
func MaskToImage(mask []float32, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := min(len(mask), width*height)
	for i := 0; i < n; i++ {
		if mask[i] > MaskThreshold {
			o := 4 * i
			img.Pix[o+0] = MaskColor.R
			img.Pix[o+1] = MaskColor.G
			img.Pix[o+2] = MaskColor.B
			img.Pix[o+3] = MaskColor.A
		}
	}
	return img
}

// MaskToGray 按同样的阈值输出 0/255 灰度 Mask
func MaskToGray(mask []float32, width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	n := min(len(mask), width*height)
	for i := 0; i < n; i++ {
		if mask[i] > MaskThreshold {
			img.Pix[i] = 255
		}
	}
	return img
}

// MaskArea 前景像素个数
func MaskArea(mask []float32) int {
	area := 0
	for _, v := range mask {
		if v > MaskThreshold {
			area++
		}
	}
	return area
}

// MaskBounds 前景像素的外接矩形，没有前景时返回空矩形
func MaskBounds(mask []float32, width, height int) image.Rectangle {
	minX, minY, maxX, maxY := width, height, -1, -1
	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			if row+x >= len(mask) || mask[row+x] <= MaskThreshold {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
