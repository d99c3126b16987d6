package mask

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Options 渲染选项
type Options struct {
	Background color.Color // 默认黑色
	Foreground color.Color // 默认白色
	Cutout     bool        // 图形内部为透明，忽略 Foreground
}

func (o Options) colors() (color.Color, color.Color) {
	bg, fg := o.Background, o.Foreground
	if bg == nil {
		bg = color.Black
	}
	if fg == nil {
		fg = color.White
	}
	if o.Cutout {
		fg = color.Transparent
	}
	return bg, fg
}

// Coverage 图形覆盖率，抗锯齿边缘为中间值
func Coverage(width, height int, shapes []Shape) *image.Alpha {
	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	for _, s := range shapes {
		s.draw(dc)
	}
	src := dc.Image().(*image.RGBA)
	cov := image.NewAlpha(image.Rect(0, 0, width, height))
	for i := range cov.Pix {
		cov.Pix[i] = src.Pix[4*i+3]
	}
	return cov
}

// Render 生成与原图同尺寸的 Mask
//
// # Params:
//
//	width, height: 原图尺寸
//	shapes: 图片坐标系下的图形
//	opts: 图形外部填充 Background，内部填充 Foreground
func Render(width, height int, shapes []Shape, opts Options) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mask 尺寸无效: %dx%d", width, height)
	}
	cov := Coverage(width, height, shapes)
	bg, fg := opts.colors()
	br, bgG, bb, ba := bg.RGBA()
	fr, fgG, fb, fa := fg.RGBA()

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, a := range cov.Pix {
		k := uint32(a) * 0x101
		o := 4 * i
		dst.Pix[o+0] = lerp(br, fr, k)
		dst.Pix[o+1] = lerp(bgG, fgG, k)
		dst.Pix[o+2] = lerp(bb, fb, k)
		dst.Pix[o+3] = lerp(ba, fa, k)
	}
	return dst, nil
}

// lerp 在 16 位预乘分量之间插值，返回 8 位分量
func lerp(from, to, k uint32) uint8 {
	v := (from*(0xffff-k) + to*k) / 0xffff
	return uint8(v >> 8)
}

// Erase 以 destination-out 方式擦除：Mask 不透明的位置变为透明
//
// mask 尺寸与原图不同时会被拉伸到原图尺寸
func Erase(img image.Image, mask image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	b := dst.Bounds()

	m := mask
	if !mask.Bounds().Size().Eq(b.Size()) {
		m = imaging.Resize(mask, b.Dx(), b.Dy(), imaging.Linear)
	}
	mb := m.Bounds()

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			_, _, _, ma := m.At(mb.Min.X+x, mb.Min.Y+y).RGBA()
			if ma == 0 {
				continue
			}
			o := dst.PixOffset(b.Min.X+x, b.Min.Y+y) + 3
			dst.Pix[o] = uint8(uint32(dst.Pix[o]) * (0xffff - ma) / 0xffff)
		}
	}
	return dst
}
