package sam

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/getcharzp/go-maskkit"
	"github.com/up-zero/gotool/imageutil"
	xdraw "golang.org/x/image/draw"
)

var (
	positiveColor = color.RGBA{G: 200, A: 255}
	negativeColor = color.RGBA{R: 220, A: 255}
	boxColor      = color.RGBA{G: 128, A: 255}
	textColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// maskOpacity 叠加 Mask 的不透明度 (0.9)
const maskOpacity = 230

// DrawOverlay 在原图上叠加 Mask、点击位置和框选，用于预览
//
// # Params:
//
//	img: 原图
//	mask: MaskToImage 的输出，尺寸不同时按最近邻缩放
//	clicks: 原图坐标系下的点击
//	score: 预测得分，drawer 为 nil 时不绘制文字
func DrawOverlay(img image.Image, mask *image.RGBA, clicks []Click, score float32, drawer *maskkit.TextDrawer) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	if mask != nil {
		src := image.Image(mask)
		if !mask.Bounds().Size().Eq(dst.Bounds().Size()) {
			scaled := image.NewRGBA(dst.Bounds())
			xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), mask, mask.Bounds(), xdraw.Src, nil)
			src = scaled
		}
		draw.DrawMask(dst, dst.Bounds(), src, image.Point{}, image.NewUniform(color.Alpha{A: maskOpacity}), image.Point{}, draw.Over)
	}

	radius := max(3, min(dst.Bounds().Dx(), dst.Bounds().Dy())/100)
	var topLeft, botRight *image.Point
	for _, c := range clicks {
		pt := image.Pt(int(c.X), int(c.Y))
		switch c.Label {
		case LabelForeground:
			imageutil.DrawFilledCircle(dst, pt, radius, positiveColor)
		case LabelBackground:
			imageutil.DrawFilledCircle(dst, pt, radius, negativeColor)
		case LabelBoxTopLeft:
			topLeft = &pt
		case LabelBoxBotRight:
			botRight = &pt
		}
	}
	if topLeft != nil && botRight != nil {
		rect := image.Rectangle{Min: *topLeft, Max: *botRight}.Canon()
		imageutil.DrawThickRectOutline(dst, rect, boxColor, max(2, radius/2))
	}

	if drawer != nil {
		drawer.DrawText(dst, fmt.Sprintf("score: %.4f", score), 8, 20, textColor)
	}
	return dst
}
