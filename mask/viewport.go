package mask

// DefaultBrushWidth 画布缩放为 1 时的笔刷宽度
const DefaultBrushWidth = 50

// Viewport 图片在画布上的摆放位置
type Viewport struct {
	Left   float64 `json:"left"`    // 图片左上角在画布上的位置
	Top    float64 `json:"top"`     // 图片左上角在画布上的位置
	ScaleX float64 `json:"scale_x"` // 图片缩放
	ScaleY float64 `json:"scale_y"`
	Zoom   float64 `json:"zoom"` // 画布缩放，0 视为 1
}

// Fit 将图片等比缩放到画布的 ratio 比例内并居中
func Fit(canvasW, canvasH, imgW, imgH int, ratio float64) Viewport {
	if imgW <= 0 || imgH <= 0 {
		return Viewport{ScaleX: 1, ScaleY: 1, Zoom: 1}
	}
	s := min(float64(canvasW)*ratio/float64(imgW), float64(canvasH)*ratio/float64(imgH))
	return Viewport{
		Left:   float64(canvasW)/2 - float64(imgW)*s/2,
		Top:    float64(canvasH)/2 - float64(imgH)*s/2,
		ScaleX: s,
		ScaleY: s,
		Zoom:   1,
	}
}

func (v Viewport) zoom() float64 {
	if v.Zoom == 0 {
		return 1
	}
	return v.Zoom
}

func (v Viewport) scale() (float64, float64) {
	sx, sy := v.ScaleX, v.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

// ToImage 画布指针坐标 -> 图片像素坐标
func (v Viewport) ToImage(p Point) Point {
	z := v.zoom()
	sx, sy := v.scale()
	return Point{
		X: (p.X/z - v.Left) / sx,
		Y: (p.Y/z - v.Top) / sy,
	}
}

// ToViewport 图片像素坐标 -> 画布指针坐标
func (v Viewport) ToViewport(p Point) Point {
	z := v.zoom()
	sx, sy := v.scale()
	return Point{
		X: (p.X*sx + v.Left) * z,
		Y: (p.Y*sy + v.Top) * z,
	}
}

// Contains 画布指针是否落在图片范围内
func (v Viewport) Contains(p Point, imgW, imgH int) bool {
	q := v.ToImage(p)
	return q.X >= 0 && q.Y >= 0 && q.X <= float64(imgW) && q.Y <= float64(imgH)
}

// BoxToImage 将画布上的拖拽框转换到图片坐标系
func (v Viewport) BoxToImage(start, end Point) Box {
	return NewBox(v.ToImage(start), v.ToImage(end))
}

// PathToImage 将画布上的轨迹转换到图片坐标系
func (v Viewport) PathToImage(points []Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = v.ToImage(p)
	}
	return out
}

// BrushWidth 画布缩放后保持屏幕上笔刷宽度不变
func (v Viewport) BrushWidth(base float64) float64 {
	return base / v.zoom()
}

// StrokeToImage 将画布上的笔刷轨迹转换到图片坐标系，宽度同时换算
func (v Viewport) StrokeToImage(points []Point, base float64) Stroke {
	sx, _ := v.scale()
	return Stroke{Points: v.PathToImage(points), Width: v.BrushWidth(base) / sx}
}

// SpecToImage 将画布坐标系下的图形描述转换到图片坐标系
func (v Viewport) SpecToImage(s ShapeSpec) ShapeSpec {
	out := ShapeSpec{Type: s.Type, Points: v.PathToImage(s.Points), Width: s.Width}
	if s.Type == "stroke" {
		sx, _ := v.scale()
		out.Width = v.BrushWidth(s.Width) / sx
	}
	return out
}
