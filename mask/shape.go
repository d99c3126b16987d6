package mask

import (
	"errors"
	"fmt"
	"math"

	"github.com/fogleman/gg"
)

// ErrEmptyShape 图形没有足够的点
var ErrEmptyShape = errors.New("图形点数不足")

// Point 图片坐标系下的点
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape 可以绘制到 Mask 上的图形
type Shape interface {
	draw(dc *gg.Context)
}

// Polygon 闭合多边形，按顶点顺序填充
type Polygon struct {
	Points []Point
}

func (p Polygon) draw(dc *gg.Context) {
	if len(p.Points) < 3 {
		return
	}
	dc.NewSubPath()
	for _, pt := range p.Points {
		dc.LineTo(pt.X, pt.Y)
	}
	dc.ClosePath()
	dc.Fill()
}

// Box 轴对齐矩形，Min 为左上角
type Box struct {
	Min Point
	Max Point
}

// NewBox 由拖拽的起点和终点构造矩形，任意方向拖拽结果一致
func NewBox(start, end Point) Box {
	return Box{
		Min: Point{X: math.Min(start.X, end.X), Y: math.Min(start.Y, end.Y)},
		Max: Point{X: math.Max(start.X, end.X), Y: math.Max(start.Y, end.Y)},
	}
}

// Width 宽度
func (b Box) Width() float64 { return b.Max.X - b.Min.X }

// Height 高度
func (b Box) Height() float64 { return b.Max.Y - b.Min.Y }

// Corners 返回 [x1, y1, x2, y2]
func (b Box) Corners() [4]float64 {
	return [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
}

func (b Box) draw(dc *gg.Context) {
	if b.Width() <= 0 || b.Height() <= 0 {
		return
	}
	dc.DrawRectangle(b.Min.X, b.Min.Y, b.Width(), b.Height())
	dc.Fill()
}

// Stroke 自由笔刷轨迹
type Stroke struct {
	Points []Point
	Width  float64
}

func (s Stroke) draw(dc *gg.Context) {
	if len(s.Points) == 0 || s.Width <= 0 {
		return
	}
	if len(s.Points) == 1 {
		dc.DrawCircle(s.Points[0].X, s.Points[0].Y, s.Width/2)
		dc.Fill()
		return
	}
	dc.SetLineWidth(s.Width)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(s.Points[0].X, s.Points[0].Y)
	for _, pt := range s.Points[1:] {
		dc.LineTo(pt.X, pt.Y)
	}
	dc.Stroke()
}

// ShapeSpec 图形的 JSON 描述
//
// type 为 polygon、box 或 stroke；box 取 points 的前两个点作为拖拽起止点
type ShapeSpec struct {
	Type   string  `json:"type"`
	Points []Point `json:"points"`
	Width  float64 `json:"width,omitempty"`
}

// Shape 转换为可绘制的图形
func (s ShapeSpec) Shape() (Shape, error) {
	switch s.Type {
	case "polygon":
		if len(s.Points) < 3 {
			return nil, fmt.Errorf("polygon: %w", ErrEmptyShape)
		}
		return Polygon{Points: s.Points}, nil
	case "box":
		if len(s.Points) < 2 {
			return nil, fmt.Errorf("box: %w", ErrEmptyShape)
		}
		return NewBox(s.Points[0], s.Points[1]), nil
	case "stroke":
		if len(s.Points) == 0 {
			return nil, fmt.Errorf("stroke: %w", ErrEmptyShape)
		}
		if s.Width <= 0 {
			return nil, fmt.Errorf("stroke: 笔刷宽度无效 %v", s.Width)
		}
		return Stroke{Points: s.Points, Width: s.Width}, nil
	default:
		return nil, fmt.Errorf("未知图形类型: %q", s.Type)
	}
}

// Shapes 批量转换
func Shapes(specs []ShapeSpec) ([]Shape, error) {
	shapes := make([]Shape, 0, len(specs))
	for i, s := range specs {
		shape, err := s.Shape()
		if err != nil {
			return nil, fmt.Errorf("第 %d 个图形: %w", i, err)
		}
		shapes = append(shapes, shape)
	}
	return shapes, nil
}
