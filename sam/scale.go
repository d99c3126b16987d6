package sam

import "fmt"

// ModelScale 原图尺寸与模型输入坐标系之间的换算
type ModelScale struct {
	Width    int     `json:"width"`  // 原图宽
	Height   int     `json:"height"` // 原图高
	SamScale float32 `json:"sam_scale"`
}

// NewModelScale 根据原图尺寸计算缩放系数 1024 / max(w, h)
func NewModelScale(width, height int) (*ModelScale, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("图片尺寸无效: %dx%d", width, height)
	}
	return &ModelScale{
		Width:    width,
		Height:   height,
		SamScale: float32(InputSize) / float32(max(width, height)),
	}, nil
}

// ToModel 原图坐标 -> 模型输入坐标
func (s *ModelScale) ToModel(x, y float32) (float32, float32) {
	return x * s.SamScale, y * s.SamScale
}

// ToImage 模型输入坐标 -> 原图坐标
func (s *ModelScale) ToImage(x, y float32) (float32, float32) {
	return x / s.SamScale, y / s.SamScale
}

// ResizedSize 长边缩放到 1024 后的尺寸
func (s *ModelScale) ResizedSize() (int, int) {
	return int(float32(s.Width)*s.SamScale + 0.5), int(float32(s.Height)*s.SamScale + 0.5)
}
