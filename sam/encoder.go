package sam

import (
	"errors"
	"fmt"
)

// ErrMissingInput 缺少点击、特征或尺寸信息，调用方应视为空操作
var ErrMissingInput = errors.New("缺少必要的模型输入")

// MaskHint 上一轮预测得到的低分辨率 Mask (256x256)，用于迭代细化
type MaskHint struct {
	Data []float32
}

// Inputs 解码模型所需的全部输入
type Inputs struct {
	ImageEmbeddings *Embedding
	PointCoords     []float32  // [1, N, 2]
	PointLabels     []float32  // [1, N]
	MaskInput       []float32  // [1, 1, 256, 256]
	HasMaskInput    float32    // [1]
	OrigImSize      [2]float32 // [2] = (height, width)
}

// NumPoints 点的数量 N (含框选角点和占位点)
func (in *Inputs) NumPoints() int {
	return len(in.PointLabels)
}

// EncodeInputs 将点击和预计算特征转换为解码模型的输入
//
// 点击坐标乘以 samScale 映射到模型坐标系；多个框选角点时以最后一组为准，
// 角点排在普通点之后。没有完整的框选时追加一个 (0,0) label=-1 的占位点。
// 点击列表本身不做校验，异常数据只会得到退化的结果。
//
// # Params:
//
//	clicks: 原图坐标系下的点击，顺序有意义
//	emb: 预计算特征
//	scale: 原图尺寸与缩放系数
//	hint: (可选) 低分辨率 Mask 提示，nil 时 mask_input 全零
func EncodeInputs(clicks []Click, emb *Embedding, scale *ModelScale, hint *MaskHint) (*Inputs, error) {
	if len(clicks) == 0 || emb == nil || scale == nil {
		return nil, ErrMissingInput
	}

	var topLeft, botRight *Click
	points := make([]Click, 0, len(clicks)+1)
	for i := range clicks {
		switch clicks[i].Label {
		case LabelBoxTopLeft:
			topLeft = &clicks[i]
		case LabelBoxBotRight:
			botRight = &clicks[i]
		default:
			points = append(points, clicks[i])
		}
	}

	if topLeft != nil && botRight != nil {
		points = append(points, *topLeft, *botRight)
	} else {
		// 不完整的框选原样透传
		if topLeft != nil {
			points = append(points, *topLeft)
		}
		if botRight != nil {
			points = append(points, *botRight)
		}
		points = append(points, Click{X: 0, Y: 0, Label: LabelPadding})
	}

	in := &Inputs{
		ImageEmbeddings: emb,
		PointCoords:     make([]float32, 0, 2*len(points)),
		PointLabels:     make([]float32, 0, len(points)),
		MaskInput:       make([]float32, LowResSize*LowResSize),
		OrigImSize:      [2]float32{float32(scale.Height), float32(scale.Width)},
	}
	for _, pt := range points {
		x, y := scale.ToModel(pt.X, pt.Y)
		in.PointCoords = append(in.PointCoords, x, y)
		in.PointLabels = append(in.PointLabels, float32(pt.Label))
	}

	if hint != nil {
		if len(hint.Data) != LowResSize*LowResSize {
			return nil, fmt.Errorf("mask 提示长度为 %d, 期望 %d", len(hint.Data), LowResSize*LowResSize)
		}
		copy(in.MaskInput, hint.Data)
		in.HasMaskInput = 1
	}

	return in, nil
}
