package sam

import (
	"image/color"

	"github.com/getcharzp/go-maskkit"
)

// Label 点击类型，取值与 SAM ONNX 解码模型的 point_labels 一致
type Label int

const (
	LabelPadding     Label = -1 // 无框选时追加的占位点
	LabelBackground  Label = 0  // 背景/排除
	LabelForeground  Label = 1  // 前景/点击
	LabelBoxTopLeft  Label = 2  // 框选左上
	LabelBoxBotRight Label = 3  // 框选右下
)

// IsBoxCorner 是否为框选角点
func (l Label) IsBoxCorner() bool {
	return l == LabelBoxTopLeft || l == LabelBoxBotRight
}

func (l Label) String() string {
	switch l {
	case LabelPadding:
		return "padding"
	case LabelBackground:
		return "background"
	case LabelForeground:
		return "foreground"
	case LabelBoxTopLeft:
		return "box_top_left"
	case LabelBoxBotRight:
		return "box_bottom_right"
	default:
		return "unknown"
	}
}

// 均值和方差常量
const (
	MeanR = 0.485
	MeanG = 0.456
	MeanB = 0.406

	StdR = 0.229
	StdG = 0.224
	StdB = 0.225
)

const (
	// InputSize 模型输入的长边尺寸
	InputSize = 1024
	// MaskThreshold 模型定义的二值化阈值
	MaskThreshold = 0.0
	// LowResSize 低分辨率 Mask 边长，同时也是 mask_input 的尺寸
	LowResSize = 256

	// 预计算特征的默认形状 [1, 256, 64, 64]
	embedChannels = 256
	embedSize     = 64
)

// MaskColor 前景 Mask 的显示颜色
var MaskColor = color.RGBA{R: 0, G: 114, B: 189, A: 255}

// Click 原图坐标系下的一次点击
type Click struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Label Label   `json:"label"`
}

// Config 配置项
type Config struct {
	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	DecodeModelPath    string // Prompt 编码 + Mask 解码模型

	// 可选参数
	EncodeModelPath string // (可选) 图片特征提取模型，为空时只能使用预计算的特征
	EncoderInput    string // (可选) 特征提取模型输入名，默认 images
	EncoderOutput   string // (可选) 特征提取模型输出名，默认 image_embeddings
	UseCuda         bool   // (可选) 是否启用 CUDA
	NumThreads      int    // (可选) ONNX 线程数, 默认由CPU核心数决定
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: maskkit.DefaultLibraryPath(),
		DecodeModelPath:    "./sam_weights/sam_onnx_quantized.onnx",
		EncodeModelPath:    "./sam_weights/sam_vit_b_encoder.onnx",
		EncoderInput:       "images",
		EncoderOutput:      "image_embeddings",
	}
}
