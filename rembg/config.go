package rembg

import (
	"path/filepath"
	"strings"

	"github.com/getcharzp/go-maskkit"
)

// 均值和方差常量 (ImageNet)
const (
	MeanR = 0.485
	MeanG = 0.456
	MeanB = 0.406

	StdR = 0.229
	StdG = 0.224
	StdB = 0.225
)

// InputSize U²-Net 输入尺寸
const InputSize = 320

// Config 配置项
type Config struct {
	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	ModelPath          string // u2net.onnx 模型路径

	// 可选参数
	UseCuda    bool // (可选) 是否启用 CUDA
	NumThreads int  // (可选) ONNX 线程数, 默认由CPU核心数决定
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: maskkit.DefaultLibraryPath(),
		ModelPath:          "./rembg_weights/u2net.onnx",
	}
}

// allowedExts 允许上传的文件后缀
var allowedExts = []string{".png", ".jpg", ".jpeg", ".webp"}

// AllowedExt 文件名后缀是否为支持的图片格式
func AllowedExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range allowedExts {
		if ext == e {
			return true
		}
	}
	return false
}
