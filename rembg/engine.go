package rembg

import (
	"fmt"
	"image"
	"sync"

	"github.com/getcharzp/go-maskkit"
	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"
)

// Engine 背景移除引擎
//
// 同一时刻只允许一次推理
type Engine struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	config     Config
	mu         sync.Mutex
}

// NewEngine 初始化 U²-Net 引擎，输入输出名从模型中读取
func NewEngine(cfg Config) (*Engine, error) {
	onnxConfig := new(maskkit.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, onnxConfig); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	if err := onnxConfig.New(); err != nil {
		return nil, err
	}
	defer onnxConfig.Release()

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("读取模型输入输出信息失败: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("模型缺少输入或输出")
	}

	// U²-Net 有多个侧输出，第一个为融合后的结果
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, onnxConfig.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("创建 ONNX 会话失败: %w", err)
	}

	return &Engine{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		config:     cfg,
	}, nil
}

// Destroy 释放相关资源
func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			return fmt.Errorf("销毁 ONNX 会话失败: %w", err)
		}
		e.session = nil
	}
	return nil
}

// Mask 预测前景 Mask，尺寸与原图一致
func (e *Engine) Mask(img image.Image) (*image.Gray, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("图片为空")
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, InputSize, InputSize), preprocess(img))
	if err != nil {
		return nil, fmt.Errorf("创建 Input Tensor 失败: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 1)
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("引擎已销毁")
	}
	err = e.session.Run([]ort.Value{inputTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("推理失败: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("输出类型不是 float32")
	}
	shape := out.GetShape() // [1, 1, 320, 320]
	if len(shape) != 4 {
		return nil, fmt.Errorf("输出形状异常: %v", shape)
	}
	h, w := int(shape[2]), int(shape[3])
	return postprocess(out.GetData(), w, h, bounds.Dx(), bounds.Dy()), nil
}

// Remove 移除背景，返回带透明通道的图像
func (e *Engine) Remove(img image.Image) (*image.NRGBA, error) {
	mask, err := e.Mask(img)
	if err != nil {
		return nil, err
	}
	return ApplyAlpha(img, mask), nil
}
