package sam

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/getcharzp/go-maskkit"
	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrEncoderUnavailable 未配置特征提取模型
var ErrEncoderUnavailable = errors.New("未加载特征提取模型")

var (
	decInputs = []string{
		"image_embeddings", "point_coords", "point_labels",
		"mask_input", "has_mask_input", "orig_im_size",
	}
	decOutputs = []string{"masks", "iou_predictions", "low_res_masks"}
)

// Engine 持有 ONNX Session
//
// 同一时刻只允许一次推理
type Engine struct {
	encoderSession *ort.DynamicAdvancedSession
	decoderSession *ort.DynamicAdvancedSession
	config         Config
	mu             sync.Mutex
}

// NewEngine 初始化 SAM 引擎，EncodeModelPath 为空时只加载解码模型
func NewEngine(cfg Config) (*Engine, error) {
	onnxConfig := new(maskkit.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, onnxConfig); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	// 初始化 ONNX
	if err := onnxConfig.New(); err != nil {
		return nil, err
	}
	defer onnxConfig.Release()

	decSession, err := ort.NewDynamicAdvancedSession(cfg.DecodeModelPath, decInputs, decOutputs, onnxConfig.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder ONNX 会话失败: %w", err)
	}
	e := &Engine{
		decoderSession: decSession,
		config:         cfg,
	}

	if cfg.EncodeModelPath != "" {
		encInput, encOutput := cfg.EncoderInput, cfg.EncoderOutput
		if encInput == "" {
			encInput = "images"
		}
		if encOutput == "" {
			encOutput = "image_embeddings"
		}
		encSession, err := ort.NewDynamicAdvancedSession(cfg.EncodeModelPath, []string{encInput}, []string{encOutput}, onnxConfig.SessionOptions)
		if err != nil {
			decSession.Destroy()
			return nil, fmt.Errorf("创建 Encoder ONNX 会话失败: %w", err)
		}
		e.encoderSession = encSession
	}

	return e, nil
}

// Destroy 释放相关资源
func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.encoderSession != nil {
		if err := e.encoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Encoder ONNX 会话失败: %w", err)
		}
		e.encoderSession = nil
	}
	if e.decoderSession != nil {
		if err := e.decoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Decoder ONNX 会话失败: %w", err)
		}
		e.decoderSession = nil
	}
	return nil
}

// CanEncode 是否可以在线提取图片特征
func (e *Engine) CanEncode() bool {
	return e.encoderSession != nil
}

// EncodeImage 图像特征提取
func (e *Engine) EncodeImage(img image.Image) (*Embedding, *ModelScale, error) {
	if e.encoderSession == nil {
		return nil, nil, ErrEncoderUnavailable
	}
	bounds := img.Bounds()
	scale, err := NewModelScale(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, nil, err
	}

	tensorData := preprocess(img, scale)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, InputSize, InputSize), tensorData)
	if err != nil {
		return nil, nil, fmt.Errorf("创建图片 Input Tensor 失败: %w", err)
	}
	defer inputTensor.Destroy()

	e.mu.Lock()
	defer e.mu.Unlock()

	outputs := make([]ort.Value, 1)
	if err := e.encoderSession.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, nil, fmt.Errorf("encoder 推理失败: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("encoder 输出类型不是 float32")
	}
	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())
	shape := append([]int64(nil), out.GetShape()...)

	emb, err := NewEmbedding(data, shape)
	if err != nil {
		return nil, nil, err
	}
	return emb, scale, nil
}

// Prediction Mask 预测结果
type Prediction struct {
	Mask   []float32 // 原图尺寸的 logits，行优先
	Width  int
	Height int
	Score  float32   // 预测 IoU
	LowRes []float32 // 256x256 低分辨率 logits
}

// Image 转换为显示用的 RGBA 图像
func (p *Prediction) Image() *image.RGBA {
	return MaskToImage(p.Mask, p.Width, p.Height)
}

// Hint 作为下一轮推理的 mask_input
func (p *Prediction) Hint() *MaskHint {
	if len(p.LowRes) != LowResSize*LowResSize {
		return nil
	}
	return &MaskHint{Data: p.LowRes}
}

// Predict 执行 Mask 解码
func (e *Engine) Predict(in *Inputs) (*Prediction, error) {
	if in == nil || in.ImageEmbeddings == nil {
		return nil, ErrMissingInput
	}
	n := int64(in.NumPoints())

	tEmb, err := ort.NewTensor(ort.NewShape(in.ImageEmbeddings.Shape...), in.ImageEmbeddings.Data)
	if err != nil {
		return nil, fmt.Errorf("创建 Embedding Tensor 失败: %w", err)
	}
	defer tEmb.Destroy()

	tPoints, err := ort.NewTensor(ort.NewShape(1, n, 2), in.PointCoords)
	if err != nil {
		return nil, fmt.Errorf("创建 Points Tensor 失败: %w", err)
	}
	defer tPoints.Destroy()

	tLabels, err := ort.NewTensor(ort.NewShape(1, n), in.PointLabels)
	if err != nil {
		return nil, fmt.Errorf("创建 Labels Tensor 失败: %w", err)
	}
	defer tLabels.Destroy()

	tMask, err := ort.NewTensor(ort.NewShape(1, 1, LowResSize, LowResSize), in.MaskInput)
	if err != nil {
		return nil, fmt.Errorf("创建 Mask Input Tensor 失败: %w", err)
	}
	defer tMask.Destroy()

	tHasMask, err := ort.NewTensor(ort.NewShape(1), []float32{in.HasMaskInput})
	if err != nil {
		return nil, fmt.Errorf("创建 Has Mask Tensor 失败: %w", err)
	}
	defer tHasMask.Destroy()

	tSize, err := ort.NewTensor(ort.NewShape(2), []float32{in.OrigImSize[0], in.OrigImSize[1]})
	if err != nil {
		return nil, fmt.Errorf("创建 Image Size Tensor 失败: %w", err)
	}
	defer tSize.Destroy()

	inputs := []ort.Value{tEmb, tPoints, tLabels, tMask, tHasMask, tSize}
	outputs := make([]ort.Value, len(decOutputs))

	e.mu.Lock()
	if e.decoderSession == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("引擎已销毁")
	}
	err = e.decoderSession.Run(inputs, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("decoder 推理失败: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	masks, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("masks 输出类型不是 float32")
	}
	scores, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("iou_predictions 输出类型不是 float32")
	}
	var lowRes []float32
	if t, ok := outputs[2].(*ort.Tensor[float32]); ok {
		lowRes = t.GetData()
	}
	return selectMask(masks.GetData(), masks.GetShape(), scores.GetData(), lowRes)
}

// selectMask 多 Mask 输出时取得分最高的一个
//
// # Params:
//
//	masks: decoder 输出的 masks，形状为 [1, M, H, W]
//	scores: iou_predictions，只取前 M 个
//	lowRes: low_res_masks，长度不足时忽略
func selectMask(masks []float32, shape []int64, scores []float32, lowRes []float32) (*Prediction, error) {
	if len(shape) != 4 || shape[1] <= 0 || shape[2] <= 0 || shape[3] <= 0 {
		return nil, fmt.Errorf("masks 输出形状异常: %v", shape)
	}
	m, h, w := int(shape[1]), int(shape[2]), int(shape[3])
	if len(scores) > m {
		scores = scores[:m]
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("iou_predictions 输出为空")
	}

	bestIdx, bestScore := bestMask(scores)
	pixels := h * w
	if len(masks) < (bestIdx+1)*pixels {
		return nil, fmt.Errorf("masks 数据长度 %d 与形状 %v 不符", len(masks), shape)
	}
	mask := make([]float32, pixels)
	copy(mask, masks[bestIdx*pixels:(bestIdx+1)*pixels])

	pred := &Prediction{
		Mask:   mask,
		Width:  w,
		Height: h,
		Score:  bestScore,
	}
	lowPixels := LowResSize * LowResSize
	if len(lowRes) >= (bestIdx+1)*lowPixels {
		pred.LowRes = make([]float32, lowPixels)
		copy(pred.LowRes, lowRes[bestIdx*lowPixels:(bestIdx+1)*lowPixels])
	}
	return pred, nil
}

// bestMask 返回得分最高的下标
func bestMask(scores []float32) (int, float32) {
	bestIdx := 0
	bestScore := scores[0]
	for i, s := range scores[1:] {
		if s > bestScore {
			bestScore = s
			bestIdx = i + 1
		}
	}
	return bestIdx, bestScore
}
