package sam

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"reflect"
	"unsafe"

	"github.com/sbinet/npyio"
)

// Embedding 预计算的图片特征，加载后只读
type Embedding struct {
	Data  []float32
	Shape []int64
}

// DefaultEmbeddingShape SAM ViT 编码器输出的形状
func DefaultEmbeddingShape() []int64 {
	return []int64{1, embedChannels, embedSize, embedSize}
}

// NewEmbedding 校验数据长度与形状一致
func NewEmbedding(data []float32, shape []int64) (*Embedding, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("特征形状为空")
	}
	n := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("特征形状无效: %v", shape)
		}
		n *= d
	}
	if n != int64(len(data)) {
		return nil, fmt.Errorf("特征长度 %d 与形状 %v 不匹配", len(data), shape)
	}
	return &Embedding{Data: data, Shape: shape}, nil
}

// LoadEmbedding 读取 .npy 特征文件
func LoadEmbedding(path string) (*Embedding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开特征文件失败: %w", err)
	}
	defer f.Close()
	return ReadEmbedding(bufio.NewReader(f))
}

// ReadEmbedding 从 .npy 数据流中读取 float32 特征
//
// 兼容一维写出的旧文件：长度等于 256*64*64 时按 [1, 256, 64, 64] 处理
func ReadEmbedding(r io.Reader) (*Embedding, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("解析 npy 头失败: %w", err)
	}
	if nr.Header.Descr.Fortran {
		return nil, fmt.Errorf("不支持 Fortran 顺序的 npy 数据")
	}

	var data []float32
	if err := nr.Read(&data); err != nil {
		return nil, fmt.Errorf("读取 npy 数据失败: %w", err)
	}

	shape := make([]int64, 0, len(nr.Header.Descr.Shape))
	for _, d := range nr.Header.Descr.Shape {
		shape = append(shape, int64(d))
	}
	if len(shape) <= 1 && len(data) == embedChannels*embedSize*embedSize {
		shape = DefaultEmbeddingShape()
	}
	return NewEmbedding(data, shape)
}

// WriteEmbedding 以 .npy 格式写出特征数据，header 中保留 Shape
func WriteEmbedding(w io.Writer, emb *Embedding) error {
	if emb == nil {
		return fmt.Errorf("特征为空")
	}
	var val any = emb.Data
	if len(emb.Shape) > 0 {
		arr, err := shapedArray(emb)
		if err != nil {
			return err
		}
		val = arr
	}
	if err := npyio.Write(w, val); err != nil {
		return fmt.Errorf("写入 npy 失败: %w", err)
	}
	return nil
}

// shapedArray 按 Shape 构造定长多维数组 (如 *[1][256][64][64]float32)
//
// npyio 从数组类型推导 header 中的 shape，切片只能写出一维
func shapedArray(emb *Embedding) (any, error) {
	if _, err := NewEmbedding(emb.Data, emb.Shape); err != nil {
		return nil, err
	}
	t := reflect.TypeOf(float32(0))
	for i := len(emb.Shape) - 1; i >= 0; i-- {
		t = reflect.ArrayOf(int(emb.Shape[i]), t)
	}
	arr := reflect.New(t)
	copy(unsafe.Slice((*float32)(arr.UnsafePointer()), len(emb.Data)), emb.Data)
	return arr.Interface(), nil
}

// SaveEmbedding 将特征写入文件
func SaveEmbedding(path string, emb *Embedding) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建特征文件失败: %w", err)
	}
	if err := WriteEmbedding(f, emb); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
