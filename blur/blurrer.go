package blur

import (
	"bytes"
	"context"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/getcharzp/go-maskkit"
)

// FallbackSigma 同步降级模糊的强度
const FallbackSigma = 5

// Output 模糊输出
type Output struct {
	DataURI  string
	Degraded bool // 任务池失败后在当前 goroutine 中降级处理
}

// Blurrer 优先使用任务池，失败时降级为同步模糊
type Blurrer struct {
	pool *Pool
}

// NewBlurrer pool 可以为 nil，此时总是同步处理
func NewBlurrer(pool *Pool) *Blurrer {
	return &Blurrer{pool: pool}
}

// Blur 模糊一张图片
//
// ctx 取消时停止排队和等待并返回 ctx.Err()，已提交的任务仍会执行完
func (b *Blurrer) Blur(ctx context.Context, data []byte, radius float64) (*Output, error) {
	if b.pool != nil {
		select {
		case res := <-b.pool.Submit(ctx, data, radius):
			if res.Err == nil {
				return &Output{DataURI: res.DataURI}, nil
			}
		case <-ctx.Done():
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return fallback(data)
}

// BlurAll 并发模糊多张图片，每张图片独立降级，结果与输入一一对应
func (b *Blurrer) BlurAll(ctx context.Context, images [][]byte, radius float64) ([]*Output, []error) {
	outs := make([]*Output, len(images))
	errs := make([]error, len(images))
	var wg sync.WaitGroup
	for i := range images {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = b.Blur(ctx, images[i], radius)
		}(i)
	}
	wg.Wait()
	return outs, errs
}

func fallback(data []byte) (*Output, error) {
	img, err := maskkit.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	uri, err := maskkit.PNGDataURI(imaging.Blur(img, FallbackSigma))
	if err != nil {
		return nil, err
	}
	return &Output{DataURI: uri, Degraded: true}, nil
}
