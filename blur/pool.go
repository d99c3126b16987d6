package blur

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/anthonynsimon/bild/blur"
	"github.com/getcharzp/go-maskkit"
)

// DefaultRadius 默认模糊半径
const DefaultRadius = 30

// ErrPoolClosed 任务池已关闭
var ErrPoolClosed = errors.New("blur 任务池已关闭")

// Result 一次模糊任务的结果
type Result struct {
	DataURI string // data:image/png;base64,...
	Err     error
}

type job struct {
	data   []byte
	radius float64
	result chan Result
}

// Pool 在独立 goroutine 中执行模糊，调用方通过 Submit 返回的 channel 等待结果
//
// 任务一旦提交不能取消
type Pool struct {
	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewPool 创建任务池
//
// # Params:
//
//	workers: worker 数量，<=0 时使用 CPU 核心数
//	queue: 任务队列长度
func NewPool(workers, queue int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, max(queue, 0))}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.runWorker(i)
	}
	return p
}

// Submit 提交一张图片 (png/jpeg/webp 编码数据)
//
// 队列已满时等待空位，ctx 取消后放弃提交并返回 ctx.Err()
func (p *Pool) Submit(ctx context.Context, data []byte, radius float64) <-chan Result {
	result := make(chan Result, 1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		result <- Result{Err: ErrPoolClosed}
		return result
	}
	select {
	case p.jobs <- job{data: data, radius: radius, result: result}:
	case <-ctx.Done():
		result <- Result{Err: ctx.Err()}
	}
	return result
}

// Close 停止接收任务，等待已提交的任务完成
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		j.result <- p.safeProcess(id, j)
	}
}

// safeProcess 单个任务 panic 不影响 worker
func (p *Pool) safeProcess(id int, j job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("blur worker %d panic: %v", id, r)
			res = Result{Err: fmt.Errorf("blur worker panic: %v", r)}
		}
	}()
	uri, err := Process(j.data, j.radius)
	return Result{DataURI: uri, Err: err}
}

// Process 解码图片，做半径为 radius 的均值模糊并输出 PNG data URI
//
// 均值模糊逐像素累加 (2r+1)² 个邻域像素，耗时随像素数和半径平方增长，
// 服务端通过 blur.max_pixels 限制输入尺寸
func Process(data []byte, radius float64) (string, error) {
	if radius <= 0 {
		return "", fmt.Errorf("模糊半径无效: %v", radius)
	}
	img, err := maskkit.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return maskkit.PNGDataURI(blur.Box(img, radius))
}
