package rembg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultURL 背景移除服务地址
const DefaultURL = "http://127.0.0.1:8000"

// ErrInvalidFormat 上传的文件格式不受支持
var ErrInvalidFormat = errors.New("Invalid file format. Use 'png', 'jpg', 'jpeg' or 'webp'")

// Client 远程背景移除服务客户端
type Client struct {
	client *resty.Client
	url    string
}

// NewClient 创建客户端，url 为空时使用 DefaultURL
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

// Remove 上传图片，返回移除背景后的 PNG 数据
//
// 文件名后缀不受支持时直接返回 ErrInvalidFormat，不发起请求
func (c *Client) Remove(ctx context.Context, filename string, r io.Reader) ([]byte, error) {
	if !AllowedExt(filename) {
		return nil, ErrInvalidFormat
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, r).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("请求背景移除服务失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("背景移除服务返回错误: %s", resp.Status())
	}
	return resp.Body(), nil
}
