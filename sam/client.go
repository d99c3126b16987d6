package sam

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultEmbeddingURL 特征提取服务地址
const DefaultEmbeddingURL = "http://127.0.0.1:8000/sam"

// EmbeddingClient 远程特征提取服务客户端
type EmbeddingClient struct {
	client *resty.Client
	url    string
}

// NewEmbeddingClient 创建客户端，url 为空时使用 DefaultEmbeddingURL
func NewEmbeddingClient(url string, timeout time.Duration) *EmbeddingClient {
	if url == "" {
		url = DefaultEmbeddingURL
	}
	return &EmbeddingClient{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

// Fetch 上传图片并解析返回的 .npy 特征
func (c *EmbeddingClient) Fetch(ctx context.Context, filename string, r io.Reader) (*Embedding, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("image", filename, r).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("请求特征服务失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("特征服务返回错误: %s", resp.Status())
	}
	return ReadEmbedding(bytes.NewReader(resp.Body()))
}
