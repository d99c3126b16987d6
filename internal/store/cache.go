package store

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"github.com/getcharzp/go-maskkit/internal/config"
	"github.com/getcharzp/go-maskkit/sam"
	"github.com/redis/go-redis/v9"
)

// EmbeddingCache 按图片 MD5 缓存特征，未启用时所有操作都是空操作
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEmbeddingCache cfg.Enabled 为 false 时返回禁用的缓存
func NewEmbeddingCache(cfg *config.RedisConfig) *EmbeddingCache {
	if cfg == nil || !cfg.Enabled {
		return &EmbeddingCache{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &EmbeddingCache{
		client: client,
		ttl:    cfg.TTL,
	}
}

// Enabled 是否启用
func (c *EmbeddingCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Ping 检查连接
func (c *EmbeddingCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Disable 连接失败后关闭缓存，之后的读写直接跳过
func (c *EmbeddingCache) Disable() {
	if c.Enabled() {
		_ = c.client.Close()
		c.client = nil
	}
}

// Get 读取特征，未命中时返回 nil, nil
func (c *EmbeddingCache) Get(ctx context.Context, md5 string) (*sam.Embedding, error) {
	if !c.Enabled() {
		return nil, nil
	}
	data, err := c.client.Get(ctx, embeddingKey(md5)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return sam.ReadEmbedding(bytes.NewReader(data))
}

// Set 写入特征
func (c *EmbeddingCache) Set(ctx context.Context, md5 string, emb *sam.Embedding) error {
	if !c.Enabled() {
		return nil
	}
	var buf bytes.Buffer
	if err := sam.WriteEmbedding(&buf, emb); err != nil {
		return err
	}
	return c.client.Set(ctx, embeddingKey(md5), buf.Bytes(), c.ttl).Err()
}

// Close 关闭连接
func (c *EmbeddingCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

func embeddingKey(md5 string) string {
	return "embedding:" + md5
}

// BytesMD5 计算字节数组MD5
func BytesMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}
