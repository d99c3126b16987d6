package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/getcharzp/go-maskkit"
	"github.com/getcharzp/go-maskkit/internal/logger"
	"github.com/getcharzp/go-maskkit/internal/store"
	"github.com/getcharzp/go-maskkit/sam"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DecodeRequest 解码请求，clicks 为原图坐标
type DecodeRequest struct {
	Clicks  []sam.Click `json:"clicks"`
	UseHint bool        `json:"use_hint"` // 使用上一轮的低分辨率 Mask 作为提示
}

// createSession 上传图片创建会话
//
// 可以同时上传预计算的 .npy 特征 (embedding 字段)，否则依次尝试 redis 缓存、本地编码器、远程服务
func (s *Server) createSession(c *gin.Context) {
	data, fh, err := s.readUpload(c, "image")
	if err != nil {
		uploadFailed(c, "image", err)
		return
	}
	img, err := maskkit.DecodeImage(bytes.NewReader(data))
	if err != nil {
		fail(c, http.StatusBadRequest, "无法解析图片", err)
		return
	}
	b := img.Bounds()
	scale, err := sam.NewModelScale(b.Dx(), b.Dy())
	if err != nil {
		fail(c, http.StatusBadRequest, "图片尺寸无效", err)
		return
	}

	var (
		emb    *sam.Embedding
		source string
	)
	embData, _, embErr := s.readUpload(c, "embedding")
	switch {
	case embErr == nil:
		emb, err = sam.ReadEmbedding(bytes.NewReader(embData))
		if err != nil {
			fail(c, http.StatusBadRequest, "无法解析 embedding", err)
			return
		}
		source = "upload"
	case errors.Is(embErr, errFileTooLarge):
		uploadFailed(c, "embedding", embErr)
		return
	default:
		emb, source, err = s.embed(c.Request.Context(), fh.Filename, data, img)
		if err != nil {
			if errors.Is(err, ErrEngineUnavailable) {
				fail(c, http.StatusServiceUnavailable, "未配置特征提取", err)
				return
			}
			fail(c, http.StatusInternalServerError, "特征提取失败", err)
			return
		}
	}

	sess, err := s.opts.Sessions.Create(emb, scale)
	if err != nil {
		if errors.Is(err, store.ErrTooManySessions) {
			fail(c, http.StatusTooManyRequests, "会话数量已达上限", err)
			return
		}
		fail(c, http.StatusInternalServerError, "创建会话失败", err)
		return
	}
	s.opts.Metrics.Sessions.Set(float64(s.opts.Sessions.Len()))

	logger.Log().Info("session created",
		zap.String("id", sess.ID),
		zap.Int("width", scale.Width),
		zap.Int("height", scale.Height),
		zap.String("source", source))
	c.JSON(http.StatusCreated, sessionResponse(sess, source))
}

// embed 计算图片特征：缓存 -> 本地编码器 -> 远程服务
func (s *Server) embed(ctx context.Context, filename string, data []byte, img image.Image) (*sam.Embedding, string, error) {
	md5 := store.BytesMD5(data)
	if emb, err := s.opts.Cache.Get(ctx, md5); err != nil {
		logger.Log().Warn("embedding cache read failed", zap.String("md5", md5), zap.Error(err))
	} else if emb != nil {
		return emb, "cache", nil
	}

	var (
		emb    *sam.Embedding
		source string
		err    error
	)
	start := time.Now()
	switch {
	case s.opts.Encoder != nil:
		emb, _, err = s.opts.Encoder.EncodeImage(img)
		s.opts.Metrics.ObserveInference("sam_encoder", start)
		source = "encoder"
	case s.opts.Fetcher != nil:
		emb, err = s.opts.Fetcher.Fetch(ctx, filename, bytes.NewReader(data))
		s.opts.Metrics.ObserveInference("sam_remote", start)
		source = "remote"
	default:
		return nil, "", ErrEngineUnavailable
	}
	if err != nil {
		return nil, "", err
	}

	if err := s.opts.Cache.Set(ctx, md5, emb); err != nil {
		logger.Log().Warn("embedding cache write failed", zap.String("md5", md5), zap.Error(err))
	}
	return emb, source, nil
}

func sessionResponse(sess *store.Session, source string) SessionResponse {
	return SessionResponse{
		ID:       sess.ID,
		Width:    sess.Scale.Width,
		Height:   sess.Scale.Height,
		SamScale: sess.Scale.SamScale,
		Source:   source,
	}
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.opts.Sessions.Get(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "会话不存在", err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(sess, ""))
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.opts.Sessions.Delete(c.Param("id")); err != nil {
		fail(c, http.StatusNotFound, "会话不存在", err)
		return
	}
	s.opts.Metrics.Sessions.Set(float64(s.opts.Sessions.Len()))
	c.Status(http.StatusNoContent)
}

// decode 点击解码，没有点击时返回 204
func (s *Server) decode(c *gin.Context) {
	sess, err := s.opts.Sessions.Get(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "会话不存在", err)
		return
	}
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求格式错误", err)
		return
	}

	resp, err := s.predict(sess, req.Clicks, req.UseHint)
	if err != nil {
		switch {
		case errors.Is(err, sam.ErrMissingInput):
			c.Status(http.StatusNoContent)
		case errors.Is(err, ErrEngineUnavailable):
			fail(c, http.StatusServiceUnavailable, "未加载 SAM 解码模型", err)
		default:
			fail(c, http.StatusInternalServerError, "解码失败", err)
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// predict 编码输入、运行解码模型并保存低分辨率 Mask
func (s *Server) predict(sess *store.Session, clicks []sam.Click, useHint bool) (*MaskResponse, error) {
	if s.opts.Predictor == nil {
		return nil, ErrEngineUnavailable
	}
	var hint *sam.MaskHint
	if useHint {
		hint = sess.Hint()
	}
	in, err := sam.EncodeInputs(clicks, sess.Embedding, sess.Scale, hint)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pred, err := s.opts.Predictor.Predict(in)
	s.opts.Metrics.ObserveInference("sam_decoder", start)
	if err != nil {
		return nil, err
	}
	sess.SetHint(pred.Hint())

	uri, err := maskkit.PNGDataURI(pred.Image())
	if err != nil {
		return nil, err
	}
	bb := sam.MaskBounds(pred.Mask, pred.Width, pred.Height)
	return &MaskResponse{
		Mask:   uri,
		Score:  pred.Score,
		Width:  pred.Width,
		Height: pred.Height,
		Area:   sam.MaskArea(pred.Mask),
		BBox:   [4]int{bb.Min.X, bb.Min.Y, bb.Max.X, bb.Max.Y},
	}, nil
}
