package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getcharzp/go-maskkit"
	"github.com/getcharzp/go-maskkit/internal/logger"
	"github.com/getcharzp/go-maskkit/mask"
	"github.com/getcharzp/go-maskkit/rembg"
	"github.com/getcharzp/go-maskkit/sam"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaskRequest 根据图形生成 Mask
type MaskRequest struct {
	Width    int              `json:"width" binding:"required,gt=0"`
	Height   int              `json:"height" binding:"required,gt=0"`
	Shapes   []mask.ShapeSpec `json:"shapes"`
	Cutout   bool             `json:"cutout"`
	Viewport *mask.Viewport   `json:"viewport,omitempty"` // 非空时 shapes 为画布坐标
}

// removeBackground 返回 PNG/WebP 数据和 MIME 类型
func (s *Server) removeBackground(c *gin.Context, filename string, data []byte, format string) ([]byte, string, error) {
	start := time.Now()
	if s.opts.RemoteRemover != nil {
		out, err := s.opts.RemoteRemover.Remove(c.Request.Context(), filename, bytes.NewReader(data))
		s.opts.Metrics.ObserveInference("rembg_remote", start)
		if err != nil {
			return nil, "", err
		}
		// 远程服务固定返回 PNG
		if f := strings.ToLower(format); f == "" || f == "png" {
			return out, maskkit.MimePNG, nil
		}
		img, err := maskkit.DecodeImage(bytes.NewReader(out))
		if err != nil {
			return nil, "", err
		}
		return maskkit.Encode(img, format)
	}
	if s.opts.Remover == nil {
		return nil, "", ErrEngineUnavailable
	}
	img, err := maskkit.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	cutout, err := s.opts.Remover.Remove(img)
	s.opts.Metrics.ObserveInference("rembg", start)
	if err != nil {
		return nil, "", err
	}
	return maskkit.Encode(cutout, format)
}

// removeBg 背景移除，支持 ?format=webp
func (s *Server) removeBg(c *gin.Context) {
	data, fh, err := s.readUpload(c, "image")
	if err != nil {
		uploadFailed(c, "image", err)
		return
	}
	if !rembg.AllowedExt(fh.Filename) {
		fail(c, http.StatusBadRequest, rembg.ErrInvalidFormat.Error(), nil)
		return
	}
	format := c.DefaultQuery("format", "png")
	if f := strings.ToLower(format); f != "png" && f != "webp" {
		fail(c, http.StatusBadRequest, fmt.Sprintf("不支持的输出格式: %s", format), nil)
		return
	}
	out, mime, err := s.removeBackground(c, fh.Filename, data, format)
	if err != nil {
		if errors.Is(err, ErrEngineUnavailable) {
			fail(c, http.StatusServiceUnavailable, "未加载背景移除模型", err)
			return
		}
		fail(c, http.StatusInternalServerError, "Error processing image", err)
		return
	}
	c.Data(http.StatusOK, mime, out)
}

// removeBgCompat 兼容 remove-bg 单接口服务：字段名 file，错误为 {"detail": ...}
func (s *Server) removeBgCompat(c *gin.Context) {
	data, fh, err := s.readUpload(c, "file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	logger.Log().Info("received file", zap.String("filename", fh.Filename))
	if !rembg.AllowedExt(fh.Filename) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": rembg.ErrInvalidFormat.Error()})
		return
	}
	out, _, err := s.removeBackground(c, fh.Filename, data, "png")
	if err != nil {
		logger.Log().Error("error processing image", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Error processing image"})
		return
	}
	c.Data(http.StatusOK, maskkit.MimePNG, out)
}

// samCompat 兼容 sam 特征服务：上传 image，返回 embedding.npy
func (s *Server) samCompat(c *gin.Context) {
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
	emb, _, err := s.embed(c.Request.Context(), fh.Filename, data, img)
	if err != nil {
		if errors.Is(err, ErrEngineUnavailable) {
			fail(c, http.StatusServiceUnavailable, "未配置特征提取", err)
			return
		}
		fail(c, http.StatusInternalServerError, "特征提取失败", err)
		return
	}

	var buf bytes.Buffer
	if err := sam.WriteEmbedding(&buf, emb); err != nil {
		fail(c, http.StatusInternalServerError, "写入 embedding 失败", err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=embedding.npy")
	c.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
}

// blur 模糊图片，表单 radius 默认 blur.radius
func (s *Server) blur(c *gin.Context) {
	data, _, err := s.readUpload(c, "image")
	if err != nil {
		uploadFailed(c, "image", err)
		return
	}
	ic, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		fail(c, http.StatusBadRequest, "无法解析图片", err)
		return
	}
	if limit := s.cfg.Blur.MaxPixels; limit > 0 && ic.Width*ic.Height > limit {
		fail(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("图片像素数 %dx%d 超过限制 %d", ic.Width, ic.Height, limit), nil)
		return
	}
	radius := s.cfg.Blur.Radius
	if v := c.PostForm("radius"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			fail(c, http.StatusBadRequest, fmt.Sprintf("radius 无效: %q", v), err)
			return
		}
	}

	out, err := s.opts.Blurrer.Blur(c.Request.Context(), data, radius)
	if err != nil {
		fail(c, http.StatusBadRequest, "模糊失败", err)
		return
	}
	if out.Degraded {
		s.opts.Metrics.Degraded.Inc()
		logger.Log().Warn("blur served by fallback", zap.Float64("radius", radius))
	}
	c.JSON(http.StatusOK, BlurResponse{Image: out.DataURI, Degraded: out.Degraded})
}

// renderMask 根据多边形/矩形/笔刷生成原图尺寸的 Mask
func (s *Server) renderMask(c *gin.Context) {
	var req MaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求格式错误", err)
		return
	}
	specs := req.Shapes
	if req.Viewport != nil {
		specs = make([]mask.ShapeSpec, len(req.Shapes))
		for i, sp := range req.Shapes {
			specs[i] = req.Viewport.SpecToImage(sp)
		}
	}
	shapes, err := mask.Shapes(specs)
	if err != nil {
		fail(c, http.StatusBadRequest, "图形无效", err)
		return
	}
	img, err := mask.Render(req.Width, req.Height, shapes, mask.Options{Cutout: req.Cutout})
	if err != nil {
		fail(c, http.StatusBadRequest, "生成 Mask 失败", err)
		return
	}
	uri, err := maskkit.PNGDataURI(img)
	if err != nil {
		fail(c, http.StatusInternalServerError, "PNG 编码失败", err)
		return
	}
	c.JSON(http.StatusOK, DataURIResponse{Image: uri, Width: req.Width, Height: req.Height})
}

// erase 使用 Mask 擦除图片 (destination-out)，返回 PNG
func (s *Server) erase(c *gin.Context) {
	imgData, _, err := s.readUpload(c, "image")
	if err != nil {
		uploadFailed(c, "image", err)
		return
	}
	maskData, _, err := s.readUpload(c, "mask")
	if err != nil {
		uploadFailed(c, "mask", err)
		return
	}
	img, err := maskkit.DecodeImage(bytes.NewReader(imgData))
	if err != nil {
		fail(c, http.StatusBadRequest, "无法解析图片", err)
		return
	}
	m, err := maskkit.DecodeImage(bytes.NewReader(maskData))
	if err != nil {
		fail(c, http.StatusBadRequest, "无法解析 Mask", err)
		return
	}
	out, mime, err := maskkit.Encode(mask.Erase(img, m), c.DefaultQuery("format", "png"))
	if err != nil {
		fail(c, http.StatusBadRequest, "编码失败", err)
		return
	}
	c.Data(http.StatusOK, mime, out)
}
