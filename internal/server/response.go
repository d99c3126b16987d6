package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/getcharzp/go-maskkit/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// SessionResponse 会话信息
type SessionResponse struct {
	ID       string  `json:"id"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	SamScale float32 `json:"sam_scale"`
	Source   string  `json:"source,omitempty"` // upload, cache, encoder, remote
}

// MaskResponse 解码结果
type MaskResponse struct {
	Mask   string  `json:"mask"` // PNG data URI
	Score  float32 `json:"score"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Area   int     `json:"area"`
	BBox   [4]int  `json:"bbox"` // x1, y1, x2, y2
}

// BlurResponse 模糊结果
type BlurResponse struct {
	Image    string `json:"image"`
	Degraded bool   `json:"degraded"`
}

// DataURIResponse 生成的图片
type DataURIResponse struct {
	Image  string `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var errFileTooLarge = errors.New("file too large")

func fail(c *gin.Context, status int, message string, err error) {
	resp := ErrorResponse{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
		if status >= http.StatusInternalServerError {
			logger.Log().Error(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
		}
	}
	c.AbortWithStatusJSON(status, resp)
}

// readUpload 读取上传的文件，超过 upload.max_size 时返回 errFileTooLarge
func (s *Server) readUpload(c *gin.Context, field string) ([]byte, *multipart.FileHeader, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	limit := s.cfg.Upload.MaxSize
	if limit > 0 && fh.Size > limit {
		return nil, fh, fmt.Errorf("%w: %d > %d bytes", errFileTooLarge, fh.Size, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fh, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fh, err
	}
	return data, fh, nil
}

// uploadFailed 根据读取上传文件的错误返回 400 或 413
func uploadFailed(c *gin.Context, field string, err error) {
	if errors.Is(err, errFileTooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, "文件大小超过限制", err)
		return
	}
	fail(c, http.StatusBadRequest, fmt.Sprintf("请上传 %s 文件", field), err)
}
