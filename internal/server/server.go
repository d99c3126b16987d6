package server

import (
	"context"
	"errors"
	"image"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/getcharzp/go-maskkit/blur"
	"github.com/getcharzp/go-maskkit/internal/config"
	"github.com/getcharzp/go-maskkit/internal/logger"
	"github.com/getcharzp/go-maskkit/internal/monitor"
	"github.com/getcharzp/go-maskkit/internal/store"
	"github.com/getcharzp/go-maskkit/sam"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrEngineUnavailable 对应的模型没有加载
var ErrEngineUnavailable = errors.New("engine unavailable")

// Predictor Mask 解码，由 *sam.Engine 实现
type Predictor interface {
	Predict(in *sam.Inputs) (*sam.Prediction, error)
}

// ImageEncoder 图片特征提取，由 *sam.Engine 实现
type ImageEncoder interface {
	EncodeImage(img image.Image) (*sam.Embedding, *sam.ModelScale, error)
}

// EmbeddingFetcher 远程特征提取，由 *sam.EmbeddingClient 实现
type EmbeddingFetcher interface {
	Fetch(ctx context.Context, filename string, r io.Reader) (*sam.Embedding, error)
}

// Remover 本地背景移除，由 *rembg.Engine 实现
type Remover interface {
	Remove(img image.Image) (*image.NRGBA, error)
}

// RemoteRemover 远程背景移除，由 *rembg.Client 实现
type RemoteRemover interface {
	Remove(ctx context.Context, filename string, r io.Reader) ([]byte, error)
}

// VersionInfo 构建信息
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Options 服务依赖，未提供的引擎对应的接口返回 503
type Options struct {
	Predictor     Predictor
	Encoder       ImageEncoder
	Fetcher       EmbeddingFetcher
	Remover       Remover
	RemoteRemover RemoteRemover
	Blurrer       *blur.Blurrer
	Sessions      *store.Sessions
	Cache         *store.EmbeddingCache
	Metrics       *monitor.Metrics
	Version       VersionInfo
}

// Server HTTP 服务
type Server struct {
	cfg      *config.Config
	opts     Options
	upgrader websocket.Upgrader
}

// New 创建服务，缺省的 Sessions/Cache/Metrics/Blurrer 按配置补齐
func New(cfg *config.Config, opts Options) *Server {
	if opts.Sessions == nil {
		opts.Sessions = store.NewSessions(cfg.Session.IdleTimeout, cfg.Session.MaxSessions)
	}
	if opts.Cache == nil {
		opts.Cache = store.NewEmbeddingCache(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = monitor.New()
	}
	if opts.Blurrer == nil {
		opts.Blurrer = blur.NewBlurrer(nil)
	}
	return &Server{
		cfg:  cfg,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Router 注册全部路由
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger())
	r.Use(s.metricsMiddleware())
	r.Use(CORS())

	r.GET("/health", s.health)
	r.GET("/version", s.version)
	r.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))

	// 单接口服务 (remove-bg / sam 特征)
	r.POST("/", s.removeBgCompat)
	r.POST("/sam", s.samCompat)

	api := r.Group("/api/v1")
	{
		api.POST("/sessions", s.createSession)
		api.GET("/sessions/:id", s.getSession)
		api.DELETE("/sessions/:id", s.deleteSession)
		api.POST("/sessions/:id/decode", s.decode)

		api.POST("/remove-bg", s.removeBg)
		api.POST("/blur", s.blur)
		api.POST("/masks", s.renderMask)
		api.POST("/erase", s.erase)
	}
	r.GET("/ws/sessions/:id", s.hover)

	return r
}

// Start 启动会话回收
func (s *Server) Start(ctx context.Context) {
	s.opts.Sessions.StartJanitor(ctx, s.cfg.Session.JanitorPeriod, func(evicted, remaining int) {
		s.opts.Metrics.Sessions.Set(float64(remaining))
		if evicted > 0 {
			logger.Log().Info("idle sessions evicted", zap.Int("evicted", evicted), zap.Int("remaining", remaining))
		}
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  s.opts.Version.Version,
		"sam":      s.opts.Predictor != nil,
		"encoder":  s.opts.Encoder != nil || s.opts.Fetcher != nil,
		"rembg":    s.opts.Remover != nil || s.opts.RemoteRemover != nil,
		"redis":    s.opts.Cache.Enabled(),
		"sessions": s.opts.Sessions.Len(),
	})
}

func (s *Server) version(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Version)
}

// Logger Zap日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Log().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("cost", time.Since(start)),
		)
	}
}

// CORS 允许浏览器端直接调用
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.opts.Metrics.Requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
