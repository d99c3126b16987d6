package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getcharzp/go-maskkit/blur"
	"github.com/getcharzp/go-maskkit/internal/config"
	"github.com/getcharzp/go-maskkit/internal/logger"
	"github.com/getcharzp/go-maskkit/internal/monitor"
	"github.com/getcharzp/go-maskkit/internal/server"
	"github.com/getcharzp/go-maskkit/internal/store"
	"github.com/getcharzp/go-maskkit/rembg"
	"github.com/getcharzp/go-maskkit/sam"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Log()
	log.Info("starting maskkit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Version: server.VersionInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit},
		Metrics: monitor.New(),
	}

	// SAM
	if cfg.Sam.Enabled {
		engine, err := sam.NewEngine(cfg.SamEngineConfig())
		if err != nil {
			log.Warn("sam engine unavailable, decode disabled", zap.Error(err))
		} else {
			defer engine.Destroy()
			opts.Predictor = engine
			if engine.CanEncode() {
				opts.Encoder = engine
			}
			log.Info("sam engine loaded", zap.Bool("encoder", engine.CanEncode()))
		}
	}
	if opts.Encoder == nil && cfg.Sam.EmbeddingURL != "" {
		opts.Fetcher = sam.NewEmbeddingClient(cfg.Sam.EmbeddingURL, cfg.Rembg.Timeout)
		log.Info("using remote embedding service", zap.String("url", cfg.Sam.EmbeddingURL))
	}

	// 背景移除
	if cfg.Rembg.RemoteURL != "" {
		opts.RemoteRemover = rembg.NewClient(cfg.Rembg.RemoteURL, cfg.Rembg.Timeout)
		log.Info("using remote rembg service", zap.String("url", cfg.Rembg.RemoteURL))
	} else if cfg.Rembg.Enabled {
		engine, err := rembg.NewEngine(cfg.RembgEngineConfig())
		if err != nil {
			log.Warn("rembg engine unavailable, remove-bg disabled", zap.Error(err))
		} else {
			defer engine.Destroy()
			opts.Remover = engine
			log.Info("rembg engine loaded", zap.String("model", cfg.Rembg.ModelPath))
		}
	}

	// 模糊任务池
	if cfg.Blur.Workers > 0 {
		pool := blur.NewPool(cfg.Blur.Workers, cfg.Blur.Queue)
		defer pool.Close()
		opts.Blurrer = blur.NewBlurrer(pool)
	}

	// 初始化Redis
	cache := store.NewEmbeddingCache(&cfg.Redis)
	if cache.Enabled() {
		if err := cache.Ping(ctx); err != nil {
			log.Warn("redis connection failed, cache disabled", zap.Error(err))
			cache.Disable()
		} else {
			log.Info("redis connected successfully", zap.String("addr", cfg.Redis.Addr))
		}
	}
	defer cache.Close()
	opts.Cache = cache

	if cfg.Monitor.Enabled {
		if err := opts.Metrics.Start(ctx, cfg.Monitor.Interval); err != nil {
			log.Warn("process monitor unavailable", zap.Error(err))
		}
	}

	gin.SetMode(cfg.Server.Mode)
	srv := server.New(cfg, opts)
	srv.Start(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
