package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getcharzp/go-maskkit"
	"github.com/getcharzp/go-maskkit/blur"
	"github.com/getcharzp/go-maskkit/rembg"
	"github.com/getcharzp/go-maskkit/sam"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 MASKKIT_SERVER_PORT
const EnvPrefix = "MASKKIT"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Onnx    OnnxConfig    `mapstructure:"onnx"`
	Sam     SamConfig     `mapstructure:"sam"`
	Rembg   RembgConfig   `mapstructure:"rembg"`
	Blur    BlurConfig    `mapstructure:"blur"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Monitor MonitorConfig `mapstructure:"monitor"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type OnnxConfig struct {
	LibraryPath string `mapstructure:"library_path"`
	UseCuda     bool   `mapstructure:"use_cuda"`
	NumThreads  int    `mapstructure:"num_threads"`
}

type SamConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DecodeModel   string `mapstructure:"decode_model"`
	EncodeModel   string `mapstructure:"encode_model"`
	EncoderInput  string `mapstructure:"encoder_input"`
	EncoderOutput string `mapstructure:"encoder_output"`
	EmbeddingURL  string `mapstructure:"embedding_url"` // 没有本地编码器时调用的远程服务
}

type RembgConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	ModelPath string        `mapstructure:"model_path"`
	RemoteURL string        `mapstructure:"remote_url"` // 非空时转发到远程服务，不加载本地模型
	Timeout   time.Duration `mapstructure:"timeout"`
}

type BlurConfig struct {
	Workers   int     `mapstructure:"workers"`
	Queue     int     `mapstructure:"queue"`
	Radius    float64 `mapstructure:"radius"`
	MaxPixels int     `mapstructure:"max_pixels"` // 超过时返回 413，0 不限制
}

type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	JanitorPeriod time.Duration `mapstructure:"janitor_period"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	HoverThrottle time.Duration `mapstructure:"hover_throttle"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize int64 `mapstructure:"max_size"`
}

type MonitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Load 从 YAML 文件加载配置，文件不存在时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default 返回默认配置 (包含环境变量覆盖)
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// 默认值不会解析失败
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("onnx.library_path", maskkit.DefaultLibraryPath())
	v.SetDefault("onnx.use_cuda", false)
	v.SetDefault("onnx.num_threads", 0)

	samDefaults := sam.DefaultConfig()
	v.SetDefault("sam.enabled", true)
	v.SetDefault("sam.decode_model", samDefaults.DecodeModelPath)
	v.SetDefault("sam.encode_model", samDefaults.EncodeModelPath)
	v.SetDefault("sam.encoder_input", samDefaults.EncoderInput)
	v.SetDefault("sam.encoder_output", samDefaults.EncoderOutput)
	v.SetDefault("sam.embedding_url", "")

	v.SetDefault("rembg.enabled", true)
	v.SetDefault("rembg.model_path", rembg.DefaultConfig().ModelPath)
	v.SetDefault("rembg.remote_url", "")
	v.SetDefault("rembg.timeout", 60*time.Second)

	v.SetDefault("blur.workers", 2)
	v.SetDefault("blur.queue", 16)
	v.SetDefault("blur.radius", blur.DefaultRadius)
	v.SetDefault("blur.max_pixels", 2000*1000)

	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("session.janitor_period", time.Minute)
	v.SetDefault("session.max_sessions", 64)
	v.SetDefault("session.hover_throttle", 500*time.Millisecond)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 20*1024*1024)

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", 5*time.Second)
}

// SamEngineConfig 转换为 sam.Config
func (c *Config) SamEngineConfig() sam.Config {
	return sam.Config{
		OnnxRuntimeLibPath: c.Onnx.LibraryPath,
		DecodeModelPath:    c.Sam.DecodeModel,
		EncodeModelPath:    c.Sam.EncodeModel,
		EncoderInput:       c.Sam.EncoderInput,
		EncoderOutput:      c.Sam.EncoderOutput,
		UseCuda:            c.Onnx.UseCuda,
		NumThreads:         c.Onnx.NumThreads,
	}
}

// RembgEngineConfig 转换为 rembg.Config
func (c *Config) RembgEngineConfig() rembg.Config {
	return rembg.Config{
		OnnxRuntimeLibPath: c.Onnx.LibraryPath,
		ModelPath:          c.Rembg.ModelPath,
		UseCuda:            c.Onnx.UseCuda,
		NumThreads:         c.Onnx.NumThreads,
	}
}
