package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/getcharzp/go-maskkit"
	"github.com/getcharzp/go-maskkit/blur"
	"github.com/getcharzp/go-maskkit/internal/config"
	"github.com/getcharzp/go-maskkit/internal/logger"
	"github.com/getcharzp/go-maskkit/mask"
	"github.com/getcharzp/go-maskkit/rembg"
	"github.com/getcharzp/go-maskkit/sam"
	"go.uber.org/zap"
)

const usage = `usage: maskkit <command> [flags]

commands:
  embed     计算图片特征并保存为 .npy
  decode    根据点击/框选生成 Mask
  removebg  移除背景
  blur      模糊图片
  mask      根据图形生成 Mask
  erase     使用 Mask 擦除图片
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := logger.InitDevelopment(); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "embed":
		err = runEmbed(args)
	case "decode":
		err = runDecode(args)
	case "removebg":
		err = runRemoveBg(args)
	case "blur":
		err = runBlur(args)
	case "mask":
		err = runMask(args)
	case "erase":
		err = runErase(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Log().Error(os.Args[1]+" failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func runEmbed(args []string) error {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "配置文件路径")
	in := fs.String("image", "", "输入图片")
	out := fs.String("out", "embedding.npy", "输出 .npy 文件")
	remote := fs.String("url", "", "远程特征服务地址，为空时使用本地编码模型")
	_ = fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("缺少 -image")
	}

	var emb *sam.Embedding
	start := time.Now()
	if *remote != "" {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		emb, err = sam.NewEmbeddingClient(*remote, time.Minute).Fetch(context.Background(), filepath.Base(*in), f)
		if err != nil {
			return err
		}
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		engine, err := sam.NewEngine(cfg.SamEngineConfig())
		if err != nil {
			return err
		}
		defer engine.Destroy()
		img, err := maskkit.LoadImage(*in)
		if err != nil {
			return err
		}
		if emb, _, err = engine.EncodeImage(img); err != nil {
			return err
		}
	}

	if err := sam.SaveEmbedding(*out, emb); err != nil {
		return err
	}
	logger.Log().Info("embedding saved",
		zap.String("out", *out),
		zap.Int64s("shape", emb.Shape),
		zap.Duration("cost", time.Since(start)))
	return nil
}

// parseClicks 解析 "x,y,label;x,y,label"，label 缺省为 1
func parseClicks(s string) ([]sam.Click, error) {
	var clicks []sam.Click
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("点击格式错误: %q", part)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 32)
		if err != nil {
			return nil, fmt.Errorf("点击格式错误: %q: %w", part, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 32)
		if err != nil {
			return nil, fmt.Errorf("点击格式错误: %q: %w", part, err)
		}
		label := sam.LabelForeground
		if len(fields) == 3 {
			l, err := strconv.Atoi(strings.TrimSpace(fields[2]))
			if err != nil {
				return nil, fmt.Errorf("点击格式错误: %q: %w", part, err)
			}
			label = sam.Label(l)
		}
		clicks = append(clicks, sam.Click{X: float32(x), Y: float32(y), Label: label})
	}
	return clicks, nil
}

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "配置文件路径")
	in := fs.String("image", "", "输入图片")
	embPath := fs.String("embedding", "", "预计算的 .npy 特征，为空时使用本地编码模型")
	clickStr := fs.String("clicks", "", `点击 "x,y,label;..."，label: 0 背景 1 前景 2 框选左上 3 框选右下`)
	out := fs.String("out", "mask.png", "输出 Mask")
	overlay := fs.String("overlay", "", "(可选) 输出叠加预览图")
	_ = fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("缺少 -image")
	}
	clicks, err := parseClicks(*clickStr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	samCfg := cfg.SamEngineConfig()
	if *embPath != "" {
		samCfg.EncodeModelPath = ""
	}
	engine, err := sam.NewEngine(samCfg)
	if err != nil {
		return err
	}
	defer engine.Destroy()

	img, err := maskkit.LoadImage(*in)
	if err != nil {
		return err
	}
	b := img.Bounds()
	scale, err := sam.NewModelScale(b.Dx(), b.Dy())
	if err != nil {
		return err
	}
	var emb *sam.Embedding
	if *embPath != "" {
		emb, err = sam.LoadEmbedding(*embPath)
	} else {
		emb, _, err = engine.EncodeImage(img)
	}
	if err != nil {
		return err
	}

	inputs, err := sam.EncodeInputs(clicks, emb, scale, nil)
	if err != nil {
		return err
	}
	pred, err := engine.Predict(inputs)
	if err != nil {
		return err
	}
	maskImg := pred.Image()
	if err := writeImage(*out, maskImg); err != nil {
		return err
	}
	logger.Log().Info("mask saved",
		zap.String("out", *out),
		zap.Float32("score", pred.Score),
		zap.Int("area", sam.MaskArea(pred.Mask)))

	if *overlay != "" {
		drawer, err := maskkit.NewTextDrawer("")
		if err != nil {
			return err
		}
		defer drawer.Close()
		if err := writeImage(*overlay, sam.DrawOverlay(img, maskImg, clicks, pred.Score, drawer)); err != nil {
			return err
		}
	}
	return nil
}

func runRemoveBg(args []string) error {
	fs := flag.NewFlagSet("removebg", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "配置文件路径")
	in := fs.String("image", "", "输入图片 (png/jpg/jpeg/webp)")
	out := fs.String("out", "cutout.png", "输出图片 (.png 或 .webp)")
	remote := fs.String("url", "", "远程背景移除服务地址，为空时使用本地模型")
	_ = fs.Parse(args)
	if !rembg.AllowedExt(*in) {
		return rembg.ErrInvalidFormat
	}

	start := time.Now()
	if *remote != "" {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		data, err := rembg.NewClient(*remote, time.Minute).Remove(context.Background(), filepath.Base(*in), f)
		if err != nil {
			return err
		}
		return os.WriteFile(*out, data, 0o644)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	engine, err := rembg.NewEngine(cfg.RembgEngineConfig())
	if err != nil {
		return err
	}
	defer engine.Destroy()

	img, err := maskkit.LoadImage(*in)
	if err != nil {
		return err
	}
	cutout, err := engine.Remove(img)
	if err != nil {
		return err
	}
	if err := writeImage(*out, cutout); err != nil {
		return err
	}
	logger.Log().Info("background removed", zap.String("out", *out), zap.Duration("cost", time.Since(start)))
	return nil
}

func runBlur(args []string) error {
	fs := flag.NewFlagSet("blur", flag.ExitOnError)
	radius := fs.Float64("radius", blur.DefaultRadius, "模糊半径")
	out := fs.String("out", "", "输出目录，为空时与输入相同")
	_ = fs.Parse(args)
	inputs := fs.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("缺少输入图片")
	}

	images := make([][]byte, len(inputs))
	for i, p := range inputs {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		images[i] = b
	}

	pool := blur.NewPool(0, len(inputs))
	defer pool.Close()
	outs, errs := blur.NewBlurrer(pool).BlurAll(context.Background(), images, *radius)
	for i, p := range inputs {
		if errs[i] != nil {
			logger.Log().Error("blur failed", zap.String("image", p), zap.Error(errs[i]))
			continue
		}
		data, _, err := maskkit.DecodeDataURI(outs[i].DataURI)
		if err != nil {
			return err
		}
		dir := *out
		if dir == "" {
			dir = filepath.Dir(p)
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)) + "_blur.png"
		dst := filepath.Join(dir, name)
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
		logger.Log().Info("blurred", zap.String("out", dst), zap.Bool("degraded", outs[i].Degraded))
	}
	return nil
}

func runMask(args []string) error {
	fs := flag.NewFlagSet("mask", flag.ExitOnError)
	width := fs.Int("width", 0, "原图宽")
	height := fs.Int("height", 0, "原图高")
	shapesPath := fs.String("shapes", "", `图形 JSON 文件: [{"type":"box","points":[...]}]`)
	cutout := fs.Bool("cutout", false, "图形内部透明")
	out := fs.String("out", "mask.png", "输出 Mask")
	_ = fs.Parse(args)

	raw, err := os.ReadFile(*shapesPath)
	if err != nil {
		return err
	}
	var specs []mask.ShapeSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return fmt.Errorf("解析图形失败: %w", err)
	}
	shapes, err := mask.Shapes(specs)
	if err != nil {
		return err
	}
	img, err := mask.Render(*width, *height, shapes, mask.Options{Cutout: *cutout})
	if err != nil {
		return err
	}
	if err := writeImage(*out, img); err != nil {
		return err
	}
	logger.Log().Info("mask rendered", zap.String("out", *out), zap.Int("shapes", len(shapes)))
	return nil
}

func runErase(args []string) error {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	in := fs.String("image", "", "输入图片")
	maskPath := fs.String("mask", "", "Mask 图片，不透明部分被擦除")
	out := fs.String("out", "erased.png", "输出图片")
	_ = fs.Parse(args)

	img, err := maskkit.LoadImage(*in)
	if err != nil {
		return err
	}
	m, err := maskkit.LoadImage(*maskPath)
	if err != nil {
		return err
	}
	if err := writeImage(*out, mask.Erase(img, m)); err != nil {
		return err
	}
	logger.Log().Info("erased", zap.String("out", *out))
	return nil
}

// writeImage 按扩展名写出 PNG 或 WebP
func writeImage(path string, img image.Image) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	data, _, err := maskkit.Encode(img, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
