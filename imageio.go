package maskkit

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/vincent-petithory/dataurl"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"
)

const (
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)

// LoadImage 读取图片文件，支持 png/jpeg/webp/avif，并按 EXIF 方向自动旋转
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("打开图片失败: %w", err)
	}
	return img, nil
}

// DecodeImage 从字节流解码图片
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}
	return img, nil
}

// EncodePNG 将图片编码为 PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("PNG 编码失败: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeWebP 将图片编码为无损 WebP，保留透明通道
func EncodeWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true, Exact: true}); err != nil {
		return nil, fmt.Errorf("WebP 编码失败: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode 按格式名编码，format 为 png 或 webp
func Encode(img image.Image, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", "png":
		b, err := EncodePNG(img)
		return b, MimePNG, err
	case "webp":
		b, err := EncodeWebP(img)
		return b, MimeWebP, err
	default:
		return nil, "", fmt.Errorf("不支持的输出格式: %s", format)
	}
}

// PNGDataURI 将图片编码为 data:image/png;base64,... 形式
func PNGDataURI(img image.Image) (string, error) {
	b, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return dataurl.New(b, MimePNG).String(), nil
}

// DecodeDataURI 解析 data URI，返回原始数据和 MIME 类型
func DecodeDataURI(s string) ([]byte, string, error) {
	du, err := dataurl.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("解析 data URI 失败: %w", err)
	}
	return du.Data, du.ContentType(), nil
}
