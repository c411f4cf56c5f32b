// Package imaging holds the post-processing applied to provider output.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	_ "golang.org/x/image/webp"
)

// WatermarkBand is the strip removed from the bottom of every xAI image.
const WatermarkBand = 20

const jpegQuality = 92

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

var ErrTooSmall = errors.New("image is not taller than the crop band")

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CropBottom drops the last rows of an encoded image and returns
// the result re-encoded as JPEG.
func CropBottom(data []byte, pixels int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dy() <= pixels {
		return nil, fmt.Errorf("%w: height %d, band %d", ErrTooSmall, b.Dy(), pixels)
	}

	rect := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y-pixels)
	var cropped image.Image
	if s, ok := img.(subImager); ok {
		cropped = s.SubImage(rect)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				rgba.Set(x-rect.Min.X, y-rect.Min.Y, img.At(x, y))
			}
		}
		cropped = rgba
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Dimensions decodes only the header of an encoded image.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// ToPNG re-encodes data as PNG. PNG input is returned unchanged.
func ToPNG(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, pngMagic) {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
