// Package compress re-encodes images as JPEG under a byte budget.
//
// Two policies exist side by side. EXTREME produces a tiny pixelated image
// and always returns something once the input decodes. STANDARD keeps as
// much quality as the budget allows and fails when nothing fits.
package compress

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

// MaxPixels bounds decoded image area so a small file cannot expand into
// gigabytes of pixels.
const MaxPixels = 50_000_000

// Compress decodes raw and re-encodes it under budget.
func Compress(raw []byte, budget models.Budget) (*models.EncodedImage, error) {
	if budget.TargetBytes <= 0 {
		return nil, fmt.Errorf("%w: target bytes must be positive, got %d", utils.ErrUnknownVariant, budget.TargetBytes)
	}
	img, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	switch budget.Variant {
	case models.VariantExtreme:
		return Extreme(img, budget.TargetBytes)
	case models.VariantStandard:
		return Standard(img, len(raw), budget.TargetBytes)
	}
	return nil, fmt.Errorf("%w: %q", utils.ErrUnknownVariant, string(budget.Variant))
}

// Decode decodes raw into an opaque image, compositing any transparency
// onto white.
func Decode(raw []byte) (*image.RGBA, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", utils.ErrDecodeFailure)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrDecodeFailure, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", utils.ErrDecodeFailure, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", utils.ErrInputTooLarge, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrDecodeFailure, err)
	}
	return flatten(img), nil
}

// flatten composites src onto an opaque white canvas at the origin.
func flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// scale resizes src to w x h with the given interpolator.
func scale(src image.Image, w, h int, interp draw.Interpolator) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// encode writes img as a JPEG. image/jpeg refuses sides of 65536px or more.
func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		b := img.Bounds()
		return nil, fmt.Errorf("%w: %dx%d at quality %d: %w", utils.ErrEncodeFailure, b.Dx(), b.Dy(), quality, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty output", utils.ErrEncodeFailure)
	}
	return buf.Bytes(), nil
}

func result(data []byte, img image.Image, quality int, variant models.Variant, target int) *models.EncodedImage {
	b := img.Bounds()
	return &models.EncodedImage{
		Data:        data,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Quality:     quality,
		Variant:     variant,
		TargetBytes: target,
	}
}
