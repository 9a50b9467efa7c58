package compress

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

// --- fixtures ---

// photo builds a gradient with deterministic noise so JPEG sizes behave
// like a photograph rather than a flat fill.
func photo(w, h int, noise int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			jitter := 0
			if noise > 0 {
				jitter = rng.Intn(2*noise+1) - noise
			}
			i := img.PixOffset(x, y)
			img.Pix[i+0] = clamp(x*255/w + jitter)
			img.Pix[i+1] = clamp(y*255/h + jitter)
			img.Pix[i+2] = clamp((x+y)*255/(w+h) - jitter)
			img.Pix[i+3] = 0xff
		}
	}
	return img
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func jpegBytes(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeOK(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	data, err := encode(img, quality)
	require.NoError(t, err)
	return data
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err, "output must be a valid JPEG")
	return img
}

func assertExtremeResult(t *testing.T, res *models.EncodedImage) {
	t.Helper()
	require.NotNil(t, res)
	assert.Equal(t, models.VariantExtreme, res.Variant)
	atFloor := res.Width <= extremeFloorDimension && res.Height <= extremeFloorDimension && res.Quality == extremeFloorQuality
	assert.True(t, res.Size() <= res.TargetBytes || atFloor,
		"size %d over target %d without reaching floor (%dx%d q%d)", res.Size(), res.TargetBytes, res.Width, res.Height, res.Quality)

	out := decodeJPEG(t, res.Data)
	assert.Equal(t, res.Width, out.Bounds().Dx())
	assert.Equal(t, res.Height, out.Bounds().Dy())
}

// --- Decode ---

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, utils.ErrDecodeFailure)

	_, err = Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, utils.ErrDecodeFailure)

	// Valid header, truncated body.
	raw := jpegBytes(t, photo(64, 64, 10), 90)
	_, err = Decode(raw[:len(raw)/3])
	assert.ErrorIs(t, err, utils.ErrDecodeFailure)
}

func TestDecode_FlattensTransparencyOntoWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255}) // one opaque red pixel, rest transparent

	img, err := Decode(pngBytes(t, src))
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(4, 4))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(0, 0))
}

func TestDecode_NonZeroOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 30, 20))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	img, err := Decode(pngBytes(t, src))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())
}

// --- Compress dispatch ---

func TestCompress_UnknownVariant(t *testing.T) {
	raw := jpegBytes(t, photo(32, 32, 0), 80)
	_, err := Compress(raw, models.Budget{Variant: "medium", TargetBytes: 1000})
	assert.ErrorIs(t, err, utils.ErrUnknownVariant)

	_, err = Compress(raw, models.Budget{Variant: models.VariantExtreme, TargetBytes: 0})
	assert.ErrorIs(t, err, utils.ErrUnknownVariant)
}

func TestCompress_DecodeFailureBothVariants(t *testing.T) {
	for _, b := range []models.Budget{models.ExtremeBudget(), models.StandardBudget()} {
		_, err := Compress([]byte("<html>nope</html>"), b)
		assert.ErrorIs(t, err, utils.ErrDecodeFailure, "variant %s", b.Variant)
	}
}

// --- EXTREME ---

func TestExtremeInitialSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"square", 500, 500, 40, 40},
		{"landscape 2:1", 1000, 500, 80, 40},
		{"portrait 1:3", 300, 900, 40, 120},
		{"tiny upsampled", 5, 5, 40, 40},
		{"panorama capped", 10000, 10, 400, 40},
		{"needle capped", 3, 3000, 40, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := extremeInitialSize(tt.w, tt.h)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestExtreme_AlwaysProducesOutput(t *testing.T) {
	noisy := photo(800, 600, 120)
	transparent := image.NewNRGBA(image.Rect(0, 0, 120, 90))
	for i := 3; i < len(transparent.Pix); i += 4 {
		transparent.Pix[i] = uint8(i % 256)
	}
	paletted := image.NewPaletted(image.Rect(0, 0, 64, 48), palette.Plan9)
	for i := range paletted.Pix {
		paletted.Pix[i] = uint8(i * 7)
	}
	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, paletted, nil))

	inputs := map[string][]byte{
		"noise jpeg":      jpegBytes(t, noisy, 95),
		"tiny png":        pngBytes(t, photo(5, 5, 0)),
		"tall jpeg":       jpegBytes(t, photo(30, 600, 20), 90),
		"transparent png": pngBytes(t, transparent),
		"paletted gif":    gifBuf.Bytes(),
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			res, err := Compress(raw, models.ExtremeBudget())
			require.NoError(t, err)
			assertExtremeResult(t, res)
			assert.LessOrEqual(t, res.Size(), models.ExtremeTargetBytes)
		})
	}
}

func TestExtreme_StopsAtFloorWhenTargetUnreachable(t *testing.T) {
	img := photo(400, 200, 60)

	res, err := Extreme(img, 1)
	require.NoError(t, err)

	assertExtremeResult(t, res)
	assert.Equal(t, extremeFloorDimension, res.Width)
	assert.Equal(t, extremeFloorDimension, res.Height)
	assert.Equal(t, extremeFloorQuality, res.Quality)
	assert.False(t, res.WithinBudget())
}

func TestExtreme_FirstAttemptFitsGenerousTarget(t *testing.T) {
	img := photo(1000, 500, 0)

	res, err := Extreme(img, 1<<20)
	require.NoError(t, err)

	assert.Equal(t, 80, res.Width)
	assert.Equal(t, 40, res.Height)
	assert.Equal(t, extremeStartQuality, res.Quality)
	assert.True(t, res.WithinBudget())
}

func TestExtreme_OutputIsBlocky(t *testing.T) {
	// A high-contrast checkerboard keeps hard edges under nearest-neighbour
	// sampling, so every output pixel should be close to black or white.
	src := image.NewGray(image.Rect(0, 0, 400, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			if (x/100+y/100)%2 == 0 {
				src.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	res, err := Extreme(flatten(src), 1<<20)
	require.NoError(t, err)
	require.Equal(t, 40, res.Width)

	out := decodeJPEG(t, res.Data)
	r, _, _, _ := out.At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(200), "top-left block should stay white")
	r, _, _, _ = out.At(35, 5).RGBA()
	assert.Less(t, r>>8, uint32(55), "fourth block should stay black")
}

func TestEncode_RejectsOversizedSide(t *testing.T) {
	_, err := encode(image.NewGray(image.Rect(0, 0, 70000, 1)), 85)
	assert.ErrorIs(t, err, utils.ErrEncodeFailure)
}

// A few hundred bytes of PNG can describe a strip longer than any JPEG
// side. Both policies must downscale it rather than return empty output.
func TestCompress_SideBeyondJPEGLimit(t *testing.T) {
	inputs := map[string]image.Rectangle{
		"wide": image.Rect(0, 0, 70000, 1),
		"tall": image.Rect(0, 0, 2, 70000),
	}
	for name, rect := range inputs {
		t.Run(name, func(t *testing.T) {
			src := image.NewGray(rect)
			for i := range src.Pix {
				src.Pix[i] = uint8(i / 100)
			}
			raw := pngBytes(t, src)
			require.Less(t, len(raw), models.StandardTargetBytes, "fixture must take the pass-through path")

			std, err := Compress(raw, models.StandardBudget())
			require.NoError(t, err)
			assert.NotEmpty(t, std.Data)
			assert.Equal(t, standardMaxDimension, max(std.Width, std.Height))
			assert.True(t, std.WithinBudget())
			out := decodeJPEG(t, std.Data)
			assert.Equal(t, std.Width, out.Bounds().Dx())
			assert.Equal(t, std.Height, out.Bounds().Dy())

			ext, err := Compress(raw, models.Budget{Variant: models.VariantExtreme, TargetBytes: 1 << 20})
			require.NoError(t, err)
			assertExtremeResult(t, ext)
			assert.NotEmpty(t, ext.Data)
			assert.Equal(t, extremeShortEdge*extremeMaxAspect, max(ext.Width, ext.Height))
			decodeJPEG(t, ext.Data)
		})
	}
}

// --- STANDARD ---

func TestStandard_SmallInputSingleReencode(t *testing.T) {
	raw := jpegBytes(t, photo(64, 64, 4), 90)
	require.Less(t, len(raw), models.StandardTargetBytes)

	res, err := Compress(raw, models.StandardBudget())
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	single := encodeOK(t, decoded, standardPassQuality)

	assert.Equal(t, standardPassQuality, res.Quality)
	assert.Equal(t, 64, res.Width)
	assert.LessOrEqual(t, res.Size(), len(single))
	assert.True(t, res.WithinBudget())
}

func TestStandard_SmallInputThatGrowsFallsBackToSearch(t *testing.T) {
	// Re-encoding a heavily quantised noisy JPEG at q85 inflates it.
	raw := jpegBytes(t, photo(300, 300, 100), 10)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	target := len(raw) + 1
	require.Greater(t, len(encodeOK(t, decoded, standardPassQuality)), target, "fixture must grow on re-encode")

	res, err := Standard(decoded, len(raw), target)
	require.NoError(t, err)
	assert.True(t, res.WithinBudget())
	assert.Less(t, res.Quality, standardPassQuality)
}

func TestStandard_LargePhotoFitsBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("large fixture")
	}
	raw := jpegBytes(t, photo(3000, 2000, 12), 100)
	require.Greater(t, len(raw), models.StandardTargetBytes)

	res, err := Compress(raw, models.StandardBudget())
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Size(), models.StandardTargetBytes)
	assert.LessOrEqual(t, max(res.Width, res.Height), standardMaxDimension)
	assert.GreaterOrEqual(t, res.Quality, standardMinQuality)
	assert.LessOrEqual(t, res.Quality, standardMaxQuality)

	out := decodeJPEG(t, res.Data)
	assert.Equal(t, res.Width, out.Bounds().Dx())
}

func TestStandard_PicksHighestFittingQuality(t *testing.T) {
	raw := jpegBytes(t, photo(1600, 1000, 40), 100)
	decoded, err := Decode(raw)
	require.NoError(t, err)

	base := standardPrepare(decoded)
	require.Equal(t, 1200, base.Bounds().Dx())
	require.Equal(t, 750, base.Bounds().Dy())

	lowSize := len(encodeOK(t, base, standardMinQuality))
	highSize := len(encodeOK(t, base, standardMaxQuality))
	target := (lowSize + highSize) / 2
	require.Less(t, lowSize, target)
	require.Greater(t, highSize, target)
	require.Greater(t, len(raw), target)

	res, err := Standard(decoded, len(raw), target)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Size(), target)
	assert.Equal(t, 1200, res.Width)
	assert.Equal(t, 750, res.Height)
	require.Less(t, res.Quality, standardMaxQuality)
	assert.Greater(t, len(encodeOK(t, base, res.Quality+1)), target, "next quality up must not fit")
}

func TestStandard_ShrinksWhenNoQualityFits(t *testing.T) {
	decoded := photo(1000, 1000, 80)
	base := standardPrepare(decoded)
	target := len(encodeOK(t, base, standardMinQuality)) - 1

	smallest := scale(base, 300, 300, draw.CatmullRom)
	require.Less(t, len(encodeOK(t, smallest, standardShrinkQual)), target, "fixture must fit at the last shrink factor")

	res, err := Standard(decoded, 1<<30, target)
	require.NoError(t, err)
	assert.Less(t, res.Width, 1000)
	assert.Equal(t, res.Width, res.Height)
	assert.Equal(t, standardShrinkQual, res.Quality)
	assert.LessOrEqual(t, res.Size(), target)
}

func TestStandard_OverBudget(t *testing.T) {
	raw := jpegBytes(t, photo(800, 800, 100), 95)

	_, err := Compress(raw, models.Budget{Variant: models.VariantStandard, TargetBytes: 200})
	assert.ErrorIs(t, err, utils.ErrCompressionOverBudget)
}

func TestStandardPrepare(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"already small", 800, 600, 800, 600},
		{"exactly at cap", 1200, 900, 1200, 900},
		{"landscape", 2400, 1200, 1200, 600},
		{"portrait", 1000, 3000, 400, 1200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := standardPrepare(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)))
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}
