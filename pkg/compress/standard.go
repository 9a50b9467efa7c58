package compress

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

const (
	standardPassQuality  = 85
	standardMinQuality   = 10
	standardMaxQuality   = 85
	standardMaxDimension = 1200
	standardShrinkQual   = 50
)

// standardShrinkFactors are tried in order when no quality fits at full size.
var standardShrinkFactors = []float64{0.8, 0.6, 0.5, 0.4, 0.3}

// Standard re-encodes img under target, preferring the highest quality.
// rawSize is the byte length of the original upload.
func Standard(img image.Image, rawSize, target int) (*models.EncodedImage, error) {
	if rawSize <= target {
		// A small but dense source can grow on re-encode, and a tiny file
		// can hold a side too long for JPEG. Both fall through to the
		// downscaled search.
		if data, err := encode(img, standardPassQuality); err == nil && len(data) <= target {
			return result(data, img, standardPassQuality, models.VariantStandard, target), nil
		}
	}

	base := standardPrepare(img)

	data, quality, ok, err := searchQuality(base, target)
	if err != nil {
		return nil, err
	}
	if ok {
		return result(data, base, quality, models.VariantStandard, target), nil
	}

	bw, bh := base.Bounds().Dx(), base.Bounds().Dy()
	for _, f := range standardShrinkFactors {
		shrunk := scale(base, int(float64(bw)*f), int(float64(bh)*f), draw.CatmullRom)
		data, err := encode(shrunk, standardShrinkQual)
		if err != nil {
			return nil, err
		}
		if len(data) <= target {
			return result(data, shrunk, standardShrinkQual, models.VariantStandard, target), nil
		}
	}

	return nil, fmt.Errorf("%w: %dx%d source does not fit %d bytes", utils.ErrCompressionOverBudget, bw, bh, target)
}

// standardPrepare downsamples so the long edge is at most 1200px.
func standardPrepare(img image.Image) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	long := max(w, h)
	if long <= standardMaxDimension {
		return img
	}
	ratio := float64(standardMaxDimension) / float64(long)
	nw, nh := int(float64(w)*ratio+0.5), int(float64(h)*ratio+0.5)
	if w >= h {
		nw = standardMaxDimension
	} else {
		nh = standardMaxDimension
	}
	return scale(img, nw, nh, draw.CatmullRom)
}

// searchQuality binary-searches [10, 85] for the highest quality whose
// encoding fits target. When the answer q is below 85, q+1 was encoded
// and did not fit.
func searchQuality(img image.Image, target int) ([]byte, int, bool, error) {
	lo, hi := standardMinQuality, standardMaxQuality
	best := -1
	var bestData []byte
	for lo <= hi {
		mid := (lo + hi) / 2
		data, err := encode(img, mid)
		if err != nil {
			return nil, 0, false, err
		}
		if len(data) <= target {
			best, bestData = mid, data
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best < 0 {
		return nil, 0, false, nil
	}
	return bestData, best, true, nil
}
