package compress

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/Sriram-PR/img-relay/pkg/models"
)

const (
	extremeShortEdge      = 40
	extremeMaxAspect      = 10 // long edge is capped at extremeShortEdge*extremeMaxAspect
	extremeStartQuality   = 60
	extremeResetQuality   = 50
	extremeQualityStep    = 10
	extremeFloorQuality   = 10
	extremeFloorDimension = 16
	extremeShrinkFactor   = 0.8
)

// Extreme downsamples img to a blocky thumbnail with nearest-neighbour
// sampling and lowers quality, then size, until the JPEG fits target.
// It stops at 16x16 and quality 10 after encoding that attempt, returning
// it even when it is still over target. Only an encoder error fails it.
func Extreme(img image.Image, target int) (*models.EncodedImage, error) {
	w, h := extremeInitialSize(img.Bounds().Dx(), img.Bounds().Dy())
	small := scale(img, w, h, draw.NearestNeighbor)
	quality := extremeStartQuality

	for {
		data, err := encode(small, quality)
		if err != nil {
			return nil, err
		}
		atFloor := w <= extremeFloorDimension && h <= extremeFloorDimension && quality <= extremeFloorQuality
		if len(data) <= target || atFloor {
			return result(data, small, quality, models.VariantExtreme, target), nil
		}

		if quality > extremeFloorQuality {
			quality -= extremeQualityStep
			if quality < extremeFloorQuality {
				quality = extremeFloorQuality
			}
			continue
		}

		// Always resample from the full image so blocks stay crisp.
		w = max(extremeFloorDimension, int(float64(w)*extremeShrinkFactor))
		h = max(extremeFloorDimension, int(float64(h)*extremeShrinkFactor))
		small = scale(img, w, h, draw.NearestNeighbor)
		quality = extremeResetQuality
	}
}

// extremeInitialSize puts the shorter axis at 40px and keeps the aspect ratio.
func extremeInitialSize(srcW, srcH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return extremeShortEdge, extremeShortEdge
	}
	longCap := extremeShortEdge * extremeMaxAspect
	if srcW >= srcH {
		w := int(float64(extremeShortEdge) * float64(srcW) / float64(srcH))
		return min(max(w, extremeShortEdge), longCap), extremeShortEdge
	}
	h := int(float64(extremeShortEdge) * float64(srcH) / float64(srcW))
	return extremeShortEdge, min(max(h, extremeShortEdge), longCap)
}
