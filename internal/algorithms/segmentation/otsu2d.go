package segmentation

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/algorithms/matutil"
)

// Otsu2D thresholds on the joint histogram of each pixel and its neighbourhood mean,
// which is more robust to noise than the plain global threshold.
type Otsu2D struct {
	*algorithm.Base
}

func NewOtsu2D() algorithm.Algorithm {
	return &Otsu2D{algorithm.NewBase("Otsu 2D", Category,
		algorithm.IntParam("window_size", 3, 21, 2, 7).WithDescription("Neighbourhood size, odd"),
		algorithm.IntParam("histogram_bins", 16, 256, 16, 64),
		algorithm.EnumParam("neighbourhood", []string{"mean", "median", "gaussian"}, "mean"),
		algorithm.BoolParam("invert", false),
	)}
}

func (a *Otsu2D) Run(ctx context.Context, img image.Image) (image.Image, error) {
	window, bins := a.Int("window_size"), a.Int("histogram_bins")
	metric, invert := a.Choice("neighbourhood"), a.Bool("invert")

	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		gray, err := matutil.Gray(src)
		if err != nil {
			return gray, err
		}
		defer gray.Close()

		neighbourhood := gocv.NewMat()
		defer neighbourhood.Close()
		switch metric {
		case "median":
			gocv.MedianBlur(gray, &neighbourhood, window)
		case "gaussian":
			gocv.GaussianBlur(gray, &neighbourhood, image.Pt(window, window), 0, 0, gocv.BorderDefault)
		default:
			gocv.Blur(gray, &neighbourhood, image.Pt(window, window))
		}

		pixels, err := gray.DataPtrUint8()
		if err != nil {
			return gocv.NewMat(), errors.Wrap(err, "read pixels")
		}
		means, err := neighbourhood.DataPtrUint8()
		if err != nil {
			return gocv.NewMat(), errors.Wrap(err, "read neighbourhood")
		}

		hist := make([][]float64, bins)
		for i := range hist {
			hist[i] = make([]float64, bins)
		}
		for k, v := range pixels {
			hist[binOf(v, bins)][binOf(means[k], bins)]++
		}
		if err := ctx.Err(); err != nil {
			return gocv.NewMat(), err
		}

		s, t := otsu2DLevels(hist)
		out := make([]byte, len(pixels))
		for k, v := range pixels {
			fg := binOf(v, bins) > s && binOf(means[k], bins) > t
			if fg != invert {
				out[k] = 255
			}
		}

		dst, err := gocv.NewMatFromBytes(gray.Rows(), gray.Cols(), gocv.MatTypeCV8UC1, out)
		return dst, errors.Wrap(err, "build result")
	})
}
