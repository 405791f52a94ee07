// Package segmentation separates foreground from background with threshold based
// algorithms. Every result is a 0/255 single-channel image.
package segmentation

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/algorithms/matutil"
)

const Category = "Segmentation"

func binaryType(invert bool) gocv.ThresholdType {
	if invert {
		return gocv.ThresholdBinaryInv
	}
	return gocv.ThresholdBinary
}

// Otsu picks the global threshold that minimises intra-class variance.
type Otsu struct {
	*algorithm.Base
}

func NewOtsu() algorithm.Algorithm {
	return &Otsu{algorithm.NewBase("Otsu threshold", Category,
		algorithm.BoolParam("invert", false),
	)}
}

func (a *Otsu) Run(ctx context.Context, img image.Image) (image.Image, error) {
	typ := binaryType(a.Bool("invert")) | gocv.ThresholdOtsu
	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		gray, err := matutil.Gray(src)
		if err != nil {
			return gray, err
		}
		defer gray.Close()

		dst := gocv.NewMat()
		gocv.Threshold(gray, &dst, 0, 255, typ)
		return dst, nil
	})
}

type Adaptive struct {
	*algorithm.Base
}

func NewAdaptive() algorithm.Algorithm {
	return &Adaptive{algorithm.NewBase("Adaptive threshold", Category,
		algorithm.EnumParam("method", []string{"mean", "gaussian"}, "gaussian"),
		algorithm.IntParam("block_size", 3, 99, 2, 11).WithDescription("Neighbourhood size, odd"),
		algorithm.FloatParam("c", -50, 50, 0.5, 2).WithDescription("Subtracted from the local mean"),
		algorithm.BoolParam("invert", false),
	)}
}

func (a *Adaptive) Run(ctx context.Context, img image.Image) (image.Image, error) {
	method := gocv.AdaptiveThresholdGaussian
	if a.Choice("method") == "mean" {
		method = gocv.AdaptiveThresholdMean
	}
	block, c, typ := a.Int("block_size"), float32(a.Float("c")), binaryType(a.Bool("invert"))

	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		gray, err := matutil.Gray(src)
		if err != nil {
			return gray, err
		}
		defer gray.Close()

		dst := gocv.NewMat()
		gocv.AdaptiveThreshold(gray, &dst, 255, method, typ, block, c)
		return dst, nil
	})
}

type Fixed struct {
	*algorithm.Base
}

func NewFixed() algorithm.Algorithm {
	return &Fixed{algorithm.NewBase("Fixed threshold", Category,
		algorithm.IntParam("threshold", 0, 255, 1, 127),
		algorithm.BoolParam("invert", false),
	)}
}

func (a *Fixed) Run(ctx context.Context, img image.Image) (image.Image, error) {
	thresh, typ := float32(a.Int("threshold")), binaryType(a.Bool("invert"))
	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		gray, err := matutil.Gray(src)
		if err != nil {
			return gray, err
		}
		defer gray.Close()

		dst := gocv.NewMat()
		gocv.Threshold(gray, &dst, thresh, 255, typ)
		return dst, nil
	})
}
