// Package preprocessing holds the smoothing and contrast algorithms offered by the
// Preprocessing category.
package preprocessing

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/algorithms/matutil"
)

const Category = "Preprocessing"

type GaussianBlur struct {
	*algorithm.Base
}

func NewGaussianBlur() algorithm.Algorithm {
	return &GaussianBlur{algorithm.NewBase("Gaussian blur", Category,
		algorithm.IntParam("kernel", 1, 31, 2, 5).WithDescription("Kernel size, odd"),
		algorithm.FloatParam("sigma", 0, 10, 0.1, 1).WithDescription("0 derives sigma from the kernel"),
	)}
}

func (a *GaussianBlur) Run(ctx context.Context, img image.Image) (image.Image, error) {
	k, sigma := a.Int("kernel"), a.Float("sigma")
	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		dst := gocv.NewMat()
		gocv.GaussianBlur(src, &dst, image.Pt(k, k), sigma, sigma, gocv.BorderDefault)
		return dst, nil
	})
}

type MedianBlur struct {
	*algorithm.Base
}

func NewMedianBlur() algorithm.Algorithm {
	return &MedianBlur{algorithm.NewBase("Median blur", Category,
		algorithm.IntParam("kernel", 3, 31, 2, 5),
	)}
}

func (a *MedianBlur) Run(ctx context.Context, img image.Image) (image.Image, error) {
	k := a.Int("kernel")
	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		dst := gocv.NewMat()
		gocv.MedianBlur(src, &dst, k)
		return dst, nil
	})
}

// Bilateral smooths flat regions while keeping edges.
type Bilateral struct {
	*algorithm.Base
}

func NewBilateral() algorithm.Algorithm {
	return &Bilateral{algorithm.NewBase("Bilateral filter", Category,
		algorithm.IntParam("diameter", 1, 25, 1, 9),
		algorithm.FloatParam("sigma_color", 1, 200, 1, 75),
		algorithm.FloatParam("sigma_space", 1, 200, 1, 75),
	)}
}

func (a *Bilateral) Run(ctx context.Context, img image.Image) (image.Image, error) {
	d, sc, ss := a.Int("diameter"), a.Float("sigma_color"), a.Float("sigma_space")
	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		dst := gocv.NewMat()
		gocv.BilateralFilter(src, &dst, d, sc, ss)
		return dst, nil
	})
}

// Equalize spreads the gray histogram, globally or per tile with CLAHE.
// Denoise is non-local means denoising. Colour images are denoised per channel.
type Denoise struct {
	*algorithm.Base
}

func NewDenoise() algorithm.Algorithm {
	return &Denoise{algorithm.NewBase("Non-local means", Category,
		algorithm.FloatParam("h", 1, 50, 0.5, 10).WithDescription("Filter strength"),
		algorithm.IntParam("template_window", 3, 15, 2, 7),
		algorithm.IntParam("search_window", 7, 35, 2, 21),
	)}
}

func (a *Denoise) Run(ctx context.Context, img image.Image) (image.Image, error) {
	h, tw, sw := float32(a.Float("h")), a.Int("template_window"), a.Int("search_window")
	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		dst := gocv.NewMat()
		if src.Channels() == 1 {
			gocv.FastNlMeansDenoisingWithParams(src, &dst, h, tw, sw)
		} else {
			gocv.FastNlMeansDenoisingColoredWithParams(src, &dst, h, h, tw, sw)
		}
		return dst, nil
	})
}

type Equalize struct {
	*algorithm.Base
}

func NewEqualize() algorithm.Algorithm {
	return &Equalize{algorithm.NewBase("Histogram equalization", Category,
		algorithm.BoolParam("clahe", false).WithDescription("Contrast limited, tile based"),
		algorithm.FloatParam("clip_limit", 1, 8, 0.5, 2),
		algorithm.IntParam("tile_size", 2, 16, 1, 8),
	)}
}

func (a *Equalize) Run(ctx context.Context, img image.Image) (image.Image, error) {
	useClahe, clip, tile := a.Bool("clahe"), a.Float("clip_limit"), a.Int("tile_size")
	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		gray, err := matutil.Gray(src)
		if err != nil {
			return gray, err
		}
		defer gray.Close()

		dst := gocv.NewMat()
		if useClahe {
			clahe := gocv.NewCLAHEWithParams(clip, image.Pt(tile, tile))
			defer clahe.Close()
			clahe.Apply(gray, &dst)
			return dst, nil
		}
		gocv.EqualizeHist(gray, &dst)
		return dst, nil
	})
}

type Invert struct {
	*algorithm.Base
}

func NewInvert() algorithm.Algorithm {
	return &Invert{algorithm.NewBase("Invert", Category)}
}

func (a *Invert) Run(ctx context.Context, img image.Image) (image.Image, error) {
	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		dst := gocv.NewMat()
		gocv.BitwiseNot(src, &dst)
		return dst, nil
	})
}
