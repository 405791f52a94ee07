// Package graphfiltering cleans up binary masks before or after graph detection.
package graphfiltering

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/algorithms/matutil"
)

const Category = "Graph filtering"

// SmallComponents erases 8-connected foreground components below a minimum area.
type SmallComponents struct {
	*algorithm.Base
}

func NewSmallComponents() algorithm.Algorithm {
	return &SmallComponents{algorithm.NewBase("Remove small components", Category,
		algorithm.IntParam("min_area", 1, 100000, 1, 50).WithDescription("Pixels"),
	)}
}

func (a *SmallComponents) Run(ctx context.Context, img image.Image) (image.Image, error) {
	minArea := a.Int("min_area")
	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		bin, err := matutil.Binary(src)
		if err != nil {
			return bin, err
		}
		defer bin.Close()

		labels := gocv.NewMat()
		defer labels.Close()
		n := gocv.ConnectedComponents(bin, &labels)

		rows, cols := labels.Rows(), labels.Cols()
		area := make([]int, n)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				area[labels.GetIntAt(y, x)]++
			}
		}

		dst := gocv.Zeros(rows, cols, gocv.MatTypeCV8UC1)
		for y := 0; y < rows; y++ {
			if err := ctx.Err(); err != nil {
				dst.Close()
				return gocv.NewMat(), err
			}
			for x := 0; x < cols; x++ {
				if l := labels.GetIntAt(y, x); l > 0 && area[l] >= minArea {
					dst.SetUCharAt(y, x, 255)
				}
			}
		}
		return dst, nil
	})
}

var (
	operations = []string{"open", "close", "erode", "dilate"}
	shapes     = []string{"rect", "ellipse", "cross"}
)

// Morphology applies one morphological operation a number of times.
type Morphology struct {
	*algorithm.Base
}

func NewMorphology() algorithm.Algorithm {
	return &Morphology{algorithm.NewBase("Morphological cleanup", Category,
		algorithm.EnumParam("operation", operations, "open"),
		algorithm.EnumParam("shape", shapes, "ellipse"),
		algorithm.IntParam("kernel", 1, 31, 2, 3),
		algorithm.IntParam("iterations", 1, 10, 1, 1),
	)}
}

func morphType(name string) gocv.MorphType {
	switch name {
	case "close":
		return gocv.MorphClose
	case "erode":
		return gocv.MorphErode
	case "dilate":
		return gocv.MorphDilate
	default:
		return gocv.MorphOpen
	}
}

func morphShape(name string) gocv.MorphShape {
	switch name {
	case "rect":
		return gocv.MorphRect
	case "cross":
		return gocv.MorphCross
	default:
		return gocv.MorphEllipse
	}
}

func (a *Morphology) Run(ctx context.Context, img image.Image) (image.Image, error) {
	op, shape := morphType(a.Choice("operation")), morphShape(a.Choice("shape"))
	k, iterations := a.Int("kernel"), a.Int("iterations")

	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		kernel := gocv.GetStructuringElement(shape, image.Pt(k, k))
		defer kernel.Close()

		dst := src.Clone()
		tmp := gocv.NewMat()
		defer tmp.Close()
		for i := 0; i < iterations; i++ {
			gocv.MorphologyEx(dst, &tmp, op, kernel)
			tmp.CopyTo(&dst)
		}
		return dst, nil
	})
}
