package segmentation

import (
	"context"
	"image"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/algorithms/matutil"
)

const (
	classBackground byte = iota
	classForeground
	classUndecided
)

// Triclass is the iterative tri-class Otsu method. Each round thresholds only the
// still undecided pixels, settling those clearly above or below the two class means,
// until the threshold stops moving or few pixels remain undecided.
type Triclass struct {
	*algorithm.Base
}

func NewTriclass() algorithm.Algorithm {
	return &Triclass{algorithm.NewBase("Iterative triclass", Category,
		algorithm.IntParam("max_iterations", 1, 20, 1, 8),
		algorithm.FloatParam("convergence", 0.1, 10, 0.1, 1).WithDescription("Stop when the threshold moves less than this"),
		algorithm.FloatParam("min_undecided", 0, 0.5, 0.005, 0.01).WithDescription("Stop when fewer pixels than this fraction remain undecided"),
		algorithm.BoolParam("invert", false),
	)}
}

func (a *Triclass) Run(ctx context.Context, img image.Image) (image.Image, error) {
	maxIter, precision := a.Int("max_iterations"), a.Float("convergence")
	minFraction, invert := a.Float("min_undecided"), a.Bool("invert")

	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		gray, err := matutil.Gray(src)
		if err != nil {
			return gray, err
		}
		defer gray.Close()

		pixels, err := gray.DataPtrUint8()
		if err != nil {
			return gocv.NewMat(), errors.Wrap(err, "read pixels")
		}

		classes, err := triclassify(ctx, pixels, maxIter, precision, minFraction)
		if err != nil {
			return gocv.NewMat(), err
		}

		out := make([]byte, len(pixels))
		for k, c := range classes {
			if (c == classForeground) != invert {
				out[k] = 255
			}
		}
		dst, err := gocv.NewMatFromBytes(gray.Rows(), gray.Cols(), gocv.MatTypeCV8UC1, out)
		return dst, errors.Wrap(err, "build result")
	})
}

// triclassify labels every pixel foreground or background. Pixels still undecided
// after the last round are split at that round's threshold.
func triclassify(ctx context.Context, pixels []byte, maxIter int, precision, minFraction float64) ([]byte, error) {
	classes := make([]byte, len(pixels))
	for k := range classes {
		classes[k] = classUndecided
	}

	total := float64(len(pixels))
	prev := math.Inf(-1)
	level := 127

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hist := make([]float64, 256)
		undecided := 0
		for k, v := range pixels {
			if classes[k] == classUndecided {
				hist[v]++
				undecided++
			}
		}
		if undecided == 0 {
			break
		}

		level = otsuLevel(hist)
		if math.Abs(float64(level)-prev) < precision {
			break
		}
		prev = float64(level)

		low, high := classMeans(hist, level)
		remaining := 0
		for k, v := range pixels {
			if classes[k] != classUndecided {
				continue
			}
			switch f := float64(v); {
			case f > high:
				classes[k] = classForeground
			case f < low:
				classes[k] = classBackground
			default:
				remaining++
			}
		}
		if float64(remaining)/total < minFraction {
			break
		}
	}

	for k, v := range pixels {
		if classes[k] == classUndecided {
			if int(v) > level {
				classes[k] = classForeground
			} else {
				classes[k] = classBackground
			}
		}
	}
	return classes, nil
}
