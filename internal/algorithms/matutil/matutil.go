// Package matutil moves images between the engine's image.Image values and gocv Mats.
package matutil

import (
	"context"
	"image"
	"image/draw"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FromImage converts img into an 8-bit Mat. Gray images stay single channel; anything
// else becomes BGR.
func FromImage(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), errors.New("input image is nil")
	}
	if err := validateDimensions(img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
		return gocv.NewMat(), err
	}

	switch typed := img.(type) {
	case *image.Gray:
		if typed.Bounds().Min != (image.Point{}) {
			typed = rebase(typed)
		}
		mat, err := gocv.ImageGrayToMatGray(typed)
		return mat, errors.Wrap(err, "gray image to Mat")
	default:
		mat, err := gocv.ImageToMatRGB(img)
		return mat, errors.Wrap(err, "image to Mat")
	}
}

func rebase(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// ToImage converts a CV_8UC1, CV_8UC3 or CV_8UC4 Mat back to an image.
func ToImage(mat gocv.Mat) (image.Image, error) {
	if err := Validate(mat, "Mat to image"); err != nil {
		return nil, err
	}
	switch mat.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
	default:
		return nil, errors.Errorf("unsupported Mat type %v", mat.Type())
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "Mat to image")
	}
	return img, nil
}

// Gray returns a single-channel copy of src. The caller closes it.
func Gray(src gocv.Mat) (gocv.Mat, error) {
	if err := Validate(src, "grayscale conversion"); err != nil {
		return gocv.NewMat(), err
	}

	dst := gocv.NewMat()
	switch src.Channels() {
	case 1:
		src.CopyTo(&dst)
	case 3:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToGray)
	default:
		dst.Close()
		return gocv.NewMat(), errors.Errorf("unsupported channel count: %d", src.Channels())
	}
	return dst, nil
}

// Binary returns a 0/255 single-channel copy of src: every non-zero pixel becomes 255.
func Binary(src gocv.Mat) (gocv.Mat, error) {
	gray, err := Gray(src)
	if err != nil {
		return gray, err
	}
	defer gray.Close()

	dst := gocv.NewMat()
	gocv.Threshold(gray, &dst, 0, 255, gocv.ThresholdBinary)
	return dst, nil
}

func Validate(mat gocv.Mat, operation string) error {
	if mat.Empty() {
		return errors.Errorf("Mat is empty for operation: %s", operation)
	}
	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return errors.Errorf("Mat has invalid dimensions %dx%d for operation: %s", mat.Cols(), mat.Rows(), operation)
	}
	return nil
}

func validateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid image dimensions %dx%d", width, height)
	}
	if width > 32768 || height > 32768 {
		return errors.Errorf("image dimensions %dx%d exceed maximum size", width, height)
	}
	return nil
}

// Apply runs fn on a Mat copy of img and converts the result back. Both Mats are
// closed before returning.
func Apply(ctx context.Context, img image.Image, fn func(src gocv.Mat) (gocv.Mat, error)) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := FromImage(img)
	if err != nil {
		src.Close()
		return nil, err
	}
	defer src.Close()

	dst, err := fn(src)
	defer dst.Close()
	if err != nil {
		return nil, err
	}
	return ToImage(dst)
}
