// Package imaging reads input images and writes step results through OpenCV.
package imaging

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gocv.io/x/gocv"

	"nefi-engine/internal/algorithms/matutil"
	"nefi-engine/internal/logger"
)

const component = "ImageCodec"

var ErrUnsupportedFormat = errors.New("unsupported image format")

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}

type Codec struct {
	logger logger.Logger
}

func NewCodec(log logger.Logger) *Codec {
	return &Codec{logger: log}
}

// Supported reports whether path has an extension the codec reads and writes.
func Supported(path string) bool {
	return lo.Contains(supportedFormats, strings.ToLower(filepath.Ext(path)))
}

// Extensions lists the supported extensions, for file dialogs.
func Extensions() []string {
	return append([]string(nil), supportedFormats...)
}

// Load reads path as a color image. A missing file keeps os.ErrNotExist in the chain.
func (c *Codec) Load(path string) (image.Image, error) {
	if !Supported(path) {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "load image %s", path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.Errorf("failed to decode image: %s", path)
	}

	img, err := matutil.ToImage(mat)
	if err != nil {
		return nil, errors.Wrapf(err, "load image %s", path)
	}

	c.logger.Debug(component, "image loaded", map[string]interface{}{
		"path":     path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	})
	return img, nil
}

func (c *Codec) Save(path string, img image.Image) error {
	if !Supported(path) {
		return errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}

	mat, err := matutil.FromImage(img)
	defer mat.Close()
	if err != nil {
		return errors.Wrapf(err, "save image %s", path)
	}

	if !gocv.IMWrite(path, mat) {
		return errors.Errorf("failed to save image: %s", path)
	}

	c.logger.Debug(component, "image saved", map[string]interface{}{
		"path":   path,
		"width":  mat.Cols(),
		"height": mat.Rows(),
	})
	return nil
}
