package imaging

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nefi-engine/internal/logger"
)

func TestSupported(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]bool{
		"a.png":            true,
		"dir/b.JPG":        true,
		"c.tiff":           true,
		"d.gif":            false,
		"pipeline.json":    false,
		"no_extension":     false,
		"dots.in.name.bmp": true,
	} {
		assert.Equal(t, want, Supported(path), path)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	c := NewCodec(logger.Nop())

	_, err := c.Load("input.gif")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = c.Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	err = c.Save(filepath.Join(t.TempDir(), "out.gif"), image.NewGray(image.Rect(0, 0, 2, 2)))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 8, 6))
	img.SetGray(3, 2, color.Gray{Y: 255})

	c := NewCodec(logger.Nop())
	path := filepath.Join(t.TempDir(), "result.png")
	require.NoError(t, c.Save(path, img))

	got, err := c.Load(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), got.Bounds())

	bright := color.GrayModel.Convert(got.At(3, 2)).(color.Gray)
	dark := color.GrayModel.Convert(got.At(0, 0)).(color.Gray)
	assert.Equal(t, uint8(255), bright.Y)
	assert.Equal(t, uint8(0), dark.Y)
}
