package pipeline

import "image"

// Codec loads the input image and writes step results. internal/imaging provides the
// gocv implementation; tests use in-memory fakes.
type Codec interface {
	Load(path string) (image.Image, error)
	Save(path string, img image.Image) error
}
