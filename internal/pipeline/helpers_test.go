package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/category"
	"nefi-engine/internal/eventbus"
	"nefi-engine/internal/logger"
)

var errBoom = errors.New("boom")

// shift adds delta to every gray pixel, or fails when asked to.
type shift struct {
	*algorithm.Base
	gate chan struct{}
}

func (s shift) Run(ctx context.Context, in image.Image) (image.Image, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Bool("fail") {
		return nil, errBoom
	}

	delta := uint8(s.Int("delta"))
	b := in.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(in.At(x, y)).(color.Gray)
			out.SetGray(x, y, color.Gray{Y: g.Y + delta})
		}
	}
	return out, nil
}

func shiftFactory(name, cat string, gate chan struct{}) algorithm.Factory {
	return func() algorithm.Algorithm {
		return shift{
			Base: algorithm.NewBase(name, cat,
				algorithm.IntParam("delta", 0, 100, 1, 10),
				algorithm.BoolParam("fail", false),
			),
			gate: gate,
		}
	}
}

func testRegistry(gate chan struct{}) *category.Registry {
	return category.NewRegistry(
		category.NewDefinition("Preprocessing").
			Register("Brighten", shiftFactory("Brighten", "Preprocessing", nil)).
			Register("Hold", shiftFactory("Hold", "Preprocessing", gate)),
		category.NewDefinition("Segmentation").
			Register("Threshold", shiftFactory("Threshold", "Segmentation", nil)),
	)
}

type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) Publish(event eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// take returns everything recorded so far and starts over.
func (r *recorder) take() []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}

type memCodec struct {
	mu     sync.Mutex
	images map[string]image.Image
	saved  []string
}

func newMemCodec() *memCodec {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	return &memCodec{images: map[string]image.Image{"in.png": img}}
}

func (c *memCodec) Load(path string) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.images[path]
	if !ok {
		return nil, errors.Wrapf(os.ErrNotExist, "load %s", path)
	}
	return img, nil
}

func (c *memCodec) Save(path string, img image.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.saved = append(c.saved, path)
	c.images[path] = img
	return nil
}

type fixture struct {
	pipe   *Pipeline
	events *recorder
	codec  *memCodec
	gate   chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		events: &recorder{},
		codec:  newMemCodec(),
		gate:   make(chan struct{}),
	}
	f.pipe = New(testRegistry(f.gate), f.codec, f.events, logger.Nop())
	return f
}

// add appends a configured step.
func (f *fixture) add(t *testing.T, cat, alg string) *category.Category {
	t.Helper()

	step, err := f.pipe.NewCategory(-1)
	require.NoError(t, err)
	pos, err := f.pipe.Index(step)
	require.NoError(t, err)
	require.NoError(t, f.pipe.ChangeCategory(cat, pos))
	require.NoError(t, f.pipe.ChangeAlgorithm(alg, pos))

	step, err = f.pipe.Step(pos)
	require.NoError(t, err)
	return step
}

func (f *fixture) withInput(t *testing.T) {
	t.Helper()
	require.NoError(t, f.pipe.SetInput("in.png"))
}

func ofKind(events []eventbus.Event, kind eventbus.Kind) []eventbus.Event {
	var out []eventbus.Event
	for _, e := range events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}
