package pipeline

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/category"
	"nefi-engine/internal/eventbus"
)

func assertShape(t *testing.T, p *Pipeline) {
	t.Helper()

	steps := p.Steps()
	blanks := 0
	for i, cat := range steps {
		idx, err := p.Index(cat)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
		if cat.IsBlank() {
			blanks++
			assert.Equal(t, len(steps)-1, i, "blank must be last")
		}
	}
	assert.LessOrEqual(t, blanks, 1)
}

func TestStructureSurvivesRandomEdits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rng := rand.New(rand.NewSource(42))
	names := f.pipe.AvailableCategories()

	for n := 0; n < 500; n++ {
		size := f.pipe.Len()
		var err error
		switch rng.Intn(4) {
		case 0:
			_, err = f.pipe.NewCategory(rng.Intn(size+2) - 1)
		case 1:
			err = f.pipe.DeleteCategory(rng.Intn(size + 1))
		case 2:
			err = f.pipe.Swap(rng.Intn(size+1), rng.Intn(size+1))
		case 3:
			err = f.pipe.ChangeCategory(names[rng.Intn(len(names))], rng.Intn(size+1))
		}
		if err != nil {
			assert.True(t,
				errors.Is(err, ErrBlankExists) || errors.Is(err, ErrInvalidPosition) || errors.Is(err, ErrBlankNotLast),
				"unexpected error %v", err)
		}
		assertShape(t, f.pipe)
	}
}

func TestNewCategory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.add(t, "Preprocessing", "Brighten")

	_, err := f.pipe.NewCategory(0)
	assert.True(t, errors.Is(err, ErrInvalidPosition))

	blank, err := f.pipe.NewCategory(1)
	require.NoError(t, err)
	assert.True(t, blank.IsBlank())
	assert.Equal(t, category.BlankName, blank.Name())

	_, err = f.pipe.NewCategory(-1)
	assert.True(t, errors.Is(err, ErrBlankExists))
	assert.Equal(t, 2, f.pipe.Len())
}

func TestSanityCheck(t *testing.T) {
	t.Parallel()

	t.Run("empty without input", func(t *testing.T) {
		f := newFixture(t)

		var cerr *ConfigError
		require.True(t, errors.As(f.pipe.SanityCheck(), &cerr))
		assert.Equal(t, -1, cerr.Index)
		assert.Nil(t, cerr.Category)
	})

	t.Run("steps without input", func(t *testing.T) {
		f := newFixture(t)
		f.add(t, "Preprocessing", "Brighten")

		var cerr *ConfigError
		require.True(t, errors.As(f.pipe.SanityCheck(), &cerr))
		assert.Equal(t, -1, cerr.Index)
	})

	t.Run("empty with input", func(t *testing.T) {
		f := newFixture(t)
		f.withInput(t)
		assert.NoError(t, f.pipe.SanityCheck())
	})

	t.Run("lone trailing blank", func(t *testing.T) {
		f := newFixture(t)
		f.withInput(t)
		_, err := f.pipe.NewCategory(-1)
		require.NoError(t, err)
		assert.NoError(t, f.pipe.SanityCheck())
	})

	t.Run("third step unconfigured", func(t *testing.T) {
		f := newFixture(t)
		f.withInput(t)
		f.add(t, "Preprocessing", "Brighten")
		f.add(t, "Preprocessing", "Brighten")
		_, err := f.pipe.NewCategory(-1)
		require.NoError(t, err)
		require.NoError(t, f.pipe.ChangeCategory("Segmentation", 2))

		var cerr *ConfigError
		require.True(t, errors.As(f.pipe.SanityCheck(), &cerr))
		assert.Equal(t, 2, cerr.Index)
		assert.Equal(t, "Segmentation", cerr.Category.Name())
	})

	t.Run("first offending step wins", func(t *testing.T) {
		f := newFixture(t)
		f.withInput(t)
		f.add(t, "Preprocessing", "Brighten")
		f.add(t, "Preprocessing", "Brighten")
		require.NoError(t, f.pipe.ChangeCategory("Segmentation", 1))
		require.NoError(t, f.pipe.ChangeCategory("Preprocessing", 0))

		var cerr *ConfigError
		require.True(t, errors.As(f.pipe.SanityCheck(), &cerr))
		assert.Equal(t, 0, cerr.Index)
	})
}

func TestProcessTwoSteps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	b := f.add(t, "Segmentation", "Threshold")
	f.withInput(t)
	f.events.take()

	runID, err := f.pipe.Process(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	events := f.events.take()
	require.Len(t, events, 4)
	assert.Equal(t, eventbus.CacheAddEvent{Cat: a}, events[0])
	assert.Equal(t, eventbus.ProgressEvent{RunID: runID, Value: 50, Report: "Preprocessing - Brighten (step 1/2)"}, events[1])
	assert.Equal(t, eventbus.CacheAddEvent{Cat: b}, events[2])
	assert.Equal(t, eventbus.ProgressEvent{RunID: runID, Value: 100, Report: "Segmentation - Threshold (step 2/2)"}, events[3])

	c := f.pipe.Cache()
	assert.Equal(t, 3, c.Len())
	_, ok := c.Input()
	assert.True(t, ok)

	entry, ok := c.Get(b)
	require.True(t, ok)
	assert.Equal(t, 1, entry.Index)
	assert.Equal(t, runID, entry.RunID)
	assert.Equal(t, "Threshold", entry.Settings.Algorithm)

	out, ok := f.pipe.Output()
	require.True(t, ok)
	assert.Equal(t, entry.Image, out)
	assert.False(t, f.pipe.Running())
}

func TestProcessChainsResults(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.add(t, "Preprocessing", "Brighten")
	f.add(t, "Preprocessing", "Brighten")
	require.NoError(t, f.pipe.SetParameter(1, "delta", 5))
	f.withInput(t)

	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)

	out, ok := f.pipe.Output()
	require.True(t, ok)
	r, _, _, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(15)*0x101, r)
}

func TestProcessEmptyIsIdentity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.withInput(t)
	_, err := f.pipe.NewCategory(-1)
	require.NoError(t, err)
	f.events.take()

	_, err = f.pipe.Process(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.events.take())

	out, ok := f.pipe.Output()
	require.True(t, ok)
	in, _ := f.pipe.Cache().Input()
	assert.Equal(t, in.Image, out)
}

func TestProcessRefusesInvalidPipeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.add(t, "Preprocessing", "Brighten")

	_, err := f.pipe.Process(context.Background())
	var cerr *ConfigError
	assert.True(t, errors.As(err, &cerr))
	assert.Empty(t, f.events.take())
}

func TestProcessFailureRetiresLaterResults(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	b := f.add(t, "Preprocessing", "Brighten")
	c := f.add(t, "Segmentation", "Threshold")
	f.withInput(t)

	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, f.pipe.Cache().Len())

	require.NoError(t, f.pipe.SetParameter(1, "fail", true))
	f.events.take()

	_, err = f.pipe.Process(context.Background())
	var serr *StepError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 1, serr.Index)
	assert.Equal(t, "Preprocessing", serr.Category)
	assert.Equal(t, "Brighten", serr.Algorithm)
	assert.True(t, errors.Is(err, errBoom))

	events := f.events.take()
	assert.Len(t, ofKind(events, eventbus.KindProgress), 1)
	assert.Equal(t, []eventbus.Event{
		eventbus.CacheRemoveEvent{Cat: b},
		eventbus.CacheRemoveEvent{Cat: c},
	}, ofKind(events, eventbus.KindCacheRemove))

	cache := f.pipe.Cache()
	_, ok := cache.Get(a)
	assert.True(t, ok)
	_, ok = cache.Get(b)
	assert.False(t, ok)
	_, ok = cache.Get(c)
	assert.False(t, ok)
	assert.False(t, f.pipe.Running())
}

func TestProcessStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.add(t, "Preprocessing", "Brighten")
	f.withInput(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipe.Process(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, f.pipe.Running())
}

func TestMutationsRejectedWhileRunning(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.add(t, "Preprocessing", "Hold")
	f.withInput(t)

	done := make(chan error, 1)
	go func() {
		_, err := f.pipe.Process(context.Background())
		done <- err
	}()
	require.Eventually(t, f.pipe.Running, time.Second, time.Millisecond)

	assert.True(t, errors.Is(f.pipe.DeleteCategory(0), ErrRunning))
	_, err := f.pipe.NewCategory(-1)
	assert.True(t, errors.Is(err, ErrRunning))
	assert.True(t, errors.Is(f.pipe.Clear(), ErrRunning))
	assert.True(t, errors.Is(f.pipe.SetInput("in.png"), ErrRunning))
	_, err = f.pipe.Process(context.Background())
	assert.True(t, errors.Is(err, ErrRunning))

	assert.Equal(t, 1, f.pipe.Len())
	assert.NoError(t, f.pipe.SanityCheck())

	close(f.gate)
	require.NoError(t, <-done)
	assert.NoError(t, f.pipe.DeleteCategory(0))
}

func TestCheckoutHoldsPipelineUntilExecuted(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.add(t, "Preprocessing", "Brighten")
	f.withInput(t)

	exec, err := f.pipe.Checkout()
	require.NoError(t, err)
	assert.True(t, f.pipe.Running())
	assert.True(t, errors.Is(f.pipe.DeleteCategory(0), ErrRunning))

	_, err = f.pipe.Checkout()
	assert.True(t, errors.Is(err, ErrRunning))

	require.NoError(t, exec(context.Background(), "run-1"))
	assert.False(t, f.pipe.Running())
	assert.Equal(t, 2, f.pipe.Cache().Len())
	assert.NoError(t, f.pipe.DeleteCategory(0))
}

func TestDeleteAfterRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	b := f.add(t, "Segmentation", "Threshold")
	f.withInput(t)
	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)
	f.events.take()

	require.NoError(t, f.pipe.DeleteCategory(0))
	assert.Equal(t, []eventbus.Event{eventbus.CacheRemoveEvent{Cat: a}}, f.events.take())

	idx, err := f.pipe.Index(b)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = f.pipe.Index(a)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, ok := f.pipe.Cache().Get(a)
	assert.False(t, ok)
	assert.Equal(t, 2, f.pipe.Cache().Len())
}

func TestDeleteWithoutResultIsQuiet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.add(t, "Preprocessing", "Brighten")
	f.events.take()

	require.NoError(t, f.pipe.DeleteCategory(0))
	assert.Empty(t, f.events.take())
	assert.True(t, errors.Is(f.pipe.DeleteCategory(0), ErrInvalidPosition))
}

func TestSwap(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	f.add(t, "Segmentation", "Threshold")
	c := f.add(t, "Preprocessing", "Brighten")
	f.withInput(t)
	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.pipe.DeleteCategory(1))
	f.events.take()

	t.Run("same position", func(t *testing.T) {
		require.NoError(t, f.pipe.Swap(1, 1))
		assert.Empty(t, f.events.take())
	})

	t.Run("out of range", func(t *testing.T) {
		before := f.pipe.Steps()
		assert.True(t, errors.Is(f.pipe.Swap(0, 2), ErrInvalidPosition))
		assert.True(t, errors.Is(f.pipe.Swap(-1, 0), ErrInvalidPosition))
		assert.Equal(t, before, f.pipe.Steps())
		assert.Empty(t, f.events.take())
	})

	t.Run("exchange keeps identity", func(t *testing.T) {
		require.NoError(t, f.pipe.Swap(1, 0))
		assert.Equal(t, []*category.Category{c, a}, f.pipe.Steps())
		assert.Equal(t, []eventbus.Event{
			eventbus.CacheAddEvent{Cat: c},
			eventbus.CacheAddEvent{Cat: a},
		}, f.events.take())
	})

	t.Run("only cached positions republished", func(t *testing.T) {
		d := f.add(t, "Segmentation", "Threshold")
		f.events.take()
		require.NoError(t, f.pipe.Swap(2, 0))
		assert.Equal(t, []*category.Category{d, a, c}, f.pipe.Steps())
		assert.Equal(t, []eventbus.Event{eventbus.CacheAddEvent{Cat: c}}, f.events.take())
	})

	t.Run("blank stays last", func(t *testing.T) {
		_, err := f.pipe.NewCategory(-1)
		require.NoError(t, err)
		before := f.pipe.Steps()
		assert.True(t, errors.Is(f.pipe.Swap(3, 0), ErrBlankNotLast))
		assert.Equal(t, before, f.pipe.Steps())
	})
}

func TestChangeCategoryRetiresResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	f.withInput(t)
	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)
	f.events.take()

	require.NoError(t, f.pipe.ChangeAlgorithm("Hold", 0))
	assert.Empty(t, f.events.take(), "result kept until the next run")
	step, err := f.pipe.Step(0)
	require.NoError(t, err)
	assert.Same(t, a, step)
	assert.Equal(t, "Hold", step.Active().Name())

	err = f.pipe.ChangeAlgorithm("Threshold", 0)
	assert.True(t, errors.Is(err, category.ErrUnknownAlgorithm))

	require.NoError(t, f.pipe.ChangeCategory("Segmentation", 0))
	assert.Equal(t, []eventbus.Event{eventbus.CacheRemoveEvent{Cat: a}}, f.events.take())
	step, err = f.pipe.Step(0)
	require.NoError(t, err)
	assert.NotSame(t, a, step)
	assert.Nil(t, step.Active())

	err = f.pipe.ChangeCategory("Graph detection", 0)
	assert.True(t, errors.Is(err, category.ErrUnknownCategory))
}

func TestSetParameter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.add(t, "Preprocessing", "Brighten")
	_, err := f.pipe.NewCategory(-1)
	require.NoError(t, err)

	require.NoError(t, f.pipe.SetParameter(0, "delta", 42.0))
	assert.True(t, errors.Is(f.pipe.SetParameter(0, "delta", 101), algorithm.ErrOutOfRange))
	assert.True(t, errors.Is(f.pipe.SetParameter(0, "gamma", 1), algorithm.ErrUnknownParameter))
	assert.True(t, errors.Is(f.pipe.SetParameter(1, "delta", 1), ErrNotConfigured))

	assert.Equal(t, 42, f.pipe.Snapshot()[0].Parameters["delta"])
}

func TestSetInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	f.withInput(t)
	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)
	f.events.take()

	err = f.pipe.SetInput("missing.png")
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, "in.png", f.pipe.InputPath())
	assert.Empty(t, f.events.take())

	require.NoError(t, f.pipe.SetInput("in.png"))
	assert.Equal(t, []eventbus.Event{
		eventbus.CacheRemoveEvent{Cat: a},
		eventbus.CacheInputEvent{Path: "in.png"},
	}, f.events.take())
	assert.Equal(t, 1, f.pipe.Cache().Len())
}

func TestResultsFollowSwap(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	b := f.add(t, "Segmentation", "Threshold")
	f.withInput(t)
	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.pipe.Swap(0, 1))
	results := f.pipe.Results()
	require.Len(t, results, 2)
	assert.Equal(t, b, results[0].Cat)
	assert.Equal(t, 0, results[0].Position)
	assert.Equal(t, a, results[1].Cat)
	assert.Equal(t, 1, results[1].Position)
	// The entry still names the position it was produced at.
	assert.Equal(t, 0, results[1].Entry.Index)
	f.events.take()

	require.NoError(t, f.pipe.SetInput("in.png"))
	assert.Equal(t, []eventbus.Event{
		eventbus.CacheRemoveEvent{Cat: b},
		eventbus.CacheRemoveEvent{Cat: a},
		eventbus.CacheInputEvent{Path: "in.png"},
	}, f.events.take())
	assert.Empty(t, f.pipe.Results())
}

func TestRestoreSettingsFromResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	b := f.add(t, "Segmentation", "Threshold")
	require.NoError(t, f.pipe.SetParameter(0, "delta", 7))
	f.withInput(t)
	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)

	entry, ok := f.pipe.Cache().Get(a)
	require.True(t, ok)
	produced := entry.Settings

	require.NoError(t, f.pipe.ChangeAlgorithm("Hold", 0))
	require.NoError(t, f.pipe.RestoreSettings(0, produced))

	rec, ok := a.Snapshot()
	require.True(t, ok)
	assert.True(t, produced.Equal(rec), "restored %v, want %v", rec, produced)
	_, ok = f.pipe.Cache().Get(a)
	assert.True(t, ok, "restoring keeps the last result")

	t.Run("other category", func(t *testing.T) {
		other, ok := f.pipe.Cache().Get(b)
		require.True(t, ok)
		assert.True(t, errors.Is(f.pipe.RestoreSettings(0, other.Settings), ErrSettingsMismatch))
	})

	t.Run("invalid record leaves step alone", func(t *testing.T) {
		bad := category.Record{
			Category:   "Preprocessing",
			Algorithm:  "Brighten",
			Parameters: map[string]interface{}{"delta": 500},
		}
		assert.Error(t, f.pipe.RestoreSettings(0, bad))
		rec, ok := a.Snapshot()
		require.True(t, ok)
		assert.True(t, produced.Equal(rec))
	})
}

func TestSetOutputDirWritesResults(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	f.add(t, "Segmentation", "Threshold")
	f.withInput(t)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, f.pipe.SetOutputDir(dir))
	assert.DirExists(t, dir)
	assert.Equal(t, dir, f.pipe.OutputDir())

	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "00_preprocessing_brighten.png"),
		filepath.Join(dir, "01_segmentation_threshold.png"),
	}, f.codec.saved)

	entry, ok := f.pipe.Cache().Get(a)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "00_preprocessing_brighten.png"), entry.Path)
}

func TestClear(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, "Preprocessing", "Brighten")
	b := f.add(t, "Preprocessing", "Brighten")
	f.withInput(t)
	_, err := f.pipe.Process(context.Background())
	require.NoError(t, err)
	f.events.take()

	require.NoError(t, f.pipe.Clear())
	assert.Zero(t, f.pipe.Len())
	assert.Equal(t, []eventbus.Event{
		eventbus.CacheRemoveEvent{Cat: a},
		eventbus.CacheRemoveEvent{Cat: b},
	}, f.events.take())
	assert.Equal(t, 1, f.pipe.Cache().Len())
}

func TestRegistryEnumerations(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	assert.Equal(t, []string{"Preprocessing", "Segmentation"}, f.pipe.AvailableCategories())

	def, err := f.pipe.Category("Preprocessing")
	require.NoError(t, err)
	assert.Equal(t, []string{"Brighten", "Hold"}, f.pipe.AlgorithmNames(def))
	assert.Nil(t, f.pipe.AlgorithmNames(nil))

	_, err = f.pipe.Category("Graph filtering")
	assert.True(t, errors.Is(err, category.ErrUnknownCategory))
}
