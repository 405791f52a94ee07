// Package pipeline holds the ordered list of steps, checks it before a run and
// executes it, feeding every result into the result cache.
package pipeline

import (
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"nefi-engine/internal/cache"
	"nefi-engine/internal/category"
	"nefi-engine/internal/eventbus"
	"nefi-engine/internal/logger"
)

const component = "Pipeline"

type Pipeline struct {
	mu        sync.RWMutex
	steps     []*category.Category
	registry  *category.Registry
	inputPath string
	outputDir string
	running   bool

	cache     *cache.ResultCache
	codec     Codec
	publisher eventbus.Publisher
	logger    logger.Logger
}

func New(registry *category.Registry, codec Codec, publisher eventbus.Publisher, log logger.Logger) *Pipeline {
	return &Pipeline{
		registry:  registry,
		cache:     cache.New(codec, publisher, log),
		codec:     codec,
		publisher: publisher,
		logger:    log,
	}
}

func (p *Pipeline) Cache() *cache.ResultCache {
	return p.cache
}

func (p *Pipeline) Registry() *category.Registry {
	return p.registry
}

// NewCategory inserts a blank step. A negative position appends. The blank has to be
// the last step, so any other position is rejected.
func (p *Pipeline) NewCategory(position int) (*category.Category, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return nil, err
	}
	if p.hasBlankLocked() {
		return nil, ErrBlankExists
	}
	if position < 0 {
		position = len(p.steps)
	}
	if position != len(p.steps) {
		return nil, errors.Wrapf(ErrInvalidPosition, "blank at %d of %d", position, len(p.steps))
	}

	cat := category.NewBlank()
	p.steps = append(p.steps, cat)
	return cat, nil
}

// ChangeCategory replaces the step at position with a fresh, unconfigured step of the
// named category. The replaced step's result is retired.
func (p *Pipeline) ChangeCategory(name string, position int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return err
	}
	if err := p.checkPositionLocked(position); err != nil {
		return err
	}

	def, err := p.registry.Lookup(name)
	if err != nil {
		return err
	}

	old := p.steps[position]
	p.steps[position] = category.New(def)
	p.cache.Remove(old)

	p.logger.Debug(component, "category changed", map[string]interface{}{
		"position": position,
		"from":     old.Name(),
		"to":       name,
	})
	return nil
}

// ChangeAlgorithm selects a fresh default instance of the named algorithm for the
// step at position. The step keeps its cached result until the next run.
func (p *Pipeline) ChangeAlgorithm(name string, position int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return err
	}
	if err := p.checkPositionLocked(position); err != nil {
		return err
	}
	return p.steps[position].SelectAlgorithm(name)
}

func (p *Pipeline) SetParameter(position int, param string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return err
	}
	if err := p.checkPositionLocked(position); err != nil {
		return err
	}

	alg := p.steps[position].Active()
	if alg == nil {
		return errors.Wrapf(ErrNotConfigured, "step %d", position)
	}
	return alg.SetParameter(param, value)
}

// RestoreSettings configures the step at position from a settings record, typically
// the one kept with a cached result. The record is validated through the registry
// first; on any error the step is left as it was. Like ChangeAlgorithm, the step
// keeps its cached result until the next run.
func (p *Pipeline) RestoreSettings(position int, rec category.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return err
	}
	if err := p.checkPositionLocked(position); err != nil {
		return err
	}

	cat := p.steps[position]
	if cat.Name() != rec.Category {
		return errors.Wrapf(ErrSettingsMismatch, "%q onto %q at step %d", rec.Category, cat.Name(), position)
	}
	built, err := p.registry.Build(rec)
	if err != nil {
		return err
	}

	if err := cat.SelectAlgorithm(rec.Algorithm); err != nil {
		return err
	}
	for _, param := range built.Active().Parameters() {
		if err := cat.Active().SetParameter(param.Name, param.Value); err != nil {
			return err
		}
	}

	p.logger.Debug(component, "settings restored", map[string]interface{}{
		"position":  position,
		"algorithm": rec.Algorithm,
	})
	return nil
}

// DeleteCategory removes the step at position; later steps move up by one.
func (p *Pipeline) DeleteCategory(position int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return err
	}
	if err := p.checkPositionLocked(position); err != nil {
		return err
	}

	cat := p.steps[position]
	p.steps = append(p.steps[:position], p.steps[position+1:]...)
	p.cache.Remove(cat)
	return nil
}

// Swap exchanges the steps at i and j. Listeners get the cached results of both
// positions again, in position order.
func (p *Pipeline) Swap(i, j int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return err
	}
	if err := p.checkPositionLocked(i); err != nil {
		return err
	}
	if err := p.checkPositionLocked(j); err != nil {
		return err
	}
	if i == j {
		return nil
	}
	if p.steps[i].IsBlank() || p.steps[j].IsBlank() {
		return ErrBlankNotLast
	}

	p.steps[i], p.steps[j] = p.steps[j], p.steps[i]
	if i > j {
		i, j = j, i
	}
	p.cache.Republish(p.steps[i])
	p.cache.Republish(p.steps[j])
	return nil
}

// Index returns the current position of cat.
func (p *Pipeline) Index(cat *category.Category) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, idx, ok := lo.FindIndexOf(p.steps, func(c *category.Category) bool { return c == cat })
	if !ok {
		return -1, ErrNotFound
	}
	return idx, nil
}

func (p *Pipeline) Step(position int) (*category.Category, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkPositionLocked(position); err != nil {
		return nil, err
	}
	return p.steps[position], nil
}

func (p *Pipeline) Steps() []*category.Category {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*category.Category(nil), p.steps...)
}

func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.steps)
}

func (p *Pipeline) AvailableCategories() []string {
	return p.registry.Names()
}

func (p *Pipeline) Category(name string) (*category.Definition, error) {
	return p.registry.Lookup(name)
}

func (p *Pipeline) AlgorithmNames(def *category.Definition) []string {
	if def == nil {
		return nil
	}
	return def.AlgorithmNames()
}

// SetInput loads the image at path and makes it the new run input. All step results
// are stale after this and are retired.
func (p *Pipeline) SetInput(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return err
	}

	img, err := p.codec.Load(path)
	if err != nil {
		return err
	}

	p.inputPath = path
	p.cache.SetInput(path, img, p.steps)

	bounds := img.Bounds()
	p.logger.Info(component, "input set", map[string]interface{}{
		"path":   path,
		"width":  bounds.Dx(),
		"height": bounds.Dy(),
	})
	return nil
}

func (p *Pipeline) InputPath() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inputPath
}

// SetOutputDir sets where step results are written, creating the directory if needed.
func (p *Pipeline) SetOutputDir(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return err
	}
	if path != "" {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return errors.Wrapf(err, "create output dir %s", path)
		}
	}

	p.outputDir = path
	p.cache.SetOutputDir(path)
	return nil
}

func (p *Pipeline) OutputDir() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.outputDir
}

// Clear removes every step and retires their results. The input is kept.
func (p *Pipeline) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writableLocked(); err != nil {
		return err
	}
	p.replaceStepsLocked(nil)
	return nil
}

// Output returns the result of the last executable step, or the input when the
// pipeline has no result yet.
func (p *Pipeline) Output() (image.Image, bool) {
	p.mu.RLock()
	steps := p.executableLocked()
	p.mu.RUnlock()

	if len(steps) > 0 {
		if entry, ok := p.cache.Get(steps[len(steps)-1]); ok {
			return entry.Image, true
		}
	}
	if input, ok := p.cache.Input(); ok {
		return input.Image, true
	}
	return nil, false
}

// StepResult pairs a cached result with the live position of the step that produced it.
type StepResult struct {
	Position int
	Cat      *category.Category
	Entry    *cache.Entry
}

// Results lists the cached step results in current step order.
func (p *Pipeline) Results() []StepResult {
	steps := p.Steps()

	var out []StepResult
	for i, cat := range steps {
		if entry, ok := p.cache.Get(cat); ok {
			out = append(out, StepResult{Position: i, Cat: cat, Entry: entry})
		}
	}
	return out
}

// Running reports whether a run is in flight.
func (p *Pipeline) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Pipeline) writableLocked() error {
	if p.running {
		return ErrRunning
	}
	return nil
}

func (p *Pipeline) checkPositionLocked(position int) error {
	if position < 0 || position >= len(p.steps) {
		return errors.Wrapf(ErrInvalidPosition, "position %d of %d", position, len(p.steps))
	}
	return nil
}

func (p *Pipeline) hasBlankLocked() bool {
	return lo.ContainsBy(p.steps, func(c *category.Category) bool { return c.IsBlank() })
}

// executableLocked drops the trailing blank, which never runs.
func (p *Pipeline) executableLocked() []*category.Category {
	n := len(p.steps)
	if n > 0 && p.steps[n-1].IsBlank() {
		n--
	}
	return p.steps[:n:n]
}

func (p *Pipeline) replaceStepsLocked(steps []*category.Category) {
	old := p.steps
	p.steps = steps
	for _, cat := range old {
		p.cache.Remove(cat)
	}
}
