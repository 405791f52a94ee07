package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/category"
	"nefi-engine/internal/eventbus"
	"nefi-engine/internal/logger"
)

// stepRun is one step checked out for a run. The algorithm instance and its settings
// are captured up front so the run never reads the live step list.
type stepRun struct {
	cat      *category.Category
	alg      algorithm.Algorithm
	settings category.Record
}

// SanityCheck returns nil when the pipeline can run, otherwise a *ConfigError naming
// the first offending step.
func (p *Pipeline) SanityCheck() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sanityLocked()
}

func (p *Pipeline) sanityLocked() error {
	if p.inputPath == "" {
		return &ConfigError{Message: "no input image set", Index: -1}
	}
	for i, cat := range p.executableLocked() {
		if cat.IsBlank() {
			return &ConfigError{Message: "category not chosen", Index: i, Category: cat}
		}
		if cat.Active() == nil {
			return &ConfigError{Message: "algorithm not chosen", Index: i, Category: cat}
		}
	}
	return nil
}

// Process runs the pipeline under a fresh run id.
func (p *Pipeline) Process(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	return runID, p.Run(ctx, runID)
}

// Run checks out the pipeline and executes it under runID.
func (p *Pipeline) Run(ctx context.Context, runID string) error {
	exec, err := p.Checkout()
	if err != nil {
		return err
	}
	return exec(ctx, runID)
}

// Checkout validates the pipeline, marks it running and captures the steps to execute.
// Edits made after Checkout returns are rejected with ErrRunning until the returned
// function completes, so it must be called exactly once.
//
// The returned function executes every captured step in order, starting from the input
// image. Each result is cached and followed by a ProgressEvent. The first failing step
// aborts the run with a *StepError. Results of steps the run did not produce are retired.
func (p *Pipeline) Checkout() (func(ctx context.Context, runID string) error, error) {
	plan, input, err := p.checkout()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, runID string) error {
		defer p.release()
		return p.execute(ctx, runID, plan, input)
	}, nil
}

func (p *Pipeline) execute(ctx context.Context, runID string, plan []stepRun, input image.Image) error {
	log := p.logger.With(map[string]interface{}{"run_id": runID})

	started := time.Now()
	log.Info(component, "run started", map[string]interface{}{"steps": len(plan)})

	produced := make(map[*category.Category]bool, len(plan))
	defer func() {
		p.cache.Retain(p.Steps(), func(cat *category.Category) bool { return produced[cat] })
	}()

	current := input
	for i, step := range plan {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "run stopped before step %d", i)
		}

		out, err := runStep(ctx, log, i, step, current)
		if err != nil {
			log.Error(component, err, nil)
			return err
		}

		if _, err := p.cache.Put(step.cat, i, out, step.settings, runID); err != nil {
			return &StepError{Index: i, Category: step.settings.Category, Algorithm: step.settings.Algorithm, Err: err}
		}
		produced[step.cat] = true

		p.publisher.Publish(eventbus.ProgressEvent{
			RunID:  runID,
			Value:  (i + 1) * 100 / len(plan),
			Report: fmt.Sprintf("%s - %s (step %d/%d)", step.settings.Category, step.settings.Algorithm, i+1, len(plan)),
		})
		current = out
	}

	log.Info(component, "run completed", map[string]interface{}{"duration": time.Since(started).String()})
	return nil
}

func runStep(ctx context.Context, log logger.Logger, i int, step stepRun, in image.Image) (image.Image, error) {
	stepErr := func(err error) *StepError {
		return &StepError{Index: i, Category: step.settings.Category, Algorithm: step.settings.Algorithm, Err: err}
	}

	started := time.Now()
	out, err := step.alg.Run(ctx, in)
	log.Debug(component, "step executed", map[string]interface{}{
		"step":     i,
		"category": step.settings.Category,
		"duration": time.Since(started).String(),
	})
	if err != nil {
		return nil, stepErr(err)
	}
	if out == nil {
		return nil, stepErr(errors.New("algorithm returned no image"))
	}
	return out, nil
}

func (p *Pipeline) checkout() ([]stepRun, image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil, nil, ErrRunning
	}
	if err := p.sanityLocked(); err != nil {
		return nil, nil, err
	}

	input, ok := p.cache.Input()
	if !ok {
		return nil, nil, &ConfigError{Message: "input image not loaded", Index: -1}
	}

	steps := p.executableLocked()
	plan := make([]stepRun, 0, len(steps))
	for _, cat := range steps {
		settings, _ := cat.Snapshot()
		plan = append(plan, stepRun{cat: cat, alg: cat.Active(), settings: settings})
	}

	p.running = true
	return plan, input.Image, nil
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}
