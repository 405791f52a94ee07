package pipeline

import (
	"github.com/pkg/errors"

	"nefi-engine/internal/category"
	"nefi-engine/internal/pipefile"
)

// Snapshot describes every configured step by value. Blank and unconfigured steps
// are skipped.
func (p *Pipeline) Snapshot() []category.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()

	records := make([]category.Record, 0, len(p.steps))
	for _, cat := range p.steps {
		if rec, ok := cat.Snapshot(); ok {
			records = append(records, rec)
		}
	}
	return records
}

// SavePipelineJSON writes the configured steps to path. name only shows up in logs.
func (p *Pipeline) SavePipelineJSON(name, path string) error {
	records := p.Snapshot()
	if err := pipefile.Write(path, records); err != nil {
		return err
	}

	p.logger.Info(component, "pipeline saved", map[string]interface{}{
		"name":  name,
		"path":  path,
		"steps": len(records),
	})
	return nil
}

// LoadPipelineJSON replaces the step list with the one stored at path. Nothing changes
// unless the whole document is valid.
func (p *Pipeline) LoadPipelineJSON(path string) error {
	records, err := pipefile.Read(path)
	if err != nil {
		return err
	}
	return p.Load(records)
}

// Load replaces the step list with freshly built steps for records.
func (p *Pipeline) Load(records []category.Record) error {
	steps, err := pipefile.Build(records, p.registry)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.Wrap(ErrRunning, "load pipeline")
	}
	p.replaceStepsLocked(steps)

	p.logger.Info(component, "pipeline loaded", map[string]interface{}{
		"steps": len(steps),
	})
	return nil
}
