package pipeline

import (
	"fmt"

	"github.com/pkg/errors"

	"nefi-engine/internal/category"
)

var (
	// ErrNotFound is returned by identity lookups on a step that is no longer part of
	// the pipeline. Callers treat it as "already removed".
	ErrNotFound         = errors.New("step not in pipeline")
	ErrRunning          = errors.New("pipeline is running")
	ErrBlankExists      = errors.New("pipeline already has a blank step")
	ErrInvalidPosition  = errors.New("invalid step position")
	ErrBlankNotLast     = errors.New("blank step must stay last")
	ErrNotConfigured    = errors.New("step has no algorithm")
	ErrSettingsMismatch = errors.New("settings belong to another category")
)

// ConfigError explains why a pipeline may not run. Index is -1 and Category nil when
// the problem is not tied to a step.
type ConfigError struct {
	Message  string
	Index    int
	Category *category.Category
}

func (e *ConfigError) Error() string {
	if e.Index < 0 {
		return e.Message
	}
	return fmt.Sprintf("step %d (%s): %s", e.Index, e.Category.Name(), e.Message)
}

// StepError wraps a failure raised while running one step.
type StepError struct {
	Index     int
	Category  string
	Algorithm string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s - %s): %v", e.Index, e.Category, e.Algorithm, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Cause() error {
	return e.Err
}
