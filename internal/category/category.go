package category

import (
	"sync"

	"github.com/pkg/errors"

	"nefi-engine/internal/algorithm"
)

// BlankName is the name carried by a placeholder step that has no category yet.
const BlankName = "blank"

var ErrBlank = errors.New("category not chosen")

// Category is one pipeline step. Its pointer is the step identity: cache entries and
// presentation widgets hold on to it across reorders.
type Category struct {
	mu     sync.RWMutex
	def    *Definition
	active algorithm.Algorithm
}

// NewBlank returns a placeholder step awaiting configuration.
func NewBlank() *Category {
	return &Category{}
}

func New(def *Definition) *Category {
	return &Category{def: def}
}

func (c *Category) Name() string {
	if c.def == nil {
		return BlankName
	}
	return c.def.name
}

func (c *Category) IsBlank() bool {
	return c.def == nil
}

func (c *Category) Definition() *Definition {
	return c.def
}

// Active returns the selected algorithm, or nil if none was chosen yet.
func (c *Category) Active() algorithm.Algorithm {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// SelectAlgorithm replaces the active algorithm with a fresh default instance.
// Previous parameter values are discarded.
func (c *Category) SelectAlgorithm(name string) error {
	if c.def == nil {
		return errors.Wrapf(ErrBlank, "cannot select %q", name)
	}

	alg, err := c.def.New(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.active = alg
	c.mu.Unlock()
	return nil
}

// Snapshot captures the configured step by value. ok is false when no algorithm is active.
func (c *Category) Snapshot() (rec Record, ok bool) {
	alg := c.Active()
	if alg == nil {
		return Record{}, false
	}
	return Record{
		Category:   c.Name(),
		Algorithm:  alg.Name(),
		Parameters: alg.Values(),
	}, true
}

func (c *Category) String() string {
	if alg := c.Active(); alg != nil {
		return c.Name() + " - " + alg.Name()
	}
	return c.Name()
}
