package algorithm

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
)

// Algorithm is an opaque image transform with a typed, mutable parameter set.
// Parameter values are only changed through SetParameter.
type Algorithm interface {
	Name() string
	// Category names the category this algorithm belongs to. It is a back-reference only.
	Category() string
	Parameters() []Parameter
	Parameter(name string) (Parameter, bool)
	SetParameter(name string, value interface{}) error
	Values() map[string]interface{}
	Run(ctx context.Context, input image.Image) (image.Image, error)
}

// Factory builds a fresh algorithm instance with default parameter values.
type Factory func() Algorithm

// Base carries the identity and parameter bookkeeping shared by concrete algorithms.
// Concrete types embed *Base and implement Run.
type Base struct {
	mu       sync.RWMutex
	name     string
	category string
	params   []Parameter
}

func NewBase(name, category string, params ...Parameter) *Base {
	owned := make([]Parameter, len(params))
	for i, p := range params {
		p.Value = p.Default
		owned[i] = p.clone()
	}

	return &Base{
		name:     name,
		category: category,
		params:   owned,
	}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Category() string {
	return b.category
}

// Parameters returns a copy in declaration order.
func (b *Base) Parameters() []Parameter {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Parameter, len(b.params))
	for i, p := range b.params {
		out[i] = p.clone()
	}
	return out
}

func (b *Base) Parameter(name string) (Parameter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	i := b.indexOf(name)
	if i < 0 {
		return Parameter{}, false
	}
	return b.params[i].clone(), true
}

func (b *Base) SetParameter(name string, value interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(name)
	if i < 0 {
		return errors.Wrapf(ErrUnknownParameter, "%s has no parameter %q", b.name, name)
	}

	normalized, err := b.params[i].Normalize(value)
	if err != nil {
		return err
	}
	b.params[i].Value = normalized
	return nil
}

// Values returns the current parameter values keyed by name.
func (b *Base) Values() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	values := make(map[string]interface{}, len(b.params))
	for _, p := range b.params {
		values[p.Name] = p.Value
	}
	return values
}

func (b *Base) Int(name string) int {
	v, _ := b.value(name).(int)
	return v
}

func (b *Base) Float(name string) float64 {
	v, _ := b.value(name).(float64)
	return v
}

func (b *Base) Bool(name string) bool {
	v, _ := b.value(name).(bool)
	return v
}

func (b *Base) Choice(name string) string {
	v, _ := b.value(name).(string)
	return v
}

func (b *Base) value(name string) interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if i := b.indexOf(name); i >= 0 {
		return b.params[i].Value
	}
	return nil
}

func (b *Base) indexOf(name string) int {
	for i, p := range b.params {
		if p.Name == name {
			return i
		}
	}
	return -1
}
