package category

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"nefi-engine/internal/algorithm"
)

var (
	ErrUnknownCategory  = errors.New("unknown category")
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

type factoryEntry struct {
	name    string
	factory algorithm.Factory
}

// Definition is the static description of a category: its name and the algorithms
// that may be selected for it, in display order.
type Definition struct {
	name    string
	entries []factoryEntry
}

func NewDefinition(name string) *Definition {
	return &Definition{name: name}
}

// Register adds or replaces an algorithm factory. It returns d for chaining.
func (d *Definition) Register(name string, factory algorithm.Factory) *Definition {
	for i, e := range d.entries {
		if e.name == name {
			d.entries[i].factory = factory
			return d
		}
	}
	d.entries = append(d.entries, factoryEntry{name: name, factory: factory})
	return d
}

func (d *Definition) Name() string {
	return d.name
}

func (d *Definition) AlgorithmNames() []string {
	return lo.Map(d.entries, func(e factoryEntry, _ int) string { return e.name })
}

func (d *Definition) Has(name string) bool {
	return lo.ContainsBy(d.entries, func(e factoryEntry) bool { return e.name == name })
}

// New builds a fresh instance of the named algorithm with default parameters.
// Only this definition's algorithms are visible.
func (d *Definition) New(name string) (algorithm.Algorithm, error) {
	e, ok := lo.Find(d.entries, func(e factoryEntry) bool { return e.name == name })
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAlgorithm, "%q in category %q", name, d.name)
	}
	return e.factory(), nil
}

// Registry is the ordered catalogue of categories available to a pipeline.
type Registry struct {
	defs []*Definition
}

func NewRegistry(defs ...*Definition) *Registry {
	return &Registry{defs: append([]*Definition(nil), defs...)}
}

func (r *Registry) Names() []string {
	return lo.Map(r.defs, func(d *Definition, _ int) string { return d.name })
}

func (r *Registry) Definitions() []*Definition {
	return append([]*Definition(nil), r.defs...)
}

func (r *Registry) Lookup(name string) (*Definition, error) {
	d, ok := lo.Find(r.defs, func(d *Definition) bool { return d.name == name })
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCategory, "%q", name)
	}
	return d, nil
}

// Build validates rec against the registry and returns a configured category.
// Parameters missing from rec keep their defaults.
func (r *Registry) Build(rec Record) (*Category, error) {
	def, err := r.Lookup(rec.Category)
	if err != nil {
		return nil, err
	}

	cat := New(def)
	if err := cat.SelectAlgorithm(rec.Algorithm); err != nil {
		return nil, err
	}

	names := lo.Keys(rec.Parameters)
	sort.Strings(names)
	for _, name := range names {
		if err := cat.Active().SetParameter(name, rec.Parameters[name]); err != nil {
			return nil, err
		}
	}

	return cat, nil
}
