package eventbus

import "nefi-engine/internal/category"

// Kind classifies events for subscription.
type Kind string

const (
	KindProgress    Kind = "progress"
	KindCacheAdd    Kind = "cache_add"
	KindCacheRemove Kind = "cache_remove"
	KindCacheInput  Kind = "cache_input"
	KindFinished    Kind = "finished"
)

// Event is any notification carried by the bus.
type Event interface {
	Kind() Kind
}

// ProgressEvent reports a completed step. Value is a percentage in [0, 100].
type ProgressEvent struct {
	RunID  string
	Value  int
	Report string
}

// CacheAddEvent announces a new or overwritten result for Cat, stored at Path.
type CacheAddEvent struct {
	Cat  *category.Category
	Path string
}

// CacheRemoveEvent announces that Cat's result was retired.
type CacheRemoveEvent struct {
	Cat *category.Category
}

// CacheInputEvent announces a new input image.
type CacheInputEvent struct {
	Path string
}

// FinishedEvent terminates every run, successful or not.
type FinishedEvent struct {
	RunID string
	Err   error
}

func (ProgressEvent) Kind() Kind    { return KindProgress }
func (CacheAddEvent) Kind() Kind    { return KindCacheAdd }
func (CacheRemoveEvent) Kind() Kind { return KindCacheRemove }
func (CacheInputEvent) Kind() Kind  { return KindCacheInput }
func (FinishedEvent) Kind() Kind    { return KindFinished }
