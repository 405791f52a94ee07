// Package cache keeps the last computed image of every live pipeline step plus the
// raw input. Mutations are announced on the event bus; there is no polling API.
package cache

import (
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"nefi-engine/internal/category"
	"nefi-engine/internal/eventbus"
	"nefi-engine/internal/logger"
)

// Saver persists a result image. The pipeline wires the imaging codec here.
type Saver interface {
	Save(path string, img image.Image) error
}

// Entry is one cached image. Cat is nil for the input entry. Index is the position the
// step held when the result was produced and names the result file; it is not updated
// when steps move, so ask the pipeline for the live position.
type Entry struct {
	Cat       *category.Category
	Index     int
	Image     image.Image
	Path      string
	Settings  category.Record
	RunID     string
	CreatedAt time.Time
}

// IsInput reports whether the entry holds the raw input image.
func (e *Entry) IsInput() bool {
	return e.Cat == nil
}

type ResultCache struct {
	mu        sync.RWMutex
	input     *Entry
	steps     map[*category.Category]*Entry
	outputDir string
	saver     Saver
	publisher eventbus.Publisher
	logger    logger.Logger
}

func New(saver Saver, publisher eventbus.Publisher, log logger.Logger) *ResultCache {
	return &ResultCache{
		steps:     make(map[*category.Category]*Entry),
		saver:     saver,
		publisher: publisher,
		logger:    log,
	}
}

// SetOutputDir sets where step results are written. An empty dir keeps results in
// memory only and their events carry an empty path.
func (c *ResultCache) SetOutputDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputDir = dir
}

// SetInput replaces the input entry. Every step entry is stale from now on and is
// retired, in the given step order, before the CacheInputEvent goes out.
func (c *ResultCache) SetInput(path string, img image.Image, order []*category.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cat := range c.orderedLocked(order) {
		c.retireLocked(cat)
	}
	c.input = &Entry{
		Index:     -1,
		Image:     img,
		Path:      path,
		CreatedAt: time.Now(),
	}
	c.publisher.Publish(eventbus.CacheInputEvent{Path: path})
}

// Put stores the result of the step at index, overwriting any earlier entry for cat.
func (c *ResultCache) Put(cat *category.Category, index int, img image.Image, settings category.Record, runID string) (*Entry, error) {
	if cat == nil {
		return nil, errors.New("cache: nil category")
	}

	c.mu.RLock()
	dir := c.outputDir
	c.mu.RUnlock()

	// Disk I/O happens outside the lock.
	path := ""
	if dir != "" {
		path = filepath.Join(dir, ResultFileName(index, settings))
		if err := c.saver.Save(path, img); err != nil {
			return nil, errors.Wrapf(err, "write result %s", path)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &Entry{
		Cat:       cat,
		Index:     index,
		Image:     img,
		Path:      path,
		Settings:  settings,
		RunID:     runID,
		CreatedAt: time.Now(),
	}
	c.steps[cat] = entry
	c.publisher.Publish(eventbus.CacheAddEvent{Cat: cat, Path: path})

	c.logger.Debug("ResultCache", "entry stored", map[string]interface{}{
		"index": index,
		"step":  cat.String(),
		"path":  path,
	})
	return entry, nil
}

// Remove retires cat's entry. It reports whether an entry existed; the
// CacheRemoveEvent is only published in that case.
func (c *ResultCache) Remove(cat *category.Category) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retireLocked(cat)
}

// Retain retires every step entry whose category is not kept, in the given step order.
func (c *ResultCache) Retain(order []*category.Category, keep func(cat *category.Category) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	retired := 0
	for _, cat := range c.orderedLocked(order) {
		if !keep(cat) && c.retireLocked(cat) {
			retired++
		}
	}
	return retired
}

// Republish announces cat's current entry again, if there is one.
func (c *ResultCache) Republish(cat *category.Category) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.steps[cat]
	if !ok {
		return false
	}
	c.publisher.Publish(eventbus.CacheAddEvent{Cat: cat, Path: entry.Path})
	return true
}

func (c *ResultCache) Get(cat *category.Category) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.steps[cat]
	return entry, ok
}

func (c *ResultCache) Input() (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.input, c.input != nil
}

// Len counts step entries plus the input entry.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.steps)
	if c.input != nil {
		n++
	}
	return n
}

// orderedLocked lists cached categories in the caller's step order. Entries for
// categories missing from order follow, by the position they were produced at.
func (c *ResultCache) orderedLocked(order []*category.Category) []*category.Category {
	cats := lo.Filter(order, func(cat *category.Category, _ int) bool {
		_, ok := c.steps[cat]
		return ok
	})
	cats = lo.Uniq(cats)

	rest := lo.Filter(lo.Keys(c.steps), func(cat *category.Category, _ int) bool {
		return !lo.Contains(cats, cat)
	})
	sort.Slice(rest, func(i, j int) bool {
		return c.steps[rest[i]].Index < c.steps[rest[j]].Index
	})
	return append(cats, rest...)
}

func (c *ResultCache) retireLocked(cat *category.Category) bool {
	if _, ok := c.steps[cat]; !ok {
		return false
	}
	delete(c.steps, cat)
	c.publisher.Publish(eventbus.CacheRemoveEvent{Cat: cat})
	return true
}

// ResultFileName names the file written for the step at index.
func ResultFileName(index int, settings category.Record) string {
	return fmt.Sprintf("%02d_%s_%s.png", index, slug(settings.Category), slug(settings.Algorithm))
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}
