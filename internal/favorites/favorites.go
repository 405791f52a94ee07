// Package favorites lists the saved pipelines kept in a directory and reports when
// that directory changes.
package favorites

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"nefi-engine/internal/logger"
)

const component = "Favorites"

// Favorite is a pipeline file. Name is the file name without the .json extension.
type Favorite struct {
	Name string
	Path string
}

func isPipeline(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}

// Scan returns the pipelines in dir sorted by name. A missing dir has none.
func Scan(dir string) ([]Favorite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "scan favorites %s", dir)
	}

	var out []Favorite
	for _, e := range entries {
		if e.IsDir() || !isPipeline(e.Name()) {
			continue
		}
		out = append(out, Favorite{
			Name: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Watcher rescans a favorites directory whenever a pipeline file in it is created,
// written, renamed or removed.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange func([]Favorite)
	logger   logger.Logger

	once sync.Once
	wg   sync.WaitGroup
}

// Watch starts watching dir, creating it if needed. onChange runs on the watcher
// goroutine with the fresh listing.
func Watch(dir string, onChange func([]Favorite), log logger.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create favorites dir %s", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}

	w := &Watcher{dir: dir, watcher: fw, onChange: onChange, logger: log}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isPipeline(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			list, err := Scan(w.dir)
			if err != nil {
				w.logger.Error(component, err, map[string]interface{}{"dir": w.dir})
				continue
			}
			w.logger.Debug(component, "favorites changed", map[string]interface{}{
				"file":  filepath.Base(event.Name),
				"op":    event.Op.String(),
				"count": len(list),
			})
			w.onChange(list)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(component, err, map[string]interface{}{"dir": w.dir})
		}
	}
}

// Shutdown stops watching and waits for the watcher goroutine to exit.
func (w *Watcher) Shutdown() {
	w.once.Do(func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Error(component, err, nil)
		}
		w.wg.Wait()
	})
}
