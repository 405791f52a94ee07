package gui

import (
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"github.com/pkg/errors"

	"nefi-engine/internal/category"
	"nefi-engine/internal/imaging"
	"nefi-engine/internal/pipeline"
)

const alreadyRemoved = "Already removed from pipeline"

func (a *App) handleOpenInput() {
	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			a.showError("File Open Error", err)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		a.toolbar.SetStatus("Loading image...")
		go func() {
			err := a.pipeline.SetInput(path)
			fyne.Do(func() {
				if err != nil {
					a.showError("Image Load Error", err)
					a.toolbar.SetStatus("Ready")
					return
				}
				a.toolbar.SetStatus("Loaded " + filepath.Base(path))
			})
		}()
	}, a.window)
	open.SetFilter(storage.NewExtensionFileFilter(imaging.Extensions()))
	open.Show()
}

func (a *App) handleChooseOutput() {
	dialog.ShowFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil {
			a.showError("Folder Error", err)
			return
		}
		if dir == nil {
			return
		}
		if err := a.pipeline.SetOutputDir(dir.Path()); err != nil {
			a.showError("Output Directory Error", err)
			return
		}
		a.toolbar.SetOutputDir(dir.Path())
	}, a.window)
}

func (a *App) handleOpenPipeline() {
	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			a.showError("File Open Error", err)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		a.loadPipeline(path)
	}, a.window)
	open.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	open.Show()
}

func (a *App) handleSelectFavorite(name string) {
	path, ok := a.favPaths[name]
	if !ok {
		return
	}
	a.loadPipeline(path)
}

func (a *App) loadPipeline(path string) {
	if err := a.pipeline.LoadPipelineJSON(path); err != nil {
		a.showError("Pipeline Load Error", err)
		return
	}
	a.refreshSteps()
	a.toolbar.SetStatus("Pipeline loaded from " + filepath.Base(path))
}

func (a *App) handleSavePipeline() {
	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			a.showError("File Save Error", err)
			return
		}
		if writer == nil {
			return
		}
		path := writer.URI().Path()
		writer.Close()

		if filepath.Ext(path) != ".json" {
			path += ".json"
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := a.pipeline.SavePipelineJSON(name, path); err != nil {
			a.showError("Pipeline Save Error", err)
			return
		}
		a.toolbar.SetStatus("Pipeline saved to " + path)
	}, a.window)
	save.SetFileName("pipeline.json")
	if a.favDir != "" {
		if uri, err := storage.ListerForURI(storage.NewFileURI(a.favDir)); err == nil {
			save.SetLocation(uri)
		}
	}
	save.Show()
}

func (a *App) handleAddStep() {
	if _, err := a.pipeline.NewCategory(-1); err != nil {
		if errors.Is(err, pipeline.ErrBlankExists) {
			a.toolbar.SetStatus("Choose a category for the empty step first")
			return
		}
		a.showError("Add Step Error", err)
		return
	}
	a.refreshSteps()
}

func (a *App) handleRun() {
	a.setEnabled(false)
	started, err := a.worker.Start(a.ctx)
	if err != nil {
		a.setEnabled(true)
		var cfg *pipeline.ConfigError
		if errors.As(err, &cfg) {
			dialog.ShowInformation("Pipeline not ready", cfg.Error(), a.window)
			return
		}
		a.showError("Run Error", err)
		return
	}
	if !started {
		a.toolbar.SetStatus("A run is already in progress")
		return
	}

	a.toolbar.SetProgress(0)
	a.toolbar.SetStatus("Running...")
}

func (a *App) handleClear() {
	if err := a.pipeline.Clear(); err != nil {
		a.showError("Clear Error", err)
		return
	}
	a.refreshSteps()
	a.display.SetResultImage("", nil)
}

func (a *App) handleChangeCategory(cat *category.Category, name string) {
	a.editStep(cat, func(index int) error {
		return a.pipeline.ChangeCategory(name, index)
	})
}

func (a *App) handleChangeAlgorithm(cat *category.Category, name string) {
	a.editStep(cat, func(index int) error {
		return a.pipeline.ChangeAlgorithm(name, index)
	})
}

func (a *App) handleSetParameter(cat *category.Category, name string, value interface{}) error {
	index, err := a.pipeline.Index(cat)
	if err != nil {
		return errors.New(alreadyRemoved)
	}
	return a.pipeline.SetParameter(index, name, value)
}

// handleRestoreSettings puts the settings that produced a result back on its step.
func (a *App) handleRestoreSettings(cat *category.Category, settings category.Record) {
	if a.editStep(cat, func(index int) error {
		return a.pipeline.RestoreSettings(index, settings)
	}) {
		a.toolbar.SetStatus("Restored " + settings.Algorithm + " settings")
	}
}

func (a *App) handleMove(cat *category.Category, delta int) {
	a.editStep(cat, func(index int) error {
		return a.pipeline.Swap(index, index+delta)
	})
}

func (a *App) handleDelete(cat *category.Category) {
	a.editStep(cat, func(index int) error {
		return a.pipeline.DeleteCategory(index)
	})
}

// editStep resolves cat to its current position, applies edit and redraws the list.
// It reports whether the edit was applied.
func (a *App) editStep(cat *category.Category, edit func(index int) error) bool {
	defer a.refreshSteps()

	index, err := a.pipeline.Index(cat)
	if errors.Is(err, pipeline.ErrNotFound) {
		a.toolbar.SetStatus(alreadyRemoved)
		return false
	}
	if err == nil {
		err = edit(index)
	}
	if err != nil {
		a.showError("Pipeline Error", err)
		return false
	}
	return true
}

func (a *App) showError(title string, err error) {
	a.logger.Error(component, err, map[string]interface{}{"title": title})
	dialog.ShowError(errors.Wrap(err, title), a.window)
}
