// Package gui is the fyne front end. It only talks to the engine through the pipeline
// operations and the event bus.
package gui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"

	"nefi-engine/internal/eventbus"
	"nefi-engine/internal/favorites"
	"nefi-engine/internal/gui/components"
	"nefi-engine/internal/logger"
	"nefi-engine/internal/pipeline"
	"nefi-engine/internal/worker"
)

const (
	component    = "GUI"
	AppName      = "NEFI"
	AppID        = "org.nefi.engine"
	WindowWidth  = 1280
	WindowHeight = 820
)

// Deps are the engine parts the window drives.
type Deps struct {
	Pipeline     *pipeline.Pipeline
	Worker       *worker.Worker
	Bus          *eventbus.Bus
	FavoritesDir string
	Logger       logger.Logger
}

type App struct {
	window   fyne.Window
	pipeline *pipeline.Pipeline
	worker   *worker.Worker
	bus      *eventbus.Bus
	logger   logger.Logger

	toolbar  *components.Toolbar
	steps    *components.StepList
	results  *components.ResultList
	display  *components.ImageDisplay
	subs     []eventbus.Subscription
	favDir   string
	favPaths map[string]string

	ctx context.Context
}

// New builds the main window. ctx bounds every run started from the window.
func New(ctx context.Context, fyneApp fyne.App, deps Deps) *App {
	window := fyneApp.NewWindow(AppName)
	window.Resize(fyne.NewSize(WindowWidth, WindowHeight))

	a := &App{
		window:   window,
		pipeline: deps.Pipeline,
		worker:   deps.Worker,
		bus:      deps.Bus,
		logger:   deps.Logger,
		favDir:   deps.FavoritesDir,
		favPaths: make(map[string]string),
		ctx:      ctx,
	}

	a.toolbar = components.NewToolbar(components.ToolbarHandlers{
		OpenInput:      a.handleOpenInput,
		ChooseOutput:   a.handleChooseOutput,
		OpenPipeline:   a.handleOpenPipeline,
		SavePipeline:   a.handleSavePipeline,
		SelectFavorite: a.handleSelectFavorite,
		AddStep:        a.handleAddStep,
		Run:            a.handleRun,
		Clear:          a.handleClear,
	})
	a.steps = components.NewStepList(a.pipeline.AvailableCategories(), components.StepHandlers{
		ChangeCategory:  a.handleChangeCategory,
		ChangeAlgorithm: a.handleChangeAlgorithm,
		SetParameter:    a.handleSetParameter,
		Move:            a.handleMove,
		Delete:          a.handleDelete,
	})
	a.results = components.NewResultList()
	a.display = components.NewImageDisplay()
	a.toolbar.SetOutputDir(a.pipeline.OutputDir())

	a.setupMenus()
	a.window.SetContent(a.layout())
	a.subscribe()
	a.refreshSteps()
	return a
}

func (a *App) layout() fyne.CanvasObject {
	stepPane := container.NewVScroll(a.steps.GetContainer())
	resultPane := container.NewVScroll(a.results.GetContainer())
	resultPane.SetMinSize(fyne.NewSize(200, 0))

	right := container.NewBorder(nil, nil, resultPane, nil, a.display.GetContainer())
	split := container.NewHSplit(stepPane, right)
	split.SetOffset(0.35)

	return container.NewBorder(a.toolbar.GetContainer(), nil, nil, nil, split)
}

func (a *App) Window() fyne.Window {
	return a.window
}

// Close stops listening to the bus. It does not stop the engine.
func (a *App) Close() {
	for _, sub := range a.subs {
		a.bus.Unsubscribe(sub)
	}
	a.subs = nil
}

// SetFavorites is safe to call from any goroutine.
func (a *App) SetFavorites(favs []favorites.Favorite) {
	fyne.Do(func() {
		a.favPaths = make(map[string]string, len(favs))
		names := make([]string, 0, len(favs))
		for _, f := range favs {
			a.favPaths[f.Name] = f.Path
			names = append(names, f.Name)
		}
		a.toolbar.SetFavorites(names)
	})
}

func (a *App) setEnabled(enabled bool) {
	a.toolbar.SetEnabled(enabled)
	a.steps.SetEnabled(enabled)
}

func (a *App) refreshSteps() {
	a.steps.Rebuild(a.pipeline.Steps())
	a.refreshResults()
}

// refreshResults lists the input followed by every cached step result in step order.
func (a *App) refreshResults() {
	var results []components.Result

	if input, ok := a.pipeline.Cache().Input(); ok {
		img := input.Image
		results = append(results, components.Result{
			Title: "Input",
			Path:  input.Path,
			Show:  func() { a.display.SetResultImage("Input", img) },
		})
	}
	for _, res := range a.pipeline.Results() {
		title := stepTitle(res.Position, res.Entry.Settings.Category, res.Entry.Settings.Algorithm)
		img, cat, settings := res.Entry.Image, res.Cat, res.Entry.Settings
		results = append(results, components.Result{
			Title:    title,
			Path:     res.Entry.Path,
			Run:      runLabel(res.Entry.RunID, res.Entry.CreatedAt),
			Settings: components.FormatSettings(settings),
			Show:     func() { a.display.SetResultImage(title, img) },
			Restore:  func() { a.handleRestoreSettings(cat, settings) },
		})
	}
	a.results.SetResults(results)
}
