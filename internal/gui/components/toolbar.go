package components

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// ToolbarHandlers are the actions reachable from the toolbar.
type ToolbarHandlers struct {
	OpenInput      func()
	ChooseOutput   func()
	OpenPipeline   func()
	SavePipeline   func()
	SelectFavorite func(name string)
	AddStep        func()
	Run            func()
	Clear          func()
}

type Toolbar struct {
	container     *fyne.Container
	buttons       []*widget.Button
	favorites     *widget.Select
	progress      *widget.ProgressBar
	statusLabel   *widget.Label
	outputLabel   *widget.Label
}

func NewToolbar(h ToolbarHandlers) *Toolbar {
	t := &Toolbar{}

	open := widget.NewButtonWithIcon("Input", theme.FileImageIcon(), h.OpenInput)
	open.Importance = widget.HighImportance
	output := widget.NewButtonWithIcon("Output", theme.FolderOpenIcon(), h.ChooseOutput)
	load := widget.NewButtonWithIcon("Open", theme.DocumentIcon(), h.OpenPipeline)
	save := widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), h.SavePipeline)
	add := widget.NewButtonWithIcon("Step", theme.ContentAddIcon(), h.AddStep)
	run := widget.NewButtonWithIcon("Run", theme.MediaPlayIcon(), h.Run)
	run.Importance = widget.HighImportance
	clear := widget.NewButtonWithIcon("Clear", theme.ContentClearIcon(), h.Clear)
	t.buttons = []*widget.Button{open, output, load, save, add, run, clear}

	t.favorites = widget.NewSelect(nil, func(name string) {
		if name != "" {
			h.SelectFavorite(name)
		}
	})
	t.favorites.PlaceHolder = "Favorites"

	t.progress = widget.NewProgressBar()
	t.progress.Max = 100
	t.statusLabel = widget.NewLabel("Ready")
	t.outputLabel = widget.NewLabel("")

	actions := container.NewHBox(open, output, widget.NewSeparator(), load, save, t.favorites,
		widget.NewSeparator(), add, clear, widget.NewSeparator(), run)
	status := container.NewBorder(nil, nil, t.statusLabel, t.outputLabel, t.progress)
	t.container = container.NewVBox(actions, status)
	return t
}

func (t *Toolbar) GetContainer() *fyne.Container {
	return t.container
}

func (t *Toolbar) SetEnabled(enabled bool) {
	for _, b := range t.buttons {
		if enabled {
			b.Enable()
		} else {
			b.Disable()
		}
	}
	if enabled {
		t.favorites.Enable()
	} else {
		t.favorites.Disable()
	}
}

// SetFavorites replaces the favorites choices without triggering a load.
func (t *Toolbar) SetFavorites(names []string) {
	t.favorites.Options = names
	t.favorites.ClearSelected()
	t.favorites.Refresh()
}

func (t *Toolbar) SetStatus(status string) {
	t.statusLabel.SetText(status)
}

func (t *Toolbar) SetProgress(value int) {
	t.progress.SetValue(float64(value))
}

func (t *Toolbar) SetOutputDir(dir string) {
	t.outputLabel.SetText(dir)
}
