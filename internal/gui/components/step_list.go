package components

import (
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"nefi-engine/internal/category"
)

// StepHandlers are the edits a step row can request. Steps are identified by their
// Category so a row stays valid while other rows move.
type StepHandlers struct {
	ChangeCategory  func(cat *category.Category, name string)
	ChangeAlgorithm func(cat *category.Category, name string)
	SetParameter    func(cat *category.Category, name string, value interface{}) error
	Move            func(cat *category.Category, delta int)
	Delete          func(cat *category.Category)
}

// StepList renders the pipeline steps top to bottom.
type StepList struct {
	container  *fyne.Container
	categories []string
	handlers   StepHandlers
	steps      []*category.Category
	disabled   bool
}

func NewStepList(categories []string, handlers StepHandlers) *StepList {
	return &StepList{
		container:  container.NewVBox(),
		categories: append([]string(nil), categories...),
		handlers:   handlers,
	}
}

func (l *StepList) GetContainer() *fyne.Container {
	return l.container
}

// Rebuild replaces every row with rows for steps.
func (l *StepList) Rebuild(steps []*category.Category) {
	l.steps = append(l.steps[:0], steps...)
	l.container.RemoveAll()
	for i := range l.steps {
		l.container.Add(l.newRow(i))
	}
	l.container.Refresh()
}

// SetEnabled toggles every input while a run is in flight.
func (l *StepList) SetEnabled(enabled bool) {
	l.disabled = !enabled
	l.Rebuild(l.steps)
}

func (l *StepList) newRow(index int) fyne.CanvasObject {
	cat := l.steps[index]
	var selects []*widget.Select

	categorySelect := widget.NewSelect(l.categories, nil)
	categorySelect.PlaceHolder = "Choose category"
	if !cat.IsBlank() {
		categorySelect.SetSelected(cat.Name())
	}
	categorySelect.OnChanged = func(name string) {
		if name != cat.Name() {
			l.handlers.ChangeCategory(cat, name)
		}
	}
	selects = append(selects, categorySelect)

	header := container.NewHBox(widget.NewLabel(strconv.Itoa(index+1)+"."), categorySelect)
	var body fyne.CanvasObject = container.NewVBox()

	if def := cat.Definition(); def != nil {
		algorithmSelect := widget.NewSelect(def.AlgorithmNames(), nil)
		algorithmSelect.PlaceHolder = "Choose algorithm"
		active := cat.Active()
		if active != nil {
			algorithmSelect.SetSelected(active.Name())
		}
		algorithmSelect.OnChanged = func(name string) {
			l.handlers.ChangeAlgorithm(cat, name)
		}
		selects = append(selects, algorithmSelect)
		header.Add(algorithmSelect)

		if active != nil {
			panel := NewParameterPanel()
			panel.SetParameterChangeHandler(func(name string, value interface{}) error {
				return l.handlers.SetParameter(cat, name, value)
			})
			panel.UpdateParameters(active.Parameters())
			body = panel.GetContainer()
		}
	}

	up := widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() { l.handlers.Move(cat, -1) })
	down := widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() { l.handlers.Move(cat, 1) })
	remove := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() { l.handlers.Delete(cat) })

	last := len(l.steps) - 1
	if index == 0 || cat.IsBlank() {
		up.Disable()
	}
	// Nothing moves below the trailing blank.
	if index == last || cat.IsBlank() || (index == last-1 && l.steps[last].IsBlank()) {
		down.Disable()
	}
	if l.disabled {
		for _, b := range []*widget.Button{up, down, remove} {
			b.Disable()
		}
		for _, s := range selects {
			s.Disable()
		}
	}

	controls := container.NewHBox(up, down, remove)
	top := container.NewBorder(nil, nil, nil, controls, header)
	return widget.NewCard("", "", container.NewBorder(top, nil, nil, nil, body))
}
