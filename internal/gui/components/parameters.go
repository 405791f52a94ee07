package components

import (
	"math"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"nefi-engine/internal/algorithm"
)

// ParameterPanel renders one widget per algorithm parameter, picked from its kind.
type ParameterPanel struct {
	container         *fyne.Container
	currentWidgets    map[string]fyne.CanvasObject
	onParameterChange func(string, interface{}) error
}

func NewParameterPanel() *ParameterPanel {
	return &ParameterPanel{
		container:      container.NewVBox(),
		currentWidgets: make(map[string]fyne.CanvasObject),
	}
}

func (pp *ParameterPanel) GetContainer() *fyne.Container {
	return pp.container
}

// SetParameterChangeHandler installs the setter. A returned error is shown next to the
// parameter.
func (pp *ParameterPanel) SetParameterChangeHandler(handler func(string, interface{}) error) {
	pp.onParameterChange = handler
}

// Widget returns the input widget built for name, if any.
func (pp *ParameterPanel) Widget(name string) (fyne.CanvasObject, bool) {
	w, ok := pp.currentWidgets[name]
	return w, ok
}

func (pp *ParameterPanel) UpdateParameters(params []algorithm.Parameter) {
	pp.container.RemoveAll()
	pp.currentWidgets = make(map[string]fyne.CanvasObject)

	for _, p := range params {
		switch p.Kind {
		case algorithm.IntRange, algorithm.FloatRange:
			pp.addSlider(p)
		case algorithm.Bool:
			pp.addCheckbox(p)
		case algorithm.Enum:
			pp.addSelect(p)
		}
	}
	pp.container.Refresh()
}

func (pp *ParameterPanel) addSlider(p algorithm.Parameter) {
	isInt := p.Kind == algorithm.IntRange
	format := func(v float64) string {
		if isInt {
			return p.Name + ": " + strconv.Itoa(int(v))
		}
		return p.Name + ": " + strconv.FormatFloat(v, 'f', 2, 64)
	}

	current, _ := toFloat(p.Value)
	valueLabel := widget.NewLabel(format(current))
	errLabel := widget.NewLabel("")

	slider := widget.NewSlider(p.Min, p.Max)
	slider.Step = p.Step
	if slider.Step <= 0 {
		slider.Step = 1
		if !isInt {
			slider.Step = 0.01
		}
	}
	slider.SetValue(current)
	slider.OnChanged = func(v float64) {
		var value interface{} = v
		if isInt {
			value = int(math.Round(v))
			v = math.Round(v)
		}
		valueLabel.SetText(format(v))
		pp.apply(p.Name, value, errLabel)
	}

	pp.add(p, container.NewVBox(valueLabel, slider, errLabel), slider)
}

func (pp *ParameterPanel) addCheckbox(p algorithm.Parameter) {
	errLabel := widget.NewLabel("")
	checkbox := widget.NewCheck(p.Name, nil)
	if value, ok := p.Value.(bool); ok {
		checkbox.SetChecked(value)
	}
	checkbox.OnChanged = func(checked bool) {
		pp.apply(p.Name, checked, errLabel)
	}

	pp.add(p, container.NewVBox(checkbox, errLabel), checkbox)
}

func (pp *ParameterPanel) addSelect(p algorithm.Parameter) {
	errLabel := widget.NewLabel("")
	sel := widget.NewSelect(p.Options, nil)
	if value, ok := p.Value.(string); ok {
		sel.SetSelected(value)
	}
	sel.OnChanged = func(value string) {
		pp.apply(p.Name, value, errLabel)
	}

	pp.add(p, container.NewVBox(widget.NewLabel(p.Name), sel, errLabel), sel)
}

func (pp *ParameterPanel) add(p algorithm.Parameter, row fyne.CanvasObject, input fyne.CanvasObject) {
	if p.Description != "" {
		row = container.NewVBox(row, widget.NewLabelWithStyle(p.Description, fyne.TextAlignLeading, fyne.TextStyle{Italic: true}))
	}
	pp.container.Add(row)
	pp.currentWidgets[p.Name] = input
}

func (pp *ParameterPanel) apply(name string, value interface{}, errLabel *widget.Label) {
	if pp.onParameterChange == nil {
		return
	}
	if err := pp.onParameterChange(name, value); err != nil {
		errLabel.SetText(err.Error())
		return
	}
	errLabel.SetText("")
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
