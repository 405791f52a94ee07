package components

import (
	"fmt"
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"nefi-engine/internal/category"
)

// Result is one cached image offered for display. Settings and Run describe how it
// was produced; Restore is nil for the input.
type Result struct {
	Title    string
	Path     string
	Run      string
	Settings string
	Show     func()
	Restore  func()
}

// ResultList lists the input and every cached step result in pipeline order, each with
// the settings that produced it.
type ResultList struct {
	container *fyne.Container
}

func NewResultList() *ResultList {
	return &ResultList{container: container.NewVBox()}
}

func (r *ResultList) GetContainer() *fyne.Container {
	return r.container
}

func (r *ResultList) SetResults(results []Result) {
	r.container.RemoveAll()
	for _, res := range results {
		r.container.Add(newResultRow(res))
	}
	r.container.Refresh()
}

func newResultRow(res Result) fyne.CanvasObject {
	show := widget.NewButton(res.Title, res.Show)
	show.Alignment = widget.ButtonAlignLeading
	if res.Restore == nil {
		return show
	}

	restore := widget.NewButtonWithIcon("", theme.HistoryIcon(), res.Restore)
	details := widget.NewLabel(strings.TrimSpace(res.Run + "\n" + res.Settings))
	details.TextStyle = fyne.TextStyle{Monospace: true}
	details.Wrapping = fyne.TextWrapWord

	return container.NewVBox(container.NewBorder(nil, nil, nil, restore, show), details)
}

// FormatSettings renders a record's parameters one per line, sorted by name.
func FormatSettings(rec category.Record) string {
	names := make([]string, 0, len(rec.Parameters))
	for name := range rec.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s = %v", name, rec.Parameters[name]))
	}
	return strings.Join(lines, "\n")
}
