package components

import (
	"context"
	"image"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/category"
)

type passthrough struct {
	*algorithm.Base
}

func (passthrough) Run(_ context.Context, in image.Image) (image.Image, error) {
	return in, nil
}

func blurDefinition() *category.Definition {
	return category.NewDefinition("Preprocessing").Register("Blur", func() algorithm.Algorithm {
		return passthrough{algorithm.NewBase("Blur", "Preprocessing",
			algorithm.IntParam("kernel", 1, 15, 2, 5),
			algorithm.BoolParam("invert", false),
			algorithm.EnumParam("border", []string{"reflect", "constant"}, "reflect"),
		)}
	})
}

func TestParameterPanelWidgets(t *testing.T) {
	test.NewTempApp(t)

	var calls []string
	panel := NewParameterPanel()
	panel.SetParameterChangeHandler(func(name string, value interface{}) error {
		calls = append(calls, name)
		if name == "border" {
			return errors.New("rejected")
		}
		return nil
	})

	def := blurDefinition()
	instance, err := def.New("Blur")
	require.NoError(t, err)
	panel.UpdateParameters(instance.Parameters())

	assert.Empty(t, calls, "building the panel must not report changes")

	w, ok := panel.Widget("kernel")
	require.True(t, ok)
	slider, ok := w.(*widget.Slider)
	require.True(t, ok)
	assert.Equal(t, 5.0, slider.Value)

	w, ok = panel.Widget("invert")
	require.True(t, ok)
	test.Tap(w.(*widget.Check))

	w, ok = panel.Widget("border")
	require.True(t, ok)
	w.(*widget.Select).SetSelected("constant")

	assert.Equal(t, []string{"invert", "border"}, calls)

	_, ok = panel.Widget("missing")
	assert.False(t, ok)
}

func TestStepListRebuild(t *testing.T) {
	test.NewTempApp(t)

	configured := category.New(blurDefinition())
	require.NoError(t, configured.SelectAlgorithm("Blur"))
	steps := []*category.Category{configured, category.NewBlank()}

	list := NewStepList([]string{"Preprocessing"}, StepHandlers{})
	list.Rebuild(steps)
	assert.Len(t, list.GetContainer().Objects, 2)

	list.SetEnabled(false)
	assert.Len(t, list.GetContainer().Objects, 2)

	list.Rebuild(nil)
	assert.Empty(t, list.GetContainer().Objects)
}

func TestResultListButtons(t *testing.T) {
	test.NewTempApp(t)

	shown, restored := "", false
	list := NewResultList()
	list.SetResults([]Result{
		{Title: "Input", Show: func() { shown = "Input" }},
		{
			Title:    "1. Preprocessing - Blur",
			Settings: "kernel = 5",
			Show:     func() { shown = "Blur" },
			Restore:  func() { restored = true },
		},
	})
	objects := list.GetContainer().Objects
	require.Len(t, objects, 2)

	test.Tap(objects[0].(*widget.Button))
	assert.Equal(t, "Input", shown)

	row := objects[1].(*fyne.Container)
	require.Len(t, row.Objects, 2)
	header := row.Objects[0].(*fyne.Container)
	var buttons []*widget.Button
	for _, o := range header.Objects {
		if b, ok := o.(*widget.Button); ok {
			buttons = append(buttons, b)
		}
	}
	require.Len(t, buttons, 2)
	for _, b := range buttons {
		test.Tap(b)
	}
	assert.Equal(t, "Blur", shown)
	assert.True(t, restored)
	assert.Equal(t, "kernel = 5", row.Objects[1].(*widget.Label).Text)
}

func TestFormatSettings(t *testing.T) {
	rec := category.Record{
		Category:   "Preprocessing",
		Algorithm:  "Blur",
		Parameters: map[string]interface{}{"sigma": 1.5, "kernel": 5, "border": "reflect"},
	}
	assert.Equal(t, "border = reflect\nkernel = 5\nsigma = 1.5", FormatSettings(rec))
	assert.Empty(t, FormatSettings(category.Record{}))
}
