package gui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"github.com/pkg/errors"

	"nefi-engine/internal/eventbus"
)

// subscribe routes engine events onto the fyne goroutine.
func (a *App) subscribe() {
	on := func(kind eventbus.Kind, fn func(eventbus.Event)) {
		a.subs = append(a.subs, a.bus.SubscribeFunc(kind, func(event eventbus.Event) {
			fyne.Do(func() { fn(event) })
		}))
	}

	on(eventbus.KindProgress, func(event eventbus.Event) {
		e := event.(eventbus.ProgressEvent)
		a.toolbar.SetProgress(e.Value)
		a.toolbar.SetStatus(e.Report)
	})
	on(eventbus.KindCacheAdd, func(event eventbus.Event) {
		e := event.(eventbus.CacheAddEvent)
		a.refreshResults()
		entry, ok := a.pipeline.Cache().Get(e.Cat)
		if !ok {
			return
		}
		// Titles use the live position; the entry only knows where it was produced.
		if position, err := a.pipeline.Index(e.Cat); err == nil {
			a.display.SetResultImage(stepTitle(position, entry.Settings.Category, entry.Settings.Algorithm), entry.Image)
		}
	})
	on(eventbus.KindCacheRemove, func(eventbus.Event) {
		a.refreshResults()
	})
	on(eventbus.KindCacheInput, func(eventbus.Event) {
		if input, ok := a.pipeline.Cache().Input(); ok {
			a.display.SetInputImage(input.Image)
			a.display.SetResultImage("", nil)
		}
		a.refreshResults()
	})
	on(eventbus.KindFinished, func(event eventbus.Event) {
		e := event.(eventbus.FinishedEvent)
		a.setEnabled(true)
		a.refreshSteps()
		switch {
		case e.Err == nil:
			a.toolbar.SetProgress(100)
			a.toolbar.SetStatus("Finished")
		case errors.Is(e.Err, context.Canceled):
			a.toolbar.SetStatus("Cancelled")
		default:
			a.toolbar.SetStatus("Failed")
			a.showError("Run Failed", e.Err)
		}
	})
}

func stepTitle(index int, categoryName, algorithmName string) string {
	return fmt.Sprintf("%d. %s - %s", index+1, categoryName, algorithmName)
}

func runLabel(runID string, at time.Time) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return fmt.Sprintf("run %s at %s", runID, at.Format(time.TimeOnly))
}
