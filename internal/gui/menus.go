package gui

import (
	"fyne.io/fyne/v2"
)

func (a *App) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", a.handleOpenInput),
		fyne.NewMenuItem("Output Directory...", a.handleChooseOutput),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Open Pipeline...", a.handleOpenPipeline),
		fyne.NewMenuItem("Save Pipeline...", a.handleSavePipeline),
	)
	pipelineMenu := fyne.NewMenu("Pipeline",
		fyne.NewMenuItem("Add Step", a.handleAddStep),
		fyne.NewMenuItem("Run", a.handleRun),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Clear", a.handleClear),
	)

	a.window.SetMainMenu(fyne.NewMainMenu(fileMenu, pipelineMenu))
}
