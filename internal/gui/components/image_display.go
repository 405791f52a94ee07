package components

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	ImageAreaWidth  = 420
	ImageAreaHeight = 340
)

// ImageDisplay shows the input image next to the selected step result.
type ImageDisplay struct {
	container   fyne.CanvasObject
	inputImage  *canvas.Image
	resultImage *canvas.Image
	resultTitle *widget.Label
}

func NewImageDisplay() *ImageDisplay {
	display := &ImageDisplay{}
	display.inputImage = newImageCanvas()
	display.resultImage = newImageCanvas()
	display.resultTitle = widget.NewLabelWithStyle("Result", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	inputContainer := container.NewBorder(
		widget.NewLabelWithStyle("Input", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		nil, nil, nil,
		display.inputImage,
	)
	resultContainer := container.NewBorder(display.resultTitle, nil, nil, nil, display.resultImage)

	split := container.NewHSplit(inputContainer, resultContainer)
	split.SetOffset(0.5)
	display.container = split
	return display
}

func newImageCanvas() *canvas.Image {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleSmooth
	img.SetMinSize(fyne.NewSize(ImageAreaWidth, ImageAreaHeight))
	return img
}

func (id *ImageDisplay) GetContainer() fyne.CanvasObject {
	return id.container
}

func (id *ImageDisplay) SetInputImage(img image.Image) {
	id.inputImage.Image = img
	id.inputImage.Refresh()
}

// SetResultImage shows img under title. A nil img clears the pane.
func (id *ImageDisplay) SetResultImage(title string, img image.Image) {
	if title == "" {
		title = "Result"
	}
	id.resultTitle.SetText(title)
	id.resultImage.Image = img
	id.resultImage.Refresh()
}
