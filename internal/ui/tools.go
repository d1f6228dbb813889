package ui

import (
	"fmt"
	"image/color"

	"DrawPad/internal/export"
	"DrawPad/internal/state"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// Palette is the set of swatches offered in the toolbar.
var Palette = []color.RGBA{
	{A: 255},
	{R: 255, A: 255},
	{G: 160, A: 255},
	{B: 255, A: 255},
	{R: 255, G: 200, A: 255},
	{R: 128, B: 128, A: 255},
}

// colorSwatch is a tappable square of one palette color.
type colorSwatch struct {
	widget.BaseWidget
	Color    color.RGBA
	OnTapped func(color.RGBA)
}

func newColorSwatch(c color.RGBA, tapped func(color.RGBA)) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(28, 28))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

func toolNames() []string {
	names := make([]string, len(state.Tools))
	for i, t := range state.Tools {
		names[i] = string(t)
	}
	return names
}

// NewToolbar builds the tool, color, size and style controls plus the
// document actions for board.
func NewToolbar(board *BoardWidget, win fyne.Window) fyne.CanvasObject {
	b := board.Board
	ts := b.Tools()

	tools := widget.NewSelect(toolNames(), func(name string) {
		t, err := state.ParseTool(name)
		if err == nil {
			err = b.SetTool(t)
		}
		if err != nil {
			board.SetStatus(err.Error())
		}
	})
	tools.SetSelected(string(ts.Tool))

	colorBox := container.NewHBox()
	for _, c := range Palette {
		colorBox.Add(newColorSwatch(c, b.SetColor))
	}

	sizeLabel := widget.NewLabel(fmt.Sprint(ts.Width))
	size := widget.NewSlider(1, 10)
	size.Step = 1
	size.SetValue(float64(ts.Width))
	size.OnChanged = func(v float64) {
		if err := b.SetWidth(int(v)); err == nil {
			sizeLabel.SetText(fmt.Sprint(int(v)))
		}
	}
	sliderContainer := container.New(layout.NewGridWrapLayout(fyne.NewSize(120, 35)), size)

	bold := widget.NewCheck("Bold", nil)
	italic := widget.NewCheck("Italic", nil)
	setStyle := func(bool) {
		b.SetTextStyle(state.TextStyle{Bold: bold.Checked, Italic: italic.Checked})
	}
	bold.OnChanged = setStyle
	italic.OnChanged = setStyle

	actions := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentSaveIcon(), board.Save),
		widget.NewToolbarAction(theme.DeleteIcon(), board.Clear),
		widget.NewToolbarAction(theme.DownloadIcon(), func() { exportDialog(board, win) }),
	)

	return container.NewHBox(
		widget.NewLabel("Tool:"),
		tools,
		widget.NewSeparator(),
		colorBox,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sliderContainer,
		sizeLabel,
		bold,
		italic,
		layout.NewSpacer(),
		actions,
	)
}

func exportDialog(board *BoardWidget, win fyne.Window) {
	img := board.Board.Image()
	if img == nil {
		board.SetStatus("Nothing to export")
		return
	}
	id := board.Board.DocumentID()
	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil || w == nil {
			return
		}
		defer w.Close()
		if err := export.PDF(w, img, id); err != nil {
			dialog.ShowError(err, win)
			return
		}
		board.SetStatus("Exported " + w.URI().Name())
	}, win)
	d.SetFileName(id + ".pdf")
	d.Show()
}
