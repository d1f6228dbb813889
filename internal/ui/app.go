package ui

import (
	"context"
	"log/slog"
	"time"

	"DrawPad/internal/board"
	"DrawPad/internal/store"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
)

// Options configure the desktop window.
type Options struct {
	Store      store.Store
	DocumentID string
	Width      int
	Height     int
	SaveDelay  time.Duration
	Logger     *slog.Logger
}

// RunApp opens the drawing window and blocks until it is closed. The open
// drawing is saved on the way out.
func RunApp(opts Options) error {
	myApp := app.NewWithID("dev.drawpad")
	myWindow := myApp.NewWindow("DrawPad - " + opts.DocumentID)

	boardWidget := NewBoardWidget(opts.Store, opts.Width, opts.Height, opts.Logger,
		board.WithSaveDelay(opts.SaveDelay))
	if err := boardWidget.Open(context.Background(), opts.DocumentID); err != nil {
		return err
	}

	toolbar := NewToolbar(boardWidget, myWindow)
	content := container.NewBorder(toolbar, boardWidget.Status, nil, nil, container.NewScroll(boardWidget))

	myWindow.SetContent(content)
	myWindow.Resize(fyne.NewSize(float32(opts.Width)+40, float32(opts.Height)+120))
	myWindow.ShowAndRun()

	return boardWidget.Board.Shutdown(context.Background())
}
