package ui

import (
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"

	"DrawPad/internal/autosave"
	"DrawPad/internal/board"
	"DrawPad/internal/state"
	"DrawPad/internal/store"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// BoardWidget hosts a board inside a fyne window: it feeds mouse and
// keyboard input to the board and shows the bitmap plus the open text
// overlay.
type BoardWidget struct {
	widget.BaseWidget

	Board  *board.Board
	Status *widget.Label

	width, height int
	last          state.Point
	pressed       bool
	log           *slog.Logger
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ fyne.Focusable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)
var _ desktop.Hoverable = (*BoardWidget)(nil)

// NewBoardWidget creates the widget and its board. The drawing surface has
// a fixed size of width x height.
func NewBoardWidget(st store.Store, width, height int, log *slog.Logger, opts ...board.Option) *BoardWidget {
	if log == nil {
		log = slog.Default()
	}
	w := &BoardWidget{
		Status: widget.NewLabel("Ready"),
		width:  width,
		height: height,
		log:    log.With("component", "ui"),
	}
	opts = append([]board.Option{board.WithLogger(log)}, opts...)
	opts = append(opts,
		board.OnChange(w.changed),
		board.OnSaved(func(snap autosave.Snapshot) { w.SetStatus("Saved " + snap.ID) }),
		board.OnSaveError(func(_ autosave.Snapshot, err error) { w.SetStatus("Save failed: " + err.Error()) }),
	)
	w.Board = board.New(st, opts...)
	w.ExtendBaseWidget(w)
	return w
}

// Open loads a drawing into the widget.
func (w *BoardWidget) Open(ctx context.Context, id string) error {
	if err := w.Board.Open(ctx, id, w.width, w.height); err != nil {
		w.SetStatus("Open failed: " + err.Error())
		return err
	}
	w.SetStatus("Editing " + id)
	return nil
}

// SetStatus updates the status line from any goroutine.
func (w *BoardWidget) SetStatus(text string) {
	fyne.Do(func() { w.Status.SetText(text) })
}

func (w *BoardWidget) changed() {
	fyne.Do(w.Refresh)
}

// local converts a fyne pointer event into surface coordinates. The widget
// origin on screen is the absolute position minus the widget-relative one.
func (w *BoardWidget) local(ev fyne.PointEvent) state.Point {
	origin := ev.AbsolutePosition.Subtract(ev.Position)
	p := board.ToLocal(
		state.Point{X: float64(ev.AbsolutePosition.X), Y: float64(ev.AbsolutePosition.Y)},
		state.Rect{X: float64(origin.X), Y: float64(origin.Y), Width: float64(w.width), Height: float64(w.height)},
	)
	w.last = p
	return p
}

func (w *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	w.requestFocus()
	w.pressed = true
	w.Board.Press(w.local(e.PointEvent))
}

func (w *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary || !w.pressed {
		return
	}
	w.pressed = false
	w.Board.Release(w.local(e.PointEvent))
}

func (w *BoardWidget) Dragged(e *fyne.DragEvent) {
	if w.pressed {
		w.Board.Move(w.local(e.PointEvent))
	}
}

func (w *BoardWidget) DragEnd() {}

func (w *BoardWidget) MouseIn(*desktop.MouseEvent) {}

// MouseMoved is ignored; motion with the button held arrives as Dragged.
func (w *BoardWidget) MouseMoved(*desktop.MouseEvent) {}

func (w *BoardWidget) MouseOut() {
	if w.pressed {
		w.pressed = false
		w.Board.Leave(w.last)
	}
}

func (w *BoardWidget) requestFocus() {
	app := fyne.CurrentApp()
	if app == nil {
		return
	}
	if c := app.Driver().CanvasForObject(w); c != nil {
		c.Focus(w)
	}
}

func (w *BoardWidget) FocusGained() {}

// FocusLost confirms the open text, like a text input losing focus.
func (w *BoardWidget) FocusLost() {
	w.confirmText()
}

func (w *BoardWidget) TypedRune(r rune) {
	w.Board.TypeRune(r)
}

func (w *BoardWidget) TypedKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyReturn, fyne.KeyEnter:
		w.confirmText()
	case fyne.KeyEscape:
		w.Board.CancelText()
	case fyne.KeyBackspace:
		w.Board.Backspace()
	}
}

func (w *BoardWidget) confirmText() {
	if _, err := w.Board.ConfirmText(); err != nil {
		w.SetStatus("Text not drawn: " + err.Error())
	}
}

// Clear wipes the drawing and saves it.
func (w *BoardWidget) Clear() {
	err := w.Board.Clear(context.Background())
	switch {
	case errors.Is(err, board.ErrBusy):
		w.SetStatus("Finish the current stroke first")
	case err != nil:
		w.SetStatus("Clear failed: " + err.Error())
	}
}

// Save persists the drawing now.
func (w *BoardWidget) Save() {
	if err := w.Board.Save(context.Background()); err != nil && !errors.Is(err, board.ErrNoDocument) {
		w.log.Warn("save failed", "err", err)
	}
}

func (w *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &boardWidgetRenderer{
		board:      w,
		background: canvas.NewRectangle(color.White),
		image:      canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1))),
		overlay:    canvas.NewText("", color.Black),
	}
	r.image.FillMode = canvas.ImageFillOriginal
	r.image.ScaleMode = canvas.ImageScalePixels
	r.overlay.TextSize = board.TextSize
	r.overlay.Hide()
	r.Refresh()
	return r
}

type boardWidgetRenderer struct {
	board      *BoardWidget
	background *canvas.Rectangle
	image      *canvas.Image
	overlay    *canvas.Text
}

func (r *boardWidgetRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.background, r.image, r.overlay}
}

func (r *boardWidgetRenderer) Refresh() {
	b := r.board.Board
	if img := b.Image(); img != nil {
		r.image.Image = img
		r.image.Show()
	} else {
		r.image.Hide()
	}

	if s, anchor, ok := b.Text(); ok {
		ts := b.Tools()
		r.overlay.Text = s + "|"
		r.overlay.Color = ts.Color
		r.overlay.TextStyle = fyne.TextStyle{Bold: ts.TextStyle.Bold, Italic: ts.TextStyle.Italic}
		r.overlay.Move(fyne.NewPos(float32(anchor.X), float32(anchor.Y)))
		r.overlay.Resize(r.overlay.MinSize())
		r.overlay.Show()
	} else {
		r.overlay.Hide()
	}

	r.image.Refresh()
	r.overlay.Refresh()
}

func (r *boardWidgetRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
	r.image.Move(fyne.NewPos(0, 0))
	r.image.Resize(r.MinSize())
}

func (r *boardWidgetRenderer) MinSize() fyne.Size {
	return fyne.NewSize(float32(r.board.width), float32(r.board.height))
}

func (r *boardWidgetRenderer) Destroy() {}
