package board

import (
	"image/color"
	"strings"

	"DrawPad/internal/state"
	"DrawPad/internal/surface"
)

// TextSize is the pixel size of placed text.
const TextSize = 20

// textSession is the open text overlay. The typed string lives here until
// it is confirmed onto the bitmap or discarded.
type textSession struct {
	anchor state.Point
	color  color.RGBA
	style  state.TextStyle
	buf    []rune
}

func newTextSession(ts state.ToolState, anchor state.Point) gesture {
	return &textSession{anchor: anchor, color: ts.Color, style: ts.TextStyle}
}

func (t *textSession) State() State { return Texting }

// Pointer motion and the release of the opening click leave the overlay open.
func (t *textSession) move(*surface.Buffer, state.Point) bool    { return false }
func (t *textSession) release(*surface.Buffer, state.Point) bool { return false }

// abort behaves like the input losing focus: the text is kept.
func (t *textSession) abort(buf *surface.Buffer) bool {
	ok, _ := t.confirm(buf)
	return ok
}

func (t *textSession) text() string {
	return string(t.buf)
}

// confirm rasterizes the buffered text. Blank input paints nothing.
func (t *textSession) confirm(buf *surface.Buffer) (bool, error) {
	s := t.text()
	if strings.TrimSpace(s) == "" {
		return false, nil
	}
	if err := buf.DrawText(t.color, t.style, TextSize, s, t.anchor); err != nil {
		return false, err
	}
	return true, nil
}

// editText applies fn to the open overlay, if any.
func (b *Board) editText(fn func(t *textSession)) {
	b.mu.Lock()
	t, ok := b.gesture.(*textSession)
	if ok {
		fn(t)
	}
	b.mu.Unlock()
	if ok {
		b.changed()
	}
}

// TypeRune appends r to the overlay text.
func (b *Board) TypeRune(r rune) {
	b.editText(func(t *textSession) { t.buf = append(t.buf, r) })
}

// Backspace removes the last rune of the overlay text.
func (b *Board) Backspace() {
	b.editText(func(t *textSession) {
		if n := len(t.buf); n > 0 {
			t.buf = t.buf[:n-1]
		}
	})
}

// SetText replaces the overlay text.
func (b *Board) SetText(s string) {
	b.editText(func(t *textSession) { t.buf = []rune(s) })
}

// Text returns the overlay text and its anchor. ok is false when no overlay
// is open.
func (b *Board) Text() (s string, anchor state.Point, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.gesture.(*textSession)
	if !ok {
		return "", state.Point{}, false
	}
	return t.text(), t.anchor, true
}

// ConfirmText rasterizes the overlay text and closes the overlay. It
// reports whether anything was painted; blank text closes the overlay
// without a save.
func (b *Board) ConfirmText() (bool, error) {
	b.mu.Lock()
	t, ok := b.gesture.(*textSession)
	if !ok {
		b.mu.Unlock()
		return false, nil
	}
	b.gesture = nil
	painted, err := t.confirm(b.buf)
	if painted {
		b.rev.Tick()
	}
	b.mu.Unlock()

	if err != nil {
		b.log.Error("text not drawn", "err", err)
	}
	if painted {
		b.committed()
	}
	b.changed()
	return painted, err
}

// CancelText discards the overlay without touching the bitmap.
func (b *Board) CancelText() {
	b.mu.Lock()
	_, ok := b.gesture.(*textSession)
	if ok {
		b.gesture = nil
	}
	b.mu.Unlock()
	if ok {
		b.changed()
	}
}
