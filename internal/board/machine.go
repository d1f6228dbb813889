package board

import (
	"math"

	"DrawPad/internal/state"
	"DrawPad/internal/surface"
)

// State is the mode of the tool machine.
type State int

const (
	Idle State = iota
	Stroking
	ShapeDragging
	Texting
)

var stateNames = [...]string{"idle", "stroking", "shape-dragging", "texting"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// gesture is the transient session owned by every non-idle state. Exactly
// one exists between a press and the end of the gesture; a nil gesture is
// Idle.
type gesture interface {
	State() State
	// move reports whether pixels changed.
	move(buf *surface.Buffer, p state.Point) bool
	// release ends the pointer gesture and reports whether the document
	// must be saved.
	release(buf *surface.Buffer, p state.Point) bool
	// abort finishes the gesture when it is interrupted by something other
	// than the pointer, such as switching documents.
	abort(buf *surface.Buffer) bool
}

// beginners opens the session for a tool kind on press.
var beginners = map[state.Kind]func(state.ToolState, state.Point) gesture{
	state.KindFreehand: newStrokeSession,
	state.KindShape:    newShapeSession,
	state.KindText:     newTextSession,
}

// strokeWidths are the widths at the default brush size.
var strokeWidths = map[state.Tool]float64{
	state.ToolPen:    2,
	state.ToolPencil: 1,
	state.ToolEraser: 20,
}

// StrokeWidth is the freehand width for a tool, scaled by the brush size.
func StrokeWidth(ts state.ToolState) float64 {
	w := strokeWidths[ts.Tool] * float64(ts.Width) / state.DefaultBrushSize
	return math.Max(w, 1)
}

// strokeSession is a freehand path painted segment by segment.
type strokeSession struct {
	pen    surface.Pen
	erase  bool
	origin state.Point
	last   state.Point
	moved  bool
}

func newStrokeSession(ts state.ToolState, origin state.Point) gesture {
	return &strokeSession{
		pen:    surface.Pen{Color: ts.Color, Width: StrokeWidth(ts)},
		erase:  ts.Tool == state.ToolEraser,
		origin: origin,
		last:   origin,
	}
}

func (s *strokeSession) State() State { return Stroking }

func (s *strokeSession) move(buf *surface.Buffer, p state.Point) bool {
	if s.erase {
		buf.EraseSegment(s.pen.Width, s.last, p)
	} else {
		buf.StrokeSegment(s.pen, s.last, p)
	}
	s.last = p
	s.moved = true
	return true
}

func (s *strokeSession) release(*surface.Buffer, state.Point) bool {
	return true
}

func (s *strokeSession) abort(*surface.Buffer) bool {
	return s.moved
}
