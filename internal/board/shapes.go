package board

import (
	"image/color"
	"math"

	"DrawPad/internal/state"
	"DrawPad/internal/surface"
)

// ShapeWidth is the stroke width of every parametric shape.
const ShapeWidth = 2

// outline is the committed geometry of a shape tool.
type outline interface {
	stroke(buf *surface.Buffer, pen surface.Pen)
}

type polyline struct {
	points []state.Point
	closed bool
}

func (p polyline) stroke(buf *surface.Buffer, pen surface.Pen) {
	buf.StrokePolyline(pen, p.closed, p.points...)
}

type rect struct {
	state.Rect
}

func (r rect) stroke(buf *surface.Buffer, pen surface.Pen) {
	buf.StrokeRect(pen, r.Rect)
}

type circle struct {
	center state.Point
	radius float64
}

func (c circle) stroke(buf *surface.Buffer, pen surface.Pen) {
	buf.StrokeCircle(pen, c.center, c.radius)
}

// shapeBuilders maps every shape tool to its geometry from the press point
// and the release point.
var shapeBuilders = map[state.Tool]func(from, to state.Point) outline{
	state.ToolLine: func(from, to state.Point) outline {
		return polyline{points: []state.Point{from, to}}
	},
	state.ToolCircle: func(from, to state.Point) outline {
		return circle{center: from, radius: math.Hypot(to.X-from.X, to.Y-from.Y)}
	},
	state.ToolRectangle: func(from, to state.Point) outline {
		return rect{state.Rect{X: from.X, Y: from.Y, Width: to.X - from.X, Height: to.Y - from.Y}}
	},
	state.ToolTriangle: func(from, to state.Point) outline {
		mirror := state.Point{X: from.X - (to.X - from.X), Y: to.Y}
		return polyline{points: []state.Point{from, to, mirror}, closed: true}
	},
}

// shapeSession is the ShapeDragging state: only the origin matters until
// release, nothing is painted while dragging.
type shapeSession struct {
	build  func(from, to state.Point) outline
	color  color.RGBA
	origin state.Point
	last   state.Point
}

func newShapeSession(ts state.ToolState, origin state.Point) gesture {
	build, ok := shapeBuilders[ts.Tool]
	if !ok {
		return nil
	}
	return &shapeSession{build: build, color: ts.Color, origin: origin, last: origin}
}

func (s *shapeSession) State() State { return ShapeDragging }

func (s *shapeSession) move(_ *surface.Buffer, p state.Point) bool {
	s.last = p
	return false
}

func (s *shapeSession) release(buf *surface.Buffer, p state.Point) bool {
	s.build(s.origin, p).stroke(buf, surface.Pen{Color: s.color, Width: ShapeWidth})
	return true
}

func (s *shapeSession) abort(buf *surface.Buffer) bool {
	return s.release(buf, s.last)
}
