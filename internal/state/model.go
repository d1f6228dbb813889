package state

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/gogpu/gg"
)

var (
	ErrInvalidTool  = errors.New("invalid tool")
	ErrInvalidWidth = errors.New("invalid stroke width")
	ErrInvalidColor = errors.New("invalid color")
)

// Point is a position in surface-local coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an on-screen box, as reported by the host for the drawing surface.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Tool string

const (
	ToolPen       Tool = "pen"
	ToolPencil    Tool = "pencil"
	ToolLine      Tool = "line"
	ToolCircle    Tool = "circle"
	ToolRectangle Tool = "rectangle"
	ToolTriangle  Tool = "triangle"
	ToolText      Tool = "text"
	ToolEraser    Tool = "eraser"
)

// Tools lists every tool in toolbar order.
var Tools = []Tool{ToolPen, ToolPencil, ToolLine, ToolCircle, ToolRectangle, ToolTriangle, ToolText, ToolEraser}

// Kind groups tools by the pointer protocol they follow.
type Kind int

const (
	KindUnknown Kind = iota
	KindFreehand
	KindShape
	KindText
)

var toolKinds = map[Tool]Kind{
	ToolPen:       KindFreehand,
	ToolPencil:    KindFreehand,
	ToolEraser:    KindFreehand,
	ToolLine:      KindShape,
	ToolCircle:    KindShape,
	ToolRectangle: KindShape,
	ToolTriangle:  KindShape,
	ToolText:      KindText,
}

func (t Tool) Kind() Kind {
	return toolKinds[t]
}

func (t Tool) Valid() bool {
	return t.Kind() != KindUnknown
}

// ParseTool accepts a tool name as sent by the toolbar.
func ParseTool(s string) (Tool, error) {
	t := Tool(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTool, s)
	}
	return t, nil
}

type TextStyle struct {
	Bold   bool `json:"bold"`
	Italic bool `json:"italic"`
}

// ToolState is the user's current tool selection. Width is the brush size.
type ToolState struct {
	Tool      Tool       `json:"tool"`
	Color     color.RGBA `json:"color"`
	Width     int        `json:"width"`
	TextStyle TextStyle  `json:"text_style"`
}

// DefaultBrushSize is the brush size at which pen, pencil and eraser use
// their nominal widths.
const DefaultBrushSize = 2

func DefaultToolState() ToolState {
	return ToolState{
		Tool:  ToolPen,
		Color: color.RGBA{A: 255},
		Width: DefaultBrushSize,
	}
}

func (ts ToolState) Validate() error {
	if !ts.Tool.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTool, ts.Tool)
	}
	if ts.Width <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWidth, ts.Width)
	}
	return nil
}

// ParseColor parses "#rgb" or "#rrggbb". Colors are always opaque.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 3 && len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
	}
	c := gg.Hex(hex)
	return color.RGBA{
		R: uint8(c.R*255 + 0.5),
		G: uint8(c.G*255 + 0.5),
		B: uint8(c.B*255 + 0.5),
		A: 255,
	}, nil
}

func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
