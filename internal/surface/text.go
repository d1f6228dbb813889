package surface

import (
	"fmt"
	"image/color"
	"strings"
	"sync"

	"DrawPad/internal/state"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

var fontFiles = map[state.TextStyle][]byte{
	{}:                         goregular.TTF,
	{Bold: true}:               gobold.TTF,
	{Italic: true}:             goitalic.TTF,
	{Bold: true, Italic: true}: gobolditalic.TTF,
}

var (
	fontsOnce sync.Once
	fonts     map[state.TextStyle]*text.FontSource
	fontsErr  error
)

func loadFonts() {
	fonts = make(map[state.TextStyle]*text.FontSource, len(fontFiles))
	for style, data := range fontFiles {
		src, err := text.NewFontSource(data)
		if err != nil {
			fontsErr = fmt.Errorf("surface: load font %+v: %w", style, err)
			return
		}
		fonts[style] = src
	}
}

// Face returns the face for a style: bold selects the weight, italic the
// slant.
func Face(style state.TextStyle, size float64) (text.Face, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, fontsErr
	}
	return fonts[style].Face(size), nil
}

// DrawText rasterizes s with the top of its first line at the anchor.
// Lines are split on newlines; nothing is wrapped or clipped.
func (b *Buffer) DrawText(col color.Color, style state.TextStyle, size float64, s string, at state.Point) error {
	face, err := Face(style, size)
	if err != nil {
		return err
	}
	b.dc.SetFont(face)
	b.dc.SetColor(col)
	m := face.Metrics()
	baseline := at.Y + m.Ascent
	for _, line := range strings.Split(s, "\n") {
		b.dc.DrawString(line, at.X, baseline)
		baseline += m.LineHeight()
	}
	return nil
}
