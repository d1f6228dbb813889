// Package surface owns the pixel buffer of a drawing and the paint
// primitives the tool machine applies to it.
package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"DrawPad/internal/state"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
)

var ErrInvalidSize = errors.New("surface: invalid size")

// Background is the color of a blank surface.
var Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Pen is the stroke style of a single paint operation.
type Pen struct {
	Color color.Color
	Width float64
}

// Buffer is a fixed-size bitmap and its 2D drawing context.
type Buffer struct {
	dc *gg.Context
	// scratch holds eraser coverage; it is transparent between operations.
	scratch *gg.Context
}

// New allocates a blank buffer.
func New(width, height int) (*Buffer, error) {
	b := &Buffer{}
	if err := b.Initialize(width, height); err != nil {
		return nil, err
	}
	return b, nil
}

// Initialize replaces the buffer with a blank one of the given size and
// resets the stroke defaults.
func (b *Buffer) Initialize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	b.dc = newContext(width, height)
	b.scratch = nil
	b.Clear()
	return nil
}

func newContext(width, height int) *gg.Context {
	dc := gg.NewContext(width, height)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.SetLineWidth(1)
	dc.SetColor(color.Black)
	return dc
}

func (b *Buffer) Size() (width, height int) {
	return b.dc.Width(), b.dc.Height()
}

// Resize changes the buffer dimensions keeping the existing content anchored
// at the top-left corner. Newly exposed pixels are blank.
func (b *Buffer) Resize(width, height int) error {
	if w, h := b.Size(); w == width && h == height {
		return nil
	}
	old := b.Image()
	if err := b.Initialize(width, height); err != nil {
		return err
	}
	xdraw.Draw(b.pixels(), old.Bounds(), old, image.Point{}, xdraw.Src)
	return nil
}

// Clear fills the whole buffer with the background color.
func (b *Buffer) Clear() {
	b.dc.ClearWithColor(gg.FromColor(Background))
}

// pixels is a live view of the context's premultiplied RGBA storage.
func (b *Buffer) pixels() *image.RGBA {
	pm := b.dc.ResizeTarget()
	return &image.RGBA{
		Pix:    pm.Data(),
		Stride: pm.Width() * 4,
		Rect:   image.Rect(0, 0, pm.Width(), pm.Height()),
	}
}

// Image returns a copy of the current contents.
func (b *Buffer) Image() *image.RGBA {
	view := b.pixels()
	img := image.NewRGBA(view.Rect)
	copy(img.Pix, view.Pix)
	return img
}

func (b *Buffer) At(x, y int) color.RGBA {
	return b.pixels().RGBAAt(x, y)
}

// IsBlank reports whether every pixel has the background color.
func (b *Buffer) IsBlank() bool {
	pix := b.pixels().Pix
	for i := 0; i < len(pix); i += 4 {
		if pix[i] != Background.R || pix[i+1] != Background.G || pix[i+2] != Background.B || pix[i+3] != Background.A {
			return false
		}
	}
	return true
}

func (b *Buffer) stroke(pen Pen, path func(dc *gg.Context)) {
	b.dc.SetColor(pen.Color)
	b.dc.SetLineWidth(pen.Width)
	path(b.dc)
	// Rasterizing a finite path into memory has no failure mode worth surfacing.
	_ = b.dc.Stroke()
}

// StrokeSegment paints a straight segment with round caps.
func (b *Buffer) StrokeSegment(pen Pen, from, to state.Point) {
	b.stroke(pen, func(dc *gg.Context) {
		dc.MoveTo(from.X, from.Y)
		dc.LineTo(to.X, to.Y)
	})
}

// StrokePolyline paints the outline through pts, closing it back to the
// first point when closed is set.
func (b *Buffer) StrokePolyline(pen Pen, closed bool, pts ...state.Point) {
	if len(pts) < 2 {
		return
	}
	b.stroke(pen, func(dc *gg.Context) {
		dc.MoveTo(pts[0].X, pts[0].Y)
		for _, p := range pts[1:] {
			dc.LineTo(p.X, p.Y)
		}
		if closed {
			dc.ClosePath()
		}
	})
}

// StrokeRect paints a rectangle outline. Negative extents are normalized,
// so the same region is drawn whichever corner r starts from.
func (b *Buffer) StrokeRect(pen Pen, r state.Rect) {
	x0, x1 := math.Min(r.X, r.X+r.Width), math.Max(r.X, r.X+r.Width)
	y0, y1 := math.Min(r.Y, r.Y+r.Height), math.Max(r.Y, r.Y+r.Height)
	b.StrokePolyline(pen, true,
		state.Point{X: x0, Y: y0}, state.Point{X: x1, Y: y0},
		state.Point{X: x1, Y: y1}, state.Point{X: x0, Y: y1})
}

// StrokeCircle paints a full circle outline.
func (b *Buffer) StrokeCircle(pen Pen, center state.Point, radius float64) {
	b.stroke(pen, func(dc *gg.Context) {
		dc.DrawCircle(center.X, center.Y, radius)
	})
}

// EraseSegment removes paint along a segment: the stroke coverage is
// subtracted from the destination alpha (destination-out compositing).
func (b *Buffer) EraseSegment(width float64, from, to state.Point) {
	w, h := b.Size()
	if b.scratch == nil {
		b.scratch = newContext(w, h)
	}
	b.scratch.SetColor(color.Black)
	b.scratch.SetLineWidth(width)
	b.scratch.MoveTo(from.X, from.Y)
	b.scratch.LineTo(to.X, to.Y)
	_ = b.scratch.Stroke()

	pm := b.scratch.ResizeTarget()
	mask := pm.Data()
	dst := b.pixels()
	area := segmentBounds(from, to, width).Intersect(dst.Rect)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			i := dst.PixOffset(x, y)
			cov := uint32(mask[i+3])
			if cov == 0 {
				continue
			}
			keep := 255 - cov
			for k := 0; k < 4; k++ {
				dst.Pix[i+k] = uint8(uint32(dst.Pix[i+k]) * keep / 255)
				mask[i+k] = 0
			}
		}
	}
}

// segmentBounds is the pixel box a stroked segment can touch.
func segmentBounds(from, to state.Point, width float64) image.Rectangle {
	pad := width/2 + 2
	return image.Rect(
		int(math.Floor(math.Min(from.X, to.X)-pad)),
		int(math.Floor(math.Min(from.Y, to.Y)-pad)),
		int(math.Ceil(math.Max(from.X, to.X)+pad)),
		int(math.Ceil(math.Max(from.Y, to.Y)+pad)),
	)
}
