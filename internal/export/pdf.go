// Package export renders drawings into printable documents.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"time"

	"DrawPad/internal/surface"

	"github.com/jung-kurt/gofpdf"
)

const (
	margin     = 10.0 // mm
	footerSize = 8.0  // pt
	imageName  = "drawing"
)

// PDF writes img onto a single A4 page, scaled to fit inside the margins
// and oriented to match the drawing.
func PDF(w io.Writer, img image.Image, title string) error {
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		return fmt.Errorf("export: encode image: %w", err)
	}

	b := img.Bounds()
	orientation := "P"
	if b.Dx() > b.Dy() {
		orientation = "L"
	}

	p := gofpdf.New(orientation, "mm", "A4", "")
	p.SetTitle(title, true)
	p.SetCreator("DrawPad", true)
	p.SetCreationDate(time.Now())
	p.SetAutoPageBreak(false, 0)
	p.AddPage()

	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader(imageName, opt, &encoded)

	pageW, pageH := p.GetPageSize()
	boxW, boxH := pageW-2*margin, pageH-3*margin
	scale := min(boxW/float64(b.Dx()), boxH/float64(b.Dy()))
	imgW, imgH := float64(b.Dx())*scale, float64(b.Dy())*scale
	x := (pageW - imgW) / 2
	p.ImageOptions(imageName, x, margin, imgW, imgH, false, opt, 0, "")

	if title != "" {
		p.SetFont("Helvetica", "", footerSize)
		p.SetTextColor(96, 96, 96)
		p.Text(margin, pageH-margin, p.UnicodeTranslatorFromDescriptor("")(title))
	}

	if err := p.Output(w); err != nil {
		return fmt.Errorf("export: write pdf: %w", err)
	}
	return nil
}

// SerializedPDF decodes a stored drawing and writes it as a PDF.
func SerializedPDF(w io.Writer, serialized, title string) error {
	img, err := surface.Decode(serialized)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return PDF(w, img, title)
}

// PDFFile writes the PDF to path, replacing any existing file.
func PDFFile(path string, img image.Image, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := PDF(f, img, title); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
