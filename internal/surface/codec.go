package surface

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"strings"

	// Decoders for images pasted or uploaded by other clients.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	xdraw "golang.org/x/image/draw"
)

// MIMEType is the format produced by Serialize.
const MIMEType = "image/png"

var ErrDecode = errors.New("surface: cannot decode image")

var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// Encode returns the buffer as PNG bytes. Identical contents always give
// identical bytes.
func (b *Buffer) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, b.pixels()); err != nil {
		return nil, fmt.Errorf("surface: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Serialize returns the buffer as a data URI.
func (b *Buffer) Serialize() (string, error) {
	data, err := b.Encode()
	if err != nil {
		return "", err
	}
	return EncodeDataURL(MIMEType, data), nil
}

// LoadImage replaces the contents with a serialized image drawn at the
// origin. An empty string leaves the buffer blank. On decode failure the
// buffer is blank and the error wraps ErrDecode.
func (b *Buffer) LoadImage(serialized string) error {
	b.Clear()
	if strings.TrimSpace(serialized) == "" {
		return nil
	}
	img, err := Decode(serialized)
	if err != nil {
		return err
	}
	r := img.Bounds()
	xdraw.Draw(b.pixels(), r.Sub(r.Min), img, r.Min, xdraw.Src)
	return nil
}

// Decode parses a data URI holding any registered image format.
func Decode(serialized string) (image.Image, error) {
	mime, data, err := DecodeDataURL(serialized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: unexpected media type %q", ErrDecode, mime)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits "data:<mime>[;params][;base64],<payload>".
func DecodeDataURL(s string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return "", nil, errors.New("missing data: scheme")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("missing payload separator")
	}
	params := strings.Split(header, ";")
	mime = strings.ToLower(params[0])
	if mime == "" {
		mime = "text/plain"
	}
	if params[len(params)-1] == "base64" {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return "", nil, fmt.Errorf("base64 payload: %w", err)
		}
		return mime, data, nil
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("payload: %w", err)
	}
	return mime, []byte(unescaped), nil
}
