package checkin

import (
	"bytes"
	"image/png"

	"github.com/skip2/go-qrcode"
)

// RenderPNG encodes the token into a QR code PNG of the given pixel size.
func RenderPNG(content string, size int) ([]byte, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
