// Package invite renders join links for rooms as QR codes so players at the
// same table can scan their way in.
package invite

import (
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MaxSize     = 1024
)

// Link builds the join URL for a room under the public base URL.
func Link(baseURL, roomID string) string {
	return fmt.Sprintf("%s/?room=%s", baseURL, url.QueryEscape(roomID))
}

// PNG encodes link as a square PNG of size pixels.
func PNG(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
