// Package share builds shareable session URLs and renders them as QR codes.
package share

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image/color"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrEmptyURL indicates a QR render was requested without a URL.
var ErrEmptyURL = errors.New("share: url is required")

// Fixed visual configuration for rendered codes: module color pair and
// pixel size. Error correction is level M. Codes are regenerated on every
// call; nothing is cached.
var (
	qrDark  = color.RGBA{R: 0x17, G: 0x2B, B: 0x4D, A: 0xFF}
	qrLight = color.White
)

const qrSizePixels = 200

// Service builds share links for sessions.
type Service struct {
	baseURL string
}

// NewService creates a Service. baseURL is the externally visible origin,
// e.g. https://speechloop.example.
func NewService(baseURL string) *Service {
	return &Service{baseURL: strings.TrimRight(baseURL, "/")}
}

// SessionURL returns the shareable URL for a session.
func (s *Service) SessionURL(sessionID string) string {
	return fmt.Sprintf("%s/session/%s", s.baseURL, sessionID)
}

// SessionPath returns the path component only, for same-origin redirects.
func (s *Service) SessionPath(sessionID string) string {
	return "/session/" + sessionID
}

// QRDataURL renders url as a PNG QR code and returns it as a data URL
// suitable for direct embedding in an <img> tag.
func (s *Service) QRDataURL(url string) (string, error) {
	if url == "" {
		return "", ErrEmptyURL
	}

	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("share: encode qr: %w", err)
	}
	qr.ForegroundColor = qrDark
	qr.BackgroundColor = qrLight

	png, err := qr.PNG(qrSizePixels)
	if err != nil {
		return "", fmt.Errorf("share: render qr: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
