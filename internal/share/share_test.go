package share

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionURL(t *testing.T) {
	t.Run("joins base and path", func(t *testing.T) {
		svc := NewService("https://speechloop.example")
		assert.Equal(t, "https://speechloop.example/session/abc123", svc.SessionURL("abc123"))
	})

	t.Run("tolerates trailing slash on base", func(t *testing.T) {
		svc := NewService("https://speechloop.example/")
		assert.Equal(t, "https://speechloop.example/session/abc123", svc.SessionURL("abc123"))
	})

	t.Run("path only", func(t *testing.T) {
		svc := NewService("https://speechloop.example")
		assert.Equal(t, "/session/abc123", svc.SessionPath("abc123"))
	})
}

func TestQRDataURL(t *testing.T) {
	svc := NewService("https://speechloop.example")

	t.Run("renders an embeddable PNG data URL", func(t *testing.T) {
		dataURL, err := svc.QRDataURL("https://speechloop.example/session/abc123")
		require.NoError(t, err)

		require.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))

		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, "data:image/png;base64,"))
		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG"), raw[:4], "payload is a PNG")
	})

	t.Run("rejects an empty url", func(t *testing.T) {
		_, err := svc.QRDataURL("")
		assert.ErrorIs(t, err, ErrEmptyURL)
	})

	t.Run("no caching between calls", func(t *testing.T) {
		a, err := svc.QRDataURL("https://speechloop.example/session/a")
		require.NoError(t, err)
		b, err := svc.QRDataURL("https://speechloop.example/session/b")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}
