package mimetypes

import (
	"encoding/base64"
	"testing"

	"plan-chat/errors"

	"github.com/stretchr/testify/require"
)

// Smallest valid PNG: 1x1 transparent pixel.
var pixelPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		detected string
		expected MIME
		want     bool
	}{
		{"PNG", "image/png", ImagePNG, true},
		{"JPEG", "image/jpeg", ImageJPEG, true},
		{"GIF", "image/gif", ImageGIF, true},
		{"WEBP", "image/webp", ImageWEBP, true},
		{"Mismatch", "image/png", ImageJPEG, false},
		{"Text is not an image", "text/plain; charset=utf-8", ImagePNG, false},
		{"Invalid MIME", "not a mime", ImagePNG, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Matches(tt.detected, tt.expected)
			require.Equal(t, tt.want, ok)
		})
	}
}

func TestParseDataURL(t *testing.T) {
	req := require.New(t)

	// Given a browser-style data URL of a PNG
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pixelPNG)

	// When it is parsed
	img, err := ParseDataURL(payload, 1024)

	// Then the content is sniffed as PNG
	req.NoError(err)
	req.Equal(ImagePNG, img.Detected)
	req.Equal("image/png", img.Declared)
	req.Equal(".png", img.Extension)
	req.Equal(pixelPNG, img.Data)
	req.Equal(payload, img.DataURL())
}

func TestParseDataURL_Rejections(t *testing.T) {
	textPayload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("definitely not a picture"))
	pngPayload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pixelPNG)

	tests := []struct {
		name     string
		payload  string
		maxBytes int
		wantErr  error
	}{
		{"Plain URL", "https://example.com/a.png", 0, errors.ErrInvalidImage},
		{"No separator", "data:image/png;base64", 0, errors.ErrInvalidImage},
		{"Not base64", "data:image/png,abc", 0, errors.ErrInvalidImage},
		{"Broken base64", "data:image/png;base64,!!!", 0, errors.ErrInvalidImage},
		{"Lying content type", textPayload, 0, errors.ErrInvalidImage},
		{"Too large", pngPayload, 10, errors.ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDataURL(tt.payload, tt.maxBytes)
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, errors.ErrValidation)
		})
	}
}

func TestEncodeDataURL(t *testing.T) {
	req := require.New(t)

	dataURL, err := EncodeDataURL(pixelPNG)
	req.NoError(err)

	img, err := ParseDataURL(dataURL, 0)
	req.NoError(err)
	req.Equal(pixelPNG, img.Data)

	_, err = EncodeDataURL([]byte("hello"))
	req.ErrorIs(err, errors.ErrInvalidImage)
}
