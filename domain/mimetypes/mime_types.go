package mimetypes

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"plan-chat/errors"

	"github.com/gabriel-vasile/mimetype"
)

type MIME string

const (
	Unknown MIME = "unknown"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"
)

// SupportedImages lists the attachments accepted by the gateway.
var SupportedImages = []MIME{ImagePNG, ImageJPEG, ImageGIF, ImageWEBP}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// Image is a decoded attachment. Declared is the type announced by the data URL,
// Detected the one sniffed from the bytes.
type Image struct {
	Declared  string
	Detected  MIME
	Extension string
	Data      []byte
}

func (i Image) Size() int { return len(i.Data) }

// DataURL re-encodes the image with its detected type.
func (i Image) DataURL() string {
	return "data:" + string(i.Detected) + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ParseDataURL decodes a "data:<type>;base64,<data>" payload and checks, from the
// bytes themselves, that it is one of the supported images.
func ParseDataURL(payload string, maxBytes int) (Image, error) {
	rest, ok := strings.CutPrefix(payload, "data:")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing data: scheme", errors.ErrInvalidImage)
	}
	header, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing data separator", errors.ErrInvalidImage)
	}
	declared, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return Image{}, fmt.Errorf("%w: only base64 payloads are accepted", errors.ErrInvalidImage)
	}
	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(encoded)) > maxBytes+2 {
		return Image{}, errors.ErrImageTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", errors.ErrInvalidImage, err)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return Image{}, errors.ErrImageTooLarge
	}

	detected := mimetype.Detect(data)
	for _, supported := range SupportedImages {
		if _, ok := Matches(detected.String(), supported); ok {
			return Image{
				Declared:  declared,
				Detected:  supported,
				Extension: detected.Extension(),
				Data:      data,
			}, nil
		}
	}
	return Image{}, fmt.Errorf("%w: unsupported content %s", errors.ErrInvalidImage, detected.String())
}

// EncodeDataURL builds a data URL from raw file content, the way a browser FileReader would.
func EncodeDataURL(data []byte) (string, error) {
	detected := mimetype.Detect(data)
	for _, supported := range SupportedImages {
		if _, ok := Matches(detected.String(), supported); ok {
			return Image{Detected: supported, Data: data}.DataURL(), nil
		}
	}
	return "", fmt.Errorf("%w: unsupported content %s", errors.ErrInvalidImage, detected.String())
}

// Reader exposes the decoded bytes, for uploaders working with streams.
func (i Image) Reader() *bytes.Reader {
	return bytes.NewReader(i.Data)
}
