package preprocess

import (
	"bytes"

	"github.com/adalundhe/prism/core/errors"
)

// ImageFormat is a detected image encoding.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
	FormatGIF  ImageFormat = "gif"
	FormatWebP ImageFormat = "webp"
)

// SniffFormat detects the image encoding from its content signature. The
// declared content-type and filename are never trusted.
func SniffFormat(data []byte) (ImageFormat, error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, nil
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return FormatJPEG, nil
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF, nil
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP, nil
	default:
		return "", errors.New(errors.KindValidation, "unrecognized image signature", nil)
	}
}
