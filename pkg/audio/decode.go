package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned by Decode for containers this package
// cannot decode natively.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decode decodes an uploaded file according to its detected format. MP3,
// M4A and WebM need an external transcoder this service does not ship, so
// they fail with ErrUnsupportedFormat.
func Decode(data []byte, f Format) (Clip, error) {
	switch f {
	case FormatWAV:
		return DecodeWAV(data)
	case FormatOgg:
		return DecodeOggOpus(data)
	default:
		return Clip{}, fmt.Errorf("audio: format %q: %w", f, ErrUnsupportedFormat)
	}
}
