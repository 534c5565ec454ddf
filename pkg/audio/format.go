package audio

import (
	"path/filepath"
	"strings"
)

// Format identifies the container format of an uploaded audio file.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatM4A     Format = "m4a"
	FormatOgg     Format = "ogg"
	FormatWebM    Format = "webm"
	FormatUnknown Format = "unknown"
)

// Detect guesses the container format of an upload. The filename extension
// wins when present; otherwise the Content-Type header is matched by
// substring; WAV is the last resort. Browsers disagree on which of the two
// fields they fill in for recorded audio, so both are consulted.
func Detect(filename, contentType string) Format {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		switch ext {
		case "wav":
			return FormatWAV
		case "mp3":
			return FormatMP3
		case "m4a":
			return FormatM4A
		case "ogg":
			return FormatOgg
		case "webm":
			return FormatWebM
		default:
			return FormatUnknown
		}
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"):
		return FormatWAV
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return FormatMP3
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"):
		return FormatM4A
	case strings.Contains(ct, "ogg"):
		return FormatOgg
	case strings.Contains(ct, "webm"):
		return FormatWebM
	}

	return FormatWAV
}
