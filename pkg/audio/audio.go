// Package audio handles the clip formats users upload for evaluation:
// container detection, WAV and Ogg/Opus decoding, WAV encoding, and the
// PCM conversions needed to hand a clip to a transcriber.
package audio

import "time"

// Clip is decoded 16-bit signed PCM audio. Samples are interleaved when
// Channels is greater than one.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the clip, or 0 when the clip
// carries no rate or channel information.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// To16kMono returns the clip downmixed to one channel and resampled to
// 16 kHz, the layout whisper inference expects. A clip already in that
// layout is returned unchanged.
func (c Clip) To16kMono() Clip {
	samples := c.Samples
	if c.Channels > 1 {
		samples = DownmixMono(samples, c.Channels)
	}
	samples = ResampleMono(samples, c.SampleRate, 16000)
	return Clip{Samples: samples, SampleRate: 16000, Channels: 1}
}
