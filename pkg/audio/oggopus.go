package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"layeh.com/gopus"
)

// Opus always decodes at 48 kHz. A packet may carry at most 120 ms of
// audio, which bounds the decode buffer at 5760 samples per channel.
const (
	opusDecodeRate   = 48000
	opusMaxFrameSize = 5760
)

// DecodeOggOpus parses an Ogg container carrying an Opus stream and decodes
// it to PCM at 48 kHz. Only mono and stereo streams are accepted, which
// covers everything browsers record.
func DecodeOggOpus(data []byte) (Clip, error) {
	packets, err := oggPackets(data)
	if err != nil {
		return Clip{}, err
	}
	if len(packets) == 0 {
		return Clip{}, errors.New("audio: ogg stream has no packets")
	}

	// The first packet must be the OpusHead identification header
	// (RFC 7845): magic, version, channel count, pre-skip, input rate.
	head := packets[0]
	if len(head) < 19 || string(head[0:8]) != "OpusHead" {
		return Clip{}, errors.New("audio: ogg stream is not opus")
	}
	channels := int(head[9])
	preSkip := int(binary.LittleEndian.Uint16(head[10:12]))
	if channels < 1 || channels > 2 {
		return Clip{}, fmt.Errorf("audio: unsupported opus channel count %d", channels)
	}

	dec, err := gopus.NewDecoder(opusDecodeRate, channels)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: create opus decoder: %w", err)
	}

	var samples []int16
	for _, pkt := range packets[1:] {
		if len(pkt) == 0 {
			continue
		}
		// The OpusTags metadata packet carries no audio.
		if len(pkt) >= 8 && string(pkt[0:8]) == "OpusTags" {
			continue
		}
		pcm, err := dec.Decode(pkt, opusMaxFrameSize, false)
		if err != nil {
			return Clip{}, fmt.Errorf("audio: opus decode: %w", err)
		}
		samples = append(samples, pcm...)
	}

	// Pre-skip counts decoder priming samples that are not part of the
	// recording.
	if skip := preSkip * channels; skip < len(samples) {
		samples = samples[skip:]
	} else {
		samples = nil
	}

	return Clip{Samples: samples, SampleRate: opusDecodeRate, Channels: channels}, nil
}

// oggPackets walks the RFC 3533 page structure and reassembles the logical
// packets, joining segments that span page boundaries.
func oggPackets(data []byte) ([][]byte, error) {
	if len(data) < 4 || string(data[0:4]) != "OggS" {
		return nil, errors.New("audio: not an ogg stream")
	}

	var (
		packets [][]byte
		current []byte
	)

	off := 0
	for off+27 <= len(data) {
		if string(data[off:off+4]) != "OggS" {
			return nil, fmt.Errorf("audio: bad ogg capture pattern at offset %d", off)
		}
		if v := data[off+4]; v != 0 {
			return nil, fmt.Errorf("audio: unsupported ogg version %d", v)
		}
		segCount := int(data[off+26])
		tableOff := off + 27
		if tableOff+segCount > len(data) {
			return nil, errors.New("audio: truncated ogg page header")
		}

		bodyOff := tableOff + segCount
		for i := 0; i < segCount; i++ {
			segLen := int(data[tableOff+i])
			if bodyOff+segLen > len(data) {
				return nil, errors.New("audio: truncated ogg page body")
			}
			current = append(current, data[bodyOff:bodyOff+segLen]...)
			bodyOff += segLen
			// A lacing value below 255 terminates the packet.
			if segLen < 255 {
				packets = append(packets, current)
				current = nil
			}
		}
		off = bodyOff
	}

	// A packet still open after the last page was truncated mid-transfer
	// and cannot be decoded, so it is dropped.
	return packets, nil
}
