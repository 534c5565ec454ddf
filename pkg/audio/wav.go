package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// bitsPerSample is fixed at 16 for the signed little-endian PCM this
// package works with.
const bitsPerSample = 16

// DecodeWAV parses a RIFF/WAVE container holding uncompressed 16-bit PCM
// and returns its samples. Compressed encodings and other bit depths are
// rejected. Chunks other than fmt and data are skipped.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, errors.New("audio: not a RIFF/WAVE file")
	}

	var (
		clip     Clip
		pcm      []byte
		haveFmt  bool
		haveData bool
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if size < 0 || off+size > len(data) {
			// Some encoders write a data size that overruns the file
			// (streamed recordings). Clamp to what is actually present.
			size = len(data) - off
		}
		body := data[off : off+size]

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return Clip{}, errors.New("audio: wav fmt chunk too short")
			}
			encoding := binary.LittleEndian.Uint16(body[0:2])
			channels := int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate := int(binary.LittleEndian.Uint32(body[4:8]))
			bits := int(binary.LittleEndian.Uint16(body[14:16]))
			if encoding != 1 {
				return Clip{}, fmt.Errorf("audio: unsupported wav encoding %d, want PCM", encoding)
			}
			if bits != bitsPerSample {
				return Clip{}, fmt.Errorf("audio: unsupported wav bit depth %d, want %d", bits, bitsPerSample)
			}
			if channels < 1 || sampleRate < 1 {
				return Clip{}, fmt.Errorf("audio: invalid wav layout: %d channels at %d Hz", channels, sampleRate)
			}
			clip.Channels = channels
			clip.SampleRate = sampleRate
			haveFmt = true
		case "data":
			pcm = body
			haveData = true
		}

		off += size
		// Chunks are word aligned; odd sizes carry one pad byte.
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt || !haveData {
		return Clip{}, errors.New("audio: wav missing fmt or data chunk")
	}

	clip.Samples = bytesToInt16(pcm)
	return clip, nil
}

// EncodeWAV wraps the clip's samples in a standard RIFF/WAVE container with
// a 44-byte header, as 16-bit signed little-endian PCM.
func EncodeWAV(c Clip) []byte {
	pcm := int16ToBytes(c.Samples)
	byteRate := c.SampleRate * c.Channels * bitsPerSample / 8
	blockAlign := c.Channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels)) // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// bytesToInt16 converts little-endian PCM bytes to int16 samples. A trailing
// odd byte is dropped.
func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return out
}

// int16ToBytes converts int16 samples to little-endian PCM bytes.
func int16ToBytes(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
