package audio_test

import (
	"encoding/binary"
	"strings"
	"testing"

	"layeh.com/gopus"

	"github.com/MrWong99/parlo/pkg/audio"
)

// oggPage builds a single RFC 3533 page carrying the given segments. The
// CRC field is left zero; the decoder does not verify it. Segments of
// exactly 255 bytes continue into the next segment or page.
func oggPage(t *testing.T, segments ...[]byte) []byte {
	t.Helper()
	if len(segments) > 255 {
		t.Fatalf("too many segments: %d", len(segments))
	}
	page := append([]byte("OggS"), 0, 0)      // version, header type
	page = append(page, make([]byte, 20)...)  // granule, serial, sequence, crc
	page = append(page, byte(len(segments)))
	for _, seg := range segments {
		if len(seg) > 255 {
			t.Fatalf("segment too long: %d", len(seg))
		}
		page = append(page, byte(len(seg)))
	}
	for _, seg := range segments {
		page = append(page, seg...)
	}
	return page
}

// opusHead builds a minimal RFC 7845 identification header.
func opusHead(channels int, preSkip uint16) []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1 // version
	head[9] = byte(channels)
	binary.LittleEndian.PutUint16(head[10:12], preSkip)
	binary.LittleEndian.PutUint32(head[12:16], 48000)
	return head
}

// opusTags builds a minimal metadata packet: empty vendor, zero comments.
func opusTags() []byte {
	tags := append([]byte("OpusTags"), 0, 0, 0, 0)
	return append(tags, 0, 0, 0, 0)
}

func TestDecodeOggOpus_RealPacket(t *testing.T) {
	enc, err := gopus.NewEncoder(48000, 1, gopus.Audio)
	if err != nil {
		t.Fatalf("create encoder: %v", err)
	}
	// 20 ms of a quiet ramp, encoded into one genuine opus packet.
	pcm := make([]int16, 960)
	for i := range pcm {
		pcm[i] = int16(i % 128)
	}
	packet, err := enc.Encode(pcm, 960, 4000)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var stream []byte
	stream = append(stream, oggPage(t, opusHead(1, 0))...)
	stream = append(stream, oggPage(t, opusTags())...)
	stream = append(stream, oggPage(t, packet)...)

	clip, err := audio.DecodeOggOpus(stream)
	if err != nil {
		t.Fatalf("DecodeOggOpus: %v", err)
	}
	if clip.SampleRate != 48000 || clip.Channels != 1 {
		t.Errorf("layout = %dHz %dch, want 48000Hz 1ch", clip.SampleRate, clip.Channels)
	}
	if len(clip.Samples) != 960 {
		t.Errorf("samples = %d, want 960", len(clip.Samples))
	}
}

func TestDecodeOggOpus_PreSkipTrimmed(t *testing.T) {
	enc, err := gopus.NewEncoder(48000, 1, gopus.Audio)
	if err != nil {
		t.Fatalf("create encoder: %v", err)
	}
	packet, err := enc.Encode(make([]int16, 960), 960, 4000)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var stream []byte
	stream = append(stream, oggPage(t, opusHead(1, 100))...)
	stream = append(stream, oggPage(t, opusTags())...)
	stream = append(stream, oggPage(t, packet)...)

	clip, err := audio.DecodeOggOpus(stream)
	if err != nil {
		t.Fatalf("DecodeOggOpus: %v", err)
	}
	if len(clip.Samples) != 860 {
		t.Errorf("samples = %d, want 860 after pre-skip", len(clip.Samples))
	}
}

func TestDecodeOggOpus_GarbagePacket(t *testing.T) {
	// A code 3 packet with no frame count byte is invalid per RFC 6716.
	var stream []byte
	stream = append(stream, oggPage(t, opusHead(1, 0))...)
	stream = append(stream, oggPage(t, opusTags())...)
	stream = append(stream, oggPage(t, []byte{0xFF})...)

	_, err := audio.DecodeOggOpus(stream)
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}
	if !strings.Contains(err.Error(), "opus decode") {
		t.Errorf("error %q should come from the packet decode", err)
	}
}

func TestDecodeOggOpus_Errors(t *testing.T) {
	longFake := make([]byte, 200)
	copy(longFake, "OpusHead")

	tests := []struct {
		name   string
		stream []byte
	}{
		{"empty", nil},
		{"not ogg", []byte("RIFFxxxxWAVE")},
		{"no packets", oggPage(t)},
		{"not opus", oggPage(t, []byte("\x01vorbis\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"))},
		{"head too short", oggPage(t, []byte("OpusHead"))},
		{"too many channels", oggPage(t, opusHead(3, 0))},
		{"truncated header", []byte("OggS\x00\x00....................\xFF")},
		{"truncated body", oggPage(t, longFake)[:60]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := audio.DecodeOggOpus(tt.stream); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDecodeOggOpus_OpenPacketDropped(t *testing.T) {
	// A 255-byte lacing value promises a continuation that never arrives.
	seg := make([]byte, 255)
	copy(seg, "OpusHead")

	_, err := audio.DecodeOggOpus(oggPage(t, seg))
	if err == nil || !strings.Contains(err.Error(), "no packets") {
		t.Errorf("err = %v, want the no-packets error", err)
	}
}
