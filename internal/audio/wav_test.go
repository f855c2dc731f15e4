package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// makeWAV builds a minimal valid WAV file from parameters for testing.
func makeWAV(sampleRate uint32, numChannels uint16, bitDepth uint16, numSamples int) []byte {
	blockAlign := numChannels * bitDepth / 8
	byteRate := sampleRate * uint32(blockAlign)
	dataSize := uint32(numSamples) * uint32(blockAlign)
	riffSize := 4 + (8 + 16) + (8 + dataSize)

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(riffSize))
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16)) // chunk size
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM
	_ = binary.Write(buf, binary.LittleEndian, numChannels)
	_ = binary.Write(buf, binary.LittleEndian, sampleRate)
	_ = binary.Write(buf, binary.LittleEndian, byteRate)
	_ = binary.Write(buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(buf, binary.LittleEndian, bitDepth)

	// data chunk
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	for range numSamples * int(numChannels) {
		_ = binary.Write(buf, binary.LittleEndian, int16(1000))
	}

	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	t.Run("reads format and duration", func(t *testing.T) {
		info, err := Inspect(makeWAV(16000, 1, 16, 1600))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.SampleRate != 16000 || info.Channels != 1 || info.BitDepth != 16 {
			t.Errorf("format = %+v", info)
		}
		if info.Frames != 1600 {
			t.Errorf("frames = %d, want 1600", info.Frames)
		}
		if info.Duration != 100*time.Millisecond {
			t.Errorf("duration = %v, want 100ms", info.Duration)
		}
	})

	t.Run("counts frames for stereo", func(t *testing.T) {
		info, err := Inspect(makeWAV(8000, 2, 16, 80))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Frames != 80 {
			t.Errorf("frames = %d, want 80", info.Frames)
		}
	})

	t.Run("rejects invalid WAV data", func(t *testing.T) {
		if _, err := Inspect([]byte("not a wav file")); err == nil {
			t.Fatal("expected error for invalid WAV")
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		if _, err := Inspect(nil); err == nil {
			t.Fatal("expected error for nil input")
		}
	})
}

func TestConcat(t *testing.T) {
	t.Run("joins chunks of the same format", func(t *testing.T) {
		out, err := Concat([][]byte{makeWAV(16000, 1, 16, 100), makeWAV(16000, 1, 16, 250)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := Inspect(out)
		if err != nil {
			t.Fatalf("inspect merged: %v", err)
		}
		if info.Frames != 350 {
			t.Errorf("frames = %d, want 350", info.Frames)
		}
		if info.SampleRate != 16000 || info.BitDepth != 16 || info.Channels != 1 {
			t.Errorf("merged format = %+v", info)
		}
	})

	t.Run("single chunk is returned unchanged", func(t *testing.T) {
		in := makeWAV(16000, 1, 16, 10)
		out, err := Concat([][]byte{in})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(in, out) {
			t.Error("single chunk was re-encoded")
		}
	})

	t.Run("rejects mismatched sample rates", func(t *testing.T) {
		_, err := Concat([][]byte{makeWAV(16000, 1, 16, 10), makeWAV(8000, 1, 16, 10)})
		if !errors.Is(err, ErrFormatMismatch) {
			t.Errorf("expected ErrFormatMismatch, got %v", err)
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		if _, err := Concat(nil); err == nil {
			t.Fatal("expected error for no chunks")
		}
	})
}

func TestSeekBuffer_OverwritesInPlace(t *testing.T) {
	var buf bytes.Buffer
	sb := &seekBuffer{buf: &buf}

	_, _ = sb.Write([]byte("abcdef"))
	if _, err := sb.Seek(2, 0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	_, _ = sb.Write([]byte("XYZW"))
	_, _ = sb.Write([]byte("!"))

	if got := buf.String(); got != "abXYZW!" {
		t.Errorf("buffer = %q, want %q", got, "abXYZW!")
	}
	if _, err := sb.Seek(-1, 0); err == nil {
		t.Error("expected error seeking before start")
	}
}
