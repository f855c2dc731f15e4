package audio

import (
	"bytes"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// Concat joins PCM WAV files that share one format into a single WAV.
// A single input is returned unchanged.
func Concat(wavs [][]byte) ([]byte, error) {
	switch len(wavs) {
	case 0:
		return nil, fmt.Errorf("no WAV chunks to concatenate")
	case 1:
		return wavs[0], nil
	}

	var (
		format Info
		merged []float32
	)
	for i, data := range wavs {
		info, buf, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode chunk %d WAV: %w", i+1, err)
		}
		if i == 0 {
			format = info
			merged = make([]float32, 0, len(buf.Data)*len(wavs))
		} else if !sameFormat(format, info) {
			return nil, fmt.Errorf("%w: chunk %d is %d Hz/%d ch/%d bit, want %d Hz/%d ch/%d bit",
				ErrFormatMismatch, i+1,
				info.SampleRate, info.Channels, info.BitDepth,
				format.SampleRate, format.Channels, format.BitDepth)
		}
		merged = append(merged, buf.Data...)
	}

	return encode(merged, format)
}

func encode(samples []float32, format Info) ([]byte, error) {
	var buf bytes.Buffer

	// wav.NewEncoder requires an io.WriteSeeker; bytes.Buffer is not one.
	sw := &seekBuffer{buf: &buf}

	enc := wav.NewEncoder(sw, format.SampleRate, format.BitDepth, format.Channels, 1) // 1 = PCM

	pcmBuf := &goaudio.Float32Buffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: format.SampleRate, NumChannels: format.Channels},
		SourceBitDepth: format.BitDepth,
	}

	if err := enc.Write(pcmBuf); err != nil {
		return nil, fmt.Errorf("writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}

	return buf.Bytes(), nil
}

// seekBuffer wraps a bytes.Buffer to satisfy io.WriteSeeker.
type seekBuffer struct {
	buf *bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if s.pos == s.buf.Len() {
		n, err := s.buf.Write(p)
		s.pos += n
		return n, err
	}
	// Writing in the middle: overwrite existing bytes.
	data := s.buf.Bytes()
	n := copy(data[s.pos:], p)
	if n < len(p) {
		data = append(data, p[n:]...)
		s.buf.Reset()
		s.buf.Write(data)
		n = len(p)
	}
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case 0: // io.SeekStart
		newPos = int(offset)
	case 1: // io.SeekCurrent
		newPos = s.pos + int(offset)
	case 2: // io.SeekEnd
		newPos = s.buf.Len() + int(offset)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("seek before start")
	}
	s.pos = newPos
	return int64(newPos), nil
}
