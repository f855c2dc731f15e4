package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// ErrFormatMismatch is returned when WAV chunks that must share a format do not.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// Info describes the PCM stream inside a WAV container.
type Info struct {
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bit_depth"`
	Frames     int           `json:"frames"`
	Duration   time.Duration `json:"duration"`
}

// Inspect decodes the WAV header and PCM payload of data.
func Inspect(data []byte) (Info, error) {
	info, _, err := decode(data)
	return info, err
}

func decode(data []byte) (Info, *goaudio.Float32Buffer, error) {
	if len(data) == 0 {
		return Info{}, nil, errors.New("empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Info{}, nil, errors.New("invalid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Info{}, nil, fmt.Errorf("reading PCM data: %w", err)
	}

	info := Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if info.Channels > 0 {
		info.Frames = len(buf.Data) / info.Channels
	}
	if info.SampleRate > 0 {
		info.Duration = time.Duration(info.Frames) * time.Second / time.Duration(info.SampleRate)
	}

	return info, buf, nil
}

func sameFormat(a, b Info) bool {
	return a.SampleRate == b.SampleRate && a.Channels == b.Channels && a.BitDepth == b.BitDepth
}
