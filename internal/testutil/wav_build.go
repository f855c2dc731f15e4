package testutil

import (
	"bytes"
	"encoding/binary"
)

// PCMWAV builds a mono 16-bit PCM WAV holding frames samples at sampleRate.
func PCMWAV(sampleRate, frames int) []byte {
	const (
		channels  = 1
		bitDepth  = 16
		blockSize = channels * bitDepth / 8
	)
	dataSize := uint32(frames * blockSize)

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 4+(8+16)+(8+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockSize))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockSize))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitDepth))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	for i := range frames {
		_ = binary.Write(buf, binary.LittleEndian, int16((i%64)*256))
	}

	return buf.Bytes()
}
