package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// StripWAVHeader returns the PCM payload of a RIFF/WAVE buffer and its sample
// rate. Buffers without a RIFF header are returned unchanged with rate 0.
func StripWAVHeader(data []byte) ([]byte, int, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return data, 0, nil
	}

	sampleRate := 0
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		switch id {
		case "fmt ":
			if body+8 > len(data) {
				return nil, 0, errors.New("truncated wav fmt chunk")
			}
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
		case "data":
			end := body + size
			if end > len(data) || size == 0 {
				end = len(data)
			}
			return data[body:end], sampleRate, nil
		}
		offset = body + size + size%2
	}
	return nil, 0, errors.New("wav data chunk not found")
}

// BytesForDuration returns the PCM16 mono byte count covering d at sampleRate
func BytesForDuration(sampleRate int, d time.Duration) int {
	n := int(int64(sampleRate) * int64(d) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return n * 2
}
