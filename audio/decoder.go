// Package audio turns raw PCM chunks from the music service into
// gapless scheduled playback.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyChunk = errors.New("audio: empty chunk")
	ErrOddLength  = errors.New("audio: chunk length is not a whole number of samples")
)

// PCMBuffer is a decoded chunk plus its playback duration.
type PCMBuffer struct {
	Samples  []int16
	Duration time.Duration
}

// DecodeFunc converts a raw chunk into a PCMBuffer.
type DecodeFunc func(data []byte) (PCMBuffer, error)

// NewPCM16Decoder returns a decoder for little-endian 16-bit PCM at the
// given rate and channel count.
func NewPCM16Decoder(sampleRate, channels int) DecodeFunc {
	return func(data []byte) (PCMBuffer, error) {
		return DecodePCM16(data, sampleRate, channels)
	}
}

// DecodePCM16 decodes little-endian 16-bit PCM. The duration is derived
// from the frame count, so a chunk must hold whole frames.
func DecodePCM16(data []byte, sampleRate, channels int) (PCMBuffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return PCMBuffer{}, fmt.Errorf("audio: invalid format: %d Hz, %d channels", sampleRate, channels)
	}
	if len(data) == 0 {
		return PCMBuffer{}, ErrEmptyChunk
	}
	if len(data)%2 != 0 {
		return PCMBuffer{}, ErrOddLength
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	if len(samples)%channels != 0 {
		return PCMBuffer{}, fmt.Errorf("audio: %d samples do not fill %d channels", len(samples), channels)
	}
	frames := len(samples) / channels
	return PCMBuffer{
		Samples:  samples,
		Duration: time.Duration(frames) * time.Second / time.Duration(sampleRate),
	}, nil
}

// SamplesToBytes re-encodes samples as little-endian 16-bit PCM.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
