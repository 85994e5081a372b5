package audio

import (
	"errors"
	"testing"
	"time"
)

func TestDecodePCM16(t *testing.T) {
	// One stereo frame: left = 1, right = -1.
	data := []byte{0x01, 0x00, 0xFF, 0xFF}
	buf, err := DecodePCM16(data, 4, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buf.Samples) != 2 || buf.Samples[0] != 1 || buf.Samples[1] != -1 {
		t.Errorf("samples = %v, want [1 -1]", buf.Samples)
	}
	// 1 frame at 4 Hz is a quarter second.
	if buf.Duration != 250*time.Millisecond {
		t.Errorf("duration = %v, want 250ms", buf.Duration)
	}
}

func TestDecodePCM16Duration(t *testing.T) {
	// 48 stereo frames at 48kHz is exactly one millisecond.
	data := make([]byte, 48*2*2)
	buf, err := DecodePCM16(data, 48000, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Duration != time.Millisecond {
		t.Errorf("duration = %v, want 1ms", buf.Duration)
	}
}

func TestDecodePCM16Rejects(t *testing.T) {
	if _, err := DecodePCM16(nil, 48000, 2); !errors.Is(err, ErrEmptyChunk) {
		t.Errorf("empty chunk err = %v, want ErrEmptyChunk", err)
	}
	if _, err := DecodePCM16([]byte{0x01}, 48000, 2); !errors.Is(err, ErrOddLength) {
		t.Errorf("odd length err = %v, want ErrOddLength", err)
	}
	// Three samples cannot fill stereo frames.
	if _, err := DecodePCM16(make([]byte, 6), 48000, 2); err == nil {
		t.Error("expected error for samples not filling channels")
	}
}

func TestDecodePCM16RejectsBadFormat(t *testing.T) {
	frame := []byte{0x01, 0x00, 0x02, 0x00}
	if _, err := DecodePCM16(frame, 0, 2); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := DecodePCM16(frame, 48000, 0); err == nil {
		t.Error("expected error for zero channels")
	}
	if _, err := DecodePCM16(frame, -48000, 2); err == nil {
		t.Error("expected error for negative sample rate")
	}
}

func TestSamplesToBytesRoundTrip(t *testing.T) {
	in := []int16{1, -1, 32767, -32768}
	buf, err := DecodePCM16(SamplesToBytes(in), 48000, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i, s := range buf.Samples {
		if s != in[i] {
			t.Errorf("sample %d = %d, want %d", i, s, in[i])
		}
	}
}
