package lyria

import (
	"testing"

	"github.com/bytedance/sonic"
)

func ptr[T any](v T) *T { return &v }

func TestMusicGenerationConfigOmitsUnsetFields(t *testing.T) {
	raw, err := sonic.Marshal(MusicGenerationConfig{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("zero config marshaled to %s, want {}", raw)
	}

	raw, err = sonic.Marshal(MusicGenerationConfig{
		BPM:   ptr(120),
		Scale: ScaleDMajorBMinor,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"bpm":120,"scale":"D_MAJOR_B_MINOR"}`
	if string(raw) != want {
		t.Errorf("marshaled to %s, want %s", raw, want)
	}
}

func TestMusicGenerationConfigPartialDecode(t *testing.T) {
	var cfg MusicGenerationConfig
	err := sonic.Unmarshal([]byte(`{"temperature":1.4,"muteBass":true}`), &cfg)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 1.4 {
		t.Errorf("temperature = %v, want 1.4", cfg.Temperature)
	}
	if cfg.MuteBass == nil || !*cfg.MuteBass {
		t.Errorf("muteBass = %v, want true", cfg.MuteBass)
	}
	if cfg.TopK != nil || cfg.BPM != nil || cfg.Density != nil {
		t.Errorf("unset fields decoded non-nil: %+v", cfg)
	}
}

func TestServerFrameDecoding(t *testing.T) {
	raw := []byte(`{"filteredPrompt":{"text":"loud noise","filteredReason":"SAFETY"}}`)
	var frame serverFrame
	if err := sonic.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.FilteredPrompt == nil {
		t.Fatal("filteredPrompt not decoded")
	}
	if frame.FilteredPrompt.Text != "loud noise" || frame.FilteredPrompt.FilteredReason != "SAFETY" {
		t.Errorf("filteredPrompt = %+v", frame.FilteredPrompt)
	}
	if len(frame.SetupComplete) != 0 || frame.ServerContent != nil {
		t.Errorf("unexpected fields decoded: %+v", frame)
	}

	raw = []byte(`{"serverContent":{"audioChunks":[{"data":"AAAA"},{"data":"////"}]}}`)
	frame = serverFrame{}
	if err := sonic.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.ServerContent == nil || len(frame.ServerContent.AudioChunks) != 2 {
		t.Fatalf("audio chunks not decoded: %+v", frame.ServerContent)
	}
	if frame.ServerContent.AudioChunks[0].Data != "AAAA" {
		t.Errorf("chunk data = %q", frame.ServerContent.AudioChunks[0].Data)
	}
}

func TestClientFrameEncoding(t *testing.T) {
	raw, err := sonic.Marshal(clientFrame{PlaybackControl: controlPlay})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"playbackControl":"PLAY"}` {
		t.Errorf("control frame = %s", raw)
	}

	raw, err = sonic.Marshal(clientFrame{
		ClientContent: &clientContent{
			WeightedPrompts: []WeightedPrompt{{Text: "minimal techno", Weight: 1}},
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"clientContent":{"weightedPrompts":[{"text":"minimal techno","weight":1}]}}`
	if string(raw) != want {
		t.Errorf("prompt frame = %s, want %s", raw, want)
	}
}
