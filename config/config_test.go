package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when GEMINI_API_KEY is missing")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LyriaModel != "models/lyria-realtime-exp" {
		t.Errorf("LyriaModel = %s", cfg.LyriaModel)
	}
	if cfg.BufferLatency != 2*time.Second {
		t.Errorf("BufferLatency = %v, want 2s", cfg.BufferLatency)
	}
	if cfg.ThrottleInterval != 200*time.Millisecond {
		t.Errorf("ThrottleInterval = %v, want 200ms", cfg.ThrottleInterval)
	}
	if cfg.FadeDuration != 100*time.Millisecond {
		t.Errorf("FadeDuration = %v, want 100ms", cfg.FadeDuration)
	}
	if cfg.SampleRate != 48000 || cfg.Channels != 2 {
		t.Errorf("audio format = %d Hz %d ch, want 48000 Hz 2 ch", cfg.SampleRate, cfg.Channels)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PORT", "9000")
	t.Setenv("LYRIA_MODEL", "models/other")
	t.Setenv("BUFFER_LATENCY_MS", "1500")
	t.Setenv("THROTTLE_INTERVAL_MS", "50")
	t.Setenv("FADE_MS", "250")
	t.Setenv("SESSION_TIMEOUT", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.LyriaModel != "models/other" {
		t.Errorf("LyriaModel = %s", cfg.LyriaModel)
	}
	if cfg.BufferLatency != 1500*time.Millisecond {
		t.Errorf("BufferLatency = %v, want 1.5s", cfg.BufferLatency)
	}
	if cfg.ThrottleInterval != 50*time.Millisecond {
		t.Errorf("ThrottleInterval = %v, want 50ms", cfg.ThrottleInterval)
	}
	if cfg.FadeDuration != 250*time.Millisecond {
		t.Errorf("FadeDuration = %v, want 250ms", cfg.FadeDuration)
	}
	if cfg.SessionTimeout != 5*time.Minute {
		t.Errorf("SessionTimeout = %v, want 5m", cfg.SessionTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "not-a-number"},
		{"bad latency", "BUFFER_LATENCY_MS", "2s"},
		{"bad throttle", "THROTTLE_INTERVAL_MS", "fast"},
		{"bad fade", "FADE_MS", "0.1"},
		{"bad sample rate", "SAMPLE_RATE", "44.1k"},
		{"zero sample rate", "SAMPLE_RATE", "0"},
		{"negative sample rate", "SAMPLE_RATE", "-48000"},
		{"bad channels", "CHANNELS", "stereo"},
		{"zero channels", "CHANNELS", "0"},
		{"negative channels", "CHANNELS", "-2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-key")
			t.Setenv(tc.key, tc.value)
			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Errorf("error %q does not name %s", err, tc.key)
			}
		})
	}
}
