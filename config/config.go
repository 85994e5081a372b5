package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/utsavbalhara/promptdj/lyria"
)

// Config holds all server configuration
type Config struct {
	Port             int
	GeminiAPIKey     string
	LyriaEndpoint    string // empty means the production endpoint
	LyriaModel       string
	RedisURL         string
	RedisPassword    string
	SessionTimeout   time.Duration
	AllowedOrigins   []string
	BufferLatency    time.Duration // warm-up window before audio starts
	ThrottleInterval time.Duration // minimum spacing between control syncs
	FadeDuration     time.Duration // gain ramp length on state changes
	SampleRate       int
	Channels         int
	PlayerCommand    string // external PCM player, split on whitespace
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:             8080,
		LyriaModel:       lyria.DefaultModel,
		RedisURL:         "localhost:6379",
		RedisPassword:    "",
		SessionTimeout:   30 * time.Minute,
		AllowedOrigins:   []string{"*"},
		BufferLatency:    2 * time.Second,
		ThrottleInterval: 200 * time.Millisecond,
		FadeDuration:     100 * time.Millisecond,
		SampleRate:       lyria.SampleRate,
		Channels:         lyria.Channels,
		PlayerCommand:    "sox -t raw -r 48000 -b 16 -c 2 -e signed-integer - -d",
	}

	// Required: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: LYRIA_ENDPOINT
	if endpoint := os.Getenv("LYRIA_ENDPOINT"); endpoint != "" {
		config.LyriaEndpoint = endpoint
	}

	// Optional: LYRIA_MODEL
	if model := os.Getenv("LYRIA_MODEL"); model != "" {
		config.LyriaModel = model
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: BUFFER_LATENCY_MS (in milliseconds)
	if latency := os.Getenv("BUFFER_LATENCY_MS"); latency != "" {
		l, err := strconv.Atoi(latency)
		if err != nil {
			return nil, fmt.Errorf("invalid BUFFER_LATENCY_MS: %w", err)
		}
		config.BufferLatency = time.Duration(l) * time.Millisecond
	}

	// Optional: THROTTLE_INTERVAL_MS (in milliseconds)
	if interval := os.Getenv("THROTTLE_INTERVAL_MS"); interval != "" {
		i, err := strconv.Atoi(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid THROTTLE_INTERVAL_MS: %w", err)
		}
		config.ThrottleInterval = time.Duration(i) * time.Millisecond
	}

	// Optional: FADE_MS (in milliseconds)
	if fade := os.Getenv("FADE_MS"); fade != "" {
		f, err := strconv.Atoi(fade)
		if err != nil {
			return nil, fmt.Errorf("invalid FADE_MS: %w", err)
		}
		config.FadeDuration = time.Duration(f) * time.Millisecond
	}

	// Optional: SAMPLE_RATE (in Hz)
	if rate := os.Getenv("SAMPLE_RATE"); rate != "" {
		r, err := strconv.Atoi(rate)
		if err != nil {
			return nil, fmt.Errorf("invalid SAMPLE_RATE: %w", err)
		}
		if r <= 0 {
			return nil, fmt.Errorf("invalid SAMPLE_RATE: must be positive")
		}
		config.SampleRate = r
	}

	// Optional: CHANNELS
	if channels := os.Getenv("CHANNELS"); channels != "" {
		c, err := strconv.Atoi(channels)
		if err != nil {
			return nil, fmt.Errorf("invalid CHANNELS: %w", err)
		}
		if c <= 0 {
			return nil, fmt.Errorf("invalid CHANNELS: must be positive")
		}
		config.Channels = c
	}

	// Optional: PLAYER_COMMAND
	if player := os.Getenv("PLAYER_COMMAND"); player != "" {
		config.PlayerCommand = player
	}

	return config, nil
}
