package config

import (
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the desktop companion.
type Config struct {
	Backend    BackendConfig
	Audio      AudioConfig
	Transcript TranscriptConfig
	Session    SessionConfig
	Log        LogConfig
}

type BackendConfig struct {
	Command       string
	Args          []string
	Host          string
	PortMin       int
	PortMax       int
	Path          string
	ReadySentinel string
}

type AudioConfig struct {
	PlayerCommand  string
	SampleRate     int
	Channels       int
	BufferSize     time.Duration
	PrimaryEnabled bool
}

type TranscriptConfig struct {
	PreviewWidth int
}

type SessionConfig struct {
	DialTimeout time.Duration
}

type LogConfig struct {
	Level slog.Level
}

var playerCandidates = []string{"ffplay", "mpv", "afplay", "paplay", "aplay"}

// Load resolves configuration from a local .env file, environment variables and defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Backend: BackendConfig{
			Command:       envOrDefault("DESKPET_BACKEND_COMMAND", "python"),
			Args:          strings.Fields(envOrDefault("DESKPET_BACKEND_ARGS", "-u app/backend/server.py")),
			Host:          envOrDefault("DESKPET_BACKEND_HOST", "127.0.0.1"),
			PortMin:       envOrDefaultInt("DESKPET_BACKEND_PORT_MIN", 18000),
			PortMax:       envOrDefaultInt("DESKPET_BACKEND_PORT_MAX", 19999),
			Path:          envOrDefault("DESKPET_BACKEND_PATH", "/ws"),
			ReadySentinel: envOrDefault("DESKPET_READY_SENTINEL", "READY"),
		},
		Audio: AudioConfig{
			PlayerCommand:  firstNonEmpty(os.Getenv("DESKPET_AUDIO_PLAYER"), detectPlayer()),
			SampleRate:     envOrDefaultInt("DESKPET_AUDIO_SAMPLE_RATE", 44100),
			Channels:       envOrDefaultInt("DESKPET_AUDIO_CHANNELS", 2),
			BufferSize:     time.Duration(envOrDefaultInt("DESKPET_AUDIO_BUFFER_MS", 100)) * time.Millisecond,
			PrimaryEnabled: envOrDefaultBool("DESKPET_AUDIO_PRIMARY", true),
		},
		Transcript: TranscriptConfig{
			PreviewWidth: envOrDefaultInt("DESKPET_PREVIEW_WIDTH", 110),
		},
		Session: SessionConfig{
			DialTimeout: time.Duration(envOrDefaultInt("DESKPET_DIAL_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
		Log: LogConfig{
			Level: parseLevel(os.Getenv("DESKPET_LOG_LEVEL")),
		},
	}

	if cfg.Backend.PortMin <= 0 || cfg.Backend.PortMin > 65535 {
		cfg.Backend.PortMin = 18000
	}
	if cfg.Backend.PortMax < cfg.Backend.PortMin || cfg.Backend.PortMax > 65535 {
		cfg.Backend.PortMax = cfg.Backend.PortMin
	}
	if !strings.HasPrefix(cfg.Backend.Path, "/") {
		cfg.Backend.Path = "/" + cfg.Backend.Path
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 44100
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		cfg.Audio.Channels = 2
	}
	if cfg.Audio.BufferSize <= 0 {
		cfg.Audio.BufferSize = 100 * time.Millisecond
	}
	if cfg.Transcript.PreviewWidth < 10 {
		cfg.Transcript.PreviewWidth = 110
	}
	if cfg.Session.DialTimeout <= 0 {
		cfg.Session.DialTimeout = 5 * time.Second
	}

	return cfg, nil
}

func detectPlayer() string {
	for _, candidate := range playerCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path
		}
	}
	return ""
}

func parseLevel(value string) slog.Level {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
