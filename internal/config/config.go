// Package config loads HoloSelf settings.
//
// Values come from built-in defaults, then an optional YAML settings file,
// then environment variables (HOLOSELF_ prefix, plus the legacy
// GEMINI_API_KEY, CARTESIA_API_KEY, WHISPER_CPP_PATH and WHISPER_MODEL_PATH).
// The resulting Config is passed explicitly to every collaborator.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all HoloSelf settings
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	DBPath    string          `yaml:"db_path"`
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Voice     VoiceConfig     `yaml:"voice"`
	Location  LocationConfig  `yaml:"location"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"` // sustained requests per second
	RateBurst int     `yaml:"rate_burst"`
}

// LLMConfig contains text generation and lab extraction settings
type LLMConfig struct {
	Provider      string        `yaml:"provider"` // gemini, openai or none
	GeminiAPIKey  string        `yaml:"gemini_api_key"`
	GeminiModel   string        `yaml:"gemini_model"`
	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIModel   string        `yaml:"openai_model"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float32       `yaml:"temperature"`
}

// VoiceConfig contains speech synthesis and transcription settings
type VoiceConfig struct {
	CartesiaAPIKey  string `yaml:"cartesia_api_key"`
	CartesiaVoiceID string `yaml:"cartesia_voice_id"`
	CartesiaModelID string `yaml:"cartesia_model_id"`
	NativeTTS       bool   `yaml:"native_tts"`
	WhisperBinary   string `yaml:"whisper_binary"`
	WhisperModel    string `yaml:"whisper_model"`
	Language        string `yaml:"language"`
	Threads         int    `yaml:"threads"`
	Workers         int    `yaml:"workers"`
}

// LocationConfig describes where the user lives: vitamin D inputs and the
// timezone that defines their calendar day.
type LocationConfig struct {
	SkinType  int     `yaml:"skin_type"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"`
}

// Location loads the configured IANA timezone. An empty name means the
// system zone.
func (l LocationConfig) Location() (*time.Location, error) {
	if l.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}

// SchedulerConfig controls the periodic exam refresh in serve mode
type SchedulerConfig struct {
	RefreshCron string `yaml:"refresh_cron"`
}

// Default returns the built-in settings rooted at dataDir
func Default(dataDir string) *Config {
	return &Config{
		DataDir: dataDir,
		DBPath:  filepath.Join(dataDir, "holoself.db"),
		Server: ServerConfig{
			Addr:      "127.0.0.1:7373",
			RateLimit: 10,
			RateBurst: 20,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			GeminiModel: "gemini-2.0-flash",
			OpenAIModel: "gpt-4o-mini",
			Timeout:     30 * time.Second,
			MaxTokens:   120,
			Temperature: 0.3,
		},
		Voice: VoiceConfig{
			CartesiaVoiceID: "a0e99841-438c-4a64-b679-ae501e7d6091",
			CartesiaModelID: "sonic-2",
			Language:        "pt",
			Threads:         4,
			Workers:         2,
		},
		Location: LocationConfig{
			SkinType:  4,
			Latitude:  38.7223,
			Longitude: -9.1393,
			Timezone:  "WET",
		},
		Scheduler: SchedulerConfig{
			RefreshCron: "0 7 * * *",
		},
	}
}

// DefaultDataDir is ~/.holoself
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".holoself"
	}
	return filepath.Join(home, ".holoself")
}

// DefaultPath is the settings file inside the default data dir
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "settings.yaml")
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists) and the environment
func Load(path string) (*Config, error) {
	cfg := Default(DefaultDataDir())

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	applyEnv(cfg)

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "holoself.db")
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the parent directory
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() *Config {
	cp := *c
	cp.LLM.GeminiAPIKey = mask(cp.LLM.GeminiAPIKey)
	cp.LLM.OpenAIAPIKey = mask(cp.LLM.OpenAIAPIKey)
	cp.Voice.CartesiaAPIKey = mask(cp.Voice.CartesiaAPIKey)
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func applyEnv(cfg *Config) {
	if v := getEnv("HOLOSELF_DATA_DIR", ""); v != "" {
		cfg.DataDir = v
		cfg.DBPath = filepath.Join(v, "holoself.db")
	}
	cfg.DBPath = getEnv("HOLOSELF_DB_PATH", cfg.DBPath)
	cfg.Server.Addr = getEnv("HOLOSELF_ADDR", cfg.Server.Addr)

	cfg.LLM.Provider = getEnv("HOLOSELF_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.LLM.GeminiAPIKey)
	cfg.LLM.GeminiModel = getEnv("HOLOSELF_GEMINI_MODEL", cfg.LLM.GeminiModel)
	cfg.LLM.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIModel = getEnv("HOLOSELF_OPENAI_MODEL", cfg.LLM.OpenAIModel)
	cfg.LLM.OpenAIBaseURL = getEnv("HOLOSELF_OPENAI_BASE_URL", cfg.LLM.OpenAIBaseURL)
	cfg.LLM.Timeout = getEnvDuration("HOLOSELF_LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.Voice.CartesiaAPIKey = getEnv("CARTESIA_API_KEY", cfg.Voice.CartesiaAPIKey)
	cfg.Voice.CartesiaVoiceID = getEnv("HOLOSELF_CARTESIA_VOICE_ID", cfg.Voice.CartesiaVoiceID)
	cfg.Voice.WhisperBinary = getEnv("WHISPER_CPP_PATH", cfg.Voice.WhisperBinary)
	cfg.Voice.WhisperModel = getEnv("WHISPER_MODEL_PATH", cfg.Voice.WhisperModel)
	cfg.Voice.Workers = getEnvInt("HOLOSELF_VOICE_WORKERS", cfg.Voice.Workers)

	cfg.Location.Timezone = getEnv("HOLOSELF_TIMEZONE", cfg.Location.Timezone)
	cfg.Scheduler.RefreshCron = getEnv("HOLOSELF_REFRESH_CRON", cfg.Scheduler.RefreshCron)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
