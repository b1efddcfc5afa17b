package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
)

// Config represents application configuration
type Config struct {
	// Feishu transport
	Feishu FeishuConfig

	// Moderation (optional content review)
	Moderation ModerationConfig

	// Store
	DBPath string

	// Whisper behavior
	Whisper WhisperConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains transport credentials
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// ModerationConfig contains the optional content review settings
type ModerationConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// WhisperConfig tunes the whisper lifecycle
type WhisperConfig struct {
	PurgeDelaySeconds  int // grace window before delivered content is removed
	PopupWordLimit     int // max words for ephemeral popup delivery
	FlowIdleMinutes    int // creation flow abandonment timeout
	CleanupIntervalMin int // stale flow sweep interval
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("WHISPER_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".whisper-relay", "relay.db")
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		Moderation: ModerationConfig{
			APIKey:  os.Getenv("MODERATION_API_KEY"),
			BaseURL: os.Getenv("MODERATION_BASE_URL"),
			Model:   os.Getenv("MODERATION_MODEL"),
		},
		DBPath: dbPath,
		Whisper: WhisperConfig{
			PurgeDelaySeconds:  envInt("PURGE_DELAY_SECONDS", 30),
			PopupWordLimit:     envInt("POPUP_WORD_LIMIT", domain.DefaultPopupWordLimit),
			FlowIdleMinutes:    envInt("FLOW_IDLE_MINUTES", 15),
			CleanupIntervalMin: envInt("FLOW_CLEANUP_MINUTES", 5),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}
}

func envInt(name string, fallback int) int {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// PurgeDelay returns the purge grace window as a duration
func (c *WhisperConfig) PurgeDelay() time.Duration {
	return time.Duration(c.PurgeDelaySeconds) * time.Second
}

// ToSessionConfig converts to the domain creation-flow configuration
func (c *WhisperConfig) ToSessionConfig() domain.SessionConfig {
	return domain.SessionConfig{
		IdleTimeout: time.Duration(c.FlowIdleMinutes) * time.Minute,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
