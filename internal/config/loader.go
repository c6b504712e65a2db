package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that override
// them. The first name of each entry is the SONGSMITH_-prefixed form; the rest
// are the plain names earlier versions of the tool read from .env files.
var envBindings = map[string][]string{
	"llm.provider":            {"SONGSMITH_LLM_PROVIDER"},
	"llm.model":               {"SONGSMITH_LLM_MODEL", "LLM_MODEL"},
	"llm.api_key":             {"SONGSMITH_LLM_API_KEY", "OPENAI_API_KEY"},
	"llm.base_url":            {"SONGSMITH_LLM_BASE_URL", "OPENAI_BASE_URL"},
	"llm.openrouter_api_key":  {"SONGSMITH_OPENROUTER_API_KEY", "OPENROUTER_API_KEY"},
	"llm.openrouter_base_url": {"SONGSMITH_OPENROUTER_BASE_URL", "OPENROUTER_BASE_URL"},
	"llm.local_base_url":      {"SONGSMITH_LOCAL_BASE_URL", "LMSTUDIO_BASE_URL"},
	"llm.local_api_key":       {"SONGSMITH_LOCAL_API_KEY", "LMSTUDIO_API_KEY"},
	"llm.local_model":         {"SONGSMITH_LOCAL_MODEL", "LMSTUDIO_LLM_MODEL"},
	"llm.temperature":         {"SONGSMITH_LLM_TEMPERATURE", "LLM_TEMPERATURE"},
	"llm.max_tokens":          {"SONGSMITH_LLM_MAX_TOKENS", "LLM_MAX_TOKENS"},
	"llm.request_timeout":     {"SONGSMITH_LLM_REQUEST_TIMEOUT"},
	"llm.claude_binary":       {"SONGSMITH_CLAUDE_PATH"},
	"review.max_rounds":       {"SONGSMITH_REVIEW_MAX_ROUNDS", "REVIEW_MAX_ROUNDS"},
	"review.score_threshold":  {"SONGSMITH_REVIEW_SCORE_THRESHOLD", "REVIEW_SCORE_THRESHOLD"},
	"review.reviewer_count":   {"SONGSMITH_REVIEWER_COUNT"},
	"defaults.genre":          {"SONGSMITH_DEFAULT_GENRE", "DEFAULT_SONG_GENRE"},
	"defaults.persona":        {"SONGSMITH_DEFAULT_PERSONA", "DEFAULT_PERSONA"},
	"defaults.tempo":          {"SONGSMITH_DEFAULT_TEMPO", "DEFAULT_TEMPO"},
	"defaults.key":            {"SONGSMITH_DEFAULT_KEY", "DEFAULT_KEY"},
	"defaults.instruments":    {"SONGSMITH_DEFAULT_INSTRUMENTS", "DEFAULT_INSTRUMENTS"},
	"defaults.mood":           {"SONGSMITH_DEFAULT_MOOD", "DEFAULT_MOOD"},
	"paths.songs":             {"SONGSMITH_SONGS_DIR"},
	"paths.data_dir":          {"SONGSMITH_DATA_DIR"},
	"art.enabled":             {"SONGSMITH_ART_ENABLED"},
	"log.level":               {"SONGSMITH_LOG_LEVEL"},
}

// Loader handles configuration loading with Viper.
//
// Use [NewLoader] to create a Loader, then call [Loader.Load] for standard
// discovery or [Loader.LoadFromFile] for an explicit path.
type Loader struct {
	v       *viper.Viper
	envFile string
}

// NewLoader creates a new configuration loader reading ".env" from the
// working directory.
func NewLoader() *Loader {
	return NewLoaderWithEnvFile(".env")
}

// NewLoaderWithEnvFile creates a loader that reads dotenv variables from
// envFile. Pass an empty string to skip dotenv loading.
func NewLoaderWithEnvFile(envFile string) *Loader {
	return &Loader{
		v:       viper.New(),
		envFile: envFile,
	}
}

// Load loads configuration from the standard locations.
//
// Dotenv variables are loaded first (never overriding the real environment),
// then the first config file found in priority order is read, then
// environment overrides are applied on top.
func (l *Loader) Load() (*Config, error) {
	l.loadEnvFile()
	l.bindEnv()

	if path := l.discoverConfigFile(); path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadFromFile loads configuration from a specific file path.
//
// The file format is detected from its extension (YAML or JSON).
// Environment overrides still apply.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.loadEnvFile()
	l.bindEnv()

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return l.unmarshal()
}

func (l *Loader) loadEnvFile() {
	if l.envFile == "" {
		return
	}
	// A missing .env file is normal.
	_ = godotenv.Load(l.envFile)
}

func (l *Loader) bindEnv() {
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		_ = l.v.BindEnv(args...)
	}
}

func (l *Loader) discoverConfigFile() string {
	if envPath := os.Getenv("SONGSMITH_CONFIG_PATH"); envPath != "" {
		return envPath
	}

	if userPath, err := DefaultConfigPath(); err == nil {
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}

	localPath := filepath.Join("config", "songsmith.yaml")
	if _, err := os.Stat(localPath); err == nil {
		return localPath
	}

	return ""
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Paths.DataDir = ExpandHome(cfg.Paths.DataDir)
	if err := cfg.resolveInstructionFiles(cfg.Paths.Prompts); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Review.MaxRounds < 1 {
		return fmt.Errorf("review.max_rounds must be at least 1, got %d", c.Review.MaxRounds)
	}
	if c.Review.ReviewerCount < 1 {
		return fmt.Errorf("review.reviewer_count must be at least 1, got %d", c.Review.ReviewerCount)
	}
	switch c.LLM.Provider {
	case "openai", "claude-cli":
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	return nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// ConfigDir returns the platform-standard songsmith config directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(base, "songsmith"), nil
}

// DefaultConfigPath returns the user-level config file path.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
