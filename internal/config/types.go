// Package config provides configuration loading and management for songsmith.
//
// Configuration is loaded using Viper, supporting YAML config files, a .env
// file, and environment variable overrides. The package provides defaults that
// work out of the box, with the ability to customize the review budget, the
// language model provider, resource locations, and every stage prompt.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [PromptConfig] defines a single stage's prompt template
//   - [LLMConfig] selects and tunes the completion provider
//
// Configuration priority (highest to lowest):
//  1. Environment variables (SONGSMITH_ prefix, plus the legacy names listed in [Loader])
//  2. Config file specified by SONGSMITH_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/songsmith/config.yaml
//     - macOS: ~/Library/Application Support/songsmith/config.yaml
//     - Windows: %APPDATA%\songsmith\config.yaml
//  4. ./config/songsmith.yaml
//  5. [DefaultConfig] defaults
package config

import "time"

// Stage prompt names. Each names an entry in [Config.Prompts].
const (
	PromptDraft     = "draft"
	PromptReview    = "review"
	PromptCritic    = "critic"
	PromptPreflight = "preflight"
	PromptRevise    = "revise"
	PromptScore     = "score"
	PromptMetadata  = "metadata"
	PromptTriage    = "triage"
)

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// LLM selects and configures the completion provider.
	LLM LLMConfig `mapstructure:"llm"`

	// Review holds the shared revision budget and convergence settings.
	Review ReviewConfig `mapstructure:"review"`

	// Defaults are the baseline song parameters handed to every stage.
	Defaults SongDefaults `mapstructure:"defaults"`

	// Paths locates the on-disk resources and outputs.
	Paths PathsConfig `mapstructure:"paths"`

	// Art configures album artwork generation.
	Art ArtConfig `mapstructure:"art"`

	// Prompts maps stage prompt names to their templates.
	// Keys are the Prompt* constants (e.g., "draft", "review").
	Prompts map[string]PromptConfig `mapstructure:"prompts"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// Log configures structured logging.
	Log LogConfig `mapstructure:"log"`
}

// LLMConfig configures the completion provider.
//
// Remote runs use Provider ("openai" or "claude-cli"). Local runs always use
// the OpenAI-compatible endpoint at LocalBaseURL (LM Studio by default).
type LLMConfig struct {
	// Provider is the remote provider: "openai" (OpenAI or any compatible
	// endpoint such as OpenRouter) or "claude-cli".
	// Default: "openai"
	Provider string `mapstructure:"provider"`

	// Model is the remote model identifier.
	// Default: "openai/gpt-3.5-turbo"
	Model string `mapstructure:"model"`

	// APIKey is the OpenAI API key. Used when OpenRouterAPIKey is empty.
	APIKey string `mapstructure:"api_key"`

	// BaseURL overrides the OpenAI endpoint. Empty means the provider default.
	BaseURL string `mapstructure:"base_url"`

	// OpenRouterAPIKey, when set, routes remote calls through OpenRouter.
	OpenRouterAPIKey string `mapstructure:"openrouter_api_key"`

	// OpenRouterBaseURL is the OpenRouter endpoint.
	// Default: "https://openrouter.ai/api/v1"
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url"`

	// LocalBaseURL is the OpenAI-compatible endpoint used for local runs.
	// Default: "http://localhost:1234/v1"
	LocalBaseURL string `mapstructure:"local_base_url"`

	// LocalAPIKey is sent to the local endpoint. Default: "lm-studio"
	LocalAPIKey string `mapstructure:"local_api_key"`

	// LocalModel is the model name used for local runs. Default: "local-model"
	LocalModel string `mapstructure:"local_model"`

	// Temperature is the sampling temperature. Default: 0.1
	Temperature float64 `mapstructure:"temperature"`

	// MaxTokens caps each completion. Default: 4096
	MaxTokens int `mapstructure:"max_tokens"`

	// RequestTimeout bounds a single completion call. Zero disables it.
	// Default: 3m
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// ClaudeBinary is the Claude CLI binary for the "claude-cli" provider.
	// Default: "claude"
	ClaudeBinary string `mapstructure:"claude_binary"`
}

// ReviewConfig holds the shared revision budget.
//
// MaxRounds is consumed by both review rounds and targeted preflight fixes.
type ReviewConfig struct {
	// MaxRounds caps the shared round counter. Default: 3
	MaxRounds int `mapstructure:"max_rounds"`

	// ScoreThreshold is the score at which the review loop stops early.
	// Default: 8.0
	ScoreThreshold float64 `mapstructure:"score_threshold"`

	// ReviewerCount is the number of parallel reviewers per round. Default: 3
	ReviewerCount int `mapstructure:"reviewer_count"`
}

// SongDefaults are the baseline song parameters.
type SongDefaults struct {
	Genre       string `mapstructure:"genre"`
	Persona     string `mapstructure:"persona"`
	Tempo       string `mapstructure:"tempo"`
	Key         string `mapstructure:"key"`
	Instruments string `mapstructure:"instruments"`
	Mood        string `mapstructure:"mood"`
}

// PathsConfig locates resources and outputs. Relative paths resolve against
// the working directory.
type PathsConfig struct {
	// Styles is the style catalog file (YAML or JSON). Default: "styles/styles.json"
	Styles string `mapstructure:"styles"`

	// Tags is the directory of *.txt tag files. Default: "tags"
	Tags string `mapstructure:"tags"`

	// Personas is the directory of persona markdown files. Default: "personas"
	Personas string `mapstructure:"personas"`

	// Prompts is the directory holding stage instruction files. Default: "prompts"
	Prompts string `mapstructure:"prompts"`

	// Songs is the output directory for song files and artwork. Default: "songs"
	Songs string `mapstructure:"songs"`

	// DataDir holds the song library database. Default: "~/.songsmith"
	DataDir string `mapstructure:"data_dir"`
}

// ArtConfig configures album artwork generation.
type ArtConfig struct {
	// Enabled turns artwork generation on for remote runs. Default: true
	Enabled bool `mapstructure:"enabled"`

	// Model is the image model. Default: "dall-e-3"
	Model string `mapstructure:"model"`

	// Size is the requested image size. Default: "1024x1024"
	Size string `mapstructure:"size"`
}

// PromptConfig represents a single stage prompt.
//
// Template is a Go text/template expanded with [PromptData]. Instructions is
// the stage preamble available as {{.Instructions}}; when InstructionsFile
// names a file that exists under [PathsConfig.Prompts], its contents replace
// Instructions at load time.
type PromptConfig struct {
	Template         string `mapstructure:"template"`
	Instructions     string `mapstructure:"instructions"`
	InstructionsFile string `mapstructure:"instructions_file"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// Markdown contains markdown rendering configuration.
	Markdown MarkdownConfig `mapstructure:"markdown"`
}

// MarkdownConfig contains configuration for rendering lyrics in the terminal.
type MarkdownConfig struct {
	// Enabled controls whether markdown rendering is active. Default: true
	Enabled bool `mapstructure:"enabled"`

	// Style is the glamour theme to use: "dark", "light", "dracula", "tokyo-night".
	// Default: "dark"
	Style string `mapstructure:"style"`

	// WordWrap is the column width for text wrapping. Default: 100
	WordWrap int `mapstructure:"word_wrap"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR. Default: "WARN"
	Level string `mapstructure:"level"`

	// Format is "text" or "json". Default: "text"
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
//
// The defaults include every stage prompt, so the pipeline runs without any
// configuration file or prompt directory.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "openai/gpt-3.5-turbo",
			OpenRouterBaseURL: "https://openrouter.ai/api/v1",
			LocalBaseURL:      "http://localhost:1234/v1",
			LocalAPIKey:       "lm-studio",
			LocalModel:        "local-model",
			Temperature:       0.1,
			MaxTokens:         4096,
			RequestTimeout:    3 * time.Minute,
			ClaudeBinary:      "claude",
		},
		Review: ReviewConfig{
			MaxRounds:      3,
			ScoreThreshold: 8.0,
			ReviewerCount:  3,
		},
		Defaults: SongDefaults{
			Genre:       "rock",
			Tempo:       "120",
			Key:         "C",
			Instruments: "guitar,bass,drums",
			Mood:        "happy",
		},
		Paths: PathsConfig{
			Styles:   "styles/styles.json",
			Tags:     "tags",
			Personas: "personas",
			Prompts:  "prompts",
			Songs:    "songs",
			DataDir:  "~/.songsmith",
		},
		Art: ArtConfig{
			Enabled: true,
			Model:   "dall-e-3",
			Size:    "1024x1024",
		},
		Prompts: defaultPrompts(),
		Output: OutputConfig{
			Markdown: MarkdownConfig{
				Enabled:  true,
				Style:    "dark",
				WordWrap: 100,
			},
		},
		Log: LogConfig{
			Level:  "WARN",
			Format: "text",
		},
	}
}

// PromptData contains data for stage template expansion.
//
// This struct is passed to Go's text/template when expanding stage prompts.
// Fields are accessible in templates using {{.FieldName}} syntax. Stages fill
// only the fields their template uses.
type PromptData struct {
	Instructions    string
	UserInput       string
	Styles          string
	Tags            string
	PersonaStyles   string
	DefaultParams   string
	Lyrics          string
	Feedback        string
	PreflightOutput string
}
