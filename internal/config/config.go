// Package config handles Krish configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/krish/config.yaml, /etc/krish/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "krish", "config.yaml"))
	}

	paths = append(paths, "/etc/krish/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Krish configuration.
type Config struct {
	Telegram    TelegramConfig   `yaml:"telegram"`
	LLM         LLMConfig        `yaml:"llm"`
	Context     ContextConfig    `yaml:"context"`
	Workspace   WorkspaceConfig  `yaml:"workspace"`
	Search      SearchConfig     `yaml:"search"`
	GitHub      GitHubConfig     `yaml:"github"`
	Notion      NotionConfig     `yaml:"notion"`
	Reminders   RemindersConfig  `yaml:"reminders"`
	Embeddings  EmbeddingsConfig `yaml:"embeddings"`
	DataDir     string           `yaml:"data_dir"`
	PersonaName string           `yaml:"persona_name"`
	LogLevel    string           `yaml:"log_level"`
	LogFormat   string           `yaml:"log_format"`
}

// TelegramConfig defines the chat transport.
type TelegramConfig struct {
	Token string `yaml:"token"`
	// KnownChats maps recipient names ("me", "group") to chat IDs for the
	// send_telegram_message tool.
	KnownChats map[string]int64 `yaml:"known_chats"`
	// AllowFrom restricts inbound messages to these user IDs. Empty
	// allows everyone.
	AllowFrom []int64 `yaml:"allow_from"`
	// RateLimit caps messages per sender per minute; 0 is unlimited.
	RateLimit int `yaml:"rate_limit"`
}

// LLMConfig defines model providers and which models serve each role.
type LLMConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
	// MainModel answers the user and drives tool calls.
	MainModel string `yaml:"main_model"`
	// ClassifierModel is a small, fast model used for intent scoring,
	// memory extraction and reminder parsing.
	ClassifierModel string `yaml:"classifier_model"`
	MaxTokens       int    `yaml:"max_tokens"`
	TimeoutSec      int    `yaml:"timeout_sec"`
}

// ProviderConfig is one OpenAI-compatible endpoint (Groq, Ollama /v1, ...).
type ProviderConfig struct {
	Name    string   `yaml:"name"`
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Models  []string `yaml:"models"`
}

// Timeout returns the per-call model timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// ContextConfig controls the context budget and the tool loop.
type ContextConfig struct {
	Budgets           BudgetsConfig `yaml:"budgets"`
	MaxContextTokens  int           `yaml:"max_context_tokens"`
	MaxHistory        int           `yaml:"max_history"`
	MaxToolIterations int           `yaml:"max_tool_iterations"`
	RecentLogDays     int           `yaml:"recent_log_days"`
	// Encoding is the tiktoken encoding used for budget accounting.
	Encoding string `yaml:"encoding"`
}

// BudgetsConfig holds the per-dimension token budgets that are weighted
// by intent scores.
type BudgetsConfig struct {
	Casual    int `yaml:"casual"`
	Tool      int `yaml:"tool"`
	Personal  int `yaml:"personal"`
	Knowledge int `yaml:"knowledge"`
}

// WorkspaceConfig points at the directory holding SOUL.md, USER.md,
// MEMORY.md and the daily logs/ directory.
type WorkspaceConfig struct {
	Dir string `yaml:"dir"`
}

// SearchConfig selects and configures the web search backend.
type SearchConfig struct {
	// Provider is "serpapi" or "searxng".
	Provider   string `yaml:"provider"`
	SerpAPIKey string `yaml:"serpapi_key"`
	SearXNGURL string `yaml:"searxng_url"`
	Count      int    `yaml:"count"`
}

// GitHubConfig configures the code-hosting tools.
type GitHubConfig struct {
	Token string `yaml:"token"`
	// Owner is the account whose repositories are listed and the default
	// owner for unqualified repository names.
	Owner string `yaml:"owner"`
	// BaseURL targets a GitHub Enterprise server; empty means github.com.
	BaseURL string `yaml:"base_url"`
}

// Configured reports whether the GitHub tools can be offered.
func (c GitHubConfig) Configured() bool {
	return c.Token != "" && c.Owner != ""
}

// NotionConfig configures the note-taking tools.
type NotionConfig struct {
	Token   string `yaml:"token"`
	PageID  string `yaml:"page_id"`
	Version string `yaml:"version"`
}

// Configured reports whether the Notion tools can be offered.
func (c NotionConfig) Configured() bool {
	return c.Token != "" && c.PageID != ""
}

// RemindersConfig configures reminder scheduling.
type RemindersConfig struct {
	// Timezone is the IANA zone reminder times are interpreted in.
	Timezone string `yaml:"timezone"`
}

// EmbeddingsConfig defines embedding generation for semantic retrieval.
type EmbeddingsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`   // Embedding model name (e.g., nomic-embed-text)
	BaseURL string `yaml:"baseurl"` // Ollama URL
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := &Config{
		LLM: LLMConfig{
			Providers: []ProviderConfig{
				{
					Name:    "groq",
					BaseURL: "https://api.groq.com/openai/v1",
					APIKey:  os.Getenv("GROQ_API_KEY"),
				},
			},
			MainModel:       "llama-3.3-70b-versatile",
			ClassifierModel: "llama-3.1-8b-instant",
		},
		Context: ContextConfig{
			Budgets: BudgetsConfig{
				Casual:    400,
				Tool:      600,
				Personal:  3000,
				Knowledge: 2000,
			},
		},
		Search: SearchConfig{Provider: "serpapi"},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in zero values left by a partial YAML file.
func (c *Config) applyDefaults() {
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.TimeoutSec == 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.Context.MaxContextTokens == 0 {
		c.Context.MaxContextTokens = 4000
	}
	if c.Context.MaxHistory == 0 {
		c.Context.MaxHistory = 20
	}
	if c.Context.MaxToolIterations == 0 {
		c.Context.MaxToolIterations = 5
	}
	if c.Context.RecentLogDays == 0 {
		c.Context.RecentLogDays = 1
	}
	if c.Context.Encoding == "" {
		c.Context.Encoding = "cl100k_base"
	}
	if c.Workspace.Dir == "" {
		c.Workspace.Dir = "workspace"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	c.Workspace.Dir = expandHome(c.Workspace.Dir)
	c.DataDir = expandHome(c.DataDir)
	if c.PersonaName == "" {
		c.PersonaName = "Krish"
	}
	if c.Notion.Version == "" {
		c.Notion.Version = "2022-06-28"
	}
	if c.Reminders.Timezone == "" {
		c.Reminders.Timezone = "Asia/Kolkata"
	}
	if c.Search.Count == 0 {
		c.Search.Count = 3
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "nomic-embed-text"
	}
	if c.Embeddings.BaseURL == "" {
		c.Embeddings.BaseURL = "http://localhost:11434"
	}
}

// expandHome replaces a leading "~" with the user's home directory.
// "~user" forms are left alone.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate checks that the values required to serve are present.
// Optional integrations (GitHub, Notion, search, embeddings) are simply
// left out when unconfigured.
func (c *Config) Validate() error {
	var errs []error
	if len(c.LLM.Providers) == 0 {
		errs = append(errs, errors.New("llm: at least one provider is required"))
	}
	for i, p := range c.LLM.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("llm provider %d: name is required", i))
		}
		if p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("llm provider %q: base_url is required", p.Name))
		}
	}
	if c.LLM.MainModel == "" {
		errs = append(errs, errors.New("llm: main_model is required"))
	}
	if c.LLM.ClassifierModel == "" {
		errs = append(errs, errors.New("llm: classifier_model is required"))
	}
	if c.Context.MaxContextTokens < 0 {
		errs = append(errs, errors.New("context: max_context_tokens must not be negative"))
	}
	if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("reminders: timezone: %w", err))
	}
	switch c.Search.Provider {
	case "", "serpapi", "searxng":
	default:
		errs = append(errs, fmt.Errorf("search: unknown provider %q", c.Search.Provider))
	}
	return errors.Join(errs...)
}

// DBPath returns the path of a SQLite database inside the data directory.
func (c *Config) DBPath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}
