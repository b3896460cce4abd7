package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources  Sources  `yaml:"sources"`
	LLM      LLM      `yaml:"llm"`
	Telegram Telegram `yaml:"telegram"`
	Pipeline Pipeline `yaml:"pipeline"`
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Sources struct {
	Feeds     []Feed        `yaml:"feeds"`
	Pages     []Page        `yaml:"pages"`
	Channels  []Channel     `yaml:"channels"`
	NewsAPI   NewsAPI       `yaml:"newsapi"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// Page describes an HTML listing page. Every selector list is tried in
// order and the first one that matches wins.
type Page struct {
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	BaseURL string   `yaml:"base_url"`
	Item    []string `yaml:"item"`
	Title   []string `yaml:"title"`
	Link    []string `yaml:"link"`
	Image   []string `yaml:"image"`
	Summary []string `yaml:"summary"`
}

// Channel is a public Telegram channel read through its t.me/s preview.
type Channel struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
}

type NewsAPI struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
	Query     string `yaml:"query"`
	Language  string `yaml:"language"`
}

type LLM struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Telegram struct {
	APIURL         string        `yaml:"api_url"`
	TokenEnv       string        `yaml:"token_env"`
	ChannelIDEnv   string        `yaml:"channel_id_env"`
	ErrorChatIDEnv string        `yaml:"error_chat_id_env"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Token returns the bot token from the environment.
func (t Telegram) Token() string { return os.Getenv(t.TokenEnv) }

// ChannelID returns the target channel from the environment.
func (t Telegram) ChannelID() string { return os.Getenv(t.ChannelIDEnv) }

// ErrorChatID returns the error-report chat, empty when reporting is off.
func (t Telegram) ErrorChatID() string { return os.Getenv(t.ErrorChatIDEnv) }

type Pipeline struct {
	CheckInterval      time.Duration `yaml:"check_interval"`
	SourcePause        time.Duration `yaml:"source_pause"`
	InitialLookback    time.Duration `yaml:"initial_lookback"`
	ClassifyDelay      time.Duration `yaml:"classify_delay"`
	ClassifyIdle       time.Duration `yaml:"classify_idle"`
	PublishDelay       time.Duration `yaml:"publish_delay"`
	PublishIdle        time.Duration `yaml:"publish_idle"`
	FailureThreshold   int           `yaml:"failure_threshold"`
	FailureCooldown    time.Duration `yaml:"failure_cooldown"`
	MaxRetries         int           `yaml:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	RequeueFailed      bool          `yaml:"requeue_failed"`
	Retention          time.Duration `yaml:"retention"`
	ProcessedRetention time.Duration `yaml:"processed_retention"`
	DefaultTag         string        `yaml:"default_tag"`
	LinkPlaceholder    string        `yaml:"link_placeholder"`
	MinContentLength   int           `yaml:"min_content_length"`
}

type Storage struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for itnewsbot.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "itnewsbot")
}

// DataDir returns the XDG data directory for itnewsbot.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "itnewsbot")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/itnewsbot/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'itnewsbot init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			Timeout:   15 * time.Second,
			UserAgent: "Mozilla/5.0 (compatible; itnewsbot/1.0)",
			NewsAPI: NewsAPI{
				APIKeyEnv: "NEWSAPI_KEY",
				Query:     "технологии OR программирование OR искусственный интеллект",
				Language:  "ru",
			},
		},
		LLM: LLM{
			Provider:    "groq",
			Model:       "llama-3.3-70b-versatile",
			APIKeyEnv:   "GROQ_API_KEY",
			MaxTokens:   1024,
			Temperature: 0.7,
			Timeout:     120 * time.Second,
		},
		Telegram: Telegram{
			APIURL:         "https://api.telegram.org",
			TokenEnv:       "TELEGRAM_TOKEN",
			ChannelIDEnv:   "TELEGRAM_CHANNEL_ID",
			ErrorChatIDEnv: "TELEGRAM_ERROR_CHAT_ID",
			Timeout:        30 * time.Second,
		},
		Pipeline: Pipeline{
			CheckInterval:    5 * time.Minute,
			SourcePause:      time.Second,
			InitialLookback:  24 * time.Hour,
			ClassifyDelay:    60 * time.Second,
			ClassifyIdle:     10 * time.Second,
			PublishDelay:     10 * time.Second,
			PublishIdle:      30 * time.Second,
			FailureThreshold: 3,
			FailureCooldown:  60 * time.Second,
			MaxRetries:       3,
			RetryDelay:       5 * time.Second,
			Retention:        72 * time.Hour,
			DefaultTag:       "#IT",
			LinkPlaceholder:  "[ССЫЛКА]",
			MinContentLength: 200,
		},
		Storage: Storage{Backend: "json"},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	switch cfg.Storage.Backend {
	case "json", "sqlite":
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want json or sqlite)", cfg.Storage.Backend)
	}

	return cfg, nil
}

// Validate reports the settings the long-running bot cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Telegram.Token() == "" {
		missing = append(missing, c.Telegram.TokenEnv)
	}
	if c.Telegram.ChannelID() == "" {
		missing = append(missing, c.Telegram.ChannelIDEnv)
	}
	if c.LLM.APIKeyEnv != "" && strings.ToLower(c.LLM.Provider) != "ollama" && os.Getenv(c.LLM.APIKeyEnv) == "" {
		missing = append(missing, c.LLM.APIKeyEnv)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	if len(c.Sources.Feeds)+len(c.Sources.Pages)+len(c.Sources.Channels) == 0 && !c.Sources.NewsAPI.Enabled {
		return errors.New("no sources configured")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

// DebugEnabled reports whether per-article debug lines should be logged.
func (c *Config) DebugEnabled() bool {
	return strings.EqualFold(c.Logging.Level, "debug")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
