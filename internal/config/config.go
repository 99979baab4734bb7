package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	TransportPush = "push"
	TransportPoll = "poll"
)

// Config stores runtime configuration for the meeting assistant.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	GitHub  GitHubConfig  `toml:"github"`
	Store   StoreConfig   `toml:"store"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
	Session SessionConfig `toml:"session"`

	// File is the config file that was read, if any.
	File string `toml:"-"`
}

type BackendConfig struct {
	BaseURL          string        `toml:"base_url"`
	WSURL            string        `toml:"ws_url"`
	Transport        string        `toml:"transport"`
	PollInterval     time.Duration `toml:"poll_interval"`
	ReconnectBackoff time.Duration `toml:"reconnect_backoff"`
	MaxRetries       int           `toml:"max_retries"`
	RequestTimeout   time.Duration `toml:"request_timeout"`
}

type GitHubConfig struct {
	Token      string   `toml:"token"`
	Repository string   `toml:"repository"`
	Labels     []string `toml:"labels"`
	// Assignees maps names spoken in meetings to GitHub logins.
	Assignees map[string]string `toml:"assignees"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

type SessionConfig struct {
	TickInterval  time.Duration `toml:"tick_interval"`
	AnalyzeOnStop bool          `toml:"analyze_on_stop"`
}

// Load resolves configuration from defaults, the optional config file and
// environment variables, in that order.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := defaults(home)

	path := strings.TrimSpace(os.Getenv("FOMO_CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = filepath.Join(firstNonEmpty(os.Getenv("XDG_CONFIG_HOME"), filepath.Join(home, ".config")), "fomo", "config.toml")
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
		}
		cfg.File = path
	} else if explicit {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}

	applyEnv(&cfg)

	cfg.Backend.Transport = strings.ToLower(strings.TrimSpace(cfg.Backend.Transport))
	switch cfg.Backend.Transport {
	case TransportPush, TransportPoll:
	default:
		return Config{}, fmt.Errorf("unknown transport %q: use %q or %q", cfg.Backend.Transport, TransportPush, TransportPoll)
	}

	clamp(&cfg)
	return cfg, nil
}

func defaults(home string) Config {
	dataDir := filepath.Join(firstNonEmpty(os.Getenv("XDG_DATA_HOME"), filepath.Join(home, ".local", "share")), "fomo")
	return Config{
		Backend: BackendConfig{
			BaseURL:          "http://localhost:5000",
			WSURL:            "ws://localhost:5000/ws/transcript",
			Transport:        TransportPush,
			PollInterval:     3 * time.Second,
			ReconnectBackoff: 3 * time.Second,
			MaxRetries:       0,
			RequestTimeout:   30 * time.Second,
		},
		GitHub: GitHubConfig{
			Labels: []string{"meeting-action-item"},
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "meetings.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Session: SessionConfig{
			TickInterval: time.Second,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Backend.BaseURL = envOrDefault("FOMO_BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Backend.WSURL = envOrDefault("FOMO_WS_URL", cfg.Backend.WSURL)
	cfg.Backend.Transport = envOrDefault("FOMO_TRANSPORT", cfg.Backend.Transport)
	cfg.Backend.PollInterval = envOrDefaultMillis("FOMO_POLL_INTERVAL_MS", cfg.Backend.PollInterval)
	cfg.Backend.ReconnectBackoff = envOrDefaultMillis("FOMO_RECONNECT_BACKOFF_MS", cfg.Backend.ReconnectBackoff)
	cfg.Backend.MaxRetries = envOrDefaultInt("FOMO_MAX_RETRIES", cfg.Backend.MaxRetries)
	cfg.Backend.RequestTimeout = envOrDefaultMillis("FOMO_REQUEST_TIMEOUT_MS", cfg.Backend.RequestTimeout)

	cfg.GitHub.Token = firstNonEmpty(os.Getenv("FOMO_GITHUB_TOKEN"), os.Getenv("GITHUB_TOKEN"), cfg.GitHub.Token)
	cfg.GitHub.Repository = envOrDefault("FOMO_GITHUB_REPO", cfg.GitHub.Repository)
	if labels := strings.TrimSpace(os.Getenv("FOMO_GITHUB_LABELS")); labels != "" {
		cfg.GitHub.Labels = splitList(labels)
	}
	if assignees := strings.TrimSpace(os.Getenv("FOMO_GITHUB_ASSIGNEES")); assignees != "" {
		cfg.GitHub.Assignees = splitPairs(assignees)
	}

	cfg.Store.Path = envOrDefault("FOMO_DB_PATH", cfg.Store.Path)
	cfg.Log.Level = envOrDefault("FOMO_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("FOMO_LOG_FORMAT", cfg.Log.Format)
	cfg.Metrics.Addr = envOrDefault("FOMO_METRICS_ADDR", cfg.Metrics.Addr)

	cfg.Session.TickInterval = envOrDefaultMillis("FOMO_TICK_INTERVAL_MS", cfg.Session.TickInterval)
	cfg.Session.AnalyzeOnStop = envOrDefaultBool("FOMO_ANALYZE_ON_STOP", cfg.Session.AnalyzeOnStop)
}

func clamp(cfg *Config) {
	if cfg.Backend.PollInterval <= 0 {
		cfg.Backend.PollInterval = 3 * time.Second
	}
	if cfg.Backend.ReconnectBackoff <= 0 {
		cfg.Backend.ReconnectBackoff = 3 * time.Second
	}
	if cfg.Backend.MaxRetries < 0 {
		cfg.Backend.MaxRetries = 0
	}
	if cfg.Backend.RequestTimeout <= 0 {
		cfg.Backend.RequestTimeout = 30 * time.Second
	}
	if cfg.Session.TickInterval < 100*time.Millisecond {
		cfg.Session.TickInterval = time.Second
	}
}

// GitHubEnabled reports whether issue creation is configured.
func (c Config) GitHubEnabled() bool {
	return strings.TrimSpace(c.GitHub.Token) != "" && strings.TrimSpace(c.GitHub.Repository) != ""
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitPairs parses "name=login,name=login".
func splitPairs(value string) map[string]string {
	out := map[string]string{}
	for _, part := range splitList(value) {
		name, login, ok := strings.Cut(part, "=")
		name, login = strings.TrimSpace(name), strings.TrimSpace(login)
		if !ok || name == "" || login == "" {
			continue
		}
		out[name] = login
	}
	return out
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

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
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
