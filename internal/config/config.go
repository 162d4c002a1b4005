// Package config loads orchestrator configuration from a TOML file with
// defaults for every section, so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Agent         AgentConfig         `toml:"agent"`
	GitHub        GitHubConfig        `toml:"github"`
	Web           WebConfig           `toml:"web"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	ProjectRoot     string `toml:"project_root"`
	DatabasePath    string `toml:"database_path"`
	MaxParallelRuns int    `toml:"max_parallel_runs"`
}

// AgentConfig holds agent process settings
type AgentConfig struct {
	Executable        string   `toml:"executable"`
	PromptTemplate    string   `toml:"prompt_template"`
	AbsoluteTimeout   Duration `toml:"absolute_timeout"`
	InactivityTimeout Duration `toml:"inactivity_timeout"`
}

// GitHubConfig holds GitHub API settings. The token is read from the
// environment variable named by TokenEnv, never from the config file.
type GitHubConfig struct {
	Repo     string `toml:"repo"` // "owner/name"
	APIBase  string `toml:"api_base"`
	TokenEnv string `toml:"token_env"`
}

// WebConfig holds dashboard server settings
type WebConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	AccessToken string `toml:"access_token"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// Duration wraps time.Duration so TOML values can be written as "5m" or "45m"
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			ProjectRoot:     "",
			DatabasePath:    filepath.Join(home, ".agent-orchestrator", "runs.db"),
			MaxParallelRuns: 3,
		},
		Agent: AgentConfig{
			Executable:        "claude",
			AbsoluteTimeout:   Duration(45 * time.Minute),
			InactivityTimeout: Duration(5 * time.Minute),
		},
		GitHub: GitHubConfig{
			APIBase:  "https://api.github.com",
			TokenEnv: "GITHUB_TOKEN",
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.ProjectRoot = ExpandPath(cfg.General.ProjectRoot)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.Agent.PromptTemplate = ExpandPath(cfg.Agent.PromptTemplate)

	return cfg, nil
}

// Token returns the GitHub API token from the configured environment variable
func (g GitHubConfig) Token() string {
	if g.TokenEnv == "" {
		return ""
	}
	return os.Getenv(g.TokenEnv)
}

// SplitRepo splits "owner/name" into its parts
func (g GitHubConfig) SplitRepo() (owner, name string, err error) {
	parts := strings.SplitN(g.Repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo %q, want owner/name", g.Repo)
	}
	return parts[0], parts[1], nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agent-orchestrator", "config.toml")
}
