package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the gateway configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	GitHub  GitHubConfig  `yaml:"github"`
	Stream  StreamConfig  `yaml:"stream"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port        int           `yaml:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout defaults to zero: event streams outlive any fixed write
	// deadline.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// GitHubConfig contains GitHub Actions connection settings
type GitHubConfig struct {
	APIURL       string `yaml:"api_url"`
	Owner        string `yaml:"owner"`
	Repo         string `yaml:"repo"`
	WorkflowFile string `yaml:"workflow_file"`
	Ref          string `yaml:"ref"`
	Token        string `yaml:"token"`
}

// StreamConfig contains polling and discovery settings
type StreamConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxAttempts       int           `yaml:"max_attempts"`
	DiscoveryAttempts int           `yaml:"discovery_attempts"`
	DiscoveryDelay    time.Duration `yaml:"discovery_delay"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables in the config
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// FromEnv builds a configuration from environment variables alone
func FromEnv() *Config {
	cfg := &Config{
		GitHub: GitHubConfig{
			APIURL:       os.Getenv("GITHUB_API_URL"),
			Owner:        os.Getenv("GITHUB_OWNER"),
			Repo:         os.Getenv("GITHUB_REPO"),
			WorkflowFile: os.Getenv("GITHUB_WORKFLOW_FILE"),
			Ref:          os.Getenv("GITHUB_REF"),
			Token:        os.Getenv("GITHUB_TOKEN"),
		},
		Logging: LoggingConfig{
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
		},
	}

	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		cfg.Server.Port = port
	}

	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.GitHub.Ref == "" {
		cfg.GitHub.Ref = "main"
	}
	if cfg.Stream.PollInterval == 0 {
		cfg.Stream.PollInterval = 3 * time.Second
	}
	if cfg.Stream.MaxAttempts == 0 {
		cfg.Stream.MaxAttempts = 20
	}
	if cfg.Stream.DiscoveryAttempts == 0 {
		cfg.Stream.DiscoveryAttempts = 3
	}
	if cfg.Stream.DiscoveryDelay == 0 {
		cfg.Stream.DiscoveryDelay = time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
