package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigRead is returned when the config file exists but cannot be read.
	ErrConfigRead = errors.New("failed to read config file")
	// ErrConfigParse is returned when the config file is not valid YAML.
	ErrConfigParse = errors.New("failed to parse config file")
	// ErrConfigInvalid is returned when a loaded value is out of range.
	ErrConfigInvalid = errors.New("invalid config")
)

// FsFactory returns the filesystem Load reads from. Tests swap it for a
// memory filesystem.
var FsFactory = func() afero.Fs { return afero.NewOsFs() }

type Config struct {
	API    APIConfig    `yaml:"api"`
	Stream StreamConfig `yaml:"stream"`
	UI     UIConfig     `yaml:"ui"`
	Log    LogConfig    `yaml:"log"`
	Mock   MockConfig   `yaml:"mock"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// StreamConfig tunes the progress stream transport. Retry is only the
// initial reconnect delay; a server "retry:" field replaces it.
type StreamConfig struct {
	Retry time.Duration `yaml:"retry"`
}

type UIConfig struct {
	PageSize     int `yaml:"page_size"`
	PopularLimit int `yaml:"popular_limit"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// MockConfig configures cmd/mock-server.
type MockConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Tick      time.Duration `yaml:"tick"`
	Seed      bool          `yaml:"seed"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8080/api",
			Timeout: 10 * time.Second,
		},
		Stream: StreamConfig{
			Retry: 3 * time.Second,
		},
		UI: UIConfig{
			PageSize:     20,
			PopularLimit: 10,
		},
		Log: LogConfig{
			Level: "WARN",
			File:  "course-web.log",
		},
		Mock: MockConfig{
			Host:      "127.0.0.1",
			Port:      8080,
			Heartbeat: 2 * time.Second,
			Tick:      40 * time.Millisecond,
			Seed:      true,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error: the
// defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(FsFactory(), path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Join(ErrConfigRead, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Join(ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and far from the file.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q is not an absolute URL", ErrConfigInvalid, c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: api.timeout must be positive", ErrConfigInvalid)
	}
	if c.Stream.Retry <= 0 {
		return fmt.Errorf("%w: stream.retry must be positive", ErrConfigInvalid)
	}
	if c.UI.PageSize <= 0 {
		return fmt.Errorf("%w: ui.page_size must be positive", ErrConfigInvalid)
	}
	if c.Mock.Port < 0 || c.Mock.Port > 65535 {
		return fmt.Errorf("%w: mock.port %d out of range", ErrConfigInvalid, c.Mock.Port)
	}
	return nil
}

// PopularLimit returns the configured statistics limit, or 10.
func (c *Config) PopularLimit() int {
	if c.UI.PopularLimit > 0 {
		return c.UI.PopularLimit
	}
	return 10
}
