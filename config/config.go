// Package config loads client configuration from layered YAML files and
// environment variables.
//
// Precedence, lowest first: user file (~/.langclient/config.yaml), project
// file (.langclient/config.yaml in the working directory), then LANGCLIENT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/transport"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".langclient"

// Config describes how to reach a language server and what to tell it.
type Config struct {
	URL         string `yaml:"url" json:"url,omitempty" env:"LANGCLIENT_URL" jsonschema:"description=WebSocket endpoint of the language server"`
	AccessToken string `yaml:"access_token" json:"access_token,omitempty" env:"LANGCLIENT_TOKEN" jsonschema:"description=Sent as 'Authorization: token <value>'"`
	Command     string `yaml:"command" json:"command,omitempty" env:"LANGCLIENT_COMMAND" jsonschema:"description=Server command line spawned over stdio when url is empty"`
	Framing     string `yaml:"framing" json:"framing,omitempty" env:"LANGCLIENT_FRAMING" jsonschema:"enum=header,enum=line"`

	Root                  string               `yaml:"root" json:"root,omitempty" env:"LANGCLIENT_ROOT" jsonschema:"description=Workspace root URI"`
	DocumentSelector      lsp.DocumentSelector `yaml:"document_selector" json:"document_selector,omitempty"`
	InitializationOptions map[string]any       `yaml:"initialization_options" json:"initialization_options,omitempty"`
	Initialize            bool                 `yaml:"initialize" json:"initialize,omitempty" jsonschema:"description=Perform the initialize/shutdown handshake"`
	Settings              map[string]any       `yaml:"settings" json:"settings,omitempty" jsonschema:"description=Answers to workspace/configuration"`
	WatchRoot             string               `yaml:"watch_root" json:"watch_root,omitempty"`

	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout,omitempty" env:"LANGCLIENT_REQUEST_TIMEOUT"`
	RedisAddr      string        `yaml:"redis_addr" json:"redis_addr,omitempty" env:"LANGCLIENT_REDIS_ADDR" jsonschema:"description=Mirror the environment through Redis pub/sub when set"`
	RedisChannel   string        `yaml:"redis_channel" json:"redis_channel,omitempty" env:"LANGCLIENT_REDIS_CHANNEL"`
	MetricsAddr    string        `yaml:"metrics_addr" json:"metrics_addr,omitempty" env:"LANGCLIENT_METRICS_ADDR"`
}

// Default returns the configuration used before any file is read.
func Default() *Config {
	return &Config{
		Framing:        "header",
		RequestTimeout: 10 * time.Second,
	}
}

// DefaultPaths returns the user and project configuration files, in load
// order. Missing directories are skipped.
func DefaultPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DirName, "config.yaml"))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, DirName, "config.yaml"))
	}
	return paths
}

// Load reads the default layers. A non-empty explicit path replaces the file
// layers.
func Load(explicit string) (*Config, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		return LoadFrom(explicit)
	}
	return LoadFrom(DefaultPaths()...)
}

// LoadFrom applies each existing file in order over the defaults, then the
// environment.
func LoadFrom(paths ...string) (*Config, error) {
	cfg := Default()
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := loadFromFile(p, cfg); err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
	}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Fields present in the file overwrite earlier layers.
	return yaml.Unmarshal(data, cfg)
}

// Validate reports configuration that cannot be used to connect.
func (c *Config) Validate() error {
	if c.URL == "" && c.Command == "" {
		return errors.New("one of url or command is required")
	}
	if _, err := transport.ParseFraming(c.Framing); err != nil {
		return err
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout must not be negative")
	}
	return nil
}

// CommandLine splits Command into a program and its arguments.
func (c *Config) CommandLine() (string, []string) {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
