// Package config handles domsnap configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultAgentAddress is where a local snapshot agent listens.
const DefaultAgentAddress = "http://localhost:5338"

// DefaultDebugDir receives debug dumps, relative to the working directory.
const DefaultDebugDir = ".percy-debug"

// Config is the top-level domsnap configuration.
type Config struct {
	LogLevel  string           `yaml:"log_level"`
	Agent     AgentConfig      `yaml:"agent"`
	Browser   BrowserConfig    `yaml:"browser"`
	Debug     DebugConfig      `yaml:"debug"`
	Archive   ArchiveConfig    `yaml:"archive"`
	MCP       MCPConfig        `yaml:"mcp"`
	Snapshots []SnapshotConfig `yaml:"snapshots"`
}

// AgentConfig locates the snapshot agent.
type AgentConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

// BrowserConfig controls the Chrome instance used for live snapshots.
type BrowserConfig struct {
	Remote            string        `yaml:"remote"`
	ResourceBlocking  []string      `yaml:"resource_blocking"`
	Stealth           string        `yaml:"stealth"` // headless | headful
	XvfbDisplay       string        `yaml:"xvfb_display"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	Width             int           `yaml:"width"`
	Height            int           `yaml:"height"`
}

// DebugConfig controls local dumps of each snapshot.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// ArchiveConfig enables the local SQLite archive. An empty Path disables it.
type ArchiveConfig struct {
	Path string `yaml:"path"`
	Keep int    `yaml:"keep"` // newest rows kept per name; 0 keeps all
}

// MCPConfig controls the MCP tool surface.
type MCPConfig struct {
	AllowPrivate bool `yaml:"allow_private"`
}

// SnapshotConfig is one snapshot taken in batch mode.
type SnapshotConfig struct {
	Name             string `yaml:"name"`
	URL              string `yaml:"url"`
	Screenshot       bool   `yaml:"screenshot"`
	EnableJavaScript bool   `yaml:"enable_javascript"`
	Widths           []int  `yaml:"widths"`
	MinHeight        int    `yaml:"min_height"`
	PercyCSS         string `yaml:"percy_css"`
	AppendDeviceName bool   `yaml:"append_device_name"`
}

// env holds the variables that override file settings.
type env struct {
	LogLevel      string `envconfig:"LOG_LEVEL"`
	ServerAddress string `envconfig:"PERCY_SERVER_ADDRESS"`
	DebugDir      string `envconfig:"PERCY_DEBUG_DIR"`
	Archive       string `envconfig:"DOMSNAP_ARCHIVE"`
}

// LoadFile reads a YAML configuration file, then applies environment
// overrides and defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used without a file: defaults plus
// environment overrides.
func Default() (*Config, error) {
	var cfg Config
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	c.applyDefaults()
	return nil
}

func (c *Config) applyEnv() error {
	var e env
	if err := envconfig.Process("", &e); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	if e.ServerAddress != "" {
		c.Agent.Address = e.ServerAddress
	}
	if e.DebugDir != "" {
		c.Debug.Dir = e.DebugDir
	}
	if e.Archive != "" {
		c.Archive.Path = e.Archive
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogLevel == "debug" {
		c.Debug.Enabled = true
	}
	if c.Agent.Address == "" {
		c.Agent.Address = DefaultAgentAddress
	}
	if c.Agent.Timeout <= 0 {
		c.Agent.Timeout = 30 * time.Second
	}
	if c.Debug.Dir == "" {
		c.Debug.Dir = DefaultDebugDir
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.NavigationTimeout <= 0 {
		c.Browser.NavigationTimeout = 30 * time.Second
	}
	if c.Browser.Width <= 0 {
		c.Browser.Width = 1280
	}
	if c.Browser.Height <= 0 {
		c.Browser.Height = 1024
	}
	for i := range c.Snapshots {
		if c.Snapshots[i].Name == "" {
			c.Snapshots[i].Name = c.Snapshots[i].URL
		}
	}
}
