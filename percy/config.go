package percy

import (
	"github.com/hazyhaar/domsnap/percy/internal/config"
)

// Config is the top-level domsnap configuration. Re-exported from internal.
type Config = config.Config

// AgentConfig locates the snapshot agent.
type AgentConfig = config.AgentConfig

// BrowserConfig controls the Chrome instance used for live snapshots.
type BrowserConfig = config.BrowserConfig

// DebugConfig controls local dumps of each snapshot.
type DebugConfig = config.DebugConfig

// ArchiveConfig enables the local SQLite archive.
type ArchiveConfig = config.ArchiveConfig

// MCPConfig controls the MCP tool surface.
type MCPConfig = config.MCPConfig

// SnapshotConfig is one snapshot taken in batch mode.
type SnapshotConfig = config.SnapshotConfig

// LoadConfigFile reads a YAML configuration file with environment overrides.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns defaults plus environment overrides.
func DefaultConfig() (*Config, error) {
	return config.Default()
}
