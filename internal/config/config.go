// Package config provides configuration management for the debugger.
//
// Configuration controls:
//   - Listener address: host and port the DAP server binds (default 0.0.0.0:1337)
//   - Content source: the packs directory and token state file used by the static host
//   - Front-ends: whether the MCP stdio server runs next to the DAP listener
//   - Safety limits: maximum concurrent debugger sessions
//
// Configuration can be loaded from a JSON file (comments and trailing commas are
// allowed) or use sensible defaults. Paths may use ${...} variables, see
// ResolveVariables.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tidwall/jsonc"

	"github.com/sinz/cp-debugger/internal/errors"
)

// DefaultPort is the port the debug server listens on unless told otherwise
const DefaultPort = 1337

// Config holds the server configuration
type Config struct {
	// Listener
	Host string `json:"host"`
	Port int    `json:"port"`

	// Static host content
	PacksDir       string `json:"packsDir"`
	TokenStatePath string `json:"tokenStatePath"`

	// Front-ends
	EnableMCP bool `json:"enableMcp"`

	// Limits for safety; 0 means unlimited
	MaxSessions int `json:"maxSessions"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host: "0.0.0.0",
		Port: DefaultPort,
	}
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolvePaths(&ResolutionContext{ConfigDir: filepath.Dir(absPath)}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolvePaths expands variables in PacksDir and TokenStatePath
func (c *Config) ResolvePaths(ctx *ResolutionContext) error {
	packsDir, err := resolvePath(c.PacksDir, ctx)
	if err != nil {
		return errors.ConfigInvalid("packsDir", err.Error())
	}
	tokenStatePath, err := resolvePath(c.TokenStatePath, ctx)
	if err != nil {
		return errors.ConfigInvalid("tokenStatePath", err.Error())
	}
	c.PacksDir = packsDir
	c.TokenStatePath = tokenStatePath
	return nil
}

// Validate checks the configuration for values the server cannot use
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.ConfigInvalid("port", "must be between 0 and 65535, got "+strconv.Itoa(c.Port))
	}
	if c.MaxSessions < 0 {
		return errors.ConfigInvalid("maxSessions", "must not be negative")
	}
	return nil
}

// Address returns the host:port the DAP listener binds
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HasPacks returns true if a packs directory is configured
func (c *Config) HasPacks() bool {
	return c.PacksDir != ""
}
