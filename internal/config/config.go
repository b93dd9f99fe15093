// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/chain"
	"github.com/btcfi-labs/btcfi-wallet/internal/faucet"
	"github.com/btcfi-labs/btcfi-wallet/internal/funding"
	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
)

// Config holds all configuration for the wallet daemon.
type Config struct {
	// Network is the profile name (mutinynet, signet, testnet, regtest).
	Network string `yaml:"network"`

	API     APIConfig      `yaml:"api"`
	Storage StorageConfig  `yaml:"storage"`
	Logging LoggingConfig  `yaml:"logging"`
	Backend backend.Config `yaml:"backend"`
	Funding funding.Config `yaml:"funding"`
	Faucet  faucet.Config  `yaml:"faucet"`
}

// APIConfig holds JSON-RPC server settings.
type APIConfig struct {
	// Listen is the address the RPC server binds to.
	Listen string `yaml:"listen"`

	// AllowedOrigins restricts browser origins for CORS and WebSocket.
	// Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory for all data files.
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is the log file path (empty for stderr).
	File string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Network: chain.DefaultNetwork,
		API: APIConfig{
			Listen: "127.0.0.1:8645",
		},
		Storage: StorageConfig{
			DataDir: "~/.btcfi",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Backend: backend.Config{
			Type:    backend.TypeMempool,
			Timeout: backend.DefaultTimeout,
		},
		Funding: funding.DefaultConfig(),
		Faucet:  faucet.DefaultConfig(),
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if !chain.IsSupported(c.Network) {
		return fmt.Errorf("%w: %q (supported: %s)", chain.ErrUnknownNetwork, c.Network, strings.Join(chain.List(), ", "))
	}
	if c.API.Listen == "" {
		return fmt.Errorf("api.listen is required")
	}
	switch c.Backend.Type {
	case "", backend.TypeMempool, backend.TypeEsplora:
	default:
		return fmt.Errorf("%w: %s", backend.ErrUnsupportedBackend, c.Backend.Type)
	}
	if c.Funding.FixedFee < 0 {
		return fmt.Errorf("funding.fixed_fee must not be negative")
	}
	if c.Faucet.Enabled && c.Faucet.MaxAmount > 0 && c.Faucet.DefaultAmount > c.Faucet.MaxAmount {
		return fmt.Errorf("faucet.default_amount %d exceeds faucet.max_amount %d", c.Faucet.DefaultAmount, c.Faucet.MaxAmount)
	}
	return nil
}

// Params returns the network profile.
func (c *Config) Params() (*chain.Params, error) {
	return chain.Get(c.Network)
}

// BackendConfig returns the backend settings, defaulting the URL to the
// profile's public API.
func (c *Config) BackendConfig(params *chain.Params) *backend.Config {
	cfg := c.Backend
	if cfg.URL == "" {
		cfg.URL = params.APIURL
	}
	if cfg.Type == "" {
		cfg.Type = backend.TypeMempool
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = c.Funding.Timeout
	}
	return &cfg
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// LoadConfig loads configuration from the data directory.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	configPath := ConfigPath(dataDir)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	return LoadFile(configPath)
}

// LoadFile reads configuration from path. Unset fields keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(storage.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# btcfi wallet daemon configuration\n# Generated automatically on first run\n" +
		"# The faucet key is read from the environment variable named in faucet.private_key_env.\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(storage.ExpandPath(dataDir), ConfigFileName)
}
