// Package config holds host configuration for running Soil binaries: memory
// size, tracing toggles, the inspector server, and the filesystem jail used
// by host-file syscalls.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/soilvm/soil/interp"
)

// Config is the TOML-encoded host configuration.
type Config struct {
	Memory struct {
		SizeBytes uint64 `toml:"size_bytes"`
	} `toml:"memory"`

	Trace struct {
		Registers bool `toml:"registers"`
		Calls     bool `toml:"calls"`
	} `toml:"trace"`

	Inspector struct {
		Enabled bool `toml:"enabled"`
		Port    int  `toml:"port"`
	} `toml:"inspector"`

	Filesystem struct {
		Root string `toml:"root"`
	} `toml:"filesystem"`
}

// Default returns a configuration with the values a fresh install should
// start from: a 1 MiB guest address space, tracing off, inspector off, and
// a filesystem jail rooted at the current directory.
func Default() *Config {
	cfg := &Config{}
	cfg.Memory.SizeBytes = interp.DefaultMemorySize
	cfg.Trace.Registers = false
	cfg.Trace.Calls = false
	cfg.Inspector.Enabled = false
	cfg.Inspector.Port = 7777
	cfg.Filesystem.Root = "."
	return cfg
}

// Load reads and parses a TOML configuration file at path, falling back to
// Default() if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if cfg.Memory.SizeBytes == 0 {
		return nil, fmt.Errorf("config: memory.size_bytes must be positive")
	}
	return cfg, nil
}

// Save writes the configuration to path as TOML, creating its parent
// directory if necessary.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(path) // #nosec G304 -- host-provided config path
	if err != nil {
		return fmt.Errorf("config: failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("config: failed to encode %s: %w", path, err)
	}
	return nil
}
