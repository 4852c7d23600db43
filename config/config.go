package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the simulator configuration: execution limits,
// cycle weights, and I/O wiring, all TOML-backed and overridable by
// CLI flags in the driver layer.
type Config struct {
	// Execution settings
	Execution struct {
		MaxCycles     uint64 `toml:"max_cycles"`
		MaxStorage    int    `toml:"max_storage"`
		CacheEnabled  bool   `toml:"cache_enabled"`
		KeepDebugInfo bool   `toml:"keep_debug_info"`
		PrintInsts    bool   `toml:"print_insts"`
	} `toml:"execution"`

	// Weights assigns a cycle cost to each instruction/access category.
	Weights struct {
		Simple   uint64 `toml:"simple"`
		Mul      uint64 `toml:"mul"`
		CacheHit uint64 `toml:"cache_hit"`
		Branch   uint64 `toml:"branch"`
		Div      uint64 `toml:"div"`
		MemMiss  uint64 `toml:"mem_miss"`
		LibcIO   uint64 `toml:"libc_io"`
		LibcMem  uint64 `toml:"libc_mem"`
	} `toml:"weights"`

	// IO settings: empty means stdin/stdout.
	IO struct {
		InputFile  string `toml:"input_file"`
		OutputFile string `toml:"output_file"`
	} `toml:"io"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Execution.MaxCycles = 1000000
	cfg.Execution.MaxStorage = 512 * 1024 * 1024
	cfg.Execution.CacheEnabled = true
	cfg.Execution.KeepDebugInfo = false
	cfg.Execution.PrintInsts = false

	cfg.Weights.Simple = 1
	cfg.Weights.Mul = 3
	cfg.Weights.CacheHit = 1
	cfg.Weights.Branch = 1
	cfg.Weights.Div = 8
	cfg.Weights.MemMiss = 4
	cfg.Weights.LibcIO = 2
	cfg.Weights.LibcMem = 1

	cfg.IO.InputFile = ""
	cfg.IO.OutputFile = ""

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\rv32im-sim\config.toml
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "rv32im-sim")

	case "darwin", "linux":
		// macOS/Linux: ~/.config/rv32im-sim/config.toml
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "rv32im-sim")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "rv32im-sim", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "rv32im-sim", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
