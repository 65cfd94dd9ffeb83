// Package config provides configuration loading and management for beacon.
//
// Configuration is loaded using Viper, supporting YAML or JSON config files and
// environment variable overrides, and is checked with validator struct tags.
// The defaults work out of the box: Claude is found on PATH, workflows are read
// from ./.beacon/workflows and runs are stored in the user config directory.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//
// Configuration priority (highest to lowest):
//  1. Environment variables (BEACON_ prefix)
//  2. Config file specified by BEACON_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/beacon/config.yaml
//     - macOS: ~/Library/Application Support/beacon/config.yaml
//     - Windows: %APPDATA%\beacon\config.yaml
//  4. ./.beacon/config.yaml
//  5. [DefaultConfig] defaults
package config

// Config represents the root configuration structure.
type Config struct {
	// Claude contains Claude CLI binary configuration.
	Claude ClaudeConfig `mapstructure:"claude"`

	// Database locates the SQLite file holding runs, notes and command logs.
	Database DatabaseConfig `mapstructure:"database"`

	// Workflows locates workflow definition files.
	Workflows WorkflowsConfig `mapstructure:"workflows"`

	// Log controls diagnostic logging on stderr.
	Log LogConfig `mapstructure:"log"`

	// Output contains terminal output configuration.
	Output OutputConfig `mapstructure:"output"`
}

// ClaudeConfig contains Claude CLI configuration.
type ClaudeConfig struct {
	// BinaryPath is the path to the Claude CLI binary.
	// Default: "claude" (assumes Claude is in PATH).
	// Can be overridden with BEACON_CLAUDE_PATH environment variable.
	BinaryPath string `mapstructure:"binary_path" validate:"required"`

	// Model is passed to Claude as --model when set.
	// Examples: "opus", "sonnet", "haiku"
	Model string `mapstructure:"model"`
}

// DatabaseConfig contains persistence settings.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	// Default: <ConfigDir>/beacon.db
	// Can be overridden with BEACON_DATABASE_PATH environment variable.
	Path string `mapstructure:"path" validate:"required"`
}

// WorkflowsConfig contains workflow discovery settings.
type WorkflowsConfig struct {
	// Dir is the directory holding <name>.yml workflow files.
	// Default: ".beacon/workflows" relative to the working directory.
	// Can be overridden with BEACON_WORKFLOWS_DIR environment variable.
	Dir string `mapstructure:"dir"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn or error. Default: "warn".
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// OutputConfig contains terminal output configuration.
type OutputConfig struct {
	// Color enables styled output when the terminal supports it. Default: true.
	Color bool `mapstructure:"color"`
}

// DefaultConfig returns a configuration with default values.
//
// Database.Path is left empty here and resolved to [DefaultDatabasePath] by
// the [Loader].
func DefaultConfig() *Config {
	return &Config{
		Claude: ClaudeConfig{
			BinaryPath: "claude",
		},
		Workflows: WorkflowsConfig{
			Dir: ".beacon/workflows",
		},
		Log: LogConfig{
			Level: "warn",
		},
		Output: OutputConfig{
			Color: true,
		},
	}
}
