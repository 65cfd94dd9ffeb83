package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// appName names the directory under the user config dir.
const appName = "beacon"

// LocalConfigPath is the project-local config file.
const LocalConfigPath = ".beacon/config.yaml"

// Loader handles configuration loading with Viper.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate
}

// NewLoader creates a new [Loader] with the BEACON_ environment prefix bound.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short env names that do not follow the key path.
	_ = v.BindEnv("claude.binary_path", "BEACON_CLAUDE_PATH")
	_ = v.BindEnv("database.path", "BEACON_DATABASE_PATH")
	_ = v.BindEnv("workflows.dir", "BEACON_WORKFLOWS_DIR")
	_ = v.BindEnv("log.level", "BEACON_LOG_LEVEL")

	return &Loader{
		v:        v,
		validate: validator.New(),
	}
}

func (l *Loader) setDefaults() {
	d := DefaultConfig()
	l.v.SetDefault("claude.binary_path", d.Claude.BinaryPath)
	l.v.SetDefault("claude.model", d.Claude.Model)
	l.v.SetDefault("database.path", d.Database.Path)
	l.v.SetDefault("workflows.dir", d.Workflows.Dir)
	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("output.color", d.Output.Color)
}

// Load reads configuration from the first config file found, applies
// environment overrides and validates the result. A missing config file is
// not an error.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	if path := configFile(); path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.finish()
}

// LoadFromFile loads configuration from a specific YAML or JSON file, with
// environment overrides still applied.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.setDefaults()

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return l.finish()
}

func (l *Loader) finish() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Database.Path == "" {
		path, err := DefaultDatabasePath()
		if err != nil {
			return nil, err
		}
		cfg.Database.Path = path
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// configFile returns the highest-priority config file that exists, or "".
func configFile() string {
	if path := os.Getenv("BEACON_CONFIG_PATH"); path != "" {
		return path
	}

	var candidates []string
	if path, err := DefaultConfigPath(); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, LocalConfigPath)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the beacon directory inside the user config directory.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// DefaultConfigPath returns the user-level config file path.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultDatabasePath returns the default SQLite database path.
func DefaultDatabasePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName+".db"), nil
}

// ValidationErrors returns the failing field names of an error from [Loader.Load].
func ValidationErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fe.Namespace()
	}
	return fields
}
