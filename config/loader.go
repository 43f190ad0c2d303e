package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// EnvConfigPath names the environment variable consulted when no explicit
// configuration path is given.
const EnvConfigPath = "TENDERFILL_CONFIG"

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Loader loads a user configuration on top of the built-in default.
type Loader struct {
	configPath string
}

// NewLoader creates a loader for path. An empty path falls back to
// $TENDERFILL_CONFIG; when that is unset too, Load returns the default.
func NewLoader(path string) *Loader {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	return &Loader{configPath: path}
}

// ConfigPath returns the configuration file path, "" when only the default
// is used.
func (l *Loader) ConfigPath() string {
	return l.configPath
}

// Load reads and parses the configuration file.
func (l *Loader) Load() (*Config, error) {
	if l.configPath == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse([]byte(expandEnvVars(string(data))), Default())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.configPath, err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
