package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FIDX_CONFIG_PATH: config file location (default: ~/.config/fidx.toml)
//   - FIDX_HOME: base directory for fidx data (default: ~/.local/share/fidx)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"db_dir":      filepath.Join(baseDir, "db"),
	}, nil
}

// getConfigPath returns the config file path, checking FIDX_CONFIG_PATH env var first,
// then falling back to the default ~/.config/fidx.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("FIDX_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "fidx.toml"), nil
}

// getBaseDir returns the base directory for fidx data, checking FIDX_HOME env var first,
// then falling back to the XDG default ~/.local/share/fidx.
func getBaseDir() (string, error) {
	if path := os.Getenv("FIDX_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "fidx"), nil
}
