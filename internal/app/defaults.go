package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - COURSESYNC_CONFIG_PATH: config file location (default: ~/.config/coursesync.toml)
//   - COURSESYNC_HOME: base directory for keys, database and logs (default: ~/.local/share/coursesync)
//
// The mirror itself defaults to ~/Courses.
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"mirror_dir":  filepath.Join(homeDir, "Courses"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("COURSESYNC_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "coursesync.toml"), nil
}

// getBaseDir follows the XDG data directory layout.
func getBaseDir() (string, error) {
	if path := os.Getenv("COURSESYNC_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "coursesync"), nil
}
