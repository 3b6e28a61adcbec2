package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "library"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "LIBRARY_CONFIG_DIR"
	EnvDataDir   = "LIBRARY_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/library (fallback ~/.config/library)
// macOS:   ~/Library/Application Support/library
// Windows: %APPDATA%/library
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appDirName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName), nil
}

// DefaultDataDir returns where the SQLite file lives when no DSN is set.
//
// Linux:   $XDG_DATA_HOME/library (fallback ~/.local/share/library)
// Others:  same as the config directory
func DefaultDataDir() (string, error) {
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", appDirName), nil
	}
	return DefaultConfigDir()
}

// ResolveDir returns the configuration directory: flag, then
// LIBRARY_CONFIG_DIR, then the platform default.
func ResolveDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}
