package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "feedsub"

// DefaultDataDir returns the per-user data directory for the development feed
// server: $XDG_DATA_HOME/feedsub when set, otherwise the platform's
// conventional location. Without a home directory it falls back to ./data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDir)
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, appDir)
		}
		return filepath.Join(home, "AppData", "Local", appDir)
	default:
		return filepath.Join(home, ".local", "share", appDir)
	}
}
