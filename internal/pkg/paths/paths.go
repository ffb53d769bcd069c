package paths

import (
	"os"
	"path/filepath"
)

// GetDataDir application data directory
func GetDataDir() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil || userConfigDir == "" {
		return filepath.Join(".", "data")
	}
	return filepath.Join(userConfigDir, "watchdog")
}

// GetCacheDir cache directory
func GetCacheDir() string {
	return filepath.Join(GetDataDir(), "cache")
}

// EnsureDir creates dir (and parents) and returns it
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
