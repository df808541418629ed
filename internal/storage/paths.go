// Package storage keeps solver data on disk: the badger database used to
// checkpoint book generation, and the default locations of data files.
package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "fourplay"

// DataDir returns the platform data directory for fourplay, creating it if
// needed:
//
//	macOS:   ~/Library/Application Support/fourplay
//	Windows: %APPDATA%/fourplay
//	others:  $XDG_DATA_HOME/fourplay or ~/.local/share/fourplay
func DataDir() (string, error) {
	base, err := dataHome()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// dataHome picks the per-user data root. An environment override wins over
// the path derived from the home directory.
func dataHome() (string, error) {
	var env string
	var fallback []string
	switch runtime.GOOS {
	case "darwin":
		fallback = []string{"Library", "Application Support"}
	case "windows":
		env, fallback = "APPDATA", []string{"AppData", "Roaming"}
	default:
		env, fallback = "XDG_DATA_HOME", []string{".local", "share"}
	}
	if env != "" {
		if dir := os.Getenv(env); dir != "" {
			return dir, nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}

// DatabaseDir returns the directory of the checkpoint database.
func DatabaseDir() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}

	dbDir := filepath.Join(dataDir, "db")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", err
	}
	return dbDir, nil
}

// DefaultBookPath returns where the opening book is looked for when no path
// is configured. The file itself may not exist.
func DefaultBookPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "7x6.book"), nil
}
