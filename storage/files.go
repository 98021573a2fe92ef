package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "eblitui-android"

// GetBaseDir returns the platform data directory for the host.
func GetBaseDir() (string, error) {
	switch runtime.GOOS {
	case "android":
		// The host passes its files dir explicitly; this is only a fallback.
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to get config directory: %w", err)
		}
		return filepath.Join(dir, appName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, appName), nil
	}

	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// Paths is the on-disk layout under a base directory.
type Paths struct {
	Base string
}

// DefaultPaths roots the layout at GetBaseDir.
func DefaultPaths() (Paths, error) {
	base, err := GetBaseDir()
	if err != nil {
		return Paths{}, err
	}
	return Paths{Base: base}, nil
}

// SettingsFile is the settings document.
func (p Paths) SettingsFile() string {
	return filepath.Join(p.Base, "settings.json")
}

// SavesDir holds battery RAM files.
func (p Paths) SavesDir() string {
	return filepath.Join(p.Base, "saves")
}

// StatesDir holds save states.
func (p Paths) StatesDir() string {
	return filepath.Join(p.Base, "states")
}

// CheatsDir holds rumble cheat files, one per image.
func (p Paths) CheatsDir() string {
	return filepath.Join(p.Base, "cheats")
}

// EnsureDirs creates every directory in the layout.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Base, p.SavesDir(), p.StatesDir(), p.CheatsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// AtomicWriteFile writes data to a temp file next to path and renames it
// into place.
func AtomicWriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// AtomicWriteJSON marshals data as indented JSON and writes it with
// AtomicWriteFile.
func AtomicWriteJSON(path string, data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return AtomicWriteFile(path, jsonData)
}
