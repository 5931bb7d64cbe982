// Package paths centralizes the host directory layout envpod uses for
// profiles and generated build artifacts.
package paths

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the envpod config directory
// (~/.config/envpod on Linux).
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "envpod")
}

// ProfilesDir returns the directory holding named profiles.
func ProfilesDir() string {
	return filepath.Join(ConfigDir(), "profiles")
}

// DataDir returns the envpod data directory
// (~/.local/share/envpod on Linux).
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "envpod")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "envpod")
}

// BuildDir returns where generated Dockerfiles and entrypoint scripts
// are staged for the runtime build.
func BuildDir() string {
	return filepath.Join(DataDir(), "build")
}

// EnsureDirs creates the directory layout if missing.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), ProfilesDir(), DataDir(), BuildDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
