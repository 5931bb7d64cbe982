// Package project resolves the environment a CLI verb operates on:
// the project directory (marker search), the active profile, and the
// profile store.
package project

import (
	"errors"
	"fmt"
	"os"

	"github.com/envpod/envpod/internal/core/paths"
	"github.com/envpod/envpod/internal/core/profile"
	"github.com/envpod/envpod/internal/core/registry"
)

// Env is the resolved invocation environment.
type Env struct {
	// Dir is the project root: the directory holding the registry
	// marker, or the current directory when no marker exists yet.
	Dir string

	// Marker is the project registry, nil when not yet initialized.
	Marker *registry.Marker

	// Profile is the loaded active profile and ProfileName its name.
	Profile     *profile.Profile
	ProfileName string

	// Store is the named-profile store.
	Store *profile.Store
}

// Resolve loads the invocation environment. The active profile is, in
// order: the explicit override, the profile recorded for the project's
// default container, or "default" (created on first use).
func Resolve(profileOverride string) (*Env, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	store := profile.NewStore(paths.ProfilesDir())
	if err := store.EnsureDefault(); err != nil {
		return nil, err
	}

	env := &Env{Dir: cwd, Store: store}

	marker, dir, err := registry.Find(cwd)
	switch {
	case err == nil:
		env.Marker = marker
		env.Dir = dir
	case errors.Is(err, registry.ErrNotFound):
		// Not initialized yet; verbs that need a marker say so.
	default:
		return nil, err
	}

	name := profileOverride
	if name == "" {
		name = "default"
		if env.Marker != nil {
			if _, rec, err := env.Marker.Get(""); err == nil {
				name = rec.Profile
			}
		}
	}

	p, err := store.Load(name)
	if err != nil {
		return nil, err
	}

	env.Profile = p
	env.ProfileName = name
	return env, nil
}
