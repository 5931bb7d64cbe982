// Package registry tracks the containers created for a project in a
// .envpod marker file at the project root. Each record freezes a deep
// copy of the profile it was created from, so later profile edits
// never change what an existing container believes it was built with.
package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/envpod/envpod/internal/core/canonical"
	"github.com/envpod/envpod/internal/core/profile"
)

// MarkerName is the per-project registry file.
const MarkerName = ".envpod"

// ErrNotFound is returned when no marker exists in the current
// directory or any parent.
var ErrNotFound = fmt.Errorf("%s not found in this directory or any parent; run 'envpod init' first", MarkerName)

// Marker is the on-disk registry: the project's containers keyed by
// logical name, plus which logical name is the default.
type Marker struct {
	Default    string            `toml:"default"`
	Containers map[string]Record `toml:"containers"`
}

// Record describes one created container.
type Record struct {
	// Identity is the derived runtime container name.
	Identity string `toml:"identity"`

	// Profile is the profile name used at creation, for reference.
	Profile string `toml:"profile"`

	// CreatedAt is when the container was created.
	CreatedAt time.Time `toml:"created_at"`

	// LastUsed is when a command last ran in the container. Zero until
	// the first run; informational only, never part of any digest.
	LastUsed time.Time `toml:"last_used,omitempty"`

	// Digest is the frozen profile's digest at creation time.
	Digest string `toml:"digest"`

	// Frozen is the deep-copied profile snapshot, never a live
	// reference to the on-disk profile.
	Frozen profile.Profile `toml:"frozen"`
}

// New returns an empty marker with the conventional default name.
func New() *Marker {
	return &Marker{
		Default:    "main",
		Containers: map[string]Record{},
	}
}

// Find walks upward from startDir looking for a marker file and
// returns the loaded marker plus the project root containing it.
func Find(startDir string) (*Marker, string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}

	for {
		path := filepath.Join(dir, MarkerName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			m, err := Load(dir)
			if err != nil {
				return nil, "", err
			}
			return m, dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", ErrNotFound
		}
		dir = parent
	}
}

// Load reads the marker at projectRoot.
func Load(projectRoot string) (*Marker, error) {
	path := filepath.Join(projectRoot, MarkerName)
	var m Marker
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if m.Containers == nil {
		m.Containers = map[string]Record{}
	}
	if m.Default == "" {
		m.Default = "main"
	}
	return &m, nil
}

// Save writes the marker atomically (temporary file + rename) so an
// interrupted process never leaves a torn registry.
func Save(projectRoot string, m *Marker) error {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(m); err != nil {
		return fmt.Errorf("failed to encode registry marker: %w", err)
	}

	path := filepath.Join(projectRoot, MarkerName)
	tmp, err := os.CreateTemp(projectRoot, MarkerName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary marker file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary marker file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary marker file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a marker file is present at projectRoot.
func Exists(projectRoot string) bool {
	info, err := os.Stat(filepath.Join(projectRoot, MarkerName))
	return err == nil && !info.IsDir()
}

// Get returns the record for a logical name, or the default record
// when name is empty.
func (m *Marker) Get(name string) (string, Record, error) {
	if name == "" {
		name = m.Default
	}
	rec, ok := m.Containers[name]
	if !ok {
		return "", Record{}, fmt.Errorf("container %q not found (available: %s)", name, m.containerList())
	}
	return name, rec, nil
}

// Has reports whether a logical name is registered.
func (m *Marker) Has(name string) bool {
	_, ok := m.Containers[name]
	return ok
}

// Set registers or replaces a record.
func (m *Marker) Set(name string, rec Record) {
	m.Containers[name] = rec
}

// Touch stamps a record's last-used time and reports whether the name
// was registered.
func (m *Marker) Touch(name string, at time.Time) bool {
	rec, ok := m.Containers[name]
	if !ok {
		return false
	}
	rec.LastUsed = at
	m.Containers[name] = rec
	return true
}

// Remove deletes a record and reports whether it existed.
func (m *Marker) Remove(name string) bool {
	if _, ok := m.Containers[name]; !ok {
		return false
	}
	delete(m.Containers, name)
	return true
}

// Names returns the registered logical names, sorted.
func (m *Marker) Names() []string {
	names := make([]string, 0, len(m.Containers))
	for name := range m.Containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Marker) containerList() string {
	names := m.Names()
	if len(names) == 0 {
		return "none"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

// Freeze builds a record for a newly created container, deep-copying
// the profile and capturing its digest.
func Freeze(identityName, profileName string, p *profile.Profile) (Record, error) {
	frozen := p.Clone()
	digest, err := canonical.Digest(frozen)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Identity:  identityName,
		Profile:   profileName,
		CreatedAt: time.Now().UTC(),
		Digest:    digest,
		Frozen:    *frozen,
	}, nil
}

// CheckDrift compares a record's frozen digest against the live
// profile. A mismatch is reported as a warning string; drift is never
// acted on automatically.
func CheckDrift(rec Record, live *profile.Profile) (string, bool, error) {
	liveDigest, err := canonical.Digest(live)
	if err != nil {
		return "", false, err
	}
	if liveDigest == rec.Digest {
		return "", false, nil
	}
	warning := fmt.Sprintf(
		"profile %q has changed since this container was created; the container keeps its original configuration (run 'envpod reset' to recreate it)",
		rec.Profile)
	return warning, true, nil
}
