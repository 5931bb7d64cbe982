// Package lockfile persists the record of the last successful image
// build and reconciles it against the live profile digest. The record
// is owned by the build flow; every other flow only reads it.
package lockfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// Name is the lock file kept at the project root.
const Name = "envpod-lock.toml"

// Record describes what was last successfully built.
type Record struct {
	// Digest is the profile digest the image was built from.
	Digest string `toml:"digest"`

	// CreatedAt is when the record was written. Informational only;
	// it is never part of any digest.
	CreatedAt time.Time `toml:"created_at"`

	// ImageTag and ImageID identify the built image.
	ImageTag string `toml:"image_tag"`
	ImageID  string `toml:"image_id,omitempty"`

	// ToolVersion is the envpod version that wrote the record.
	ToolVersion string `toml:"tool_version,omitempty"`
}

// State is the reconciliation result of a record against a live
// digest. There is no persisted state, only the record and a
// comparison computed freshly on demand.
type State int

const (
	// NoLock means no usable record exists.
	NoLock State = iota

	// Current means the live digest matches the record.
	Current

	// Stale means the profile changed since the last build. Staleness
	// is advisory only and never triggers a rebuild or destruction.
	Stale
)

func (s State) String() string {
	switch s {
	case Current:
		return "current"
	case Stale:
		return "stale"
	default:
		return "no lock"
	}
}

// Path returns the lock file path for a project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, Name)
}

// Load reads the lock record for a project. A missing file is not an
// error; it returns (nil, nil) and reconciles as NoLock.
func Load(projectRoot string) (*Record, error) {
	path := Path(projectRoot)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	var rec Record
	if _, err := toml.DecodeFile(path, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode lock file %s: %w", path, err)
	}
	return &rec, nil
}

// Save writes the record atomically: encode to a temporary file in the
// same directory, then rename over the final path. Process death at
// any point leaves either the old record or the new one, never a torn
// file.
func Save(projectRoot string, rec *Record) error {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(rec); err != nil {
		return fmt.Errorf("failed to encode lock record: %w", err)
	}

	path := Path(projectRoot)
	tmp, err := os.CreateTemp(filepath.Dir(path), Name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary lock file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary lock file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary lock file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace lock file %s: %w", path, err)
	}
	return nil
}

// Delete removes the lock file if present.
func Delete(projectRoot string) error {
	err := os.Remove(Path(projectRoot))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete lock file: %w", err)
	}
	return nil
}

// Reconcile compares a record against the live profile digest.
// toolVersion is the running envpod version; a record written by a
// different major version is treated as NoLock rather than trusted or
// rejected.
func Reconcile(rec *Record, liveDigest, toolVersion string) State {
	if rec == nil || rec.Digest == "" {
		return NoLock
	}
	if !compatibleVersion(rec.ToolVersion, toolVersion) {
		return NoLock
	}
	if rec.Digest == liveDigest {
		return Current
	}
	return Stale
}

// compatibleVersion reports whether two tool versions share a major
// version. Unparseable or absent versions are accepted so dev builds
// ("dev", "") keep working against real records.
func compatibleVersion(recorded, current string) bool {
	rv, err := semver.NewVersion(trimV(recorded))
	if err != nil {
		return true
	}
	cv, err := semver.NewVersion(trimV(current))
	if err != nil {
		return true
	}
	return rv.Major() == cv.Major()
}

func trimV(v string) string {
	if len(v) > 0 && v[0] == 'v' {
		return v[1:]
	}
	return v
}
