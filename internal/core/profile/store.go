package profile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Store reads and writes named profiles under a directory
// (conventionally ~/.config/envpod/profiles). It is passed explicitly
// into operations so tests can point it at a temporary directory.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the file path for a profile name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name+".toml")
}

// Load reads and validates the named profile.
func (s *Store) Load(name string) (*Profile, error) {
	path := s.Path(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("profile %q not found at %s", name, path)
	}
	return Load(path)
}

// Save writes a profile to the store, creating the directory if
// needed. Profiles are user-edited documents, not state records, so a
// plain overwrite matches intent.
func (s *Store) Save(name string, p *Profile) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create profiles directory: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(p); err != nil {
		return fmt.Errorf("failed to encode profile %q: %w", name, err)
	}
	if err := os.WriteFile(s.Path(name), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write profile %q: %w", name, err)
	}
	return nil
}

// EnsureDefault writes the built-in default profile on first use.
func (s *Store) EnsureDefault() error {
	if _, err := os.Stat(s.Path("default")); err == nil {
		return nil
	}
	return s.Save("default", Default())
}

// List returns the available profile names, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
	}
	sort.Strings(names)
	return names, nil
}
