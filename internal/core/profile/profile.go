// Package profile defines the typed model for an envpod environment
// profile and its TOML (de)serialization, validation, and deep copying.
package profile

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/envpod/envpod/internal/core/command"
)

// ValidationError reports a structurally well-formed profile that
// violates a semantic constraint. Validation failures are fatal and
// surface before any external process runs.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid profile: " + e.Msg
}

// Profile is the full declarative environment configuration.
type Profile struct {
	Container    ContainerConfig    `toml:"container"`
	Runtime      RuntimeConfig      `toml:"runtime"`
	Environment  map[string]string  `toml:"environment"`
	Git          GitConfig          `toml:"git"`
	Dependencies DependenciesConfig `toml:"dependencies"`
	Shell        ShellConfig        `toml:"shell"`
	Commands     command.Config     `toml:"commands"`
}

// ContainerConfig describes the image and in-container user layout.
type ContainerConfig struct {
	BaseImage string `toml:"base_image"`
	User      string `toml:"user"`
	HomeDir   string `toml:"home_dir"`
	WorkDir   string `toml:"work_dir"`
}

// RuntimeConfig describes how the container engine is invoked.
type RuntimeConfig struct {
	// Engine is the container runtime binary, "podman" or "docker".
	Engine      string        `toml:"engine"`
	EnableGPU   bool          `toml:"enable_gpu"`
	GPUDriver   string        `toml:"gpu_driver"`
	Interactive bool          `toml:"interactive"`
	Volumes     []VolumeMount `toml:"volumes"`
	Tmpfs       []TmpfsMount  `toml:"tmpfs"`
	ExtraArgs   []string      `toml:"extra_args"`
}

// VolumeMount is a host-to-container bind mount. Host and container
// paths may contain env-style placeholders ($PWD, $HOME, ${VAR}) which
// stay unexpanded until container creation so digests are portable
// across machines.
type VolumeMount struct {
	Host      string `toml:"host"`
	Container string `toml:"container"`
	ReadOnly  bool   `toml:"readonly"`
}

// TmpfsMount is an in-memory mount inside the container.
type TmpfsMount struct {
	Path     string `toml:"path"`
	Size     string `toml:"size"`
	ReadOnly bool   `toml:"readonly"`
}

// GitConfig is the identity written into the container's git config.
type GitConfig struct {
	UserName  string `toml:"user_name"`
	UserEmail string `toml:"user_email"`
}

// DependenciesConfig lists what gets installed into the image. Package
// strings are emitted verbatim into the build recipe; install order
// follows declaration order.
type DependenciesConfig struct {
	Apt       []string           `toml:"apt"`
	Pip       []string           `toml:"pip"`
	Npm       []string           `toml:"npm"`
	NodeJS    NodeJSConfig       `toml:"nodejs"`
	GithubCLI GithubCLIConfig    `toml:"github_cli"`
	Custom    []CustomDependency `toml:"custom"`
}

// NodeJSConfig selects an optional node runtime installer layer.
type NodeJSConfig struct {
	Enabled bool   `toml:"enabled"`
	Version string `toml:"version"`
	// Source is the installer flavor: nodesource, apt, or nvm.
	Source string `toml:"source"`
}

// GithubCLIConfig toggles the GitHub CLI installer layer. gh is not in
// the stock Ubuntu archives, so it needs its own apt repository rather
// than a line in the apt list.
type GithubCLIConfig struct {
	Enabled bool `toml:"enabled"`
}

// CustomDependency is a named group of free-form install steps. The
// commands are opaque shell lines; envpod only guarantees instruction
// boundaries, not their semantics.
type CustomDependency struct {
	Name     string   `toml:"name"`
	Commands []string `toml:"commands"`
}

// ShellConfig tunes the interactive shell installed in the image.
type ShellConfig struct {
	Aliases       map[string]string `toml:"aliases"`
	HistorySearch bool              `toml:"history_search"`
}

// Default returns the built-in profile written by `envpod init` on
// first use.
func Default() *Profile {
	return &Profile{
		Container: ContainerConfig{
			BaseImage: "ubuntu:24.04",
			User:      "dev",
			HomeDir:   "/home/dev",
			WorkDir:   "$PWD",
		},
		Runtime: RuntimeConfig{
			Engine:      "podman",
			EnableGPU:   false,
			GPUDriver:   "all",
			Interactive: true,
			Volumes: []VolumeMount{
				{Host: "$PWD", Container: "$PWD"},
			},
		},
		Environment: map[string]string{
			"TERM": "xterm-256color",
		},
		Dependencies: DependenciesConfig{
			Apt: []string{
				"build-essential", "cmake", "make",
				"git", "curl", "jq", "vim",
				"python3", "python3-pip",
				"ripgrep", "fd-find", "sudo", "gosu", "procps",
			},
			NodeJS:    NodeJSConfig{Enabled: true, Version: "20", Source: "nodesource"},
			GithubCLI: GithubCLIConfig{Enabled: true},
		},
		Shell: ShellConfig{
			Aliases:       map[string]string{"ll": "ls -la"},
			HistorySearch: true,
		},
		Commands: command.Config{
			Default: "shell",
			Entries: map[string]command.Spec{
				"shell": {Command: "bash"},
				"bash":  {},
				"zsh":   {},
			},
		},
	}
}

// Load reads and validates a profile from a TOML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a profile from TOML bytes.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the semantic constraints the rest of the tool relies
// on. It never touches the filesystem.
func (p *Profile) Validate() error {
	switch p.Runtime.Engine {
	case "podman", "docker":
	default:
		return &ValidationError{Msg: fmt.Sprintf("container engine %q must be podman or docker", p.Runtime.Engine)}
	}

	if p.Container.BaseImage == "" {
		return &ValidationError{Msg: "base image cannot be empty"}
	}
	if p.Container.User == "" {
		return &ValidationError{Msg: "container user cannot be empty"}
	}

	for _, v := range p.Runtime.Volumes {
		if v.Host == "" || v.Container == "" {
			return &ValidationError{Msg: "volume mount paths cannot be empty"}
		}
	}

	if p.Dependencies.NodeJS.Enabled {
		switch p.Dependencies.NodeJS.Source {
		case "nodesource", "apt", "nvm":
		default:
			return &ValidationError{Msg: fmt.Sprintf("nodejs source %q must be nodesource, apt, or nvm", p.Dependencies.NodeJS.Source)}
		}
	}

	// The command table must hold a resolvable default entry.
	if _, err := p.Commands.ResolveDefault(); err != nil {
		return &ValidationError{Msg: fmt.Sprintf("command table default is not resolvable: %v", err)}
	}

	return nil
}

// Clone returns a deep, independent copy. Registry records freeze a
// clone so later profile edits never retroactively change what an
// existing container was built from.
func (p *Profile) Clone() *Profile {
	c := *p

	c.Environment = cloneStringMap(p.Environment)
	c.Runtime.Volumes = append([]VolumeMount(nil), p.Runtime.Volumes...)
	c.Runtime.Tmpfs = append([]TmpfsMount(nil), p.Runtime.Tmpfs...)
	c.Runtime.ExtraArgs = append([]string(nil), p.Runtime.ExtraArgs...)

	c.Dependencies.Apt = append([]string(nil), p.Dependencies.Apt...)
	c.Dependencies.Pip = append([]string(nil), p.Dependencies.Pip...)
	c.Dependencies.Npm = append([]string(nil), p.Dependencies.Npm...)
	c.Dependencies.Custom = make([]CustomDependency, len(p.Dependencies.Custom))
	for i, d := range p.Dependencies.Custom {
		c.Dependencies.Custom[i] = CustomDependency{
			Name:     d.Name,
			Commands: append([]string(nil), d.Commands...),
		}
	}

	c.Shell.Aliases = cloneStringMap(p.Shell.Aliases)

	if p.Commands.Entries != nil {
		c.Commands.Entries = make(map[string]command.Spec, len(p.Commands.Entries))
		for name, spec := range p.Commands.Entries {
			c.Commands.Entries[name] = spec
		}
	}

	return &c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
