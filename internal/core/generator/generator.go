// Package generator renders a profile into the build recipe consumed
// by the container runtime: a Dockerfile and an entrypoint script.
// Rendering is a pure function of the profile and the embedded
// template set, so identical profiles always produce identical
// recipes.
//
// Layers are ordered from least to most frequently changing to
// maximize the runtime's build-cache reuse: base image, OS packages,
// language runtimes, github cli, pip/npm, custom steps, command
// installs, git identity, shell setup, user setup, entrypoint.
package generator

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/envpod/envpod/internal/core/profile"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Recipe is a rendered build recipe.
type Recipe struct {
	Dockerfile string
	Entrypoint string
}

type keyValue struct {
	Key   string
	Value string
}

type commandInstall struct {
	Name    string
	Install string
}

// dockerfileContext is the flattened template input. Map-typed profile
// fields are sorted here so rendering stays deterministic.
type dockerfileContext struct {
	BaseImage       string
	User            string
	HomeDir         string
	Environment     []keyValue
	AptPackages     []string
	FdFindSymlink   bool
	NodeJS          profile.NodeJSConfig
	GithubCLI       bool
	PipPackages     []string
	NpmPackages     []string
	CustomDeps      []profile.CustomDependency
	CommandInstalls []commandInstall
	GitUserName     string
	GitUserEmail    string
	Aliases         []keyValue
	HistorySearch   bool
}

type entrypointContext struct {
	DefaultCommand string
}

// Render produces the build recipe for a profile.
func Render(p *profile.Profile) (*Recipe, error) {
	dockerfile, err := render("Dockerfile.tmpl", buildContext(p))
	if err != nil {
		return nil, err
	}

	defaultCmd, err := p.Commands.ResolveDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default command for entrypoint: %w", err)
	}
	entrypoint, err := render("entrypoint.sh.tmpl", entrypointContext{DefaultCommand: defaultCmd.Name})
	if err != nil {
		return nil, err
	}

	return &Recipe{Dockerfile: dockerfile, Entrypoint: entrypoint}, nil
}

func render(name string, data any) (string, error) {
	buf := new(bytes.Buffer)
	if err := templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func buildContext(p *profile.Profile) dockerfileContext {
	ctx := dockerfileContext{
		BaseImage:     p.Container.BaseImage,
		User:          p.Container.User,
		HomeDir:       p.Container.HomeDir,
		Environment:   sortedPairs(p.Environment),
		AptPackages:   p.Dependencies.Apt,
		NodeJS:        p.Dependencies.NodeJS,
		GithubCLI:     p.Dependencies.GithubCLI.Enabled,
		PipPackages:   p.Dependencies.Pip,
		NpmPackages:   p.Dependencies.Npm,
		CustomDeps:    p.Dependencies.Custom,
		GitUserName:   p.Git.UserName,
		GitUserEmail:  p.Git.UserEmail,
		Aliases:       sortedPairs(p.Shell.Aliases),
		HistorySearch: p.Shell.HistorySearch,
	}

	// Debian installs fd-find's binary as fdfind; give it the usual
	// name when the package is requested.
	for _, pkg := range p.Dependencies.Apt {
		if pkg == "fd-find" {
			ctx.FdFindSymlink = true
			break
		}
	}

	// Command install steps are emitted verbatim, sorted by command
	// name so recipe output does not depend on map iteration order.
	var names []string
	for name, spec := range p.Commands.Entries {
		if spec.Install != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		ctx.CommandInstalls = append(ctx.CommandInstalls, commandInstall{
			Name:    name,
			Install: p.Commands.Entries[name].Install,
		})
	}

	return ctx
}

func sortedPairs(m map[string]string) []keyValue {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]keyValue, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, keyValue{Key: k, Value: m[k]})
	}
	return pairs
}

// WriteTo stages the recipe into a build directory for the runtime.
// The entrypoint script is written executable.
func (r *Recipe) WriteTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create build directory %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(r.Dockerfile), 0o644); err != nil {
		return fmt.Errorf("failed to write Dockerfile: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "entrypoint.sh"), []byte(r.Entrypoint), 0o755); err != nil {
		return fmt.Errorf("failed to write entrypoint.sh: %w", err)
	}
	return nil
}
