// Package runtime is the thin collaborator around the container engine
// (podman or docker). Engine invocations are synchronous child
// processes; interactive ones inherit the caller's stdio and propagate
// the child's exit code unchanged.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/envpod/envpod/internal/core/pathexp"
	"github.com/envpod/envpod/internal/core/profile"
)

// ProcessError reports a non-zero exit from the engine. The code is
// surfaced unchanged so scripting around envpod stays predictable.
type ProcessError struct {
	Op       string
	ExitCode int
	Detail   string
}

func (e *ProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed (exit %d): %s", e.Op, e.ExitCode, e.Detail)
	}
	return fmt.Sprintf("%s failed (exit %d)", e.Op, e.ExitCode)
}

// ExitCode extracts the child exit code from an error chain, or 1.
func ExitCode(err error) int {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.ExitCode
	}
	return 1
}

// Runtime is the engine surface envpod depends on. CLI flows take it
// as an explicit collaborator so tests can substitute a fake.
type Runtime interface {
	// Build builds the image staged in dir and returns its image ID.
	// Build output streams to the caller's terminal.
	Build(ctx context.Context, dir, imageTag string) (string, error)

	// ImageExists reports whether imageTag resolves to a local image.
	ImageExists(ctx context.Context, imageTag string) bool

	// Create creates (but does not start) a persistent container from
	// the profile. Volume paths are expanded here, never earlier.
	Create(ctx context.Context, p *profile.Profile, containerName, imageTag, projectDir string) error

	// ContainerExists reports whether the container exists, running
	// or stopped.
	ContainerExists(ctx context.Context, containerName string) bool

	// ContainerRunning reports whether the container is running.
	ContainerRunning(ctx context.Context, containerName string) bool

	// Start starts a stopped container.
	Start(ctx context.Context, containerName string) error

	// Exec runs argv inside the container with stdio inherited.
	Exec(ctx context.Context, containerName, workdir string, argv []string, interactive bool) error

	// Remove force-removes the container.
	Remove(ctx context.Context, containerName string) error
}

// Engine invokes a container runtime binary (podman or docker).
type Engine struct {
	// Binary is the engine executable name.
	Binary string
}

// NewEngine returns an Engine for the profile's configured runtime.
func NewEngine(p *profile.Profile) *Engine {
	return &Engine{Binary: p.Runtime.Engine}
}

var _ Runtime = (*Engine)(nil)

// Build runs `<engine> build` in dir with the caller's UID/GID as
// build args so in-image file ownership matches the host user.
func (e *Engine) Build(ctx context.Context, dir, imageTag string) (string, error) {
	cmd := exec.CommandContext(ctx, e.Binary,
		"build",
		"--build-arg", fmt.Sprintf("USER_UID=%d", os.Getuid()),
		"--build-arg", fmt.Sprintf("USER_GID=%d", os.Getgid()),
		"-t", imageTag,
		".",
	)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", e.wrap("image build", err, "")
	}
	return e.imageID(ctx, imageTag)
}

func (e *Engine) imageID(ctx context.Context, imageTag string) (string, error) {
	out, err := exec.CommandContext(ctx, e.Binary, "images", "-q", imageTag).Output()
	if err != nil {
		return "", e.wrap("image lookup", err, "")
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", fmt.Errorf("image %s not found after build", imageTag)
	}
	return id, nil
}

// ImageExists reports whether the tag resolves to a local image.
func (e *Engine) ImageExists(ctx context.Context, imageTag string) bool {
	id, err := e.imageID(ctx, imageTag)
	return err == nil && id != ""
}

// Create creates a persistent container kept alive with sleep, so
// commands exec into it without losing in-container state between
// invocations.
func (e *Engine) Create(ctx context.Context, p *profile.Profile, containerName, imageTag, projectDir string) error {
	args := []string{"create", "--name", containerName}

	if p.Runtime.Interactive {
		args = append(args, "-it")
	}

	// Rootless podman needs the user namespace preserved for sane
	// bind-mount ownership.
	if e.Binary == "podman" {
		args = append(args, "--userns=keep-id")
	}

	args = append(args,
		"-e", fmt.Sprintf("UID=%d", os.Getuid()),
		"-e", fmt.Sprintf("GID=%d", os.Getgid()),
		"-e", "ENVPOD_WORKDIR="+projectDir,
	)

	// The project directory is always mounted at the same path so the
	// workdir policy holds on both sides of the boundary.
	args = append(args, "-v", projectDir+":"+projectDir)

	// $PWD in mount templates is anchored to the project directory so a
	// container recreated from a subdirectory gets the same mounts init
	// gave it.
	for _, vol := range p.Runtime.Volumes {
		mount := pathexp.Expand(vol.Host, projectDir) + ":" + pathexp.Expand(vol.Container, projectDir)
		if vol.ReadOnly {
			mount += ":ro"
		}
		args = append(args, "-v", mount)
	}

	for _, tmpfs := range p.Runtime.Tmpfs {
		mount := tmpfs.Path + ":size=" + tmpfs.Size
		if tmpfs.ReadOnly {
			mount += ",ro"
		}
		args = append(args, "--tmpfs", mount)
	}

	if p.Runtime.EnableGPU {
		args = append(args, "--gpus", p.Runtime.GPUDriver)
	}

	args = append(args, p.Runtime.ExtraArgs...)
	args = append(args, imageTag, "sleep", "infinity")

	out, err := exec.CommandContext(ctx, e.Binary, args...).CombinedOutput()
	if err != nil {
		return e.wrap("container create", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ContainerExists reports whether the container exists at all.
func (e *Engine) ContainerExists(ctx context.Context, containerName string) bool {
	return e.psMatch(ctx, containerName, true)
}

// ContainerRunning reports whether the container is currently running.
func (e *Engine) ContainerRunning(ctx context.Context, containerName string) bool {
	return e.psMatch(ctx, containerName, false)
}

func (e *Engine) psMatch(ctx context.Context, containerName string, all bool) bool {
	args := []string{"ps"}
	if all {
		args = append(args, "-a")
	}
	args = append(args,
		"--filter", "name=^"+containerName+"$",
		"--format", "{{.Names}}",
	)
	out, err := exec.CommandContext(ctx, e.Binary, args...).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == containerName
}

// Start starts a stopped container.
func (e *Engine) Start(ctx context.Context, containerName string) error {
	out, err := exec.CommandContext(ctx, e.Binary, "start", containerName).CombinedOutput()
	if err != nil {
		return e.wrap("container start", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Exec runs argv inside the container. Stdio is passed through live;
// the call blocks until the child exits or the context is canceled.
func (e *Engine) Exec(ctx context.Context, containerName, workdir string, argv []string, interactive bool) error {
	args := []string{"exec"}
	if interactive {
		args = append(args, "-it")
	}
	if workdir != "" {
		args = append(args, "-w", workdir)
	}
	args = append(args, containerName)
	args = append(args, argv...)

	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return e.wrap("command", err, "")
	}
	return nil
}

// Remove force-removes the container. This is only reached from the
// explicit reset flow.
func (e *Engine) Remove(ctx context.Context, containerName string) error {
	out, err := exec.CommandContext(ctx, e.Binary, "rm", "-f", containerName).CombinedOutput()
	if err != nil {
		return e.wrap("container remove", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (e *Engine) wrap(op string, err error, detail string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ProcessError{Op: e.Binary + " " + op, ExitCode: exitErr.ExitCode(), Detail: detail}
	}
	return fmt.Errorf("%s %s: %w", e.Binary, op, err)
}
