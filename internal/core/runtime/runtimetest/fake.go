// Package runtimetest provides an in-memory Runtime for CLI flow
// tests, so no container engine is needed to exercise the state
// machinery around builds, init, run, and reset.
package runtimetest

import (
	"context"

	"github.com/envpod/envpod/internal/core/profile"
	"github.com/envpod/envpod/internal/core/runtime"
)

// BuildCall records one Build invocation.
type BuildCall struct {
	Dir      string
	ImageTag string
}

// CreateCall records one Create invocation.
type CreateCall struct {
	ContainerName string
	ImageTag      string
	ProjectDir    string
}

// ExecCall records one Exec invocation.
type ExecCall struct {
	ContainerName string
	Workdir       string
	Argv          []string
	Interactive   bool
}

// Fake is an in-memory Runtime. The zero value is usable.
type Fake struct {
	Images     map[string]bool
	Containers map[string]bool
	Running    map[string]bool

	BuildErr error
	ExecErr  error

	BuildCalls  []BuildCall
	CreateCalls []CreateCall
	ExecCalls   []ExecCall
	Removed     []string
}

var _ runtime.Runtime = (*Fake)(nil)

// New returns an empty fake runtime.
func New() *Fake {
	return &Fake{
		Images:     map[string]bool{},
		Containers: map[string]bool{},
		Running:    map[string]bool{},
	}
}

// Build records the call and registers the image unless BuildErr is
// set.
func (f *Fake) Build(_ context.Context, dir, imageTag string) (string, error) {
	f.BuildCalls = append(f.BuildCalls, BuildCall{Dir: dir, ImageTag: imageTag})
	if f.BuildErr != nil {
		return "", f.BuildErr
	}
	f.Images[imageTag] = true
	return "fakeimage123", nil
}

// ImageExists reports whether the tag was registered.
func (f *Fake) ImageExists(_ context.Context, imageTag string) bool {
	return f.Images[imageTag]
}

// Create records the call and registers the container.
func (f *Fake) Create(_ context.Context, _ *profile.Profile, containerName, imageTag, projectDir string) error {
	f.CreateCalls = append(f.CreateCalls, CreateCall{
		ContainerName: containerName,
		ImageTag:      imageTag,
		ProjectDir:    projectDir,
	})
	f.Containers[containerName] = true
	return nil
}

// ContainerExists reports whether the container was registered.
func (f *Fake) ContainerExists(_ context.Context, containerName string) bool {
	return f.Containers[containerName]
}

// ContainerRunning reports whether the container was started.
func (f *Fake) ContainerRunning(_ context.Context, containerName string) bool {
	return f.Running[containerName]
}

// Start marks the container running.
func (f *Fake) Start(_ context.Context, containerName string) error {
	f.Running[containerName] = true
	return nil
}

// Exec records the call and returns ExecErr.
func (f *Fake) Exec(_ context.Context, containerName, workdir string, argv []string, interactive bool) error {
	f.ExecCalls = append(f.ExecCalls, ExecCall{
		ContainerName: containerName,
		Workdir:       workdir,
		Argv:          argv,
		Interactive:   interactive,
	})
	return f.ExecErr
}

// Remove unregisters the container.
func (f *Fake) Remove(_ context.Context, containerName string) error {
	delete(f.Containers, containerName)
	delete(f.Running, containerName)
	f.Removed = append(f.Removed, containerName)
	return nil
}
