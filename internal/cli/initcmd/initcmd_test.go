package initcmd_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envpod/envpod/internal/cli/initcmd"
	"github.com/envpod/envpod/internal/core/identity"
	"github.com/envpod/envpod/internal/core/profile"
	"github.com/envpod/envpod/internal/core/registry"
	"github.com/envpod/envpod/internal/core/runtime/runtimetest"
)

func options(t *testing.T, fake *runtimetest.Fake) initcmd.Options {
	t.Helper()
	dir := t.TempDir()
	return initcmd.Options{
		ProjectDir:  dir,
		Profile:     profile.Default(),
		ProfileName: "default",
		Runtime:     fake,
		BuildDir:    filepath.Join(dir, ".build"),
		ToolVersion: "v0.1.0",
		Out:         new(bytes.Buffer),
	}
}

func TestRun_CreatesContainerAndMarker(t *testing.T) {
	t.Parallel()
	fake := runtimetest.New()
	opts := options(t, fake)

	require.NoError(t, initcmd.Run(context.Background(), opts))

	// Image built and container created under the derived identity.
	require.Len(t, fake.BuildCalls, 1)
	require.Len(t, fake.CreateCalls, 1)
	wantName := identity.Container(opts.ProjectDir, "main")
	assert.Equal(t, wantName, fake.CreateCalls[0].ContainerName)
	assert.Equal(t, identity.ImageTag(opts.ProjectDir), fake.CreateCalls[0].ImageTag)
	assert.Equal(t, opts.ProjectDir, fake.CreateCalls[0].ProjectDir)

	// Marker registered with a frozen snapshot.
	m, err := registry.Load(opts.ProjectDir)
	require.NoError(t, err)
	name, rec, err := m.Get("")
	require.NoError(t, err)
	assert.Equal(t, "main", name)
	assert.Equal(t, wantName, rec.Identity)
	assert.Equal(t, "default", rec.Profile)
	assert.NotEmpty(t, rec.Digest)
	assert.Equal(t, opts.Profile.Container.BaseImage, rec.Frozen.Container.BaseImage)
}

func TestRun_InvalidProfileFailsBeforeSideEffects(t *testing.T) {
	t.Parallel()
	fake := runtimetest.New()
	opts := options(t, fake)
	opts.Profile.Runtime.Engine = "lxc"

	require.Error(t, initcmd.Run(context.Background(), opts))
	assert.Empty(t, fake.BuildCalls)
	assert.Empty(t, fake.CreateCalls)
	assert.False(t, registry.Exists(opts.ProjectDir))
}

func TestRun_DuplicateWithoutForceFails(t *testing.T) {
	t.Parallel()
	fake := runtimetest.New()
	opts := options(t, fake)

	require.NoError(t, initcmd.Run(context.Background(), opts))
	err := initcmd.Run(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
	assert.Len(t, fake.CreateCalls, 1)
}

func TestRun_ForceReplacesContainer(t *testing.T) {
	t.Parallel()
	fake := runtimetest.New()
	opts := options(t, fake)

	require.NoError(t, initcmd.Run(context.Background(), opts))
	opts.Force = true
	require.NoError(t, initcmd.Run(context.Background(), opts))

	wantName := identity.Container(opts.ProjectDir, "main")
	assert.Equal(t, []string{wantName}, fake.Removed)
	assert.Len(t, fake.CreateCalls, 2)
	assert.Len(t, fake.BuildCalls, 2, "force must rebuild the image")
}

func TestRun_SecondLogicalContainerSharesImage(t *testing.T) {
	t.Parallel()
	fake := runtimetest.New()
	opts := options(t, fake)

	require.NoError(t, initcmd.Run(context.Background(), opts))

	opts.LogicalName = "gpu"
	require.NoError(t, initcmd.Run(context.Background(), opts))

	// Image was already current, so only the first init built it.
	assert.Len(t, fake.BuildCalls, 1)
	require.Len(t, fake.CreateCalls, 2)
	assert.NotEqual(t, fake.CreateCalls[0].ContainerName, fake.CreateCalls[1].ContainerName)

	m, err := registry.Load(opts.ProjectDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpu", "main"}, m.Names())
	assert.Equal(t, "main", m.Default)
}

func TestRun_RecordSurvivesLaterProfileEdits(t *testing.T) {
	t.Parallel()
	fake := runtimetest.New()
	opts := options(t, fake)

	require.NoError(t, initcmd.Run(context.Background(), opts))

	// Mutating the profile after init must not reach the saved record.
	opts.Profile.Container.BaseImage = "alpine:3"

	m, err := registry.Load(opts.ProjectDir)
	require.NoError(t, err)
	_, rec, err := m.Get("main")
	require.NoError(t, err)
	assert.Equal(t, "ubuntu:24.04", rec.Frozen.Container.BaseImage)
}
