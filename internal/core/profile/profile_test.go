package profile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envpod/envpod/internal/core/command"
	"github.com/envpod/envpod/internal/core/profile"
)

func TestDefaultProfileIsValid(t *testing.T) {
	t.Parallel()
	p := profile.Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, "podman", p.Runtime.Engine)
	assert.Equal(t, "dev", p.Container.User)
}

func TestValidate_BadEngine(t *testing.T) {
	t.Parallel()
	p := profile.Default()
	p.Runtime.Engine = "containerd"

	err := p.Validate()
	var vErr *profile.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), "podman or docker")
}

func TestValidate_EmptyBaseImage(t *testing.T) {
	t.Parallel()
	p := profile.Default()
	p.Container.BaseImage = ""

	var vErr *profile.ValidationError
	require.ErrorAs(t, p.Validate(), &vErr)
}

func TestValidate_EmptyVolumePath(t *testing.T) {
	t.Parallel()
	p := profile.Default()
	p.Runtime.Volumes = append(p.Runtime.Volumes, profile.VolumeMount{Host: "", Container: "/x"})

	var vErr *profile.ValidationError
	require.ErrorAs(t, p.Validate(), &vErr)
}

func TestValidate_BadNodeSource(t *testing.T) {
	t.Parallel()
	p := profile.Default()
	p.Dependencies.NodeJS.Source = "homebrew"

	var vErr *profile.ValidationError
	require.ErrorAs(t, p.Validate(), &vErr)
}

func TestValidate_UnresolvableDefaultCommand(t *testing.T) {
	t.Parallel()
	p := profile.Default()
	p.Commands.Default = "ghost"

	var vErr *profile.ValidationError
	require.ErrorAs(t, p.Validate(), &vErr)
}

func TestValidate_CyclicDefaultCommand(t *testing.T) {
	t.Parallel()
	p := profile.Default()
	p.Commands.Default = "a"
	p.Commands.Entries["a"] = command.Spec{Command: "b"}
	p.Commands.Entries["b"] = command.Spec{Command: "a"}

	var vErr *profile.ValidationError
	require.ErrorAs(t, p.Validate(), &vErr)
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()
	content := `
[container]
base_image = "debian:12"
user = "worker"
home_dir = "/home/worker"
work_dir = "$PWD"

[runtime]
engine = "docker"
interactive = true

[[runtime.volumes]]
host = "$PWD"
container = "$PWD"

[environment]
CC = "clang"

[commands]
default = "shell"

[commands.entries.shell]
command = "bash"

[commands.entries.bash]
`
	p, err := profile.Parse([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "debian:12", p.Container.BaseImage)
	assert.Equal(t, "docker", p.Runtime.Engine)
	assert.Equal(t, "clang", p.Environment["CC"])
	assert.Equal(t, "bash", p.Commands.Entries["shell"].Command)
}

func TestParse_InvalidFailsBeforeUse(t *testing.T) {
	t.Parallel()
	content := `
[container]
base_image = "debian:12"
user = "worker"

[runtime]
engine = "lxc"

[commands]
default = "bash"

[commands.entries.bash]
`
	_, err := profile.Parse([]byte(content))
	var vErr *profile.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestClone_IsDeep(t *testing.T) {
	t.Parallel()
	p := profile.Default()
	c := p.Clone()

	p.Environment["NEW"] = "x"
	p.Runtime.Volumes[0].Host = "/mutated"
	p.Dependencies.Apt[0] = "mutated-pkg"
	p.Shell.Aliases["boom"] = "rm"
	p.Commands.Entries["extra"] = command.Spec{Args: "-x"}

	assert.NotContains(t, c.Environment, "NEW")
	assert.NotEqual(t, "/mutated", c.Runtime.Volumes[0].Host)
	assert.NotEqual(t, "mutated-pkg", c.Dependencies.Apt[0])
	assert.NotContains(t, c.Shell.Aliases, "boom")
	assert.NotContains(t, c.Commands.Entries, "extra")
}

func TestStore_SaveLoadList(t *testing.T) {
	t.Parallel()
	store := profile.NewStore(filepath.Join(t.TempDir(), "profiles"))

	require.NoError(t, store.EnsureDefault())
	require.NoError(t, store.Save("gpu", profile.Default()))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "gpu"}, names)

	p, err := store.Load("gpu")
	require.NoError(t, err)
	assert.NoError(t, p.Validate())
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()
	store := profile.NewStore(t.TempDir())

	_, err := store.Load("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStore_EnsureDefaultDoesNotOverwrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := profile.NewStore(dir)
	require.NoError(t, store.EnsureDefault())

	custom := []byte("# customized\n")
	original, err := os.ReadFile(store.Path("default"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path("default"), append(custom, original...), 0o644))

	require.NoError(t, store.EnsureDefault())
	data, err := os.ReadFile(store.Path("default"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# customized")
}
