package command_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envpod/envpod/internal/core/command"
)

func TestResolve_Direct(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Default: "bash",
		Entries: map[string]command.Spec{
			"bash": {},
		},
	}

	resolved, err := cfg.Resolve("bash")
	require.NoError(t, err)
	assert.Equal(t, "bash", resolved.Name)
	assert.Equal(t, []string{"bash"}, resolved.Chain)
}

func TestResolve_AliasChain(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Default: "shell",
		Entries: map[string]command.Spec{
			"shell": {Command: "bash"},
			"bash":  {},
		},
	}

	resolved, err := cfg.Resolve("shell")
	require.NoError(t, err)
	assert.Equal(t, "bash", resolved.Name)
	assert.Equal(t, []string{"shell", "bash"}, resolved.Chain)
}

func TestResolve_Unknown(t *testing.T) {
	t.Parallel()
	cfg := command.Config{Entries: map[string]command.Spec{}}

	_, err := cfg.Resolve("nope")
	var unknownErr *command.UnknownError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nope", unknownErr.Name)
}

func TestResolve_UnknownViaAlias(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Entries: map[string]command.Spec{
			"dev": {Command: "missing"},
		},
	}

	_, err := cfg.Resolve("dev")
	var unknownErr *command.UnknownError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "missing", unknownErr.Name)
	assert.Equal(t, []string{"dev", "missing"}, unknownErr.Chain)
}

func TestResolve_Cycle(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Entries: map[string]command.Spec{
			"a": {Command: "b"},
			"b": {Command: "c"},
			"c": {Command: "a"},
		},
	}

	_, err := cfg.Resolve("a")
	var cycleErr *command.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycleErr.Chain)
}

func TestResolve_DepthExceeded(t *testing.T) {
	t.Parallel()
	// An acyclic chain of 11 links: c0 -> c1 -> ... -> c10.
	entries := map[string]command.Spec{"c10": {}}
	for i := 0; i < 10; i++ {
		entries[fmt.Sprintf("c%d", i)] = command.Spec{Command: fmt.Sprintf("c%d", i+1)}
	}
	cfg := command.Config{Entries: entries}

	_, err := cfg.Resolve("c0")
	var depthErr *command.DepthError
	require.ErrorAs(t, err, &depthErr)
	assert.Greater(t, len(depthErr.Chain), command.MaxChainDepth)
}

func TestResolve_MaxDepthChainSucceeds(t *testing.T) {
	t.Parallel()
	// Exactly 10 visited names is allowed.
	entries := map[string]command.Spec{"c9": {}}
	for i := 0; i < 9; i++ {
		entries[fmt.Sprintf("c%d", i)] = command.Spec{Command: fmt.Sprintf("c%d", i+1)}
	}
	cfg := command.Config{Entries: entries}

	resolved, err := cfg.Resolve("c0")
	require.NoError(t, err)
	assert.Equal(t, "c9", resolved.Name)
	assert.Len(t, resolved.Chain, 10)
}

func TestWorkdir_ShellGetsCallerDir(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Entries: map[string]command.Spec{
			"shell": {Command: "bash"},
			"bash":  {},
		},
	}

	resolved, err := cfg.Resolve("shell")
	require.NoError(t, err)
	assert.Equal(t, command.WorkdirCaller, resolved.Workdir())
}

func TestWorkdir_ToolGetsProjectDir(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Entries: map[string]command.Spec{
			"lint": {Args: "--fix"},
		},
	}

	resolved, err := cfg.Resolve("lint")
	require.NoError(t, err)
	assert.Equal(t, command.WorkdirProject, resolved.Workdir())
}

func TestWorkdir_ExplicitShellFlag(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Entries: map[string]command.Spec{
			"repl": {Shell: true},
		},
	}

	resolved, err := cfg.Resolve("repl")
	require.NoError(t, err)
	assert.Equal(t, command.WorkdirCaller, resolved.Workdir())
}

func TestArgv_DefaultsThenCallerArgs(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Entries: map[string]command.Spec{
			"test": {Args: "--verbose --color"},
		},
	}

	resolved, err := cfg.Resolve("test")
	require.NoError(t, err)

	argv := resolved.Argv([]string{"./pkg", "-run", "TestFoo"})
	assert.Equal(t, []string{"test", "--verbose", "--color", "./pkg", "-run", "TestFoo"}, argv)
}

func TestArgv_NoDefaults(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Entries: map[string]command.Spec{
			"bash": {},
		},
	}

	resolved, err := cfg.Resolve("bash")
	require.NoError(t, err)
	assert.Equal(t, []string{"bash"}, resolved.Argv(nil))
}

func TestResolveDefault(t *testing.T) {
	t.Parallel()
	cfg := command.Config{
		Default: "shell",
		Entries: map[string]command.Spec{
			"shell": {Command: "bash"},
			"bash":  {},
		},
	}

	resolved, err := cfg.ResolveDefault()
	require.NoError(t, err)
	assert.Equal(t, "bash", resolved.Name)
}

func TestResolveDefault_Empty(t *testing.T) {
	t.Parallel()
	cfg := command.Config{Entries: map[string]command.Spec{}}

	_, err := cfg.ResolveDefault()
	require.Error(t, err)
}
