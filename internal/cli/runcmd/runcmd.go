// Package runcmd implements `envpod run`: resolve a command table
// entry and execute it inside the project's persistent container.
package runcmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/envpod/envpod/internal/core/command"
	"github.com/envpod/envpod/internal/core/identity"
	"github.com/envpod/envpod/internal/core/paths"
	"github.com/envpod/envpod/internal/core/profile"
	"github.com/envpod/envpod/internal/core/registry"
	"github.com/envpod/envpod/internal/core/runtime"
)

// Options carries the collaborators of a run.
type Options struct {
	ProjectDir  string
	CallerDir   string
	LogicalName string
	Record      registry.Record
	LiveProfile *profile.Profile // nil when the source profile is gone
	Runtime     runtime.Runtime
	CommandName string // empty resolves the table default
	Args        []string
	Out         io.Writer
}

// NewCommand returns the `run` CLI command.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a configured command in the project container",
		ArgsUsage: "[command] [args...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "container",
				Aliases: []string{"c"},
				Usage:   "Logical container name within the project",
			},
		},
		Action: func(c *cli.Context) error {
			name := ""
			args := c.Args().Slice()
			if len(args) > 0 {
				name = args[0]
				args = args[1:]
			}
			return Invoke(c.Context, c.String("container"), name, args)
		},
	}
}

// Invoke wires the real environment and executes the run flow. It is
// shared with the application's default action (bare `envpod`).
func Invoke(ctx context.Context, logicalName, commandName string, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	marker, projectDir, err := registry.Find(cwd)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	logical, rec, err := marker.Get(logicalName)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	// The live profile is only consulted for the drift warning;
	// execution always follows the frozen snapshot, which is what the
	// container was actually built from.
	var live *profile.Profile
	store := profile.NewStore(paths.ProfilesDir())
	if p, err := store.Load(rec.Profile); err == nil {
		live = p
	}

	// Usage bookkeeping is best effort; it never blocks the run.
	if marker.Touch(logical, time.Now().UTC()) {
		_ = registry.Save(projectDir, marker)
	}

	opts := Options{
		ProjectDir:  projectDir,
		CallerDir:   cwd,
		LogicalName: logical,
		Record:      rec,
		LiveProfile: live,
		Runtime:     runtime.NewEngine(&rec.Frozen),
		CommandName: commandName,
		Args:        args,
		Out:         os.Stderr,
	}
	if err := Run(ctx, opts); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), runtime.ExitCode(err))
	}
	return nil
}

// Run executes the run flow: advisory drift check, command
// resolution, container liveness, then exec with inherited stdio.
func Run(ctx context.Context, opts Options) error {
	warn := color.New(color.FgYellow).SprintFunc()

	if opts.LiveProfile != nil {
		warning, drifted, err := registry.CheckDrift(opts.Record, opts.LiveProfile)
		if err != nil {
			return err
		}
		if drifted {
			fmt.Fprintf(opts.Out, "%s %s\n", warn("⚠"), warning)
		}
	}

	frozen := opts.Record.Frozen

	// Resolve before touching the runtime so resolution errors are
	// reported without side effects.
	var resolved *command.Resolved
	var err error
	if opts.CommandName == "" {
		resolved, err = frozen.Commands.ResolveDefault()
	} else {
		resolved, err = frozen.Commands.Resolve(opts.CommandName)
	}
	if err != nil {
		return err
	}

	containerName := opts.Record.Identity
	if !opts.Runtime.ContainerExists(ctx, containerName) {
		// The runtime container was removed outside envpod (e.g. a
		// prune). Recreate it from the frozen snapshot; the registry
		// record itself is never recreated implicitly.
		fmt.Fprintf(opts.Out, "%s container %s is gone; recreating it from its frozen profile\n", warn("⚠"), containerName)
		imageTag := identity.ImageTag(opts.ProjectDir)
		if err := opts.Runtime.Create(ctx, &frozen, containerName, imageTag, opts.ProjectDir); err != nil {
			return err
		}
	}
	if !opts.Runtime.ContainerRunning(ctx, containerName) {
		if err := opts.Runtime.Start(ctx, containerName); err != nil {
			return err
		}
	}

	workdir := opts.ProjectDir
	if resolved.Workdir() == command.WorkdirCaller {
		workdir = opts.CallerDir
	}

	return opts.Runtime.Exec(ctx, containerName, workdir, resolved.Argv(opts.Args), frozen.Runtime.Interactive)
}
