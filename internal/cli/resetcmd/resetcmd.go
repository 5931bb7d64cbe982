// Package resetcmd implements `envpod reset`: the only path that
// destroys containers, and it is always explicit.
package resetcmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/envpod/envpod/internal/core/registry"
	"github.com/envpod/envpod/internal/core/runtime"
)

// RuntimeFor builds the runtime collaborator for a record's frozen
// profile. Tests substitute a fake.
type RuntimeFor func(rec registry.Record) runtime.Runtime

// Options carries the collaborators of a reset.
type Options struct {
	ProjectDir  string
	Marker      *registry.Marker
	LogicalName string // ignored when All is set
	All         bool
	RuntimeFor  RuntimeFor
	Out         io.Writer
}

// NewCommand returns the `reset` CLI command.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Delete the project's container(s) and their registry records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "container",
				Aliases: []string{"c"},
				Usage:   "Logical container name to reset",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Reset every container in the project",
			},
		},
		Action: func(c *cli.Context) error {
			cwd, err := os.Getwd()
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}
			marker, projectDir, err := registry.Find(cwd)
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			opts := Options{
				ProjectDir:  projectDir,
				Marker:      marker,
				LogicalName: c.String("container"),
				All:         c.Bool("all"),
				RuntimeFor: func(rec registry.Record) runtime.Runtime {
					return runtime.NewEngine(&rec.Frozen)
				},
				Out: os.Stdout,
			}
			if err := Run(c.Context, opts); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}
			return nil
		},
	}
}

// Run deletes the targeted containers and their records. The marker is
// rewritten atomically after each successful removal so an interrupt
// cannot orphan a record for a container that no longer exists.
func Run(ctx context.Context, opts Options) error {
	var targets []string
	if opts.All {
		targets = opts.Marker.Names()
		if len(targets) == 0 {
			fmt.Fprintln(opts.Out, "No containers to reset.")
			return nil
		}
	} else {
		name, _, err := opts.Marker.Get(opts.LogicalName)
		if err != nil {
			return err
		}
		targets = []string{name}
	}

	for _, name := range targets {
		_, rec, err := opts.Marker.Get(name)
		if err != nil {
			return err
		}

		rt := opts.RuntimeFor(rec)
		if rt.ContainerExists(ctx, rec.Identity) {
			if err := rt.Remove(ctx, rec.Identity); err != nil {
				return err
			}
		}

		opts.Marker.Remove(name)
		if err := registry.Save(opts.ProjectDir, opts.Marker); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(opts.Out, "Removed container %q (%s)\n", name, rec.Identity)
	}
	return nil
}
