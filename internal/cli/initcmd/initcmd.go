// Package initcmd implements `envpod init`: create a persistent
// container for the project and register it with a frozen profile
// snapshot.
package initcmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/envpod/envpod/internal/cli/build"
	"github.com/envpod/envpod/internal/core/identity"
	"github.com/envpod/envpod/internal/core/paths"
	"github.com/envpod/envpod/internal/core/profile"
	"github.com/envpod/envpod/internal/core/registry"
	"github.com/envpod/envpod/internal/core/runtime"
)

// Options carries the collaborators of an init.
type Options struct {
	ProjectDir  string
	Profile     *profile.Profile
	ProfileName string
	LogicalName string
	Runtime     runtime.Runtime
	BuildDir    string
	ToolVersion string
	Force       bool
	Out         io.Writer
}

// NewCommand returns the `init` CLI command.
func NewCommand(version string) *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create a persistent container for this project",
		ArgsUsage: "[profile]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Replace an existing container with the same name",
			},
			&cli.StringFlag{
				Name:    "container",
				Aliases: []string{"c"},
				Usage:   "Logical container name within the project",
			},
		},
		Action: func(c *cli.Context) error {
			cwd, err := os.Getwd()
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			store := profile.NewStore(paths.ProfilesDir())
			if err := store.EnsureDefault(); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			profileName := "default"
			if c.NArg() > 0 {
				profileName = c.Args().First()
			}
			p, err := store.Load(profileName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			opts := Options{
				ProjectDir:  cwd,
				Profile:     p,
				ProfileName: profileName,
				LogicalName: c.String("container"),
				Runtime:     runtime.NewEngine(p),
				BuildDir:    paths.BuildDir(),
				ToolVersion: version,
				Force:       c.Bool("force"),
				Out:         os.Stdout,
			}
			if err := Run(c.Context, opts); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), runtime.ExitCode(err))
			}
			return nil
		},
	}
}

// Run executes the init flow. The registry record is written only
// after the container exists; all validation happens before any side
// effect.
func Run(ctx context.Context, opts Options) error {
	if err := opts.Profile.Validate(); err != nil {
		return err
	}

	var marker *registry.Marker
	if registry.Exists(opts.ProjectDir) {
		m, err := registry.Load(opts.ProjectDir)
		if err != nil {
			return err
		}
		marker = m
	} else {
		marker = registry.New()
	}

	logical := opts.LogicalName
	if logical == "" {
		logical = marker.Default
	}

	if marker.Has(logical) && !opts.Force {
		return fmt.Errorf("container %q already exists for this project; use --force to replace it", logical)
	}

	imageTag := identity.ImageTag(opts.ProjectDir)
	if opts.Force || !opts.Runtime.ImageExists(ctx, imageTag) {
		if err := build.Run(ctx, build.Options{
			ProjectDir:  opts.ProjectDir,
			Profile:     opts.Profile,
			Runtime:     opts.Runtime,
			BuildDir:    opts.BuildDir,
			ToolVersion: opts.ToolVersion,
			Force:       opts.Force,
			Out:         opts.Out,
		}); err != nil {
			return err
		}
	}

	containerName := identity.Container(opts.ProjectDir, logical)
	if opts.Runtime.ContainerExists(ctx, containerName) {
		if !opts.Force {
			return fmt.Errorf("runtime container %s already exists; use --force to replace it", containerName)
		}
		if err := opts.Runtime.Remove(ctx, containerName); err != nil {
			return err
		}
	}

	fmt.Fprintf(opts.Out, "Creating container %s (profile %q)\n", containerName, opts.ProfileName)
	if err := opts.Runtime.Create(ctx, opts.Profile, containerName, imageTag, opts.ProjectDir); err != nil {
		return err
	}

	rec, err := registry.Freeze(containerName, opts.ProfileName, opts.Profile)
	if err != nil {
		return err
	}
	marker.Set(logical, rec)
	if err := registry.Save(opts.ProjectDir, marker); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(opts.Out, "Initialized container %q for %s\n", logical, opts.ProjectDir)
	fmt.Fprintln(opts.Out, "Run 'envpod run' to start working.")
	return nil
}
