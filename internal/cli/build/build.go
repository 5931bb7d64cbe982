// Package build implements the `envpod build` command: reconcile the
// profile digest against the lock record and rebuild the image when
// needed.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/envpod/envpod/internal/cli/project"
	"github.com/envpod/envpod/internal/core/canonical"
	"github.com/envpod/envpod/internal/core/generator"
	"github.com/envpod/envpod/internal/core/identity"
	"github.com/envpod/envpod/internal/core/lockfile"
	"github.com/envpod/envpod/internal/core/paths"
	"github.com/envpod/envpod/internal/core/profile"
	"github.com/envpod/envpod/internal/core/runtime"
)

// Options carries the explicit collaborators of a build so tests can
// run the flow against a temporary project and a fake runtime.
type Options struct {
	ProjectDir  string
	Profile     *profile.Profile
	Runtime     runtime.Runtime
	BuildDir    string
	ToolVersion string
	Force       bool
	NoLock      bool
	Out         io.Writer
}

// NewCommand returns the `build` CLI command.
func NewCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Build the container image from the active profile",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Rebuild even if the image is up to date",
			},
			&cli.BoolFlag{
				Name:  "no-lock",
				Usage: "Skip updating the lock file after a successful build",
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Profile to build (defaults to the project's active profile)",
			},
		},
		Action: func(c *cli.Context) error {
			env, err := project.Resolve(c.String("profile"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			opts := Options{
				ProjectDir:  env.Dir,
				Profile:     env.Profile,
				Runtime:     runtime.NewEngine(env.Profile),
				BuildDir:    paths.BuildDir(),
				ToolVersion: version,
				Force:       c.Bool("force"),
				NoLock:      c.Bool("no-lock"),
				Out:         os.Stdout,
			}
			if err := Run(c.Context, opts); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), runtime.ExitCode(err))
			}
			return nil
		},
	}
}

// Run executes the build flow. A build failure leaves any previous
// lock record untouched; the record is only rewritten after the
// runtime reports success.
func Run(ctx context.Context, opts Options) error {
	digest, err := canonical.Digest(opts.Profile)
	if err != nil {
		return err
	}

	rec, err := lockfile.Load(opts.ProjectDir)
	if err != nil {
		return err
	}

	imageTag := identity.ImageTag(opts.ProjectDir)
	state := lockfile.Reconcile(rec, digest, opts.ToolVersion)

	if !opts.Force && state == lockfile.Current && opts.Runtime.ImageExists(ctx, imageTag) {
		fmt.Fprintln(opts.Out, "Image is up to date. Use --force to rebuild anyway.")
		return nil
	}

	switch {
	case opts.Force:
		fmt.Fprintln(opts.Out, "Force rebuild requested.")
	case state == lockfile.NoLock:
		fmt.Fprintln(opts.Out, "No lock record found; building.")
	case state == lockfile.Stale:
		fmt.Fprintln(opts.Out, "Profile has changed since the last build; rebuilding.")
	default:
		fmt.Fprintln(opts.Out, "Image missing; rebuilding.")
	}

	recipe, err := generator.Render(opts.Profile)
	if err != nil {
		return err
	}
	if err := recipe.WriteTo(opts.BuildDir); err != nil {
		return err
	}

	imageID, err := opts.Runtime.Build(ctx, opts.BuildDir, imageTag)
	if err != nil {
		return err
	}

	if !opts.NoLock {
		newRec := &lockfile.Record{
			Digest:      digest,
			CreatedAt:   time.Now().UTC(),
			ImageTag:    imageTag,
			ImageID:     imageID,
			ToolVersion: opts.ToolVersion,
		}
		if err := lockfile.Save(opts.ProjectDir, newRec); err != nil {
			return err
		}
		fmt.Fprintf(opts.Out, "Updated %s\n", lockfile.Name)
	}

	fmt.Fprintf(opts.Out, "Built image %s (%s)\n", imageTag, imageID)
	return nil
}
