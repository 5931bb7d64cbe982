// Package check implements `envpod check`: report profile validity,
// lock state, and container drift. Everything reported here is
// advisory; check never rebuilds and never destroys.
package check

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/envpod/envpod/internal/cli/project"
	"github.com/envpod/envpod/internal/core/canonical"
	"github.com/envpod/envpod/internal/core/identity"
	"github.com/envpod/envpod/internal/core/lockfile"
	"github.com/envpod/envpod/internal/core/profile"
	"github.com/envpod/envpod/internal/core/registry"
	"github.com/envpod/envpod/internal/core/runtime"
)

// Options carries the collaborators of a check.
type Options struct {
	ProjectDir  string
	Profile     *profile.Profile
	ProfileName string
	Marker      *registry.Marker
	Store       *profile.Store
	Runtime     runtime.Runtime
	ToolVersion string
	Verbose     bool
	Strict      bool
	Out         io.Writer
}

// NewCommand returns the `check` CLI command.
func NewCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report profile, lock, and container status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show configuration details",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit non-zero when the lock state is not current",
			},
		},
		Action: func(c *cli.Context) error {
			env, err := project.Resolve("")
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			opts := Options{
				ProjectDir:  env.Dir,
				Profile:     env.Profile,
				ProfileName: env.ProfileName,
				Marker:      env.Marker,
				Store:       env.Store,
				Runtime:     runtime.NewEngine(env.Profile),
				ToolVersion: version,
				Verbose:     c.Bool("verbose"),
				Strict:      c.Bool("strict"),
				Out:         os.Stdout,
			}
			if err := Run(c.Context, opts); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}
			return nil
		},
	}
}

// Run executes the check flow and returns an error only for strict
// mode violations or I/O failures, never for staleness itself.
func Run(ctx context.Context, opts Options) error {
	ok := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(opts.Out, "%s profile %q is valid\n", ok("✓"), opts.ProfileName)

	if opts.Verbose {
		fmt.Fprintf(opts.Out, "  engine:     %s\n", opts.Profile.Runtime.Engine)
		fmt.Fprintf(opts.Out, "  base image: %s\n", opts.Profile.Container.BaseImage)
		fmt.Fprintf(opts.Out, "  user:       %s\n", opts.Profile.Container.User)
		if opts.Profile.Dependencies.NodeJS.Enabled {
			fmt.Fprintf(opts.Out, "  nodejs:     v%s (%s)\n",
				opts.Profile.Dependencies.NodeJS.Version, opts.Profile.Dependencies.NodeJS.Source)
		}
	}

	digest, err := canonical.Digest(opts.Profile)
	if err != nil {
		return err
	}

	rec, err := lockfile.Load(opts.ProjectDir)
	if err != nil {
		return err
	}

	state := lockfile.Reconcile(rec, digest, opts.ToolVersion)
	switch state {
	case lockfile.Current:
		fmt.Fprintf(opts.Out, "%s lock record matches the profile\n", ok("✓"))
	case lockfile.Stale:
		fmt.Fprintf(opts.Out, "%s profile changed since the last build; run 'envpod build'\n", warn("⚠"))
	default:
		fmt.Fprintf(opts.Out, "%s no lock record; run 'envpod build'\n", warn("⚠"))
	}

	if rec != nil && opts.Verbose {
		fmt.Fprintf(opts.Out, "  built:     %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(opts.Out, "  image tag: %s\n", rec.ImageTag)
		if rec.ImageID != "" {
			fmt.Fprintf(opts.Out, "  image id:  %s\n", rec.ImageID)
		}
	}

	imageTag := identity.ImageTag(opts.ProjectDir)
	if opts.Runtime.ImageExists(ctx, imageTag) {
		fmt.Fprintf(opts.Out, "%s image %s exists\n", ok("✓"), imageTag)
	} else {
		fmt.Fprintf(opts.Out, "%s image %s not found; run 'envpod build'\n", warn("⚠"), imageTag)
	}

	if opts.Marker == nil {
		fmt.Fprintf(opts.Out, "%s project not initialized; run 'envpod init'\n", warn("⚠"))
	} else {
		for _, name := range opts.Marker.Names() {
			_, cRec, err := opts.Marker.Get(name)
			if err != nil {
				continue
			}

			// Each container drifts against its own named profile, which
			// may differ from the active one in multi-container projects.
			live := opts.Profile
			if opts.Store != nil && cRec.Profile != opts.ProfileName {
				p, err := opts.Store.Load(cRec.Profile)
				if err != nil {
					fmt.Fprintf(opts.Out, "%s container %q: profile %q is missing; cannot check drift\n", warn("⚠"), name, cRec.Profile)
					continue
				}
				live = p
			}

			warning, drifted, err := registry.CheckDrift(cRec, live)
			if err != nil {
				return err
			}
			if drifted {
				fmt.Fprintf(opts.Out, "%s container %q: %s\n", warn("⚠"), name, warning)
			} else {
				fmt.Fprintf(opts.Out, "%s container %q matches its frozen profile\n", ok("✓"), name)
			}
		}
	}

	if opts.Strict && state != lockfile.Current {
		return fmt.Errorf("lock state is %s", state)
	}
	return nil
}
