// Command envpod materializes declarative containerized development
// environments as persistent per-project containers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/envpod/envpod/internal/cli/build"
	"github.com/envpod/envpod/internal/cli/check"
	"github.com/envpod/envpod/internal/cli/initcmd"
	"github.com/envpod/envpod/internal/cli/profilecmd"
	"github.com/envpod/envpod/internal/cli/resetcmd"
	"github.com/envpod/envpod/internal/cli/runcmd"
	"github.com/envpod/envpod/internal/cli/self"
	"github.com/envpod/envpod/internal/core/paths"
)

// version is overridden at release time via -ldflags.
var version = "v0.1.0"

func main() {
	// Interrupts cancel the context, which terminates any child
	// engine process; state files stay consistent because every
	// persisted write is atomic.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "envpod",
		Usage:   "Reproducible containerized development environments",
		Version: version,
		Before: func(*cli.Context) error {
			return paths.EnsureDirs()
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				// Bare invocation runs the command table's default
				// entry in the project container.
				return runcmd.Invoke(c.Context, "", "", nil)
			}
			_ = cli.ShowAppHelp(c)
			return cli.Exit("", 1)
		},
		Commands: []*cli.Command{
			initcmd.NewCommand(version),
			build.NewCommand(version),
			check.NewCommand(version),
			runcmd.NewCommand(),
			resetcmd.NewCommand(),
			profilecmd.NewCommand(),
			self.NewCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
