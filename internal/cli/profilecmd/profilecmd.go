// Package profilecmd implements `envpod profile`: inspect the named
// profiles available to init.
package profilecmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/envpod/envpod/internal/core/canonical"
	"github.com/envpod/envpod/internal/core/paths"
	"github.com/envpod/envpod/internal/core/profile"
)

// NewCommand returns the `profile` CLI command group.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage environment profiles",
		Subcommands: []*cli.Command{
			listCommand(),
			showCommand(),
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List available profiles",
		Action: func(c *cli.Context) error {
			store := profile.NewStore(paths.ProfilesDir())
			if err := store.EnsureDefault(); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			names, err := store.List()
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			header := color.New(color.FgCyan, color.Bold).SprintFunc()
			fmt.Println(header("profiles:"))
			for _, name := range names {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a profile and its digest",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("Error: missing profile name argument.", 1)
			}
			name := c.Args().First()

			store := profile.NewStore(paths.ProfilesDir())
			p, err := store.Load(name)
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			digest, err := canonical.Digest(p)
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			data, err := os.ReadFile(store.Path(name))
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}

			dim := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s %s\n", dim("# digest:"), digest)
			fmt.Print(string(data))
			return nil
		},
	}
}
