// Package command holds the profile command table and resolves invoked
// command names through alias chains into concrete executables.
package command

import (
	"fmt"
	"strings"
)

// MaxChainDepth bounds alias-chain resolution. A chain longer than this
// is treated as a misconfiguration even if it is technically acyclic.
const MaxChainDepth = 10

// shellNames are the well-known interactive shells. A command resolving
// to one of these (or explicitly flagged with shell = true) executes in
// the caller's working directory instead of the project directory.
var shellNames = map[string]bool{
	"bash": true,
	"zsh":  true,
	"sh":   true,
	"fish": true,
}

// Spec is a single command table entry. An entry is either a direct
// definition (the entry's own name is the executable) or an alias
// (Command names another entry to resolve instead).
type Spec struct {
	// Install is an optional verbatim build-recipe fragment that
	// installs the command into the image.
	Install string `toml:"install,omitempty"`

	// Args is the default argument string, prepended to caller args.
	Args string `toml:"args,omitempty"`

	// Command, when set, makes this entry an alias for another entry.
	Command string `toml:"command,omitempty"`

	// Shell forces the caller-cwd working directory policy for
	// commands that are not in the well-known shell set.
	Shell bool `toml:"shell,omitempty"`
}

// IsAlias reports whether the entry references another entry.
func (s Spec) IsAlias() bool {
	return s.Command != ""
}

// Config is the command table section of a profile.
type Config struct {
	// Default names the entry used when no command is given.
	Default string `toml:"default"`

	// Entries maps command names to their definitions. Names are
	// unique by construction (TOML table keys).
	Entries map[string]Spec `toml:"entries"`
}

// WorkdirPolicy selects where a resolved command executes.
type WorkdirPolicy int

const (
	// WorkdirProject runs the command in the project directory, so
	// project-aware tooling sees project files by default.
	WorkdirProject WorkdirPolicy = iota

	// WorkdirCaller runs the command in the caller's current
	// directory, so interactive shells respect the user's navigation.
	WorkdirCaller
)

// Resolved is the terminal result of following an alias chain.
type Resolved struct {
	// Name is the terminal entry name, which is also the executable.
	Name string

	// Spec is the terminal (direct) definition.
	Spec Spec

	// Chain records every name visited during resolution, starting
	// with the invoked name and ending with Name.
	Chain []string
}

// UnknownError reports a lookup of a name with no table entry.
type UnknownError struct {
	Name  string
	Chain []string
}

func (e *UnknownError) Error() string {
	if len(e.Chain) > 1 {
		return fmt.Sprintf("unknown command %q (via %s)", e.Name, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("unknown command %q", e.Name)
}

// CycleError reports an alias chain that revisits a name.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("command alias cycle: %s", strings.Join(e.Chain, " -> "))
}

// DepthError reports an alias chain longer than MaxChainDepth.
type DepthError struct {
	Chain []string
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("command alias chain exceeds %d links: %s", MaxChainDepth, strings.Join(e.Chain, " -> "))
}

// Resolve follows alias references from name until it reaches a direct
// definition. Resolution is iterative with an explicit visited list so
// cycles and runaway chains fail with a reportable chain instead of
// recursing.
func (c Config) Resolve(name string) (*Resolved, error) {
	current := name
	chain := []string{current}

	for {
		spec, ok := c.Entries[current]
		if !ok {
			return nil, &UnknownError{Name: current, Chain: chain}
		}
		if !spec.IsAlias() {
			return &Resolved{Name: current, Spec: spec, Chain: chain}, nil
		}

		target := spec.Command
		for _, seen := range chain {
			if seen == target {
				return nil, &CycleError{Chain: append(chain, target)}
			}
		}
		chain = append(chain, target)
		if len(chain) > MaxChainDepth {
			return nil, &DepthError{Chain: chain}
		}
		current = target
	}
}

// ResolveDefault resolves the table's default entry.
func (c Config) ResolveDefault() (*Resolved, error) {
	if c.Default == "" {
		return nil, &UnknownError{Name: "", Chain: []string{""}}
	}
	return c.Resolve(c.Default)
}

// Workdir returns the working-directory policy for the resolved
// command.
func (r *Resolved) Workdir() WorkdirPolicy {
	if r.Spec.Shell || shellNames[r.Name] {
		return WorkdirCaller
	}
	return WorkdirProject
}

// Argv builds the full argument vector: executable, configured default
// arguments, then caller arguments. Defaults are never overridden, only
// appended to.
func (r *Resolved) Argv(callerArgs []string) []string {
	argv := []string{r.Name}
	argv = append(argv, strings.Fields(r.Spec.Args)...)
	argv = append(argv, callerArgs...)
	return argv
}
