// Package pathexp expands env-style placeholders in volume mount
// paths. Expansion happens only at container-creation time; digests
// always see the unexpanded template form.
package pathexp

import (
	"os"
)

// Expand replaces $PWD, $HOME, and ${VAR}/$VAR references in s. PWD
// resolves to pwd so mounts land in the same place no matter which
// subdirectory the expansion runs from; HOME resolves through the
// process itself rather than the environment so it is always defined.
// Unknown variables expand to the empty string, matching shell
// semantics.
func Expand(s, pwd string) string {
	return os.Expand(s, func(name string) string {
		switch name {
		case "PWD":
			if pwd != "" {
				return pwd
			}
			if wd, err := os.Getwd(); err == nil {
				return wd
			}
		case "HOME":
			if home, err := os.UserHomeDir(); err == nil {
				return home
			}
		}
		return os.Getenv(name)
	})
}
