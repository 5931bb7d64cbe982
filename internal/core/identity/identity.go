// Package identity derives stable names for per-project containers and
// images. Identities are pure functions of their inputs so repeated
// invocations on the same machine always address the same container.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// fragmentLen is the number of hex characters kept from the hash.
// 48 bits comfortably avoids collisions within a single host's
// container namespace while keeping names readable.
const fragmentLen = 12

// Container derives the runtime container name for a project path and
// logical container name. The project path must be absolute so the
// identity does not depend on the caller's working directory.
func Container(projectPath, logicalName string) string {
	return "envpod-" + fragment(projectPath+"\x00"+logicalName)
}

// ImageTag derives the per-project image tag.
func ImageTag(projectPath string) string {
	return "envpod-" + fragment(projectPath) + ":latest"
}

func fragment(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:fragmentLen]
}
