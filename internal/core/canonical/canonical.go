// Package canonical turns a profile into a deterministic byte form and
// a cryptographic digest. Two profiles digest equal iff their canonical
// encodings are byte-identical; key order, whitespace, and comments in
// the source TOML never reach the digest because the encoding is
// regenerated from the typed model.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/envpod/envpod/internal/core/profile"
)

// Encode renders the canonical byte form of a profile: a TOML
// re-encoding of the typed model. Map keys are emitted sorted, slices
// keep declared order (install and mount order is semantic), and
// scalar fields normalize to a single textual representation.
// Host-path placeholders like $PWD stay unexpanded so the encoding is
// portable across machines.
func Encode(p *profile.Profile) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(p); err != nil {
		return nil, fmt.Errorf("failed to canonicalize profile: %w", err)
	}
	return buf.Bytes(), nil
}

// Digest computes the profile digest in the form "sha256:<64 hex>".
// The digest covers every field of the model; non-semantic data
// (timestamps, file layout) lives outside the model and is never
// hashed.
func Digest(p *profile.Profile) (string, error) {
	data, err := Encode(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
