// Package content exposes the minimal view of a normalized content pack the
// replay core needs: identity metadata and a comparable digest. Everything
// else about a pack is opaque to this module.
package content

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// DigestVersion identifies the digest reduction in use.
const DigestVersion = 1

// Metadata identifies a content pack.
type Metadata struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// Digest fingerprints the exact pack definition a replay was recorded
// against.
type Digest struct {
	Version int    `json:"version"`
	Hash    string `json:"hash"`
}

// Equal reports whether two digests identify the same pack definition.
func (d Digest) Equal(other Digest) bool {
	return d.Version == other.Version && d.Hash == other.Hash
}

// Pack is the collaborator surface a runner compares replays against.
type Pack struct {
	Metadata Metadata `json:"metadata"`
	Digest   Digest   `json:"digest"`
}

// DigestValue reduces a normalized pack payload to a digest. The reduction is
// canonical JSON followed by xxhash64, so independently loaded copies of the
// same definitions always agree.
func DigestValue(normalized any) (Digest, error) {
	data, err := json.Marshal(normalized)
	if err != nil {
		return Digest{}, fmt.Errorf("digest pack payload: %w", err)
	}
	return Digest{
		Version: DigestVersion,
		Hash:    fmt.Sprintf("xxh64:%016x", xxhash.Sum64(data)),
	}, nil
}
