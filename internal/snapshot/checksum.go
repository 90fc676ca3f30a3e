package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// checksumDomain mirrors Snapshot minus CapturedAt. Capture wall-clock time
// is excluded so two independent runs reaching the same logical state always
// produce the same checksum.
type checksumDomain struct {
	Version    int         `json:"version"`
	Runtime    RuntimeMeta `json:"runtime"`
	Resources  any         `json:"resourceState"`
	Production any         `json:"productionState"`
	Automation any         `json:"automationState"`
	Transforms any         `json:"transformState"`
	Entities   any         `json:"entityState"`
	PRD        any         `json:"prdState"`
}

// Checksum reduces the snapshot to a short comparable digest: canonical JSON
// (encoding/json emits map keys in sorted order) hashed with xxhash64. Equal
// snapshots always produce equal checksums; any semantic difference changes
// the checksum.
func Checksum(s Snapshot) (string, error) {
	domain := checksumDomain{
		Version:    s.Version,
		Runtime:    s.Runtime,
		Resources:  s.Resources,
		Production: s.Production,
		Automation: s.Automation,
		Transforms: s.Transforms,
		Entities:   s.Entities,
		PRD:        s.PRD,
	}
	data, err := json.Marshal(domain)
	if err != nil {
		return "", fmt.Errorf("serialize snapshot for checksum: %w", err)
	}
	return fmt.Sprintf("xxh64:%016x", xxhash.Sum64(data)), nil
}
