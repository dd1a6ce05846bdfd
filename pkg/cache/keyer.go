package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key prefixes name the kind of value stored under a key.
const (
	prefixPlacement = "placement"
	prefixArtifact  = "artifact"
)

// Keyer builds cache keys. Implementations must be deterministic: equal
// inputs give equal keys.
type Keyer interface {
	// PlacementKey identifies the result of running a pipeline on a netlist.
	PlacementKey(netlistHash string, opts PlacementKeyOpts) string
	// ArtifactKey identifies a rendered view of a placement.
	ArtifactKey(placementHash string, opts ArtifactKeyOpts) string
}

// PlacementKeyOpts holds the inputs that change a placement result.
type PlacementKeyOpts struct {
	Stages []string `json:"stages"`
	Seed   uint64   `json:"seed"`
	// Config is the canonical encoding of the stage parameters.
	Config string `json:"config"`
	// Initial hashes a caller-supplied starting placement, if any.
	Initial string `json:"initial,omitempty"`
}

// ArtifactKeyOpts holds the inputs that change a rendered artifact.
type ArtifactKeyOpts struct {
	Kind   string  `json:"kind"`
	Format string  `json:"format"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Nets   bool    `json:"nets"`
}

// DefaultKeyer builds "type:sha256" keys from JSON-encoded inputs.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// PlacementKey implements Keyer.
func (DefaultKeyer) PlacementKey(netlistHash string, opts PlacementKeyOpts) string {
	return hashKey(prefixPlacement, netlistHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(placementHash string, opts ArtifactKeyOpts) string {
	return hashKey(prefixArtifact, placementHash, opts)
}

var _ Keyer = DefaultKeyer{}

// Hash returns the hex SHA-256 digest of data. Netlists are hashed in their
// canonical text form so that formatting differences in the input file do
// not split cache entries.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashJSON hashes the JSON encoding of v. Placements are hashed this way so
// that the CLI and the runner derive the same artifact keys.
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Hash(data), nil
}

// hashKey joins prefix and the digest of the JSON-encoded parts. The parts
// are plain strings and key option structs, which always encode.
func hashKey(prefix string, parts ...any) string {
	sum, _ := HashJSON(parts)
	return prefix + ":" + sum
}
