package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalJSON marshals v with sorted map keys (Go's encoding/json
// already sorts map keys on marshal) and no insignificant whitespace,
// giving a stable byte representation for hashing. Shared with
// runledger's content-addressing.
func CanonicalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// IntegrityHash returns the hex SHA-256 digest of body's canonical
// JSON form. Recomputing this hash over the same body always
// reproduces the stored value.
func IntegrityHash(body Descriptor) (string, error) {
	canonical, err := CanonicalJSON(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ContentID derives a content id ("cid") from a version's integrity
// hash. A real IPFS CID would be multihash/multibase-encoded; this
// hex-prefixed form is the in-repo stand-in that Pipeline passes to
// the pinning composite and records on each version.
func ContentID(integrityHash string) string {
	return "bafy" + integrityHash[:32]
}
