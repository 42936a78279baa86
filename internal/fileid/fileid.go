// Package fileid derives stable document IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Prefix starts every document ID.
const Prefix = "doc:"

// hashLen is the number of hex characters kept from the path hash.
const hashLen = 16

// DocumentID returns a stable document ID for path. The path is cleaned first,
// so "/docs/a.txt" and "/docs/./a.txt" share an ID. Chunk IDs build on it, so the
// same file keeps the same chunk IDs across reloads.
func DocumentID(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return Prefix + hex.EncodeToString(hash[:])[:hashLen]
}
