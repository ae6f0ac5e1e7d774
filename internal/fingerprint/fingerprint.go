// Package fingerprint computes content-addressed identities for documents.
//
// The fingerprint is a SHA-256 digest of the file's raw bytes. It is the
// dedup key: a file whose hash is already known to the store is skipped
// entirely, which makes re-scanning an unchanged corpus idempotent.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Hash returns the lowercase hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DocumentID derives the store identity for a document from its content
// hash. The hash already is the identity; this exists so the derivation
// has exactly one home.
func DocumentID(contentHash string) string {
	return contentHash
}

// ChunkID derives a stable chunk identity from the owning document and the
// chunk's zero-based order.
func ChunkID(documentID string, order int) string {
	return documentID + ":" + strconv.Itoa(order)
}
