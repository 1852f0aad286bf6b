// Package checksum hashes file contents for change detection.
package checksum

import "crypto/sha256"

// Digest is the SHA-256 hash of a file's content.
type Digest [sha256.Size]byte

// Of returns the digest of data.
func Of(data []byte) Digest {
	return sha256.Sum256(data)
}
