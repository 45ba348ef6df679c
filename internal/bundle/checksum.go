package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// checksumPrefix is the optional scheme tag on manifest checksums.
const checksumPrefix = "sha256:"

// ComputeChecksum returns the lowercase hex SHA-256 digest of data, without
// the "sha256:" prefix.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum compares the SHA-256 of data against an expected checksum
// string. The expected value may carry a "sha256:" prefix (any case); the
// digest comparison itself is case-insensitive.
func VerifyChecksum(data []byte, expected string) bool {
	trimmed := expected
	if len(trimmed) >= len(checksumPrefix) && strings.EqualFold(trimmed[:len(checksumPrefix)], checksumPrefix) {
		trimmed = trimmed[len(checksumPrefix):]
	}
	return strings.EqualFold(ComputeChecksum(data), trimmed)
}

// verifyEntryChecksum wraps VerifyChecksum with the typed error the
// extraction pipeline reports.
func verifyEntryChecksum(data []byte, expected, path string) error {
	if VerifyChecksum(data, expected) {
		return nil
	}
	return &ChecksumError{Path: path, Expected: expected, Actual: ComputeChecksum(data)}
}
