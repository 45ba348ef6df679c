package bundle

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes of the load pipeline. All are
// terminal for the current load attempt; nothing is retried internally.
var (
	// ErrFileNotFound marks a missing bundle file or archive member.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedPlatform marks a host platform absent from the
	// manifest's platform map.
	ErrUnsupportedPlatform = errors.New("platform not supported by bundle")

	// ErrVariantNotFound marks a requested or default variant that the
	// platform entry cannot resolve.
	ErrVariantNotFound = errors.New("variant not found")

	// ErrChecksumMismatch marks a digest disagreement with the manifest.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrSignatureInvalid marks a well-formed but cryptographically invalid
	// signature, or a signature made with a different key.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrDestinationConflict marks an existing file at the extraction target.
	ErrDestinationConflict = errors.New("destination file already exists")

	// ErrNoPublicKey marks signature verification requested with no key in
	// the manifest and no caller override.
	ErrNoPublicKey = errors.New("no public key available for signature verification")

	// ErrNoBridge marks a bridge extraction from a bundle without bridges.
	ErrNoBridge = errors.New("bundle does not contain a bridge library")

	// ErrSchemaNotFound marks a schema name absent from the manifest.
	ErrSchemaNotFound = errors.New("schema not found in bundle")
)

// ManifestFieldError reports a missing required manifest field.
type ManifestFieldError struct {
	Field string
}

func (e *ManifestFieldError) Error() string {
	return fmt.Sprintf("manifest: missing required field: %s", e.Field)
}

// ParseError reports malformed manifest JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest: parse failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ChecksumError carries the compared digests for a checksum failure.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, actual %s", e.Path, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// EntryError names a missing archive member.
type EntryError struct {
	Path string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("file not found in bundle: %s", e.Path)
}

func (e *EntryError) Unwrap() error { return ErrFileNotFound }
