// Package minisign implements the minisign signature format used to sign
// plugin bundles and their manifests.
//
// # Wire Format
//
// Public keys are base64-encoded 42-byte blobs:
//
//	2 bytes  algorithm tag, must be "Ed"
//	8 bytes  key ID
//	32 bytes Ed25519 public key
//
// Signature files are multi-line text. The first line is an untrusted
// comment; the second line is a base64-encoded 74-byte blob:
//
//	2 bytes  algorithm tag, "ED" (prehashed) or "Ed" (legacy)
//	8 bytes  key ID
//	64 bytes Ed25519 signature
//
// A prehashed signature signs BLAKE2b-512(data) rather than the raw data.
// Lines after the second (trusted comment, global signature) are preserved
// by signing but not consumed by verification.
//
// # Outcomes
//
// Verification distinguishes three outcomes and callers depend on the split:
//   - structurally invalid key or signature material: *KeyFormatError or
//     *SignatureFormatError
//   - key ID mismatch or cryptographically invalid signature: false, nil
//   - valid signature: true, nil
package minisign
