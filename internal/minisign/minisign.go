package minisign

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Minisign blob layout constants.
const (
	algorithmTagSize = 2
	keyIDSize        = 8

	rawPublicKeySize = algorithmTagSize + keyIDSize + ed25519.PublicKeySize
	rawSignatureSize = algorithmTagSize + keyIDSize + ed25519.SignatureSize
)

var (
	// tagLegacy ("Ed") marks public keys and legacy non-prehashed signatures.
	tagLegacy = []byte{'E', 'd'}
	// tagPrehashed ("ED") marks signatures over BLAKE2b-512(data).
	tagPrehashed = []byte{'E', 'D'}
)

// KeyFormatError reports structurally invalid public key material.
type KeyFormatError struct {
	Reason string
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("invalid minisign public key: %s", e.Reason)
}

// SignatureFormatError reports structurally invalid signature material.
type SignatureFormatError struct {
	Reason string
}

func (e *SignatureFormatError) Error() string {
	return fmt.Sprintf("invalid minisign signature: %s", e.Reason)
}

// PublicKey is a parsed minisign public key.
type PublicKey struct {
	KeyID [keyIDSize]byte
	Key   ed25519.PublicKey
}

// ParsePublicKey decodes a base64 minisign public key.
func ParsePublicKey(encoded string) (*PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, &KeyFormatError{Reason: fmt.Sprintf("base64 decode: %v", err)}
	}

	if len(decoded) != rawPublicKeySize {
		return nil, &KeyFormatError{
			Reason: fmt.Sprintf("length mismatch: expected %d bytes, got %d", rawPublicKeySize, len(decoded)),
		}
	}

	if !bytes.Equal(decoded[:algorithmTagSize], tagLegacy) {
		return nil, &KeyFormatError{
			Reason: fmt.Sprintf("algorithm tag: expected %q, got %q", tagLegacy, decoded[:algorithmTagSize]),
		}
	}

	pk := &PublicKey{
		Key: ed25519.PublicKey(append([]byte(nil), decoded[algorithmTagSize+keyIDSize:]...)),
	}
	copy(pk.KeyID[:], decoded[algorithmTagSize:algorithmTagSize+keyIDSize])

	return pk, nil
}

// String returns the base64 wire encoding of the public key.
func (pk *PublicKey) String() string {
	raw := make([]byte, 0, rawPublicKeySize)
	raw = append(raw, tagLegacy...)
	raw = append(raw, pk.KeyID[:]...)
	raw = append(raw, pk.Key...)
	return base64.StdEncoding.EncodeToString(raw)
}

// Signature is a parsed minisign signature block.
type Signature struct {
	UntrustedComment string
	KeyID            [keyIDSize]byte
	Signature        [ed25519.SignatureSize]byte

	// Prehashed signatures sign BLAKE2b-512(data) instead of the raw data.
	Prehashed bool
}

// ParseSignature decodes a minisign signature block. Only the first two
// lines are consumed: the untrusted comment and the signature itself.
func ParseSignature(block string) (*Signature, error) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	if len(lines) < 2 {
		return nil, &SignatureFormatError{
			Reason: fmt.Sprintf("expected at least 2 lines, got %d", len(lines)),
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, &SignatureFormatError{Reason: fmt.Sprintf("base64 decode: %v", err)}
	}

	if len(decoded) != rawSignatureSize {
		return nil, &SignatureFormatError{
			Reason: fmt.Sprintf("length mismatch: expected %d bytes, got %d", rawSignatureSize, len(decoded)),
		}
	}

	sig := &Signature{
		UntrustedComment: strings.TrimSpace(lines[0]),
	}

	tag := decoded[:algorithmTagSize]
	switch {
	case bytes.Equal(tag, tagPrehashed):
		sig.Prehashed = true
	case bytes.Equal(tag, tagLegacy):
		sig.Prehashed = false
	default:
		return nil, &SignatureFormatError{
			Reason: fmt.Sprintf("algorithm tag: expected %q or %q, got %q", tagPrehashed, tagLegacy, tag),
		}
	}

	copy(sig.KeyID[:], decoded[algorithmTagSize:algorithmTagSize+keyIDSize])
	copy(sig.Signature[:], decoded[algorithmTagSize+keyIDSize:])

	return sig, nil
}

// Verify checks a signature block over data with the given public key.
//
// Malformed signature material returns a *SignatureFormatError. A key ID
// mismatch or a well-formed but cryptographically invalid signature returns
// false with a nil error; these are expected negative outcomes, not bugs.
func Verify(data []byte, signatureBlock string, pk *PublicKey) (bool, error) {
	sig, err := ParseSignature(signatureBlock)
	if err != nil {
		return false, err
	}

	return VerifyParsed(data, sig, pk), nil
}

// VerifyParsed checks an already-parsed signature over data.
func VerifyParsed(data []byte, sig *Signature, pk *PublicKey) bool {
	if sig.KeyID != pk.KeyID {
		return false
	}

	message := data
	if sig.Prehashed {
		digest := blake2b.Sum512(data)
		message = digest[:]
	}

	return ed25519.Verify(pk.Key, message, sig.Signature[:])
}
