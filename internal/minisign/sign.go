package minisign

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// PrivateKey is a minisign signing key. The secret key file format mirrors a
// signature block: an untrusted comment line followed by the base64 of
// tag + key ID + Ed25519 private key.
type PrivateKey struct {
	KeyID [keyIDSize]byte
	Key   ed25519.PrivateKey
}

const rawPrivateKeySize = algorithmTagSize + keyIDSize + ed25519.PrivateKeySize

// GenerateKey creates a fresh Ed25519 keypair with a random 8-byte key ID.
func GenerateKey() (*PublicKey, *PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ed25519 key: %w", err)
	}

	var keyID [keyIDSize]byte
	if _, err := rand.Read(keyID[:]); err != nil {
		return nil, nil, fmt.Errorf("generate key id: %w", err)
	}

	return &PublicKey{KeyID: keyID, Key: pub}, &PrivateKey{KeyID: keyID, Key: priv}, nil
}

// Public returns the public half of the signing key.
func (sk *PrivateKey) Public() *PublicKey {
	return &PublicKey{
		KeyID: sk.KeyID,
		Key:   sk.Key.Public().(ed25519.PublicKey),
	}
}

// Sign produces a prehashed ("ED") signature block over data. The comment
// goes on the untrusted comment line; callers pass something descriptive
// like the signed file's name.
func (sk *PrivateKey) Sign(data []byte, comment string) string {
	digest := blake2b.Sum512(data)
	return sk.signMessage(digest[:], tagPrehashed, comment)
}

// SignLegacy produces a legacy ("Ed") signature block over the raw data.
// Kept for interoperability with pre-prehash signers.
func (sk *PrivateKey) SignLegacy(data []byte, comment string) string {
	return sk.signMessage(data, tagLegacy, comment)
}

func (sk *PrivateKey) signMessage(message, tag []byte, comment string) string {
	sig := ed25519.Sign(sk.Key, message)

	raw := make([]byte, 0, rawSignatureSize)
	raw = append(raw, tag...)
	raw = append(raw, sk.KeyID[:]...)
	raw = append(raw, sig...)

	if comment == "" {
		comment = "signature from plugvault"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "untrusted comment: %s\n", comment)
	b.WriteString(base64.StdEncoding.EncodeToString(raw))
	b.WriteString("\n")
	return b.String()
}

// ParsePrivateKey decodes a secret key file produced by MarshalText.
func ParsePrivateKey(content string) (*PrivateKey, error) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	encoded := lines[0]
	if len(lines) >= 2 && strings.HasPrefix(lines[0], "untrusted comment:") {
		encoded = lines[1]
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, &KeyFormatError{Reason: fmt.Sprintf("base64 decode: %v", err)}
	}

	if len(decoded) != rawPrivateKeySize {
		return nil, &KeyFormatError{
			Reason: fmt.Sprintf("length mismatch: expected %d bytes, got %d", rawPrivateKeySize, len(decoded)),
		}
	}

	if string(decoded[:algorithmTagSize]) != string(tagLegacy) {
		return nil, &KeyFormatError{
			Reason: fmt.Sprintf("algorithm tag: expected %q, got %q", tagLegacy, decoded[:algorithmTagSize]),
		}
	}

	sk := &PrivateKey{
		Key: ed25519.PrivateKey(append([]byte(nil), decoded[algorithmTagSize+keyIDSize:]...)),
	}
	copy(sk.KeyID[:], decoded[algorithmTagSize:algorithmTagSize+keyIDSize])

	return sk, nil
}

// MarshalText renders the secret key file: an untrusted comment line plus
// the base64-encoded key material.
func (sk *PrivateKey) MarshalText(comment string) string {
	raw := make([]byte, 0, rawPrivateKeySize)
	raw = append(raw, tagLegacy...)
	raw = append(raw, sk.KeyID[:]...)
	raw = append(raw, sk.Key...)

	if comment == "" {
		comment = "plugvault secret key"
	}

	return fmt.Sprintf("untrusted comment: %s\n%s\n", comment, base64.StdEncoding.EncodeToString(raw))
}
