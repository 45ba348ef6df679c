package bundle

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/plugvault/plugvault/internal/minisign"
)

var testLibrary = []byte("\x7fELF pretend shared object contents")

func mustKeypair(t *testing.T) (*minisign.PublicKey, *minisign.PrivateKey) {
	t.Helper()
	pk, sk, err := minisign.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	return pk, sk
}

func openTestBundle(t *testing.T, b *Builder) *Bundle {
	t.Helper()
	bundle, err := Open(writeTestBundle(t, b))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { bundle.Close() })
	return bundle
}

func TestExtract(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	destDir := t.TempDir()
	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	dest, err := ex.Extract(context.Background(), destDir)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if dest != filepath.Join(destDir, "libdemo.so") {
		t.Errorf("dest = %s", dest)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if !bytes.Equal(data, testLibrary) {
		t.Error("extracted bytes differ from archive contents")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(dest)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode()&0o111 == 0 {
			t.Errorf("extracted library not executable: %v", info.Mode())
		}
	}
}

func TestExtractVariant(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").
		AddLibraryVariant("linux-x86_64", "release", "libdemo.so", testLibrary).
		AddLibraryVariant("linux-x86_64", "debug", "libdemo.so", []byte("debug build"))
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64", Variant: "debug"})
	dest, err := ex.Extract(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "debug build" {
		t.Errorf("extracted bytes = %q", data)
	}

	// Empty variant resolves to the default "release".
	ex = NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	dest, err = ex.Extract(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	data, _ = os.ReadFile(dest)
	if !bytes.Equal(data, testLibrary) {
		t.Error("default variant did not resolve to release build")
	}
}

func TestExtractVariantNotFound(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").
		AddLibraryVariant("linux-x86_64", "release", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64", Variant: "profiled"})
	_, err := ex.Extract(context.Background(), t.TempDir())
	if !errors.Is(err, ErrVariantNotFound) {
		t.Errorf("Extract() error = %v, want ErrVariantNotFound", err)
	}
}

func TestExtractUnsupportedPlatform(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{Platform: "windows-x86_64"})
	_, err := ex.Extract(context.Background(), t.TempDir())
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("Extract() error = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestExtractDestinationConflict(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	destDir := t.TempDir()
	existing := filepath.Join(destDir, "libdemo.so")
	if err := os.WriteFile(existing, []byte("already here"), 0o644); err != nil {
		t.Fatal(err)
	}

	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	_, err := ex.Extract(context.Background(), destDir)
	if !errors.Is(err, ErrDestinationConflict) {
		t.Fatalf("Extract() error = %v, want ErrDestinationConflict", err)
	}

	data, _ := os.ReadFile(existing)
	if string(data) != "already here" {
		t.Error("existing file was overwritten")
	}
}

func TestExtractChecksumMismatch(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	b.Manifest().Platforms["linux-x86_64"].Checksum = "sha256:" + ComputeChecksum([]byte("tampered"))
	bundle := openTestBundle(t, b)

	destDir := t.TempDir()
	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	_, err := ex.Extract(context.Background(), destDir)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Extract() error = %v, want ErrChecksumMismatch", err)
	}

	// Nothing may reach the destination on a failed verification.
	entries, err := os.ReadDir(destDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("destination dir not empty after failure: %v", entries)
	}
}

func TestExtractToTemp(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	dest, err := ex.ExtractToTemp(context.Background())
	if err != nil {
		t.Fatalf("ExtractToTemp() error: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(filepath.Dir(dest)) })

	if !strings.HasPrefix(filepath.Base(filepath.Dir(dest)), "plugvault-") {
		t.Errorf("temp dir %s missing plugvault- prefix", filepath.Dir(dest))
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if !bytes.Equal(data, testLibrary) {
		t.Error("extracted bytes differ from archive contents")
	}
}

func TestExtractToTempFailureLeavesNothing(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	b.Manifest().Platforms["linux-x86_64"].Checksum = "sha256:" + ComputeChecksum([]byte("x"))
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	dest, err := ex.ExtractToTemp(context.Background())
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("ExtractToTemp() error = %v, want ErrChecksumMismatch", err)
	}
	if dest != "" {
		t.Errorf("dest = %q on failure", dest)
	}
}

func TestExtractCancelled(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	if _, err := ex.Extract(ctx, t.TempDir()); !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestExtractSigned(t *testing.T) {
	_, sk := mustKeypair(t)
	b := NewBuilder("demo", "1.0.0").
		WithSigner(sk).
		AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{VerifySignatures: true, Platform: "linux-x86_64"})
	dest, err := ex.Extract(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	entry, _ := bundle.Manifest.Platform("linux-x86_64")
	if !VerifyChecksum(data, entry.Checksum) {
		t.Error("extracted file digest differs from the manifest checksum")
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(dest)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode()&0o111 == 0 {
			t.Errorf("extracted library not executable: %v", info.Mode())
		}
	}
}

func TestExtractSignedWithOverrideKey(t *testing.T) {
	pk, sk := mustKeypair(t)
	b := NewBuilder("demo", "1.0.0").
		WithSigner(sk).
		AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	// Strip the embedded key; the caller supplies it instead.
	b.Manifest().PublicKey = ""
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{
		VerifySignatures:  true,
		PublicKeyOverride: pk.String(),
		Platform:          "linux-x86_64",
	})
	if _, err := ex.Extract(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
}

func TestExtractSignedNoPublicKey(t *testing.T) {
	_, sk := mustKeypair(t)
	b := NewBuilder("demo", "1.0.0").
		WithSigner(sk).
		AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	b.Manifest().PublicKey = ""
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{VerifySignatures: true, Platform: "linux-x86_64"})
	_, err := ex.Extract(context.Background(), t.TempDir())
	if !errors.Is(err, ErrNoPublicKey) {
		t.Errorf("Extract() error = %v, want ErrNoPublicKey", err)
	}
}

func TestExtractSignedWrongKey(t *testing.T) {
	_, signerKey := mustKeypair(t)
	otherPub, _ := mustKeypair(t)

	b := NewBuilder("demo", "1.0.0").
		WithSigner(signerKey).
		AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	// Trust a different key than the one that produced the signatures. The
	// key IDs differ, so verification reports an invalid signature rather
	// than a format error.
	ex := NewExtractor(bundle, Options{
		VerifySignatures:  true,
		PublicKeyOverride: otherPub.String(),
		Platform:          "linux-x86_64",
	})
	_, err := ex.Extract(context.Background(), t.TempDir())
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Extract() error = %v, want ErrSignatureInvalid", err)
	}
}

// With verification enabled the signature member is required, so an
// unsigned bundle fails as a missing archive member, not as a bad
// signature.
func TestExtractSignedMissingSignature(t *testing.T) {
	pk, _ := mustKeypair(t)
	b := NewBuilder("demo", "1.0.0").
		SetPublicKey(pk.String()).
		AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{VerifySignatures: true, Platform: "linux-x86_64"})
	_, err := ex.Extract(context.Background(), t.TempDir())
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Extract() error = %v, want ErrFileNotFound", err)
	}
	if errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Extract() error = %v, must not be ErrSignatureInvalid", err)
	}
	var eerr *EntryError
	if !errors.As(err, &eerr) {
		t.Fatalf("Extract() error = %v, want *EntryError", err)
	}
	if eerr.Path != "manifest.json.minisig" {
		t.Errorf("EntryError.Path = %s", eerr.Path)
	}
}

func TestExtractSignedMalformedSignature(t *testing.T) {
	pk, _ := mustKeypair(t)
	b := NewBuilder("demo", "1.0.0").
		SetPublicKey(pk.String()).
		AddLibrary("linux-x86_64", "libdemo.so", testLibrary).
		AddFile("manifest.json.minisig", []byte("untrusted comment: x\nnot base64!!\n"))
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{VerifySignatures: true, Platform: "linux-x86_64"})
	_, err := ex.Extract(context.Background(), t.TempDir())
	var serr *minisign.SignatureFormatError
	if !errors.As(err, &serr) {
		t.Errorf("Extract() error = %v, want *minisign.SignatureFormatError", err)
	}
}

func TestExtractSignedMalformedPublicKey(t *testing.T) {
	_, sk := mustKeypair(t)
	b := NewBuilder("demo", "1.0.0").
		WithSigner(sk).
		AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	b.Manifest().PublicKey = "not a key"
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{VerifySignatures: true, Platform: "linux-x86_64"})
	_, err := ex.Extract(context.Background(), t.TempDir())
	var kerr *minisign.KeyFormatError
	if !errors.As(err, &kerr) {
		t.Errorf("Extract() error = %v, want *minisign.KeyFormatError", err)
	}
}

func TestExtractBridge(t *testing.T) {
	bridgeLib := []byte("jni bridge library")
	b := NewBuilder("demo", "1.0.0").
		AddLibrary("linux-x86_64", "libdemo.so", testLibrary).
		AddBridgeLibrary("linux-x86_64", "libdemo_jni.so", bridgeLib)
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	dest, err := ex.ExtractBridge(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("ExtractBridge() error: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if !bytes.Equal(data, bridgeLib) {
		t.Error("extracted bridge bytes differ")
	}
	if filepath.Base(dest) != "libdemo_jni.so" {
		t.Errorf("dest = %s", dest)
	}
}

func TestExtractBridgeAbsent(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").AddLibrary("linux-x86_64", "libdemo.so", testLibrary)
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	if _, err := ex.ExtractBridge(context.Background(), t.TempDir()); !errors.Is(err, ErrNoBridge) {
		t.Errorf("ExtractBridge() error = %v, want ErrNoBridge", err)
	}
	if _, err := ex.ExtractBridgeToTemp(context.Background()); !errors.Is(err, ErrNoBridge) {
		t.Errorf("ExtractBridgeToTemp() error = %v, want ErrNoBridge", err)
	}
}

func TestReadSchema(t *testing.T) {
	schema := []byte(`{"type": "object"}`)
	b := NewBuilder("demo", "1.0.0").
		AddLibrary("linux-x86_64", "libdemo.so", testLibrary).
		AddSchema("config", "config.schema.json", "json-schema", schema)
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{Platform: "linux-x86_64"})
	data, err := ex.ReadSchema("config")
	if err != nil {
		t.Fatalf("ReadSchema() error: %v", err)
	}
	if !bytes.Equal(data, schema) {
		t.Error("ReadSchema() returned wrong bytes")
	}

	if _, err := ex.ReadSchema("nope"); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("ReadSchema(nope) error = %v, want ErrSchemaNotFound", err)
	}
}

func TestReadSchemaChecksumMismatch(t *testing.T) {
	b := NewBuilder("demo", "1.0.0").
		AddSchema("config", "config.schema.json", "json-schema", []byte("{}"))
	b.Manifest().Schemas["config"].Checksum = "sha256:" + ComputeChecksum([]byte("other"))
	bundle := openTestBundle(t, b)

	ex := NewExtractor(bundle, Options{})
	if _, err := ex.ReadSchema("config"); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("ReadSchema() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestExtractSchema(t *testing.T) {
	schema := []byte(`{"type": "object"}`)
	b := NewBuilder("demo", "1.0.0").
		AddSchema("config", "config.schema.json", "json-schema", schema)
	bundle := openTestBundle(t, b)

	destDir := t.TempDir()
	ex := NewExtractor(bundle, Options{})
	dest, err := ex.ExtractSchema("config", destDir)
	if err != nil {
		t.Fatalf("ExtractSchema() error: %v", err)
	}
	if dest != filepath.Join(destDir, "config.schema.json") {
		t.Errorf("dest = %s", dest)
	}

	// A second extraction into the same directory conflicts.
	if _, err := ex.ExtractSchema("config", destDir); !errors.Is(err, ErrDestinationConflict) {
		t.Errorf("second ExtractSchema() error = %v, want ErrDestinationConflict", err)
	}
}
