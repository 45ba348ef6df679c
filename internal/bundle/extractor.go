package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/plugvault/plugvault/internal/logging"
	"github.com/plugvault/plugvault/internal/minisign"
	"github.com/plugvault/plugvault/internal/platform"
)

// stage identifies a step in the extraction pipeline. Stages only advance;
// a failure aborts the pipeline at the stage it occurred in.
type stage string

const (
	stageOpened            stage = "opened"
	stageManifestLoaded    stage = "manifest_loaded"
	stageManifestVerified  stage = "manifest_verified"
	stagePlatformResolved  stage = "platform_resolved"
	stageArtifactRead      stage = "artifact_read"
	stageChecksumVerified  stage = "checksum_verified"
	stageSignatureVerified stage = "signature_verified"
	stageWritten           stage = "written"
	stageDone              stage = "done"
)

// Options controls extraction behavior.
type Options struct {
	// VerifySignatures requires valid minisign signatures on the manifest
	// and on the selected artifact.
	VerifySignatures bool

	// PublicKeyOverride, when set, replaces the manifest's embedded public
	// key as the trusted verification key.
	PublicKeyOverride string

	// Platform selects the platform entry. Empty means the current host.
	Platform string

	// Variant selects the build variant. Empty means the entry's default.
	Variant string
}

// Extractor runs the verification pipeline against an open bundle.
type Extractor struct {
	bundle *Bundle
	opts   Options
}

// NewExtractor creates an extractor for an open bundle.
func NewExtractor(b *Bundle, opts Options) *Extractor {
	return &Extractor{bundle: b, opts: opts}
}

func (e *Extractor) advance(s stage, keysAndValues ...interface{}) {
	args := append([]interface{}{"bundle", e.bundle.Path, "stage", string(s)}, keysAndValues...)
	logging.Logger().Debugw("extraction stage", args...)
}

// platformKey returns the effective platform key for this extraction.
func (e *Extractor) platformKey() string {
	if e.opts.Platform != "" {
		return e.opts.Platform
	}
	return platform.CurrentKey()
}

// trustedKey resolves the verification key: the override if set, otherwise
// the manifest's embedded key.
func (e *Extractor) trustedKey() (*minisign.PublicKey, error) {
	encoded := e.opts.PublicKeyOverride
	if encoded == "" {
		encoded = e.bundle.Manifest.PublicKey
	}
	if encoded == "" {
		return nil, ErrNoPublicKey
	}
	return minisign.ParsePublicKey(encoded)
}

// verifyEntry checks the detached signature of an archive entry against the
// trusted key. With verification enabled the signature member is required,
// so its absence is a missing-file error; a key mismatch and a failed
// cryptographic check map to ErrSignatureInvalid, and malformed key or
// signature material surfaces as a format error.
func (e *Extractor) verifyEntry(name string, data []byte, pk *minisign.PublicKey) error {
	block, ok, err := e.bundle.ReadSignature(name)
	if err != nil {
		return err
	}
	if !ok {
		return &EntryError{Path: name + signatureSuffix}
	}
	valid, err := minisign.Verify(data, block, pk)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !valid {
		return fmt.Errorf("%s: %w", name, ErrSignatureInvalid)
	}
	return nil
}

// verifyManifest checks the bundle's manifest signature against the trusted
// key. The signature covers the manifest bytes exactly as stored in the
// archive.
func (e *Extractor) verifyManifest(pk *minisign.PublicKey) error {
	return e.verifyEntry(manifestName, e.bundle.RawManifest(), pk)
}

// resolveArtifact picks the library path and expected checksum for the
// configured platform and variant out of the given platform table.
func (e *Extractor) resolveArtifact(platforms map[string]*PlatformEntry) (path, checksum string, err error) {
	key := e.platformKey()
	entry, ok := platforms[key]
	if !ok {
		return "", "", fmt.Errorf("platform %s: %w", key, ErrUnsupportedPlatform)
	}
	return entry.Resolve(key, e.opts.Variant)
}

// pipeline runs the shared verification stages and returns the verified
// artifact bytes together with their archive path.
func (e *Extractor) pipeline(ctx context.Context, platforms map[string]*PlatformEntry) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	e.advance(stageOpened)
	e.advance(stageManifestLoaded, "plugin", e.bundle.Manifest.Plugin.Name)

	var pk *minisign.PublicKey
	if e.opts.VerifySignatures {
		var err error
		pk, err = e.trustedKey()
		if err != nil {
			return "", nil, err
		}
		if err := e.verifyManifest(pk); err != nil {
			return "", nil, err
		}
		e.advance(stageManifestVerified)
	}

	artifactPath, expected, err := e.resolveArtifact(platforms)
	if err != nil {
		return "", nil, err
	}
	e.advance(stagePlatformResolved, "artifact", artifactPath)

	data, err := e.bundle.ReadFile(artifactPath)
	if err != nil {
		return "", nil, err
	}
	e.advance(stageArtifactRead, "size", len(data))

	if err := verifyEntryChecksum(data, expected, artifactPath); err != nil {
		return "", nil, err
	}
	e.advance(stageChecksumVerified)

	if e.opts.VerifySignatures {
		if err := e.verifyEntry(artifactPath, data, pk); err != nil {
			return "", nil, err
		}
		e.advance(stageSignatureVerified)
	}

	return artifactPath, data, nil
}

// VerifyArtifact runs the full verification pipeline for the configured
// platform and variant without writing anything.
func (e *Extractor) VerifyArtifact(ctx context.Context) error {
	_, _, err := e.pipeline(ctx, e.bundle.Manifest.Platforms)
	return err
}

// Extract runs the pipeline and writes the verified library into destDir
// under its archive base name. An existing destination file is never
// overwritten. The write is staged through a temp file in destDir and
// renamed, so a failure leaves no partial output.
func (e *Extractor) Extract(ctx context.Context, destDir string) (string, error) {
	return e.extractTo(ctx, e.bundle.Manifest.Platforms, destDir)
}

// ExtractToTemp runs the pipeline and writes the verified library into a
// fresh directory under the system temp dir. The directory is removed when
// any stage fails.
func (e *Extractor) ExtractToTemp(ctx context.Context) (string, error) {
	return e.extractEphemeral(ctx, e.bundle.Manifest.Platforms)
}

// ExtractBridge extracts the JNI bridge library for the configured platform
// into destDir. Bundles without bridge entries return ErrNoBridge.
func (e *Extractor) ExtractBridge(ctx context.Context, destDir string) (string, error) {
	platforms, err := e.bridgePlatforms()
	if err != nil {
		return "", err
	}
	return e.extractTo(ctx, platforms, destDir)
}

// ExtractBridgeToTemp extracts the JNI bridge library into a fresh temp
// directory, removed on failure.
func (e *Extractor) ExtractBridgeToTemp(ctx context.Context) (string, error) {
	platforms, err := e.bridgePlatforms()
	if err != nil {
		return "", err
	}
	return e.extractEphemeral(ctx, platforms)
}

func (e *Extractor) bridgePlatforms() (map[string]*PlatformEntry, error) {
	m := e.bundle.Manifest
	if m.Bridges == nil || len(m.Bridges.JNI) == 0 {
		return nil, ErrNoBridge
	}
	return m.Bridges.JNI, nil
}

func (e *Extractor) extractTo(ctx context.Context, platforms map[string]*PlatformEntry, destDir string) (string, error) {
	artifactPath, data, err := e.pipeline(ctx, platforms)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create dest dir: %w", err)
	}
	dest := filepath.Join(destDir, filepath.Base(artifactPath))
	if _, err := os.Lstat(dest); err == nil {
		return "", fmt.Errorf("%s: %w", dest, ErrDestinationConflict)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat destination: %w", err)
	}

	if err := writeArtifact(dest, data); err != nil {
		return "", err
	}
	e.advance(stageWritten, "dest", dest)
	e.advance(stageDone)
	return dest, nil
}

func (e *Extractor) extractEphemeral(ctx context.Context, platforms map[string]*PlatformEntry) (string, error) {
	artifactPath, data, err := e.pipeline(ctx, platforms)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(os.TempDir(), "plugvault-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(artifactPath))
	if err := writeArtifact(dest, data); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	e.advance(stageWritten, "dest", dest)
	e.advance(stageDone)
	return dest, nil
}

// writeArtifact writes data next to its final path and renames it into
// place, then marks it executable on platforms that honor file modes.
func writeArtifact(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename artifact: %w", err)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(dest)
		if err != nil {
			return fmt.Errorf("stat artifact: %w", err)
		}
		if err := os.Chmod(dest, info.Mode()|0o111); err != nil {
			return fmt.Errorf("chmod artifact: %w", err)
		}
	}
	return nil
}

// ReadSchema returns the verified contents of a named schema. The schema's
// checksum is always enforced.
func (e *Extractor) ReadSchema(name string) ([]byte, error) {
	entry, ok := e.bundle.Manifest.Schemas[name]
	if !ok {
		return nil, fmt.Errorf("schema %s: %w", name, ErrSchemaNotFound)
	}
	data, err := e.bundle.ReadFile(entry.Path)
	if err != nil {
		return nil, err
	}
	if err := verifyEntryChecksum(data, entry.Checksum, entry.Path); err != nil {
		return nil, err
	}
	return data, nil
}

// ExtractSchema writes a verified schema into destDir under its archive base
// name. Like Extract, it refuses to overwrite an existing file.
func (e *Extractor) ExtractSchema(name, destDir string) (string, error) {
	entry, ok := e.bundle.Manifest.Schemas[name]
	if !ok {
		return "", fmt.Errorf("schema %s: %w", name, ErrSchemaNotFound)
	}
	data, err := e.ReadSchema(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create dest dir: %w", err)
	}
	dest := filepath.Join(destDir, filepath.Base(entry.Path))
	if _, err := os.Lstat(dest); err == nil {
		return "", fmt.Errorf("%s: %w", dest, ErrDestinationConflict)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat destination: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("write schema: %w", err)
	}
	return dest, nil
}
