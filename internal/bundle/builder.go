package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/plugvault/plugvault/internal/minisign"
)

// bundleFormatVersion is the manifest format written by this builder.
const bundleFormatVersion = "1.0"

// Builder assembles a bundle archive in memory. Checksums are computed for
// every recorded artifact; a signer additionally produces detached minisign
// signatures for the manifest and each library.
type Builder struct {
	manifest  *Manifest
	files     map[string][]byte
	signPaths []string
	signer    *minisign.PrivateKey
}

// NewBuilder creates a builder for the named plugin.
func NewBuilder(name, version string) *Builder {
	return &Builder{
		manifest: &Manifest{
			BundleVersion: bundleFormatVersion,
			Plugin:        PluginInfo{Name: name, Version: version},
			Platforms:     make(map[string]*PlatformEntry),
			Schemas:       make(map[string]*SchemaEntry),
		},
		files: make(map[string][]byte),
	}
}

// Manifest exposes the manifest under construction so callers can fill in
// optional metadata such as build info or SBOM paths.
func (b *Builder) Manifest() *Manifest {
	return b.manifest
}

// WithSigner sets the signing key and embeds its public half in the
// manifest.
func (b *Builder) WithSigner(sk *minisign.PrivateKey) *Builder {
	b.signer = sk
	b.manifest.PublicKey = sk.Public().String()
	return b
}

// SetPublicKey embeds a public key without enabling signing. Useful when
// signatures are produced out of band.
func (b *Builder) SetPublicKey(encoded string) *Builder {
	b.manifest.PublicKey = encoded
	return b
}

// AddLibrary records a flat (single-variant) library for a platform.
func (b *Builder) AddLibrary(platformKey, baseName string, data []byte) *Builder {
	path := platformKey + "/" + baseName
	b.addArtifact(path, data)
	b.manifest.Platforms[platformKey] = &PlatformEntry{
		Library:  path,
		Checksum: checksumPrefix + ComputeChecksum(data),
	}
	return b
}

// AddLibraryVariant records a variant library for a platform. The first
// variant added for a platform replaces any flat entry.
func (b *Builder) AddLibraryVariant(platformKey, variant, baseName string, data []byte) *Builder {
	path := platformKey + "/" + variant + "/" + baseName
	b.addArtifact(path, data)

	entry := b.manifest.Platforms[platformKey]
	if entry == nil || entry.Variants == nil {
		entry = &PlatformEntry{Variants: make(map[string]*VariantEntry)}
		b.manifest.Platforms[platformKey] = entry
	}
	entry.Variants[variant] = &VariantEntry{
		Library:  path,
		Checksum: checksumPrefix + ComputeChecksum(data),
		BuiltAt:  time.Now().UTC().Format(time.RFC3339),
		Size:     int64(len(data)),
	}
	return b
}

// SetDefaultVariant sets the default variant name for a platform entry. The
// entry must already exist.
func (b *Builder) SetDefaultVariant(platformKey, variant string) *Builder {
	if entry := b.manifest.Platforms[platformKey]; entry != nil {
		entry.DefaultVariant = variant
	}
	return b
}

// AddBridgeLibrary records a JNI bridge library for a platform.
func (b *Builder) AddBridgeLibrary(platformKey, baseName string, data []byte) *Builder {
	path := "bridges/jni/" + platformKey + "/" + baseName
	b.addArtifact(path, data)
	if b.manifest.Bridges == nil {
		b.manifest.Bridges = &Bridges{JNI: make(map[string]*PlatformEntry)}
	}
	b.manifest.Bridges.JNI[platformKey] = &PlatformEntry{
		Library:  path,
		Checksum: checksumPrefix + ComputeChecksum(data),
	}
	return b
}

// AddSchema records a named schema document.
func (b *Builder) AddSchema(name, fileName, format string, data []byte) *Builder {
	path := "schemas/" + fileName
	b.files[path] = data
	b.manifest.Schemas[name] = &SchemaEntry{
		Path:     path,
		Checksum: checksumPrefix + ComputeChecksum(data),
		Format:   format,
	}
	return b
}

// AddFile places an arbitrary entry in the archive without recording it in
// the manifest.
func (b *Builder) AddFile(path string, data []byte) *Builder {
	b.files[path] = data
	return b
}

func (b *Builder) addArtifact(path string, data []byte) {
	b.files[path] = data
	b.signPaths = append(b.signPaths, path)
}

// Write serializes the bundle to w as a zip archive.
func (b *Builder) Write(w io.Writer) error {
	raw, err := b.manifest.MarshalIndent()
	if err != nil {
		return err
	}

	entries := map[string][]byte{manifestName: raw}
	for path, data := range b.files {
		entries[path] = data
	}

	if b.signer != nil {
		comment := fmt.Sprintf("signature for %s %s", b.manifest.Plugin.Name, b.manifest.Plugin.Version)
		entries[manifestName+signatureSuffix] = []byte(b.signer.Sign(raw, comment))
		for _, path := range b.signPaths {
			entries[path+signatureSuffix] = []byte(b.signer.Sign(b.files[path], comment))
		}
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := fw.Write(entries[name]); err != nil {
			zw.Close()
			return fmt.Errorf("write entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// WriteFile serializes the bundle to a new file at path.
func (b *Builder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	if err := b.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
