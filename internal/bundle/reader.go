package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/flate"
)

// Bundle is an open plugin bundle archive. It holds the zip reader and the
// parsed manifest; artifact bytes are read on demand.
type Bundle struct {
	// Path is the filesystem location the bundle was opened from.
	Path string

	// Manifest is the parsed manifest.json.
	Manifest *Manifest

	zr      *zip.ReadCloser
	entries map[string]*zip.File

	// rawManifest holds the exact manifest.json bytes as stored in the
	// archive. Manifest signatures are verified against these bytes, not
	// against a re-serialization.
	rawManifest []byte
}

// manifestName is the required manifest entry at the archive root.
const manifestName = "manifest.json"

// signatureSuffix is appended to an entry name to locate its detached
// minisign signature.
const signatureSuffix = ".minisig"

// Open opens a bundle archive and parses its manifest.
func Open(path string) (*Bundle, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("bundle %s: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("stat bundle: %w", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("open archive: %w", err)}
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	b := &Bundle{
		Path:    path,
		zr:      zr,
		entries: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		b.entries[f.Name] = f
	}

	raw, err := b.ReadFile(manifestName)
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(raw)
	if err != nil {
		zr.Close()
		return nil, err
	}
	b.rawManifest = raw
	b.Manifest = m
	return b, nil
}

// Close releases the underlying archive.
func (b *Bundle) Close() error {
	if b.zr == nil {
		return nil
	}
	err := b.zr.Close()
	b.zr = nil
	return err
}

// HasFile reports whether the archive contains the named entry.
func (b *Bundle) HasFile(name string) bool {
	_, ok := b.entries[name]
	return ok
}

// ReadFile returns the full contents of an archive entry.
func (b *Bundle) ReadFile(name string) ([]byte, error) {
	f, ok := b.entries[name]
	if !ok {
		return nil, &EntryError{Path: name}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", name, err)
	}
	return data, nil
}

// Files returns the archive's entry names, sorted.
func (b *Bundle) Files() []string {
	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RawManifest returns the manifest.json bytes exactly as stored in the
// archive.
func (b *Bundle) RawManifest() []byte {
	return b.rawManifest
}

// ReadSignature returns the detached minisign signature block for an entry,
// or ok=false when the archive carries none.
func (b *Bundle) ReadSignature(name string) (block string, ok bool, err error) {
	sigName := name + signatureSuffix
	if !b.HasFile(sigName) {
		return "", false, nil
	}
	data, err := b.ReadFile(sigName)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}
