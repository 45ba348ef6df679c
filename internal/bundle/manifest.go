package bundle

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Manifest is the typed form of a bundle's manifest.json. It is parsed once
// per load and never mutated afterwards. Unknown JSON keys are ignored for
// forward compatibility.
type Manifest struct {
	// BundleVersion is the bundle format version tag. Required.
	BundleVersion string `json:"bundle_version"`

	// Plugin carries the plugin's identity and optional metadata.
	// Name and Version are required.
	Plugin PluginInfo `json:"plugin"`

	// PublicKey is the base64 minisign public key for this bundle's own
	// signatures. A caller-supplied key overrides it.
	PublicKey string `json:"public_key,omitempty"`

	// Platforms maps canonical platform keys ("linux-x86_64") to artifact
	// entries.
	Platforms map[string]*PlatformEntry `json:"platforms"`

	// Schemas maps schema names to auxiliary schema files in the bundle.
	Schemas map[string]*SchemaEntry `json:"schemas,omitempty"`

	// BuildInfo records provenance, when the producer included it.
	BuildInfo *BuildInfo `json:"build_info,omitempty"`

	// SBOM references software-bill-of-materials documents in the bundle.
	SBOM *SBOM `json:"sbom,omitempty"`

	// Bridges holds auxiliary companion artifacts keyed the same way as
	// Platforms.
	Bridges *Bridges `json:"bridges,omitempty"`
}

// PluginInfo is the plugin identity block of the manifest.
type PluginInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	License     string   `json:"license,omitempty"`
	Repository  string   `json:"repository,omitempty"`
}

// PlatformEntry describes the artifact(s) for one platform. Older bundles
// carry the flat Library/Checksum pair; newer ones carry a Variants map.
// Both shapes coexist within one bundle version, distinguished purely by the
// presence of Variants.
type PlatformEntry struct {
	Library        string                   `json:"library,omitempty"`
	Checksum       string                   `json:"checksum,omitempty"`
	DefaultVariant string                   `json:"default_variant,omitempty"`
	Variants       map[string]*VariantEntry `json:"variants,omitempty"`
}

// VariantEntry is one named build configuration of a platform's artifact.
type VariantEntry struct {
	Library  string `json:"library"`
	Checksum string `json:"checksum"`
	BuiltAt  string `json:"built_at,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// SchemaEntry describes an auxiliary schema/documentation file, verified
// independently on read.
type SchemaEntry struct {
	Path        string `json:"path"`
	Checksum    string `json:"checksum"`
	Format      string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`
}

// BuildInfo is producer provenance metadata.
type BuildInfo struct {
	BuiltBy     string   `json:"built_by,omitempty"`
	BuiltAt     string   `json:"built_at,omitempty"`
	Host        string   `json:"host,omitempty"`
	Compiler    string   `json:"compiler,omitempty"`
	ToolVersion string   `json:"tool_version,omitempty"`
	Git         *GitInfo `json:"git,omitempty"`
}

// GitInfo records the source revision a bundle was built from.
type GitInfo struct {
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Dirty  bool   `json:"dirty,omitempty"`
}

// SBOM references bill-of-materials documents inside the bundle.
type SBOM struct {
	CycloneDX string `json:"cyclonedx_path,omitempty"`
	SPDX      string `json:"spdx_path,omitempty"`
}

// Bridges holds companion artifact maps. Only JNI bridges exist today.
type Bridges struct {
	JNI map[string]*PlatformEntry `json:"jni,omitempty"`
}

// DefaultVariantName is the variant used when a platform entry names none.
const DefaultVariantName = "release"

// ParseManifest decodes and validates manifest bytes. Malformed JSON yields
// a *ParseError; a missing required field yields a *ManifestFieldError
// naming that field. Optional sections default to empty rather than failing.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ParseError{Err: err}
	}

	if m.BundleVersion == "" {
		return nil, &ManifestFieldError{Field: "bundle_version"}
	}
	if m.Plugin.Name == "" {
		return nil, &ManifestFieldError{Field: "plugin.name"}
	}
	if m.Plugin.Version == "" {
		return nil, &ManifestFieldError{Field: "plugin.version"}
	}

	if m.Platforms == nil {
		m.Platforms = map[string]*PlatformEntry{}
	}
	if m.Schemas == nil {
		m.Schemas = map[string]*SchemaEntry{}
	}

	return &m, nil
}

// MarshalIndent renders the manifest as formatted JSON.
func (m *Manifest) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// Platform returns the entry for a canonical platform key.
func (m *Manifest) Platform(key string) (*PlatformEntry, bool) {
	entry, ok := m.Platforms[key]
	return entry, ok
}

// SupportsPlatform reports whether the manifest lists the platform key.
func (m *Manifest) SupportsPlatform(key string) bool {
	_, ok := m.Platforms[key]
	return ok
}

// PlatformKeys returns the supported platform keys, sorted.
func (m *Manifest) PlatformKeys() []string {
	keys := make([]string, 0, len(m.Platforms))
	for k := range m.Platforms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasBridge reports whether the bundle carries at least one JNI bridge entry.
func (m *Manifest) HasBridge() bool {
	return m.Bridges != nil && len(m.Bridges.JNI) > 0
}

// BridgePlatform returns the JNI bridge entry for a platform key.
func (m *Manifest) BridgePlatform(key string) (*PlatformEntry, bool) {
	if m.Bridges == nil {
		return nil, false
	}
	entry, ok := m.Bridges.JNI[key]
	return entry, ok
}

// EffectiveDefaultVariant returns the entry's explicit default variant, or
// "release" when none is declared.
func (p *PlatformEntry) EffectiveDefaultVariant() string {
	if p.DefaultVariant != "" {
		return p.DefaultVariant
	}
	return DefaultVariantName
}

// VariantError reports an unresolvable variant for a platform.
type VariantError struct {
	Platform string
	Variant  string
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("variant %q not found for platform %q", e.Variant, e.Platform)
}

func (e *VariantError) Unwrap() error { return ErrVariantNotFound }

// Resolve maps a requested variant (empty means the entry's default) to the
// effective library path and checksum. A present variants map, even an empty
// one, makes the entry variant-aware: only its entries resolve, and the
// legacy flat fields apply only to entries without the map. platformKey is
// used for error context only.
func (p *PlatformEntry) Resolve(platformKey, variant string) (library, checksum string, err error) {
	if p.Variants != nil {
		name := variant
		if name == "" {
			name = p.EffectiveDefaultVariant()
		}
		v, ok := p.Variants[name]
		if !ok {
			return "", "", &VariantError{Platform: platformKey, Variant: name}
		}
		return v.Library, v.Checksum, nil
	}

	if p.Library != "" {
		return p.Library, p.Checksum, nil
	}

	name := variant
	if name == "" {
		name = p.EffectiveDefaultVariant()
	}
	return "", "", &VariantError{Platform: platformKey, Variant: name}
}

// VariantNames returns the entry's variant names, sorted. Entries without a
// variants map report none.
func (p *PlatformEntry) VariantNames() []string {
	names := make([]string, 0, len(p.Variants))
	for name := range p.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
