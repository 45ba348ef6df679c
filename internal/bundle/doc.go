// Package bundle implements reading, verifying, building, and extracting
// plugin bundle archives (.pvb files).
//
// # Bundle Layout
//
// A bundle is a zip archive carrying a manifest.json at its root, one or
// more native libraries laid out by platform, and optional schemas, bridge
// libraries, SBOM documents, and detached signatures:
//
//	manifest.json
//	manifest.json.minisig        (optional)
//	linux-x86_64/libplugin.so
//	linux-x86_64/libplugin.so.minisig
//	schemas/config.schema.json
//
// # Security Model
//
// Extraction is a verification pipeline, not a file copy. Every artifact
// and schema carries a mandatory SHA-256 checksum in the manifest, checked
// before any byte reaches the destination. When signature verification is
// enabled, the manifest and the selected artifact must additionally carry
// valid minisign signatures for the trusted Ed25519 public key. Nothing is
// written on failure: safe-mode extraction stages through a temp file and
// renames, and ephemeral extraction removes its directory on any error.
//
// # Usage
//
//	b, err := bundle.Open("plugin.pvb")
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	ex := bundle.NewExtractor(b, bundle.Options{VerifySignatures: true})
//	path, err := ex.ExtractToTemp(ctx)
package bundle
