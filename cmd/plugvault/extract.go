package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plugvault/plugvault/internal/bundle"
)

var (
	extractDest      string
	extractTemp      bool
	extractPlatform  string
	extractVariant   string
	extractPublicKey string
	extractNoVerify  bool
	extractBridge    bool
)

func createExtractCommand() *cobra.Command {
	extractCmd := &cobra.Command{
		Use:   "extract [flags] BUNDLE",
		Short: "verify and extract a plugin library",
		Long: `Extract resolves the library for a platform, verifies its SHA-256
checksum (and minisign signatures unless disabled), and writes it to the
destination directory. An existing destination file is never overwritten.

With --temp (or no destination configured), the library is written to a
fresh temporary directory instead.`,
		Args: cobra.ExactArgs(1),

		RunE: executeExtract,
	}

	extractCmd.Flags().StringVarP(&extractDest, "dest", "d", "",
		"Destination directory (default: config, then temp dir)")
	extractCmd.Flags().BoolVar(&extractTemp, "temp", false,
		"Extract into an ephemeral temp directory")
	extractCmd.Flags().StringVar(&extractPlatform, "platform", "",
		"Platform key, e.g. linux-x86_64 (default: current host)")
	extractCmd.Flags().StringVar(&extractVariant, "variant", "",
		"Build variant (default: config, then the bundle's default)")
	extractCmd.Flags().StringVar(&extractPublicKey, "public-key", "",
		"Trusted minisign public key, overriding the manifest's")
	extractCmd.Flags().BoolVar(&extractNoVerify, "no-verify", false,
		"Skip signature verification (checksums are always verified)")
	extractCmd.Flags().BoolVar(&extractBridge, "bridge", false,
		"Extract the JNI bridge library instead of the plugin library")
	return extractCmd
}

// extractOptions merges flags over the loaded config.
func extractOptions() bundle.Options {
	opts := bundle.Options{
		VerifySignatures:  cfg.Verify && !extractNoVerify,
		PublicKeyOverride: cfg.PublicKey,
		Platform:          extractPlatform,
		Variant:           cfg.Variant,
	}
	if extractPublicKey != "" {
		opts.PublicKeyOverride = extractPublicKey
	}
	if extractVariant != "" {
		opts.Variant = extractVariant
	}
	return opts
}

func executeExtract(cmd *cobra.Command, args []string) error {
	b, err := bundle.Open(args[0])
	if err != nil {
		return err
	}
	defer b.Close()

	ex := bundle.NewExtractor(b, extractOptions())

	destDir := extractDest
	if destDir == "" {
		destDir = cfg.Destination
	}

	var dest string
	switch {
	case extractBridge && (extractTemp || destDir == ""):
		dest, err = ex.ExtractBridgeToTemp(cmd.Context())
	case extractBridge:
		dest, err = ex.ExtractBridge(cmd.Context(), destDir)
	case extractTemp || destDir == "":
		dest, err = ex.ExtractToTemp(cmd.Context())
	default:
		dest, err = ex.Extract(cmd.Context(), destDir)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), dest)
	return nil
}
