package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plugvault/plugvault/internal/bundle"
)

var (
	inspectJSON  bool
	inspectFiles bool
)

func createInspectCommand() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect [flags] BUNDLE",
		Short: "show a bundle's manifest and contents",
		Args:  cobra.ExactArgs(1),

		RunE: executeInspect,
	}

	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false,
		"Print the manifest as JSON")
	inspectCmd.Flags().BoolVar(&inspectFiles, "files", false,
		"List the archive's entries")
	return inspectCmd
}

func executeInspect(cmd *cobra.Command, args []string) error {
	b, err := bundle.Open(args[0])
	if err != nil {
		return err
	}
	defer b.Close()

	out := cmd.OutOrStdout()

	if inspectJSON {
		data, err := b.Manifest.MarshalIndent()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if inspectFiles {
		for _, name := range b.Files() {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	m := b.Manifest
	fmt.Fprintf(out, "Plugin:         %s %s\n", m.Plugin.Name, m.Plugin.Version)
	if m.Plugin.Description != "" {
		fmt.Fprintf(out, "Description:    %s\n", m.Plugin.Description)
	}
	if m.Plugin.License != "" {
		fmt.Fprintf(out, "License:        %s\n", m.Plugin.License)
	}
	fmt.Fprintf(out, "Bundle version: %s\n", m.BundleVersion)
	fmt.Fprintf(out, "Signed:         %v\n", m.PublicKey != "")

	fmt.Fprintln(out, "Platforms:")
	for _, key := range m.PlatformKeys() {
		entry, _ := m.Platform(key)
		if variants := entry.VariantNames(); len(variants) > 0 {
			fmt.Fprintf(out, "  %s: variants %s (default %s)\n",
				key, strings.Join(variants, ", "), entry.EffectiveDefaultVariant())
		} else {
			fmt.Fprintf(out, "  %s: %s\n", key, entry.Library)
		}
	}

	if len(m.Schemas) > 0 {
		names := make([]string, 0, len(m.Schemas))
		for name := range m.Schemas {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(out, "Schemas:")
		for _, name := range names {
			fmt.Fprintf(out, "  %s: %s\n", name, m.Schemas[name].Path)
		}
	}
	if m.HasBridge() {
		keys := make([]string, 0, len(m.Bridges.JNI))
		for key := range m.Bridges.JNI {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintf(out, "JNI bridges:    %s\n", strings.Join(keys, ", "))
	}
	if s := m.SBOM; s != nil {
		if s.CycloneDX != "" {
			fmt.Fprintf(out, "SBOM:           %s (cyclonedx)\n", s.CycloneDX)
		}
		if s.SPDX != "" {
			fmt.Fprintf(out, "SBOM:           %s (spdx)\n", s.SPDX)
		}
	}
	if bi := m.BuildInfo; bi != nil {
		if bi.BuiltBy != "" || bi.BuiltAt != "" {
			fmt.Fprintf(out, "Built:          %s %s\n", bi.BuiltBy, bi.BuiltAt)
		}
		if bi.Git != nil && bi.Git.Commit != "" {
			dirty := ""
			if bi.Git.Dirty {
				dirty = " (dirty)"
			}
			fmt.Fprintf(out, "Git commit:     %s%s\n", bi.Git.Commit, dirty)
		}
	}
	return nil
}
