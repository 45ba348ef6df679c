package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/plugvault/plugvault/internal/bundle"
	"github.com/plugvault/plugvault/internal/minisign"
)

var (
	buildName    string
	buildVersion string
	buildOutput  string
	buildLibs    []string
	buildSchemas []string
	buildBridges []string
	buildKeyFile string
	buildGitInfo bool
)

func createBuildCommand() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build [flags]",
		Short: "assemble a plugin bundle",
		Long: `Build assembles a bundle archive from native libraries and schemas.
Checksums are recorded for every artifact; with --key, the manifest and
all libraries are additionally signed.

Libraries are given as PLATFORM=PATH or PLATFORM/VARIANT=PATH:

  plugvault build --name imageproc --version 1.2.0 \
    --lib linux-x86_64=target/libimageproc.so \
    --lib darwin-aarch64/release=target/libimageproc.dylib \
    --schema config=schemas/config.schema.json \
    --key plugvault.key -o imageproc.pvb`,

		RunE: executeBuild,
	}

	buildCmd.Flags().StringVar(&buildName, "name", "", "Plugin name (required)")
	buildCmd.Flags().StringVar(&buildVersion, "version", "", "Plugin version (required)")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output bundle path (required)")
	buildCmd.Flags().StringArrayVar(&buildLibs, "lib", nil,
		"Library as PLATFORM=PATH or PLATFORM/VARIANT=PATH (repeatable)")
	buildCmd.Flags().StringArrayVar(&buildSchemas, "schema", nil,
		"Schema as NAME=PATH (repeatable)")
	buildCmd.Flags().StringArrayVar(&buildBridges, "bridge", nil,
		"JNI bridge library as PLATFORM=PATH (repeatable)")
	buildCmd.Flags().StringVar(&buildKeyFile, "key", "", "Minisign private key file for signing")
	buildCmd.Flags().BoolVar(&buildGitInfo, "git-info", true,
		"Record git revision info from the working directory")

	buildCmd.MarkFlagRequired("name")
	buildCmd.MarkFlagRequired("version")
	buildCmd.MarkFlagRequired("output")
	return buildCmd
}

// splitSpec parses a KEY=PATH flag value.
func splitSpec(spec string) (key, path string, err error) {
	i := strings.Index(spec, "=")
	if i <= 0 || i == len(spec)-1 {
		return "", "", fmt.Errorf("invalid spec %q, want KEY=PATH", spec)
	}
	return spec[:i], spec[i+1:], nil
}

func executeBuild(cmd *cobra.Command, args []string) error {
	if len(buildLibs) == 0 {
		return fmt.Errorf("at least one --lib is required")
	}

	b := bundle.NewBuilder(buildName, buildVersion)

	for _, spec := range buildLibs {
		key, path, err := splitSpec(spec)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read library: %w", err)
		}
		if platformKey, variant, ok := strings.Cut(key, "/"); ok {
			b.AddLibraryVariant(platformKey, variant, filepath.Base(path), data)
		} else {
			b.AddLibrary(key, filepath.Base(path), data)
		}
	}

	for _, spec := range buildSchemas {
		name, path, err := splitSpec(spec)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		format := ""
		if strings.HasSuffix(path, ".json") {
			format = "json-schema"
		}
		b.AddSchema(name, filepath.Base(path), format, data)
	}

	for _, spec := range buildBridges {
		key, path, err := splitSpec(spec)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read bridge library: %w", err)
		}
		b.AddBridgeLibrary(key, filepath.Base(path), data)
	}

	if buildKeyFile != "" {
		content, err := os.ReadFile(buildKeyFile)
		if err != nil {
			return fmt.Errorf("read private key: %w", err)
		}
		sk, err := minisign.ParsePrivateKey(string(content))
		if err != nil {
			return err
		}
		b.WithSigner(sk)
	}

	b.Manifest().BuildInfo = collectBuildInfo()

	if err := b.WriteFile(buildOutput); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), buildOutput)
	return nil
}

// collectBuildInfo records provenance for the manifest. Git lookups are
// best effort; a missing repo just leaves the git block out.
func collectBuildInfo() *bundle.BuildInfo {
	host, _ := os.Hostname()
	bi := &bundle.BuildInfo{
		BuiltBy:     os.Getenv("USER"),
		BuiltAt:     time.Now().UTC().Format(time.RFC3339),
		Host:        host,
		Compiler:    runtime.Version(),
		ToolVersion: "plugvault",
	}
	if !buildGitInfo {
		return bi
	}
	bi.Git = detectGitInfo(".")
	return bi
}

// detectGitInfo reads HEAD, the current branch, and worktree cleanliness
// from the repository containing dir.
func detectGitInfo(dir string) *bundle.GitInfo {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil
	}

	head, err := repo.Head()
	if err != nil {
		return nil
	}
	gi := &bundle.GitInfo{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		gi.Branch = head.Name().Short()
	}

	if worktree, err := repo.Worktree(); err == nil {
		if status, err := worktree.Status(); err == nil {
			gi.Dirty = !status.IsClean()
		}
	}
	return gi
}
