// Command plugvault builds, inspects, verifies, and extracts plugin bundle
// archives.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plugvault/plugvault/internal/config"
	"github.com/plugvault/plugvault/internal/logging"
)

var (
	cfgPath  string
	logLevel string

	// cfg is populated before any subcommand runs.
	cfg *config.Config
)

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "plugvault",
		Short: "secure plugin bundle tool",
		Long: `plugvault manages plugin bundle archives: zip files carrying native
plugin libraries for multiple platforms, SHA-256 checksums for every
artifact, and optional minisign signatures.

Extraction always verifies checksums before writing anything; with
signatures enabled it also verifies the manifest and the selected
library against a trusted Ed25519 key.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"Config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, or error")

	rootCmd.AddCommand(
		createExtractCommand(),
		createInspectCommand(),
		createVerifyCommand(),
		createBuildCommand(),
		createKeygenCommand(),
		createPlatformCommand(),
	)
	return rootCmd
}

// setup loads the config file and initializes logging before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	path := cfgPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if level == "" {
		level = "info"
	}
	return logging.Init(level)
}

func main() {
	defer logging.Sync()
	if err := createRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
