package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plugvault/plugvault/internal/platform"
)

func createPlatformCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "platform",
		Short: "show the detected host platform",

		RunE: executePlatform,
	}
}

func executePlatform(cmd *cobra.Command, args []string) error {
	info, err := platform.NewDetector().Detect(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "platform key: %s\n", info.Key())
	fmt.Fprintf(out, "os:           %s\n", info.OS)
	fmt.Fprintf(out, "arch:         %s (raw %s)\n", info.Arch, info.ArchRaw)
	if info.Distro != "" {
		fmt.Fprintf(out, "distro:       %s %s\n", info.Distro, info.DistroVersion)
	}
	return nil
}
