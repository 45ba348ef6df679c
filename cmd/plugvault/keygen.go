package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/plugvault/plugvault/internal/minisign"
)

var (
	keygenDir     string
	keygenComment string
	keygenForce   bool
)

func createKeygenCommand() *cobra.Command {
	keygenCmd := &cobra.Command{
		Use:   "keygen [flags]",
		Short: "generate a minisign signing keypair",
		Long: `Keygen generates an Ed25519 keypair in minisign format and writes
plugvault.key (private, mode 0600) and plugvault.pub (public) to the
output directory. Existing key files are not overwritten unless --force
is given.`,

		RunE: executeKeygen,
	}

	keygenCmd.Flags().StringVarP(&keygenDir, "out", "o", ".",
		"Output directory for the key files")
	keygenCmd.Flags().StringVar(&keygenComment, "comment", "plugvault signing key",
		"Untrusted comment embedded in the key files")
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false,
		"Overwrite existing key files")
	return keygenCmd
}

func executeKeygen(cmd *cobra.Command, args []string) error {
	privPath := filepath.Join(keygenDir, "plugvault.key")
	pubPath := filepath.Join(keygenDir, "plugvault.pub")

	if !keygenForce {
		for _, path := range []string{privPath, pubPath} {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}
	}

	pk, sk, err := minisign.GenerateKey()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(keygenDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(privPath, []byte(sk.MarshalText(keygenComment)), 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	pubContent := fmt.Sprintf("untrusted comment: %s\n%s\n", keygenComment, pk.String())
	if err := os.WriteFile(pubPath, []byte(pubContent), 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "private key: %s\n", privPath)
	fmt.Fprintf(out, "public key:  %s\n", pubPath)
	fmt.Fprintf(out, "key id:      %x\n", pk.KeyID)
	return nil
}
