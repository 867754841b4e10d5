package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txdetect/pkg/client"
)

func setupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Authorize the Google Sheets export",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSetup(cfg.Export.Sheets.ClientSecretFile, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-authenticate even if a token exists")
	return cmd
}

// runSetup handles the OAuth setup flow.
func runSetup(secretsPath string, force bool) error {
	fmt.Println("=== txdetect Setup ===")
	fmt.Println()

	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", secretsPath, secretsPath)
	}

	tokenFile := client.TokenFile(secretsPath)
	if !force && client.HasToken(secretsPath) {
		fmt.Printf("Already authenticated! Token file exists: %s\n", tokenFile)
		fmt.Println()
		fmt.Println("To re-authenticate, run: txdetect setup --force")
		return nil
	}

	if force {
		if err := os.Remove(tokenFile); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Println("Forcing re-authentication...")
		fmt.Println()
	}

	fmt.Println("This will set up OAuth authentication with Google.")
	fmt.Println()
	fmt.Println("Required permissions:")
	fmt.Println("  - Sheets: Read and write spreadsheets (to append confirmed transactions)")
	fmt.Println()

	if _, err := client.New(secretsPath, logger, client.SheetsScope); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Println()
	fmt.Printf("Token saved to: %s\n", tokenFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set export.writer to sheets in your config")
	fmt.Println("  2. Run 'txdetect run' to start detecting transactions")
	fmt.Println()

	return nil
}
