package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/ArionMiles/txdetect/internal/plugins"
	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/client"
	"github.com/ArionMiles/txdetect/pkg/platform"
	"github.com/ArionMiles/txdetect/pkg/platform/termux"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check platform, permissions, state and export readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context())
		},
	}
}

// runStatus checks the configuration and prints what the daemon would be able to do.
func runStatus(ctx context.Context) error {
	fmt.Println("=== txdetect Status ===")
	fmt.Println()

	allGood := true

	if cfgFile != "" {
		fmt.Printf("Config file (%s): ✓ Loaded\n", cfgFile)
	} else {
		fmt.Println("Config file: - using defaults and environment")
	}

	checkPlatform(ctx, &allGood)
	checkState(ctx, &allGood)
	checkExport(&allGood)

	printFinalStatus(allGood)
	return nil
}

func checkPlatform(ctx context.Context, allGood *bool) {
	loc, err := cfg.Location()
	if err != nil {
		fmt.Printf("Timezone: ✗ %v\n", err)
		*allGood = false
		return
	}

	plat, err := platform.Detect(cfg.Platform.Mode, termux.Config{
		PollInterval: cfg.Platform.PollInterval,
		Attempts:     cfg.Platform.ExecAttempts,
		RetryDelay:   cfg.Platform.ExecRetryDelay,
		Location:     loc,
	}, logger)
	if err != nil {
		fmt.Printf("Platform (%s): ✗ %v\n", cfg.Platform.Mode, err)
		*allGood = false
		return
	}

	if plat.Name() == platform.ModeDisabled {
		fmt.Println("Platform: ⚠ disabled (no device access, nothing will be detected)")
		*allGood = false
		return
	}
	fmt.Printf("Platform: ✓ %s\n", plat.Name())

	fmt.Print("  Notification access: ")
	printGrant(plat.NotificationPermission(ctx))
	fmt.Print("  SMS access: ")
	printGrant(plat.SmsPermission(ctx))
}

func printGrant(granted bool, err error) {
	switch {
	case err != nil:
		fmt.Printf("✗ %v\n", err)
	case granted:
		fmt.Println("✓ Granted")
	default:
		fmt.Println("✗ Not granted")
	}
}

func checkState(ctx context.Context, allGood *bool) {
	fmt.Printf("State backend (%s): ", cfg.State.Backend)

	store, err := plugins.Default().CreateState(ctx, cfg.State.Backend, cfg.State, logger)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	defer store.Close()

	state, err := store.Load(ctx)
	switch {
	case errors.Is(err, api.ErrNoState):
		fmt.Println("✓ Empty")
	case err != nil:
		fmt.Printf("✗ %v\n", err)
		*allGood = false
	default:
		fmt.Printf("✓ %d processed, %d dismissed\n", len(state.ProcessedIDs), len(state.DismissedIDs))
		fmt.Printf("  Notifications enabled: %t, SMS enabled: %t, auto-show prompt: %t\n",
			state.Settings.NotificationListenerEnabled,
			state.Settings.SmsReaderEnabled,
			state.Settings.AutoShowPrompt,
		)
	}
}

func checkExport(allGood *bool) {
	fmt.Printf("Export writer: %s\n", cfg.Export.Writer)
	if cfg.Export.Writer != "sheets" {
		return
	}

	secretsPath := cfg.Export.Sheets.ClientSecretFile
	fmt.Printf("  Credentials file (%s): ", secretsPath)
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		fmt.Println("✗ Not found")
		*allGood = false
	} else {
		fmt.Println("✓ Found")
	}

	tokenFile := client.TokenFile(secretsPath)
	fmt.Printf("  OAuth token (%s): ", tokenFile)
	token, err := checkToken(tokenFile)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}

	if token.Expiry.Before(time.Now()) {
		fmt.Println("⚠ Expired (will refresh on next run)")
	} else {
		fmt.Printf("✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
}

func printFinalStatus(allGood bool) {
	fmt.Println()
	if allGood {
		fmt.Println("Status: ✓ Ready to run")
		fmt.Println()
		fmt.Println("Run 'txdetect run' to start detecting transactions.")
	} else {
		fmt.Println("Status: ✗ Configuration issues detected")
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'txdetect status' again.")
	}
}

func checkToken(tokenPath string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("not found (run 'txdetect setup')")
		}
		return nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid format")
	}

	return &token, nil
}
