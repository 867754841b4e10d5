package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txdetect/internal/daemon"
	"github.com/ArionMiles/txdetect/internal/plugins"
)

func scanCmd() *cobra.Command {
	var (
		asJSON   bool
		lookback time.Duration
		maxCount int
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the SMS inbox once",
		Long: `Read recent bank SMS from the inbox, run them through the detection store and
print the transactions that would be queued for confirmation. Already processed or
dismissed transactions are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Nothing is confirmed during a scan, so no writer is opened.
			cfg.Export.Writer = "none"
			if lookback > 0 {
				cfg.Detection.ScanLookback = lookback
			}
			if maxCount > 0 {
				cfg.Detection.ScanMaxCount = maxCount
			}

			svc, err := daemon.New(plugins.Default(), nil, logger).Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					logger.Warn("closing detection service", "error", err)
				}
			}()

			settings := svc.Store.CheckPermissions(cmd.Context())
			if !settings.SmsPermissionGranted {
				return fmt.Errorf("sms permission not granted on platform %s", svc.Platform.Name())
			}

			queued := svc.Store.ScanRecentSms(cmd.Context())
			pending := svc.Store.Snapshot().PendingTransactions

			if asJSON {
				return printJSON(cmd.OutOrStdout(), pending)
			}

			fmt.Printf("Found %d new transactions\n\n", queued)
			for _, tx := range pending {
				fmt.Printf("%s  %-8s %10s  %-24s %s\n",
					tx.Timestamp.Format("2006-01-02 15:04"),
					tx.Kind,
					tx.Amount.StringFixed(2),
					displayMerchant(tx.Merchant),
					tx.SourceApp,
				)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&lookback, "lookback", 0, "how far back to read the inbox (default from config)")
	cmd.Flags().IntVar(&maxCount, "max", 0, "maximum messages to read (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print transactions as JSON")
	return cmd
}

func displayMerchant(m string) string {
	if m == "" {
		return "-"
	}
	return m
}
