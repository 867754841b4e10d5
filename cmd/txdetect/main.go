package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txdetect/pkg/config"
	"github.com/ArionMiles/txdetect/pkg/logging"
)

var (
	cfgFile string
	version = "dev"

	cfg    *config.Config
	logger *slog.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "txdetect",
		Short: "Detect UPI and bank transactions from notifications and SMS",
		Long: `txdetect watches payment app notifications and bank SMS on the device,
queues every detected transaction for confirmation and exports the ones you confirm.`,
		Version:           version,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: initConfig,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml or json)")

	root.AddCommand(runCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(parseCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(setupCmd())
	return root
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg, err := logging.FromSettings(loaded.Log.Level, loaded.Log.JSON)
	if err != nil {
		return err
	}

	cfg = loaded
	logger = logging.Setup(logCfg)
	return nil
}
