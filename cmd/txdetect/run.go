package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txdetect/internal/daemon"
	"github.com/ArionMiles/txdetect/internal/plugins"
	"github.com/ArionMiles/txdetect/pkg/client"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the detection daemon",
		Long: `Start every enabled and permitted source, serve the HTTP control surface and
export confirmed transactions until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := plugins.Default()

			httpClient, err := exportClient(registry)
			if err != nil {
				return err
			}

			return daemon.New(registry, httpClient, logger).Run(cmd.Context(), cfg)
		},
	}
}

// exportClient authorizes the configured writer when it talks to a Google API.
func exportClient(registry *plugins.Registry) (*http.Client, error) {
	if cfg.Export.Writer == "none" {
		return nil, nil
	}

	writer, err := registry.GetWriter(cfg.Export.Writer)
	if err != nil {
		return nil, err
	}
	scopes := writer.RequiredScopes()
	if len(scopes) == 0 {
		return nil, nil
	}

	logger.Info("OAuth scopes required", "writer", writer.Name(), "scopes", scopes)
	httpClient, err := client.New(cfg.Export.Sheets.ClientSecretFile, logger, scopes...)
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}
	return httpClient, nil
}
