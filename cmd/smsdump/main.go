// Command smsdump reads bank SMS from the device inbox and dumps them as JSON fixtures.
// This utility is used to collect SMS samples for parser tests.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/config"
	"github.com/ArionMiles/txdetect/pkg/logging"
	"github.com/ArionMiles/txdetect/pkg/parser"
	"github.com/ArionMiles/txdetect/pkg/platform"
	"github.com/ArionMiles/txdetect/pkg/platform/termux"
)

const dumpDir = "testdata/dump"

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	cfg, err := config.Load(os.Getenv("TXDETECT_CONFIG_FILE"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	plat, err := platform.Detect(cfg.Platform.Mode, termux.Config{
		PollInterval: cfg.Platform.PollInterval,
		Attempts:     cfg.Platform.ExecAttempts,
		RetryDelay:   cfg.Platform.ExecRetryDelay,
		Location:     loc,
	}, logger)
	if err != nil {
		logger.Error("failed to select platform", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	granted, err := plat.SmsPermission(ctx)
	if err != nil || !granted {
		logger.Error("sms permission not available", "platform", plat.Name(), "error", err)
		os.Exit(1)
	}

	since := time.Now().Add(-cfg.Detection.ScanLookback)
	messages, err := plat.ListSms(ctx, since, cfg.Detection.ScanMaxCount)
	if err != nil {
		logger.Error("failed to list sms", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		logger.Error("failed to create dump directory", "error", err)
		os.Exit(1)
	}

	totalDumped := 0
	for _, m := range messages {
		bank, ok := parser.IsBankSender(m.SenderAddress)
		if !ok {
			logger.Debug("skipping non-bank sender", "sender", m.SenderAddress)
			continue
		}

		dumped, err := dumpMessage(m, string(bank), logger)
		if err != nil {
			logger.Warn("failed to dump message", "id", m.ID, "error", err)
			continue
		}
		if dumped {
			totalDumped++
		}
	}

	logger.Info("sms dump complete", "read", len(messages), "total_dumped", totalDumped, "directory", dumpDir)
}

// dumpMessage writes m unless a fixture for it already exists.
func dumpMessage(m api.RawSms, bank string, logger *slog.Logger) (bool, error) {
	received := time.UnixMilli(m.TimestampMs).Format("2006-01-02_150405")
	filename := sanitizeFilename(fmt.Sprintf("%s_%s_%s", bank, received, m.ID)) + ".json"
	filePath := filepath.Join(dumpDir, filename)

	if _, err := os.Stat(filePath); err == nil {
		logger.Debug("file already exists, skipping", "file", filename)
		return false, nil
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return false, fmt.Errorf("marshaling sms: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return false, fmt.Errorf("writing file: %w", err)
	}

	logger.Info("dumped sms",
		"file", filename,
		"sender", m.SenderAddress,
		"transaction", parser.IsTransactionSms(m.Body),
	)
	return true, nil
}

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\s]`)
	underscores = regexp.MustCompile(`_+`)
)

func sanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = underscores.ReplaceAllString(name, "_")

	name = strings.Trim(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}
