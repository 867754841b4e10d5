package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/reader/notification"
	"github.com/ArionMiles/txdetect/pkg/reader/sms"
)

var errNotTransaction = errors.New("not a transaction")

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Run a single message through the parsers",
		Long: `Parse one SMS or notification the same way the detectors do and print the
detected transaction as JSON. The message text is read from the arguments or, when
none are given, from stdin.`,
	}

	cmd.AddCommand(parseSmsCmd())
	cmd.AddCommand(parseNotificationCmd())
	return cmd
}

func parseSmsCmd() *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "sms [body]",
		Short: "Parse a bank SMS",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := messageText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			tx, ok := sms.Process(api.RawSms{
				SenderAddress: sender,
				Body:          body,
				TimestampMs:   time.Now().UnixMilli(),
			})
			if !ok {
				return errNotTransaction
			}
			return printJSON(cmd.OutOrStdout(), tx)
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "sender address, e.g. AD-HDFCBK")
	_ = cmd.MarkFlagRequired("sender")
	return cmd
}

func parseNotificationCmd() *cobra.Command {
	var app, title string

	cmd := &cobra.Command{
		Use:   "notification [text]",
		Short: "Parse a UPI app notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := messageText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			tx, ok := notification.Process(api.RawNotification{
				AppPackage:  app,
				Title:       title,
				Text:        text,
				TimestampMs: time.Now().UnixMilli(),
			})
			if !ok {
				return errNotTransaction
			}
			return printJSON(cmd.OutOrStdout(), tx)
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "posting app package, e.g. com.phonepe.app")
	cmd.Flags().StringVar(&title, "title", "", "notification title")
	_ = cmd.MarkFlagRequired("app")
	return cmd
}

func messageText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no message text given")
	}
	return text, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

