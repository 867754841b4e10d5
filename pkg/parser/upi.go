package parser

import (
	"strings"

	"github.com/ArionMiles/txdetect/pkg/api"
)

// IsTransactionNotification reports whether text reads like a completed payment.
// Unlike SMS, a neutral "payment successful" counts as a direction keyword.
func IsTransactionNotification(text string) bool {
	return classify(normalizeText(text), true)
}

// NotificationText joins the displayable parts of a notification one per line.
// The expanded big text replaces the short text when present.
func NotificationText(n api.RawNotification) string {
	body := n.Text
	if strings.TrimSpace(n.BigText) != "" {
		body = n.BigText
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Title, body, n.SubText} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// ParseUpiNotification extracts a transaction from a UPI app notification.
//
// When neither credit nor debit vocabulary is present the direction defaults to
// Debit: UPI push notifications are overwhelmingly outbound payments, and an explicit
// credit signal is required to flip that.
func ParseUpiNotification(n api.RawNotification) (*api.ParsedUpiTransaction, bool) {
	app, ok := IsUpiApp(n.AppPackage)
	if !ok {
		return nil, false
	}

	text := normalizeText(NotificationText(n))
	if !classify(text, true) {
		return nil, false
	}

	amount, ok := extractAmount(text)
	if !ok {
		return nil, false
	}

	dir, ok := direction(text)
	if !ok {
		dir = api.Debit
	}

	return &api.ParsedUpiTransaction{
		Direction:     dir,
		Amount:        amount,
		Merchant:      resolveMerchant(text, dir, upiDebitMerchants, upiCreditMerchants),
		UpiID:         extractUpiID(text),
		ReferenceID:   extractReference(text),
		SourceAppName: string(app),
	}, true
}
