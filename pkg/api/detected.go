package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idNamespace scopes transaction ids so they never collide with other UUIDv5 users.
var idNamespace = uuid.MustParse("6f1c0d3e-5b7a-4c64-9a8e-2b1f7c9d4e10")

// TransactionID derives a stable id from the source and the source's own identity of
// the message. Reading the same message twice yields the same id.
func TransactionID(source Source, parts ...string) string {
	name := string(source) + "\x00" + strings.Join(parts, "\x00")
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// NewNotificationTransaction wraps a parsed UPI notification for the detection store.
func NewNotificationTransaction(n RawNotification, rawText string, p *ParsedUpiTransaction) DetectedTransaction {
	return DetectedTransaction{
		ID:          TransactionID(SourceNotification, n.AppPackage, strconv.FormatInt(n.TimestampMs, 10), rawText),
		Source:      SourceNotification,
		SourceApp:   p.SourceAppName,
		Kind:        KindFor(p.Direction),
		Amount:      p.Amount,
		Merchant:    p.Merchant,
		UpiID:       p.UpiID,
		ReferenceID: p.ReferenceID,
		Timestamp:   time.UnixMilli(n.TimestampMs),
		RawText:     rawText,
	}
}

// NewSmsTransaction wraps a parsed bank SMS for the detection store. The inbox id is
// preferred as identity; without one the sender, time and body stand in.
func NewSmsTransaction(m RawSms, p *ParsedBankTransaction) DetectedTransaction {
	var id string
	if m.ID != "" {
		id = TransactionID(SourceSms, "inbox", m.ID, m.SenderAddress)
	} else {
		id = TransactionID(SourceSms, m.SenderAddress, strconv.FormatInt(m.TimestampMs, 10), m.Body)
	}

	return DetectedTransaction{
		ID:            id,
		Source:        SourceSms,
		SourceApp:     m.SenderAddress,
		Kind:          KindFor(p.Direction),
		Amount:        p.Amount,
		Merchant:      p.Merchant,
		AccountNumber: p.AccountLastDigits,
		BankName:      p.BankName,
		ReferenceID:   p.ReferenceID,
		Timestamp:     time.UnixMilli(m.TimestampMs),
		RawText:       m.Body,
	}
}
