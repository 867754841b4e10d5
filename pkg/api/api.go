// Package api defines the core data structures shared by the parsers, readers and
// the detection store.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the money-flow direction of a parsed message.
type Direction string

// Directions recognized by the parsers.
const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Source identifies which stream produced a DetectedTransaction.
type Source string

// Sources.
const (
	SourceNotification Source = "notification"
	SourceSms          Source = "sms"
)

// Kind is the bookkeeping classification offered to the user.
type Kind string

// Kinds. The parsers only produce Income and Expense; Transfer exists for consumers
// that reclassify a confirmed record.
const (
	KindIncome   Kind = "income"
	KindExpense  Kind = "expense"
	KindTransfer Kind = "transfer"
)

// KindFor maps a parsed direction onto a transaction kind.
func KindFor(d Direction) Kind {
	if d == Credit {
		return KindIncome
	}
	return KindExpense
}

// RawNotification is a push notification as delivered by the OS.
type RawNotification struct {
	AppPackage  string `json:"appPackage"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	SubText     string `json:"subText,omitempty"`
	BigText     string `json:"bigText,omitempty"`
	TimestampMs int64  `json:"timestampMs"`
}

// RawSms is an inbox record.
type RawSms struct {
	ID            string `json:"id"`
	SenderAddress string `json:"senderAddress"`
	Body          string `json:"body"`
	TimestampMs   int64  `json:"timestampMs"`
	IsRead        bool   `json:"isRead"`
}

// ParsedUpiTransaction is the result of a successful UPI notification parse.
type ParsedUpiTransaction struct {
	Direction     Direction
	Amount        decimal.Decimal
	Merchant      string
	UpiID         string
	ReferenceID   string
	SourceAppName string
}

// ParsedBankTransaction is the result of a successful bank SMS parse.
type ParsedBankTransaction struct {
	Direction         Direction
	Amount            decimal.Decimal
	AccountLastDigits string
	BankName          string
	Merchant          string
	// BalanceAfter is nil when the message carries no available-balance figure.
	BalanceAfter *decimal.Decimal
	ReferenceID  string
}

// DetectedTransaction is a parsed, normalized event awaiting user confirmation.
type DetectedTransaction struct {
	ID            string          `json:"id"`
	Source        Source          `json:"source"`
	SourceApp     string          `json:"sourceApp,omitempty"`
	Kind          Kind            `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Merchant      string          `json:"merchant,omitempty"`
	UpiID         string          `json:"upiId,omitempty"`
	AccountNumber string          `json:"accountNumber,omitempty"`
	BankName      string          `json:"bankName,omitempty"`
	ReferenceID   string          `json:"referenceId,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	RawText       string          `json:"rawText"`
	IsProcessed   bool            `json:"isProcessed"`
	IsDismissed   bool            `json:"isDismissed"`
}

// DetectionSettings holds the user's listener toggles and the cached permission state.
type DetectionSettings struct {
	NotificationListenerEnabled   bool `json:"notificationListenerEnabled"`
	SmsReaderEnabled              bool `json:"smsReaderEnabled"`
	AutoShowPrompt                bool `json:"autoShowPrompt"`
	NotificationPermissionGranted bool `json:"notificationPermissionGranted"`
	SmsPermissionGranted          bool `json:"smsPermissionGranted"`
}

// DefaultSettings returns the settings used before anything has been persisted.
func DefaultSettings() DetectionSettings {
	return DetectionSettings{
		NotificationListenerEnabled: true,
		SmsReaderEnabled:            true,
		AutoShowPrompt:              true,
	}
}

// PersistedState is the single durable record kept by a StateStore.
type PersistedState struct {
	ProcessedIDs []string          `json:"processedIds"`
	DismissedIDs []string          `json:"dismissedIds"`
	Settings     DetectionSettings `json:"settings"`
}

// Snapshot is a point-in-time view of the detection store for consumers.
type Snapshot struct {
	PendingTransactions []DetectedTransaction `json:"pendingTransactions"`
	Settings            DetectionSettings     `json:"settings"`
	IsListening         bool                  `json:"isListening"`
	IsSmsWatching       bool                  `json:"isSmsWatching"`
}

// ErrNoState is returned by StateStore.Load when nothing has been saved yet.
var ErrNoState = errors.New("no persisted state")

// StateStore persists the detection store's durable record.
type StateStore interface {
	Load(ctx context.Context) (PersistedState, error)
	Save(ctx context.Context, state PersistedState) error
	Close() error
}

// Writer consumes confirmed transactions from a channel and writes them to a destination.
// Write returns when the channel is closed or the context is canceled.
type Writer interface {
	Write(ctx context.Context, in <-chan *DetectedTransaction) error
}
