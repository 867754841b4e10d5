package api

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewSmsTransaction(t *testing.T) {
	parsed := &ParsedBankTransaction{
		Direction:         Debit,
		Amount:            decimal.RequireFromString("1250.00"),
		AccountLastDigits: "4321",
		BankName:          "HDFC Bank",
		ReferenceID:       "123ABC456",
	}
	sms := RawSms{ID: "42", SenderAddress: "AD-HDFCBK", Body: "body", TimestampMs: 1704444000000}

	got := NewSmsTransaction(sms, parsed)

	assert.Equal(t, SourceSms, got.Source)
	assert.Equal(t, KindExpense, got.Kind)
	assert.Equal(t, "AD-HDFCBK", got.SourceApp)
	assert.Equal(t, "4321", got.AccountNumber)
	assert.Equal(t, "1250.00", got.Amount.StringFixed(2))
	assert.True(t, time.UnixMilli(1704444000000).Equal(got.Timestamp))
	assert.False(t, got.IsProcessed)
	assert.False(t, got.IsDismissed)

	again := NewSmsTransaction(sms, parsed)
	assert.Equal(t, got.ID, again.ID, "same inbox record yields the same id")

	sms.ID = "43"
	assert.NotEqual(t, got.ID, NewSmsTransaction(sms, parsed).ID)
}

func TestNewNotificationTransaction(t *testing.T) {
	parsed := &ParsedUpiTransaction{
		Direction:     Credit,
		Amount:        decimal.NewFromInt(200),
		Merchant:      "Rahul",
		SourceAppName: "PhonePe",
	}
	n := RawNotification{AppPackage: "com.phonepe.app", Text: "₹200 received from Rahul", TimestampMs: 1000}

	got := NewNotificationTransaction(n, n.Text, parsed)

	assert.Equal(t, SourceNotification, got.Source)
	assert.Equal(t, KindIncome, got.Kind)
	assert.Equal(t, "PhonePe", got.SourceApp)
	assert.Equal(t, n.Text, got.RawText)
	assert.Equal(t, got.ID, NewNotificationTransaction(n, n.Text, parsed).ID)

	n.TimestampMs++
	assert.NotEqual(t, got.ID, NewNotificationTransaction(n, n.Text, parsed).ID)
}

func TestTransactionID_SourceScoped(t *testing.T) {
	assert.NotEqual(t, TransactionID(SourceSms, "a"), TransactionID(SourceNotification, "a"))
}
