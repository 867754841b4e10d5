package parser

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txdetect/pkg/api"
)

func TestParseUpiNotification_PhonePe(t *testing.T) {
	got, ok := ParseUpiNotification(api.RawNotification{
		AppPackage:  "com.phonepe.app",
		Text:        "₹500 paid to Ramesh Stores",
		TimestampMs: 1704444000000,
	})
	require.True(t, ok)

	assert.Equal(t, api.Debit, got.Direction)
	assert.True(t, decimal.NewFromInt(500).Equal(got.Amount))
	assert.Equal(t, "Ramesh Stores", got.Merchant)
	assert.Equal(t, "PhonePe", got.SourceAppName)
	assert.Empty(t, got.UpiID)
	assert.Empty(t, got.ReferenceID)
}

func TestParseUpiNotification(t *testing.T) {
	tests := []struct {
		name         string
		n            api.RawNotification
		wantDir      api.Direction
		wantAmount   string
		wantMerchant string
		wantUpiID    string
		wantRef      string
		wantApp      string
	}{
		{
			name: "google pay credit",
			n: api.RawNotification{
				AppPackage: "com.google.android.apps.nbu.paisa.user",
				Title:      "Payment received",
				Text:       "₹1,200 received from Rahul Sharma via UPI",
			},
			wantDir:      api.Credit,
			wantAmount:   "1200",
			wantMerchant: "Rahul Sharma",
			wantApp:      "Google Pay",
		},
		{
			name: "completion wording defaults to debit",
			n: api.RawNotification{
				AppPackage: "net.one97.paytm",
				Title:      "Payment Successful",
				Text:       "₹249 to Netflix. UPI Ref: 412345678901",
			},
			wantDir:      api.Debit,
			wantAmount:   "249",
			wantMerchant: "Netflix",
			wantRef:      "412345678901",
			wantApp:      "Paytm",
		},
		{
			name: "vpa payee",
			n: api.RawNotification{
				AppPackage: "com.google.android.apps.nbu.paisa.user",
				Text:       "You paid ₹75 to zomato@hdfcbank",
			},
			wantDir:      api.Debit,
			wantAmount:   "75",
			wantMerchant: "zomato@hdfcbank",
			wantUpiID:    "zomato@hdfcbank",
			wantApp:      "Google Pay",
		},
		{
			name: "big text replaces short text",
			n: api.RawNotification{
				AppPackage: "com.phonepe.app",
				Text:       "₹500 paid to…",
				BigText:    "₹500 paid to Ramesh Stores on 05 Jan",
			},
			wantDir:      api.Debit,
			wantAmount:   "500",
			wantMerchant: "Ramesh Stores",
			wantApp:      "PhonePe",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseUpiNotification(tc.n)
			require.True(t, ok)
			assert.Equal(t, tc.wantDir, got.Direction)
			assert.True(t, decimal.RequireFromString(tc.wantAmount).Equal(got.Amount), "amount: got %s, want %s", got.Amount, tc.wantAmount)
			assert.Equal(t, tc.wantMerchant, got.Merchant)
			assert.Equal(t, tc.wantUpiID, got.UpiID)
			assert.Equal(t, tc.wantRef, got.ReferenceID)
			assert.Equal(t, tc.wantApp, got.SourceAppName)
		})
	}
}

func TestParseUpiNotification_Rejections(t *testing.T) {
	tests := []struct {
		name string
		n    api.RawNotification
	}{
		{"unknown package", api.RawNotification{AppPackage: "com.whatsapp", Text: "₹500 paid to Ramesh Stores"}},
		{"empty package", api.RawNotification{Text: "₹500 paid to Ramesh Stores"}},
		{"otp", api.RawNotification{AppPackage: "com.phonepe.app", Text: "482913 is your OTP to link your account"}},
		{"promotion", api.RawNotification{AppPackage: "net.one97.paytm", Title: "Win ₹100 cashback offer!", Text: "Click here to claim"}},
		{"completion without amount", api.RawNotification{AppPackage: "net.one97.paytm", Text: "Payment successful"}},
		{"empty", api.RawNotification{AppPackage: "com.phonepe.app"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseUpiNotification(tc.n)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestIsTransactionNotification(t *testing.T) {
	assert.False(t, IsTransactionNotification("Your OTP is 482913"))
	assert.True(t, IsTransactionNotification("Payment successful ₹120"))
	assert.False(t, IsTransactionNotification("Payment successful ₹120 verification code 1234"))
	// SMS classification does not accept neutral completion wording.
	assert.False(t, IsTransactionSms("Payment successful ₹120"))
}

func TestNotificationText(t *testing.T) {
	n := api.RawNotification{Title: " PhonePe ", Text: "short", BigText: "long body", SubText: "HDFC ****1234"}
	assert.Equal(t, "PhonePe\nlong body\nHDFC ****1234", NotificationText(n))

	n = api.RawNotification{Text: "only text"}
	assert.Equal(t, "only text", NotificationText(n))
}

func TestIsUpiApp(t *testing.T) {
	app, ok := IsUpiApp("com.phonepe.app")
	assert.True(t, ok)
	assert.Equal(t, AppPhonePe, app)

	_, ok = IsUpiApp("com.phonepe.app.debug")
	assert.False(t, ok)

	for _, pkg := range AppPackages() {
		_, ok := IsUpiApp(pkg)
		assert.True(t, ok, pkg)
	}
}

func TestExtractAmount_Ordering(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"directional amount beats earlier balance", "Avl Bal Rs 9,000.00. Rs 250 debited", "250", true},
		{"keyword then currency", "debited with INR 1,00,000.50 towards rent", "100000.50", true},
		{"amount keyword without currency", "Txn amount: 432.10 approved", "432.10", true},
		{"generic currency", "₹99 to Uber", "99", true},
		{"zero amount is skipped", "Rs 0 debited, INR 45 charged", "45", true},
		{"trailing period is not a decimal point", "Paid Rs.500.", "500", true},
		{"no amount", "nothing to see", "", false},
		{"hours are not rupees", "debited within 24 hours 30 minutes", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractAmount(normalizeText(tc.text))
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCleanMerchant(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"Ramesh Stores", "Ramesh Stores", true},
		{"you", "", false},
		{"your account", "", false},
		{"The Shop", "", false},
		{"a", "", false},
		{strings.Repeat("x", 51), "", false},
		{"XX1234", "", false},
		{"VPA swiggy@icici", "swiggy@icici", true},
		{" Big Bazaar. ", "Big Bazaar", true},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := cleanMerchant(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractUpiID_SkipsEmail(t *testing.T) {
	assert.Empty(t, extractUpiID("mail ramesh@gmail.com for the receipt"))
	assert.Equal(t, "ramesh@okicici", extractUpiID("pay ramesh@okicici now"))
}
