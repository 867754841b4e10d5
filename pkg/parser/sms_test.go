package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txdetect/pkg/api"
)

func TestParseBankSms_HDFCDebit(t *testing.T) {
	body := "Rs.1,250.00 debited from A/c XX4321 on 05-Jan. Avl Bal Rs.8,750.00. Ref 123ABC456"

	got, ok := ParseBankSms("HDFCBK", body)
	require.True(t, ok)

	assert.Equal(t, api.Debit, got.Direction)
	assert.Equal(t, "1250.00", got.Amount.StringFixed(2))
	assert.Equal(t, "4321", got.AccountLastDigits)
	assert.Equal(t, "HDFC Bank", got.BankName)
	require.NotNil(t, got.BalanceAfter)
	assert.Equal(t, "8750.00", got.BalanceAfter.StringFixed(2))
	assert.Equal(t, "123ABC456", got.ReferenceID)
	assert.Empty(t, got.Merchant)
}

func TestParseBankSms(t *testing.T) {
	tests := []struct {
		name         string
		sender       string
		body         string
		wantDir      api.Direction
		wantAmount   string
		wantMerchant string
		wantAccount  string
		wantRef      string
	}{
		{
			name:         "credit from sender with operator prefix",
			sender:       "AD-SBIINB",
			body:         "Your A/c X9876 is credited by Rs 15,000.00 on 01-02-24 from ACME PAYROLL. Avl Bal Rs 40,210.55",
			wantDir:      api.Credit,
			wantAmount:   "15000.00",
			wantMerchant: "ACME PAYROLL",
			wantAccount:  "9876",
		},
		{
			name:         "card spend at merchant",
			sender:       "VM-ICICIB",
			body:         "INR 899.00 spent on ICICI Bank Card XX1122 on 10-Mar-24 at SWIGGY. Avl Limit: INR 45,000.00",
			wantDir:      api.Debit,
			wantAmount:   "899.00",
			wantMerchant: "SWIGGY",
			wantAccount:  "1122",
		},
		{
			name:         "upi debit with reference number",
			sender:       "JD-AXISBK",
			body:         "Rs 340 debited from a/c no. XX5678 to VPA chai.point@okaxis UPI Ref No 412345678901",
			wantDir:      api.Debit,
			wantAmount:   "340",
			wantMerchant: "chai.point@okaxis",
			wantAccount:  "5678",
			wantRef:      "412345678901",
		},
		{
			name:        "refund wins over debit vocabulary",
			sender:      "KOTAKB",
			body:        "Refund of Rs.250 for your debited amount has been credited to A/c XX1111",
			wantDir:     api.Credit,
			wantAmount:  "250",
			wantAccount: "1111",
		},
		{
			name:         "full-width digits are normalized",
			sender:       "HDFCBK",
			body:         "Rs.５００ debited from A/c XX4321 at ZOMATO",
			wantDir:      api.Debit,
			wantAmount:   "500",
			wantMerchant: "ZOMATO",
			wantAccount:  "4321",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseBankSms(tc.sender, tc.body)
			require.True(t, ok)
			assert.Equal(t, tc.wantDir, got.Direction)
			assert.True(t, decimal.RequireFromString(tc.wantAmount).Equal(got.Amount), "amount: got %s, want %s", got.Amount, tc.wantAmount)
			assert.Equal(t, tc.wantMerchant, got.Merchant)
			assert.Equal(t, tc.wantAccount, got.AccountLastDigits)
			assert.Equal(t, tc.wantRef, got.ReferenceID)
		})
	}
}

func TestParseBankSms_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		body   string
	}{
		{"otp", "HDFCBK", "Your OTP is 482913. Do not share."},
		{"otp mentioning an amount", "HDFCBK", "OTP 482913 for txn of Rs 500 at AMAZON. Do not share."},
		{"unknown sender", "AD-RANDOM", "Rs.1,250.00 debited from A/c XX4321"},
		{"empty sender", "", "Rs.1,250.00 debited from A/c XX4321"},
		{"promotion without direction", "HDFCBK", "Get flat Rs 500 cashback offer on your card. Click here to apply now"},
		{"no direction keyword", "HDFCBK", "Your statement for A/c XX4321 of Rs 5,000 is ready"},
		{"no amount", "HDFCBK", "Your account has been debited. Contact branch."},
		{"zero amount", "HDFCBK", "Rs.0.00 debited from A/c XX4321"},
		{"empty body", "HDFCBK", ""},
		{"garbage", "HDFCBK", "\x00\xff₹₹₹ ,,, ..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseBankSms(tc.sender, tc.body)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestIsTransactionSms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"otp with six digit number", "Your OTP is 482913. Do not share.", false},
		{"verification code", "123456 is your verification code for login", false},
		{"plain debit", "Rs 100 debited from A/c XX1234", true},
		{"cashback credited despite promo wording", "Cashback of Rs 50 credited to your wallet. More offers inside!", true},
		{"pure promotion", "Exclusive offer: flat 20% discount, click here", false},
		{"direction without amount", "Amount credited to your account", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransactionSms(tc.body))
		})
	}
}

func TestIsBankSender(t *testing.T) {
	tests := []struct {
		sender string
		want   Bank
		ok     bool
	}{
		{"HDFCBK", BankHDFC, true},
		{"AD-HDFCBK", BankHDFC, true},
		{"vm-icicib", BankICICI, true},
		{"JM-BOBTXN-S", BankBaroda, true},
		{"+919876543210", "", false},
		{"AMAZON", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.sender, func(t *testing.T) {
			got, ok := IsBankSender(tc.sender)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBanks_EveryConstantHasASender(t *testing.T) {
	all := []Bank{
		BankHDFC, BankICICI, BankSBI, BankAxis, BankKotak, BankPNB, BankBaroda, BankCanara,
		BankUnion, BankIDFC, BankYes, BankIndusInd, BankFederal, BankBOI, BankIndian, BankRBL,
		BankAU, BankPaytm, BankAirtel,
	}
	assert.ElementsMatch(t, all, Banks())
}
