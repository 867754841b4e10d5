package parser

import (
	"github.com/ArionMiles/txdetect/pkg/api"
)

// IsTransactionSms reports whether body reads like a completed money movement.
func IsTransactionSms(body string) bool {
	return classify(normalizeText(body), false)
}

// ParseBankSms extracts a transaction from a bank alert. It returns false when the
// sender is not a known bank, the body does not classify as a transaction, or no
// direction can be determined.
func ParseBankSms(sender, body string) (*api.ParsedBankTransaction, bool) {
	bank, ok := IsBankSender(sender)
	if !ok {
		return nil, false
	}

	text := normalizeText(body)
	if !classify(text, false) {
		return nil, false
	}

	dir, ok := direction(text)
	if !ok {
		return nil, false
	}

	amount, ok := extractAmount(text)
	if !ok {
		return nil, false
	}

	parsed := &api.ParsedBankTransaction{
		Direction:         dir,
		Amount:            amount,
		AccountLastDigits: extractAccountDigits(text),
		BankName:          string(bank),
		Merchant:          resolveMerchant(text, dir, bankDebitMerchants, bankCreditMerchants),
		ReferenceID:       extractReference(text),
	}
	if balance, ok := extractBalance(text); ok {
		parsed.BalanceAfter = &balance
	}
	return parsed, true
}
