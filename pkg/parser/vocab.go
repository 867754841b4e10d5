package parser

import (
	"regexp"

	"github.com/ArionMiles/txdetect/pkg/api"
)

var (
	otpVocabulary = regexp.MustCompile(`(?i)\b(?:otp|one[\s-]?time[\s-]?password|verification\s+code|security\s+code|auth(?:entication|orisation|orization)?\s+code|passcode)\b`)

	promoVocabulary = regexp.MustCompile(`(?i)\b(?:offers?|discount|click\s+here|cashback\s+offer|voucher|coupons?|limited\s+period|apply\s+now|pre-?approved|hurry|win)\b`)

	// Credit is checked before debit: refunds, cashback and salary must win over any
	// incidental debit-sounding word in the same message.
	creditVocabulary = regexp.MustCompile(`(?i)\b(?:credited|received|deposited|refund(?:ed)?|cashback|salary|reversed|added\s+to)\b`)

	debitVocabulary = regexp.MustCompile(`(?i)\b(?:debited|paid|sent|spent|withdrawn|transferred|deducted|debit|purchase|payment\s+of|charged)\b`)

	// completionVocabulary proves money moved without naming a direction. Only the
	// notification classifier accepts it.
	completionVocabulary = regexp.MustCompile(`(?i)\b(?:payment|transaction|txn)\s+(?:successful|success|completed?)\b`)
)

// direction returns the first vocabulary hit, credit before debit.
func direction(text string) (api.Direction, bool) {
	switch {
	case creditVocabulary.MatchString(text):
		return api.Credit, true
	case debitVocabulary.MatchString(text):
		return api.Debit, true
	}
	return "", false
}

func hasDirectionKeyword(text string, allowCompletion bool) bool {
	if _, ok := direction(text); ok {
		return true
	}
	return allowCompletion && completionVocabulary.MatchString(text)
}

// classify runs the shared transaction test on normalized text:
// OTP rejects outright, promotional wording rejects unless a direction keyword
// survives outside the promotional phrases, and a direction keyword plus an amount
// are required.
func classify(text string, allowCompletion bool) bool {
	if text == "" || otpVocabulary.MatchString(text) {
		return false
	}
	if promoVocabulary.MatchString(text) {
		rest := promoVocabulary.ReplaceAllString(text, " ")
		if !hasDirectionKeyword(rest, allowCompletion) {
			return false
		}
	}
	if !hasDirectionKeyword(text, allowCompletion) {
		return false
	}
	_, ok := extractAmount(text)
	return ok
}
