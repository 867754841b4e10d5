package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/txdetect/pkg/api"
)

const (
	merchantName = `([a-z0-9][a-z0-9 &'_@/.\-]*?)`
	// merchantEnd stops a lazy merchant capture at a trailing clause, punctuation or
	// the end of the line.
	merchantEnd = `(?:\s+(?:on|ref|via|using|upi|avl|bal|at|dated|thru|through|by|from|to|txn|info)\b|\.(?:\s|$)|[,;:(]|\s*$)`
)

var (
	accountPattern = regexp.MustCompile(`(?i)\b(?:a/c|acct|account|ac|card)\b\.?\s*(?:no\.?\s*)?(?:ending\s+(?:with\s+|in\s+)?)?[x*]*\s*([0-9]{3,})\b`)

	balancePattern = regexp.MustCompile(`(?i)\b(?:avl\.?\s*bal(?:ance)?|available\s+bal(?:ance)?|a/c\s+bal(?:ance)?|bal(?:ance)?)\b\.?\s*(?:is\s+)?[:\-]?\s*` + currencyPrefix + `\s*` + amountNumber)

	referencePattern = regexp.MustCompile(`(?i)\b(?:upi\s+ref|ref(?:erence)?|utr|rrn|txn(?:\s*id)?|transaction\s+id)\b\.?\s*(?:no|number|id)?\.?\s*[:#\-]?\s*([a-z0-9]{6,})`)

	upiIDPattern = regexp.MustCompile(`(?i)\b([a-z0-9][a-z0-9._\-]{1,255}@[a-z][a-z0-9]{1,63})\b`)

	maskedAccount = regexp.MustCompile(`(?i)^[x*]*[0-9]+$`)
)

// merchantMatcher is one template in an ordered merchant fallback list.
type merchantMatcher struct {
	name string
	re   *regexp.Regexp
}

func newMerchantMatcher(name, lead string) merchantMatcher {
	return merchantMatcher{
		name: name,
		re:   regexp.MustCompile(`(?im)\b` + lead + `\s+` + merchantName + merchantEnd),
	}
}

var (
	upiDebitMerchants = []merchantMatcher{
		newMerchantMatcher("paid-to", `paid\s+to`),
		newMerchantMatcher("sent-to", `sent\s+to`),
		newMerchantMatcher("payment-to", `payment\s+(?:of\s+\S+\s+)?to`),
		newMerchantMatcher("to", `to`),
		newMerchantMatcher("at", `at`),
	}
	upiCreditMerchants = []merchantMatcher{
		newMerchantMatcher("received-from", `received\s+from`),
		newMerchantMatcher("from", `from`),
		newMerchantMatcher("by", `by`),
	}
	bankDebitMerchants = []merchantMatcher{
		newMerchantMatcher("at", `at`),
		newMerchantMatcher("to", `(?:to|towards)`),
		newMerchantMatcher("for", `for`),
	}
	bankCreditMerchants = []merchantMatcher{
		newMerchantMatcher("from", `from`),
		newMerchantMatcher("by", `by`),
	}
)

// merchantStopwords are pronoun captures from "to your ..." style phrases.
var merchantStopwords = map[string]struct{}{
	"you":  {},
	"your": {},
	"the":  {},
}

func extractMerchant(text string, matchers []merchantMatcher) string {
	for _, m := range matchers {
		for _, match := range m.re.FindAllStringSubmatch(text, -1) {
			if name, ok := cleanMerchant(match[1]); ok {
				return name
			}
		}
	}
	return ""
}

func cleanMerchant(raw string) (string, bool) {
	name := strings.Trim(raw, " .-_/'&")
	if len(name) > 4 && strings.EqualFold(name[:4], "vpa ") {
		name = name[4:]
	}
	if len(name) < 2 || len(name) > 50 {
		return "", false
	}
	first, _, _ := strings.Cut(strings.ToLower(name), " ")
	if _, stop := merchantStopwords[first]; stop {
		return "", false
	}
	if maskedAccount.MatchString(name) || strings.HasPrefix(strings.ToLower(name), "a/c") {
		return "", false
	}
	return name, true
}

// extractAccountDigits returns the last four digits of the first account or card
// number mentioned.
func extractAccountDigits(text string) string {
	match := accountPattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	digits := match[1]
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return digits
}

func extractBalance(text string) (decimal.Decimal, bool) {
	for _, match := range balancePattern.FindAllStringSubmatch(text, -1) {
		if balance, err := decimal.NewFromString(strings.ReplaceAll(match[1], ",", "")); err == nil {
			return balance, true
		}
	}
	return decimal.Zero, false
}

// extractReference returns the first reference-looking token that carries at least
// one digit.
func extractReference(text string) string {
	for _, match := range referencePattern.FindAllStringSubmatch(text, -1) {
		if strings.ContainsAny(match[1], "0123456789") {
			return strings.ToUpper(match[1])
		}
	}
	return ""
}

// extractUpiID returns the first VPA that is not the local part of an email address.
func extractUpiID(text string) string {
	for _, loc := range upiIDPattern.FindAllStringSubmatchIndex(text, -1) {
		end := loc[3]
		if end+1 < len(text) && text[end] == '.' && isLetter(text[end+1]) {
			continue
		}
		return text[loc[2]:end]
	}
	return ""
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// resolveMerchant picks the merchant template list for the parsed direction.
func resolveMerchant(text string, dir api.Direction, debit, credit []merchantMatcher) string {
	if dir == api.Credit {
		return extractMerchant(text, credit)
	}
	return extractMerchant(text, debit)
}
