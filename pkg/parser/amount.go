package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	currencyPrefix = `(?:\brs\.?|\binr|₹)`
	amountNumber   = `([0-9][0-9,]*(?:\.[0-9]+)?)`
	directionVerbs = `(?:debited|credited|paid|sent|received|spent|withdrawn|transferred|deposited|refunded)`
)

// amountMatcher is one template in the ordered amount fallback list.
type amountMatcher struct {
	name string
	re   *regexp.Regexp
}

// amountMatchers are tried in order; the first template that yields a positive amount
// wins. Contextual templates come before the generic currency match so that a
// balance or limit figure earlier in the text is not mistaken for the amount moved.
var amountMatchers = []amountMatcher{
	{
		name: "currency-before-direction",
		re:   regexp.MustCompile(`(?i)` + currencyPrefix + `\s*` + amountNumber + `\s*(?:has\s+been\s+|is\s+|was\s+)?` + directionVerbs),
	},
	{
		name: "direction-before-currency",
		re:   regexp.MustCompile(`(?i)(?:` + directionVerbs + `|debit|credit|refund)\s+(?:with\s+|by\s+|for\s+|of\s+)?` + currencyPrefix + `\s*` + amountNumber),
	},
	{
		name: "amount-keyword",
		re:   regexp.MustCompile(`(?i)\b(?:amount|amt)\b\s*(?:of\s+)?[:=]?\s*` + currencyPrefix + `?\s*` + amountNumber),
	},
	{
		name: "currency-prefixed",
		re:   regexp.MustCompile(`(?i)` + currencyPrefix + `\s*` + amountNumber),
	},
}

func extractAmount(text string) (decimal.Decimal, bool) {
	for _, m := range amountMatchers {
		for _, match := range m.re.FindAllStringSubmatch(text, -1) {
			if amount, ok := parseAmount(match[1]); ok {
				return amount, true
			}
		}
	}
	return decimal.Zero, false
}

// parseAmount strips thousands separators and accepts only positive values.
func parseAmount(raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}
