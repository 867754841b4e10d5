package parser

import "strings"

// Bank is an institution whose SMS alerts are recognized.
type Bank string

// Recognized banks.
const (
	BankHDFC     Bank = "HDFC Bank"
	BankICICI    Bank = "ICICI Bank"
	BankSBI      Bank = "State Bank of India"
	BankAxis     Bank = "Axis Bank"
	BankKotak    Bank = "Kotak Mahindra Bank"
	BankPNB      Bank = "Punjab National Bank"
	BankBaroda   Bank = "Bank of Baroda"
	BankCanara   Bank = "Canara Bank"
	BankUnion    Bank = "Union Bank of India"
	BankIDFC     Bank = "IDFC First Bank"
	BankYes      Bank = "Yes Bank"
	BankIndusInd Bank = "IndusInd Bank"
	BankFederal  Bank = "Federal Bank"
	BankBOI      Bank = "Bank of India"
	BankIndian   Bank = "Indian Bank"
	BankRBL      Bank = "RBL Bank"
	BankAU       Bank = "AU Small Finance Bank"
	BankPaytm    Bank = "Paytm Payments Bank"
	BankAirtel   Bank = "Airtel Payments Bank"
)

// bankSenders maps DLT sender-id fragments to banks. Sender addresses arrive with an
// operator/circle prefix ("AD-", "VM-", "JD-"), so matching is by containment on the
// normalized address.
var bankSenders = []struct {
	id   string
	bank Bank
}{
	{"HDFCBK", BankHDFC},
	{"HDFCBN", BankHDFC},
	{"ICICIB", BankICICI},
	{"ICICIT", BankICICI},
	{"SBIINB", BankSBI},
	{"SBIPSG", BankSBI},
	{"SBIUPI", BankSBI},
	{"ATMSBI", BankSBI},
	{"CBSSBI", BankSBI},
	{"AXISBK", BankAxis},
	{"AXISMR", BankAxis},
	{"KOTAKB", BankKotak},
	{"KOTAKM", BankKotak},
	{"PNBSMS", BankPNB},
	{"BOBTXN", BankBaroda},
	{"BOBSMS", BankBaroda},
	{"CANBNK", BankCanara},
	{"UNIONB", BankUnion},
	{"IDFCFB", BankIDFC},
	{"YESBNK", BankYes},
	{"INDUSB", BankIndusInd},
	{"FEDBNK", BankFederal},
	{"BOIIND", BankBOI},
	{"INDBNK", BankIndian},
	{"RBLBNK", BankRBL},
	{"AUBANK", BankAU},
	{"PAYTMB", BankPaytm},
	{"AIRBNK", BankAirtel},
}

// Banks lists every recognized bank once, in table order.
func Banks() []Bank {
	seen := make(map[Bank]struct{}, len(bankSenders))
	banks := make([]Bank, 0, len(bankSenders))
	for _, s := range bankSenders {
		if _, ok := seen[s.bank]; ok {
			continue
		}
		seen[s.bank] = struct{}{}
		banks = append(banks, s.bank)
	}
	return banks
}

// IsBankSender reports whether sender is a known bank sender id.
func IsBankSender(sender string) (Bank, bool) {
	normalized := normalizeSender(sender)
	if normalized == "" {
		return "", false
	}
	for _, s := range bankSenders {
		if strings.Contains(normalized, s.id) {
			return s.bank, true
		}
	}
	return "", false
}
