package parser

// App is a UPI payment app whose notifications are recognized.
type App string

// Recognized apps.
const (
	AppPhonePe    App = "PhonePe"
	AppGooglePay  App = "Google Pay"
	AppPaytm      App = "Paytm"
	AppBHIM       App = "BHIM"
	AppAmazonPay  App = "Amazon Pay"
	AppCRED       App = "CRED"
	AppMobiKwik   App = "MobiKwik"
	AppFreecharge App = "Freecharge"
	AppNavi       App = "Navi"
	AppAirtel     App = "Airtel Thanks"
)

// upiApps is matched exactly; notifications from any other package are ignored no
// matter what they say.
var upiApps = map[string]App{
	"com.phonepe.app":                        AppPhonePe,
	"com.google.android.apps.nbu.paisa.user": AppGooglePay,
	"net.one97.paytm":                        AppPaytm,
	"in.org.npci.upiapp":                     AppBHIM,
	"in.amazon.mShop.android.shopping":       AppAmazonPay,
	"com.dreamplug.androidapp":               AppCRED,
	"com.mobikwik_new":                       AppMobiKwik,
	"com.freecharge.android":                 AppFreecharge,
	"com.naviapp":                            AppNavi,
	"com.myairtelapp":                        AppAirtel,
}

// IsUpiApp reports whether pkg is a known UPI app package.
func IsUpiApp(pkg string) (App, bool) {
	app, ok := upiApps[pkg]
	return app, ok
}

// AppPackages returns the recognized package identifiers.
func AppPackages() []string {
	pkgs := make([]string, 0, len(upiApps))
	for pkg := range upiApps {
		pkgs = append(pkgs, pkg)
	}
	return pkgs
}
