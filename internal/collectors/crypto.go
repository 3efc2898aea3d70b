package collectors

import "strings"

// cryptoTickers is a small fixed table of symbols that are unambiguously
// crypto even without a -USD suffix, per spec.md §4.1.3.
var cryptoTickers = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "DOGE": true, "ADA": true,
	"XRP": true, "LTC": true, "BCH": true, "DOT": true, "MATIC": true,
	"AVAX": true, "LINK": true, "UNI": true, "ATOM": true, "XLM": true,
	"TRX": true, "ETC": true, "XMR": true, "ALGO": true, "VET": true,
	"FIL": true, "HBAR": true, "ICP": true, "APT": true, "ARB": true,
	"OP": true, "NEAR": true, "QNT": true, "AAVE": true, "MKR": true,
	"GRT": true, "SAND": true, "MANA": true, "AXS": true, "EOS": true,
	"XTZ": true, "THETA": true, "EGLD": true, "FLOW": true, "CHZ": true,
	"KAVA": true, "RUNE": true, "SNX": true, "CRV": true, "COMP": true,
	"ZEC": true, "DASH": true, "ENJ": true, "BAT": true, "KSM": true,
	"WAVES": true, "1INCH": true, "SUSHI": true, "YFI": true, "SHIB": true,
}

// IsCrypto classifies symbol as crypto when it's in the fixed ticker
// table or carries a "-USD" suffix (e.g. "BTC-USD").
func IsCrypto(symbol string) bool {
	upper := strings.ToUpper(symbol)
	if strings.HasSuffix(upper, "-USD") {
		return true
	}
	return cryptoTickers[upper]
}

// BaseSymbol strips a "-USD" suffix, if present, for upstreams that take
// a bare crypto ticker.
func BaseSymbol(symbol string) string {
	upper := strings.ToUpper(symbol)
	return strings.TrimSuffix(upper, "-USD")
}
