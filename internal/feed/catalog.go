package feed

// coinNames maps common base-asset symbols to display names. Symbols
// outside the catalog fall back to the raw ticker.
var coinNames = map[string]string{
	"BTC":   "Bitcoin",
	"ETH":   "Ethereum",
	"BNB":   "BNB",
	"SOL":   "Solana",
	"XRP":   "XRP",
	"ADA":   "Cardano",
	"DOGE":  "Dogecoin",
	"AVAX":  "Avalanche",
	"DOT":   "Polkadot",
	"MATIC": "Polygon",
	"LINK":  "Chainlink",
	"UNI":   "Uniswap",
	"SHIB":  "Shiba Inu",
	"LTC":   "Litecoin",
	"TRX":   "TRON",
	"ATOM":  "Cosmos",
	"XLM":   "Stellar",
	"NEAR":  "NEAR Protocol",
	"APT":   "Aptos",
	"ARB":   "Arbitrum",
	"OP":    "Optimism",
	"FIL":   "Filecoin",
	"PEPE":  "Pepe",
}

// DefaultSymbols are the high-cap pairs the grid command tracks when
// none are configured.
var DefaultSymbols = []string{
	"BTC", "ETH", "BNB", "SOL", "XRP", "ADA",
	"DOGE", "AVAX", "DOT", "MATIC", "LINK", "UNI",
}

// CoinName returns the display name for a base-asset symbol.
func CoinName(symbol string) string {
	if name, ok := coinNames[symbol]; ok {
		return name
	}
	return symbol
}
