package upbit

import (
	"fmt"
	"regexp"
	"strings"
)

// Quote currencies Upbit lists markets in, in detection order.
var quoteCurrencies = []string{"KRW", "USDT", "BTC"}

// validMarket matches Upbit market codes such as KRW-BTC
var validMarket = regexp.MustCompile(`^(KRW|USDT|BTC)-[A-Z0-9]{1,15}$`)

// NormalizeMarket converts various input formats to an Upbit market code.
// Input formats: "btc", "BTC/KRW", "BTC-KRW", "KRW-BTC", "btckrw"
// Output: "KRW-BTC"
func NormalizeMarket(input string, defaultQuote string) string {
	if input == "" {
		return ""
	}

	s := strings.ToUpper(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "_", "-")

	if parts := strings.Split(s, "-"); len(parts) == 2 {
		if isQuote(parts[0]) {
			return parts[0] + "-" + parts[1]
		}
		if isQuote(parts[1]) {
			return parts[1] + "-" + parts[0]
		}
	}

	// Concatenated base+quote, base must be non-empty
	for _, q := range quoteCurrencies {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return q + "-" + strings.TrimSuffix(s, q)
		}
	}

	return strings.ToUpper(defaultQuote) + "-" + s
}

// ParseMarket splits a market code into base and quote.
// "KRW-BTC" -> ("BTC", "KRW")
func ParseMarket(market string) (base, quote string) {
	q, b, ok := strings.Cut(strings.ToUpper(market), "-")
	if !ok {
		return q, ""
	}
	return b, q
}

// ValidateMarket checks if a market code has valid format
func ValidateMarket(market string) error {
	if market == "" {
		return fmt.Errorf("market cannot be empty")
	}
	if !validMarket.MatchString(market) {
		return fmt.Errorf("invalid market format: %s", market)
	}
	return nil
}

func isQuote(s string) bool {
	for _, q := range quoteCurrencies {
		if s == q {
			return true
		}
	}
	return false
}
