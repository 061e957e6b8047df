package domain

import (
	"fmt"
	"strings"
)

// Symbol is an exchange instrument identifier in the exchange's native
// notation (e.g. "BTCUSDT"). It is validated once at the system boundary;
// downstream components may assume a Symbol is well-formed.
type Symbol string

// ParseSymbol normalizes a pair string such as "BTC/USDT", "btc-usdt" or
// "BTCUSDT" into a Symbol. It rejects empty or structurally invalid input.
func ParseSymbol(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, ":", "")
	if len(s) < 5 {
		return "", fmt.Errorf("invalid symbol %q", raw)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("invalid symbol %q: unexpected character %q", raw, r)
		}
	}
	return Symbol(s), nil
}

func (s Symbol) String() string { return string(s) }
