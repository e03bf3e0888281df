package common

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatUSD renders a price for display. Sub-dollar assets keep more
// precision so small-cap coins don't all collapse to $0.00.
func FormatUSD(price float64) string {
	switch {
	case price >= 1:
		return "$" + humanize.CommafWithDigits(price, 2)
	case price >= 0.01:
		return fmt.Sprintf("$%.4f", price)
	default:
		return fmt.Sprintf("$%.8f", price)
	}
}

// FormatMarketCap renders a market capitalisation with an SI suffix.
func FormatMarketCap(cap float64) string {
	switch {
	case cap >= 1e12:
		return fmt.Sprintf("$%.2fT", cap/1e12)
	case cap >= 1e9:
		return fmt.Sprintf("$%.2fB", cap/1e9)
	case cap >= 1e6:
		return fmt.Sprintf("$%.2fM", cap/1e6)
	default:
		return "$" + humanize.CommafWithDigits(cap, 0)
	}
}

// FormatChangePct renders a signed percentage with two decimals ("+12.50%").
func FormatChangePct(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}
