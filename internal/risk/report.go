package risk

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to cents
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func money(v float64) string {
	return "$" + humanize.CommafWithDigits(Round2(v), 2)
}

func pct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// FormatPortfolioReport renders the portfolio health report returned to the model
func FormatPortfolioReport(username string, snap *PortfolioRiskSnapshot) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("PORTFOLIO REPORT for %s\n", username))
	sb.WriteString(fmt.Sprintf("Total Value: %s\n", money(snap.TotalValue)))
	sb.WriteString(fmt.Sprintf("Portfolio Risk (VaR 95%%): %s (potential daily loss)\n", money(snap.VaR95)))
	sb.WriteString(fmt.Sprintf("Weighted Volatility: %s\n", pct(snap.WeightedVolatility)))
	sb.WriteString("\nHoldings Breakdown:\n")
	for _, p := range snap.Positions {
		sb.WriteString(fmt.Sprintf("- %s: %s (Risk: %s, volatility %s, day %s)\n",
			p.Symbol, money(p.PositionValue), money(p.VaR95), pct(p.Volatility), pct(p.DailyChangePct)))
	}
	if len(snap.Skipped) > 0 {
		sb.WriteString("\nExcluded (no usable data):\n")
		for _, s := range snap.Skipped {
			sb.WriteString(fmt.Sprintf("- %s\n", s.Symbol))
		}
	}
	return sb.String()
}

// FormatPositionReport renders a single asset risk summary
func FormatPositionReport(snap *RiskSnapshot) string {
	return fmt.Sprintf(
		"%s x %s @ %s\nPosition Value: %s\nDaily Change: %s\nAnnual Volatility: %s\nVaR 95%%: %s (%s of position)\n",
		snap.Symbol,
		humanize.Ftoa(snap.Quantity),
		money(snap.Price),
		money(snap.PositionValue),
		pct(snap.DailyChangePct),
		pct(snap.Volatility),
		money(snap.VaR95),
		pct(snap.VaR95Pct),
	)
}
