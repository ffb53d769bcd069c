// Package risk computes per-position and portfolio risk metrics from daily
// price history.
package risk

import (
	"context"
	"errors"
	"math"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"gonum.org/v1/gonum/stat"

	"github.com/run-bigpig/watchdog/internal/logger"
	"github.com/run-bigpig/watchdog/internal/models"
)

var log = logger.New("risk")

const (
	// TradingDaysPerYear annualisation factor
	TradingDaysPerYear = 252
	// DefaultWindowDays trailing history window
	DefaultWindowDays = 365
	// VaRPercentile lower tail percentile for 95% confidence
	VaRPercentile = 5.0
)

// ErrNoData no usable history for a symbol
var ErrNoData = models.ErrNoData

// PriceSource daily closes and last price per symbol
type PriceSource interface {
	DailyCloses(ctx context.Context, symbol string, windowDays int) ([]models.Close, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// RiskSnapshot single position metrics
type RiskSnapshot struct {
	Symbol         string  `json:"symbol"`
	Quantity       float64 `json:"quantity"`
	Price          float64 `json:"price"`
	PositionValue  float64 `json:"positionValue"`
	DailyChangePct float64 `json:"dailyChangePct"`
	Volatility     float64 `json:"volatility"` // annualised, percent
	VaR95Pct       float64 `json:"var95Pct"`
	VaR95          float64 `json:"var95"` // currency
}

// SkippedPosition a position left out of the aggregate
type SkippedPosition struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
	NoData bool   `json:"noData"`
}

// PortfolioRiskSnapshot aggregate metrics
type PortfolioRiskSnapshot struct {
	TotalValue         float64           `json:"totalValue"`
	VaR95              float64           `json:"var95"`
	WeightedVolatility float64           `json:"weightedVolatility"`
	Positions          []RiskSnapshot    `json:"positions"`
	Skipped            []SkippedPosition `json:"skipped,omitempty"`
}

// Engine stateless risk calculator bound to a price source
type Engine struct {
	source     PriceSource
	windowDays int
}

// NewEngine creates a risk engine
func NewEngine(source PriceSource, windowDays int) *Engine {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Engine{source: source, windowDays: windowDays}
}

// ComputePositionRisk metrics for one symbol
func (e *Engine) ComputePositionRisk(ctx context.Context, symbol string, quantity float64) (*RiskSnapshot, error) {
	closes, err := e.source.DailyCloses(ctx, symbol, e.windowDays)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load price history", goerr.V("symbol", symbol))
	}
	if len(closes) == 0 {
		return nil, goerr.Wrap(ErrNoData, "empty price history", goerr.V("symbol", symbol))
	}

	price, err := e.source.LastPrice(ctx, symbol)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load last price", goerr.V("symbol", symbol))
	}

	prices := make([]float64, len(closes))
	for i, c := range closes {
		prices[i] = c.Price
	}
	returns := DailyReturns(prices)
	if len(returns) == 0 {
		return nil, goerr.Wrap(ErrNoData, "insufficient history", goerr.V("symbol", symbol), goerr.V("closes", len(closes)))
	}

	dailyChange := 0.0
	if len(prices) >= 2 {
		if prev := prices[len(prices)-2]; prev != 0 {
			dailyChange = (price - prev) / prev * 100
		}
	}

	annualVol := stat.PopStdDev(returns, nil) * math.Sqrt(TradingDaysPerYear) * 100
	varPct := math.Abs(Percentile(returns, VaRPercentile))

	value := price * quantity
	return &RiskSnapshot{
		Symbol:         symbol,
		Quantity:       quantity,
		Price:          price,
		PositionValue:  value,
		DailyChangePct: dailyChange,
		Volatility:     annualVol,
		VaR95Pct:       varPct * 100,
		VaR95:          varPct * value,
	}, nil
}

// ComputePortfolioRisk aggregates positions in input order. Positions whose
// risk cannot be computed are skipped, never counted as zero.
func (e *Engine) ComputePortfolioRisk(ctx context.Context, positions []models.Position) (*PortfolioRiskSnapshot, error) {
	result := &PortfolioRiskSnapshot{Positions: make([]RiskSnapshot, 0, len(positions))}

	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap, err := e.ComputePositionRisk(ctx, p.Symbol, p.Quantity)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			noData := errors.Is(err, ErrNoData)
			if !noData {
				log.Warn("risk for %s skipped: %v", p.Symbol, err)
			}
			result.Skipped = append(result.Skipped, SkippedPosition{
				Symbol: p.Symbol,
				Reason: err.Error(),
				NoData: noData,
			})
			continue
		}

		result.TotalValue += snap.PositionValue
		result.VaR95 += snap.VaR95
		result.Positions = append(result.Positions, *snap)
	}

	if result.TotalValue != 0 {
		for _, snap := range result.Positions {
			result.WeightedVolatility += snap.Volatility * snap.PositionValue / result.TotalValue
		}
	}
	return result, nil
}

// DailyReturns simple returns between consecutive prices. Pairs with a zero
// base price are dropped.
func DailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, prices[i]/prices[i-1]-1)
	}
	return returns
}

// Percentile p-th percentile (0-100) with linear interpolation between the
// closest ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
