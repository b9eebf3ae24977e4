// Copyright 2024-2026
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package portfolio

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/angel-vault/av-api/data"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"gonum.org/v1/gonum/stat"
)

// Snapshot is a derived, cacheable bundle of performance metrics for one
// portfolio over a date range. It is never a source of truth; it can always
// be recomputed from the underlying investment and valuation records.
type Snapshot struct {
	PortfolioID      uuid.UUID `json:"portfolioId"`
	PeriodStart      time.Time `json:"periodStart"`
	PeriodEnd        time.Time `json:"periodEnd"`
	ComputedOn       time.Time `json:"computedOn"`
	TotalInvested    float64   `json:"totalInvested"`
	CurrentValue     float64   `json:"currentValue"`
	Distributions    float64   `json:"distributions"`
	IRR              float64   `json:"irr"`
	MOIC             float64   `json:"moic"`
	CashOnCash       float64   `json:"cashOnCash"`
	TotalReturn      float64   `json:"totalReturn"`
	AnnualizedReturn float64   `json:"annualizedReturn"`
	Volatility       float64   `json:"volatility"`
	SharpeRatio      float64   `json:"sharpeRatio"`
}

// Calculator computes portfolio performance snapshots. It is a pure function
// of the records it loads; distinct portfolios may be computed concurrently.
type Calculator struct {
	manager        *data.Manager
	riskFreeRate   float64
	periodsPerYear float64
	clock          func() time.Time
}

// NewCalculator creates a calculator; risk-free rate and return periodicity
// come from the metrics.risk_free_rate and metrics.periods_per_year settings
func NewCalculator(manager *data.Manager) *Calculator {
	periods := viper.GetFloat64("metrics.periods_per_year")
	if periods == 0 {
		periods = 12 // monthly valuations
	}
	return &Calculator{
		manager:        manager,
		riskFreeRate:   viper.GetFloat64("metrics.risk_free_rate"),
		periodsPerYear: periods,
		clock:          time.Now,
	}
}

// SetClock overrides the time source; used by tests
func (calc *Calculator) SetClock(clock func() time.Time) {
	calc.clock = clock
}

// CalculatePerformance loads the portfolio's records and computes the full
// metric snapshot for the date range
func (calc *Calculator) CalculatePerformance(ctx context.Context, portfolioID uuid.UUID, begin, end time.Time) (*Snapshot, error) {
	ctx, span := otel.Tracer(opName).Start(ctx, "CalculatePerformance")
	defer span.End()

	investments, err := calc.manager.Investments(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	valuations, err := calc.manager.ValuationHistory(ctx, portfolioID, begin, end)
	if err != nil {
		return nil, err
	}

	snapshot, err := calc.buildSnapshot(portfolioID, investments, valuations, begin, end)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("PortfolioID", portfolioID.String()).
		Float64("IRR", snapshot.IRR).
		Float64("MOIC", snapshot.MOIC).
		Msg("computed performance snapshot")

	return snapshot, nil
}

// CalculateVolatility computes the annualized volatility of the portfolio's
// periodic returns over the date range. Unlike the full snapshot it never
// solves for IRR, so it stays available when the cash-flow sequence has no
// internal rate.
func (calc *Calculator) CalculateVolatility(ctx context.Context, portfolioID uuid.UUID, begin, end time.Time) (float64, error) {
	ctx, span := otel.Tracer(opName).Start(ctx, "CalculateVolatility")
	defer span.End()

	valuations, err := calc.manager.ValuationHistory(ctx, portfolioID, begin, end)
	if err != nil {
		return 0, err
	}

	return Volatility(PeriodicReturns(valuations), calc.periodsPerYear), nil
}

func (calc *Calculator) buildSnapshot(portfolioID uuid.UUID, investments []*data.Investment, valuations []*data.ValuationPoint, begin, end time.Time) (*Snapshot, error) {
	snapshot := &Snapshot{
		PortfolioID: portfolioID,
		PeriodStart: begin,
		PeriodEnd:   end,
		ComputedOn:  calc.clock(),
	}

	for _, inv := range investments {
		snapshot.TotalInvested += inv.Amount
		snapshot.CurrentValue += inv.CurrentValue
		snapshot.Distributions += inv.Distributions
	}

	snapshot.MOIC = MOIC(snapshot.TotalInvested, snapshot.CurrentValue, snapshot.Distributions)
	snapshot.CashOnCash = CashOnCash(snapshot.TotalInvested, snapshot.Distributions)

	flows := CashFlows(investments, end)
	irr, err := IRR(flows)
	if err != nil {
		if errors.Is(err, ErrNonConvergence) {
			log.Warn().Stack().Err(err).Str("PortfolioID", portfolioID.String()).Msg("irr did not converge")
			return nil, err
		}
		// degenerate flow sets (single-sided or too few flows) have no IRR
		irr = math.NaN()
	}
	snapshot.IRR = irr

	years := firstInvestmentYears(investments, end)
	snapshot.TotalReturn = TotalReturn(snapshot.TotalInvested, snapshot.CurrentValue, snapshot.Distributions)
	snapshot.AnnualizedReturn = AnnualizedReturn(snapshot.TotalReturn, years)

	returns := PeriodicReturns(valuations)
	snapshot.Volatility = Volatility(returns, calc.periodsPerYear)
	snapshot.SharpeRatio = SharpeRatio(snapshot.AnnualizedReturn, calc.riskFreeRate, snapshot.Volatility)

	return snapshot, nil
}

// MOIC is the multiple on invested capital: (current value + realized
// distributions) / total invested
func MOIC(invested, currentValue, distributions float64) float64 {
	if invested == 0 {
		return 0
	}
	return (currentValue + distributions) / invested
}

// CashOnCash is realized distributions over total invested
func CashOnCash(invested, distributions float64) float64 {
	if invested == 0 {
		return 0
	}
	return distributions / invested
}

// TotalReturn is the cumulative gain over invested capital
func TotalReturn(invested, currentValue, distributions float64) float64 {
	if invested == 0 {
		return 0
	}
	return (currentValue + distributions - invested) / invested
}

// AnnualizedReturn converts a cumulative return over the elapsed years into a
// compound annual growth rate
func AnnualizedReturn(totalReturn, years float64) float64 {
	if years <= 0 {
		return totalReturn
	}
	if totalReturn <= -1 {
		return -1
	}
	return math.Pow(1+totalReturn, 1/years) - 1
}

// PeriodicReturns derives period-over-period returns from a valuation
// history, backing out net contributions so deposits don't read as gains
func PeriodicReturns(valuations []*data.ValuationPoint) []float64 {
	if len(valuations) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(valuations)-1)
	for ii := 1; ii < len(valuations); ii++ {
		prev := valuations[ii-1]
		curr := valuations[ii]
		if prev.Value == 0 {
			continue
		}
		returns = append(returns, (curr.Value-curr.NetContribution)/prev.Value-1)
	}
	return returns
}

// Volatility is the annualized standard deviation of periodic returns
func Volatility(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(periodsPerYear)
}

// SharpeRatio is excess annualized return per unit of volatility. Zero
// volatility returns the documented sentinel 0 instead of dividing by zero.
func SharpeRatio(annualizedReturn, riskFreeRate, volatility float64) float64 {
	if volatility == 0 {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / volatility
}

func firstInvestmentYears(investments []*data.Investment, end time.Time) float64 {
	if len(investments) == 0 {
		return 0
	}
	first := investments[0].Date
	for _, inv := range investments[1:] {
		if inv.Date.Before(first) {
			first = inv.Date
		}
	}
	return end.Sub(first).Hours() / (24 * 365.2425)
}

const opName = "github.com/angel-vault/av-api/portfolio"
