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
	"sort"
	"time"

	"github.com/angel-vault/av-api/data"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrInsufficientData = errors.New("not enough aligned data points for comparison")
)

// IndexComparison relates a portfolio's periodic returns to a benchmark
// index series over the same period
type IndexComparison struct {
	PortfolioID     uuid.UUID `json:"portfolioId"`
	Benchmark       string    `json:"benchmark"`
	Periods         int       `json:"periods"`
	PortfolioReturn float64   `json:"portfolioReturn"`
	BenchmarkReturn float64   `json:"benchmarkReturn"`
	Outperformance  float64   `json:"outperformance"`
	Alpha           float64   `json:"alpha"`
	Beta            float64   `json:"beta"`
	Correlation     float64   `json:"correlation"`
	TrackingError   float64   `json:"trackingError"`
}

// PeerComparison places a portfolio's return within a peer sample
type PeerComparison struct {
	PortfolioReturn float64 `json:"portfolioReturn"`
	PercentileRank  float64 `json:"percentileRank"`
	PeerAverage     float64 `json:"peerAverage"`
	PeerMedian      float64 `json:"peerMedian"`
	PeerQ1          float64 `json:"peerQ1"`
	PeerQ3          float64 `json:"peerQ3"`
}

// Comparator aligns portfolio returns against index and peer series
type Comparator struct {
	manager *data.Manager
}

// NewComparator creates a benchmark comparator
func NewComparator(manager *data.Manager) *Comparator {
	return &Comparator{manager: manager}
}

// CompareToIndex aligns the portfolio's periodic returns with the benchmark
// series by date and computes relative-performance statistics. Beta,
// correlation, and tracking error are undefined below two aligned periods;
// ErrInsufficientData is returned in that case.
func (cmp *Comparator) CompareToIndex(ctx context.Context, portfolioID uuid.UUID, series *data.BenchmarkSeries, begin, end time.Time) (*IndexComparison, error) {
	ctx, span := otel.Tracer(opName).Start(ctx, "CompareToIndex")
	defer span.End()

	valuations, err := cmp.manager.ValuationHistory(ctx, portfolioID, begin, end)
	if err != nil {
		return nil, err
	}

	portfolioReturns, benchmarkReturns := alignReturns(valuations, series)
	if len(portfolioReturns) < 2 {
		return nil, ErrInsufficientData
	}

	comparison := &IndexComparison{
		PortfolioID: portfolioID,
		Benchmark:   series.Name,
		Periods:     len(portfolioReturns),
	}

	comparison.PortfolioReturn = compound(portfolioReturns)
	comparison.BenchmarkReturn = compound(benchmarkReturns)
	comparison.Outperformance = comparison.PortfolioReturn - comparison.BenchmarkReturn

	comparison.Beta = stat.Covariance(portfolioReturns, benchmarkReturns, nil) /
		stat.Variance(benchmarkReturns, nil)
	comparison.Alpha = comparison.PortfolioReturn - comparison.Beta*comparison.BenchmarkReturn
	comparison.Correlation = stat.Correlation(portfolioReturns, benchmarkReturns, nil)

	diffs := make([]float64, len(portfolioReturns))
	for ii := range portfolioReturns {
		diffs[ii] = portfolioReturns[ii] - benchmarkReturns[ii]
	}
	comparison.TrackingError = stat.StdDev(diffs, nil)

	return comparison, nil
}

// CompareToPeers ranks the portfolio within a peer sample and summarizes the
// sample with average, median, and quartiles. The portfolio's annualized
// return is derived from its own investment records so callers cannot inflate
// their rank.
func (cmp *Comparator) CompareToPeers(ctx context.Context, portfolioID uuid.UUID, begin, end time.Time) (*PeerComparison, error) {
	ctx, span := otel.Tracer(opName).Start(ctx, "CompareToPeers")
	defer span.End()

	investments, err := cmp.manager.Investments(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	var invested, currentValue, distributions float64
	for _, inv := range investments {
		invested += inv.Amount
		currentValue += inv.CurrentValue
		distributions += inv.Distributions
	}
	years := firstInvestmentYears(investments, end)
	portfolioReturn := AnnualizedReturn(TotalReturn(invested, currentValue, distributions), years)

	peers, err := cmp.manager.PeerReturns(ctx, begin, end)
	if err != nil {
		return nil, err
	}
	return RankAmongPeers(portfolioReturn, peers)
}

// RankAmongPeers computes the percentile rank of a return within a peer
// sample. The sample must be non-empty.
func RankAmongPeers(portfolioReturn float64, peerReturns []float64) (*PeerComparison, error) {
	if len(peerReturns) == 0 {
		return nil, ErrInsufficientData
	}

	sorted := make([]float64, len(peerReturns))
	copy(sorted, peerReturns)
	sort.Float64s(sorted)

	below := 0
	for _, r := range sorted {
		if r < portfolioReturn {
			below++
		}
	}

	return &PeerComparison{
		PortfolioReturn: portfolioReturn,
		PercentileRank:  float64(below) / float64(len(sorted)) * 100,
		PeerAverage:     stat.Mean(sorted, nil),
		PeerMedian:      stat.Quantile(0.5, stat.Empirical, sorted, nil),
		PeerQ1:          stat.Quantile(0.25, stat.Empirical, sorted, nil),
		PeerQ3:          stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}, nil
}

// alignReturns pairs portfolio periodic returns with benchmark returns that
// share the same period-end date; unmatched periods on either side are
// dropped
func alignReturns(valuations []*data.ValuationPoint, series *data.BenchmarkSeries) ([]float64, []float64) {
	benchmarkByDate := make(map[string]float64, len(series.Points))
	for _, pt := range series.Points {
		benchmarkByDate[pt.Date.Format("2006-01-02")] = pt.Return
	}

	portfolioReturns := []float64{}
	benchmarkReturns := []float64{}
	for ii := 1; ii < len(valuations); ii++ {
		prev := valuations[ii-1]
		curr := valuations[ii]
		if prev.Value == 0 {
			continue
		}
		benchmarkReturn, ok := benchmarkByDate[curr.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		portfolioReturns = append(portfolioReturns, (curr.Value-curr.NetContribution)/prev.Value-1)
		benchmarkReturns = append(benchmarkReturns, benchmarkReturn)
	}

	return portfolioReturns, benchmarkReturns
}

// compound chains periodic returns into a cumulative return
func compound(returns []float64) float64 {
	total := 1.0
	for _, r := range returns {
		total *= 1 + r
	}
	return total - 1
}
