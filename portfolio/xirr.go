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
	"errors"
	"math"
	"sort"
	"time"
)

var (
	ErrNonConvergence  = errors.New("irr computation did not converge")
	ErrTooFewCashFlows = errors.New("at least two dated cash flows are required")
	ErrNoNegativeFlow  = errors.New("cash flows must include at least one outflow")
	ErrNoPositiveFlow  = errors.New("cash flows must include at least one inflow")
)

// CashFlow is a dated, signed amount: negative for capital deployed, positive
// for distributions or a terminal imputed valuation
type CashFlow struct {
	Date   time.Time
	Amount float64
}

const (
	newtonMaxIterations = 100
	newtonTolerance     = 1e-7

	// bracket scanned for a sign change when Newton-Raphson fails
	rateLowerBound = -0.9999
	rateUpperBound = 100.0
)

// IRR computes the annualized internal rate of return of an irregular, dated
// cash-flow sequence: the rate r for which sum(cf_i / (1+r)^years_i) is zero,
// with years_i counted as days/365 from the first flow.
//
// A bounded Newton-Raphson iteration is tried first; if it runs away or fails
// to converge, a bracketed bisection/false-position search takes over. When
// no sign change exists or neither method converges, ErrNonConvergence is
// returned rather than a misleading numeric value.
func IRR(cashflows []CashFlow) (float64, error) {
	if len(cashflows) < 2 {
		return 0, ErrTooFewCashFlows
	}

	sorted := make([]CashFlow, len(cashflows))
	copy(sorted, cashflows)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var hasNegative, hasPositive bool
	years := make([]float64, len(sorted))
	for ii, cf := range sorted {
		years[ii] = sorted[ii].Date.Sub(sorted[0].Date).Hours() / 24 / 365
		if cf.Amount < 0 {
			hasNegative = true
		}
		if cf.Amount > 0 {
			hasPositive = true
		}
	}

	if !hasNegative {
		return 0, ErrNoNegativeFlow
	}
	if !hasPositive {
		return 0, ErrNoPositiveFlow
	}

	npv := func(rate float64) float64 {
		var sum float64
		for ii, cf := range sorted {
			sum += cf.Amount / math.Pow(1+rate, years[ii])
		}
		return sum
	}

	dnpv := func(rate float64) float64 {
		var sum float64
		for ii, cf := range sorted {
			if years[ii] == 0 {
				continue
			}
			sum -= years[ii] * cf.Amount / math.Pow(1+rate, years[ii]+1)
		}
		return sum
	}

	// Newton-Raphson with a bounded iteration count
	rate := 0.1
	for i := 0; i < newtonMaxIterations; i++ {
		value := npv(rate)
		if math.Abs(value) < newtonTolerance {
			return rate, nil
		}
		derivative := dnpv(rate)
		if derivative == 0 || math.IsNaN(derivative) || math.IsInf(derivative, 0) {
			break
		}
		next := rate - value/derivative
		if math.IsNaN(next) || next <= rateLowerBound || next > rateUpperBound {
			break
		}
		if math.Abs(next-rate) < newtonTolerance {
			return next, nil
		}
		rate = next
	}

	// fall back to a bracketed search
	lo, hi, err := bracketRoot(npv)
	if err != nil {
		return 0, ErrNonConvergence
	}

	root, err := fsolve(npv, lo, hi)
	if err != nil {
		return 0, ErrNonConvergence
	}
	return root, nil
}

// bracketRoot scans progressively wider rate intervals looking for a sign
// change of the NPV function
func bracketRoot(npv objectiveFunc) (float64, float64, error) {
	grid := []float64{rateLowerBound, -0.9, -0.5, -0.25, 0, 0.25, 0.5, 1, 2, 5, 10, 25, rateUpperBound}

	prev := grid[0]
	fPrev := npv(prev)
	for _, r := range grid[1:] {
		fCurr := npv(r)
		if fPrev == 0 {
			return prev, prev, nil
		}
		if fPrev*fCurr < 0 {
			return prev, r, nil
		}
		prev = r
		fPrev = fCurr
	}

	return 0, 0, ErrNoSignChange
}
