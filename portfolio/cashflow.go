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
	"sort"
	"time"

	"github.com/angel-vault/av-api/data"
)

// CashFlows converts a portfolio's investment records into a dated, signed
// cash-flow sequence: a negative outflow at each investment date, positive
// distributions spread at the midpoint of holding (the record model keeps
// only a running total), and a terminal inflow equal to the aggregate current
// valuation at asOf. The result is sorted by date.
func CashFlows(investments []*data.Investment, asOf time.Time) []CashFlow {
	flows := make([]CashFlow, 0, len(investments)*2+1)

	var terminalValue float64
	for _, inv := range investments {
		flows = append(flows, CashFlow{
			Date:   inv.Date,
			Amount: -inv.Amount,
		})
		if inv.Distributions > 0 {
			flows = append(flows, CashFlow{
				Date:   midpoint(inv.Date, asOf),
				Amount: inv.Distributions,
			})
		}
		terminalValue += inv.CurrentValue
	}

	if terminalValue > 0 {
		flows = append(flows, CashFlow{
			Date:   asOf,
			Amount: terminalValue,
		})
	}

	sort.Slice(flows, func(i, j int) bool {
		return flows[i].Date.Before(flows[j].Date)
	})

	return flows
}

func midpoint(a, b time.Time) time.Time {
	if b.Before(a) {
		return a
	}
	return a.Add(b.Sub(a) / 2)
}
