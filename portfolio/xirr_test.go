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

package portfolio_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angel-vault/av-api/data"
	"github.com/angel-vault/av-api/portfolio"
)

func d(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("IRR", func() {
	It("recovers the rate of a doubling over exactly one year", func() {
		flows := []portfolio.CashFlow{
			{Date: d(2021, 1, 1), Amount: -1000},
			{Date: d(2022, 1, 1), Amount: 2000},
		}
		rate, err := portfolio.IRR(flows)
		Expect(err).To(BeNil())
		Expect(rate).To(BeNumerically("~", 1.0, 1e-4))
	})

	It("handles irregular multi-flow sequences", func() {
		flows := []portfolio.CashFlow{
			{Date: d(2021, 1, 1), Amount: -1000},
			{Date: d(2021, 7, 2), Amount: -1000},
			{Date: d(2022, 1, 1), Amount: 2500},
		}
		rate, err := portfolio.IRR(flows)
		Expect(err).To(BeNil())
		Expect(rate).To(BeNumerically(">", 0.1))
		Expect(rate).To(BeNumerically("<", 1.0))
	})

	It("is insensitive to input ordering", func() {
		ordered := []portfolio.CashFlow{
			{Date: d(2021, 1, 1), Amount: -1000},
			{Date: d(2022, 1, 1), Amount: 2000},
		}
		shuffled := []portfolio.CashFlow{
			{Date: d(2022, 1, 1), Amount: 2000},
			{Date: d(2021, 1, 1), Amount: -1000},
		}

		r1, err := portfolio.IRR(ordered)
		Expect(err).To(BeNil())
		r2, err := portfolio.IRR(shuffled)
		Expect(err).To(BeNil())
		Expect(r1).To(BeNumerically("~", r2, 1e-9))
	})

	It("rejects fewer than two flows", func() {
		_, err := portfolio.IRR([]portfolio.CashFlow{{Date: d(2021, 1, 1), Amount: -1000}})
		Expect(errors.Is(err, portfolio.ErrTooFewCashFlows)).To(BeTrue())
	})

	It("rejects flows with no inflow", func() {
		flows := []portfolio.CashFlow{
			{Date: d(2021, 1, 1), Amount: -1000},
			{Date: d(2022, 1, 1), Amount: -500},
		}
		_, err := portfolio.IRR(flows)
		Expect(errors.Is(err, portfolio.ErrNoPositiveFlow)).To(BeTrue())
	})

	It("rejects flows with no outflow", func() {
		flows := []portfolio.CashFlow{
			{Date: d(2021, 1, 1), Amount: 1000},
			{Date: d(2022, 1, 1), Amount: 500},
		}
		_, err := portfolio.IRR(flows)
		Expect(errors.Is(err, portfolio.ErrNoNegativeFlow)).To(BeTrue())
	})

	It("reports non-convergence when the NPV has no root", func() {
		// NPV is negative at every rate for this sequence
		flows := []portfolio.CashFlow{
			{Date: d(2021, 1, 1), Amount: -1000},
			{Date: d(2022, 1, 1), Amount: 500},
			{Date: d(2023, 1, 1), Amount: -1000},
		}
		_, err := portfolio.IRR(flows)
		Expect(errors.Is(err, portfolio.ErrNonConvergence)).To(BeTrue())
	})
})

var _ = Describe("CashFlows", func() {
	var (
		asOf        time.Time
		investments []*data.Investment
	)

	BeforeEach(func() {
		asOf = d(2022, 1, 1)
		investments = []*data.Investment{
			{
				Amount:       100000,
				Date:         d(2020, 1, 1),
				CurrentValue: 250000,
				Status:       data.InvestmentActive,
			},
			{
				Amount:        50000,
				Date:          d(2021, 1, 1),
				Distributions: 120000,
				Status:        data.InvestmentExited,
			},
		}
	})

	It("emits an outflow per investment and a terminal valuation inflow", func() {
		flows := portfolio.CashFlows(investments, asOf)
		Expect(flows).To(HaveLen(4))

		Expect(flows[0].Date).To(Equal(d(2020, 1, 1)))
		Expect(flows[0].Amount).To(Equal(-100000.0))

		last := flows[len(flows)-1]
		Expect(last.Date).To(Equal(asOf))
		Expect(last.Amount).To(Equal(250000.0))
	})

	It("dates running distribution totals at the midpoint of holding", func() {
		flows := portfolio.CashFlows(investments, asOf)

		// the exited deal's distributions land halfway through 2021
		Expect(flows[2].Amount).To(Equal(120000.0))
		Expect(flows[2].Date.After(d(2021, 1, 1))).To(BeTrue())
		Expect(flows[2].Date.Before(asOf)).To(BeTrue())
	})

	It("returns flows sorted by date", func() {
		flows := portfolio.CashFlows(investments, asOf)
		for ii := 1; ii < len(flows); ii++ {
			Expect(flows[ii].Date.Before(flows[ii-1].Date)).To(BeFalse())
		}
	})

	It("omits the terminal flow when everything is written off", func() {
		investments[0].CurrentValue = 0
		investments[1].Distributions = 0
		flows := portfolio.CashFlows(investments, asOf)
		Expect(flows).To(HaveLen(2))
	})
})
