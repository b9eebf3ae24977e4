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

package instrument_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/angel-vault/av-api/instrument"
)

func decPtr(val string) *decimal.Decimal {
	d := decimal.RequireFromString(val)
	return &d
}

var _ = Describe("Terms validation", func() {
	var terms *instrument.Terms

	BeforeEach(func() {
		terms = &instrument.Terms{
			Principal:    decimal.RequireFromString("100000"),
			InterestRate: decimal.RequireFromString("8"),
			IssueDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			MaturityDate: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			Compounding:  instrument.CompoundingSimple,
		}
	})

	It("accepts well-formed terms", func() {
		Expect(terms.Validate()).To(Succeed())
	})

	It("rejects a zero principal", func() {
		terms.Principal = decimal.Zero
		err := terms.Validate()
		Expect(errors.Is(err, instrument.ErrValidation)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("principal"))
	})

	It("rejects a negative principal", func() {
		terms.Principal = decimal.RequireFromString("-50")
		Expect(errors.Is(terms.Validate(), instrument.ErrValidation)).To(BeTrue())
	})

	It("rejects an interest rate above 100", func() {
		terms.InterestRate = decimal.RequireFromString("101")
		err := terms.Validate()
		Expect(errors.Is(err, instrument.ErrValidation)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("interest rate"))
	})

	It("accepts a zero interest rate", func() {
		terms.InterestRate = decimal.Zero
		Expect(terms.Validate()).To(Succeed())
	})

	It("rejects maturity on or before issue", func() {
		terms.MaturityDate = terms.IssueDate
		err := terms.Validate()
		Expect(errors.Is(err, instrument.ErrValidation)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("maturity"))
	})

	It("rejects a discount rate above 100", func() {
		terms.DiscountRate = decPtr("150")
		Expect(errors.Is(terms.Validate(), instrument.ErrValidation)).To(BeTrue())
	})

	It("rejects a non-positive valuation cap", func() {
		terms.ValuationCap = decPtr("0")
		Expect(errors.Is(terms.Validate(), instrument.ErrValidation)).To(BeTrue())
	})

	It("rejects an unknown compounding mode", func() {
		terms.Compounding = "CONTINUOUS"
		Expect(errors.Is(terms.Validate(), instrument.ErrValidation)).To(BeTrue())
	})
})

var _ = Describe("Instrument state", func() {
	It("reports the running balance as principal plus accrued interest", func() {
		inst := &instrument.Instrument{
			Principal:       decimal.RequireFromString("100000"),
			AccruedInterest: decimal.RequireFromString("3945.21"),
		}
		Expect(inst.Balance().StringFixed(2)).To(Equal("103945.21"))
	})

	It("is active only in the ACTIVE status", func() {
		inst := &instrument.Instrument{Status: instrument.StatusActive}
		Expect(inst.Active()).To(BeTrue())

		inst.Status = instrument.StatusConverted
		Expect(inst.Active()).To(BeFalse())

		inst.Status = instrument.StatusRepaid
		Expect(inst.Active()).To(BeFalse())
	})
})
