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

package instrument

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation            = errors.New("invalid instrument terms")
	ErrNotFound              = errors.New("instrument not found")
	ErrInvalidState          = errors.New("instrument is not active")
	ErrInsufficientRepayment = errors.New("repayment amount is less than total owed")
	ErrVersionConflict       = errors.New("instrument was modified concurrently")
)

const (
	StatusActive    = "ACTIVE"
	StatusConverted = "CONVERTED"
	StatusRepaid    = "REPAID"
)

const (
	CompoundingSimple   = "SIMPLE"
	CompoundingCompound = "COMPOUND"
)

// daysPerYear is the day-count convention used for interest accrual
var daysPerYear = decimal.NewFromInt(365)

// Terms holds the negotiated terms of a convertible note or SAFE. Optional
// clauses are explicit pointer fields; a nil pointer means the clause was not
// negotiated.
type Terms struct {
	InvestmentID                uuid.UUID
	Principal                   decimal.Decimal
	InterestRate                decimal.Decimal
	IssueDate                   time.Time
	MaturityDate                time.Time
	DiscountRate                *decimal.Decimal
	ValuationCap                *decimal.Decimal
	QualifiedFinancingThreshold *decimal.Decimal
	Compounding                 string
}

// Instrument is a convertible note or SAFE agreement. AccruedInterest is
// monotonically non-decreasing while the instrument is ACTIVE; once the
// status leaves ACTIVE no further mutation is permitted.
type Instrument struct {
	ID                          uuid.UUID
	InvestmentID                uuid.UUID
	Principal                   decimal.Decimal
	InterestRate                decimal.Decimal
	IssueDate                   time.Time
	MaturityDate                time.Time
	DiscountRate                *decimal.Decimal
	ValuationCap                *decimal.Decimal
	QualifiedFinancingThreshold *decimal.Decimal
	Compounding                 string
	AccruedInterest             decimal.Decimal
	LastAccrual                 time.Time
	Status                      string
	ConversionPrice             *decimal.Decimal

	// Version guards against concurrent writers; every persisted update
	// increments it and the UPDATE compares against the value read
	Version int64
}

// ConversionResult describes the outcome of converting an instrument at a
// priced financing round
type ConversionResult struct {
	InstrumentID uuid.UUID
	Shares       int64
	Price        decimal.Decimal
	TotalAmount  decimal.Decimal
}

var (
	zero       = decimal.Zero
	oneHundred = decimal.NewFromInt(100)
)

// Validate checks instrument terms and returns ErrValidation naming the
// violated field
func (t *Terms) Validate() error {
	if !t.Principal.GreaterThan(zero) {
		return fmt.Errorf("%w: principal must be greater than zero", ErrValidation)
	}
	if t.InterestRate.LessThan(zero) || t.InterestRate.GreaterThan(oneHundred) {
		return fmt.Errorf("%w: interest rate must be between 0 and 100", ErrValidation)
	}
	if !t.MaturityDate.After(t.IssueDate) {
		return fmt.Errorf("%w: maturity date must be after issue date", ErrValidation)
	}
	if t.DiscountRate != nil && (t.DiscountRate.LessThan(zero) || t.DiscountRate.GreaterThan(oneHundred)) {
		return fmt.Errorf("%w: discount rate must be between 0 and 100", ErrValidation)
	}
	if t.ValuationCap != nil && !t.ValuationCap.GreaterThan(zero) {
		return fmt.Errorf("%w: valuation cap must be greater than zero", ErrValidation)
	}
	if t.Compounding != CompoundingSimple && t.Compounding != CompoundingCompound {
		return fmt.Errorf("%w: compounding must be SIMPLE or COMPOUND", ErrValidation)
	}
	return nil
}

// Active reports whether the instrument can still accrue interest or reach a
// terminal state
func (inst *Instrument) Active() bool {
	return inst.Status == StatusActive
}

// Balance is the running balance: principal plus interest accrued so far
func (inst *Instrument) Balance() decimal.Decimal {
	return inst.Principal.Add(inst.AccruedInterest)
}

// accrue computes the interest earned between LastAccrual and asOf and folds
// it into AccruedInterest. Simple mode accrues on the original principal.
// Compound mode accrues on the running balance for the elapsed period only;
// earlier accruals are never recomputed, so irregular accrual intervals
// cannot double-count interest.
func (inst *Instrument) accrue(asOf time.Time) decimal.Decimal {
	elapsed := asOf.Sub(inst.LastAccrual)
	days := int64(elapsed.Hours() / 24)
	if days <= 0 {
		return zero
	}

	rate := inst.InterestRate.Div(oneHundred)
	var interest decimal.Decimal
	switch inst.Compounding {
	case CompoundingCompound:
		// daily compounding on the running balance
		daily := rate.Div(daysPerYear)
		growth := decimal.NewFromInt(1).Add(daily).Pow(decimal.NewFromInt(days))
		interest = inst.Balance().Mul(growth.Sub(decimal.NewFromInt(1)))
	default:
		interest = inst.Principal.Mul(rate).Mul(decimal.NewFromInt(days)).Div(daysPerYear)
	}

	inst.AccruedInterest = inst.AccruedInterest.Add(interest)
	inst.LastAccrual = inst.LastAccrual.Add(time.Duration(days) * 24 * time.Hour)
	return interest
}

// validateRound rejects round terms that cannot price a conversion. A zero or
// negative round price has no meaning, and a capped instrument needs the
// round's fully-diluted share count to derive the cap price.
func validateRound(roundPrice decimal.Decimal, roundShares int64, cap *decimal.Decimal) error {
	if !roundPrice.GreaterThan(zero) {
		return fmt.Errorf("%w: round price per share must be greater than zero", ErrValidation)
	}
	if cap != nil && roundShares <= 0 {
		return fmt.Errorf("%w: round share count is required when a valuation cap is set", ErrValidation)
	}
	return nil
}

// conversionPrice resolves the per-share conversion price for a priced round.
// roundShares is the round's actual fully-diluted share count; the cap price
// is derived from it, never from an assumed constant.
func (inst *Instrument) conversionPrice(roundPrice decimal.Decimal, roundShares int64) decimal.Decimal {
	price := roundPrice

	if inst.DiscountRate != nil {
		discountPrice := roundPrice.Mul(oneHundred.Sub(*inst.DiscountRate)).Div(oneHundred)
		if discountPrice.LessThan(price) {
			price = discountPrice
		}
	}

	if inst.ValuationCap != nil && roundShares > 0 {
		capPrice := inst.ValuationCap.Div(decimal.NewFromInt(roundShares))
		if capPrice.LessThan(price) {
			price = capPrice
		}
	}

	return price
}
