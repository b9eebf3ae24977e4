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
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

// Store is the persistence boundary for instrument records. Update performs a
// compare-and-swap on (id, version, ACTIVE) and returns ErrVersionConflict
// when another writer got there first.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Instrument, error)
	Insert(ctx context.Context, inst *Instrument) error
	Update(ctx context.Context, inst *Instrument) error
	ByInvestment(ctx context.Context, investmentID uuid.UUID) ([]*Instrument, error)
	Maturing(ctx context.Context, before time.Time) ([]*Instrument, error)
}

// Engine owns the convertible-instrument lifecycle: interest accrual,
// conversion at a priced round, and repayment at or before maturity.
type Engine struct {
	store Store
	clock func() time.Time
}

// NewEngine creates an engine backed by the given store
func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		clock: time.Now,
	}
}

// SetClock overrides the time source; used by tests
func (eng *Engine) SetClock(clock func() time.Time) {
	eng.clock = clock
}

// Create validates terms and persists a new ACTIVE instrument with zero
// accrued interest and last-accrual set to the issue date
func (eng *Engine) Create(ctx context.Context, terms *Terms) (*Instrument, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	inst := &Instrument{
		ID:                          uuid.New(),
		InvestmentID:                terms.InvestmentID,
		Principal:                   terms.Principal,
		InterestRate:                terms.InterestRate,
		IssueDate:                   terms.IssueDate,
		MaturityDate:                terms.MaturityDate,
		DiscountRate:                terms.DiscountRate,
		ValuationCap:                terms.ValuationCap,
		QualifiedFinancingThreshold: terms.QualifiedFinancingThreshold,
		Compounding:                 terms.Compounding,
		AccruedInterest:             decimal.Zero,
		LastAccrual:                 terms.IssueDate,
		Status:                      StatusActive,
		Version:                     1,
	}

	if err := eng.store.Insert(ctx, inst); err != nil {
		return nil, err
	}

	log.Info().
		Str("InstrumentID", inst.ID.String()).
		Str("InvestmentID", inst.InvestmentID.String()).
		Str("Principal", inst.Principal.String()).
		Msg("created convertible instrument")

	return inst, nil
}

// Get loads an instrument by id
func (eng *Engine) Get(ctx context.Context, id uuid.UUID) (*Instrument, error) {
	return eng.store.Get(ctx, id)
}

// AccrueInterest accrues interest up to the current time and persists the new
// running state. Calling it twice within the same day is a no-op.
func (eng *Engine) AccrueInterest(ctx context.Context, id uuid.UUID) (*Instrument, error) {
	ctx, span := otel.Tracer(opName).Start(ctx, "AccrueInterest")
	defer span.End()

	inst, err := eng.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inst.Active() {
		return nil, ErrInvalidState
	}

	earned := inst.accrue(eng.clock())
	if earned.IsZero() {
		return inst, nil
	}

	if err := eng.store.Update(ctx, inst); err != nil {
		return nil, err
	}

	log.Debug().
		Str("InstrumentID", inst.ID.String()).
		Str("InterestEarned", earned.String()).
		Str("AccruedInterest", inst.AccruedInterest.String()).
		Msg("accrued interest")

	return inst, nil
}

// ConversionPrice resolves the conversion price an ACTIVE instrument would
// receive in a round priced at roundPrice per share with the given
// fully-diluted share count. The result is never worse than the round price.
func (eng *Engine) ConversionPrice(ctx context.Context, id uuid.UUID, roundPrice decimal.Decimal, roundShares int64) (decimal.Decimal, error) {
	inst, err := eng.store.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if err := validateRound(roundPrice, roundShares, inst.ValuationCap); err != nil {
		return decimal.Zero, err
	}
	return inst.conversionPrice(roundPrice, roundShares), nil
}

// Convert performs a final accrual, resolves the conversion price, computes
// the whole number of shares issued, and transitions the instrument to
// CONVERTED. The transition is terminal; a concurrent convert or repay on the
// same instrument fails with ErrVersionConflict.
func (eng *Engine) Convert(ctx context.Context, id uuid.UUID, roundPrice decimal.Decimal, roundShares int64) (*ConversionResult, error) {
	ctx, span := otel.Tracer(opName).Start(ctx, "Convert")
	defer span.End()

	inst, err := eng.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inst.Active() {
		return nil, ErrInvalidState
	}
	if err := validateRound(roundPrice, roundShares, inst.ValuationCap); err != nil {
		return nil, err
	}

	inst.accrue(eng.clock())

	price := inst.conversionPrice(roundPrice, roundShares)
	total := inst.Balance()
	shares := total.Div(price).IntPart()

	inst.Status = StatusConverted
	inst.ConversionPrice = &price

	if err := eng.store.Update(ctx, inst); err != nil {
		return nil, err
	}

	log.Info().
		Str("InstrumentID", inst.ID.String()).
		Str("ConversionPrice", price.String()).
		Int64("Shares", shares).
		Str("TotalAmount", total.String()).
		Msg("converted instrument to equity")

	return &ConversionResult{
		InstrumentID: inst.ID,
		Shares:       shares,
		Price:        price,
		TotalAmount:  total,
	}, nil
}

// Repay performs a final accrual and transitions the instrument to REPAID.
// The repayment amount must cover principal plus all accrued interest.
func (eng *Engine) Repay(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Instrument, error) {
	ctx, span := otel.Tracer(opName).Start(ctx, "Repay")
	defer span.End()

	inst, err := eng.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inst.Active() {
		return nil, ErrInvalidState
	}

	inst.accrue(eng.clock())

	owed := inst.Balance()
	if amount.LessThan(owed) {
		return nil, ErrInsufficientRepayment
	}

	inst.Status = StatusRepaid

	if err := eng.store.Update(ctx, inst); err != nil {
		return nil, err
	}

	log.Info().
		Str("InstrumentID", inst.ID.String()).
		Str("AmountOwed", owed.String()).
		Str("AmountRepaid", amount.String()).
		Msg("repaid instrument")

	return inst, nil
}

// CheckQualifiedFinancing reports whether a round of the given size triggers
// automatic conversion. Instruments without a threshold convert in any round.
func (eng *Engine) CheckQualifiedFinancing(ctx context.Context, id uuid.UUID, roundAmount decimal.Decimal) (bool, error) {
	inst, err := eng.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if inst.QualifiedFinancingThreshold == nil {
		return true, nil
	}
	return roundAmount.GreaterThanOrEqual(*inst.QualifiedFinancingThreshold), nil
}

// MaturingWithin lists ACTIVE instruments maturing in the next N days,
// ordered by ascending maturity date. Instruments already past maturity stay
// in the result until they reach a terminal state; the scan is how overdue
// notes get noticed.
func (eng *Engine) MaturingWithin(ctx context.Context, days int) ([]*Instrument, error) {
	cutoff := eng.clock().AddDate(0, 0, days)
	return eng.store.Maturing(ctx, cutoff)
}

const opName = "github.com/angel-vault/av-api/instrument"
