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
	"errors"
	"time"

	"github.com/angel-vault/av-api/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PgxStore persists instruments in the convertible_instrument table
type PgxStore struct{}

// NewPgxStore creates a store backed by the database package's active pool
func NewPgxStore() *PgxStore {
	return &PgxStore{}
}

const instrumentColumns = `id, investment_id, principal, interest_rate, issue_date, maturity_date, discount_rate, valuation_cap, qualified_financing_threshold, compounding, accrued_interest, last_accrual, status, conversion_price, version`

func scanInstrument(row pgx.Row) (*Instrument, error) {
	inst := &Instrument{}
	var discount, cap, threshold, conversionPrice decimal.NullDecimal

	err := row.Scan(&inst.ID, &inst.InvestmentID, &inst.Principal,
		&inst.InterestRate, &inst.IssueDate, &inst.MaturityDate, &discount,
		&cap, &threshold, &inst.Compounding, &inst.AccruedInterest,
		&inst.LastAccrual, &inst.Status, &conversionPrice, &inst.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if discount.Valid {
		inst.DiscountRate = &discount.Decimal
	}
	if cap.Valid {
		inst.ValuationCap = &cap.Decimal
	}
	if threshold.Valid {
		inst.QualifiedFinancingThreshold = &threshold.Decimal
	}
	if conversionPrice.Valid {
		inst.ConversionPrice = &conversionPrice.Decimal
	}

	return inst, nil
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// Get loads a single instrument by id
func (store *PgxStore) Get(ctx context.Context, id uuid.UUID) (*Instrument, error) {
	sql := `SELECT ` + instrumentColumns + ` FROM convertible_instrument WHERE id=$1`
	return scanInstrument(database.Pool().QueryRow(ctx, sql, id))
}

// Insert saves a newly created instrument
func (store *PgxStore) Insert(ctx context.Context, inst *Instrument) error {
	sql := `INSERT INTO convertible_instrument (` + instrumentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := database.Pool().Exec(ctx, sql, inst.ID, inst.InvestmentID,
		inst.Principal, inst.InterestRate, inst.IssueDate, inst.MaturityDate,
		nullable(inst.DiscountRate), nullable(inst.ValuationCap),
		nullable(inst.QualifiedFinancingThreshold), inst.Compounding,
		inst.AccruedInterest, inst.LastAccrual, inst.Status,
		nullable(inst.ConversionPrice), inst.Version)
	if err != nil {
		log.Error().Stack().Err(err).Str("InstrumentID", inst.ID.String()).Msg("could not insert instrument")
	}
	return err
}

// Update writes accrual state and status with a compare-and-swap on the
// version column. Terminal transitions additionally require the stored row to
// still be ACTIVE, so two concurrent convert/repay calls cannot both succeed.
func (store *PgxStore) Update(ctx context.Context, inst *Instrument) error {
	sql := `UPDATE convertible_instrument SET accrued_interest=$1, last_accrual=$2, status=$3, conversion_price=$4, version=version+1 WHERE id=$5 AND version=$6 AND status='ACTIVE'`
	tag, err := database.Pool().Exec(ctx, sql, inst.AccruedInterest,
		inst.LastAccrual, inst.Status, nullable(inst.ConversionPrice),
		inst.ID, inst.Version)
	if err != nil {
		log.Error().Stack().Err(err).Str("InstrumentID", inst.ID.String()).Msg("could not update instrument")
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	inst.Version++
	return nil
}

// ByInvestment lists the instruments attached to an investment
func (store *PgxStore) ByInvestment(ctx context.Context, investmentID uuid.UUID) ([]*Instrument, error) {
	sql := `SELECT ` + instrumentColumns + ` FROM convertible_instrument WHERE investment_id=$1 ORDER BY issue_date`
	rows, err := database.Pool().Query(ctx, sql, investmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstruments(rows)
}

// Maturing lists ACTIVE instruments with a maturity date on or before the
// cutoff, ordered by ascending maturity. There is deliberately no lower
// bound: an ACTIVE instrument whose maturity has already passed still needs
// resolution and keeps appearing until it is converted or repaid.
func (store *PgxStore) Maturing(ctx context.Context, before time.Time) ([]*Instrument, error) {
	sql := `SELECT ` + instrumentColumns + ` FROM convertible_instrument WHERE status='ACTIVE' AND maturity_date <= $1 ORDER BY maturity_date`
	rows, err := database.Pool().Query(ctx, sql, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstruments(rows)
}

func collectInstruments(rows pgx.Rows) ([]*Instrument, error) {
	instruments := []*Instrument{}
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return instruments, nil
}
