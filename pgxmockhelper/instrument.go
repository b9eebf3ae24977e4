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

package pgxmockhelper

import (
	"github.com/angel-vault/av-api/instrument"

	"github.com/pashagolub/pgxmock"
	"github.com/shopspring/decimal"
)

var instrumentColumns = []string{"id", "investment_id", "principal",
	"interest_rate", "issue_date", "maturity_date", "discount_rate",
	"valuation_cap", "qualified_financing_threshold", "compounding",
	"accrued_interest", "last_accrual", "status", "conversion_price",
	"version"}

func asNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// InstrumentRows builds a result set matching the convertible_instrument
// column order
func InstrumentRows(instruments ...*instrument.Instrument) *pgxmock.Rows {
	rows := pgxmock.NewRows(instrumentColumns)
	for _, inst := range instruments {
		rows.AddRow(inst.ID, inst.InvestmentID, inst.Principal,
			inst.InterestRate, inst.IssueDate, inst.MaturityDate,
			asNullDecimal(inst.DiscountRate), asNullDecimal(inst.ValuationCap),
			asNullDecimal(inst.QualifiedFinancingThreshold), inst.Compounding,
			inst.AccruedInterest, inst.LastAccrual, inst.Status,
			asNullDecimal(inst.ConversionPrice), inst.Version)
	}
	return rows
}

// MockInstrumentGet arranges for the next single-instrument query to return
// inst
func MockInstrumentGet(db pgxmock.PgxConnIface, inst *instrument.Instrument) {
	db.ExpectQuery("SELECT (.+) FROM convertible_instrument WHERE id").
		WillReturnRows(InstrumentRows(inst))
}

// MockInstrumentInsert arranges for the next instrument insert to succeed
func MockInstrumentInsert(db pgxmock.PgxConnIface) {
	db.ExpectExec("INSERT INTO convertible_instrument").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

// MockInstrumentUpdate arranges for the next compare-and-swap update to
// report the given number of affected rows; zero simulates a version conflict
// or a terminal-state row
func MockInstrumentUpdate(db pgxmock.PgxConnIface, rowsAffected int64) {
	db.ExpectExec("UPDATE convertible_instrument SET").
		WillReturnResult(pgxmock.NewResult("UPDATE", rowsAffected))
}

// MockMaturingQuery arranges for the next maturity scan to return the given
// instruments
func MockMaturingQuery(db pgxmock.PgxConnIface, instruments ...*instrument.Instrument) {
	db.ExpectQuery("SELECT (.+) FROM convertible_instrument WHERE status='ACTIVE'").
		WillReturnRows(InstrumentRows(instruments...))
}
