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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"
)

type CSVRows struct {
	rows    [][]any
	header  []string
	dateCol int
}

// NewCSVRows loads a csv fixture and converts each column according to
// typeMap; supported conversions are "date", "float64", "int64", and "uuid".
// Columns without an entry are kept as strings.
func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		rows:    make([][]any, 0),
	}
	rawData, err := os.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read file")
	}

	lines := strings.Split(string(rawData), "\n")
	if len(lines) < 2 {
		subLog.Panic().Int("NumLines", len(lines)).Msg("input file does not have enough lines, need at least 2 (header + trailing new line)")
	}
	if lines[len(lines)-1] != "" {
		subLog.Panic().Msg("input file is missing a trailing new line")
	}

	headerRaw := lines[0]
	lines = lines[1 : len(lines)-1] // discard first and last rows
	rows.header = strings.Split(headerRaw, ",")

	for _, ll := range lines {
		cols := make([]any, len(rows.header))
		parts := strings.Split(ll, ",")
		for idx, val := range parts {
			colName := rows.header[idx]
			switch typeMap[colName] {
			case "date":
				parsed, err := time.Parse("2006-01-02", val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
				}
				cols[idx] = parsed
				rows.dateCol = idx
			case "float64":
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
				}
				cols[idx] = parsed
			case "int64":
				parsed, err := strconv.ParseInt(val, 10, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to int64")
				}
				cols[idx] = parsed
			case "uuid":
				parsed, err := uuid.Parse(val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to uuid")
				}
				cols[idx] = parsed
			default:
				cols[idx] = val
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

// Between keeps only rows whose date column falls within [a, b]
func (csvRows *CSVRows) Between(a time.Time, b time.Time) *CSVRows {
	newRows := make([][]any, 0, len(csvRows.rows))
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Time("b", b).Msg("no date column found")
	}
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if (t.Before(b) || t.Equal(b)) && (t.After(a) || t.Equal(a)) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// MockInvestmentQuery arranges for the next investment query to return the
// rows in the named fixture
func MockInvestmentQuery(db pgxmock.PgxConnIface, fn string) {
	db.ExpectQuery("SELECT (.+) FROM investment").WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"id":            "uuid",
			"portfolio_id":  "uuid",
			"amount":        "float64",
			"invest_date":   "date",
			"current_value": "float64",
			"distributions": "float64",
		}).Rows())
}

// MockValuationQuery arranges for the next valuation history query to return
// the fixture rows within [d1, d2]
func MockValuationQuery(db pgxmock.PgxConnIface, fn string, d1, d2 time.Time) {
	db.ExpectQuery("SELECT event_date, value, net_contribution FROM portfolio_valuation").WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"event_date":       "date",
			"value":            "float64",
			"net_contribution": "float64",
		}).Between(d1, d2).Rows())
}

// MockPeerQuery arranges for the next peer return query to return the fixture
// rows
func MockPeerQuery(db pgxmock.PgxConnIface, fn string) {
	db.ExpectQuery("SELECT annualized_return FROM peer_return").WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"annualized_return": "float64",
		}).Rows())
}
