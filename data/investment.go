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

package data

import (
	"context"
	"errors"
	"time"

	"github.com/angel-vault/av-api/database"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrPortfolioNotFound = errors.New("could not find portfolio ID in database")
)

const (
	InvestmentActive     = "ACTIVE"
	InvestmentExited     = "EXITED"
	InvestmentWrittenOff = "WRITTEN_OFF"
)

// Investment is a single position in a portfolio as recorded by the deal
// workflow: capital out the door, what it's worth now, and what has come back
type Investment struct {
	ID            uuid.UUID
	PortfolioID   uuid.UUID
	Company       string
	Sector        string
	Amount        float64
	Date          time.Time
	CurrentValue  float64
	Distributions float64
	Status        string
}

// ValuationPoint is a dated portfolio valuation along with the net capital
// contributed since the previous point; used to derive periodic returns
type ValuationPoint struct {
	Date            time.Time
	Value           float64
	NetContribution float64
}

// Manager retrieves investment and valuation records for the calculators. It
// reads through the database package's active pool so tests can substitute
// pgxmock.
type Manager struct{}

// NewManager creates a record manager
func NewManager() *Manager {
	return &Manager{}
}

// Investments returns all investment records for a portfolio
func (m *Manager) Investments(ctx context.Context, portfolioID uuid.UUID) ([]*Investment, error) {
	sql := `SELECT id, portfolio_id, company, sector, amount, invest_date, current_value, distributions, status FROM investment WHERE portfolio_id=$1 ORDER BY invest_date`
	rows, err := database.Pool().Query(ctx, sql, portfolioID)
	if err != nil {
		log.Error().Stack().Err(err).Str("PortfolioID", portfolioID.String()).Msg("could not query investments")
		return nil, err
	}
	defer rows.Close()

	investments := []*Investment{}
	for rows.Next() {
		inv := &Investment{}
		err := rows.Scan(&inv.ID, &inv.PortfolioID, &inv.Company, &inv.Sector,
			&inv.Amount, &inv.Date, &inv.CurrentValue, &inv.Distributions,
			&inv.Status)
		if err != nil {
			return nil, err
		}
		investments = append(investments, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(investments) == 0 {
		return nil, ErrPortfolioNotFound
	}
	return investments, nil
}

// ValuationHistory returns dated portfolio valuations within the range,
// oldest first
func (m *Manager) ValuationHistory(ctx context.Context, portfolioID uuid.UUID, begin, end time.Time) ([]*ValuationPoint, error) {
	sql := `SELECT event_date, value, net_contribution FROM portfolio_valuation WHERE portfolio_id=$1 AND event_date BETWEEN $2 AND $3 ORDER BY event_date`
	rows, err := database.Pool().Query(ctx, sql, portfolioID, begin, end)
	if err != nil {
		log.Error().Stack().Err(err).Str("PortfolioID", portfolioID.String()).Msg("could not query valuation history")
		return nil, err
	}
	defer rows.Close()

	points := []*ValuationPoint{}
	for rows.Next() {
		pt := &ValuationPoint{}
		if err := rows.Scan(&pt.Date, &pt.Value, &pt.NetContribution); err != nil {
			return nil, err
		}
		points = append(points, pt)
	}
	return points, rows.Err()
}

// PeerReturns returns the annualized return of every peer portfolio measured
// over the same period
func (m *Manager) PeerReturns(ctx context.Context, begin, end time.Time) ([]float64, error) {
	sql := `SELECT annualized_return FROM peer_return WHERE period_begin=$1 AND period_end=$2 ORDER BY annualized_return`
	rows, err := database.Pool().Query(ctx, sql, begin, end)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not query peer returns")
		return nil, err
	}
	defer rows.Close()

	returns := []float64{}
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		returns = append(returns, r)
	}
	return returns, rows.Err()
}
