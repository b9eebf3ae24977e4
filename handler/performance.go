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

package handler

import (
	"github.com/angel-vault/av-api/metricscache"
	"github.com/angel-vault/av-api/portfolio"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetPerformance computes (or serves from cache) the performance snapshot
// for a portfolio over the requested date range
func (api *API) GetPerformance(c *fiber.Ctx) error {
	portfolioID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	startDate, endDate, err := parseDateRange(c)
	if err != nil {
		return fiber.ErrNotAcceptable
	}

	key := metricscache.Key("performance", portfolioID.String(),
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))

	payload, err := api.Cache.GetOrCompute(c.Context(), key, func() ([]byte, error) {
		snapshot, err := api.Calculator.CalculatePerformance(c.Context(), portfolioID, startDate, endDate)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snapshot)
	})
	if err != nil {
		return apiError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}

// GetRisk computes the concentration risk profile for a portfolio
func (api *API) GetRisk(c *fiber.Ctx) error {
	portfolioID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	startDate, endDate, err := parseDateRange(c)
	if err != nil {
		return fiber.ErrNotAcceptable
	}

	key := metricscache.Key("risk", portfolioID.String(),
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))

	payload, err := api.Cache.GetOrCompute(c.Context(), key, func() ([]byte, error) {
		investments, err := api.Manager.Investments(c.Context(), portfolioID)
		if err != nil {
			return nil, err
		}

		// the concentration profile needs volatility but not IRR, so a
		// cash-flow sequence with no internal rate cannot block it
		volatility, err := api.Calculator.CalculateVolatility(c.Context(), portfolioID, startDate, endDate)
		if err != nil {
			return nil, err
		}

		profile := portfolio.Analyze(investments, volatility)
		return json.Marshal(profile)
	})
	if err != nil {
		return apiError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}
