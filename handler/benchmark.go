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
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CompareBenchmark aligns the portfolio's returns against a named index
// series and returns alpha, beta, correlation, and tracking error
func (api *API) CompareBenchmark(c *fiber.Ctx) error {
	portfolioID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	index := c.Query("index", "SP500")

	startDate, endDate, err := parseDateRange(c)
	if err != nil {
		return fiber.ErrNotAcceptable
	}

	key := metricscache.Key("benchmark", portfolioID.String(), index,
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))

	payload, err := api.Cache.GetOrCompute(c.Context(), key, func() ([]byte, error) {
		series, err := api.Benchmarks.Series(index, startDate, endDate)
		if err != nil {
			return nil, err
		}

		comparison, err := api.Comparator.CompareToIndex(c.Context(), portfolioID, series, startDate, endDate)
		if err != nil {
			return nil, err
		}
		return json.Marshal(comparison)
	})
	if err != nil {
		return apiError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}

// ComparePeers ranks the portfolio within the peer sample for the same
// period. The portfolio's own return comes from its records, never from the
// request.
func (api *API) ComparePeers(c *fiber.Ctx) error {
	portfolioID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	startDate, endDate, err := parseDateRange(c)
	if err != nil {
		return fiber.ErrNotAcceptable
	}

	comparison, err := api.Comparator.CompareToPeers(c.Context(), portfolioID, startDate, endDate)
	if err != nil {
		return apiError(c, err)
	}

	return c.JSON(comparison)
}
