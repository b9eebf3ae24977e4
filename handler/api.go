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
	"errors"
	"time"

	"github.com/angel-vault/av-api/data"
	"github.com/angel-vault/av-api/instrument"
	"github.com/angel-vault/av-api/metricscache"
	"github.com/angel-vault/av-api/portfolio"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// API bundles the handler dependencies; one instance is wired at startup and
// shared across requests
type API struct {
	Engine     *instrument.Engine
	Calculator *portfolio.Calculator
	Comparator *portfolio.Comparator
	Manager    *data.Manager
	Benchmarks *data.BenchmarkProvider
	Cache      *metricscache.Cache
}

type PingResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"API is alive"`
	Time    string `json:"time" example:"2024-06-19T08:09:10.115924-05:00"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Ping reports liveness
func (api *API) Ping(c *fiber.Ctx) error {
	now, _ := time.Now().MarshalText()
	return c.JSON(PingResponse{
		Status:  "success",
		Message: "API is alive",
		Time:    string(now),
	})
}

// apiError maps domain errors onto stable HTTP status codes and error codes
func apiError(c *fiber.Ctx, err error) error {
	var status int
	var code string

	switch {
	case errors.Is(err, instrument.ErrValidation):
		status, code = fiber.StatusBadRequest, "validation_error"
	case errors.Is(err, instrument.ErrNotFound), errors.Is(err, data.ErrPortfolioNotFound):
		status, code = fiber.StatusNotFound, "not_found"
	case errors.Is(err, instrument.ErrInvalidState):
		status, code = fiber.StatusConflict, "invalid_state"
	case errors.Is(err, instrument.ErrInsufficientRepayment):
		status, code = fiber.StatusConflict, "insufficient_repayment"
	case errors.Is(err, instrument.ErrVersionConflict):
		status, code = fiber.StatusConflict, "conflict"
	case errors.Is(err, portfolio.ErrInsufficientData):
		status, code = fiber.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, portfolio.ErrNonConvergence):
		status, code = fiber.StatusUnprocessableEntity, "non_convergence"
	default:
		log.Error().Stack().Err(err).Str("Path", c.Path()).Msg("unhandled error in request")
		status, code = fiber.StatusInternalServerError, "internal"
	}

	return c.Status(status).JSON(errorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

// parseDateRange reads startDate/endDate query parameters; endDate defaults
// to now and startDate to 1990-01-01
func parseDateRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	startDateStr := c.Query("startDate", "1990-01-01")
	endDateStr := c.Query("endDate", "now")

	startDate, err := time.Parse("2006-01-02", startDateStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	var endDate time.Time
	if endDateStr == "now" {
		endDate = time.Now()
	} else {
		endDate, err = time.Parse("2006-01-02", endDateStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	return startDate, endDate, nil
}
