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
	"time"

	"github.com/angel-vault/av-api/instrument"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createInstrumentRequest struct {
	InvestmentID                uuid.UUID        `json:"investmentId"`
	Principal                   decimal.Decimal  `json:"principal"`
	InterestRate                decimal.Decimal  `json:"interestRate"`
	IssueDate                   time.Time        `json:"issueDate"`
	MaturityDate                time.Time        `json:"maturityDate"`
	DiscountRate                *decimal.Decimal `json:"discountRate,omitempty"`
	ValuationCap                *decimal.Decimal `json:"valuationCap,omitempty"`
	QualifiedFinancingThreshold *decimal.Decimal `json:"qualifiedFinancingThreshold,omitempty"`
	Compounding                 string           `json:"compounding"`
}

type convertRequest struct {
	RoundPricePerShare decimal.Decimal `json:"roundPricePerShare"`
	RoundShares        int64           `json:"roundShares"`
}

type repayRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CreateInstrument records a new convertible note or SAFE at deal closing
func (api *API) CreateInstrument(c *fiber.Ctx) error {
	var req createInstrumentRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.ErrBadRequest
	}

	terms := &instrument.Terms{
		InvestmentID:                req.InvestmentID,
		Principal:                   req.Principal,
		InterestRate:                req.InterestRate,
		IssueDate:                   req.IssueDate,
		MaturityDate:                req.MaturityDate,
		DiscountRate:                req.DiscountRate,
		ValuationCap:                req.ValuationCap,
		QualifiedFinancingThreshold: req.QualifiedFinancingThreshold,
		Compounding:                 req.Compounding,
	}

	inst, err := api.Engine.Create(c.Context(), terms)
	if err != nil {
		return apiError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(inst)
}

// GetInstrument loads a single instrument by id
func (api *API) GetInstrument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	inst, err := api.Engine.Get(c.Context(), id)
	if err != nil {
		return apiError(c, err)
	}

	return c.JSON(inst)
}

// AccrueInterest brings an instrument's accrued interest current
func (api *API) AccrueInterest(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	inst, err := api.Engine.AccrueInterest(c.Context(), id)
	if err != nil {
		return apiError(c, err)
	}

	return c.JSON(inst)
}

// ConvertInstrument converts an instrument to equity at a priced round
func (api *API) ConvertInstrument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req convertRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.ErrBadRequest
	}

	result, err := api.Engine.Convert(c.Context(), id, req.RoundPricePerShare, req.RoundShares)
	if err != nil {
		return apiError(c, err)
	}

	return c.JSON(result)
}

// RepayInstrument repays an instrument at or before maturity
func (api *API) RepayInstrument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req repayRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.ErrBadRequest
	}

	inst, err := api.Engine.Repay(c.Context(), id, req.Amount)
	if err != nil {
		return apiError(c, err)
	}

	return c.JSON(inst)
}

// ListMaturing lists ACTIVE instruments maturing within the requested window
func (api *API) ListMaturing(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < 0 {
		return fiber.ErrBadRequest
	}

	instruments, err := api.Engine.MaturingWithin(c.Context(), days)
	if err != nil {
		return apiError(c, err)
	}

	return c.JSON(instruments)
}
