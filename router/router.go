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

package router

import (
	"github.com/angel-vault/av-api/handler"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes registers the v1 API surface
func SetupRoutes(app *fiber.App, api *handler.API) {
	v1 := app.Group("/v1")
	v1.Get("/", api.Ping)

	// Portfolio metrics
	p := v1.Group("/portfolio")
	p.Get("/:id/performance", api.GetPerformance)
	p.Get("/:id/benchmark", api.CompareBenchmark)
	p.Post("/:id/peers", api.ComparePeers)
	p.Get("/:id/risk", api.GetRisk)

	// Convertible instruments
	inst := v1.Group("/instrument")
	inst.Post("/", api.CreateInstrument)
	inst.Get("/maturing", api.ListMaturing)
	inst.Get("/:id", api.GetInstrument)
	inst.Post("/:id/accrue", api.AccrueInterest)
	inst.Post("/:id/convert", api.ConvertInstrument)
	inst.Post("/:id/repay", api.RepayInstrument)
}
