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

package handler_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"
	"github.com/shopspring/decimal"

	"github.com/angel-vault/av-api/data"
	"github.com/angel-vault/av-api/database"
	"github.com/angel-vault/av-api/handler"
	"github.com/angel-vault/av-api/instrument"
	"github.com/angel-vault/av-api/metricscache"
	"github.com/angel-vault/av-api/pgxmockhelper"
	"github.com/angel-vault/av-api/portfolio"
	"github.com/angel-vault/av-api/router"
)

func decodeBody(resp *http.Response, out interface{}) {
	body, err := io.ReadAll(resp.Body)
	Expect(err).To(BeNil())
	Expect(json.Unmarshal(body, out)).To(Succeed())
}

var _ = Describe("API", func() {
	var (
		app    *fiber.App
		dbPool pgxmock.PgxConnIface
		engine *instrument.Engine

		issueDate time.Time
	)

	BeforeEach(func() {
		var err error
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)

		issueDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		manager := data.NewManager()
		engine = instrument.NewEngine(instrument.NewPgxStore())
		engine.SetClock(func() time.Time { return issueDate })

		cache, err := metricscache.New(16, 15*time.Minute)
		Expect(err).To(BeNil())

		api := &handler.API{
			Engine:     engine,
			Calculator: portfolio.NewCalculator(manager),
			Comparator: portfolio.NewComparator(manager),
			Manager:    manager,
			Benchmarks: data.NewBenchmarkProvider(),
			Cache:      cache,
		}

		app = fiber.New()
		router.SetupRoutes(app, api)
	})

	It("answers the liveness ping", func() {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/", nil))
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
	})

	Context("instrument endpoints", func() {
		It("creates an instrument from valid terms", func() {
			pgxmockhelper.MockInstrumentInsert(dbPool)

			body := `{
				"investmentId": "0b89b4b5-62b8-4c4f-8f06-63a92d52a04e",
				"principal": "100000",
				"interestRate": "8",
				"issueDate": "2025-01-01T00:00:00Z",
				"maturityDate": "2027-01-01T00:00:00Z",
				"compounding": "SIMPLE"
			}`
			req := httptest.NewRequest("POST", "/v1/instrument/", strings.NewReader(body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := app.Test(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		})

		It("maps validation failures onto 400", func() {
			body := `{
				"investmentId": "0b89b4b5-62b8-4c4f-8f06-63a92d52a04e",
				"principal": "0",
				"interestRate": "8",
				"issueDate": "2025-01-01T00:00:00Z",
				"maturityDate": "2027-01-01T00:00:00Z",
				"compounding": "SIMPLE"
			}`
			req := httptest.NewRequest("POST", "/v1/instrument/", strings.NewReader(body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := app.Test(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var errBody struct {
				Code string `json:"code"`
			}
			decodeBody(resp, &errBody)
			Expect(errBody.Code).To(Equal("validation_error"))
		})

		It("maps an unknown instrument onto 404", func() {
			dbPool.ExpectQuery("SELECT (.+) FROM convertible_instrument WHERE id").
				WillReturnError(pgx.ErrNoRows)

			resp, err := app.Test(httptest.NewRequest("GET",
				"/v1/instrument/"+uuid.NewString(), nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("rejects a malformed instrument id", func() {
			resp, err := app.Test(httptest.NewRequest("GET",
				"/v1/instrument/not-a-uuid", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("maps a terminal-state conversion onto 409", func() {
			note := &instrument.Instrument{
				ID:              uuid.New(),
				InvestmentID:    uuid.New(),
				Principal:       decimal.RequireFromString("100000"),
				InterestRate:    decimal.RequireFromString("8"),
				IssueDate:       issueDate,
				MaturityDate:    issueDate.AddDate(2, 0, 0),
				Compounding:     instrument.CompoundingSimple,
				AccruedInterest: decimal.Zero,
				LastAccrual:     issueDate,
				Status:          instrument.StatusConverted,
				Version:         2,
			}
			pgxmockhelper.MockInstrumentGet(dbPool, note)

			body := `{"roundPricePerShare": "2.00", "roundShares": 1000000}`
			req := httptest.NewRequest("POST",
				"/v1/instrument/"+note.ID.String()+"/convert", strings.NewReader(body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := app.Test(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))

			var errBody struct {
				Code string `json:"code"`
			}
			decodeBody(resp, &errBody)
			Expect(errBody.Code).To(Equal("invalid_state"))
		})

		It("rejects a conversion request with no round terms", func() {
			note := &instrument.Instrument{
				ID:              uuid.New(),
				InvestmentID:    uuid.New(),
				Principal:       decimal.RequireFromString("100000"),
				InterestRate:    decimal.RequireFromString("8"),
				IssueDate:       issueDate,
				MaturityDate:    issueDate.AddDate(2, 0, 0),
				Compounding:     instrument.CompoundingSimple,
				AccruedInterest: decimal.Zero,
				LastAccrual:     issueDate,
				Status:          instrument.StatusActive,
				Version:         1,
			}
			pgxmockhelper.MockInstrumentGet(dbPool, note)

			req := httptest.NewRequest("POST",
				"/v1/instrument/"+note.ID.String()+"/convert", strings.NewReader(`{}`))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := app.Test(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var errBody struct {
				Code string `json:"code"`
			}
			decodeBody(resp, &errBody)
			Expect(errBody.Code).To(Equal("validation_error"))
		})

		It("maps a short repayment onto 409", func() {
			note := &instrument.Instrument{
				ID:              uuid.New(),
				InvestmentID:    uuid.New(),
				Principal:       decimal.RequireFromString("100000"),
				InterestRate:    decimal.RequireFromString("8"),
				IssueDate:       issueDate,
				MaturityDate:    issueDate.AddDate(2, 0, 0),
				Compounding:     instrument.CompoundingSimple,
				AccruedInterest: decimal.Zero,
				LastAccrual:     issueDate,
				Status:          instrument.StatusActive,
				Version:         1,
			}
			pgxmockhelper.MockInstrumentGet(dbPool, note)

			body := `{"amount": "50000"}`
			req := httptest.NewRequest("POST",
				"/v1/instrument/"+note.ID.String()+"/repay", strings.NewReader(body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := app.Test(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))

			var errBody struct {
				Code string `json:"code"`
			}
			decodeBody(resp, &errBody)
			Expect(errBody.Code).To(Equal("insufficient_repayment"))
		})

		It("rejects a negative maturity window", func() {
			resp, err := app.Test(httptest.NewRequest("GET",
				"/v1/instrument/maturing?days=-1", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("lists maturing instruments", func() {
			pgxmockhelper.MockMaturingQuery(dbPool)

			resp, err := app.Test(httptest.NewRequest("GET",
				"/v1/instrument/maturing?days=45", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})

	Context("portfolio endpoints", func() {
		It("serves a performance snapshot and caches the payload", func() {
			pgxmockhelper.MockInvestmentQuery(dbPool, "testdata/investments.csv")
			pgxmockhelper.MockValuationQuery(dbPool, "testdata/valuations.csv",
				time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC))

			url := "/v1/portfolio/8a9e4c3f-1f4a-4b5e-9d2c-7a1f0e6b3c58/performance?startDate=2021-01-01&endDate=2021-12-31"
			resp, err := app.Test(httptest.NewRequest("GET", url, nil), 5000)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var snapshot portfolio.Snapshot
			decodeBody(resp, &snapshot)
			Expect(snapshot.TotalInvested).To(Equal(200000.0))
			Expect(snapshot.MOIC).To(BeNumerically("~", 2.05, 1e-9))

			// no further expectations registered; a second request must be
			// served from the cache
			resp, err = app.Test(httptest.NewRequest("GET", url, nil), 5000)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(dbPool.ExpectationsWereMet()).To(Succeed())
		})

		It("maps an unknown portfolio onto 404", func() {
			dbPool.ExpectQuery("SELECT (.+) FROM investment").WillReturnRows(
				pgxmock.NewRows([]string{"id", "portfolio_id", "company",
					"sector", "amount", "invest_date", "current_value",
					"distributions", "status"}))

			url := "/v1/portfolio/" + uuid.NewString() + "/performance?startDate=2021-01-01&endDate=2021-12-31"
			resp, err := app.Test(httptest.NewRequest("GET", url, nil), 5000)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("rejects an unparseable date range", func() {
			url := "/v1/portfolio/" + uuid.NewString() + "/performance?startDate=January"
			resp, err := app.Test(httptest.NewRequest("GET", url, nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotAcceptable))
		})

		It("serves the concentration risk profile", func() {
			pgxmockhelper.MockInvestmentQuery(dbPool, "testdata/investments.csv")
			pgxmockhelper.MockValuationQuery(dbPool, "testdata/valuations.csv",
				time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC))

			url := "/v1/portfolio/8a9e4c3f-1f4a-4b5e-9d2c-7a1f0e6b3c58/risk?startDate=2021-01-01&endDate=2021-12-31"
			resp, err := app.Test(httptest.NewRequest("GET", url, nil), 5000)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var profile portfolio.RiskProfile
			decodeBody(resp, &profile)
			Expect(profile.InvestmentCount).To(Equal(2))
			Expect(profile.HHIBand).ToNot(BeEmpty())
			Expect(profile.OverallRisk).ToNot(BeEmpty())
			Expect(dbPool.ExpectationsWereMet()).To(Succeed())
		})

		It("serves the risk profile when the cash flows have no internal rate", func() {
			// these records build a cash-flow sequence whose NPV is negative
			// at every rate, so the full performance snapshot fails
			pgxmockhelper.MockInvestmentQuery(dbPool, "testdata/investments_rootless.csv")
			pgxmockhelper.MockValuationQuery(dbPool, "testdata/valuations.csv",
				time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC))

			perfURL := "/v1/portfolio/8a9e4c3f-1f4a-4b5e-9d2c-7a1f0e6b3c58/performance?startDate=2021-01-01&endDate=2021-12-31"
			resp, err := app.Test(httptest.NewRequest("GET", perfURL, nil), 5000)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))

			// the concentration profile has no IRR dependency and stays up
			pgxmockhelper.MockInvestmentQuery(dbPool, "testdata/investments_rootless.csv")
			pgxmockhelper.MockValuationQuery(dbPool, "testdata/valuations.csv",
				time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC))

			url := "/v1/portfolio/8a9e4c3f-1f4a-4b5e-9d2c-7a1f0e6b3c58/risk?startDate=2021-01-01&endDate=2021-12-31"
			resp, err = app.Test(httptest.NewRequest("GET", url, nil), 5000)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var profile portfolio.RiskProfile
			decodeBody(resp, &profile)
			Expect(profile.InvestmentCount).To(Equal(1))
			Expect(profile.Volatility).To(BeNumerically(">", 0))
		})

		It("ranks the portfolio among its peers on its recorded return", func() {
			pgxmockhelper.MockInvestmentQuery(dbPool, "testdata/investments.csv")
			pgxmockhelper.MockPeerQuery(dbPool, "testdata/peers_growth.csv")

			// the fixture records annualize to about 43.2%, which lands above
			// three of the five peer returns
			url := "/v1/portfolio/8a9e4c3f-1f4a-4b5e-9d2c-7a1f0e6b3c58/peers?startDate=2021-01-01&endDate=2021-12-31"
			req := httptest.NewRequest("POST", url, nil)

			resp, err := app.Test(req, 5000)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var comparison portfolio.PeerComparison
			decodeBody(resp, &comparison)
			Expect(comparison.PortfolioReturn).To(BeNumerically("~", 0.4321, 1e-3))
			Expect(comparison.PercentileRank).To(BeNumerically("~", 60.0, 1e-9))
		})

		It("maps an empty peer sample onto 422", func() {
			pgxmockhelper.MockInvestmentQuery(dbPool, "testdata/investments.csv")
			dbPool.ExpectQuery("SELECT annualized_return FROM peer_return").
				WillReturnRows(pgxmock.NewRows([]string{"annualized_return"}))

			url := "/v1/portfolio/8a9e4c3f-1f4a-4b5e-9d2c-7a1f0e6b3c58/peers?startDate=2021-01-01&endDate=2021-12-31"
			req := httptest.NewRequest("POST", url, nil)

			resp, err := app.Test(req, 5000)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))

			var errBody struct {
				Code string `json:"code"`
			}
			decodeBody(resp, &errBody)
			Expect(errBody.Code).To(Equal("insufficient_data"))
		})
	})
})
