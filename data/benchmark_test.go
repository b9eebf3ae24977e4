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

package data_test

import (
	"errors"
	"net/http"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/angel-vault/av-api/data"
)

var _ = Describe("BenchmarkProvider", func() {
	var (
		provider *data.BenchmarkProvider
		begin    time.Time
		end      time.Time
	)

	BeforeEach(func() {
		httpmock.Activate()
		viper.Set("benchmark.url", "https://benchmarks.test")
		provider = data.NewBenchmarkProvider()

		begin = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
		viper.Set("benchmark.url", "")
	})

	It("downloads and parses a return series", func() {
		httpmock.RegisterResponder("GET", "https://benchmarks.test/series/SP500.csv?begin=2021-01-01&end=2021-03-31",
			httpmock.NewStringResponder(200,
				"date,return\n2021-01-31,0.02\n2021-02-28,-0.01\n2021-03-31,0.03\n"))

		series, err := provider.Series("SP500", begin, end)
		Expect(err).To(BeNil())
		Expect(series.Name).To(Equal("SP500"))
		Expect(series.Points).To(HaveLen(3))
		Expect(series.Points[0].Date).To(Equal(time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)))
		Expect(series.Points[0].Return).To(Equal(0.02))
		Expect(series.Points[1].Return).To(Equal(-0.01))
	})

	It("tolerates a missing header row", func() {
		httpmock.RegisterResponder("GET", "https://benchmarks.test/series/NASDAQ.csv?begin=2021-01-01&end=2021-03-31",
			httpmock.NewStringResponder(200,
				"2021-01-31,0.02\n2021-02-28,-0.01\n"))

		series, err := provider.Series("NASDAQ", begin, end)
		Expect(err).To(BeNil())
		Expect(series.Points).To(HaveLen(2))
	})

	It("passes the date range as query parameters", func() {
		var gotURL string
		httpmock.RegisterResponder("GET", "https://benchmarks.test/series/SP500.csv?begin=2021-01-01&end=2021-03-31",
			func(req *http.Request) (*http.Response, error) {
				gotURL = req.URL.String()
				return httpmock.NewStringResponse(200, "date,return\n2021-01-31,0.02\n2021-02-28,0.01\n"), nil
			})

		_, err := provider.Series("SP500", begin, end)
		Expect(err).To(BeNil())
		Expect(gotURL).To(ContainSubstring("begin=2021-01-01"))
		Expect(gotURL).To(ContainSubstring("end=2021-03-31"))
	})

	It("reports a download failure on an error status", func() {
		httpmock.RegisterResponder("GET", "https://benchmarks.test/series/SP500.csv?begin=2021-01-01&end=2021-03-31",
			httpmock.NewStringResponder(502, "bad gateway"))

		_, err := provider.Series("SP500", begin, end)
		Expect(errors.Is(err, data.ErrBenchmarkDownload)).To(BeTrue())
	})

	It("reports a parse failure on malformed rows", func() {
		httpmock.RegisterResponder("GET", "https://benchmarks.test/series/SP500.csv?begin=2021-01-01&end=2021-03-31",
			httpmock.NewStringResponder(200,
				"date,return\n2021-01-31,not-a-number\n"))

		_, err := provider.Series("SP500", begin, end)
		Expect(errors.Is(err, data.ErrBenchmarkParse)).To(BeTrue())
	})

	It("reports a parse failure on a bad date", func() {
		httpmock.RegisterResponder("GET", "https://benchmarks.test/series/SP500.csv?begin=2021-01-01&end=2021-03-31",
			httpmock.NewStringResponder(200,
				"date,return\n31/01/2021,0.02\n"))

		_, err := provider.Series("SP500", begin, end)
		Expect(errors.Is(err, data.ErrBenchmarkParse)).To(BeTrue())
	})
})
