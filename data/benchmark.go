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
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrBenchmarkDownload = errors.New("could not download benchmark series")
	ErrBenchmarkParse    = errors.New("could not parse benchmark series")
)

// ReturnPoint is a single dated periodic return
type ReturnPoint struct {
	Date   time.Time
	Return float64
}

// BenchmarkSeries is a named index return series supplied by the benchmark
// data collaborator; it is calculator input only and never persisted here
type BenchmarkSeries struct {
	Name   string
	Points []ReturnPoint
}

// BenchmarkProvider downloads index return series from the configured
// benchmark data service as CSV (date,return rows)
type BenchmarkProvider struct {
	baseURL string
}

// NewBenchmarkProvider creates a provider from the benchmark.url setting
func NewBenchmarkProvider() *BenchmarkProvider {
	return &BenchmarkProvider{
		baseURL: viper.GetString("benchmark.url"),
	}
}

// Series downloads the return series for the named index over the requested
// date range
func (p *BenchmarkProvider) Series(name string, begin, end time.Time) (*BenchmarkSeries, error) {
	url := fmt.Sprintf("%s/series/%s.csv?begin=%s&end=%s", p.baseURL, name,
		begin.Format("2006-01-02"), end.Format("2006-01-02"))

	resp, err := http.Get(url)
	if err != nil {
		log.Error().Stack().Err(err).Str("URL", url).Msg("benchmark download failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Error().Int("StatusCode", resp.StatusCode).Str("URL", url).Msg("benchmark download returned error status")
		return nil, ErrBenchmarkDownload
	}

	reader := csv.NewReader(resp.Body)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBenchmarkParse, err)
	}

	series := &BenchmarkSeries{
		Name:   name,
		Points: make([]ReturnPoint, 0, len(records)),
	}

	for ii, record := range records {
		if len(record) < 2 {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrBenchmarkParse, ii, len(record))
		}
		if ii == 0 && strings.EqualFold(record[0], "date") {
			// header row
			continue
		}
		date, err := time.Parse("2006-01-02", record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBenchmarkParse, err)
		}
		ret, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBenchmarkParse, err)
		}
		series.Points = append(series.Points, ReturnPoint{Date: date, Return: ret})
	}

	return series, nil
}
