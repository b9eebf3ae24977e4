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

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/angel-vault/av-api/common"
	"github.com/angel-vault/av-api/data"
	"github.com/angel-vault/av-api/database"
	"github.com/angel-vault/av-api/portfolio"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var metricStartDate string

func init() {
	metricCmd.Flags().StringVar(&metricStartDate, "start-date", "1990-01-01", "Start of the measurement period (YYYY-MM-DD)")
	rootCmd.AddCommand(metricCmd)
}

var metricCmd = &cobra.Command{
	Use:   "metric <portfolio id>",
	Short: "calculate performance metrics for a portfolio (mostly useful for debugging)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		common.SetupLogging()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}

		portfolioID, err := uuid.Parse(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("Arg", args[0]).Msg("not a valid portfolio id")
		}

		startDate, err := time.Parse("2006-01-02", metricStartDate)
		if err != nil {
			log.Fatal().Err(err).Msg("could not parse start date")
		}

		calculator := portfolio.NewCalculator(data.NewManager())
		snapshot, err := calculator.CalculatePerformance(ctx, portfolioID, startDate, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("could not calculate performance")
		}

		out, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("could not serialize snapshot")
		}
		fmt.Println(string(out))
	},
}
