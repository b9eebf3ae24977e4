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

	"github.com/angel-vault/av-api/common"
	"github.com/angel-vault/av-api/database"
	"github.com/angel-vault/av-api/instrument"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var maturityDays int

func init() {
	maturityCmd.Flags().IntVar(&maturityDays, "days", 30, "Days ahead to look for maturing instruments")
	rootCmd.AddCommand(maturityCmd)
}

var maturityCmd = &cobra.Command{
	Use:   "maturity",
	Short: "list active instruments maturing within the given window",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		common.SetupLogging()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}

		engine := instrument.NewEngine(instrument.NewPgxStore())
		maturing, err := engine.MaturingWithin(ctx, maturityDays)
		if err != nil {
			log.Fatal().Err(err).Msg("maturity scan failed")
		}

		if len(maturing) == 0 {
			fmt.Printf("no instruments mature within %d days\n", maturityDays)
			return
		}

		for _, inst := range maturing {
			fmt.Printf("%s  investment=%s  principal=%s  matures=%s\n",
				inst.ID, inst.InvestmentID, inst.Principal.StringFixed(2),
				inst.MaturityDate.Format("2006-01-02"))
		}
	},
}
