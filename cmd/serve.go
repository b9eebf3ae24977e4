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
	"os"
	"os/signal"

	"github.com/angel-vault/av-api/common"
	"github.com/angel-vault/av-api/data"
	"github.com/angel-vault/av-api/database"
	"github.com/angel-vault/av-api/handler"
	"github.com/angel-vault/av-api/instrument"
	"github.com/angel-vault/av-api/metricscache"
	"github.com/angel-vault/av-api/middleware"
	"github.com/angel-vault/av-api/observability/opentelemetry"
	"github.com/angel-vault/av-api/portfolio"
	"github.com/angel-vault/av-api/router"

	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	serveCmd.Flags().Int("maturity-window", 30, "Days ahead the daily maturity scan looks")
	viper.BindPFlag("maturity.window", serveCmd.Flags().Lookup("maturity-window"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the av-api server",
	Long:  `Run HTTP server that implements the Angel Vault API`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		common.SetupLogging()
		log.Info().Msg("initialized logging")

		if viper.GetString("otlp.endpoint") != "" {
			shutdownTracing, err := opentelemetry.Setup()
			if err != nil {
				log.Fatal().Err(err).Msg("could not configure tracing")
			}
			defer func() {
				if err := shutdownTracing(ctx); err != nil {
					log.Error().Err(err).Msg("error while shutting down trace exporter")
				}
			}()
		}

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}

		cache, err := metricscache.New(viper.GetInt("cache.size"), viper.GetDuration("cache.ttl"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize metrics cache")
		}

		manager := data.NewManager()
		engine := instrument.NewEngine(instrument.NewPgxStore())
		api := &handler.API{
			Engine:     engine,
			Calculator: portfolio.NewCalculator(manager),
			Comparator: portfolio.NewComparator(manager),
			Manager:    manager,
			Benchmarks: data.NewBenchmarkProvider(),
			Cache:      cache,
		}

		app := fiber.New()

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if err := app.Shutdown(); err != nil {
				log.Fatal().Err(err).Msg("error on app shutdown")
			}
		}()

		app.Use(fiberrecover.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "*",
			AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		}))
		app.Use(middleware.NewLogger())

		router.SetupRoutes(app, api)

		// scan for upcoming maturities once a day at market open
		scheduler := gocron.NewScheduler(common.GetTimezone())
		scheduler.Every(1).Day().At("09:30").Do(func() {
			window := viper.GetInt("maturity.window")
			maturing, err := engine.MaturingWithin(ctx, window)
			if err != nil {
				log.Error().Err(err).Msg("maturity scan failed")
				return
			}
			for _, inst := range maturing {
				log.Warn().
					Str("InstrumentID", inst.ID.String()).
					Str("InvestmentID", inst.InvestmentID.String()).
					Time("MaturityDate", inst.MaturityDate).
					Str("Principal", inst.Principal.String()).
					Msg("instrument approaching maturity")
			}
		})
		scheduler.StartAsync()

		if err := app.Listen(fmt.Sprintf(":%d", viper.GetInt("server.port"))); err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	},
}
