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

package portfolio

import (
	"github.com/angel-vault/av-api/data"
	"github.com/spf13/viper"
)

const (
	RiskLow      = "Low"
	RiskModerate = "Moderate"
	RiskHigh     = "High"
)

// ConcentrationBands classify the Herfindahl-Hirschman index for display.
// They are presentation labels, not invariants.
const (
	BandWellDiversified        = "well diversified"
	BandModeratelyConcentrated = "moderately concentrated"
	BandHighlyConcentrated     = "highly concentrated"
	BandVeryHighlyConcentrated = "very highly concentrated"
)

// RiskProfile summarizes portfolio concentration and overall risk
type RiskProfile struct {
	HHI             float64            `json:"hhi"`
	HHIBand         string             `json:"hhiBand"`
	SectorTotals    map[string]float64 `json:"sectorTotals"`
	TopSector       string             `json:"topSector"`
	TopSectorShare  float64            `json:"topSectorShare"`
	InvestmentCount int                `json:"investmentCount"`
	Volatility      float64            `json:"volatility"`
	OverallRisk     string             `json:"overallRisk"`
}

// HerfindahlIndex is the sum of squared portfolio weights over active
// investments: 1/n for n equal holdings, 1.0 for a single holding
func HerfindahlIndex(investments []*data.Investment) float64 {
	var total float64
	for _, inv := range investments {
		if inv.Status == data.InvestmentActive {
			total += inv.Amount
		}
	}
	if total == 0 {
		return 0
	}

	var hhi float64
	for _, inv := range investments {
		if inv.Status == data.InvestmentActive {
			weight := inv.Amount / total
			hhi += weight * weight
		}
	}
	return hhi
}

// HHIBand maps an HHI value to its presentation band
func HHIBand(hhi float64) string {
	switch {
	case hhi < 0.15:
		return BandWellDiversified
	case hhi < 0.25:
		return BandModeratelyConcentrated
	case hhi < 0.5:
		return BandHighlyConcentrated
	default:
		return BandVeryHighlyConcentrated
	}
}

// SectorConcentration sums invested amounts by sector and returns the totals
// along with the largest sector and its share of the whole
func SectorConcentration(investments []*data.Investment) (totals map[string]float64, topSector string, topShare float64) {
	totals = make(map[string]float64)
	var total float64
	for _, inv := range investments {
		if inv.Status != data.InvestmentActive {
			continue
		}
		totals[inv.Sector] += inv.Amount
		total += inv.Amount
	}
	if total == 0 {
		return totals, "", 0
	}

	for sector, amount := range totals {
		share := amount / total
		if share > topShare {
			topShare = share
			topSector = sector
		}
	}
	return totals, topSector, topShare
}

// riskThreshold reads a configured band threshold with a default
func riskThreshold(key string, fallback float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return fallback
}

// OverallRiskLevel combines volatility, concentration, and holding-count
// bands into a weighted score mapped to Low/Moderate/High. All thresholds
// are configuration, not derived.
func OverallRiskLevel(volatility, hhi float64, investmentCount int) string {
	score := 0

	switch {
	case volatility > riskThreshold("risk.volatility_high", 0.40):
		score += 2
	case volatility > riskThreshold("risk.volatility_moderate", 0.20):
		score++
	}

	switch {
	case hhi > riskThreshold("risk.hhi_high", 0.5):
		score += 2
	case hhi > riskThreshold("risk.hhi_moderate", 0.25):
		score++
	}

	switch {
	case investmentCount < int(riskThreshold("risk.count_low", 5)):
		score += 2
	case investmentCount < int(riskThreshold("risk.count_moderate", 15)):
		score++
	}

	switch {
	case score >= 4:
		return RiskHigh
	case score >= 2:
		return RiskModerate
	default:
		return RiskLow
	}
}

// Analyze builds the complete risk profile for a set of investment records
func Analyze(investments []*data.Investment, volatility float64) *RiskProfile {
	hhi := HerfindahlIndex(investments)
	totals, topSector, topShare := SectorConcentration(investments)

	count := 0
	for _, inv := range investments {
		if inv.Status == data.InvestmentActive {
			count++
		}
	}

	return &RiskProfile{
		HHI:             hhi,
		HHIBand:         HHIBand(hhi),
		SectorTotals:    totals,
		TopSector:       topSector,
		TopSectorShare:  topShare,
		InvestmentCount: count,
		Volatility:      volatility,
		OverallRisk:     OverallRiskLevel(volatility, hhi, count),
	}
}
