// Package scoring computes recency/frequency/monetary scores, churn risk and
// priority tiers from a customer's order history.
//
// The pure functions in this file and churn.go take an OrderSummary and never
// touch the ledger, so they can be exercised directly by property tests. The
// Engine binds them to a Ledger and applies the failure policy.
package scoring

import (
	"math"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
)

// RFM weights. The blend is floored to an integer score.
const (
	RecencyWeight   = 0.3
	FrequencyWeight = 0.3
	MonetaryWeight  = 0.4

	// RecencyHorizonDays is where recency credit reaches zero.
	RecencyHorizonDays = 90
	// FrequencyStep is the credit per order; five orders saturate.
	FrequencyStep = 20
)

// RFM holds the three components (each in [0,100]) and their blended score.
type RFM struct {
	Recency   float64 `json:"recency"`
	Frequency float64 `json:"frequency"`
	Monetary  float64 `json:"monetary"`
	Score     int     `json:"rfm_score"`
}

// ComputeRFM scores one customer. maxSpent is the largest per-customer spend
// in the population; a zero maximum yields a zero monetary component.
func ComputeRFM(s ledger.OrderSummary, maxSpent float64) RFM {
	if !s.HasOrders() {
		return RFM{}
	}

	days := 0
	if s.DaysSinceLastOrder != nil && *s.DaysSinceLastOrder > 0 {
		days = *s.DaysSinceLastOrder
	}

	recency := clamp(100-float64(days)*100/RecencyHorizonDays, 0, 100)
	frequency := clamp(float64(s.TotalOrders*FrequencyStep), 0, 100)

	var monetary float64
	if maxSpent > 0 {
		monetary = clamp(100*s.TotalSpent/maxSpent, 0, 100)
	}

	score := int(math.Floor(RecencyWeight*recency + FrequencyWeight*frequency + MonetaryWeight*monetary))
	return RFM{
		Recency:   recency,
		Frequency: frequency,
		Monetary:  monetary,
		Score:     clampInt(score, 0, 100),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
