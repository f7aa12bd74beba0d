package scoring

import (
	"math"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
)

const (
	// ChurnRecencyDays is where recency risk saturates.
	ChurnRecencyDays = 60
	// MaxChurnRisk is returned for customers without orders.
	MaxChurnRisk = 1.0
)

// ComputeChurn estimates the risk that a customer lapses, rounded to three
// decimals and clamped to [0,1].
func ComputeChurn(s ledger.OrderSummary) float64 {
	if !s.HasOrders() {
		return MaxChurnRisk
	}

	days := 0
	if s.DaysSinceLastOrder != nil && *s.DaysSinceLastOrder > 0 {
		days = *s.DaysSinceLastOrder
	}

	recencyRisk := math.Min(1, float64(days)/ChurnRecencyDays)
	frequencyRisk := 1 / (1 + float64(s.TotalOrders))
	valueRisk := 1 / (1 + math.Max(0, s.AvgOrderValue)/10)

	risk := 0.5*recencyRisk + 0.3*frequencyRisk + 0.2*valueRisk
	return clamp(math.Round(risk*1000)/1000, 0, 1)
}
