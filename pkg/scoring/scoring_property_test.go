package scoring_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

// TestScoresStayInRange checks every component against arbitrary summaries,
// including spends above the population maximum and future order dates.
// Property: rfm in [0,100], churn in [0,1], priority in [1,5]
func TestScoresStayInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("scores are bounded", prop.ForAll(
		func(orders int, spent float64, days int, maxSpent float64) bool {
			s := ledger.OrderSummary{TotalOrders: orders}
			if orders > 0 {
				s.TotalSpent = spent
				s.AvgOrderValue = spent / float64(orders)
				s.DaysSinceLastOrder = &days
			}

			r := scoring.ComputeRFM(s, maxSpent)
			churn := scoring.ComputeChurn(s)
			tier := scoring.PriorityTier(r.Score, churn)

			for _, c := range []float64{r.Recency, r.Frequency, r.Monetary} {
				if c < 0 || c > 100 {
					return false
				}
			}
			return r.Score >= 0 && r.Score <= 100 &&
				churn >= 0 && churn <= 1 &&
				tier >= 1 && tier <= 5
		},
		gen.IntRange(0, 40),
		gen.Float64Range(0, 50000),
		gen.IntRange(-30, 2000),
		gen.Float64Range(0, 20000),
	))

	properties.TestingRun(t)
}

// TestLedgerScoresStayInRange scores random order histories end to end.
func TestLedgerScoresStayInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	now := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)

	properties.Property("engine scores are bounded", prop.ForAll(
		func(offsets []int, qty int, price float64) bool {
			customers := []ledger.Customer{{CustomerID: "A"}, {CustomerID: "B"}}
			orders := []ledger.Order{{CustomerID: "B", OrderID: "B-1", OrderDate: now, SKU: "X", Quantity: 2, UnitPrice: 9.5}}
			for i, off := range offsets {
				orders = append(orders, ledger.Order{
					CustomerID: "A",
					OrderID:    fmt.Sprintf("A-%d", i),
					OrderDate:  now.AddDate(0, 0, -off),
					SKU:        "S",
					Quantity:   qty,
					UnitPrice:  price,
				})
			}
			l, err := ledger.New(customers, orders)
			if err != nil {
				return false
			}

			e := scoring.NewEngine(l)
			for _, id := range l.CustomerIDs() {
				s := e.Score(context.Background(), id, now)
				if s.RFMScore < 0 || s.RFMScore > 100 || s.ChurnRisk < 0 || s.ChurnRisk > 1 || s.Priority < 1 || s.Priority > 5 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-5, 400)),
		gen.IntRange(1, 100),
		gen.Float64Range(0, 500),
	))

	properties.TestingRun(t)
}
