package recommend

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewDefaultEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return e
}

func actions(recs []Recommendation) []Action {
	out := make([]Action, len(recs))
	for i, r := range recs {
		out[i] = r.Action
	}
	return out
}

func TestRecommend_DecisionTable(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name  string
		facts Facts
		want  []Action
	}{
		{
			name:  "lapsed high churn, low value",
			facts: Facts{RFMScore: 10, ChurnRisk: 0.9, TotalOrders: 1, AvgOrderValue: 5, DaysSinceLastOrder: 80},
			want:  []Action{ActionCall, ActionPromo, ActionEmail},
		},
		{
			name:  "recent high churn, low value",
			facts: Facts{RFMScore: 10, ChurnRisk: 0.75, TotalOrders: 1, AvgOrderValue: 5, DaysSinceLastOrder: 30},
			want:  []Action{ActionEmail, ActionEmail, ActionPromo},
		},
		{
			name:  "high value big basket",
			facts: Facts{RFMScore: 85, ChurnRisk: 0.2, TotalOrders: 3, AvgOrderValue: 25, DaysSinceLastOrder: 3},
			want:  []Action{ActionOfferBundle, ActionEmail, ActionPromo},
		},
		{
			name:  "high value small basket",
			facts: Facts{RFMScore: 71, ChurnRisk: 0.2, TotalOrders: 5, AvgOrderValue: 20, DaysSinceLastOrder: 3},
			want:  []Action{ActionCall, ActionEmail, ActionPromo},
		},
		{
			name:  "medium value few orders",
			facts: Facts{RFMScore: 70, ChurnRisk: 0.4, TotalOrders: 2, AvgOrderValue: 15, DaysSinceLastOrder: 10},
			want:  []Action{ActionPromo, ActionEmail, ActionPromo},
		},
		{
			name:  "medium value consistent",
			facts: Facts{RFMScore: 41, ChurnRisk: 0.4, TotalOrders: 3, AvgOrderValue: 15, DaysSinceLastOrder: 10},
			want:  []Action{ActionEmail, ActionPromo, ActionPromo},
		},
		{
			name:  "low value recent",
			facts: Facts{RFMScore: 40, ChurnRisk: 0.5, TotalOrders: 1, AvgOrderValue: 12, DaysSinceLastOrder: 60},
			want:  []Action{ActionEmail, ActionPromo, ActionPromo},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, actions(e.Recommend(context.Background(), tt.facts)))
		})
	}
}

func TestRecommend_NoOrdersIncludesEmail(t *testing.T) {
	e := newTestEngine(t)
	f := FactsFrom(ledger.OrderSummary{}, scoring.Sentinel())

	assert.Equal(t, UnknownRecencyDays, f.DaysSinceLastOrder)
	recs := e.Recommend(context.Background(), f)
	assert.Equal(t, []Action{ActionCall, ActionPromo, ActionEmail}, actions(recs))
	assert.Contains(t, recs[0].Reason, "999 days")
}

func TestRecommend_ReasonFormatting(t *testing.T) {
	e := newTestEngine(t)
	recs := e.Recommend(context.Background(), Facts{RFMScore: 90, ChurnRisk: 0.1, TotalOrders: 4, AvgOrderValue: 20.166, DaysSinceLastOrder: 2})

	assert.Equal(t, "High-value customer ($20.17 AOV) - perfect candidate for premium product bundles", recs[0].Reason)
}

func TestNewEngine_RejectsBadRules(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reason := fixed("x")

	_, err := NewEngine([]Rule{{ID: "syntax", Group: "g", When: "rfm_score >", Action: ActionCall, Reason: reason}}, logger)
	assert.ErrorContains(t, err, "syntax")

	_, err = NewEngine([]Rule{{ID: "nonbool", Group: "g", When: "rfm_score + 1", Action: ActionCall, Reason: reason}}, logger)
	assert.ErrorContains(t, err, "must be bool")

	_, err = NewEngine([]Rule{{ID: "action", Group: "g", When: "true", Action: "fax", Reason: reason}}, logger)
	assert.ErrorContains(t, err, "unknown action")

	_, err = NewEngine([]Rule{{ID: "noreason", Group: "g", When: "true", Action: ActionCall}}, logger)
	assert.ErrorContains(t, err, "missing reason")
}

func TestRecommend_PanickingReasonFallsBack(t *testing.T) {
	e, err := NewEngine([]Rule{{
		ID: "boom", Group: "g", When: "true", Action: ActionCall,
		Reason: func(Facts) string { panic("boom") },
	}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, Fallback(), e.Recommend(context.Background(), Facts{}))
}

func TestRecommend_EvalErrorFallsBack(t *testing.T) {
	e, err := NewEngine([]Rule{{
		ID: "div", Group: "g", When: "10 / total_orders > 1", Action: ActionCall, Reason: fixed("x"),
	}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, Fallback(), e.Recommend(context.Background(), Facts{TotalOrders: 0}))
}

func TestTruncateReason(t *testing.T) {
	long := strings.Repeat("é", 250)
	got := truncateReason(long)
	assert.Equal(t, MaxReasonLen, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.NotEmpty(t, truncateReason(""))
}

// Property: 1..3 items, known actions, non-empty reasons of bounded length
func TestRecommend_Properties(t *testing.T) {
	e := newTestEngine(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("recommendations are well formed", prop.ForAll(
		func(rfm int, churn float64, orders int, aov float64, days int) bool {
			recs := e.Recommend(context.Background(), Facts{
				RFMScore: rfm, ChurnRisk: churn, TotalOrders: orders, AvgOrderValue: aov, DaysSinceLastOrder: days,
			})
			if len(recs) < 1 || len(recs) > MaxItems {
				return false
			}
			for _, r := range recs {
				if !r.Action.Valid() || r.Reason == "" || len([]rune(r.Reason)) > MaxReasonLen {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 100),
		gen.Float64Range(0, 1),
		gen.IntRange(0, 50),
		gen.Float64Range(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
