package ranking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

var refDate = time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func TestTopFollowups_SampleOrdering(t *testing.T) {
	r := New(scoring.NewEngine(ledger.Sample()))

	ids := r.TopFollowups(context.Background(), refDate, 5)
	require.Len(t, ids, 4)
	assert.Equal(t, "C001", ids[0])
	assert.Less(t, indexOf(ids, "C001"), indexOf(ids, "C002"))
}

func TestTopFollowups_LimitAndDefault(t *testing.T) {
	r := New(scoring.NewEngine(ledger.Sample()))
	ctx := context.Background()

	assert.Len(t, r.TopFollowups(ctx, refDate, 2), 2)
	assert.Len(t, r.TopFollowups(ctx, refDate, 0), 4)
}

func TestTopFollowups_Idempotent(t *testing.T) {
	r := New(scoring.NewEngine(ledger.Sample()))
	ctx := context.Background()

	first := r.TopFollowups(ctx, refDate, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.TopFollowups(ctx, refDate, 5))
	}
}

func TestTopFollowups_IgnoresTimeOfDay(t *testing.T) {
	r := New(scoring.NewEngine(ledger.Sample()))
	ctx := context.Background()

	late := refDate.Add(23 * time.Hour)
	assert.Equal(t, r.Rank(ctx, refDate), r.Rank(ctx, late))
}

// Equal priority resolves toward the lower churn risk. This under-ranks the
// riskier of two otherwise equal customers; the order is kept deliberately.
func TestSortCandidates_TieBreakPrefersLowerChurn(t *testing.T) {
	cs := []Candidate{
		{CustomerID: "risky", PriorityScore: 50, ChurnRisk: 0.8},
		{CustomerID: "safe", PriorityScore: 50, ChurnRisk: 0.2},
		{CustomerID: "top", PriorityScore: 70, ChurnRisk: 0.9},
	}
	sortCandidates(cs)

	assert.Equal(t, "top", cs[0].CustomerID)
	assert.Equal(t, "safe", cs[1].CustomerID)
	assert.Equal(t, "risky", cs[2].CustomerID)
}

func TestPriorityScore(t *testing.T) {
	assert.InDelta(t, 100, PriorityScore(100, 0), 1e-9)
	assert.InDelta(t, 0, PriorityScore(0, 1), 1e-9)
	assert.InDelta(t, 43.4, PriorityScore(39, 0.5), 1e-9)
}

func TestRank_CustomersWithoutOrders(t *testing.T) {
	l, err := ledger.New([]ledger.Customer{{CustomerID: "NEW"}, {CustomerID: "OLD"}}, []ledger.Order{
		{CustomerID: "OLD", OrderID: "O1", OrderDate: refDate.AddDate(0, 0, -1), SKU: "A", Quantity: 1, UnitPrice: 10},
	})
	require.NoError(t, err)

	ranked := New(scoring.NewEngine(l)).Rank(context.Background(), refDate)
	require.Len(t, ranked, 2)
	assert.Equal(t, "OLD", ranked[0].CustomerID)
	assert.Equal(t, Candidate{CustomerID: "NEW", RFMScore: 0, ChurnRisk: 1, PriorityScore: 0}, ranked[1])
}

// Property: at most limit distinct ids, ordered by (priority desc, churn asc)
func TestTopFollowups_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ranked list is bounded, distinct and sorted", prop.ForAll(
		func(counts []int, limit int) bool {
			var customers []ledger.Customer
			var orders []ledger.Order
			for i, n := range counts {
				id := fmt.Sprintf("C%03d", i)
				customers = append(customers, ledger.Customer{CustomerID: id})
				for j := 0; j < n; j++ {
					orders = append(orders, ledger.Order{
						CustomerID: id,
						OrderID:    fmt.Sprintf("%s-%d", id, j),
						OrderDate:  refDate.AddDate(0, 0, -(j*7 + i)),
						SKU:        "S",
						Quantity:   1 + j%3,
						UnitPrice:  float64(5 + i),
					})
				}
			}
			l, err := ledger.New(customers, orders)
			if err != nil {
				return false
			}
			r := New(scoring.NewEngine(l))
			ctx := context.Background()

			ids := r.TopFollowups(ctx, refDate, limit)
			if len(ids) > limit {
				return false
			}
			seen := map[string]bool{}
			for _, id := range ids {
				if seen[id] {
					return false
				}
				seen[id] = true
			}

			ranked := r.Rank(ctx, refDate)
			for i := 1; i < len(ranked); i++ {
				a, b := ranked[i-1], ranked[i]
				if a.PriorityScore < b.PriorityScore {
					return false
				}
				if a.PriorityScore == b.PriorityScore && a.ChurnRisk > b.ChurnRisk {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 6)),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
