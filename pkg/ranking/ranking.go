// Package ranking builds the daily follow-up list.
package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

// DefaultLimit is the follow-up list length when none is given.
const DefaultLimit = 5

// Candidate is one customer's ranking inputs.
type Candidate struct {
	CustomerID    string  `json:"customer_id"`
	RFMScore      int     `json:"rfm_score"`
	ChurnRisk     float64 `json:"churn_risk"`
	PriorityScore float64 `json:"priority_score"`
}

// PriorityScore blends value and retention into roughly [0,100].
func PriorityScore(rfmScore int, churnRisk float64) float64 {
	return float64(rfmScore)*0.6 + (1-churnRisk)*40
}

// Ranker orders every ledger customer for a given day.
type Ranker struct {
	engine *scoring.Engine
}

func New(engine *scoring.Engine) *Ranker {
	return &Ranker{engine: engine}
}

// Rank scores every customer as of the start of date (UTC) and sorts by
// priority score descending, then churn risk ascending. Equal priority
// therefore favours the lower-risk customer. Customers whose scoring fails
// are ranked with the scoring sentinel.
func (r *Ranker) Rank(ctx context.Context, date time.Time) []Candidate {
	l := r.engine.Ledger()
	if l == nil {
		return []Candidate{}
	}

	now := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	maxSpent := r.engine.PopulationMax(ctx)

	ids := l.CustomerIDs()
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		c := Candidate{CustomerID: id}
		rfm, err := r.engine.RFMWithMax(id, now, maxSpent)
		churn, churnErr := r.engine.ChurnRisk(id, now)
		if err != nil || churnErr != nil {
			s := scoring.Sentinel()
			c.RFMScore, c.ChurnRisk = s.RFMScore, s.ChurnRisk
		} else {
			c.RFMScore, c.ChurnRisk = rfm.Score, churn
		}
		c.PriorityScore = PriorityScore(c.RFMScore, c.ChurnRisk)
		out = append(out, c)
	}

	sortCandidates(out)
	return out
}

func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].PriorityScore != cs[j].PriorityScore {
			return cs[i].PriorityScore > cs[j].PriorityScore
		}
		return cs[i].ChurnRisk < cs[j].ChurnRisk
	})
}

// TopFollowups returns up to limit customer ids from Rank. A non-positive
// limit uses DefaultLimit.
func (r *Ranker) TopFollowups(ctx context.Context, date time.Time, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ranked := r.Rank(ctx, date)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.CustomerID
	}
	return ids
}
