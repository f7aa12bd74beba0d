package pipeline

import (
	"time"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/contracts"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/recommend"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

// CustomerData is what the fetch stage loads for one customer.
type CustomerData struct {
	Customer        ledger.Customer
	Summary         ledger.OrderSummary
	Behavior        ledger.PurchaseBehavior
	BehaviorSummary string
}

// RFMAnalysis is the output of the rfm branch.
type RFMAnalysis struct {
	scoring.RFM
	Level  string
	Failed bool
}

// ChurnAnalysis is the output of the churn branch.
type ChurnAnalysis struct {
	Risk    float64
	Level   string
	Urgency string
	Failed  bool
}

// State is the accumulator for one analysis run. A run owns its State
// exclusively; the two scoring branches write disjoint fields and their
// errors are appended only after the merge barrier.
type State struct {
	RunID      string
	CustomerID string
	Now        time.Time

	// CustomerData is nil when the customer could not be fetched.
	CustomerData    *CustomerData
	RFM             RFMAnalysis
	Churn           ChurnAnalysis
	Priority        int
	PriorityLabel   string
	Summary         string
	Recommendations []recommend.Recommendation
	TopFollowups    []string

	// Errors is append-only.
	Errors        []error
	FinalResponse *contracts.AnalysisResponse
}

func newState(runID, customerID string, now time.Time) *State {
	return &State{
		RunID:         runID,
		CustomerID:    customerID,
		Now:           now,
		Churn:         ChurnAnalysis{Risk: scoring.MaxChurnRisk},
		Priority:      1,
		PriorityLabel: scoring.PriorityLabel(1),
	}
}

// Scores is the merged score triple.
func (s *State) Scores() scoring.Scores {
	return scoring.Scores{
		RFMScore:  s.RFM.Score,
		ChurnRisk: s.Churn.Risk,
		Priority:  s.Priority,
	}
}

// OrderSummary returns the fetched summary, or the empty one.
func (s *State) OrderSummary() ledger.OrderSummary {
	if s.CustomerData == nil {
		return ledger.OrderSummary{}
	}
	return s.CustomerData.Summary
}

func (s *State) addError(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err)
	}
}
