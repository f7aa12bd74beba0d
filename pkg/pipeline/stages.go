package pipeline

import (
	"context"
	"fmt"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/contracts"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/narrative"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/recommend"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

// Stage names, also used as span and log attributes.
const (
	StageFetch     = "fetch"
	StageRFM       = "rfm"
	StageChurn     = "churn"
	StageMerge     = "merge"
	StageNarrative = "narrative"
	StageRecommend = "recommend"
	StageRank      = "rank"
	StageAssemble  = "assemble"
)

// stage is one node of the run. run may fail or panic; fallback then writes
// the stage's degraded value so later stages always see well-typed input.
type stage struct {
	name     string
	inputs   func(*State) map[string]any
	run      func(ctx context.Context, st *State) error
	fallback func(st *State, err error)
	outputs  func(*State) map[string]any
}

func customerInputs(st *State) map[string]any {
	return map[string]any{"customer_id": st.CustomerID}
}

func (p *Pipeline) fetchStage() stage {
	return stage{
		name:   StageFetch,
		inputs: customerInputs,
		run: func(ctx context.Context, st *State) error {
			l := p.scorer.Ledger()
			if l == nil {
				return errNoLedger
			}
			c, ok := l.Customer(st.CustomerID)
			if !ok {
				return fmt.Errorf("customer %s: %w", st.CustomerID, ledger.ErrCustomerNotFound)
			}
			summary := l.Summary(st.CustomerID, st.Now)
			behavior := l.Behavior(st.CustomerID)
			st.CustomerData = &CustomerData{
				Customer:        c,
				Summary:         summary,
				Behavior:        behavior,
				BehaviorSummary: narrative.BehaviorLine(summary, behavior),
			}
			return nil
		},
		fallback: func(st *State, _ error) { st.CustomerData = nil },
		outputs: func(st *State) map[string]any {
			return map[string]any{"customer_data": st.CustomerData}
		},
	}
}

func (p *Pipeline) rfmStage() stage {
	return stage{
		name:   StageRFM,
		inputs: customerInputs,
		run: func(ctx context.Context, st *State) error {
			r, err := p.scorer.RFM(ctx, st.CustomerID, st.Now)
			if err != nil {
				return err
			}
			st.RFM = RFMAnalysis{RFM: r, Level: scoring.RFMLevel(r.Score)}
			return nil
		},
		fallback: func(st *State, _ error) {
			st.RFM = RFMAnalysis{Level: scoring.RFMLevel(0), Failed: true}
		},
		outputs: func(st *State) map[string]any {
			return map[string]any{"rfm_score": st.RFM.Score}
		},
	}
}

func (p *Pipeline) churnStage() stage {
	return stage{
		name:   StageChurn,
		inputs: customerInputs,
		run: func(ctx context.Context, st *State) error {
			risk, err := p.scorer.ChurnRisk(st.CustomerID, st.Now)
			if err != nil {
				return err
			}
			st.Churn = ChurnAnalysis{
				Risk:    risk,
				Level:   scoring.ChurnLevel(risk),
				Urgency: scoring.ChurnUrgency(risk),
			}
			return nil
		},
		fallback: func(st *State, _ error) {
			st.Churn = ChurnAnalysis{Risk: scoring.MaxChurnRisk, Level: "Unknown", Failed: true}
		},
		outputs: func(st *State) map[string]any {
			return map[string]any{"churn_risk": st.Churn.Risk}
		},
	}
}

func pinSentinel(st *State) {
	s := scoring.Sentinel()
	st.RFM.Score = s.RFMScore
	st.Churn.Risk = s.ChurnRisk
	st.Churn.Level = scoring.ChurnLevel(s.ChurnRisk)
	st.Churn.Urgency = scoring.ChurnUrgency(s.ChurnRisk)
	st.Priority = s.Priority
	st.PriorityLabel = scoring.PriorityLabel(s.Priority)
}

// mergeStage runs after both branches finished and derives the priority
// tier. A failed rfm branch pins the whole triple to the sentinel values.
func (p *Pipeline) mergeStage() stage {
	return stage{
		name: StageMerge,
		inputs: func(st *State) map[string]any {
			return map[string]any{"rfm_failed": st.RFM.Failed, "churn_failed": st.Churn.Failed}
		},
		run: func(_ context.Context, st *State) error {
			if st.RFM.Failed {
				pinSentinel(st)
				return nil
			}
			st.Priority = scoring.PriorityTier(st.RFM.Score, st.Churn.Risk)
			st.PriorityLabel = scoring.PriorityLabel(st.Priority)
			return nil
		},
		fallback: func(st *State, _ error) { pinSentinel(st) },
		outputs: func(st *State) map[string]any {
			return map[string]any{"priority": st.Priority, "priority_label": st.PriorityLabel}
		},
	}
}

func (p *Pipeline) narrativeStage() stage {
	return stage{
		name:   StageNarrative,
		inputs: customerInputs,
		run: func(ctx context.Context, st *State) error {
			if st.CustomerData == nil {
				st.Summary = narrative.MissingDataSummary
				return nil
			}
			cd := st.CustomerData
			res := p.narrator.Summarize(ctx, narrative.Input{
				CustomerID: st.CustomerID,
				Customer:   &cd.Customer,
				Summary:    cd.Summary,
				Behavior:   cd.Behavior,
				Scores:     st.Scores(),
			})
			st.Summary = res.Text
			if res.Fallback {
				return fmt.Errorf("summary generation degraded after %d attempts: %w", res.Attempts, res.Err)
			}
			return nil
		},
		fallback: func(st *State, _ error) {
			if st.Summary == "" {
				st.Summary = narrative.FallbackSummary(st.CustomerID, st.OrderSummary())
			}
		},
		outputs: func(st *State) map[string]any {
			return map[string]any{"summary": st.Summary}
		},
	}
}

func (p *Pipeline) recommendStage() stage {
	return stage{
		name:   StageRecommend,
		inputs: customerInputs,
		run: func(ctx context.Context, st *State) error {
			st.Recommendations = p.recommender.Recommend(ctx, recommend.FactsFrom(st.OrderSummary(), st.Scores()))
			return nil
		},
		fallback: func(st *State, _ error) { st.Recommendations = recommend.Fallback() },
		outputs: func(st *State) map[string]any {
			return map[string]any{"recommendations": len(st.Recommendations)}
		},
	}
}

func (p *Pipeline) rankStage() stage {
	return stage{
		name:   StageRank,
		inputs: func(*State) map[string]any { return map[string]any{"limit": p.limit} },
		run: func(ctx context.Context, st *State) error {
			st.TopFollowups = p.ranker.TopFollowups(ctx, st.Now, p.limit)
			return nil
		},
		fallback: func(st *State, _ error) { st.TopFollowups = []string{} },
		outputs: func(st *State) map[string]any {
			return map[string]any{"top_followups": len(st.TopFollowups)}
		},
	}
}

func (p *Pipeline) assembleStage() stage {
	return stage{
		name:   StageAssemble,
		inputs: customerInputs,
		run: func(ctx context.Context, st *State) error {
			resp := contracts.AnalysisResponse{
				CustomerID:        st.CustomerID,
				Scores:            st.Scores(),
				Summary:           st.Summary,
				Recommendations:   st.Recommendations,
				TopFollowupsToday: st.TopFollowups,
			}
			final, errs := p.validator.Finalize(resp)
			for _, err := range errs {
				p.logger.WarnContext(ctx, "response failed validation", "run_id", st.RunID, "error", err)
				st.addError(fmt.Errorf("%s: %w", StageAssemble, err))
			}
			st.FinalResponse = &final
			return nil
		},
		fallback: func(st *State, err error) {
			fb := contracts.Fallback(st.CustomerID, err)
			st.FinalResponse = &fb
		},
		outputs: func(st *State) map[string]any {
			return map[string]any{"final_response": st.FinalResponse != nil}
		},
	}
}
