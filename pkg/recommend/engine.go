// Package recommend turns customer scores and order aggregates into one to
// three follow-up actions using a CEL decision table.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/cel-go/cel"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

// Action is a follow-up channel.
type Action string

const (
	ActionCall        Action = "call"
	ActionEmail       Action = "email"
	ActionOfferBundle Action = "offer_bundle"
	ActionPromo       Action = "promo"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCall, ActionEmail, ActionOfferBundle, ActionPromo:
		return true
	}
	return false
}

// Recommendation is one suggested action with a human-readable reason.
type Recommendation struct {
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

const (
	// MaxItems bounds every recommendation list.
	MaxItems = 3
	// MaxReasonLen is the longest reason kept, in runes.
	MaxReasonLen = 200
	// UnknownRecencyDays stands in for customers with no last order date.
	UnknownRecencyDays = 999
)

// Facts are the variables visible to rule expressions.
type Facts struct {
	RFMScore           int
	ChurnRisk          float64
	TotalOrders        int
	AvgOrderValue      float64
	DaysSinceLastOrder int
}

// FactsFrom merges an order summary with scores.
func FactsFrom(s ledger.OrderSummary, sc scoring.Scores) Facts {
	days := UnknownRecencyDays
	if s.DaysSinceLastOrder != nil {
		days = *s.DaysSinceLastOrder
	}
	return Facts{
		RFMScore:           sc.RFMScore,
		ChurnRisk:          sc.ChurnRisk,
		TotalOrders:        s.TotalOrders,
		AvgOrderValue:      s.AvgOrderValue,
		DaysSinceLastOrder: days,
	}
}

func (f Facts) activation() map[string]any {
	return map[string]any{
		"rfm_score":             int64(f.RFMScore),
		"churn_risk":            f.ChurnRisk,
		"total_orders":          int64(f.TotalOrders),
		"avg_order_value":       f.AvgOrderValue,
		"days_since_last_order": int64(f.DaysSinceLastOrder),
	}
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// Engine evaluates a compiled rule table. Safe for concurrent use.
type Engine struct {
	rules  []compiledRule
	groups []string
	logger *slog.Logger
}

// NewEngine compiles every rule once. A rule that does not compile to a
// boolean expression is an error.
func NewEngine(rules []Rule, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cel.NewEnv(
		cel.Variable("rfm_score", cel.IntType),
		cel.Variable("churn_risk", cel.DoubleType),
		cel.Variable("total_orders", cel.IntType),
		cel.Variable("avg_order_value", cel.DoubleType),
		cel.Variable("days_since_last_order", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{logger: logger.With("component", "recommend")}
	seen := make(map[string]bool)
	for _, r := range rules {
		if !r.Action.Valid() {
			return nil, fmt.Errorf("rule %s: unknown action %q", r.ID, r.Action)
		}
		if r.Reason == nil {
			return nil, fmt.Errorf("rule %s: missing reason", r.ID)
		}
		ast, issues := env.Compile(r.When)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s: compile: %w", r.ID, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s: expression must be bool, got %s", r.ID, ast.OutputType())
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return nil, fmt.Errorf("rule %s: program: %w", r.ID, err)
		}
		e.rules = append(e.rules, compiledRule{Rule: r, prg: prg})
		if !seen[r.Group] {
			seen[r.Group] = true
			e.groups = append(e.groups, r.Group)
		}
	}
	return e, nil
}

// NewDefaultEngine compiles DefaultRules.
func NewDefaultEngine(logger *slog.Logger) (*Engine, error) {
	return NewEngine(DefaultRules(), logger)
}

// Recommend returns between one and three recommendations. It never fails:
// any evaluation error or panic yields Fallback.
func (e *Engine) Recommend(ctx context.Context, f Facts) (out []Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "recommendation rules panicked", "panic", r)
			out = Fallback()
		}
	}()

	recs, err := e.evaluate(f)
	if err != nil {
		e.logger.ErrorContext(ctx, "error generating recommendations", "error", err)
		return Fallback()
	}
	return pad(recs)
}

func (e *Engine) evaluate(f Facts) ([]Recommendation, error) {
	vars := f.activation()
	var recs []Recommendation
	for _, group := range e.groups {
		for _, r := range e.rules {
			if r.Group != group {
				continue
			}
			matched, err := eval(r.prg, vars)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.ID, err)
			}
			if matched {
				recs = append(recs, Recommendation{Action: r.Action, Reason: truncateReason(r.Reason(f))})
				break
			}
		}
	}
	return recs, nil
}

func eval(prg cel.Program, vars map[string]any) (bool, error) {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, expected bool", out.Value())
	}
	return b, nil
}

// pad fills the list to MaxItems with fillers whose action is not yet
// present, then truncates. Once every filler action is present the last
// filler repeats.
func pad(recs []Recommendation) []Recommendation {
	for len(recs) < MaxItems {
		next, ok := missingFiller(recs)
		if !ok {
			next = fillers[len(fillers)-1]
		}
		recs = append(recs, next)
	}
	return recs[:MaxItems]
}

func missingFiller(recs []Recommendation) (Recommendation, bool) {
	for _, f := range fillers {
		present := false
		for _, r := range recs {
			if r.Action == f.Action {
				present = true
				break
			}
		}
		if !present {
			return f, true
		}
	}
	return Recommendation{}, false
}

func truncateReason(s string) string {
	if s == "" {
		return "Follow-up recommended"
	}
	if utf8.RuneCountInString(s) <= MaxReasonLen {
		return s
	}
	r := []rune(s)
	return string(r[:MaxReasonLen-3]) + "..."
}
