package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
)

// Scores is the per-customer result carried into responses.
type Scores struct {
	RFMScore  int     `json:"rfm_score"`
	ChurnRisk float64 `json:"churn_risk"`
	Priority  int     `json:"priority"`
}

// Sentinel is reported whenever scoring a customer fails.
func Sentinel() Scores {
	return Scores{RFMScore: 0, ChurnRisk: MaxChurnRisk, Priority: 1}
}

var errNoLedger = errors.New("scoring: no ledger")

// Engine scores customers of one ledger. It is safe for concurrent use.
type Engine struct {
	ledger *ledger.Ledger
	cache  MaxSpendCache
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache memoizes the population maximum spend per ledger fingerprint.
func WithCache(c MaxSpendCache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{ledger: l, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "scoring")
	return e
}

// Ledger returns the ledger the engine reads.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// PopulationMax returns the largest per-customer spend. Without a cache it is
// recomputed on every call, which is O(orders).
func (e *Engine) PopulationMax(ctx context.Context) float64 {
	if e.ledger == nil {
		return 0
	}
	if e.cache == nil {
		return e.ledger.MaxTotalSpent()
	}

	key := e.ledger.Fingerprint()
	v, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.WarnContext(ctx, "max spend cache read failed", "error", err)
	} else if ok {
		return v
	}

	v = e.ledger.MaxTotalSpent()
	if err := e.cache.Set(ctx, key, v); err != nil {
		e.logger.WarnContext(ctx, "max spend cache write failed", "error", err)
	}
	return v
}

// RFM scores a customer as of now.
func (e *Engine) RFM(ctx context.Context, customerID string, now time.Time) (RFM, error) {
	return e.RFMWithMax(customerID, now, e.PopulationMax(ctx))
}

// RFMWithMax scores a customer against a precomputed population maximum, for
// callers that score every customer in one pass.
func (e *Engine) RFMWithMax(customerID string, now time.Time, maxSpent float64) (r RFM, err error) {
	defer recoverInto(&err, "rfm", customerID)
	if e.ledger == nil {
		return RFM{}, errNoLedger
	}
	return ComputeRFM(e.ledger.Summary(customerID, now), maxSpent), nil
}

// ChurnRisk estimates lapse risk as of now. Errors come with MaxChurnRisk.
func (e *Engine) ChurnRisk(customerID string, now time.Time) (risk float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			risk, err = MaxChurnRisk, fmt.Errorf("churn scoring panicked for %s: %v", customerID, r)
		}
	}()
	if e.ledger == nil {
		return MaxChurnRisk, errNoLedger
	}
	return ComputeChurn(e.ledger.Summary(customerID, now)), nil
}

// Score combines rfm, churn and priority. Any failure yields Sentinel.
func (e *Engine) Score(ctx context.Context, customerID string, now time.Time) Scores {
	r, err := e.RFM(ctx, customerID, now)
	if err != nil {
		e.logger.ErrorContext(ctx, "rfm scoring failed", "customer_id", customerID, "error", err)
		return Sentinel()
	}
	churn, err := e.ChurnRisk(customerID, now)
	if err != nil {
		e.logger.ErrorContext(ctx, "churn scoring failed", "customer_id", customerID, "error", err)
		return Sentinel()
	}
	return Scores{
		RFMScore:  r.Score,
		ChurnRisk: churn,
		Priority:  PriorityTier(r.Score, churn),
	}
}

func recoverInto(err *error, what, customerID string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s scoring panicked for %s: %v", what, customerID, r)
	}
}
