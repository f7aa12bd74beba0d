// Package pipeline runs one customer analysis through a fixed stage graph:
//
//	fetch -> {rfm, churn} -> merge -> narrative -> recommend -> rank -> assemble
//
// Every stage failure, including a panic, is recorded on the run's State and
// replaced by that stage's fallback value. A failure that escapes the whole
// run yields contracts.Fallback. Analyze therefore always returns a response
// that satisfies the AnalysisResponse contract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/contracts"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/narrative"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/observability"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ranking"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/recommend"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

var (
	errNoLedger      = errors.New("no ledger loaded")
	errNoFinalResult = errors.New("pipeline produced no final response")
)

// Pipeline is safe for concurrent use; each Run gets its own State.
type Pipeline struct {
	scorer      *scoring.Engine
	ranker      *ranking.Ranker
	narrator    *narrative.Generator
	recommender *recommend.Engine
	validator   *contracts.Validator
	obs         *observability.Provider
	logger      *slog.Logger
	now         func() time.Time
	limit       int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithObservability wraps every run and stage in a tracked operation.
func WithObservability(o *observability.Provider) Option {
	return func(p *Pipeline) { p.obs = o }
}

// WithClock overrides the time source used for "now" and "today".
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithFollowupLimit sets the length of top_followups_today.
func WithFollowupLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.limit = n
		}
	}
}

func New(scorer *scoring.Engine, narrator *narrative.Generator, recommender *recommend.Engine, validator *contracts.Validator, opts ...Option) *Pipeline {
	p := &Pipeline{
		scorer:      scorer,
		ranker:      ranking.New(scorer),
		narrator:    narrator,
		recommender: recommender,
		validator:   validator,
		logger:      slog.Default(),
		now:         time.Now,
		limit:       ranking.DefaultLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	return p
}

// Analyze runs the pipeline and returns the final response.
func (p *Pipeline) Analyze(ctx context.Context, customerID string) contracts.AnalysisResponse {
	return *p.Run(ctx, customerID).FinalResponse
}

// Run executes one analysis and returns its State. FinalResponse is never
// nil on the returned State.
func (p *Pipeline) Run(ctx context.Context, customerID string) *State {
	st := newState(uuid.NewString(), customerID, p.now().UTC())
	p.execute(ctx, st, p.sequence())
	return st
}

// step is either a single stage or a set of stages that run concurrently
// and must all finish before the next step starts.
type step []stage

func (p *Pipeline) sequence() []step {
	return []step{
		{p.fetchStage()},
		{p.rfmStage(), p.churnStage()},
		{p.mergeStage()},
		{p.narrativeStage()},
		{p.recommendStage()},
		{p.rankStage()},
		{p.assembleStage()},
	}
}

func (p *Pipeline) execute(ctx context.Context, st *State, steps []step) {
	ctx, done := p.obs.TrackOperation(ctx, "followup.analyze",
		attribute.String("customer_id", st.CustomerID),
		attribute.String("run_id", st.RunID),
	)
	start := time.Now()

	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("pipeline panic: %v", r)
			st.addError(runErr)
			p.logger.ErrorContext(ctx, "analysis run panicked", "run_id", st.RunID, "customer_id", st.CustomerID, "panic", r)
		}
		if st.FinalResponse == nil {
			cause := runErr
			if cause == nil {
				cause = errNoFinalResult
				st.addError(cause)
			}
			fb := contracts.Fallback(st.CustomerID, cause)
			st.FinalResponse = &fb
		}
		p.logger.InfoContext(ctx, "analysis complete",
			"run_id", st.RunID,
			"customer_id", st.CustomerID,
			"errors", len(st.Errors),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		done(runErr)
	}()

	for _, s := range steps {
		if len(s) == 1 {
			st.addError(p.runStage(ctx, st, s[0]))
			continue
		}

		// Branches write disjoint State fields; errors are collected per
		// branch and appended in declaration order after the barrier.
		errs := make([]error, len(s))
		var g errgroup.Group
		for i, branch := range s {
			g.Go(func() error {
				errs[i] = p.runStage(ctx, st, branch)
				return nil
			})
		}
		_ = g.Wait()
		for _, err := range errs {
			st.addError(err)
		}
	}
}

// runStage runs one stage, applying its fallback on error or panic. The
// returned error is already prefixed with the stage name.
func (p *Pipeline) runStage(ctx context.Context, st *State, s stage) (err error) {
	ctx, done := p.obs.TrackOperation(ctx, "followup.stage."+s.name, attribute.String("stage", s.name))
	log := newStageLogger(p.logger, s.name, st.RunID)
	var inputs map[string]any
	if s.inputs != nil {
		inputs = s.inputs(st)
	}
	log.started(ctx, inputs)

	err = safeRun(ctx, st, s.run)
	if err != nil {
		err = fmt.Errorf("%s: %w", s.name, err)
		log.failed(ctx, err)
		if s.fallback != nil {
			s.fallback(st, err)
		}
	} else {
		var outputs map[string]any
		if s.outputs != nil {
			outputs = s.outputs(st)
		}
		log.completed(ctx, outputs)
	}
	done(err)
	return err
}

func safeRun(ctx context.Context, st *State, run func(context.Context, *State) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx, st)
}
