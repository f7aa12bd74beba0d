// Package assistant is the application facade used by the HTTP server and
// the CLI. It validates caller input, then delegates to the pipeline, the
// ranker and the ledger.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/contracts"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/narrative"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/pipeline"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ranking"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

var (
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidCustomerID = errors.New("invalid customer id")
)

const maxCustomerIDLen = 64

var customerIDPattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// DefaultQuery is asked when the question is blank.
const DefaultQuery = "who should the rep follow up today?"

// Thresholds for analytical questions.
const (
	highValueRFM = 70
	atRiskChurn  = 0.7
)

const (
	helpText  = "I can answer questions about: customer follow-ups, high-value customers, and churn risk analysis."
	noneFound = "None found"

	answerFollow = "followup_list"
	answerValue  = "customer_list"
	answerRisk   = "risk_analysis"
	answerHelp   = "help"
)

// Service is safe for concurrent use.
type Service struct {
	scorer   *scoring.Engine
	ranker   *ranking.Ranker
	pipeline *pipeline.Pipeline
	limit    int
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the source of "today" for questions about follow-ups.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithFollowupLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

func New(scorer *scoring.Engine, p *pipeline.Pipeline, opts ...Option) *Service {
	s := &Service{
		scorer:   scorer,
		ranker:   ranking.New(scorer),
		pipeline: p,
		limit:    ranking.DefaultLimit,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "assistant")
	return s
}

// SanitizeCustomerID trims and upper-cases raw and checks it against the
// customer id alphabet.
func SanitizeCustomerID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" || len(id) > maxCustomerIDLen || !customerIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCustomerID, raw)
	}
	return id, nil
}

// Analyze runs a full analysis. The only error is ErrInvalidCustomerID;
// every other failure is folded into the returned response.
func (s *Service) Analyze(ctx context.Context, rawID string) (contracts.AnalysisResponse, error) {
	id, err := SanitizeCustomerID(rawID)
	if err != nil {
		return contracts.AnalysisResponse{}, err
	}
	return s.pipeline.Analyze(ctx, id), nil
}

// TopFollowups ranks every customer as of date (YYYY-MM-DD).
func (s *Service) TopFollowups(ctx context.Context, date string) (contracts.FollowupList, error) {
	d, err := time.Parse(ledger.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return contracts.FollowupList{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	ids := s.ranker.TopFollowups(ctx, d, s.limit)
	return contracts.NewFollowupList(d.Format(ledger.DateLayout), ids), nil
}

// Customers lists the customers table.
func (s *Service) Customers() []ledger.Customer {
	l := s.scorer.Ledger()
	if l == nil {
		return []ledger.Customer{}
	}
	return l.Customers()
}

// CustomerSummary is a customer's record and order data without scoring.
type CustomerSummary struct {
	CustomerInfo     ledger.Customer         `json:"customer_info"`
	OrderHistory     []ledger.Order          `json:"order_history"`
	OrderSummary     ledger.OrderSummary     `json:"order_summary"`
	PurchaseBehavior ledger.PurchaseBehavior `json:"purchase_behavior"`
	BehaviorSummary  string                  `json:"behavior_summary"`
}

// CustomerSummary returns ledger.ErrCustomerNotFound for unknown ids.
func (s *Service) CustomerSummary(rawID string) (CustomerSummary, error) {
	id, err := SanitizeCustomerID(rawID)
	if err != nil {
		return CustomerSummary{}, err
	}
	l := s.scorer.Ledger()
	if l == nil {
		return CustomerSummary{}, fmt.Errorf("customer %s: %w", id, ledger.ErrCustomerNotFound)
	}
	c, ok := l.Customer(id)
	if !ok {
		return CustomerSummary{}, fmt.Errorf("customer %s: %w", id, ledger.ErrCustomerNotFound)
	}
	summary := l.Summary(id, s.now())
	behavior := l.Behavior(id)
	return CustomerSummary{
		CustomerInfo:     c,
		OrderHistory:     l.Orders(id),
		OrderSummary:     summary,
		PurchaseBehavior: behavior,
		BehaviorSummary:  narrative.BehaviorLine(summary, behavior),
	}, nil
}

// AtRisk is one entry of a churn answer.
type AtRisk struct {
	CustomerID string  `json:"customer_id"`
	ChurnRisk  float64 `json:"churn_risk"`
}

// Answer is the reply to an analytical question.
type Answer struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	AnswerType  string   `json:"answer_type"`
	Details     any      `json:"details,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Answer matches question against the supported intents by keyword.
func (s *Service) Answer(ctx context.Context, question string) Answer {
	if strings.TrimSpace(question) == "" {
		question = DefaultQuery
	}
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "follow up") || strings.Contains(q, "contact"):
		today := s.now().UTC()
		list := contracts.NewFollowupList(today.Format(ledger.DateLayout), s.ranker.TopFollowups(ctx, today, s.limit))
		return Answer{
			Question:   question,
			Answer:     "Top customers to follow up today: " + strings.Join(list.TopFollowupsToday, ", "),
			AnswerType: answerFollow,
			Details:    list,
		}

	case strings.Contains(q, "high value") || strings.Contains(q, "best customer"):
		ids := s.highValue(ctx)
		return Answer{
			Question:   question,
			Answer:     fmt.Sprintf("High-value customers (RFM > %d): %s", highValueRFM, joinOr(ids, noneFound)),
			AnswerType: answerValue,
			Details:    map[string][]string{"high_value_customers": ids},
		}

	case strings.Contains(q, "churn") || strings.Contains(q, "risk"):
		risky := s.atRisk()
		ids := make([]string, len(risky))
		for i, r := range risky {
			ids[i] = r.CustomerID
		}
		return Answer{
			Question:   question,
			Answer:     fmt.Sprintf("At-risk customers (churn > %.1f): %s", atRiskChurn, joinOr(ids, noneFound)),
			AnswerType: answerRisk,
			Details:    map[string][]AtRisk{"at_risk_customers": risky},
		}

	default:
		return Answer{
			Question:   question,
			Answer:     helpText,
			AnswerType: answerHelp,
			Suggestions: []string{
				"Who should the rep follow up today?",
				"Which customers have high value?",
				"Which customers are at risk of churning?",
			},
		}
	}
}

func (s *Service) highValue(ctx context.Context) []string {
	l := s.scorer.Ledger()
	out := []string{}
	if l == nil {
		return out
	}
	now := s.now()
	maxSpent := s.scorer.PopulationMax(ctx)
	for _, id := range l.CustomerIDs() {
		r, err := s.scorer.RFMWithMax(id, now, maxSpent)
		if err != nil {
			s.logger.WarnContext(ctx, "rfm scoring failed", "customer_id", id, "error", err)
			continue
		}
		if r.Score > highValueRFM {
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) atRisk() []AtRisk {
	l := s.scorer.Ledger()
	out := []AtRisk{}
	if l == nil {
		return out
	}
	now := s.now()
	for _, id := range l.CustomerIDs() {
		risk, err := s.scorer.ChurnRisk(id, now)
		if err != nil {
			continue
		}
		if risk > atRiskChurn {
			out = append(out, AtRisk{CustomerID: id, ChurnRisk: risk})
		}
	}
	return out
}

func joinOr(ids []string, empty string) string {
	if len(ids) == 0 {
		return empty
	}
	return strings.Join(ids, ", ")
}

// Health reports whether data is loaded.
type Health struct {
	Status         string `json:"status"`
	CustomersCount int    `json:"customer_count"`
	OrdersCount    int    `json:"order_count"`
	DataLoaded     bool   `json:"customers_loaded"`
}

func (s *Service) Health() Health {
	h := Health{Status: "healthy"}
	if l := s.scorer.Ledger(); l != nil {
		h.CustomersCount = len(l.CustomerIDs())
		h.OrdersCount = l.OrderCount()
	}
	h.DataLoaded = h.CustomersCount > 0
	if !h.DataLoaded {
		h.Status = "degraded"
	}
	return h
}
