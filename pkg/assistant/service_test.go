package assistant_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/assistant"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/contracts"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/narrative"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/pipeline"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/recommend"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

var refDate = time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T) *assistant.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return refDate }

	scorer := scoring.NewEngine(ledger.Sample(), scoring.WithLogger(logger))
	rec, err := recommend.NewDefaultEngine(logger)
	require.NoError(t, err)
	p := pipeline.New(scorer, narrative.NewGenerator(nil, narrative.DefaultConfig(), logger), rec,
		contracts.MustValidator(), pipeline.WithLogger(logger), pipeline.WithClock(clock))

	return assistant.New(scorer, p, assistant.WithLogger(logger), assistant.WithClock(clock))
}

func TestSanitizeCustomerID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"C001", "C001", false},
		{"  c002 ", "C002", false},
		{"acct_9-x", "ACCT_9-X", false},
		{"", "", true},
		{"C001; DROP TABLE", "", true},
		{"C0/01", "", true},
		{string(make([]byte, 65)), "", true},
	}
	for _, tt := range tests {
		got, err := assistant.SanitizeCustomerID(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, assistant.ErrInvalidCustomerID, tt.raw)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestAnalyze(t *testing.T) {
	s := newService(t)

	resp, err := s.Analyze(context.Background(), " c001 ")
	require.NoError(t, err)
	assert.Equal(t, "C001", resp.CustomerID)
	assert.Equal(t, 5, resp.Scores.Priority)
	assert.Contains(t, resp.Summary, "Manual review recommended")

	_, err = s.Analyze(context.Background(), "<script>")
	assert.ErrorIs(t, err, assistant.ErrInvalidCustomerID)
}

func TestTopFollowups(t *testing.T) {
	s := newService(t)

	list, err := s.TopFollowups(context.Background(), "2025-09-15")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-15", list.Date)
	assert.Equal(t, 4, list.Count)
	assert.Equal(t, "C001", list.TopFollowupsToday[0])

	for _, bad := range []string{"", "15/09/2025", "2025-13-01", "tomorrow"} {
		_, err := s.TopFollowups(context.Background(), bad)
		assert.ErrorIs(t, err, assistant.ErrInvalidDate, bad)
	}
}

func TestCustomers(t *testing.T) {
	customers := newService(t).Customers()
	require.Len(t, customers, 4)
	assert.Equal(t, "C001", customers[0].CustomerID)
}

func TestCustomerSummary(t *testing.T) {
	s := newService(t)

	sum, err := s.CustomerSummary("C003")
	require.NoError(t, err)
	assert.Equal(t, "Daily Delights", sum.CustomerInfo.Name)
	assert.Len(t, sum.OrderHistory, 2)
	assert.Equal(t, 2, sum.OrderSummary.TotalOrders)
	require.NotNil(t, sum.OrderSummary.DaysSinceLastOrder)
	assert.Equal(t, 5, *sum.OrderSummary.DaysSinceLastOrder)
	assert.NotEmpty(t, sum.BehaviorSummary)

	_, err = s.CustomerSummary("C999")
	assert.ErrorIs(t, err, ledger.ErrCustomerNotFound)
}

func TestAnswer(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a := s.Answer(ctx, "Who should the rep follow up today?")
	assert.Equal(t, "followup_list", a.AnswerType)
	assert.Contains(t, a.Answer, "C001")

	a = s.Answer(ctx, "")
	assert.Equal(t, assistant.DefaultQuery, a.Question)
	assert.Equal(t, "followup_list", a.AnswerType)

	a = s.Answer(ctx, "Which customers have HIGH VALUE?")
	assert.Equal(t, "customer_list", a.AnswerType)
	assert.Equal(t, "High-value customers (RFM > 70): C001", a.Answer)

	a = s.Answer(ctx, "Any churn risk?")
	assert.Equal(t, "risk_analysis", a.AnswerType)
	assert.Equal(t, "At-risk customers (churn > 0.7): None found", a.Answer)

	a = s.Answer(ctx, "what is the weather")
	assert.Equal(t, "help", a.AnswerType)
	assert.Len(t, a.Suggestions, 3)
}

func TestHealth(t *testing.T) {
	h := newService(t).Health()
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 4, h.CustomersCount)
	assert.Equal(t, 7, h.OrdersCount)
	assert.True(t, h.DataLoaded)
}
