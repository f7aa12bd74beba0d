package narrative

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/llm"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

var refDate = time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)

func sampleInput() Input {
	l := ledger.Sample()
	c, _ := l.Customer("C001")
	return Input{
		CustomerID: "C001",
		Customer:   &c,
		Summary:    l.Summary("C001", refDate),
		Behavior:   l.Behavior("C001"),
		Scores:     scoring.Scores{RFMScore: 87, ChurnRisk: 0.166, Priority: 5},
	}
}

type scripted struct {
	replies []string
	errs    []error
	calls   int
}

func (s *scripted) Chat(_ context.Context, _ []llm.Message, _ *llm.SamplingOptions) (*llm.Response, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.replies) {
		return &llm.Response{Content: s.replies[i]}, nil
	}
	return nil, errors.New("no more replies")
}

func newGen(c llm.Client) *Generator {
	g := NewGenerator(c, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g
}

func TestSummarize_FirstAttempt(t *testing.T) {
	c := &scripted{replies: []string{"  Loyal bakery account ordering weekly.  "}}
	res := newGen(c).Summarize(context.Background(), sampleInput())

	assert.Equal(t, "Loyal bakery account ordering weekly.", res.Text)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Fallback)
	assert.NoError(t, res.Err)
}

func TestSummarize_RetriesShortAndFailedReplies(t *testing.T) {
	c := &scripted{
		replies: []string{"", "too short", "A complete summary of the account."},
		errs:    []error{errors.New("throttled"), nil, nil},
	}
	res := newGen(c).Summarize(context.Background(), sampleInput())

	assert.Equal(t, "A complete summary of the account.", res.Text)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, c.calls)
}

func TestSummarize_ThreeFailuresUseTemplate(t *testing.T) {
	boom := errors.New("service unavailable")
	c := &scripted{errs: []error{boom, boom, boom, boom}}
	res := newGen(c).Summarize(context.Background(), sampleInput())

	assert.True(t, res.Fallback)
	assert.Equal(t, 3, c.calls)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, "Customer C001: Analysis shows 3 orders totaling $60.50. Manual review recommended.", res.Text)
}

func TestNewGenerator_RetriesAreCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 6
	c := &scripted{}
	g := NewGenerator(c, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	g.sleep = func(context.Context, time.Duration) error { return nil }

	res := g.Summarize(context.Background(), sampleInput())

	assert.True(t, res.Fallback)
	assert.Equal(t, 1+MaxRetryLimit, c.calls)
}

func TestSummarize_TooShortEveryTime(t *testing.T) {
	c := &scripted{replies: []string{"ok", "ok", "ok"}}
	res := newGen(c).Summarize(context.Background(), sampleInput())

	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, ErrResponseTooShort)
}

func TestSummarize_NoClient(t *testing.T) {
	res := newGen(nil).Summarize(context.Background(), sampleInput())

	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, ErrNoClient)
	assert.Equal(t, 0, res.Attempts)
	assert.NotEmpty(t, res.Text)
}

func TestSummarize_TruncatesLongReplies(t *testing.T) {
	c := &scripted{replies: []string{strings.Repeat("a", 1500)}}
	res := newGen(c).Summarize(context.Background(), sampleInput())

	assert.Len(t, res.Text, 1003)
	assert.True(t, strings.HasSuffix(res.Text, "..."))
}

func TestGenerate_AdvisoryTimeoutOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	c := &scripted{replies: []string{"Slow but complete summary."}}
	g := NewGenerator(c, DefaultConfig(), slog.New(slog.NewTextHandler(&buf, nil)))
	clock := refDate
	g.now = func() time.Time {
		clock = clock.Add(10 * time.Second)
		return clock
	}

	text, attempts, err := g.Generate(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, "Slow but complete summary.", text)
	assert.Contains(t, buf.String(), "exceeded advisory timeout")
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	boom := errors.New("down")
	c := &scripted{errs: []error{boom, boom, boom}}
	cfg := DefaultConfig()
	cfg.Backoff = BackoffPolicy{BaseMs: 1000}
	g := NewGenerator(c, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, attempts, err := g.Generate(ctx, sampleInput())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages(sampleInput())
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)

	user := msgs[1].Content
	assert.Contains(t, user, "Customer: Gourmet Gateway (C001)")
	assert.Contains(t, user, "Total Spent: $60.50")
	assert.Contains(t, user, "Days Since Last Order: 3")
	assert.Contains(t, user, "COOK-OAT x5")
	assert.Contains(t, user, "RFM Score: 87/100")

	unknown := BuildMessages(Input{CustomerID: "C999"})[1].Content
	assert.Contains(t, unknown, "Customer: Unknown (C999)")
	assert.Contains(t, unknown, "Days Since Last Order: N/A")
}

func TestBehaviorLine(t *testing.T) {
	in := sampleInput()
	assert.Equal(t, "3 orders, $60.50 total, $20.17 average. Buys mostly COOK-OAT. Orders every 11.5 days on average.",
		BehaviorLine(in.Summary, in.Behavior))
	assert.Equal(t, "No orders on record.", BehaviorLine(ledger.OrderSummary{}, ledger.PurchaseBehavior{}))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", Money(1234.5))
}

func TestBackoffPolicy_Delay(t *testing.T) {
	p := BackoffPolicy{BaseMs: 100, MaxMs: 300}
	assert.Equal(t, 100*time.Millisecond, p.Delay("C001", 0))
	assert.Equal(t, 200*time.Millisecond, p.Delay("C001", 1))
	assert.Equal(t, 300*time.Millisecond, p.Delay("C001", 5))
	assert.Zero(t, BackoffPolicy{}.Delay("C001", 3))

	j := BackoffPolicy{BaseMs: 100, MaxJitterMs: 50}
	assert.Equal(t, j.Delay("C001", 1), j.Delay("C001", 1))
	assert.Less(t, j.Delay("C001", 1), 250*time.Millisecond)
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.0008+0.0032, estimateCost(1000, 1000), 1e-12)
	in, out := estimateTokens([]llm.Message{{Content: strings.Repeat("x", 400)}}, strings.Repeat("y", 40), llm.Usage{})
	assert.Equal(t, 100, in)
	assert.Equal(t, 10, out)
}
