// Package narrative wraps the text-generation call that produces a short
// customer summary. It owns the retry, length and fallback rules; how the
// text is produced is up to the llm.Client.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/llm"
)

var (
	// ErrResponseTooShort marks a reply under Config.MinLength runes.
	ErrResponseTooShort = errors.New("narrative: response too short")
	// ErrNoClient is returned when no text generator is configured.
	ErrNoClient = errors.New("narrative: no client configured")
)

// Per-1K-token prices used for cost estimates.
const (
	inputCostPer1K  = 0.0008
	outputCostPer1K = 0.0032
)

// MaxRetryLimit caps Config.MaxRetries.
const MaxRetryLimit = 2

type Config struct {
	MaxRetries      int
	MinLength       int
	MaxLength       int
	AdvisoryTimeout time.Duration
	Temperature     float64
	MaxTokens       int
	Backoff         BackoffPolicy
	// RPS limits calls to the text service; zero disables limiting.
	RPS   float64
	Burst int
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      2,
		MinLength:       10,
		MaxLength:       1000,
		AdvisoryTimeout: 8 * time.Second,
		Temperature:     0.2,
		MaxTokens:       300,
	}
}

// Result is the outcome of Summarize.
type Result struct {
	Text     string
	Attempts int
	Fallback bool
	Err      error
}

type Generator struct {
	client  llm.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// NewGenerator builds a generator. A nil client is allowed; every call then
// fails with ErrNoClient and Summarize falls back to the template.
func NewGenerator(client llm.Client, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.MaxRetries = max(0, min(cfg.MaxRetries, MaxRetryLimit))
	g := &Generator{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "narrative"),
		sleep:  sleepCtx,
		now:    time.Now,
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return g
}

// Summarize returns generated text, or the order-summary template once every
// attempt has failed. It never returns an empty Text.
func (g *Generator) Summarize(ctx context.Context, in Input) Result {
	text, attempts, err := g.Generate(ctx, in)
	if err != nil {
		g.logger.WarnContext(ctx, "summary generation failed, using template",
			"customer_id", in.CustomerID, "attempts", attempts, "error", err)
		return Result{
			Text:     FallbackSummary(in.CustomerID, in.Summary),
			Attempts: attempts,
			Fallback: true,
			Err:      err,
		}
	}
	return Result{Text: text, Attempts: attempts}
}

// Generate makes up to 1+MaxRetries attempts and returns the first reply that
// passes the length check, truncated to MaxLength runes.
func (g *Generator) Generate(ctx context.Context, in Input) (string, int, error) {
	if g.client == nil {
		return "", 0, ErrNoClient
	}

	msgs := BuildMessages(in)
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, g.cfg.Backoff.Delay(in.CustomerID, attempt-1)); err != nil {
				return "", attempts, fmt.Errorf("narrative: %w (last error: %v)", err, lastErr)
			}
		}
		attempts++

		text, err := g.attempt(ctx, in.CustomerID, msgs)
		if err == nil {
			return text, attempts, nil
		}
		lastErr = err
		if attempt < g.cfg.MaxRetries {
			g.logger.WarnContext(ctx, "summary attempt failed", "customer_id", in.CustomerID, "retry_attempt", attempt+1, "error", err)
		}
	}
	return "", attempts, lastErr
}

func (g *Generator) attempt(ctx context.Context, customerID string, msgs []llm.Message) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("narrative rate limit: %w", err)
		}
	}

	start := g.now()
	resp, err := g.client.Chat(ctx, msgs, &llm.SamplingOptions{
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	latency := g.now().Sub(start)

	if g.cfg.AdvisoryTimeout > 0 && latency > g.cfg.AdvisoryTimeout {
		g.logger.WarnContext(ctx, "text generation exceeded advisory timeout",
			"customer_id", customerID,
			"latency_ms", latency.Milliseconds(),
			"timeout_ms", g.cfg.AdvisoryTimeout.Milliseconds(),
		)
	}
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("narrative: nil response")
	}

	text := Clean(resp.Content)
	if utf8.RuneCountInString(text) < g.cfg.MinLength {
		return "", ErrResponseTooShort
	}
	text = Truncate(text, g.cfg.MaxLength)

	in, out := estimateTokens(msgs, text, resp.Usage)
	g.logger.InfoContext(ctx, "text generation call",
		"customer_id", customerID,
		"latency_ms", latency.Milliseconds(),
		"tokens_used", in+out,
		"cost_estimate", estimateCost(in, out),
	)
	return text, nil
}

// Clean trims and NFC-normalizes generated text.
func Clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Truncate cuts s to max runes and appends "..." when it was longer.
// A non-positive max leaves s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

func estimateTokens(msgs []llm.Message, reply string, u llm.Usage) (int, int) {
	if u.PromptTokens > 0 || u.CompletionTokens > 0 {
		return u.PromptTokens, u.CompletionTokens
	}
	var chars int
	for _, m := range msgs {
		chars += len(m.Content)
	}
	return chars / 4, len(reply) / 4
}

func estimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*inputCostPer1K + float64(outputTokens)/1000*outputCostPer1K
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
