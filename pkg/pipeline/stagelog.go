package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const redacted = "[REDACTED]"

var piiKeys = []string{"name", "email", "phone", "address", "credit"}

// stageLogger logs stage boundaries. Inputs are logged with PII keys
// redacted, outputs only by size.
type stageLogger struct {
	logger *slog.Logger
	start  time.Time
}

func newStageLogger(base *slog.Logger, stage, runID string) *stageLogger {
	return &stageLogger{logger: base.With("stage", stage, "run_id", runID)}
}

func (l *stageLogger) started(ctx context.Context, inputs map[string]any) {
	l.start = time.Now()
	l.logger.DebugContext(ctx, "stage started", "inputs", redact(inputs))
}

func (l *stageLogger) completed(ctx context.Context, outputs map[string]any) {
	l.logger.InfoContext(ctx, "stage completed",
		"success", true,
		"duration_ms", time.Since(l.start).Milliseconds(),
		"output_sizes", outputSizes(outputs),
	)
}

func (l *stageLogger) failed(ctx context.Context, err error) {
	l.logger.ErrorContext(ctx, "stage failed",
		"duration_ms", time.Since(l.start).Milliseconds(),
		"error", err,
		"error_type", fmt.Sprintf("%T", err),
	)
}

func isPII(key string) bool {
	k := strings.ToLower(key)
	for _, p := range piiKeys {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}

// redact replaces PII-bearing values and flattens anything that is not a
// scalar to its type name.
func redact(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch {
		case isPII(k):
			out[k] = redacted
		default:
			switch v.(type) {
			case string, bool, int, int64, float64:
				out[k] = v
			default:
				out[k] = fmt.Sprintf("<%T>", v)
			}
		}
	}
	return out
}

func outputSizes(out map[string]any) []string {
	sizes := make([]string, 0, len(out))
	for k, v := range out {
		n := 0
		if v != nil {
			n = len(fmt.Sprint(v))
		}
		sizes = append(sizes, fmt.Sprintf("%s=%d", k, n))
	}
	sort.Strings(sizes)
	return sizes
}
