package ledger

import (
	"context"
	"log/slog"
)

// Source loads a ledger from external storage.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Ledger, error)
}

// SampleSource always yields the built-in dataset.
type SampleSource struct{}

func (SampleSource) Name() string { return "sample" }

func (SampleSource) Load(context.Context) (*Ledger, error) {
	return Sample(), nil
}

// LoadOrSample loads from src and falls back to the built-in dataset when src
// is nil, fails, or yields no customers. Startup never fails on missing data.
func LoadOrSample(ctx context.Context, src Source, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		logger.WarnContext(ctx, "no data source configured, using sample data")
		return Sample()
	}

	l, err := src.Load(ctx)
	if err != nil {
		logger.WarnContext(ctx, "data source failed, using sample data", "source", src.Name(), "error", err)
		return Sample()
	}
	if len(l.customers) == 0 {
		logger.WarnContext(ctx, "data source returned no customers, using sample data", "source", src.Name())
		return Sample()
	}

	logger.InfoContext(ctx, "data loaded",
		"source", src.Name(),
		"customers_count", len(l.customers),
		"orders_count", len(l.orders),
	)
	return l
}
