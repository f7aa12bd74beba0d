package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq" // Postgres driver
	_ "modernc.org/sqlite"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/assistant"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/config"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/contracts"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/llm"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/narrative"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/observability"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/pipeline"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/recommend"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

const maxSpendCacheTTL = 10 * time.Minute

// services is the wired application graph shared by every command.
type services struct {
	cfg       *config.Config
	logger    *slog.Logger
	obs       *observability.Provider
	ledger    *ledger.Ledger
	source    string
	cacheKind string
	llmModel  string
	scorer    *scoring.Engine
	assistant *assistant.Service
	closers   []func() error
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close failed", "error", err)
		}
	}
	if s.obs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.obs.Shutdown(shutdownCtx)
	}
}

func buildServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	s := &services{cfg: cfg, logger: logger}

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.OTelEnabled
	obsCfg.OTLPEndpoint = cfg.OTelEndpoint
	obs, err := observability.New(ctx, obsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	s.obs = obs

	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		logger.Warn("data source unavailable, using sample data", "data_source", cfg.DataSource, "error", err)
		src = ledger.SampleSource{}
	}
	if closeSrc != nil {
		s.closers = append(s.closers, closeSrc)
	}
	s.source = src.Name()
	s.ledger = ledger.LoadOrSample(ctx, src, logger)

	scorerOpts := []scoring.Option{scoring.WithLogger(logger)}
	if cache := s.openCache(ctx); cache != nil {
		scorerOpts = append(scorerOpts, scoring.WithCache(cache))
	}
	s.scorer = scoring.NewEngine(s.ledger, scorerOpts...)

	var client llm.Client
	if cfg.LLMAPIKey != "" {
		c := llm.NewOpenAIClient(cfg.LLMServiceURL, cfg.LLMAPIKey, cfg.LLMModel)
		s.llmModel = c.Model()
		client = c
	} else {
		logger.Info("no LLM API key configured, summaries use the order template")
	}
	narrator := narrative.NewGenerator(client, narrativeConfig(cfg), logger)

	rec, err := recommend.NewDefaultEngine(logger)
	if err != nil {
		return nil, fmt.Errorf("recommendation rules: %w", err)
	}
	validator, err := contracts.NewValidator()
	if err != nil {
		return nil, err
	}

	p := pipeline.New(s.scorer, narrator, rec, validator,
		pipeline.WithLogger(logger),
		pipeline.WithObservability(obs),
		pipeline.WithFollowupLimit(cfg.FollowupLimit),
	)
	s.assistant = assistant.New(s.scorer, p,
		assistant.WithLogger(logger),
		assistant.WithFollowupLimit(cfg.FollowupLimit),
	)
	return s, nil
}

func narrativeConfig(cfg *config.Config) narrative.Config {
	nc := narrative.DefaultConfig()
	nc.MaxRetries = cfg.MaxRetries
	nc.AdvisoryTimeout = cfg.AdvisoryTimeout()
	nc.Temperature = cfg.ModelTemperature
	nc.RPS = cfg.NarrativeRPS
	nc.Burst = 1
	if cfg.NarrativeBackoff > 0 {
		base := int64(cfg.NarrativeBackoff)
		nc.Backoff = narrative.BackoffPolicy{BaseMs: base, MaxMs: base * 8, MaxJitterMs: base / 2}
	}
	return nc
}

// openCache returns the Redis max-spend cache when REDIS_ADDR is set and
// reachable; otherwise scores are recomputed on every call.
func (s *services) openCache(ctx context.Context) scoring.MaxSpendCache {
	s.cacheKind = "none"
	if s.cfg.RedisAddr == "" {
		return nil
	}
	rc := scoring.NewRedisMaxSpendCache(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, maxSpendCacheTTL)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		s.logger.Warn("redis unavailable, using in-process cache", "addr", s.cfg.RedisAddr, "error", err)
		_ = rc.Close()
		s.cacheKind = "memory"
		return scoring.NewMemoryMaxSpendCache()
	}
	s.closers = append(s.closers, rc.Close)
	s.cacheKind = "redis"
	return rc
}

// openSource builds the configured ledger source. The returned closer may be
// non-nil even when err is not.
func openSource(ctx context.Context, cfg *config.Config) (ledger.Source, func() error, error) {
	switch strings.ToLower(cfg.DataSource) {
	case config.SourceSample:
		return ledger.SampleSource{}, nil, nil
	case config.SourceCSV, "":
		return ledger.NewCSVSource(cfg.DataDir), nil, nil
	case config.SourceSQLite:
		return openSQLSource(ctx, "sqlite", cfg.SQLitePath, config.SourceSQLite)
	case config.SourcePostgres:
		return openSQLSource(ctx, "postgres", cfg.DatabaseURL, config.SourcePostgres)
	case config.SourceS3:
		src, err := ledger.NewS3Source(ctx, ledger.S3SourceConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, nil, nil
	case config.SourceGCS:
		src, err := ledger.NewGCSSource(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, nil, err
		}
		return src, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
}

func openSQLSource(ctx context.Context, driver, dsn, label string) (ledger.Source, func() error, error) {
	if dsn == "" {
		return nil, nil, errors.New(label + ": empty connection string")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: open: %w", label, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, db.Close, fmt.Errorf("%s: ping: %w", label, err)
	}
	return ledger.NewSQLSource(db, label), db.Close, nil
}
