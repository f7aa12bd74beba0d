package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/config"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

// runSeedCmd implements `followup seed`: copy the configured ledger (or the
// built-in sample) into a SQLite file that DATA_SOURCE=sqlite can serve.
func runSeedCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("sqlite", "", "Target SQLite file (REQUIRED)")
	sample := fs.Bool("sample", false, "Seed the built-in sample instead of the configured source")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *path == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --sqlite is required")
		return 2
	}

	ctx := context.Background()
	var customers []ledger.Customer
	var orders []ledger.Order
	if *sample {
		customers, orders = ledger.SampleCustomers(), ledger.SampleOrders()
	} else {
		svc, err := setup(ctx, stderr)
		if err != nil {
			return fail(stderr, "%v", err)
		}
		customers, orders = svc.ledger.Customers(), svc.ledger.AllOrders()
		svc.Close()
	}

	db, err := sql.Open("sqlite", *path)
	if err != nil {
		return fail(stderr, "open %s: %v", *path, err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	dst := ledger.NewSQLSource(db, config.SourceSQLite)
	if err := dst.Init(ctx); err != nil {
		return fail(stderr, "init schema: %v", err)
	}
	if err := dst.Seed(ctx, customers, orders); err != nil {
		return fail(stderr, "%v", err)
	}

	_, _ = fmt.Fprintf(stdout, "%sSeeded%s %d customers and %d orders into %s\n",
		ColorGreen, ColorReset, len(customers), len(orders), *path)
	return 0
}

// runDoctorCmd implements `followup doctor`.
func runDoctorCmd(stdout, stderr io.Writer) int {
	type checkResult struct {
		Name   string `json:"name"`
		Status string `json:"status"` // "ok", "warn", "fail"
		Detail string `json:"detail,omitempty"`
	}

	var results []checkResult
	allOK := true
	add := func(name, status, detail string) {
		results = append(results, checkResult{Name: name, Status: status, Detail: detail})
		if status == "fail" {
			allOK = false
		}
	}

	add("go_runtime", "ok", fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH))

	cfg, err := config.Load()
	if err != nil {
		add("config", "fail", err.Error())
	} else if err := cfg.Validate(); err != nil {
		add("config", "fail", err.Error())
	} else {
		detail := "defaults + environment"
		if p := os.Getenv("FOLLOWUP_CONFIG"); p != "" {
			detail = p
		}
		add("config", "ok", detail)
	}

	if cfg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		src, closeSrc, err := openSource(ctx, cfg)
		if closeSrc != nil {
			defer func() { _ = closeSrc() }()
		}
		if err != nil {
			add("data_source", "fail", err.Error())
		} else if l, err := src.Load(ctx); err != nil {
			add("data_source", "fail", fmt.Sprintf("%s: %v", src.Name(), err))
		} else {
			add("data_source", "ok", fmt.Sprintf("%s (%d customers, %d orders)", src.Name(), len(l.Customers()), l.OrderCount()))
		}

		if cfg.LLMAPIKey == "" {
			add("llm", "warn", "no API key; summaries use the order template")
		} else {
			add("llm", "ok", fmt.Sprintf("%s via %s", cfg.LLMModel, cfg.LLMServiceURL))
		}

		if cfg.RedisAddr == "" {
			add("redis", "warn", "REDIS_ADDR not set; population max recomputed per call")
		} else {
			rc := scoring.NewRedisMaxSpendCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, maxSpendCacheTTL)
			if err := rc.Ping(ctx); err != nil {
				add("redis", "fail", err.Error())
			} else {
				add("redis", "ok", cfg.RedisAddr)
			}
			_ = rc.Close()
		}

		if cfg.OTelEnabled {
			add("telemetry", "ok", "OTLP "+cfg.OTelEndpoint)
		} else {
			add("telemetry", "warn", "disabled")
		}
	}

	fmt.Fprintf(stdout, "\n%sFollow-Up Doctor%s\n", ColorBold+ColorBlue, ColorReset)
	fmt.Fprintln(stdout, "────────────────")
	for _, r := range results {
		icon := "✅"
		if r.Status == "warn" {
			icon = "⚠️ "
		} else if r.Status == "fail" {
			icon = "❌"
		}
		fmt.Fprintf(stdout, "  %s  %-14s %s%s%s\n", icon, r.Name, ColorGray, r.Detail, ColorReset)
	}

	if allOK {
		fmt.Fprintf(stdout, "\n%sAll checks passed.%s\n", ColorGreen+ColorBold, ColorReset)
		return 0
	}
	_, _ = fmt.Fprintln(stderr, "doctor: one or more checks failed")
	return 1
}
