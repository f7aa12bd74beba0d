package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/api"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/config"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/contracts"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/observability"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable to allow mocking in tests
var startServer = runServer

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return startServer(nil, stdout, stderr)
	}

	switch args[1] {
	case "serve", "server":
		return startServer(args[2:], stdout, stderr)
	case "analyze":
		return runAnalyzeCmd(args[2:], stdout, stderr)
	case "followups":
		return runFollowupsCmd(args[2:], stdout, stderr)
	case "customers":
		return runCustomersCmd(stdout, stderr)
	case "summary":
		return runSummaryCmd(args[2:], stdout, stderr)
	case "ask":
		return runAskCmd(args[2:], stdout, stderr)
	case "seed":
		return runSeedCmd(args[2:], stdout, stderr)
	case "doctor":
		return runDoctorCmd(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if strings.HasPrefix(args[1], "-") {
			return startServer(args[1:], stdout, stderr)
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sSales Follow-Up Assistant %s%s\n", ColorBold+ColorBlue, api.Version, ColorReset)
	fmt.Fprintf(w, "%sWho to call today, and what to offer them.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  followup <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "SERVER")
	printCommand(w, "serve", "Run the HTTP API (default; --port)")
	printCommand(w, "doctor", "Check configuration and data sources")

	printSection(w, "ANALYSIS")
	printCommand(w, "analyze", "Analyze one customer (--customer, --json)")
	printCommand(w, "followups", "Rank customers to contact (--date, --limit)")
	printCommand(w, "customers", "List loaded customers")
	printCommand(w, "summary", "Order history for a customer (--customer)")
	printCommand(w, "ask", "Answer a plain-language question (--question)")

	printSection(w, "DATA")
	printCommand(w, "seed", "Write the loaded ledger to SQLite (--sqlite)")

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sConfiguration is read from FOLLOWUP_CONFIG (YAML) and the environment.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}

// setup loads configuration and wires the application. Callers must Close the
// returned services.
func setup(ctx context.Context, logOut io.Writer, overrides ...func(*config.Config)) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := observability.NewLogger(logOut, cfg.LogLevel, cfg.LogFormat)
	return buildServices(ctx, cfg, logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(stderr io.Writer, format string, args ...any) int {
	_, _ = fmt.Fprintf(stderr, "%sError:%s %s\n", ColorRed, ColorReset, fmt.Sprintf(format, args...))
	return 1
}

func runServer(args []string, _, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	port := fs.String("port", "", "Listen port (overrides PORT)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := setup(ctx, os.Stdout)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer svc.Close()

	addr := ":" + svc.cfg.Port
	if *port != "" {
		addr = ":" + *port
	}

	limiter := api.NewRateLimiter(svc.cfg.RateLimitRPS, svc.cfg.RateLimitBurst)
	server := api.NewServer(svc.assistant, limiter, svc.logger)
	svc.logger.Info("starting",
		"version", api.Version,
		"source", svc.source,
		"customers", len(svc.ledger.Customers()),
		"cache", svc.cacheKind,
		"otel", svc.obs.Enabled(),
	)
	if err := server.ListenAndServe(ctx, addr); err != nil {
		svc.logger.Error("server failed", "error", err)
		return 1
	}
	return 0
}

func runAnalyzeCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	customer := fs.String("customer", "", "Customer ID (REQUIRED)")
	jsonOut := fs.Bool("json", false, "Output raw JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *customer == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --customer is required")
		return 2
	}

	ctx := context.Background()
	svc, err := setup(ctx, stderr)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer svc.Close()

	resp, err := svc.assistant.Analyze(ctx, *customer)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	if *jsonOut {
		if err := writeJSON(stdout, resp); err != nil {
			return fail(stderr, "%v", err)
		}
		return 0
	}
	printAnalysis(stdout, resp)
	return 0
}

func printAnalysis(w io.Writer, r contracts.AnalysisResponse) {
	fmt.Fprintf(w, "%sCustomer %s%s\n", ColorBold, r.CustomerID, ColorReset)
	fmt.Fprintf(w, "  RFM score:   %d\n", r.Scores.RFMScore)
	fmt.Fprintf(w, "  Churn risk:  %s\n", colorRisk(r.Scores.ChurnRisk))
	fmt.Fprintf(w, "  Priority:    %d\n", r.Scores.Priority)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sSummary%s\n  %s\n\n", ColorBold, ColorReset, r.Summary)
	fmt.Fprintf(w, "%sRecommendations%s\n", ColorBold, ColorReset)
	for i, rec := range r.Recommendations {
		fmt.Fprintf(w, "  %d. %s%-12s%s %s\n", i+1, ColorCyan, rec.Action, ColorReset, rec.Reason)
	}
	if len(r.TopFollowupsToday) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "%sFollow up today:%s %s\n", ColorBold, ColorReset, strings.Join(r.TopFollowupsToday, ", "))
	}
}

func colorRisk(risk float64) string {
	color := ColorGreen
	switch {
	case risk > 0.7:
		color = ColorRed
	case risk > 0.4:
		color = ColorYellow
	}
	return fmt.Sprintf("%s%.3f%s", color, risk, ColorReset)
}

func runFollowupsCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("followups", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Reference date YYYY-MM-DD (default today)")
	limit := fs.Int("limit", 0, "Number of customers (overrides FOLLOWUP_LIMIT)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *limit < 0 {
		_, _ = fmt.Fprintln(stderr, "Error: --limit must be positive")
		return 2
	}

	ctx := context.Background()
	svc, err := setup(ctx, stderr, func(c *config.Config) {
		if *limit > 0 {
			c.FollowupLimit = *limit
		}
	})
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer svc.Close()

	day := *date
	if day == "" {
		day = time.Now().UTC().Format(ledger.DateLayout)
	}
	list, err := svc.assistant.TopFollowups(ctx, day)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err := writeJSON(stdout, list); err != nil {
		return fail(stderr, "%v", err)
	}
	return 0
}

func runCustomersCmd(stdout, stderr io.Writer) int {
	svc, err := setup(context.Background(), stderr)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer svc.Close()

	customers := svc.assistant.Customers()
	if err := writeJSON(stdout, map[string]any{"customers": customers, "count": len(customers)}); err != nil {
		return fail(stderr, "%v", err)
	}
	return 0
}

func runSummaryCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(stderr)
	customer := fs.String("customer", "", "Customer ID (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *customer == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --customer is required")
		return 2
	}

	svc, err := setup(context.Background(), stderr)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer svc.Close()

	sum, err := svc.assistant.CustomerSummary(*customer)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	if err := writeJSON(stdout, sum); err != nil {
		return fail(stderr, "%v", err)
	}
	return 0
}

func runAskCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	question := fs.String("question", "", "Question text (default: who to follow up with)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	q := *question
	if q == "" && fs.NArg() > 0 {
		q = strings.Join(fs.Args(), " ")
	}

	ctx := context.Background()
	svc, err := setup(ctx, stderr)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer svc.Close()

	if err := writeJSON(stdout, svc.assistant.Answer(ctx, q)); err != nil {
		return fail(stderr, "%v", err)
	}
	return 0
}
