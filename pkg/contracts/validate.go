package contracts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/recommend"
)

//go:embed analysis_response.schema.json
var analysisResponseSchema string

const schemaURL = "https://followup.schemas.local/analysis_response.schema.json"

// MaxCorrections bounds the validate-patch loop in Finalize.
const MaxCorrections = 2

// ValidationError lists the JSON pointers of the fields that failed.
type ValidationError struct {
	Fields []string
	cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("analysis response invalid at %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return e.cause }

// Validator checks responses against the AnalysisResponse schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(analysisResponseSchema)); err != nil {
		return nil, fmt.Errorf("response schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("response schema compile failed: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// MustValidator panics if the embedded schema does not compile.
func MustValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate returns nil or a *ValidationError.
func (v *Validator) Validate(r AnalysisResponse) error {
	if fields := nonFinite(r); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return &ValidationError{Fields: []string{""}, cause: err}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &ValidationError{Fields: []string{""}, cause: err}
	}

	if err := v.schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &ValidationError{Fields: leafLocations(ve), cause: err}
		}
		return &ValidationError{Fields: []string{""}, cause: err}
	}
	return nil
}

func nonFinite(r AnalysisResponse) []string {
	if math.IsNaN(r.Scores.ChurnRisk) || math.IsInf(r.Scores.ChurnRisk, 0) {
		return []string{"/scores/churn_risk"}
	}
	return nil
}

func leafLocations(ve *jsonschema.ValidationError) []string {
	seen := make(map[string]bool)
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			seen[e.InstanceLocation] = true
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	out := make([]string, 0, len(seen))
	for loc := range seen {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Correct patches the fields named by a ValidationError: numeric scores are
// clamped, an invalid recommendation list becomes a single safe default, a
// blank summary gets placeholder text and a missing follow-up list becomes
// empty. Unrelated fields are left alone.
func Correct(r AnalysisResponse, fields []string) AnalysisResponse {
	for _, f := range fields {
		switch {
		case f == "/scores/rfm_score":
			r.Scores.RFMScore = clampInt(r.Scores.RFMScore, 0, 100)
		case f == "/scores/churn_risk":
			r.Scores.ChurnRisk = clampRisk(r.Scores.ChurnRisk)
		case f == "/scores/priority":
			r.Scores.Priority = clampInt(r.Scores.Priority, 1, 5)
		case strings.HasPrefix(f, "/recommendations"):
			r.Recommendations = []recommend.Recommendation{
				{Action: recommend.ActionEmail, Reason: defaultRecReason},
			}
		case f == "/summary":
			r.Summary = defaultSummaryText
		case strings.HasPrefix(f, "/top_followups_today"):
			r.TopFollowupsToday = []string{}
		}
	}
	return r
}

// Finalize validates r, applying up to MaxCorrections corrective passes. If
// it is still invalid the fixed Fallback is returned. The returned errors
// describe every failed validation, for the caller's error log.
func (v *Validator) Finalize(r AnalysisResponse) (AnalysisResponse, []error) {
	if r.TopFollowupsToday == nil {
		r.TopFollowupsToday = []string{}
	}

	var errs []error
	for pass := 0; ; pass++ {
		err := v.Validate(r)
		if err == nil {
			return r, errs
		}
		errs = append(errs, err)
		if pass >= MaxCorrections {
			return Fallback(r.CustomerID, err), errs
		}

		var ve *ValidationError
		if !errors.As(err, &ve) {
			return Fallback(r.CustomerID, err), errs
		}
		r = Correct(r, ve.Fields)
	}
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampRisk(v float64) float64 {
	if math.IsNaN(v) {
		return 1.0
	}
	return math.Max(0, math.Min(1, v))
}
