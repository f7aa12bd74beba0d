// Package contracts defines the wire types returned to callers and the
// validation that every analysis response passes before it leaves the
// pipeline.
package contracts

import (
	"fmt"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/recommend"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

// AnalysisResponse is the per-customer result.
type AnalysisResponse struct {
	CustomerID        string                     `json:"customer_id"`
	Scores            scoring.Scores             `json:"scores"`
	Summary           string                     `json:"summary"`
	Recommendations   []recommend.Recommendation `json:"recommendations"`
	TopFollowupsToday []string                   `json:"top_followups_today"`
}

// FollowupList is the daily follow-up report.
type FollowupList struct {
	Date              string   `json:"date"`
	TopFollowupsToday []string `json:"top_followups_today"`
	Count             int      `json:"count"`
}

// NewFollowupList sets Count from ids and never returns a nil list.
func NewFollowupList(date string, ids []string) FollowupList {
	if ids == nil {
		ids = []string{}
	}
	return FollowupList{Date: date, TopFollowupsToday: ids, Count: len(ids)}
}

// Messages used by Fallback and Correct.
const (
	fallbackReason     = "Manual review required due to system error"
	defaultRecReason   = "Standard follow-up"
	defaultSummaryText = "No summary available"
)

// Fallback is the fixed response for a run that could not complete. It
// always validates.
func Fallback(customerID string, cause error) AnalysisResponse {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return AnalysisResponse{
		CustomerID: customerID,
		Scores:     scoring.Sentinel(),
		Summary:    fmt.Sprintf("Analysis failed for customer %s: %s", customerID, msg),
		Recommendations: []recommend.Recommendation{
			{Action: recommend.ActionEmail, Reason: fallbackReason},
		},
		TopFollowupsToday: []string{},
	}
}
