package testcases

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/interview"
)

var loanAnswers = map[string]string{
	"use_case_name":         "Loan triage assistant",
	"business_unit":         "Retail lending",
	"owner_name":            "Dana Smith",
	"problem_statement":     "Customers wait 3 days for loan approval due to manual review",
	"current_process":       "Underwriters review every application by hand",
	"affected_users":        "Underwriters, applicants",
	"proposed_solution":     "Predict approval likelihood and route simple cases automatically",
	"data_sources":          "Core banking, Credit bureau",
	"has_regulatory_impact": "yes",
	"regulatory_details":    "Consumer credit directive limits automated decisions",
	"success_kpis":          "Approval time under 1 day",
	"can_we_execute":        "Yes, but we need more GPUs",
	"estimated_investment":  "A small team for one quarter",
	"key_risks":             "Model bias against thin-file applicants",
	"timeline":              "Pilot in Q3",
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// interviewUntil answers from loanAnswers until stop returns true or the interview completes.
func interviewUntil(t *testing.T, e *interview.Engine, resp *interview.Response, stop func(*interview.Response) bool) *interview.Response {
	t.Helper()
	for i := 0; !resp.Completed && (stop == nil || !stop(resp)); i++ {
		require.Less(t, i, 30, "interview did not finish")
		answer, ok := loanAnswers[resp.QuestionID]
		require.True(t, ok, "unexpected question %q", resp.QuestionID)
		next, err := e.Turn(context.Background(), resp.SessionID, answer)
		require.NoError(t, err)
		require.Empty(t, next.Metadata["error"], next.Message)
		resp = next
		t.Logf("progress %d%% step %d: %s", resp.Progress, resp.CurrentStep, resp.Message)
	}
	return resp
}
