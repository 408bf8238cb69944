package interview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/projection"
	"github.com/tbxark/intakeagent/question"
	"github.com/tbxark/intakeagent/session"
	"github.com/tbxark/intakeagent/testcases"
	"github.com/tbxark/intakeagent/types"
)

var script = map[string]string{
	"use_case_name":         "Loan triage assistant",
	"business_unit":         "Retail lending",
	"owner_name":            "Dana Smith",
	"problem_statement":     "Customers wait 3 days for loan approval due to manual review",
	"current_process":       "Underwriters review every application by hand",
	"affected_users":        "Underwriters, applicants",
	"proposed_solution":     "Predict approval likelihood and route simple cases automatically",
	"data_sources":          "Core banking, Credit bureau",
	"has_regulatory_impact": "no",
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

func newEngine(opts ...Option) *Engine {
	store := session.NewStore(session.WithLogger(quietLogger()))
	return NewEngine(store, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

// answerAll answers pending questions from script until the interview completes.
func answerAll(t *testing.T, e *Engine, resp *Response) *Response {
	t.Helper()
	for i := 0; !resp.Completed; i++ {
		require.Less(t, i, 20, "interview did not complete")
		answer, ok := script[resp.QuestionID]
		require.True(t, ok, "unexpected question %q", resp.QuestionID)
		next, err := e.Turn(context.Background(), resp.SessionID, answer)
		require.NoError(t, err)
		require.GreaterOrEqual(t, next.Progress, resp.Progress)
		resp = next
	}
	return resp
}

func TestDeterministicInterviewCompletes(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	resp, err := e.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "use_case_name", resp.QuestionID)
	require.Equal(t, 0, resp.Progress)
	require.Equal(t, 1, resp.CurrentStep)
	require.Equal(t, "deterministic", resp.Metadata["source"])

	_, err = e.Finalize(ctx, resp.SessionID)
	require.ErrorIs(t, err, ErrNotCompleted)

	done := answerAll(t, e, resp)
	require.Equal(t, types.StatusCompleted, done.Status)
	require.Equal(t, 100, done.Progress)
	require.Contains(t, done.Message, msgCompleted)

	state, err := e.Store().Get(ctx, resp.SessionID)
	require.NoError(t, err)
	require.NotContains(t, state.Answers, "regulatory_details")
	require.NotNil(t, state.Analysis)
	require.NotNil(t, state.Recommendations)
	require.Empty(t, state.PendingQuestionID)

	record, err := e.Finalize(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, "Loan triage assistant", record.UseCaseName)
	require.Equal(t, projection.Partial, record.CanWeExecute)
	require.Equal(t, projection.No, record.RegulatoryImpact)
	require.Equal(t, "Predictive analytics", record.TechnicalMethod)
	again, err := e.Finalize(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, record, again)

	closed, err := e.Turn(ctx, resp.SessionID, "one more thing")
	require.NoError(t, err)
	require.Equal(t, "session_closed", closed.Metadata["error"])
	require.Equal(t, types.StatusCompleted, closed.Status)
}

func TestValidationErrorsAreInline(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	resp, err := e.Start(ctx)
	require.NoError(t, err)

	bad, err := e.Turn(ctx, resp.SessionID, "   ")
	require.NoError(t, err)
	require.Equal(t, "This question requires an answer.", bad.Message)
	require.Equal(t, "validation", bad.Metadata["error"])
	require.Equal(t, "use_case_name", bad.QuestionID)

	short, err := e.Turn(ctx, resp.SessionID, "Loan")
	require.NoError(t, err)
	require.Equal(t, "Answer must be at least 5 characters.", short.Message)

	state, err := e.Store().Get(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Empty(t, state.Answers)
	require.Len(t, state.Messages, 1)
	require.Equal(t, "use_case_name", state.PendingQuestionID)
}

func TestUndoRedoCommands(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	resp, err := e.Start(ctx)
	require.NoError(t, err)
	id := resp.SessionID

	nothing, err := e.Turn(ctx, id, "undo")
	require.NoError(t, err)
	require.Contains(t, nothing.Message, msgNothingToUndo)
	require.Equal(t, "false", nothing.Metadata["moved"])

	for _, qid := range []string{"use_case_name", "business_unit", "owner_name"} {
		_, err := e.Turn(ctx, id, script[qid])
		require.NoError(t, err)
	}
	before, err := e.Store().Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, before.Answers, 3)

	back, err := e.Turn(ctx, id, "undo")
	require.NoError(t, err)
	require.Equal(t, "owner_name", back.QuestionID)
	require.Equal(t, "Who is the business owner or sponsor?", back.Message)
	back, err = e.Turn(ctx, id, "Go back.")
	require.NoError(t, err)
	require.Equal(t, "business_unit", back.QuestionID)

	state, err := e.Store().Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, state.Answers, 1)
	last := state.Messages[len(state.Messages)-1]
	require.Equal(t, types.RoleAssistant, last.Role)
	require.Equal(t, "business_unit", last.Metadata["question_id"])

	for i := 0; i < 2; i++ {
		_, err = e.Turn(ctx, id, "redo")
		require.NoError(t, err)
	}
	after, err := e.Store().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, before.Answers.Equal(after.Answers))
	require.Equal(t, len(before.Messages), len(after.Messages))
	require.Equal(t, before.PendingQuestionID, after.PendingQuestionID)
}

func TestPauseAndResume(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	resp, err := e.Start(ctx)
	require.NoError(t, err)
	id := resp.SessionID

	paused, err := e.Turn(ctx, id, "pause")
	require.NoError(t, err)
	require.Equal(t, types.StatusPaused, paused.Status)
	require.Equal(t, msgPaused, paused.Message)

	resumed, err := e.Turn(ctx, id, "continue")
	require.NoError(t, err)
	require.Equal(t, types.StatusActive, resumed.Status)
	require.Equal(t, "use_case_name", resumed.QuestionID)

	_, err = e.Turn(ctx, id, "pause")
	require.NoError(t, err)
	answered, err := e.Turn(ctx, id, script["use_case_name"])
	require.NoError(t, err)
	require.Equal(t, types.StatusActive, answered.Status)
	require.Equal(t, "business_unit", answered.QuestionID)
}

func TestAbandon(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	resp, err := e.Start(ctx)
	require.NoError(t, err)

	gone, err := e.Turn(ctx, resp.SessionID, "cancel")
	require.NoError(t, err)
	require.Equal(t, types.StatusAbandoned, gone.Status)
	require.False(t, gone.Completed)

	closed, err := e.Turn(ctx, resp.SessionID, script["use_case_name"])
	require.NoError(t, err)
	require.Equal(t, "session_closed", closed.Metadata["error"])

	_, err = e.Finalize(ctx, resp.SessionID)
	require.ErrorIs(t, err, ErrNotCompleted)
}

func TestUnknownSession(t *testing.T) {
	e := newEngine()
	_, err := e.Turn(context.Background(), "missing", "hello")
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = e.Finalize(context.Background(), "missing")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestStartWithAnswers(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	resp, err := e.StartWithAnswers(ctx, types.AnswerMap{
		"use_case_name":         types.TextValue(script["use_case_name"]),
		"business_unit":         types.TextValue(script["business_unit"]),
		"has_regulatory_impact": types.BoolValue(false),
	})
	require.NoError(t, err)
	require.Equal(t, "owner_name", resp.QuestionID)
	require.Equal(t, 21, resp.Progress)

	can, err := e.Store().CanUndo(ctx, resp.SessionID)
	require.NoError(t, err)
	require.False(t, can)

	_, err = e.StartWithAnswers(ctx, types.AnswerMap{"use_case_name": types.TextValue("abc")})
	require.Error(t, err)
	require.Len(t, e.Store().List(ctx), 1)
}

func TestCorrectPrunesGatedAnswers(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	resp, err := e.Start(ctx)
	require.NoError(t, err)
	id := resp.SessionID

	for resp.QuestionID != "success_kpis" {
		answer := script[resp.QuestionID]
		if resp.QuestionID == "has_regulatory_impact" {
			answer = "yes"
		}
		resp, err = e.Turn(ctx, id, answer)
		require.NoError(t, err)
	}
	state, err := e.Store().Get(ctx, id)
	require.NoError(t, err)
	require.Contains(t, state.Answers, "regulatory_details")

	fixed, err := e.Correct(ctx, id, "has_regulatory_impact", "no")
	require.NoError(t, err)
	require.Equal(t, "has_regulatory_impact", fixed.Metadata["corrected"])
	require.Equal(t, "success_kpis", fixed.QuestionID)
	require.Contains(t, fixed.Message, "Updated.")

	state, err = e.Store().Get(ctx, id)
	require.NoError(t, err)
	require.NotContains(t, state.Answers, "regulatory_details")
	v, _ := state.Answers["has_regulatory_impact"].Bool()
	require.False(t, v)

	invalid, err := e.Correct(ctx, id, "owner_name", "")
	require.NoError(t, err)
	require.Equal(t, "validation", invalid.Metadata["error"])

	unknown, err := e.Correct(ctx, id, "favourite_colour", "blue")
	require.NoError(t, err)
	require.Equal(t, "invalid_patch", unknown.Metadata["error"])

	undone, err := e.Turn(ctx, id, "undo")
	require.NoError(t, err)
	require.Equal(t, "true", undone.Metadata["moved"])
	state, err = e.Store().Get(ctx, id)
	require.NoError(t, err)
	require.Contains(t, state.Answers, "regulatory_details")
}

func TestAIModeFallsBackAndCompletes(t *testing.T) {
	ctx := context.Background()
	cm := testcases.NewScriptedChatModel().
		On("ask_next_question",
			testcases.ToolCallReply("ask_next_question", question.Question{ID: "owner_name", Prompt: "Who sponsors this?"}),
			testcases.ErrorReply(errors.New("rate limited")),
			testcases.ToolCallReply("ask_next_question", question.Question{ID: "not_a_question", Prompt: "Favourite colour?"}),
			testcases.TextReply("I think you should ask about the budget."),
		).
		On("analyze_use_case", testcases.ToolCallReply("analyze_use_case", types.Analysis{
			Summary:        "Strong candidate.",
			Classification: "Predictive analytics",
			Readiness:      140,
		})).
		On("recommend_next_steps", testcases.ErrorReply(errors.New("timeout")))

	store := session.NewStore(session.WithLogger(quietLogger()))
	e, err := NewToolBasedEngine(store, cm, ToolBasedConfig{Logger: quietLogger()})
	require.NoError(t, err)

	resp, err := e.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "owner_name", resp.QuestionID)
	require.Equal(t, "Who sponsors this?", resp.Message)
	require.Equal(t, "ai", resp.Metadata["source"])

	resp, err = e.Turn(ctx, resp.SessionID, script["owner_name"])
	require.NoError(t, err)
	require.Equal(t, "use_case_name", resp.QuestionID)
	require.Equal(t, "deterministic", resp.Metadata["source"])

	done := answerAll(t, e, resp)
	require.True(t, done.Completed)
	require.Contains(t, done.Message, "Strong candidate.")

	state, err := store.Get(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, 100, state.Analysis.Readiness)
	require.NotEmpty(t, state.Recommendations.NextSteps)
	for _, m := range state.Messages {
		if m.Role == types.RoleAssistant && m.Metadata["question_id"] != "" {
			require.NotEmpty(t, m.Metadata["source"])
		}
	}
	require.Equal(t, 1, cm.Calls("analyze_use_case"))
	require.Equal(t, 1, cm.Calls("recommend_next_steps"))
}

func TestCorrectLeavesSystemNote(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	resp, err := e.Start(ctx)
	require.NoError(t, err)
	resp, err = e.Turn(ctx, resp.SessionID, script[resp.QuestionID])
	require.NoError(t, err)

	_, err = e.Correct(ctx, resp.SessionID, "use_case_name", "Renamed assistant")
	require.NoError(t, err)
	state, err := e.Store().Get(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, "Renamed assistant", state.Answers.Text("use_case_name"))

	var notes int
	for _, m := range state.Messages {
		if m.Role == types.RoleSystem {
			notes++
			require.Equal(t, "use_case_name", m.Metadata["corrected"])
		}
	}
	require.Equal(t, 1, notes)
}

func TestHungCommandParserDoesNotBlockTurn(t *testing.T) {
	ctx := context.Background()
	cm := testcases.NewScriptedChatModel().
		On("ask_next_question", testcases.ErrorReply(errors.New("offline"))).
		On("parse_command_intent", testcases.BlockingReply())
	store := session.NewStore(session.WithLogger(quietLogger()))
	e, err := NewToolBasedEngine(store, cm, ToolBasedConfig{Timeout: 20 * time.Millisecond, Logger: quietLogger()})
	require.NoError(t, err)

	resp, err := e.Start(ctx)
	require.NoError(t, err)

	start := time.Now()
	next, err := e.Turn(ctx, resp.SessionID, script["use_case_name"])
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, "business_unit", next.QuestionID)
	require.Equal(t, 1, cm.Calls("parse_command_intent"))

	state, err := store.Get(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, script["use_case_name"], state.Answers.Text("use_case_name"))
}
