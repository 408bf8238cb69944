package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/patch"
	"github.com/tbxark/intakeagent/types"
	"github.com/tbxark/intakeagent/validator"
)

type memoryPersister struct {
	mu      sync.Mutex
	saved   []types.PersistedSession
	saves   int
	failErr error
}

func (p *memoryPersister) Save(ctx context.Context, sessions []types.PersistedSession) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	p.saved = sessions
	p.saves++
	return nil
}

func (p *memoryPersister) Load(ctx context.Context) ([]types.PersistedSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved, nil
}

func (p *memoryPersister) snapshot() ([]types.PersistedSession, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved, p.saves
}

func newTestStore(opts ...Option) *Store {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return NewStore(append(base, opts...)...)
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, err := s.CreateSession(ctx)
	require.NoError(t, err)

	st, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusActive, st.Status)
	require.Empty(t, st.Answers)
	require.Zero(t, st.ProgressPercent)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = s.RecordUserTurn(ctx, "missing", "x", "use_case_name")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestProblemStatementScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.CreateSession(ctx)

	_, err := s.RecordUserTurn(ctx, id, "Too short", "problem_statement")
	verr, ok := types.IsValidationError(err)
	require.True(t, ok)
	require.Equal(t, "Answer must be at least 20 characters.", verr.Message)

	st, _ := s.Get(ctx, id)
	require.Empty(t, st.Answers)
	require.Empty(t, st.Messages)
	ok, _ = s.CanUndo(ctx, id)
	require.False(t, ok)

	st, err = s.RecordUserTurn(ctx, id, "Manual invoice matching takes days", "problem_statement")
	require.NoError(t, err)
	require.Equal(t, 7, st.ProgressPercent)
	require.Equal(t, "Manual invoice matching takes days", st.Answers.Text("problem_statement"))
	require.Len(t, st.Messages, 1)
	require.Equal(t, "problem_statement", st.Messages[0].Metadata["question_id"])
}

func answerTurn(t *testing.T, s *Store, id, qid, raw string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.RecordAssistantTurn(ctx, id, "Question "+qid, WithPendingQuestion(qid))
	require.NoError(t, err)
	_, err = s.RecordUserTurn(ctx, id, raw, qid)
	require.NoError(t, err)
}

func TestThreeTurnsTwoUndos(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.CreateSession(ctx)
	answerTurn(t, s, id, "use_case_name", "Invoice matcher")
	answerTurn(t, s, id, "business_unit", "Finance")
	answerTurn(t, s, id, "owner_name", "Dana")

	for i := 0; i < 2; i++ {
		_, moved, err := s.Undo(ctx, id)
		require.NoError(t, err)
		require.True(t, moved)
	}
	st, _ := s.Get(ctx, id)
	require.Equal(t, []string{"use_case_name"}, st.Answers.Keys())
	require.Equal(t, "business_unit", st.PendingQuestionID)
	require.Equal(t, "Question business_unit", st.Messages[len(st.Messages)-1].Content)
	require.Equal(t, 7, st.ProgressPercent)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.CreateSession(ctx)
	answerTurn(t, s, id, "use_case_name", "Invoice matcher")
	answerTurn(t, s, id, "business_unit", "Finance")
	_, err := s.RecordAssistantTurn(ctx, id, "Question owner_name", WithPendingQuestion("owner_name"))
	require.NoError(t, err)
	before, _ := s.Get(ctx, id)

	for k := 1; k <= 2; k++ {
		for i := 0; i < k; i++ {
			_, moved, err := s.Undo(ctx, id)
			require.NoError(t, err)
			require.True(t, moved)
		}
		for i := 0; i < k; i++ {
			_, moved, err := s.Redo(ctx, id)
			require.NoError(t, err)
			require.True(t, moved)
		}
		after, _ := s.Get(ctx, id)
		require.True(t, before.Answers.Equal(after.Answers))
		require.Equal(t, before.Messages, after.Messages)
		require.Equal(t, before.PendingQuestionID, after.PendingQuestionID)
	}

	_, moved, err := s.Redo(ctx, id)
	require.NoError(t, err)
	require.False(t, moved)
}

func TestNewAnswerClearsRedo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.CreateSession(ctx)
	answerTurn(t, s, id, "use_case_name", "Invoice matcher")
	_, _, err := s.Undo(ctx, id)
	require.NoError(t, err)
	answerTurn(t, s, id, "use_case_name", "Invoice robot")
	_, moved, err := s.Redo(ctx, id)
	require.NoError(t, err)
	require.False(t, moved)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.CreateSession(ctx)

	st, err := s.Pause(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusPaused, st.Status)

	// answering resumes a paused session
	st, err = s.RecordUserTurn(ctx, id, "Invoice matcher", "use_case_name")
	require.NoError(t, err)
	require.Equal(t, types.StatusActive, st.Status)

	st, err = s.Complete(ctx, id, types.Analysis{Summary: "ok", Readiness: 50}, types.Recommendations{NextSteps: "go"})
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, st.Status)
	require.Equal(t, 50, st.Analysis.Readiness)

	_, err = s.RecordUserTurn(ctx, id, "Finance", "business_unit")
	require.ErrorIs(t, err, types.ErrSessionClosed)
	_, err = s.Resume(ctx, id)
	require.ErrorIs(t, err, types.ErrSessionClosed)
	_, _, err = s.Undo(ctx, id)
	require.ErrorIs(t, err, types.ErrSessionClosed)

	id2, _ := s.CreateSession(ctx)
	_, err = s.Abandon(ctx, id2)
	require.NoError(t, err)
	_, err = s.RecordAssistantTurn(ctx, id2, "hello")
	require.ErrorIs(t, err, types.ErrSessionClosed)
}

func TestApplyPatchPrunesGatedAnswers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.CreateSession(ctx)
	answerTurn(t, s, id, "has_regulatory_impact", "yes")
	answerTurn(t, s, id, "regulatory_details", "GDPR applies to customer records")

	st, err := s.ApplyPatch(ctx, id, []patch.Operation{patch.Replace("has_regulatory_impact", "no")})
	require.NoError(t, err)
	flag, ok := st.Answers["has_regulatory_impact"].Bool()
	require.True(t, ok)
	require.False(t, flag)
	_, kept := st.Answers["regulatory_details"]
	require.False(t, kept)

	// corrections are undoable
	st, moved, err := s.Undo(ctx, id)
	require.NoError(t, err)
	require.True(t, moved)
	require.True(t, st.Answers.Has("regulatory_details"))
}

func TestApplyPatchValidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.CreateSession(ctx)
	answerTurn(t, s, id, "problem_statement", "Manual invoice matching takes days")

	_, err := s.ApplyPatch(ctx, id, []patch.Operation{patch.Replace("problem_statement", "short")})
	_, ok := types.IsValidationError(err)
	require.True(t, ok)

	_, err = s.ApplyPatch(ctx, id, []patch.Operation{patch.Replace("not_a_question", "value")})
	require.Error(t, err)

	st, _ := s.Get(ctx, id)
	require.Equal(t, "Manual invoice matching takes days", st.Answers.Text("problem_statement"))
}

func TestPrefill(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.CreateSession(ctx)
	st, err := s.Prefill(ctx, id, types.AnswerMap{
		"use_case_name":         types.TextValue("Invoice matcher"),
		"has_regulatory_impact": types.TextValue("No"),
		"data_sources":          types.TextValue("ERP, CRM"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ERP", "CRM"}, st.Answers["data_sources"].List())
	require.Equal(t, types.KindBoolean, st.Answers["has_regulatory_impact"].Kind())
	require.Equal(t, 21, st.ProgressPercent)
	require.Empty(t, st.Messages)
	ok, _ := s.CanUndo(ctx, id)
	require.False(t, ok)
}

func TestVagueAnswersAreFlagged(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(WithValidator(validator.New(validator.WithVagueMode(validator.VagueWarn))))
	id, _ := s.CreateSession(ctx)
	st, err := s.RecordUserTurn(ctx, id, "maybe next year", "timeline")
	require.NoError(t, err)
	require.Equal(t, "true", st.Messages[0].Metadata["vague"])
}

func TestHedgedGateAnswerKeepsFollowUp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(WithValidator(validator.New(validator.WithVagueMode(validator.VagueReject))))
	id, _ := s.CreateSession(ctx)

	_, err := s.RecordUserTurn(ctx, id, "not sure", "has_regulatory_impact")
	verr, ok := types.IsValidationError(err)
	require.True(t, ok)
	require.Equal(t, "has_regulatory_impact", verr.QuestionID)

	st, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.False(t, st.Answers.Has("has_regulatory_impact"))
	q, _ := s.Catalog().Question("regulatory_details")
	require.False(t, s.Catalog().GatedOut(q, st.Answers))
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.CreateSession(ctx)
	answerTurn(t, s, id, "use_case_name", "Invoice matcher")
	answerTurn(t, s, id, "business_unit", "Finance")

	ps, err := s.Export(ctx, id)
	require.NoError(t, err)
	require.Len(t, ps.UndoStack, 2)

	other := newTestStore()
	require.NoError(t, other.Import(ctx, ps))
	st, moved, err := other.Undo(ctx, id)
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, []string{"use_case_name"}, st.Answers.Keys())

	require.Error(t, other.Import(ctx, types.PersistedSession{}))
	require.Len(t, other.List(ctx), 1)
	require.NoError(t, other.Delete(ctx, id))
	require.ErrorIs(t, other.Delete(ctx, id), types.ErrNotFound)
}

func TestAutosave(t *testing.T) {
	ctx := context.Background()
	p := &memoryPersister{}
	s := newTestStore(WithPersister(p), WithAutosaveInterval(time.Hour))
	require.NoError(t, s.Open(ctx))

	id, _ := s.CreateSession(ctx)
	_, err := s.RecordUserTurn(ctx, id, "Invoice matcher", "use_case_name")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		saved, _ := p.snapshot()
		return len(saved) == 1 && saved[0].Answers.Has("use_case_name")
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Close(ctx))

	reopened := newTestStore(WithPersister(p))
	require.NoError(t, reopened.Open(ctx))
	st, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Invoice matcher", st.Answers.Text("use_case_name"))
	require.NoError(t, reopened.Close(ctx))
}

func TestFlushFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	p := &memoryPersister{failErr: errors.New("disk full")}
	s := newTestStore(WithPersister(p))

	id, _ := s.CreateSession(ctx)
	_, err := s.RecordUserTurn(ctx, id, "Invoice matcher", "use_case_name")
	require.NoError(t, err)

	err = s.Flush(ctx)
	require.Error(t, err)
	st, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, st.Answers.Has("use_case_name"))

	p.mu.Lock()
	p.failErr = nil
	p.mu.Unlock()
	require.NoError(t, s.Flush(ctx))
	_, saves := p.snapshot()
	require.Equal(t, 1, saves)
}

func TestConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.CreateSession(ctx)
			require.NoError(t, err)
			_, err = s.RecordUserTurn(ctx, id, fmt.Sprintf("Use case %d", i), "use_case_name")
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.Len(t, s.List(ctx), 8)
}
