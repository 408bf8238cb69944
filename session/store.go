// Package session owns interview session state: transcript, answers, lifecycle and undo history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tbxark/intakeagent/catalog"
	"github.com/tbxark/intakeagent/patch"
	"github.com/tbxark/intakeagent/progress"
	"github.com/tbxark/intakeagent/types"
	"github.com/tbxark/intakeagent/undo"
	"github.com/tbxark/intakeagent/validator"
)

const DefaultAutosaveInterval = 30 * time.Second

// Persister loads and saves the full set of sessions.
type Persister interface {
	Save(ctx context.Context, sessions []types.PersistedSession) error
	Load(ctx context.Context) ([]types.PersistedSession, error)
}

type entry struct {
	mu    sync.Mutex
	state *types.SessionState
	undo  *undo.Manager
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	catalog          *catalog.Catalog
	validator        *validator.Validator
	progress         *progress.Calculator
	persister        Persister
	logger           *slog.Logger
	now              func() time.Time
	newID            func() string
	undoCapacity     int
	autosaveInterval time.Duration

	dirty     atomic.Bool
	notify    chan struct{}
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

type Option func(*Store)

func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Store) {
		if c != nil {
			s.catalog = c
		}
	}
}

func WithValidator(v *validator.Validator) Option {
	return func(s *Store) {
		if v != nil {
			s.validator = v
		}
	}
}

func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithUndoCapacity(n int) Option {
	return func(s *Store) {
		s.undoCapacity = n
	}
}

func WithAutosaveInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.autosaveInterval = d
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions:         map[string]*entry{},
		catalog:          catalog.Default(),
		validator:        validator.New(),
		logger:           slog.Default(),
		now:              time.Now,
		newID:            uuid.NewString,
		undoCapacity:     undo.DefaultCapacity,
		autosaveInterval: DefaultAutosaveInterval,
		notify:           make(chan struct{}, 1),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.progress = progress.NewCalculator(s.catalog)
	s.logger = s.logger.With("source", "SessionStore")
	return s
}

func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	return e, nil
}

// mutate runs fn under the session lock. fn must not be called on terminal sessions.
func (s *Store) mutate(id string, fn func(e *entry) error) (*types.SessionState, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", types.ErrSessionClosed, id, e.state.Status)
	}
	if err := fn(e); err != nil {
		return nil, err
	}
	e.state.LastActivityAt = s.now()
	e.state.ProgressPercent = s.progress.Overall(e.state.Answers)
	s.markDirty()
	return e.state.Clone(), nil
}

// question resolves a catalogue question; unknown ids are free-form required text.
func (s *Store) question(id string) types.QuestionDefinition {
	if q, ok := s.catalog.Question(id); ok {
		return q
	}
	return types.QuestionDefinition{ID: id, Required: true, Kind: types.KindText}
}

func (s *Store) CreateSession(ctx context.Context) (string, error) {
	now := s.now()
	id := s.newID()
	e := &entry{
		state: &types.SessionState{
			SessionID:      id,
			Messages:       []types.Message{},
			Answers:        types.AnswerMap{},
			Status:         types.StatusActive,
			StartedAt:      now,
			LastActivityAt: now,
		},
		undo: undo.NewManager(s.undoCapacity),
	}
	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("session id collision: %s", id)
	}
	s.sessions[id] = e
	s.mu.Unlock()
	s.markDirty()
	s.logger.Debug("session created", "session_id", id)
	return id, nil
}

// RecordUserTurn validates raw as the answer to questionID. Invalid answers return a
// *types.ValidationError and leave the session untouched.
func (s *Store) RecordUserTurn(ctx context.Context, id, raw, questionID string) (*types.SessionState, error) {
	if questionID == "" {
		return nil, errors.New("no question to answer")
	}
	q := s.question(questionID)
	return s.mutate(id, func(e *entry) error {
		res := s.validator.Validate(q, raw)
		if !res.Valid {
			return res.Err(questionID)
		}
		now := s.now()
		e.undo.Push(snapshotOf(e.state, now))
		e.state.Answers[questionID] = types.ParseAnswer(q.AnswerKind(), raw)
		meta := map[string]string{"question_id": questionID}
		if res.Vague {
			meta["vague"] = "true"
		}
		e.state.Messages = append(e.state.Messages, types.Message{
			ID:        s.newID(),
			Role:      types.RoleUser,
			Content:   raw,
			Timestamp: now,
			Metadata:  meta,
		})
		e.state.PendingQuestionID = ""
		if e.state.Status == types.StatusPaused {
			e.state.Status = types.StatusActive
		}
		s.pruneGated(e.state.Answers)
		return nil
	})
}

type turnOptions struct {
	pendingQuestionID *string
	metadata          map[string]string
	role              types.Role
}

type TurnOption func(*turnOptions)

// WithPendingQuestion marks the message as asking questionID.
func WithPendingQuestion(questionID string) TurnOption {
	return func(o *turnOptions) {
		o.pendingQuestionID = &questionID
	}
}

func WithMetadata(md map[string]string) TurnOption {
	return func(o *turnOptions) {
		for k, v := range md {
			o.metadata[k] = v
		}
	}
}

// WithSystemRole records the message as a system note instead of an assistant turn.
func WithSystemRole() TurnOption {
	return func(o *turnOptions) {
		o.role = types.RoleSystem
	}
}

func (s *Store) RecordAssistantTurn(ctx context.Context, id, content string, opts ...TurnOption) (types.Message, error) {
	o := turnOptions{metadata: map[string]string{}, role: types.RoleAssistant}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	var msg types.Message
	_, err := s.mutate(id, func(e *entry) error {
		msg = types.Message{
			ID:        s.newID(),
			Role:      o.role,
			Content:   content,
			Timestamp: s.now(),
		}
		if o.pendingQuestionID != nil {
			e.state.PendingQuestionID = *o.pendingQuestionID
			if *o.pendingQuestionID != "" {
				o.metadata["question_id"] = *o.pendingQuestionID
			}
		}
		if len(o.metadata) > 0 {
			msg.Metadata = o.metadata
		}
		e.state.Messages = append(e.state.Messages, msg)
		return nil
	})
	if err != nil {
		return types.Message{}, err
	}
	return msg.Clone(), nil
}

// Snapshot pushes the current state onto the undo stack, recording pendingQuestionID as the
// question to re-ask when it is restored.
func (s *Store) Snapshot(ctx context.Context, id, pendingQuestionID string) error {
	_, err := s.mutate(id, func(e *entry) error {
		snap := snapshotOf(e.state, s.now())
		snap.PendingQuestionID = pendingQuestionID
		e.undo.Push(snap)
		return nil
	})
	return err
}

// Undo restores the most recent snapshot. The bool is false when there was nothing to undo.
func (s *Store) Undo(ctx context.Context, id string) (*types.SessionState, bool, error) {
	return s.travel(id, (*undo.Manager).Undo)
}

func (s *Store) Redo(ctx context.Context, id string) (*types.SessionState, bool, error) {
	return s.travel(id, (*undo.Manager).Redo)
}

func (s *Store) travel(id string, move func(*undo.Manager, types.Snapshot) (types.Snapshot, bool)) (*types.SessionState, bool, error) {
	moved := false
	state, err := s.mutate(id, func(e *entry) error {
		snap, ok := move(e.undo, snapshotOf(e.state, s.now()))
		if !ok {
			return nil
		}
		moved = true
		e.state.Answers = snap.Answers.Clone()
		e.state.Messages = types.CloneMessages(snap.Messages)
		if e.state.Messages == nil {
			e.state.Messages = []types.Message{}
		}
		e.state.PendingQuestionID = snap.PendingQuestionID
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return state, moved, nil
}

func (s *Store) Pause(ctx context.Context, id string) (*types.SessionState, error) {
	return s.setStatus(id, types.StatusPaused)
}

func (s *Store) Resume(ctx context.Context, id string) (*types.SessionState, error) {
	return s.setStatus(id, types.StatusActive)
}

func (s *Store) Abandon(ctx context.Context, id string) (*types.SessionState, error) {
	return s.setStatus(id, types.StatusAbandoned)
}

func (s *Store) setStatus(id string, status types.Status) (*types.SessionState, error) {
	state, err := s.mutate(id, func(e *entry) error {
		e.state.Status = status
		return nil
	})
	if err == nil {
		s.logger.Debug("session status changed", "session_id", id, "status", status)
	}
	return state, err
}

// Complete attaches the completion narrative and closes the session for good.
func (s *Store) Complete(ctx context.Context, id string, analysis types.Analysis, recs types.Recommendations) (*types.SessionState, error) {
	return s.mutate(id, func(e *entry) error {
		a := analysis.Clone()
		r := recs
		e.state.Analysis = &a
		e.state.Recommendations = &r
		e.state.PendingQuestionID = ""
		e.state.Status = types.StatusCompleted
		return nil
	})
}

// ApplyPatch corrects answers through RFC6902 operations. Values are re-validated and typed
// by the addressed question, the change is undoable, and answers of questions that become
// gated out are dropped.
func (s *Store) ApplyPatch(ctx context.Context, id string, ops []patch.Operation) (*types.SessionState, error) {
	return s.mutate(id, func(e *entry) error {
		next, err := s.patched(e.state.Answers, ops)
		if err != nil {
			return err
		}
		e.undo.Push(snapshotOf(e.state, s.now()))
		e.state.Answers = next
		return nil
	})
}

// Prefill seeds answers without touching the transcript or undo history.
func (s *Store) Prefill(ctx context.Context, id string, initial types.AnswerMap) (*types.SessionState, error) {
	return s.mutate(id, func(e *entry) error {
		next, err := s.patched(e.state.Answers, patch.Diff(e.state.Answers, initial))
		if err != nil {
			return err
		}
		e.state.Answers = next
		return nil
	})
}

func (s *Store) patched(answers types.AnswerMap, ops []patch.Operation) (types.AnswerMap, error) {
	allowed := s.catalog.IDs()
	for k := range answers {
		allowed[k] = true
	}
	if err := patch.Validate(ops, allowed); err != nil {
		return nil, err
	}
	typed := make([]patch.Operation, len(ops))
	for i, op := range ops {
		typed[i] = op
		key, ok := patch.Key(op.Path)
		if !ok || op.Op == patch.OperationRemove {
			continue
		}
		q := s.question(key)
		raw := valueText(op.Value)
		if res := s.validator.Validate(q, raw); !res.Valid {
			return nil, res.Err(key)
		}
		typed[i].Value = types.ParseAnswer(q.AnswerKind(), raw)
	}
	next, err := patch.Apply(answers, typed)
	if err != nil {
		return nil, err
	}
	s.pruneGated(next)
	return next, nil
}

func valueText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case types.Value:
		return val.String()
	case string:
		return val
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case []string:
		return types.ListValue(val...).String()
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
		return types.ListValue(items...).String()
	default:
		return fmt.Sprint(val)
	}
}

// pruneGated drops answers of catalogue questions whose gate now excludes them.
func (s *Store) pruneGated(answers types.AnswerMap) {
	for {
		removed := false
		for _, q := range s.catalog.Questions() {
			if _, ok := answers[q.ID]; ok && s.catalog.GatedOut(q, answers) {
				delete(answers, q.ID)
				removed = true
			}
		}
		if !removed {
			return
		}
	}
}

func (s *Store) Get(ctx context.Context, id string) (*types.SessionState, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), nil
}

// CanUndo reports whether an undo snapshot is available.
func (s *Store) CanUndo(ctx context.Context, id string) (bool, error) {
	e, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.undo.CanUndo(), nil
}

// List returns copies of all sessions ordered by start time.
func (s *Store) List(ctx context.Context) []*types.SessionState {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*types.SessionState, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.state.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	s.markDirty()
	return nil
}

func (s *Store) Export(ctx context.Context, id string) (types.PersistedSession, error) {
	e, err := s.lookup(id)
	if err != nil {
		return types.PersistedSession{}, err
	}
	return exportEntry(e), nil
}

func (s *Store) ExportAll(ctx context.Context) []types.PersistedSession {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]types.PersistedSession, 0, len(entries))
	for _, e := range entries {
		out = append(out, exportEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

func exportEntry(e *entry) types.PersistedSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state.Clone()
	undoStack, redoStack := e.undo.Stacks()
	return types.PersistedSession{
		SessionID:         st.SessionID,
		Messages:          st.Messages,
		Answers:           st.Answers,
		Status:            st.Status,
		Progress:          st.ProgressPercent,
		StartedAt:         st.StartedAt,
		LastActivityAt:    st.LastActivityAt,
		PendingQuestionID: st.PendingQuestionID,
		Analysis:          st.Analysis,
		Recommendations:   st.Recommendations,
		UndoStack:         undoStack,
		RedoStack:         redoStack,
	}
}

// Import installs a persisted session, replacing any session with the same id.
func (s *Store) Import(ctx context.Context, ps types.PersistedSession) error {
	if ps.SessionID == "" {
		return errors.New("persisted session has no id")
	}
	status := ps.Status
	switch status {
	case types.StatusActive, types.StatusPaused, types.StatusCompleted, types.StatusAbandoned:
	case "":
		status = types.StatusActive
	default:
		return fmt.Errorf("persisted session %s has unknown status %q", ps.SessionID, ps.Status)
	}
	state := &types.SessionState{
		SessionID:         ps.SessionID,
		Messages:          types.CloneMessages(ps.Messages),
		Answers:           ps.Answers.Clone(),
		Status:            status,
		StartedAt:         ps.StartedAt,
		LastActivityAt:    ps.LastActivityAt,
		PendingQuestionID: ps.PendingQuestionID,
	}
	if state.Messages == nil {
		state.Messages = []types.Message{}
	}
	if ps.Analysis != nil {
		a := ps.Analysis.Clone()
		state.Analysis = &a
	}
	if ps.Recommendations != nil {
		r := *ps.Recommendations
		state.Recommendations = &r
	}
	state.ProgressPercent = s.progress.Overall(state.Answers)

	m := undo.NewManager(s.undoCapacity)
	m.Restore(ps.UndoStack, ps.RedoStack)

	s.mu.Lock()
	s.sessions[ps.SessionID] = &entry{state: state, undo: m}
	s.mu.Unlock()
	s.markDirty()
	return nil
}

func snapshotOf(st *types.SessionState, now time.Time) types.Snapshot {
	return types.Snapshot{
		TakenAt:           now,
		Answers:           st.Answers.Clone(),
		Messages:          types.CloneMessages(st.Messages),
		PendingQuestionID: st.PendingQuestionID,
	}
}
