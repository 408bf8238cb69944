// Package interview runs intake interviews turn by turn on top of the session store.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"golang.org/x/sync/errgroup"

	"github.com/tbxark/intakeagent/analysis"
	"github.com/tbxark/intakeagent/command"
	"github.com/tbxark/intakeagent/patch"
	"github.com/tbxark/intakeagent/progress"
	"github.com/tbxark/intakeagent/projection"
	"github.com/tbxark/intakeagent/question"
	"github.com/tbxark/intakeagent/session"
	"github.com/tbxark/intakeagent/types"
)

var ErrNotCompleted = errors.New("interview not completed")

const (
	msgNothingToUndo = "There is nothing to undo."
	msgNothingToRedo = "There is nothing to redo."
	msgPaused        = "Interview paused. Say \"resume\" when you want to continue."
	msgAbandoned     = "Interview abandoned. Your answers were kept but the session is closed."
	msgClosed        = "This interview is closed and cannot be changed."
	msgCompleted     = "Thank you, the interview is complete."
)

// Response is the outcome of one turn.
type Response struct {
	SessionID   string            `json:"session_id"`
	Message     string            `json:"message"`
	QuestionID  string            `json:"question_id,omitempty"`
	Status      types.Status      `json:"status"`
	Progress    int               `json:"progress"`
	CurrentStep int               `json:"current_step"`
	Completed   bool              `json:"completed"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Engine struct {
	store    *session.Store
	selector *question.Selector
	parser   command.Parser
	analysis *analysis.Service
	progress *progress.Calculator
	logger   *slog.Logger
	locks    keyedMutex
}

type Option func(*Engine)

func WithSelector(s *question.Selector) Option {
	return func(e *Engine) {
		if s != nil {
			e.selector = s
		}
	}
}

func WithCommandParser(p command.Parser) Option {
	return func(e *Engine) {
		if p != nil {
			e.parser = p
		}
	}
}

func WithAnalysis(s *analysis.Service) Option {
	return func(e *Engine) {
		if s != nil {
			e.analysis = s
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds a deterministic engine unless options supply model-backed collaborators.
func NewEngine(store *session.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		parser:   command.NewLocalParser(),
		analysis: analysis.NewService(nil),
		progress: progress.NewCalculator(store.Catalog()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.selector == nil {
		e.selector = question.NewSelector(store.Catalog(), question.WithLogger(e.logger))
	}
	e.logger = e.logger.With("source", "IntakeEngine")
	return e
}

// ToolBasedConfig tunes NewToolBasedEngine. Timeout bounds every model call when set.
type ToolBasedConfig struct {
	Selector []question.Option
	Timeout  time.Duration
	Logger   *slog.Logger
}

// NewToolBasedEngine wires question generation, command parsing and completion analysis to chatModel.
func NewToolBasedEngine(store *session.Store, chatModel model.ToolCallingChatModel, cfg ToolBasedConfig) (*Engine, error) {
	generator, err := question.NewToolBasedGenerator(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based question generator: %w", err)
	}
	parser, err := command.NewToolBasedParser(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based command parser: %w", err)
	}
	analyzer, err := analysis.NewToolBasedAnalyzer(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based analyzer: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	selOpts := append([]question.Option{
		question.WithGenerator(generator),
		question.WithTimeout(cfg.Timeout),
		question.WithLogger(logger),
	}, cfg.Selector...)
	return NewEngine(store,
		WithSelector(question.NewSelector(store.Catalog(), selOpts...)),
		WithCommandParser(command.NewChainParser(command.NewLocalParser(), command.NewTimeoutParser(parser, cfg.Timeout))),
		WithAnalysis(analysis.NewService(analyzer, analysis.WithTimeout(cfg.Timeout), analysis.WithLogger(logger))),
		WithLogger(logger),
	), nil
}

func (e *Engine) Store() *session.Store { return e.store }

// Start creates a session and asks the first question.
func (e *Engine) Start(ctx context.Context) (*Response, error) {
	return e.StartWithAnswers(ctx, nil)
}

// StartWithAnswers creates a session prefilled with initial answers and asks the first open question.
func (e *Engine) StartWithAnswers(ctx context.Context, initial types.AnswerMap) (*Response, error) {
	id, err := e.store.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(id)
	defer unlock()

	state, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(initial) > 0 {
		state, err = e.store.Prefill(ctx, id, initial)
		if err != nil {
			_ = e.store.Delete(ctx, id)
			return nil, fmt.Errorf("prefill session: %w", err)
		}
	}
	e.logger.Info("interview started", "session_id", id, "prefilled", len(initial))
	return e.advance(ctx, state, "")
}

// Turn processes one user input. Validation problems and closed sessions are reported in the
// Response; only unknown sessions and storage failures are returned as errors.
func (e *Engine) Turn(ctx context.Context, sessionID, input string) (*Response, error) {
	ctx = callbacks.EnsureRunInfo(ctx, "IntakeEngine", "Agent")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"session_id": sessionID,
		"input":      input,
	})

	defer func() {
		if r := recover(); r != nil {
			callbacks.OnError(ctx, fmt.Errorf("panic in IntakeEngine.Turn: %v", r))
			panic(r)
		}
	}()

	unlock := e.locks.Lock(sessionID)
	resp, err := e.turn(ctx, sessionID, input)
	unlock()
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, err
	}

	callbacks.OnEnd(ctx, map[string]any{
		"response":  resp,
		"status":    string(resp.Status),
		"completed": resp.Completed,
	})
	return resp, nil
}

func (e *Engine) turn(ctx context.Context, id, input string) (*Response, error) {
	state, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.Status.Terminal() {
		return e.closed(state), nil
	}

	cmd := command.Parse(ctx, e.parser, &command.Request{
		Question: e.pendingPrompt(state),
		Input:    input,
	})
	e.logger.Debug("parsed command", "session_id", id, "command", cmd)
	if cmd != command.None {
		return e.handleCommand(ctx, state, cmd)
	}

	if state.PendingQuestionID == "" {
		return e.advance(ctx, state, "")
	}

	next, err := e.store.RecordUserTurn(ctx, id, input, state.PendingQuestionID)
	if err != nil {
		return e.handleError(state, err)
	}
	return e.advance(ctx, next, "")
}

func (e *Engine) handleCommand(ctx context.Context, state *types.SessionState, cmd command.Command) (*Response, error) {
	id := state.SessionID
	switch cmd {
	case command.Undo, command.Redo:
		travel, empty := e.store.Undo, msgNothingToUndo
		if cmd == command.Redo {
			travel, empty = e.store.Redo, msgNothingToRedo
		}
		next, moved, err := travel(ctx, id)
		if err != nil {
			return e.handleError(state, err)
		}
		resp := e.reask(next)
		if !moved {
			resp.Message = joinMessage(empty, resp.Message)
		}
		resp.Metadata = map[string]string{"command": string(cmd), "moved": fmt.Sprint(moved)}
		return resp, nil
	case command.Pause:
		next, err := e.store.Pause(ctx, id)
		if err != nil {
			return e.handleError(state, err)
		}
		resp := e.response(next, msgPaused)
		resp.Metadata = map[string]string{"command": string(cmd)}
		return resp, nil
	case command.Resume:
		next, err := e.store.Resume(ctx, id)
		if err != nil {
			return e.handleError(state, err)
		}
		if next.PendingQuestionID == "" {
			return e.advance(ctx, next, "")
		}
		resp := e.reask(next)
		resp.Metadata = map[string]string{"command": string(cmd)}
		return resp, nil
	case command.Abandon:
		next, err := e.store.Abandon(ctx, id)
		if err != nil {
			return e.handleError(state, err)
		}
		e.logger.Info("interview abandoned", "session_id", id, "progress", next.ProgressPercent)
		resp := e.response(next, msgAbandoned)
		resp.Metadata = map[string]string{"command": string(cmd)}
		return resp, nil
	default:
		return e.reask(state), nil
	}
}

// handleError turns user-correctable failures into inline responses and propagates the rest.
func (e *Engine) handleError(state *types.SessionState, err error) (*Response, error) {
	if verr, ok := types.IsValidationError(err); ok {
		resp := e.response(state, verr.Message)
		resp.QuestionID = state.PendingQuestionID
		resp.Metadata = map[string]string{"error": "validation", "question_id": verr.QuestionID}
		return resp, nil
	}
	if errors.Is(err, types.ErrSessionClosed) {
		return e.closed(state), nil
	}
	return nil, err
}

func (e *Engine) closed(state *types.SessionState) *Response {
	resp := e.response(state, msgClosed)
	resp.Metadata = map[string]string{"error": "session_closed"}
	return resp
}

// advance selects the next question and records it, or completes the interview.
func (e *Engine) advance(ctx context.Context, state *types.SessionState, prefix string) (*Response, error) {
	sel := e.selector.Select(ctx, state.Answers, state.Messages, state.ProgressPercent)
	if sel.Done {
		return e.complete(ctx, state)
	}
	if _, err := e.store.RecordAssistantTurn(ctx, state.SessionID, sel.Question.Prompt,
		session.WithPendingQuestion(sel.Question.ID),
		session.WithMetadata(map[string]string{"source": string(sel.Source)}),
	); err != nil {
		return nil, err
	}
	next, err := e.store.Get(ctx, state.SessionID)
	if err != nil {
		return nil, err
	}
	resp := e.response(next, joinMessage(prefix, sel.Question.Prompt))
	resp.QuestionID = sel.Question.ID
	resp.Metadata = map[string]string{"source": string(sel.Source)}
	return resp, nil
}

func (e *Engine) complete(ctx context.Context, state *types.SessionState) (*Response, error) {
	history := question.ToSchemaMessages(state.Messages)
	var (
		result types.Analysis
		recs   types.Recommendations
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result = e.analysis.Analyze(gctx, state.Answers, history)
		return nil
	})
	g.Go(func() error {
		recs = e.analysis.Recommend(gctx, state.Answers)
		return nil
	})
	_ = g.Wait()

	notice := joinMessage(msgCompleted, result.Summary)
	if _, err := e.store.RecordAssistantTurn(ctx, state.SessionID, notice,
		session.WithPendingQuestion(""),
		session.WithMetadata(map[string]string{"completed": "true"}),
	); err != nil {
		return nil, err
	}
	done, err := e.store.Complete(ctx, state.SessionID, result, recs)
	if err != nil {
		return nil, err
	}
	e.logger.Info("interview completed", "session_id", state.SessionID,
		"classification", result.Classification, "readiness", result.Readiness)
	return e.response(done, notice), nil
}

// reask repeats the pending question without recording a new message.
func (e *Engine) reask(state *types.SessionState) *Response {
	resp := e.response(state, e.pendingPrompt(state))
	resp.QuestionID = state.PendingQuestionID
	return resp
}

func (e *Engine) pendingPrompt(state *types.SessionState) string {
	id := state.PendingQuestionID
	if id == "" {
		return ""
	}
	for i := len(state.Messages) - 1; i >= 0; i-- {
		m := state.Messages[i]
		if m.Role == types.RoleAssistant && m.Metadata["question_id"] == id {
			return m.Content
		}
	}
	if q, ok := e.store.Catalog().Question(id); ok {
		return q.Prompt
	}
	return ""
}

func (e *Engine) response(state *types.SessionState, message string) *Response {
	return &Response{
		SessionID:   state.SessionID,
		Message:     message,
		Status:      state.Status,
		Progress:    state.ProgressPercent,
		CurrentStep: e.progress.CurrentStep(state.Answers),
		Completed:   state.Status == types.StatusCompleted,
	}
}

// Correct replaces the answer to questionID. Answers of questions that the change gates out are
// dropped and the next open question is asked.
func (e *Engine) Correct(ctx context.Context, sessionID, questionID, raw string) (*Response, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	state, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	next, err := e.store.ApplyPatch(ctx, sessionID, []patch.Operation{patch.Replace(questionID, raw)})
	if err != nil {
		if errors.Is(err, patch.ErrInvalidPatch) {
			resp := e.response(state, err.Error())
			resp.Metadata = map[string]string{"error": "invalid_patch"}
			return resp, nil
		}
		return e.handleError(state, err)
	}
	e.logger.Debug("answer corrected", "session_id", sessionID, "question_id", questionID)
	if _, err := e.store.RecordAssistantTurn(ctx, sessionID, fmt.Sprintf("The answer to %s was corrected.", questionID),
		session.WithSystemRole(),
		session.WithMetadata(map[string]string{"corrected": questionID}),
	); err != nil {
		return nil, err
	}
	resp, err := e.advance(ctx, next, "Updated.")
	if err != nil {
		return nil, err
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]string{}
	}
	resp.Metadata["corrected"] = questionID
	return resp, nil
}

// Finalize projects a completed session onto the output record.
func (e *Engine) Finalize(ctx context.Context, sessionID string) (projection.OutputRecord, error) {
	state, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return projection.OutputRecord{}, err
	}
	if state.Status != types.StatusCompleted {
		return projection.OutputRecord{}, fmt.Errorf("%w: session %s is %s", ErrNotCompleted, sessionID, state.Status)
	}
	return projection.Project(state.Answers, state.Analysis, state.Recommendations), nil
}

func joinMessage(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
