// Package question picks the next interview question, delegating to a language
// model when one is configured and falling back to catalogue order otherwise.
package question

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tbxark/intakeagent/catalog"
	"github.com/tbxark/intakeagent/types"
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultHistoryWindow = 20
	DefaultMaxFreeForm   = 3
)

type Selector struct {
	catalog       *catalog.Catalog
	generator     Generator
	timeout       time.Duration
	allowFreeForm bool
	maxFreeForm   int
	window        HistoryWindow
	logger        *slog.Logger
}

type Option func(*Selector)

func WithGenerator(g Generator) Option {
	return func(s *Selector) {
		s.generator = g
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithAllowFreeForm accepts generated questions whose id is not in the catalogue.
func WithAllowFreeForm(allow bool) Option {
	return func(s *Selector) {
		s.allowFreeForm = allow
	}
}

// WithMaxFreeForm caps how many free-form questions may be asked in a row before a
// catalogue question is required.
func WithMaxFreeForm(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxFreeForm = n
		}
	}
}

func WithHistoryWindow(n int) Option {
	return func(s *Selector) {
		s.window = HistoryWindow{N: n}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSelector(c *catalog.Catalog, opts ...Option) *Selector {
	s := &Selector{
		catalog:     c,
		timeout:     DefaultTimeout,
		maxFreeForm: DefaultMaxFreeForm,
		window:      HistoryWindow{N: DefaultHistoryWindow},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With("source", "QuestionSelector")
	return s
}

func (s *Selector) Mode() Mode {
	if s.generator == nil {
		return ModeDeterministic
	}
	return ModeAIDelegated
}

// Select never fails: upstream problems degrade to catalogue order.
func (s *Selector) Select(ctx context.Context, answers types.AnswerMap, history []types.Message, progress int) Selection {
	pending := s.catalog.Pending(answers)
	if len(pending) == 0 {
		return Selection{Source: SourceNone, Done: true}
	}
	fallback := Selection{Question: pending[0], Source: SourceDeterministic}
	if s.generator == nil {
		return fallback
	}

	q, err := s.generate(ctx, &Request{
		Answers:   answers.Clone(),
		Questions: s.catalog.Questions(),
		Pending:   pending,
		History:   s.window.Build(history),
		Progress:  progress,
	})
	if err != nil {
		s.logger.Warn("question generator unavailable, using catalogue order",
			"error", fmt.Errorf("%w: %v", types.ErrUpstreamUnavailable, err),
			"fallback", fallback.Question.ID)
		return fallback
	}
	def, ok := s.resolve(q, pending, s.freeFormStreak(history) < s.maxFreeForm)
	if !ok {
		s.logger.Warn("malformed generated question, using catalogue order",
			"error", types.ErrUpstreamUnavailable, "id", q.ID, "fallback", fallback.Question.ID)
		return fallback
	}
	s.logger.Debug("generated question", "id", def.ID)
	return Selection{Question: def, Source: SourceAI}
}

func (s *Selector) generate(ctx context.Context, req *Request) (q *Question, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q, err = nil, fmt.Errorf("panic in question generator: %v", r)
		}
	}()
	q, err = s.generator.GenerateQuestion(ctx, req)
	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if q == nil {
		return nil, fmt.Errorf("generator returned no question")
	}
	return q, nil
}

// freeFormStreak counts the trailing assistant questions whose ids are not in the catalogue.
func (s *Selector) freeFormStreak(history []types.Message) int {
	streak := 0
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		id := m.Metadata["question_id"]
		if m.Role != types.RoleAssistant || id == "" {
			continue
		}
		if _, known := s.catalog.Question(id); known {
			break
		}
		streak++
	}
	return streak
}

func (s *Selector) resolve(q *Question, pending []types.QuestionDefinition, freeForm bool) (types.QuestionDefinition, bool) {
	id := strings.TrimSpace(q.ID)
	prompt := strings.TrimSpace(q.Prompt)
	if id == "" || prompt == "" {
		return types.QuestionDefinition{}, false
	}
	for _, p := range pending {
		if p.ID == id {
			p.Prompt = prompt
			return p, true
		}
	}
	if _, known := s.catalog.Question(id); known || !s.allowFreeForm || !freeForm {
		return types.QuestionDefinition{}, false
	}
	return types.QuestionDefinition{
		ID:       id,
		Step:     pending[0].Step,
		StepName: pending[0].StepName,
		Prompt:   prompt,
		Required: true,
		Kind:     types.KindText,
	}, true
}
