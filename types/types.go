package types

import (
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether a session in this status can no longer be mutated.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Kind is the shape of an answer value.
type Kind string

const (
	KindText    Kind = "text"
	KindBoolean Kind = "boolean"
	KindList    Kind = "list"
)

type DependsOn struct {
	QuestionID     string `json:"question_id" yaml:"question_id"`
	ExpectedAnswer string `json:"expected_answer" yaml:"expected_answer"`
}

type QuestionDefinition struct {
	ID        string     `json:"id" yaml:"id"`
	Step      int        `json:"step" yaml:"step"`
	StepName  string     `json:"step_name" yaml:"step_name"`
	Prompt    string     `json:"prompt" yaml:"prompt"`
	Required  bool       `json:"required" yaml:"required"`
	MinLength int        `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	Kind      Kind       `json:"kind,omitempty" yaml:"kind,omitempty"`
	DependsOn *DependsOn `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// AnswerKind returns the declared kind, defaulting to text.
func (q QuestionDefinition) AnswerKind() Kind {
	if q.Kind == "" {
		return KindText
	}
	return q.Kind
}

type Message struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (m Message) Clone() Message {
	out := m
	if m.Metadata != nil {
		out.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

type SessionState struct {
	SessionID         string           `json:"session_id"`
	Messages          []Message        `json:"messages"`
	Answers           AnswerMap        `json:"answers"`
	Status            Status           `json:"status"`
	StartedAt         time.Time        `json:"started_at"`
	LastActivityAt    time.Time        `json:"last_activity_at"`
	ProgressPercent   int              `json:"progress_percent"`
	PendingQuestionID string           `json:"pending_question_id,omitempty"`
	Analysis          *Analysis        `json:"analysis,omitempty"`
	Recommendations   *Recommendations `json:"recommendations,omitempty"`
}

func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = CloneMessages(s.Messages)
	out.Answers = s.Answers.Clone()
	if s.Analysis != nil {
		a := s.Analysis.Clone()
		out.Analysis = &a
	}
	if s.Recommendations != nil {
		r := *s.Recommendations
		out.Recommendations = &r
	}
	return &out
}

// Snapshot is an immutable copy of the undoable part of a session.
type Snapshot struct {
	TakenAt           time.Time `json:"taken_at"`
	Answers           AnswerMap `json:"answers"`
	Messages          []Message `json:"messages"`
	PendingQuestionID string    `json:"pending_question_id,omitempty"`
}

type Analysis struct {
	Summary         string   `json:"summary" jsonschema:"required,description=Short narrative assessment of the use case"`
	Gaps            []string `json:"gaps" jsonschema:"description=Information that is missing or too vague"`
	Recommendations []string `json:"recommendations" jsonschema:"description=Concrete suggestions for the submitter"`
	Classification  string   `json:"classification" jsonschema:"description=Use case category such as automation or analytics"`
	Readiness       int      `json:"readiness" jsonschema:"minimum=0,maximum=100,description=Readiness score from 0 to 100"`
}

func (a Analysis) Clone() Analysis {
	out := a
	out.Gaps = append([]string(nil), a.Gaps...)
	out.Recommendations = append([]string(nil), a.Recommendations...)
	return out
}

type Recommendations struct {
	TechnicalApproach string `json:"technical_approach" jsonschema:"required,description=Suggested technical method"`
	DataStrategy      string `json:"data_strategy" jsonschema:"required,description=How to source and prepare data"`
	RiskMitigation    string `json:"risk_mitigation" jsonschema:"required,description=How to reduce the main risks"`
	NextSteps         string `json:"next_steps" jsonschema:"required,description=Immediate next actions"`
}

// PersistedSession is the serialized form of a session, including its undo history.
type PersistedSession struct {
	SessionID         string           `json:"session_id"`
	Messages          []Message        `json:"messages"`
	Answers           AnswerMap        `json:"answers"`
	Status            Status           `json:"status"`
	Progress          int              `json:"progress"`
	StartedAt         time.Time        `json:"started_at"`
	LastActivityAt    time.Time        `json:"last_activity_at"`
	PendingQuestionID string           `json:"pending_question_id,omitempty"`
	Analysis          *Analysis        `json:"analysis,omitempty"`
	Recommendations   *Recommendations `json:"recommendations,omitempty"`
	UndoStack         []Snapshot       `json:"undo_stack"`
	RedoStack         []Snapshot       `json:"redo_stack"`
}
