package question

import (
	"context"

	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/types"
)

// Request is the input handed to a Generator.
type Request struct {
	Answers   types.AnswerMap
	Questions []types.QuestionDefinition
	// Pending lists the applicable, unanswered catalogue questions in order.
	Pending  []types.QuestionDefinition
	History  []*schema.Message
	Progress int
}

type Question struct {
	ID     string `json:"id" jsonschema:"required,description=Id of the question being asked; must be one of the remaining question ids"`
	Prompt string `json:"prompt" jsonschema:"required,description=The question text shown to the user"`
}

type Generator interface {
	GenerateQuestion(ctx context.Context, req *Request) (*Question, error)
}

type Mode string

const (
	ModeAIDelegated   Mode = "ai_delegated"
	ModeDeterministic Mode = "deterministic"
)

type Source string

const (
	SourceAI            Source = "ai"
	SourceDeterministic Source = "deterministic"
	SourceNone          Source = "none"
)

// Selection is the outcome of one selector invocation. Done means the schema is exhausted.
type Selection struct {
	Question types.QuestionDefinition
	Source   Source
	Done     bool
}
