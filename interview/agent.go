package interview

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
)

var _ adk.Agent = (*Agent)(nil)

// Agent exposes the engine as an adk agent. The session is taken from the run context,
// see WithSessionID.
type Agent struct {
	name        string
	description string
	engine      *Engine
}

func NewAgent(name, description string, engine *Engine) *Agent {
	return &Agent{
		name:        name,
		description: description,
		engine:      engine,
	}
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		sessionID, ok := SessionIDFromContext(ctx)
		if !ok {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no session id in context"),
			})
			return
		}
		if input == nil || len(input.Messages) == 0 {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}
		resp, err := a.engine.Turn(ctx, sessionID, input.Messages[len(input.Messages)-1].Content)
		if err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("interview turn failed: %w", err),
			})
			return
		}
		gen.Send(&adk.AgentEvent{
			AgentName: a.name,
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming: false,
					Message:     responseMessage(resp),
					Role:        schema.Assistant,
				},
			},
		})
	}()
	return iter
}

func responseMessage(resp *Response) *schema.Message {
	extra := map[string]any{
		"session_id":   resp.SessionID,
		"status":       string(resp.Status),
		"progress":     resp.Progress,
		"current_step": resp.CurrentStep,
		"completed":    resp.Completed,
	}
	if resp.QuestionID != "" {
		extra["question_id"] = resp.QuestionID
	}
	for k, v := range resp.Metadata {
		extra[k] = v
	}
	return &schema.Message{
		Role:    schema.Assistant,
		Content: resp.Message,
		Extra:   extra,
	}
}
