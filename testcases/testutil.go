// Package testcases holds chat model doubles and end-to-end interview scenarios.
package testcases

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/config"
)

// Handler produces the model reply for one call.
type Handler func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

// ScriptedChatModel routes each call to a handler registered for the forced tool name.
type ScriptedChatModel struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	calls    map[string]int
}

var _ model.ToolCallingChatModel = (*ScriptedChatModel)(nil)

func NewScriptedChatModel() *ScriptedChatModel {
	return &ScriptedChatModel{
		handlers: map[string][]Handler{},
		calls:    map[string]int{},
	}
}

// On queues handlers for tool. The last handler repeats once the queue is drained.
func (m *ScriptedChatModel) On(tool string, handlers ...Handler) *ScriptedChatModel {
	m.mu.Lock()
	m.handlers[tool] = append(m.handlers[tool], handlers...)
	m.mu.Unlock()
	return m
}

func (m *ScriptedChatModel) Calls(tool string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[tool]
}

func (m *ScriptedChatModel) next(tool string) (Handler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.handlers[tool]
	if len(queue) == 0 {
		return nil, false
	}
	n := m.calls[tool]
	m.calls[tool] = n + 1
	if n >= len(queue) {
		return queue[len(queue)-1], true
	}
	return queue[n], true
}

func toolName(opts ...model.Option) string {
	o := model.GetCommonOptions(&model.Options{}, opts...)
	if len(o.Tools) == 0 || o.Tools[0] == nil {
		return ""
	}
	return o.Tools[0].Name
}

func (m *ScriptedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	tool := toolName(opts...)
	h, ok := m.next(tool)
	if !ok {
		return nil, fmt.Errorf("no scripted reply for tool %q", tool)
	}
	return h(ctx, input)
}

func (m *ScriptedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ScriptedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// ToolCallReply answers with a single tool call carrying args encoded as JSON.
func ToolCallReply(tool string, args any) Handler {
	return func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		raw, err := sonic.MarshalString(args)
		if err != nil {
			return nil, err
		}
		return &schema.Message{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				ID:       "call_" + tool,
				Function: schema.FunctionCall{Name: tool, Arguments: raw},
			}},
		}, nil
	}
}

// TextReply answers without any tool call.
func TextReply(content string) Handler {
	return func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(content, nil), nil
	}
}

func ErrorReply(err error) Handler {
	return func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return nil, err
	}
}

// BlockingReply waits until the call context ends.
func BlockingReply() Handler {
	return func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// InitChatModel builds a live model from ../config.json when INTAKE_RUN_LIVE_TESTS=1.
func InitChatModel(t *testing.T) model.ToolCallingChatModel {
	if os.Getenv("INTAKE_RUN_LIVE_TESTS") != "1" {
		t.Skip("set INTAKE_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}
	conf, err := config.Load("../config.json")
	if err != nil {
		t.Skipf("failed to load config: %v", err)
		return nil
	}
	if conf.Model.APIKey == "" {
		t.Skip("config.json model.api_key is empty")
		return nil
	}
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  conf.Model.APIKey,
		Model:   conf.Model.Model,
		BaseURL: conf.Model.BaseURL,
	})
	if err != nil {
		t.Fatalf("failed to init chat model: %v", err)
		return nil
	}
	return chatModel
}
