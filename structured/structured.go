// Package structured calls a chat model with a single forced tool and decodes the
// tool arguments into a Go value.
package structured

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

var ErrNoToolCall = errors.New("no tool call in model response")

type PromptBuilder[TInput any] func(ctx context.Context, input TInput) ([]*schema.Message, error)

type Chain[TInput, TOutput any] struct {
	PromptBuilder PromptBuilder[TInput]
	ChatModel     model.ToolCallingChatModel
	ToolInfo      *schema.ToolInfo
	validate      func(*TOutput) error
}

func NewChain[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	promptBuilder PromptBuilder[TInput],
	toolName string,
	toolDesc string,
) (*Chain[TInput, TOutput], error) {
	if chatModel == nil {
		return nil, errors.New("chat model is nil")
	}
	toolInfo, err := utils.GoStruct2ToolInfo[TOutput](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Chain[TInput, TOutput]{
		PromptBuilder: promptBuilder,
		ChatModel:     chatModel,
		ToolInfo:      toolInfo,
	}, nil
}

// WithValidate installs a check run on every decoded result.
func (s *Chain[TInput, TOutput]) WithValidate(fn func(*TOutput) error) *Chain[TInput, TOutput] {
	s.validate = fn
	return s
}

func (s *Chain[TInput, TOutput]) Invoke(ctx context.Context, input TInput) (*TOutput, error) {
	messages, err := s.PromptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	response, err := s.ChatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{s.ToolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, s.ToolInfo.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	return s.decode(response)
}

func (s *Chain[TInput, TOutput]) decode(msg *schema.Message) (*TOutput, error) {
	if msg == nil {
		return nil, ErrNoToolCall
	}
	call, ok := s.pickToolCall(msg.ToolCalls)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoToolCall, msg.Content)
	}

	var result TOutput
	if err := sonic.UnmarshalString(call.Function.Arguments, &result); err != nil {
		return nil, fmt.Errorf("parse ToolCall arguments failed: %w", err)
	}
	if s.validate != nil {
		if err := s.validate(&result); err != nil {
			return nil, fmt.Errorf("invalid %s result: %w", s.ToolInfo.Name, err)
		}
	}
	return &result, nil
}

// pickToolCall prefers the call naming our tool; some providers omit the name.
func (s *Chain[TInput, TOutput]) pickToolCall(calls []schema.ToolCall) (schema.ToolCall, bool) {
	for _, c := range calls {
		if c.Function.Name == s.ToolInfo.Name {
			return c, true
		}
	}
	for _, c := range calls {
		if c.Function.Name == "" {
			return c, true
		}
	}
	return schema.ToolCall{}, false
}

func (s *Chain[TInput, TOutput]) GetToolInfo() *schema.ToolInfo {
	return s.ToolInfo
}
