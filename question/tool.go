package question

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/structured"
	"github.com/tbxark/intakeagent/types"
)

const (
	askQuestionToolName        = "ask_next_question"
	askQuestionToolDescription = "Choose the next remaining question to ask the user and phrase it conversationally."
)

// DefaultSystemPrompt is used by ToolBasedGenerator unless overridden.
const DefaultSystemPrompt = `You are a business analyst interviewing a colleague about a new use case.

Pick the next question from the remaining questions table and phrase it naturally:
- Prefer the first remaining question unless the conversation makes another one more natural.
- Briefly acknowledge the previous answer when it helps the flow.
- Ask exactly one question. Do not answer it yourself.
- The id you return must be copied from the remaining questions table.

Call the '` + askQuestionToolName + `' tool with the result.`

type generatorOptions struct {
	systemPrompt string
}

type GeneratorOption func(*generatorOptions)

func WithSystemPrompt(prompt string) GeneratorOption {
	return func(o *generatorOptions) {
		o.systemPrompt = prompt
	}
}

type ToolBasedGenerator struct {
	chain        *structured.Chain[*Request, Question]
	systemPrompt string
}

func NewToolBasedGenerator(chatModel model.ToolCallingChatModel, opts ...GeneratorOption) (*ToolBasedGenerator, error) {
	options := generatorOptions{systemPrompt: DefaultSystemPrompt}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	g := &ToolBasedGenerator{systemPrompt: options.systemPrompt}
	chain, err := structured.NewChain[*Request, Question](
		chatModel,
		g.buildPrompt,
		askQuestionToolName,
		askQuestionToolDescription,
	)
	if err != nil {
		return nil, err
	}
	g.chain = chain.WithValidate(func(q *Question) error {
		if strings.TrimSpace(q.Prompt) == "" {
			return errors.New("empty prompt")
		}
		return nil
	})
	return g, nil
}

func (g *ToolBasedGenerator) GenerateQuestion(ctx context.Context, req *Request) (*Question, error) {
	result, err := g.chain.Invoke(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	return result, nil
}

func (g *ToolBasedGenerator) buildPrompt(ctx context.Context, req *Request) ([]*schema.Message, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	messages := make([]*schema.Message, 0, len(req.History)+2)
	messages = append(messages, schema.SystemMessage(g.systemPrompt))
	messages = append(messages, req.History...)
	messages = append(messages, schema.UserMessage(types.FormatPromptContext(types.PromptContext{
		Answers:   req.Answers,
		Questions: req.Questions,
		Pending:   req.Pending,
		Progress:  req.Progress,
	})))
	return messages, nil
}
