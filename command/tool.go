package command

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/structured"
)

const (
	parseCommandToolName        = "parse_command_intent"
	parseCommandToolDescription = "Analyze user input and determine command intent: undo, redo, pause, resume, abandon or none."
)

type parseCommandInput struct {
	Intent Command `json:"intent" jsonschema:"required,enum=undo,enum=redo,enum=pause,enum=resume,enum=abandon,enum=none,description=The user's command intent"`
}

type ToolBasedParser struct {
	chain *structured.Chain[*Request, parseCommandInput]
}

func NewToolBasedParser(chatModel model.ToolCallingChatModel) (*ToolBasedParser, error) {
	chain, err := structured.NewChain[*Request, parseCommandInput](
		chatModel,
		buildParseCommandPrompt,
		parseCommandToolName,
		parseCommandToolDescription,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedParser{chain: chain}, nil
}

func (p *ToolBasedParser) ParseCommand(ctx context.Context, req *Request) (Command, error) {
	result, err := p.chain.Invoke(ctx, req)
	if err != nil {
		return None, err
	}
	if result == nil || result.Intent == "" {
		return None, fmt.Errorf("empty intent returned by %s", parseCommandToolName)
	}
	return result.Intent, nil
}

func buildParseCommandPrompt(ctx context.Context, req *Request) ([]*schema.Message, error) {
	systemPrompt := fmt.Sprintf(`You are the assistant of an interview robot that collects answers about a business use case.

Decide whether the user's latest input is a control command or an answer to the question.

IMPORTANT: Always combine the assistant's question with the user's answer. A plain "no" or "stop doing X" that answers the question is NOT a command.

Choose one intent:
- undo: the user wants to go back to the previous question or retract the last answer.
- redo: the user wants to re-apply an answer they just undid.
- pause: the user wants to stop for now and continue later.
- resume: the user wants to continue a paused interview.
- abandon: the user explicitly wants to give up the whole interview.
- none: anything else, including every answer to the question.

Call the '%s' tool with the result.`, parseCommandToolName)

	userPrompt := fmt.Sprintf("# Assistant Question:\n%s\n\n# User Answer:\n%s", req.Question, req.Input)
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}, nil
}
