package analysis

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/structured"
	"github.com/tbxark/intakeagent/types"
)

const (
	analyzeToolName        = "analyze_use_case"
	analyzeToolDescription = "Assess a completed use case interview: summary, gaps, classification and readiness."

	recommendToolName        = "recommend_next_steps"
	recommendToolDescription = "Recommend technical approach, data strategy, risk mitigation and next steps for a use case."
)

type analyzeInput struct {
	answers types.AnswerMap
	history []*schema.Message
}

type ToolBasedAnalyzer struct {
	analyze   *structured.Chain[*analyzeInput, types.Analysis]
	recommend *structured.Chain[types.AnswerMap, types.Recommendations]
}

func NewToolBasedAnalyzer(chatModel model.ToolCallingChatModel) (*ToolBasedAnalyzer, error) {
	analyze, err := structured.NewChain[*analyzeInput, types.Analysis](
		chatModel,
		buildAnalyzePrompt,
		analyzeToolName,
		analyzeToolDescription,
	)
	if err != nil {
		return nil, err
	}
	recommend, err := structured.NewChain[types.AnswerMap, types.Recommendations](
		chatModel,
		buildRecommendPrompt,
		recommendToolName,
		recommendToolDescription,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedAnalyzer{analyze: analyze, recommend: recommend}, nil
}

func (a *ToolBasedAnalyzer) AnalyzeConversation(ctx context.Context, answers types.AnswerMap, history []*schema.Message) (*types.Analysis, error) {
	result, err := a.analyze.Invoke(ctx, &analyzeInput{answers: answers, history: history})
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	return result, nil
}

func (a *ToolBasedAnalyzer) GenerateRecommendations(ctx context.Context, answers types.AnswerMap) (*types.Recommendations, error) {
	result, err := a.recommend.Invoke(ctx, answers)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	return result, nil
}

func buildAnalyzePrompt(ctx context.Context, in *analyzeInput) ([]*schema.Message, error) {
	systemPrompt := fmt.Sprintf(`You review business use case submissions.

Read the collected answers and the interview transcript, then:
- summarise the use case in two or three sentences;
- list information that is missing or too vague as gaps;
- suggest concrete improvements;
- classify the use case (for example automation, analytics, customer experience, compliance);
- score readiness for implementation from 0 to 100.

Call the '%s' tool with the result.`, analyzeToolName)

	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	messages = append(messages, in.history...)
	messages = append(messages, schema.UserMessage(types.FormatPromptContext(types.PromptContext{
		Answers: in.answers,
	})))
	return messages, nil
}

func buildRecommendPrompt(ctx context.Context, answers types.AnswerMap) ([]*schema.Message, error) {
	systemPrompt := fmt.Sprintf(`You are a solution architect. Based on the collected answers of a business use case,
recommend a technical approach, a data strategy, a risk mitigation plan and the immediate next steps.
Keep each recommendation to a short paragraph.

Call the '%s' tool with the result.`, recommendToolName)

	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(types.FormatPromptContext(types.PromptContext{Answers: answers})),
	}, nil
}
