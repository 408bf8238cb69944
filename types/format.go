package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// PromptContext is the interview data handed to a language model.
type PromptContext struct {
	Answers   AnswerMap
	Questions []QuestionDefinition
	Pending   []QuestionDefinition
	Progress  int
	Now       time.Time
}

func formatAnswersSection(answers AnswerMap, questions []QuestionDefinition) string {
	if len(answers) == 0 {
		return "# Collected answers:\n none"
	}
	prompts := make(map[string]string, len(questions))
	for _, q := range questions {
		prompts[q.ID] = q.Prompt
	}
	var buf strings.Builder
	buf.WriteString("# Collected answers:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Key", "Question", "Answer")
	for _, key := range answers.Keys() {
		_ = table.Append(key, prompts[key], answers[key].String())
	}
	_ = table.Render()
	return buf.String()
}

func formatPendingSection(pending []QuestionDefinition) string {
	if len(pending) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# Remaining questions (in order):\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("ID", "Step", "Prompt", "Min length")
	for _, q := range pending {
		minLen := ""
		if q.MinLength > 0 {
			minLen = strconv.Itoa(q.MinLength)
		}
		_ = table.Append(q.ID, fmt.Sprintf("%d %s", q.Step, q.StepName), q.Prompt, minLen)
	}
	_ = table.Render()
	return buf.String()
}

func FormatPromptContext(pc PromptContext) string {
	now := pc.Now
	if now.IsZero() {
		now = time.Now()
	}
	sections := []string{
		fmt.Sprintf("# Current Date:\n %s", now.Format(time.RFC3339)),
		fmt.Sprintf("# Progress:\n %d%%", pc.Progress),
		formatAnswersSection(pc.Answers, pc.Questions),
	}
	if s := formatPendingSection(pc.Pending); s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n\n")
}
