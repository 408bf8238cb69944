package question

import (
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/types"
)

// HistoryWindow keeps all system messages and the last N non-system messages.
// When N <= 0, it keeps only system messages.
type HistoryWindow struct {
	N int
}

func (w HistoryWindow) Trim(history []*schema.Message) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	nonSystem := 0
	for _, m := range history {
		if m != nil && m.Role != schema.System {
			nonSystem++
		}
	}
	skip := nonSystem - w.N
	if w.N <= 0 {
		skip = nonSystem
	}

	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m == nil {
			continue
		}
		if m.Role != schema.System && skip > 0 {
			skip--
			continue
		}
		out = append(out, m)
	}
	return out
}

// Build converts the transcript and trims it, dropping consecutive duplicates.
func (w HistoryWindow) Build(messages []types.Message) []*schema.Message {
	return w.Trim(ToSchemaMessages(messages))
}

func ToSchemaMessages(messages []types.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		var msg *schema.Message
		switch m.Role {
		case types.RoleUser:
			msg = schema.UserMessage(m.Content)
		case types.RoleSystem:
			msg = schema.SystemMessage(m.Content)
		default:
			msg = schema.AssistantMessage(m.Content, nil)
		}
		if n := len(out); n > 0 && out[n-1].Role == msg.Role && out[n-1].Content == msg.Content {
			continue
		}
		out = append(out, msg)
	}
	return out
}
