package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/testcases"
)

func TestLocalParser(t *testing.T) {
	p := NewLocalParser()
	ctx := context.Background()
	tests := map[string]Command{
		"undo":              Undo,
		"  Back ":           Undo,
		"redo!":             Redo,
		"pause":             Pause,
		"Resume":            Resume,
		"cancel":            Abandon,
		"quit.":             Abandon,
		"no":                None,
		"undo the last bit": None,
	}
	for input, want := range tests {
		got, err := p.ParseCommand(ctx, &Request{Input: input})
		require.NoError(t, err)
		require.Equal(t, want, got, input)
	}
}

func TestToolBasedParser(t *testing.T) {
	chatModel := testcases.NewScriptedChatModel().
		On(parseCommandToolName, testcases.ToolCallReply(parseCommandToolName, parseCommandInput{Intent: Pause}))
	p, err := NewToolBasedParser(chatModel)
	require.NoError(t, err)
	cmd, err := p.ParseCommand(context.Background(), &Request{Question: "Timeline?", Input: "let me stop here for today"})
	require.NoError(t, err)
	require.Equal(t, Pause, cmd)
}

func TestParserErrorsBecomeNone(t *testing.T) {
	chatModel := testcases.NewScriptedChatModel().
		On(parseCommandToolName, testcases.ErrorReply(errors.New("offline")))
	tool, err := NewToolBasedParser(chatModel)
	require.NoError(t, err)

	require.Equal(t, None, Parse(context.Background(), tool, &Request{Input: "undo"}))
	require.Equal(t, None, Parse(context.Background(), nil, &Request{Input: "undo"}))

	chain := NewChainParser(NewLocalParser(), tool)
	require.Equal(t, Undo, Parse(context.Background(), chain, &Request{Input: "undo"}))
}

func TestTimeoutParser(t *testing.T) {
	chatModel := testcases.NewScriptedChatModel().
		On(parseCommandToolName, testcases.BlockingReply())
	tool, err := NewToolBasedParser(chatModel)
	require.NoError(t, err)
	p := NewTimeoutParser(tool, 20*time.Millisecond)

	start := time.Now()
	_, err = p.ParseCommand(context.Background(), &Request{Input: "let me stop here"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, None, Parse(context.Background(), p, &Request{Input: "let me stop here"}))
	require.Less(t, time.Since(start), 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, None, Parse(ctx, p, &Request{Input: "let me stop here"}))
}

func TestChainParser(t *testing.T) {
	chatModel := testcases.NewScriptedChatModel().
		On(parseCommandToolName, testcases.ToolCallReply(parseCommandToolName, parseCommandInput{Intent: Abandon}))
	tool, err := NewToolBasedParser(chatModel)
	require.NoError(t, err)
	p := NewChainParser(NewLocalParser(), tool)

	cmd, err := p.ParseCommand(context.Background(), &Request{Input: "undo"})
	require.NoError(t, err)
	require.Equal(t, Undo, cmd)
	require.Zero(t, chatModel.Calls(parseCommandToolName))

	cmd, err = p.ParseCommand(context.Background(), &Request{Input: "I give up on this whole thing"})
	require.NoError(t, err)
	require.Equal(t, Abandon, cmd)
}
