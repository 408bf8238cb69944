// Package command recognises control intents such as undo or pause in user input.
package command

import "context"

type Command string

const (
	Undo    Command = "undo"
	Redo    Command = "redo"
	Pause   Command = "pause"
	Resume  Command = "resume"
	Abandon Command = "abandon"
	None    Command = "none"
)

// Request carries the user input and the question it answers.
type Request struct {
	Question string
	Input    string
}

type Parser interface {
	ParseCommand(ctx context.Context, req *Request) (Command, error)
}

// Parse runs p and treats any failure as None.
func Parse(ctx context.Context, p Parser, req *Request) Command {
	if p == nil {
		return None
	}
	cmd, err := p.ParseCommand(ctx, req)
	if err != nil {
		return None
	}
	switch cmd {
	case Undo, Redo, Pause, Resume, Abandon:
		return cmd
	default:
		return None
	}
}
