package command

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const DefaultTimeout = 15 * time.Second

type LocalParser struct {
	Keywords map[Command][]string
}

func NewLocalParser() *LocalParser {
	return &LocalParser{
		Keywords: map[Command][]string{
			Undo:    {"undo", "back", "go back", "previous"},
			Redo:    {"redo", "forward"},
			Pause:   {"pause", "save for later"},
			Resume:  {"resume", "continue"},
			Abandon: {"abandon", "cancel", "quit", "exit"},
		},
	}
}

var order = []Command{Undo, Redo, Pause, Resume, Abandon}

func (p *LocalParser) ParseCommand(ctx context.Context, req *Request) (Command, error) {
	normalized := strings.ToLower(strings.TrimSpace(req.Input))
	normalized = strings.TrimRight(normalized, ".!")
	for _, cmd := range order {
		for _, keyword := range p.Keywords[cmd] {
			if normalized == keyword {
				return cmd, nil
			}
		}
	}
	return None, nil
}

// TimeoutParser bounds each call to the wrapped parser. An expired deadline is an error,
// which Parse reports as None.
type TimeoutParser struct {
	parser  Parser
	timeout time.Duration
}

func NewTimeoutParser(parser Parser, timeout time.Duration) *TimeoutParser {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TimeoutParser{parser: parser, timeout: timeout}
}

func (p *TimeoutParser) ParseCommand(ctx context.Context, req *Request) (Command, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	cmd, err := p.parser.ParseCommand(ctx, req)
	if err != nil {
		return None, fmt.Errorf("parse command: %w", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return None, ctxErr
	}
	return cmd, nil
}

// ChainParser returns the first non-None result.
type ChainParser struct {
	parsers []Parser
}

func NewChainParser(parsers ...Parser) *ChainParser {
	return &ChainParser{parsers: parsers}
}

func (p *ChainParser) ParseCommand(ctx context.Context, req *Request) (Command, error) {
	for _, parser := range p.parsers {
		cmd, err := parser.ParseCommand(ctx, req)
		if err == nil && cmd != None {
			return cmd, nil
		}
	}
	return None, nil
}
