// Package validator checks raw answers against their question definition.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tbxark/intakeagent/types"
)

type VagueMode string

const (
	VagueOff    VagueMode = "off"
	VagueWarn   VagueMode = "warn"
	VagueReject VagueMode = "reject"
)

var DefaultVagueKeywords = []string{
	"maybe", "not sure", "i don't know", "i dont know", "idk", "perhaps", "unsure", "no idea", "tbd",
}

const (
	msgRequired  = "This question requires an answer."
	msgMinLength = "Answer must be at least %d characters."
	msgBoolean   = "Please answer yes or no."
	msgVague     = "That sounds uncertain. Please give a concrete answer."
)

type Result struct {
	Valid bool
	Error string
	// Vague is set when the answer matched a vague keyword.
	Vague bool
}

type Validator struct {
	mode     VagueMode
	keywords []string
	vague    *regexp.Regexp
}

type Option func(*Validator)

func WithVagueMode(mode VagueMode) Option {
	return func(v *Validator) {
		v.mode = mode
	}
}

func WithVagueKeywords(keywords ...string) Option {
	return func(v *Validator) {
		v.keywords = keywords
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{
		mode:     VagueOff,
		keywords: DefaultVagueKeywords,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	if v.mode == "" {
		v.mode = VagueOff
	}
	v.vague = compileKeywords(v.keywords)
	return v
}

func compileKeywords(keywords []string) *regexp.Regexp {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(strings.ToLower(k))
		if k == "" {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(k))
	}
	if len(parts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

func (v *Validator) Mode() VagueMode { return v.mode }

// Validate never mutates its input and returns the same Result for the same arguments.
func (v *Validator) Validate(q types.QuestionDefinition, raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if q.Required {
			return Result{Error: msgRequired}
		}
		return Result{Valid: true}
	}
	if q.MinLength > 0 && utf8.RuneCountInString(trimmed) < q.MinLength {
		return Result{Error: fmt.Sprintf(msgMinLength, q.MinLength)}
	}
	vague := v.mode != VagueOff && v.vague != nil && v.vague.MatchString(trimmed)
	if vague && v.mode == VagueReject {
		return Result{Error: msgVague, Vague: true}
	}
	if q.AnswerKind() == types.KindBoolean {
		if _, ok := types.ParseBool(trimmed); !ok {
			return Result{Error: msgBoolean, Vague: vague}
		}
	}
	return Result{Valid: true, Vague: vague}
}

var defaultValidator = New()

// Validate checks raw with the default policy (vague detection off).
func Validate(q types.QuestionDefinition, raw string) Result {
	return defaultValidator.Validate(q, raw)
}

// Err converts an invalid result into a *types.ValidationError.
func (r Result) Err(questionID string) error {
	if r.Valid {
		return nil
	}
	return &types.ValidationError{QuestionID: questionID, Message: r.Error}
}
