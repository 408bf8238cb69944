// Package catalog holds the ordered question catalogue that drives an interview.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tbxark/intakeagent/types"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalogYAML []byte

var ErrInvalidCatalog = errors.New("invalid catalog")

type Step struct {
	Number    int
	Name      string
	Questions []types.QuestionDefinition
}

// Catalog is immutable after construction; question order defines traversal order.
type Catalog struct {
	questions []types.QuestionDefinition
	index     map[string]int
	steps     []Step
}

type catalogFile struct {
	Version   int                        `yaml:"version"`
	Questions []types.QuestionDefinition `yaml:"questions"`
}

func New(defs []types.QuestionDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrInvalidCatalog)
	}
	c := &Catalog{
		questions: make([]types.QuestionDefinition, 0, len(defs)),
		index:     make(map[string]int, len(defs)),
	}
	lastStep := 0
	for i, q := range defs {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: question %d has no id", ErrInvalidCatalog, i)
		}
		if _, dup := c.index[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrInvalidCatalog, q.ID)
		}
		if q.Step < 1 {
			return nil, fmt.Errorf("%w: question %q has step %d", ErrInvalidCatalog, q.ID, q.Step)
		}
		if q.Step < lastStep {
			return nil, fmt.Errorf("%w: question %q breaks step order", ErrInvalidCatalog, q.ID)
		}
		if q.MinLength < 0 {
			return nil, fmt.Errorf("%w: question %q has negative min_length", ErrInvalidCatalog, q.ID)
		}
		switch q.AnswerKind() {
		case types.KindText, types.KindBoolean, types.KindList:
		default:
			return nil, fmt.Errorf("%w: question %q has unknown kind %q", ErrInvalidCatalog, q.ID, q.Kind)
		}
		if q.DependsOn != nil {
			if _, ok := c.index[q.DependsOn.QuestionID]; !ok {
				return nil, fmt.Errorf("%w: question %q depends on unknown or later question %q",
					ErrInvalidCatalog, q.ID, q.DependsOn.QuestionID)
			}
			dep := *q.DependsOn
			q.DependsOn = &dep
		}
		lastStep = q.Step
		c.index[q.ID] = len(c.questions)
		c.questions = append(c.questions, q)

		if len(c.steps) == 0 || c.steps[len(c.steps)-1].Number != q.Step {
			c.steps = append(c.steps, Step{Number: q.Step, Name: q.StepName})
		}
		last := &c.steps[len(c.steps)-1]
		last.Questions = append(last.Questions, q)
	}
	return c, nil
}

func Parse(r io.Reader) (*Catalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(file.Questions)
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in business use-case catalogue.
func Default() *Catalog {
	defaultOnce.Do(func() {
		var file catalogFile
		if err := yaml.Unmarshal(defaultCatalogYAML, &file); err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		c, err := New(file.Questions)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func (c *Catalog) Questions() []types.QuestionDefinition {
	return append([]types.QuestionDefinition(nil), c.questions...)
}

func (c *Catalog) Len() int { return len(c.questions) }

func (c *Catalog) Question(id string) (types.QuestionDefinition, bool) {
	i, ok := c.index[id]
	if !ok {
		return types.QuestionDefinition{}, false
	}
	return c.questions[i], true
}

func (c *Catalog) Steps() []Step {
	return append([]Step(nil), c.steps...)
}

func (c *Catalog) Step(number int) (Step, bool) {
	for _, s := range c.steps {
		if s.Number == number {
			return s, true
		}
	}
	return Step{}, false
}

func (c *Catalog) FinalStep() int {
	return c.steps[len(c.steps)-1].Number
}

// Applicable reports whether q may be asked given the current answers.
// A dependent question is applicable only once its gate is answered with the expected value.
func (c *Catalog) Applicable(q types.QuestionDefinition, answers types.AnswerMap) bool {
	if q.DependsOn == nil {
		return true
	}
	gate, ok := c.Question(q.DependsOn.QuestionID)
	if !ok || !c.Applicable(gate, answers) {
		return false
	}
	v, answered := answers[gate.ID]
	return answered && v.Matches(q.DependsOn.ExpectedAnswer)
}

// GatedOut reports whether q can never be asked because a gate was answered against it.
func (c *Catalog) GatedOut(q types.QuestionDefinition, answers types.AnswerMap) bool {
	if q.DependsOn == nil {
		return false
	}
	gate, ok := c.Question(q.DependsOn.QuestionID)
	if !ok {
		return true
	}
	if c.GatedOut(gate, answers) {
		return true
	}
	v, answered := answers[gate.ID]
	return answered && !v.Matches(q.DependsOn.ExpectedAnswer)
}

// Pending lists applicable questions without a recorded answer, in catalogue order.
func (c *Catalog) Pending(answers types.AnswerMap) []types.QuestionDefinition {
	var out []types.QuestionDefinition
	for _, q := range c.questions {
		if _, answered := answers[q.ID]; answered {
			continue
		}
		if c.Applicable(q, answers) {
			out = append(out, q)
		}
	}
	return out
}

func (c *Catalog) NextPending(answers types.AnswerMap) (types.QuestionDefinition, bool) {
	for _, q := range c.questions {
		if _, answered := answers[q.ID]; answered {
			continue
		}
		if c.Applicable(q, answers) {
			return q, true
		}
	}
	return types.QuestionDefinition{}, false
}

// IDs returns the set of question ids, used as the allowed answer keys.
func (c *Catalog) IDs() map[string]bool {
	out := make(map[string]bool, len(c.questions))
	for _, q := range c.questions {
		out[q.ID] = true
	}
	return out
}
