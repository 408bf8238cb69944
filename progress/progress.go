// Package progress derives completion percentages from the answer map.
package progress

import (
	"math"

	"github.com/tbxark/intakeagent/catalog"
	"github.com/tbxark/intakeagent/types"
)

type StepReport struct {
	Number  int    `json:"number"`
	Name    string `json:"name"`
	Percent int    `json:"percent"`
}

type Report struct {
	Overall     int          `json:"overall"`
	CurrentStep int          `json:"current_step"`
	Steps       []StepReport `json:"steps"`
}

type Calculator struct {
	catalog *catalog.Catalog
}

func NewCalculator(c *catalog.Catalog) *Calculator {
	return &Calculator{catalog: c}
}

// counted: required and not gated out. An unanswered gate keeps its dependents counted.
func (c *Calculator) counted(q types.QuestionDefinition, answers types.AnswerMap) bool {
	return q.Required && !c.catalog.GatedOut(q, answers)
}

func answered(answers types.AnswerMap, id string) bool {
	_, ok := answers[id]
	return ok
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

func (c *Calculator) StepProgress(step int, answers types.AnswerMap) int {
	s, ok := c.catalog.Step(step)
	if !ok {
		return 0
	}
	done, total := 0, 0
	for _, q := range s.Questions {
		if !c.counted(q, answers) {
			continue
		}
		total++
		if answered(answers, q.ID) {
			done++
		}
	}
	return percent(done, total)
}

func (c *Calculator) Overall(answers types.AnswerMap) int {
	done, total := 0, 0
	for _, q := range c.catalog.Questions() {
		if !c.counted(q, answers) {
			continue
		}
		total++
		if answered(answers, q.ID) {
			done++
		}
	}
	return percent(done, total)
}

// CurrentStep is 1 before any answer, the lowest step with an unanswered counted
// question afterwards, and the final step once everything is answered.
func (c *Calculator) CurrentStep(answers types.AnswerMap) int {
	if len(answers) == 0 {
		return 1
	}
	for _, q := range c.catalog.Questions() {
		if c.counted(q, answers) && !answered(answers, q.ID) {
			return q.Step
		}
	}
	return c.catalog.FinalStep()
}

func (c *Calculator) Report(answers types.AnswerMap) Report {
	steps := c.catalog.Steps()
	r := Report{
		Overall:     c.Overall(answers),
		CurrentStep: c.CurrentStep(answers),
		Steps:       make([]StepReport, 0, len(steps)),
	}
	for _, s := range steps {
		r.Steps = append(r.Steps, StepReport{
			Number:  s.Number,
			Name:    s.Name,
			Percent: c.StepProgress(s.Number, answers),
		})
	}
	return r
}
