package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/catalog"
	"github.com/tbxark/intakeagent/types"
)

func TestProblemStatementMinLength(t *testing.T) {
	q, ok := catalog.Default().Question("problem_statement")
	require.True(t, ok)

	res := Validate(q, "Too short")
	require.False(t, res.Valid)
	require.Equal(t, "Answer must be at least 20 characters.", res.Error)

	res = Validate(q, "Manual invoice matching takes days")
	require.True(t, res.Valid)
	require.Empty(t, res.Error)
}

func TestRequiredRejectsWhitespace(t *testing.T) {
	q := types.QuestionDefinition{ID: "owner_name", Step: 1, Required: true}
	res := Validate(q, "   \n\t")
	require.False(t, res.Valid)
	require.Equal(t, "This question requires an answer.", res.Error)

	optional := types.QuestionDefinition{ID: "notes", Step: 1, MinLength: 10}
	require.True(t, Validate(optional, "  ").Valid)
}

func TestMinLengthCountsRunesOfTrimmedAnswer(t *testing.T) {
	q := types.QuestionDefinition{ID: "name", Step: 1, Required: true, MinLength: 5}
	require.False(t, Validate(q, "  abcd   ").Valid)
	require.True(t, Validate(q, "héllo").Valid)
}

func TestBooleanAnswers(t *testing.T) {
	q, _ := catalog.Default().Question("has_regulatory_impact")
	require.True(t, Validate(q, "Yes, GDPR applies").Valid)
	require.True(t, Validate(q, "no").Valid)
	res := Validate(q, "it depends")
	require.False(t, res.Valid)
	require.Equal(t, "Please answer yes or no.", res.Error)
}

func TestHedgedBooleanAnswers(t *testing.T) {
	q, _ := catalog.Default().Question("has_regulatory_impact")
	hedges := []string{"not sure", "no idea", "Not sure, maybe", "maybe"}
	for _, raw := range hedges {
		for _, mode := range []VagueMode{VagueOff, VagueWarn, VagueReject} {
			res := New(WithVagueMode(mode)).Validate(q, raw)
			require.False(t, res.Valid, "mode %s raw %q", mode, raw)
		}
	}

	res := New(WithVagueMode(VagueReject)).Validate(q, "not sure")
	require.True(t, res.Vague)
	require.Equal(t, "That sounds uncertain. Please give a concrete answer.", res.Error)

	res = New(WithVagueMode(VagueWarn)).Validate(q, "Yes, perhaps more than one rule")
	require.True(t, res.Valid)
	require.True(t, res.Vague)

	require.True(t, New(WithVagueMode(VagueReject)).Validate(q, "No, nothing regulated").Valid)
}

func TestValidateIsIdempotent(t *testing.T) {
	v := New(WithVagueMode(VagueWarn))
	for _, q := range catalog.Default().Questions() {
		for _, raw := range []string{"", "x", "maybe later we will see about it", "A perfectly reasonable answer here"} {
			first := v.Validate(q, raw)
			second := v.Validate(q, raw)
			require.Equal(t, first, second, "question %s raw %q", q.ID, raw)
		}
	}
}

func TestVagueModes(t *testing.T) {
	q := types.QuestionDefinition{ID: "timeline", Step: 5, Required: true, MinLength: 2}
	raw := "Maybe next quarter"

	require.Equal(t, Result{Valid: true}, New().Validate(q, raw))
	require.Equal(t, Result{Valid: true, Vague: true}, New(WithVagueMode(VagueWarn)).Validate(q, raw))

	res := New(WithVagueMode(VagueReject)).Validate(q, raw)
	require.False(t, res.Valid)
	require.True(t, res.Vague)

	// word boundaries: "tbd" inside another word is not vague
	require.False(t, New(WithVagueMode(VagueWarn)).Validate(q, "tbdx rollout in May").Vague)
}

func TestCustomVagueKeywords(t *testing.T) {
	q := types.QuestionDefinition{ID: "timeline", Step: 5}
	v := New(WithVagueMode(VagueReject), WithVagueKeywords("someday"))
	require.False(t, v.Validate(q, "someday soon").Valid)
	require.True(t, v.Validate(q, "maybe soon").Valid)
}

func TestResultErr(t *testing.T) {
	require.NoError(t, Result{Valid: true}.Err("a"))
	err := Result{Error: "bad"}.Err("a")
	verr, ok := types.IsValidationError(err)
	require.True(t, ok)
	require.Equal(t, "a", verr.QuestionID)
	require.Equal(t, "bad", verr.Message)
}
