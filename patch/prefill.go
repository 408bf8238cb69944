package patch

import (
	"github.com/tbxark/intakeagent/types"
)

// Diff returns the operations that bring current up to initial.
// Empty initial values are skipped so a prefill never clears an answer.
func Diff(current, initial types.AnswerMap) []Operation {
	ops := make([]Operation, 0, len(initial))
	for _, key := range initial.Keys() {
		value := initial[key]
		if value.IsZero() {
			continue
		}
		existing, exists := current[key]
		switch {
		case !exists:
			ops = append(ops, Operation{Op: OperationAdd, Path: Path(key), Value: value})
		case !existing.Equal(value):
			ops = append(ops, Operation{Op: OperationReplace, Path: Path(key), Value: value})
		}
	}
	return ops
}
