package patch

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPatch = errors.New("invalid patch")

// Validate checks every operation addresses an allowed answer key.
// An empty allowed set permits any top-level key.
func Validate(ops []Operation, allowed map[string]bool) error {
	for i, op := range ops {
		switch op.Op {
		case OperationAdd, OperationReplace, OperationRemove:
		default:
			return fmt.Errorf("%w: operation %d: unsupported op %q", ErrInvalidPatch, i, op.Op)
		}
		if err := validatePathAllowed(op.Path, allowed); err != nil {
			return fmt.Errorf("%w: operation %d: %v", ErrInvalidPatch, i, err)
		}
	}
	return nil
}

func validatePathAllowed(path string, allowed map[string]bool) error {
	key, ok := Key(path)
	if !ok {
		// list items may be addressed below their answer, e.g. /data_sources/-
		if i := strings.Index(strings.TrimPrefix(path, "/"), "/"); i > 0 && strings.HasPrefix(path, "/") {
			key, ok = Key(path[:i+1])
		}
	}
	if !ok {
		return fmt.Errorf("path %q does not address an answer", path)
	}
	if len(allowed) == 0 || allowed[key] {
		return nil
	}
	return fmt.Errorf("path %q is not in the allowed paths set", path)
}
