// Package patch applies RFC6902 operations to an answer map.
package patch

import "strings"

const (
	OperationAdd     = "add"
	OperationReplace = "replace"
	OperationRemove  = "remove"
)

type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Path returns the JSON pointer addressing the answer stored under key.
func Path(key string) string {
	return "/" + escapeJSONPointer(key)
}

// Key reverses Path. It reports false for pointers deeper than one level.
func Key(path string) (string, bool) {
	if !strings.HasPrefix(path, "/") {
		return "", false
	}
	token := path[1:]
	if token == "" || strings.Contains(token, "/") {
		return "", false
	}
	return unescapeJSONPointer(token), true
}

func Replace(key string, value any) Operation {
	return Operation{Op: OperationReplace, Path: Path(key), Value: value}
}

func escapeJSONPointer(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

func unescapeJSONPointer(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}
