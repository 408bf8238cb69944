package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Value is a typed answer: free text, a yes/no flag or a list of items.
// It marshals to the matching native JSON type.
type Value struct {
	kind Kind
	text string
	flag bool
	list []string
}

func TextValue(s string) Value { return Value{kind: KindText, text: s} }

func BoolValue(b bool) Value { return Value{kind: KindBoolean, flag: b} }

func ListValue(items ...string) Value {
	return Value{kind: KindList, list: append([]string(nil), items...)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.flag, true
}

func (v Value) List() []string {
	if v.kind != KindList {
		return nil
	}
	return append([]string(nil), v.list...)
}

// String renders the value as display text.
func (v Value) String() string {
	switch v.kind {
	case KindBoolean:
		if v.flag {
			return "Yes"
		}
		return "No"
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return v.text
	}
}

func (v Value) IsZero() bool {
	switch v.kind {
	case KindBoolean:
		return false
	case KindList:
		return len(v.list) == 0
	case KindText:
		return strings.TrimSpace(v.text) == ""
	default:
		return true
	}
}

func (v Value) Clone() Value {
	out := v
	out.list = append([]string(nil), v.list...)
	return out
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.text != o.text || v.flag != o.flag || len(v.list) != len(o.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != o.list[i] {
			return false
		}
	}
	return true
}

// Matches compares the value against an expected answer written as text.
func (v Value) Matches(expected string) bool {
	expected = strings.TrimSpace(expected)
	switch v.kind {
	case KindBoolean:
		want, ok := ParseBool(expected)
		return ok && want == v.flag
	case KindList:
		for _, item := range v.list {
			if strings.EqualFold(strings.TrimSpace(item), expected) {
				return true
			}
		}
		return false
	default:
		return strings.EqualFold(strings.TrimSpace(v.text), expected)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBoolean:
		return json.Marshal(v.flag)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty answer value")
	}
	switch data[0] {
	case 'n':
		*v = Value{}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode text answer: %w", err)
		}
		*v = TextValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decode boolean answer: %w", err)
		}
		*v = BoolValue(b)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decode list answer: %w", err)
		}
		*v = ListValue(items...)
	default:
		// numbers are kept verbatim as text
		*v = TextValue(string(data))
	}
	return nil
}

// AnswerMap maps question ids (or free-form keys) to answers.
type AnswerMap map[string]Value

func (m AnswerMap) Clone() AnswerMap {
	if m == nil {
		return AnswerMap{}
	}
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// Has reports whether key holds a non-empty answer.
func (m AnswerMap) Has(key string) bool {
	v, ok := m[key]
	return ok && !v.IsZero()
}

func (m AnswerMap) Text(key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.String())
}

func (m AnswerMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m AnswerMap) Equal(o AnswerMap) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ParseAnswer types a raw answer according to kind.
func ParseAnswer(kind Kind, raw string) Value {
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindBoolean:
		if b, ok := ParseBool(raw); ok {
			return BoolValue(b)
		}
		return TextValue(raw)
	case KindList:
		fields := strings.FieldsFunc(raw, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n'
		})
		items := make([]string, 0, len(fields))
		for _, f := range fields {
			if f = strings.TrimSpace(f); f != "" {
				items = append(items, f)
			}
		}
		return ListValue(items...)
	default:
		return TextValue(raw)
	}
}

var (
	trueWords  = []string{"yes", "y", "true", "yeah", "yep", "sure", "correct"}
	falseWords = []string{"no", "n", "false", "nope", "none", "not"}
	// hedgeWords turn a leading "no" or "not" into an uncertain answer ("not sure", "no idea").
	hedgeWords = []string{"sure", "idea", "clue", "certain", "known", "decided", "yet"}
)

// ParseBool reads a yes/no answer from its first word. Hedges such as "not sure" are not answers.
func ParseBool(raw string) (bool, bool) {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return false, false
	}
	first := strings.Trim(fields[0], ".,!;:")
	if (first == "no" || first == "not") && len(fields) > 1 {
		second := strings.Trim(fields[1], ".,!;:")
		for _, w := range hedgeWords {
			if second == w {
				return false, false
			}
		}
	}
	for _, w := range trueWords {
		if first == w {
			return true, true
		}
	}
	for _, w := range falseWords {
		if first == w {
			return false, true
		}
	}
	return false, false
}
