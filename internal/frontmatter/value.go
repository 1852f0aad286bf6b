package frontmatter

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindBool
	KindNumber
	KindList
	KindMap
)

// Value is a frontmatter value: a small tagged union over the YAML shapes
// notes actually carry.
type Value struct {
	kind Kind
	str  string
	b    bool
	num  float64
	list []Value
	m    map[string]Value
}

func Null() Value               { return Value{kind: KindNull} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, num: n} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string payload when v is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsBool returns the bool payload when v is a bool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the numeric payload when v is a number.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// AsList returns the list payload when v is a list.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Field returns a key of a map value.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	f, ok := v.m[key]
	return f, ok
}

// Scalar renders strings and numbers as text. Other kinds report false.
func (v Value) Scalar() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return strconv.FormatInt(int64(v.num), 10), true
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	}
	return "", false
}

// Any converts v back into plain Go values suitable for YAML encoding.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return int64(v.num)
		}
		return v.num
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Any()
		}
		return out
	}
	return nil
}

// FromAny converts a decoded YAML/JSON value into a Value. Unknown shapes
// are rendered with fmt so nothing is silently dropped.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float64:
		return Number(t)
	case time.Time:
		return String(t.Format(time.RFC3339))
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return List(items...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return Value{kind: KindMap, m: m}
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[fmt.Sprint(k)] = FromAny(item)
		}
		return Value{kind: KindMap, m: m}
	}
	return String(fmt.Sprint(raw))
}

// Frontmatter is the parsed key/value header of a markdown file.
type Frontmatter map[string]Value

// String returns the string value of key.
func (f Frontmatter) String(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Scalar returns the string or number value of key rendered as text.
func (f Frontmatter) Scalar(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	return v.Scalar()
}

// Bool returns the bool value of key.
func (f Frontmatter) Bool(key string) (bool, bool) {
	v, ok := f[key]
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// Strings returns a list of strings stored under key. A single string is
// returned as a one-element list; non-string items are skipped.
func (f Frontmatter) Strings(key string) []string {
	v, ok := f[key]
	if !ok {
		return nil
	}
	if s, ok := v.AsString(); ok {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	items, _ := v.AsList()
	var out []string
	for _, item := range items {
		if s, ok := item.Scalar(); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Keys returns the keys in sorted order.
func (f Frontmatter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NoteID returns the remote note id recorded in f, reading the legacy
// source_app_id key when noteId is absent.
func NoteID(f Frontmatter) (string, bool) {
	for _, key := range []string{KeyNoteID, KeyLegacyNoteID} {
		if s, ok := f.Scalar(key); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
