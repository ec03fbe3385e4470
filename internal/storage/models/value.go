package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldValue is the value of a tracked model-card field: either free text or
// a list of strings. It serializes as a JSON string or a JSON array.
type FieldValue struct {
	Text  string
	Items []string
	List  bool
}

func TextValue(s string) FieldValue {
	return FieldValue{Text: s}
}

func ListValue(items ...string) FieldValue {
	return FieldValue{Items: items, List: true}
}

// Empty reports whether the field is absent: blank text or no non-blank items.
func (v FieldValue) Empty() bool {
	if !v.List {
		return strings.TrimSpace(v.Text) == ""
	}
	for _, item := range v.Items {
		if strings.TrimSpace(item) != "" {
			return false
		}
	}
	return true
}

// Equal compares text exactly and lists as sets of non-blank strings.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.List != other.List {
		return false
	}
	if !v.List {
		return v.Text == other.Text
	}
	a, b := stringSet(v.Items), stringSet(other.Items)
	if len(a) != len(b) {
		return false
	}
	for item := range a {
		if !b[item] {
			return false
		}
	}
	return true
}

// String renders lists comma separated, the way the change log displays them.
func (v FieldValue) String() string {
	if v.List {
		return strings.Join(v.Items, ", ")
	}
	return v.Text
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.List {
		items := v.Items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.Text)
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = FieldValue{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("invalid list value: %w", err)
		}
		*v = ListValue(items...)
		return nil
	default:
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("invalid text value: %w", err)
		}
		*v = TextValue(text)
		return nil
	}
}

// stringSet skips blank items, matching Empty.
func stringSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		set[item] = true
	}
	return set
}

