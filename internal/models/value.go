package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FieldKey identifies one answer in an application draft.
type FieldKey string

// ValueKind is the type tag of an answer value.
type ValueKind string

const (
	KindText    ValueKind = "text"
	KindNumber  ValueKind = "number"
	KindBoolean ValueKind = "boolean"
	KindDate    ValueKind = "date"
	KindFile    ValueKind = "file"
	KindEmpty   ValueKind = "empty"
)

// DateLayout is the civil date format of date answers.
const DateLayout = "2006-01-02"

// Attachment upload states.
const (
	FilePending  = "pending"
	FileUploaded = "uploaded"
	FileFailed   = "failed"
)

// FileRef points at an uploaded attachment. Only the reference and its
// upload status are tracked here.
type FileRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Status      string `json:"status"`
}

// Value is a single answer. KindEmpty marks a field the applicant cleared
// explicitly; a field never visited has no entry in the answer map at all.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Bool   bool
	File   *FileRef
}

func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

func Number(n float64) Value {
	return Value{Kind: KindNumber, Number: n}
}

func Bool(b bool) Value {
	return Value{Kind: KindBoolean, Bool: b}
}

func Empty() Value {
	return Value{Kind: KindEmpty}
}

func File(ref FileRef) Value {
	return Value{Kind: KindFile, File: &ref}
}

func Date(t time.Time) Value {
	return Value{Kind: KindDate, Text: t.Format(DateLayout)}
}

// ParseDate builds a date value from YYYY-MM-DD text.
func ParseDate(s string) (Value, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Value{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t), nil
}

// IsBlank reports whether the value carries no usable answer.
func (v Value) IsBlank() bool {
	switch v.Kind {
	case "", KindEmpty:
		return true
	case KindText, KindDate:
		return v.Text == ""
	case KindFile:
		return v.File == nil
	default:
		return false
	}
}

// String renders the value the way it would appear in a text input.
func (v Value) String() string {
	switch v.Kind {
	case KindText, KindDate:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindFile:
		if v.File != nil {
			return v.File.Name
		}
	}
	return ""
}

// Plain converts the value into a plain JSON-compatible Go value.
func (v Value) Plain() interface{} {
	switch v.Kind {
	case KindText, KindDate:
		return v.Text
	case KindNumber:
		return v.Number
	case KindBoolean:
		return v.Bool
	case KindFile:
		if v.File == nil {
			return nil
		}
		return map[string]interface{}{
			"id":     v.File.ID,
			"name":   v.File.Name,
			"status": v.File.Status,
		}
	default:
		return nil
	}
}

type wireValue struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.Kind}
	var payload interface{}
	switch v.Kind {
	case KindText, KindDate:
		payload = v.Text
	case KindNumber:
		payload = v.Number
	case KindBoolean:
		payload = v.Bool
	case KindFile:
		payload = v.File
	case KindEmpty:
		return json.Marshal(w)
	default:
		return nil, fmt.Errorf("unknown value kind %q", v.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	w.Value = raw
	return json.Marshal(w)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Value{Kind: w.Kind}
	switch w.Kind {
	case KindText:
		if err := json.Unmarshal(w.Value, &out.Text); err != nil {
			return fmt.Errorf("text value: %w", err)
		}
	case KindDate:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("date value: %w", err)
		}
		parsed, err := ParseDate(s)
		if err != nil {
			return err
		}
		out = parsed
	case KindNumber:
		if err := json.Unmarshal(w.Value, &out.Number); err != nil {
			return fmt.Errorf("number value: %w", err)
		}
	case KindBoolean:
		if err := json.Unmarshal(w.Value, &out.Bool); err != nil {
			return fmt.Errorf("boolean value: %w", err)
		}
	case KindFile:
		var ref FileRef
		if err := json.Unmarshal(w.Value, &ref); err != nil {
			return fmt.Errorf("file value: %w", err)
		}
		out.File = &ref
	case KindEmpty:
	default:
		return fmt.Errorf("unknown value kind %q", w.Kind)
	}
	*v = out
	return nil
}
